package workorder

import (
	"context"

	"github.com/fekuna/omnipos-workshop-service/internal/model"
	"github.com/fekuna/omnipos-workshop-service/internal/workorder/dto"
)

// Repository persists the work-order aggregate. Lookups return nil, nil when
// the row does not exist. Calls join the transaction carried by ctx.
type Repository interface {
	Create(ctx context.Context, order *model.WorkOrder) error
	FindByID(ctx context.Context, id int64) (*model.WorkOrder, error)
	// FindByIDForUpdate locks the order row until the surrounding transaction ends.
	FindByIDForUpdate(ctx context.Context, id int64) (*model.WorkOrder, error)
	FindAll(ctx context.Context, filters *dto.OrderFilters) ([]model.WorkOrder, error)
	Update(ctx context.Context, order *model.WorkOrder) error
	ReplaceLines(ctx context.Context, orderID int64, lines []model.OrderLine) error
	// SetLinkedSale stores saleID only if the order has none yet.
	SetLinkedSale(ctx context.Context, orderID int64, saleID string) (bool, error)

	CreateAuthorizationEvent(ctx context.Context, event *model.AuthorizationEvent) error
	ListAuthorizationEvents(ctx context.Context, orderID int64) ([]model.AuthorizationEvent, error)

	CreateCancellation(ctx context.Context, record *model.CancellationRecord) error
	FindCancellation(ctx context.Context, orderID int64) (*model.CancellationRecord, error)
}
