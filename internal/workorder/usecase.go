package workorder

import (
	"context"

	"github.com/fekuna/omnipos-workshop-service/internal/model"
	"github.com/fekuna/omnipos-workshop-service/internal/workorder/dto"
)

// UseCase runs work-order commands on behalf of the caller found in ctx.
type UseCase interface {
	CreateOrder(ctx context.Context, input *dto.CreateOrderInput) (*model.WorkOrder, error)
	UpdateOrder(ctx context.Context, input *dto.UpdateOrderInput) (*model.WorkOrder, error)
	GetOrder(ctx context.Context, id int64) (*model.WorkOrder, error)
	ListOrders(ctx context.Context, filters *dto.OrderFilters) ([]model.WorkOrder, error)
	AssignTechnician(ctx context.Context, input *dto.AssignTechnicianInput) (*model.WorkOrder, error)

	RequestAuthorization(ctx context.Context, input *dto.TransitionInput) (*model.WorkOrder, error)
	Authorize(ctx context.Context, input *dto.AuthorizeInput) (*model.WorkOrder, error)
	ListAuthorizationEvents(ctx context.Context, orderID int64) ([]model.AuthorizationEvent, error)

	Start(ctx context.Context, input *dto.TransitionInput) (*model.WorkOrder, error)
	// Finish and Deliver return the committed order together with a
	// sale-linkage error when CreateSale was requested and failed.
	Finish(ctx context.Context, input *dto.TransitionInput) (*model.WorkOrder, error)
	Deliver(ctx context.Context, input *dto.TransitionInput) (*model.WorkOrder, error)
	Cancel(ctx context.Context, input *dto.CancelInput) (*model.WorkOrder, error)
	GetCancellation(ctx context.Context, orderID int64) (*model.CancellationRecord, error)

	CreateSale(ctx context.Context, orderID int64) (*model.WorkOrder, error)
}
