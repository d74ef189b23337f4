package inventory

import (
	"context"

	"github.com/fekuna/omnipos-workshop-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-workshop-service/internal/model"
)

type UseCase interface {
	GetPartStock(ctx context.Context, partID int64) (*model.PartStock, error)
	ReceiveStock(ctx context.Context, input *dto.ReceiveStockInput) (*model.InventoryMovement, error)
	AdjustStock(ctx context.Context, input *dto.AdjustStockInput) (*model.InventoryMovement, error)
	BookReceipt(ctx context.Context, input *dto.BookReceiptInput) (*dto.ReceiptResult, error)
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.InventoryMovement, error)
}
