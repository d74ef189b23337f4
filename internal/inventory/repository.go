package inventory

import (
	"context"

	"github.com/fekuna/omnipos-workshop-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-workshop-service/internal/model"
)

// Repository is the inventory store: one stock counter per part plus an
// append-only movement ledger. Calls join the transaction carried by ctx.
type Repository interface {
	// GetByPart returns nil, nil when the part has never been stocked.
	GetByPart(ctx context.Context, partID int64) (*model.PartStock, error)
	// LockByParts creates missing counters at zero and locks every counter,
	// one at a time in ascending part id. Only meaningful inside a transaction.
	LockByParts(ctx context.Context, partIDs []int64) (map[int64]*model.PartStock, error)

	// ApplyMovement writes the movement and moves the counter to its
	// StockAfter in one step.
	ApplyMovement(ctx context.Context, movement *model.InventoryMovement) error
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.InventoryMovement, error)

	// RecordReceipt stores the receipt id and reports false when it was
	// already recorded.
	RecordReceipt(ctx context.Context, receipt *model.StockReceipt) (bool, error)
}
