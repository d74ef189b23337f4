package dto

import "github.com/fekuna/omnipos-workshop-service/internal/model"

type MovementFilters struct {
	PartID  int64              `json:"part_id,omitempty" form:"part_id"`
	OrderID int64              `json:"order_id,omitempty" form:"order_id"`
	Type    model.MovementType `json:"movement_type,omitempty" form:"movement_type"`
	Limit   int                `json:"limit,omitempty" form:"limit"`
}

// ReceiptResult reports what a goods-received note did to stock. Duplicate
// is set when the note was booked before and nothing moved this time.
type ReceiptResult struct {
	ReceiptID string                    `json:"receipt_id"`
	Duplicate bool                      `json:"duplicate"`
	Movements []model.InventoryMovement `json:"movements"`
	Skipped   []SkippedItem             `json:"skipped,omitempty"`
}

type SkippedItem struct {
	PartID   int64  `json:"part_id"`
	Quantity int    `json:"quantity"`
	Reason   string `json:"reason"`
}
