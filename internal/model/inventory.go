package model

import "time"

const (
	// MaxQuantity bounds a single line, receipt or adjustment.
	MaxQuantity = 1000000

	// MaxStock is the largest counter the INTEGER stock columns hold.
	MaxStock = 1<<31 - 1
)

type PartStock struct {
	PartID    int64     `db:"part_id" json:"part_id"`
	Quantity  int       `db:"quantity" json:"quantity"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type MovementType string

const (
	MovementDeduction  MovementType = "deduction"
	MovementReturn     MovementType = "return"
	MovementScrap      MovementType = "scrap"
	MovementReceipt    MovementType = "receipt"
	MovementAdjustment MovementType = "adjustment"
)

// InventoryMovement is an append-only ledger row. Orders are referenced for
// lookup only.
type InventoryMovement struct {
	ID          int64        `db:"id" json:"id"`
	PartID      int64        `db:"part_id" json:"part_id"`
	OrderID     *int64       `db:"order_id" json:"order_id"`
	OrderLineID *int64       `db:"order_line_id" json:"order_line_id"`
	Type        MovementType `db:"movement_type" json:"movement_type"`
	Quantity    int          `db:"quantity" json:"quantity"`
	StockBefore int          `db:"stock_before" json:"stock_before"`
	StockAfter  int          `db:"stock_after" json:"stock_after"`
	Reason      string       `db:"reason" json:"reason"`
	CreatedBy   string       `db:"created_by" json:"created_by"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
}

// Balanced checks stock_after against stock_before for the movement type.
// Adjustments carry their direction in StockAfter and only need a positive quantity.
func (m *InventoryMovement) Balanced() bool {
	if m.Quantity <= 0 {
		return false
	}
	switch m.Type {
	case MovementDeduction:
		return m.StockAfter == m.StockBefore-m.Quantity
	case MovementReturn, MovementReceipt:
		return m.StockAfter == m.StockBefore+m.Quantity
	case MovementScrap:
		return m.StockAfter == m.StockBefore
	case MovementAdjustment:
		return m.StockAfter == m.StockBefore+m.Quantity || m.StockAfter == m.StockBefore-m.Quantity
	default:
		return false
	}
}

// StockReceipt marks a goods-received note as booked so a redelivered note
// is not counted twice.
type StockReceipt struct {
	ReceiptID string    `db:"receipt_id" json:"receipt_id"`
	EventID   string    `db:"event_id" json:"event_id"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
