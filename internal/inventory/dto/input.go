package dto

type ReceiveStockInput struct {
	PartID   int64  `json:"part_id" validate:"required,gt=0"`
	Quantity int    `json:"quantity" validate:"required,gt=0,max=1000000"`
	Reason   string `json:"reason" validate:"max=500"`
}

// AdjustStockInput corrects a counter after a physical count. The change
// may not take stock below zero.
type AdjustStockInput struct {
	PartID         int64  `json:"part_id" validate:"required,gt=0"`
	QuantityChange int    `json:"quantity_change" validate:"required,ne=0,min=-1000000,max=1000000"`
	Reason         string `json:"reason" validate:"required,max=500"`
}

// BookReceiptInput books every line of one goods-received note. Lines are
// checked one by one; a bad line is skipped, not fatal.
type BookReceiptInput struct {
	ReceiptID string         `json:"receipt_id" validate:"required,max=100"`
	EventID   string         `json:"event_id" validate:"max=100"`
	Items     []ReceivedItem `json:"items" validate:"required,min=1"`
}

type ReceivedItem struct {
	PartID   int64 `json:"part_id" validate:"required,gt=0"`
	Quantity int   `json:"quantity" validate:"required,gt=0,max=1000000"`
}
