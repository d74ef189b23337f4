package dto

import (
	"time"

	"github.com/fekuna/omnipos-workshop-service/internal/model"
	"github.com/shopspring/decimal"
)

type LineInput struct {
	Kind      model.LineKind `json:"kind" validate:"required,oneof=service part"`
	ServiceID *int64         `json:"service_id,omitempty" validate:"omitempty,gt=0"`
	PartID    *int64         `json:"part_id,omitempty" validate:"omitempty,gt=0"`
	// Description names a free-text part bought outside the catalog.
	Description   string           `json:"description,omitempty" validate:"max=255"`
	EstimatedCost *decimal.Decimal `json:"estimated_cost,omitempty"`
	Quantity      int              `json:"quantity" validate:"required,gt=0,max=1000000"`
	// UnitPrice defaults to the catalog price when omitted.
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

type CreateOrderInput struct {
	ClientID              int64          `json:"client_id" validate:"required,gt=0"`
	VehicleID             int64          `json:"vehicle_id" validate:"required,gt=0"`
	TechnicianID          *string        `json:"technician_id,omitempty"`
	Priority              model.Priority `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	DiagnosticNotes       string         `json:"diagnostic_notes" validate:"required,max=2000"`
	ClientObservations    string         `json:"client_observations" validate:"required,max=2000"`
	PromisedAt            *time.Time     `json:"promised_at,omitempty"`
	RequiresAuthorization bool           `json:"requires_authorization"`
	ClientSuppliedParts   bool           `json:"client_supplied_parts"`
	AcknowledgeWarnings   bool           `json:"acknowledge_warnings"`
	Lines                 []LineInput    `json:"lines" validate:"required,min=1,max=200,dive"`
}

// UpdateOrderInput replaces the editable fields and lines of a pending order.
type UpdateOrderInput struct {
	OrderID               int64          `json:"order_id" validate:"required,gt=0"`
	ExpectedState         model.State    `json:"expected_state" validate:"required"`
	Priority              model.Priority `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	DiagnosticNotes       string         `json:"diagnostic_notes" validate:"required,max=2000"`
	ClientObservations    string         `json:"client_observations" validate:"required,max=2000"`
	PromisedAt            *time.Time     `json:"promised_at,omitempty"`
	RequiresAuthorization bool           `json:"requires_authorization"`
	ClientSuppliedParts   bool           `json:"client_supplied_parts"`
	AcknowledgeWarnings   bool           `json:"acknowledge_warnings"`
	Lines                 []LineInput    `json:"lines" validate:"required,min=1,max=200,dive"`
}

type OrderRef struct {
	OrderID int64 `json:"order_id" validate:"required,gt=0"`
}

type TransitionInput struct {
	OrderID       int64       `json:"order_id" validate:"required,gt=0"`
	ExpectedState model.State `json:"expected_state" validate:"required"`
	// CreateSale asks finish/deliver to hand the order to the sale service
	// once the state change is committed.
	CreateSale bool `json:"create_sale"`
}

type AuthorizeInput struct {
	OrderID  int64  `json:"order_id" validate:"required,gt=0"`
	Approved bool   `json:"approved"`
	Note     string `json:"note" validate:"max=500"`
}

type AssignTechnicianInput struct {
	OrderID       int64       `json:"order_id" validate:"required,gt=0"`
	ExpectedState model.State `json:"expected_state"`
	TechnicianID  string      `json:"technician_id" validate:"required"`
}

type DispositionInput struct {
	OrderLineID   int64  `json:"order_line_id" validate:"required,gt=0"`
	ReturnableQty int    `json:"returnable_qty" validate:"max=1000000"`
	ScrapQty      int    `json:"scrap_qty" validate:"max=1000000"`
	ScrapReason   string `json:"scrap_reason" validate:"max=500"`
}

type CancelInput struct {
	OrderID       int64              `json:"order_id" validate:"required,gt=0"`
	ExpectedState model.State        `json:"expected_state" validate:"required"`
	Reason        string             `json:"reason" validate:"required,max=500"`
	Dispositions  []DispositionInput `json:"dispositions" validate:"dive"`
}
