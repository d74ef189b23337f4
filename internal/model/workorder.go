package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type State string

const (
	StatePending               State = "pending"
	StateAwaitingAuthorization State = "awaiting_authorization"
	StateInProgress            State = "in_progress"
	StateCompleted             State = "completed"
	StateDelivered             State = "delivered"
	StateCancelled             State = "cancelled"
)

var States = []State{
	StatePending,
	StateAwaitingAuthorization,
	StateInProgress,
	StateCompleted,
	StateDelivered,
	StateCancelled,
}

func (s State) Valid() bool {
	for _, known := range States {
		if s == known {
			return true
		}
	}
	return false
}

func (s State) Terminal() bool {
	return s == StateDelivered || s == StateCancelled
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type WorkOrder struct {
	ID                    int64      `db:"id" json:"id"`
	OrderNumber           string     `db:"order_number" json:"order_number"`
	ClientID              int64      `db:"client_id" json:"client_id"`
	VehicleID             int64      `db:"vehicle_id" json:"vehicle_id"`
	TechnicianID          *string    `db:"technician_id" json:"technician_id"`
	Priority              Priority   `db:"priority" json:"priority"`
	State                 State      `db:"state" json:"state"`
	RequiresAuthorization bool       `db:"requires_authorization" json:"requires_authorization"`
	Authorized            *bool      `db:"authorized" json:"authorized"`
	ClientSuppliedParts   bool       `db:"client_supplied_parts" json:"client_supplied_parts"`
	DiagnosticNotes       string     `db:"diagnostic_notes" json:"diagnostic_notes"`
	ClientObservations    string     `db:"client_observations" json:"client_observations"`
	PromisedAt            *time.Time `db:"promised_at" json:"promised_at"`
	LinkedSaleID          *string    `db:"linked_sale_id" json:"linked_sale_id"`
	CreatedBy             string     `db:"created_by" json:"created_by"`
	AuthorizedBy          *string    `db:"authorized_by" json:"authorized_by"`
	AuthorizedAt          *time.Time `db:"authorized_at" json:"authorized_at"`
	StartedBy             *string    `db:"started_by" json:"started_by"`
	StartedAt             *time.Time `db:"started_at" json:"started_at"`
	FinishedBy            *string    `db:"finished_by" json:"finished_by"`
	FinishedAt            *time.Time `db:"finished_at" json:"finished_at"`
	DeliveredBy           *string    `db:"delivered_by" json:"delivered_by"`
	DeliveredAt           *time.Time `db:"delivered_at" json:"delivered_at"`
	CancelledBy           *string    `db:"cancelled_by" json:"cancelled_by"`
	CancelledAt           *time.Time `db:"cancelled_at" json:"cancelled_at"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`

	Lines []OrderLine `db:"-" json:"lines"`
}

// FormatOrderNumber derives the human-readable number from the numeric id.
func FormatOrderNumber(id int64) string {
	return fmt.Sprintf("WO-%06d", id)
}

// Gate returns the authorization precondition of the order.
func (o *WorkOrder) Gate() AuthorizationGate {
	return AuthorizationGate{Required: o.RequiresAuthorization, Authorized: o.Authorized}
}

func (o *WorkOrder) HasTechnician() bool {
	return o.TechnicianID != nil && *o.TechnicianID != ""
}

func (o *WorkOrder) Total() decimal.Decimal {
	total := decimal.Zero
	for i := range o.Lines {
		total = total.Add(o.Lines[i].Subtotal())
	}
	return total
}

// PartLines returns the lines of kind part.
func (o *WorkOrder) PartLines() []OrderLine {
	var out []OrderLine
	for _, l := range o.Lines {
		if l.Kind == LineKindPart {
			out = append(out, l)
		}
	}
	return out
}

// StockLines returns the part lines whose quantity comes out of shop stock.
// Free-text parts have no stock counter; client-supplied orders use none.
func (o *WorkOrder) StockLines() []OrderLine {
	if o.ClientSuppliedParts {
		return nil
	}
	var out []OrderLine
	for _, l := range o.Lines {
		if l.Kind == LineKindPart && l.PartID != nil {
			out = append(out, l)
		}
	}
	return out
}

type LineKind string

const (
	LineKindService LineKind = "service"
	LineKindPart    LineKind = "part"
)

type OrderLine struct {
	ID            int64               `db:"id" json:"id"`
	OrderID       int64               `db:"order_id" json:"order_id"`
	Kind          LineKind            `db:"kind" json:"kind"`
	ServiceID     *int64              `db:"service_id" json:"service_id"`
	PartID        *int64              `db:"part_id" json:"part_id"`
	Description   string              `db:"description" json:"description"`
	EstimatedCost decimal.NullDecimal `db:"estimated_cost" json:"estimated_cost"`
	Quantity      int                 `db:"quantity" json:"quantity"`
	UnitPrice     decimal.Decimal     `db:"unit_price" json:"unit_price"`
	Position      int                 `db:"position" json:"-"`
}

func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// AuthorizationGate is the sign-off precondition, kept apart from State.
type AuthorizationGate struct {
	Required   bool
	Authorized *bool
}

// Open reports whether work may begin as far as sign-off is concerned.
func (g AuthorizationGate) Open() bool {
	return !g.Required || (g.Authorized != nil && *g.Authorized)
}

type AuthorizationEvent struct {
	ID        int64     `db:"id" json:"id"`
	OrderID   int64     `db:"order_id" json:"order_id"`
	Approved  bool      `db:"approved" json:"approved"`
	Note      string    `db:"note" json:"note"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type CancellationRecord struct {
	ID            int64             `db:"id" json:"id"`
	OrderID       int64             `db:"order_id" json:"order_id"`
	Reason        string            `db:"reason" json:"reason"`
	CancelledFrom State             `db:"cancelled_from" json:"cancelled_from"`
	CreatedBy     string            `db:"created_by" json:"created_by"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	Dispositions  []LineDisposition `db:"-" json:"dispositions"`
}

// LineDisposition splits what was deducted for one line into returned and scrapped units.
type LineDisposition struct {
	ID             int64  `db:"id" json:"-"`
	CancellationID int64  `db:"cancellation_id" json:"-"`
	OrderLineID    int64  `db:"order_line_id" json:"order_line_id"`
	PartID         int64  `db:"part_id" json:"part_id"`
	DeductedQty    int    `db:"deducted_qty" json:"deducted_qty"`
	ReturnableQty  int    `db:"returnable_qty" json:"returnable_qty"`
	ScrapQty       int    `db:"scrap_qty" json:"scrap_qty"`
	ScrapReason    string `db:"scrap_reason" json:"scrap_reason"`
}
