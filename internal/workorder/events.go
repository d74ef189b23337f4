package workorder

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-workshop-service/internal/model"
)

const (
	EventCreated                = "WorkOrderCreated"
	EventUpdated                = "WorkOrderUpdated"
	EventTechnicianAssigned     = "WorkOrderTechnicianAssigned"
	EventAuthorizationRequested = "WorkOrderAuthorizationRequested"
	EventAuthorized             = "WorkOrderAuthorized"
	EventRejected               = "WorkOrderRejected"
	EventStarted                = "WorkOrderStarted"
	EventFinished               = "WorkOrderFinished"
	EventDelivered              = "WorkOrderDelivered"
	EventCancelled              = "WorkOrderCancelled"
	EventSaleLinked             = "WorkOrderSaleLinked"
)

// Event is published after a command commits.
type Event struct {
	EventID   string       `json:"event_id"`
	EventType string       `json:"event_type"`
	Payload   EventPayload `json:"payload"`
	Timestamp time.Time    `json:"timestamp"`
}

type EventPayload struct {
	OrderID      int64       `json:"order_id"`
	OrderNumber  string      `json:"order_number"`
	State        model.State `json:"state"`
	TechnicianID *string     `json:"technician_id,omitempty"`
	LinkedSaleID *string     `json:"linked_sale_id,omitempty"`
	Actor        string      `json:"actor"`
}

type Publisher interface {
	Publish(ctx context.Context, event *Event) error
}
