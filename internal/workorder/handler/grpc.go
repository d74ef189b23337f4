package handler

import (
	"context"

	"github.com/fekuna/omnipos-workshop-service/internal/apperror"
	"github.com/fekuna/omnipos-workshop-service/internal/model"
	"github.com/fekuna/omnipos-workshop-service/internal/workorder"
	"github.com/fekuna/omnipos-workshop-service/internal/workorder/dto"
	"github.com/fekuna/omnipos-workshop-service/internal/workorder/statemachine"
	"github.com/fekuna/omnipos-workshop-service/pkg/logger"
	"github.com/fekuna/omnipos-workshop-service/pkg/rpc"
	"google.golang.org/grpc"
)

const ServiceName = "omnipos.workshop.v1.WorkOrderService"

// WorkOrderServiceServer is the gRPC surface of the work-order engine.
type WorkOrderServiceServer interface {
	CreateOrder(context.Context, *dto.CreateOrderInput) (*OrderResponse, error)
	UpdateOrder(context.Context, *dto.UpdateOrderInput) (*OrderResponse, error)
	GetOrder(context.Context, *dto.OrderRef) (*OrderResponse, error)
	ListOrders(context.Context, *dto.OrderFilters) (*ListOrdersResponse, error)
	AssignTechnician(context.Context, *dto.AssignTechnicianInput) (*OrderResponse, error)
	RequestAuthorization(context.Context, *dto.TransitionInput) (*OrderResponse, error)
	Authorize(context.Context, *dto.AuthorizeInput) (*OrderResponse, error)
	ListAuthorizationEvents(context.Context, *dto.OrderRef) (*AuthorizationEventsResponse, error)
	Start(context.Context, *dto.TransitionInput) (*OrderResponse, error)
	Finish(context.Context, *dto.TransitionInput) (*OrderResponse, error)
	Deliver(context.Context, *dto.TransitionInput) (*OrderResponse, error)
	Cancel(context.Context, *dto.CancelInput) (*OrderResponse, error)
	GetCancellation(context.Context, *dto.OrderRef) (*model.CancellationRecord, error)
	CreateSale(context.Context, *dto.OrderRef) (*OrderResponse, error)
}

// OrderResponse carries the order plus the commands its state accepts, so
// clients can render actions without duplicating the transition table.
type OrderResponse struct {
	Order     *model.WorkOrder       `json:"order"`
	Total     string                 `json:"total"`
	Available []statemachine.Command `json:"available_commands"`
}

type ListOrdersResponse struct {
	Orders []OrderResponse `json:"orders"`
}

type AuthorizationEventsResponse struct {
	Events []model.AuthorizationEvent `json:"events"`
}

func toResponse(o *model.WorkOrder) *OrderResponse {
	if o == nil {
		return nil
	}
	return &OrderResponse{
		Order:     o,
		Total:     o.Total().StringFixed(2),
		Available: statemachine.Available(o.State),
	}
}

type WorkOrderHandler struct {
	uc     workorder.UseCase
	logger logger.ZapLogger
}

func NewWorkOrderHandler(uc workorder.UseCase, log logger.ZapLogger) *WorkOrderHandler {
	return &WorkOrderHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *WorkOrderHandler) order(o *model.WorkOrder, err error) (*OrderResponse, error) {
	if err != nil {
		return nil, apperror.GRPCStatus(err)
	}
	return toResponse(o), nil
}

func (h *WorkOrderHandler) CreateOrder(ctx context.Context, req *dto.CreateOrderInput) (*OrderResponse, error) {
	return h.order(h.uc.CreateOrder(ctx, req))
}

func (h *WorkOrderHandler) UpdateOrder(ctx context.Context, req *dto.UpdateOrderInput) (*OrderResponse, error) {
	return h.order(h.uc.UpdateOrder(ctx, req))
}

func (h *WorkOrderHandler) GetOrder(ctx context.Context, req *dto.OrderRef) (*OrderResponse, error) {
	return h.order(h.uc.GetOrder(ctx, req.OrderID))
}

func (h *WorkOrderHandler) ListOrders(ctx context.Context, req *dto.OrderFilters) (*ListOrdersResponse, error) {
	orders, err := h.uc.ListOrders(ctx, req)
	if err != nil {
		return nil, apperror.GRPCStatus(err)
	}
	resp := &ListOrdersResponse{Orders: make([]OrderResponse, len(orders))}
	for i := range orders {
		resp.Orders[i] = *toResponse(&orders[i])
	}
	return resp, nil
}

func (h *WorkOrderHandler) AssignTechnician(ctx context.Context, req *dto.AssignTechnicianInput) (*OrderResponse, error) {
	return h.order(h.uc.AssignTechnician(ctx, req))
}

func (h *WorkOrderHandler) RequestAuthorization(ctx context.Context, req *dto.TransitionInput) (*OrderResponse, error) {
	return h.order(h.uc.RequestAuthorization(ctx, req))
}

func (h *WorkOrderHandler) Authorize(ctx context.Context, req *dto.AuthorizeInput) (*OrderResponse, error) {
	return h.order(h.uc.Authorize(ctx, req))
}

func (h *WorkOrderHandler) ListAuthorizationEvents(ctx context.Context, req *dto.OrderRef) (*AuthorizationEventsResponse, error) {
	events, err := h.uc.ListAuthorizationEvents(ctx, req.OrderID)
	if err != nil {
		return nil, apperror.GRPCStatus(err)
	}
	return &AuthorizationEventsResponse{Events: events}, nil
}

func (h *WorkOrderHandler) Start(ctx context.Context, req *dto.TransitionInput) (*OrderResponse, error) {
	return h.order(h.uc.Start(ctx, req))
}

// Finish and Deliver report a failed sale as Unavailable even though the
// state change committed; the client re-reads the order and retries CreateSale.
func (h *WorkOrderHandler) Finish(ctx context.Context, req *dto.TransitionInput) (*OrderResponse, error) {
	return h.order(h.uc.Finish(ctx, req))
}

func (h *WorkOrderHandler) Deliver(ctx context.Context, req *dto.TransitionInput) (*OrderResponse, error) {
	return h.order(h.uc.Deliver(ctx, req))
}

func (h *WorkOrderHandler) Cancel(ctx context.Context, req *dto.CancelInput) (*OrderResponse, error) {
	return h.order(h.uc.Cancel(ctx, req))
}

func (h *WorkOrderHandler) GetCancellation(ctx context.Context, req *dto.OrderRef) (*model.CancellationRecord, error) {
	rec, err := h.uc.GetCancellation(ctx, req.OrderID)
	if err != nil {
		return nil, apperror.GRPCStatus(err)
	}
	return rec, nil
}

func (h *WorkOrderHandler) CreateSale(ctx context.Context, req *dto.OrderRef) (*OrderResponse, error) {
	return h.order(h.uc.CreateSale(ctx, req.OrderID))
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*WorkOrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		rpc.Unary(ServiceName, "CreateOrder", WorkOrderServiceServer.CreateOrder),
		rpc.Unary(ServiceName, "UpdateOrder", WorkOrderServiceServer.UpdateOrder),
		rpc.Unary(ServiceName, "GetOrder", WorkOrderServiceServer.GetOrder),
		rpc.Unary(ServiceName, "ListOrders", WorkOrderServiceServer.ListOrders),
		rpc.Unary(ServiceName, "AssignTechnician", WorkOrderServiceServer.AssignTechnician),
		rpc.Unary(ServiceName, "RequestAuthorization", WorkOrderServiceServer.RequestAuthorization),
		rpc.Unary(ServiceName, "Authorize", WorkOrderServiceServer.Authorize),
		rpc.Unary(ServiceName, "ListAuthorizationEvents", WorkOrderServiceServer.ListAuthorizationEvents),
		rpc.Unary(ServiceName, "Start", WorkOrderServiceServer.Start),
		rpc.Unary(ServiceName, "Finish", WorkOrderServiceServer.Finish),
		rpc.Unary(ServiceName, "Deliver", WorkOrderServiceServer.Deliver),
		rpc.Unary(ServiceName, "Cancel", WorkOrderServiceServer.Cancel),
		rpc.Unary(ServiceName, "GetCancellation", WorkOrderServiceServer.GetCancellation),
		rpc.Unary(ServiceName, "CreateSale", WorkOrderServiceServer.CreateSale),
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterWorkOrderServiceServer(s grpc.ServiceRegistrar, srv WorkOrderServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}
