package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fekuna/omnipos-workshop-service/internal/apperror"
	"github.com/fekuna/omnipos-workshop-service/internal/auth"
	"github.com/fekuna/omnipos-workshop-service/internal/model"
	"github.com/fekuna/omnipos-workshop-service/internal/workorder/dto"
	"github.com/fekuna/omnipos-workshop-service/internal/workorder/statemachine"
	"github.com/fekuna/omnipos-workshop-service/pkg/logger"
	"github.com/fekuna/omnipos-workshop-service/pkg/rpc"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

// stubUseCase answers every command with order and err, recording the caller.
type stubUseCase struct {
	order  *model.WorkOrder
	err    error
	caller auth.UserContext
	last   any
}

func (s *stubUseCase) reply(ctx context.Context, in any) (*model.WorkOrder, error) {
	s.caller = auth.GetUser(ctx)
	s.last = in
	return s.order, s.err
}

func (s *stubUseCase) CreateOrder(ctx context.Context, in *dto.CreateOrderInput) (*model.WorkOrder, error) {
	return s.reply(ctx, in)
}

func (s *stubUseCase) UpdateOrder(ctx context.Context, in *dto.UpdateOrderInput) (*model.WorkOrder, error) {
	return s.reply(ctx, in)
}

func (s *stubUseCase) GetOrder(ctx context.Context, id int64) (*model.WorkOrder, error) {
	return s.reply(ctx, id)
}

func (s *stubUseCase) ListOrders(ctx context.Context, f *dto.OrderFilters) ([]model.WorkOrder, error) {
	o, err := s.reply(ctx, f)
	if err != nil {
		return nil, err
	}
	return []model.WorkOrder{*o}, nil
}

func (s *stubUseCase) AssignTechnician(ctx context.Context, in *dto.AssignTechnicianInput) (*model.WorkOrder, error) {
	return s.reply(ctx, in)
}

func (s *stubUseCase) RequestAuthorization(ctx context.Context, in *dto.TransitionInput) (*model.WorkOrder, error) {
	return s.reply(ctx, in)
}

func (s *stubUseCase) Authorize(ctx context.Context, in *dto.AuthorizeInput) (*model.WorkOrder, error) {
	return s.reply(ctx, in)
}

func (s *stubUseCase) ListAuthorizationEvents(ctx context.Context, id int64) ([]model.AuthorizationEvent, error) {
	_, err := s.reply(ctx, id)
	return nil, err
}

func (s *stubUseCase) Start(ctx context.Context, in *dto.TransitionInput) (*model.WorkOrder, error) {
	return s.reply(ctx, in)
}

func (s *stubUseCase) Finish(ctx context.Context, in *dto.TransitionInput) (*model.WorkOrder, error) {
	return s.reply(ctx, in)
}

func (s *stubUseCase) Deliver(ctx context.Context, in *dto.TransitionInput) (*model.WorkOrder, error) {
	return s.reply(ctx, in)
}

func (s *stubUseCase) Cancel(ctx context.Context, in *dto.CancelInput) (*model.WorkOrder, error) {
	return s.reply(ctx, in)
}

func (s *stubUseCase) GetCancellation(ctx context.Context, id int64) (*model.CancellationRecord, error) {
	_, err := s.reply(ctx, id)
	return nil, err
}

func (s *stubUseCase) CreateSale(ctx context.Context, id int64) (*model.WorkOrder, error) {
	return s.reply(ctx, id)
}

func sampleOrder(state model.State) *model.WorkOrder {
	return &model.WorkOrder{
		ID:          7,
		OrderNumber: "WO-000007",
		State:       state,
		Lines: []model.OrderLine{
			{Kind: model.LineKindService, Quantity: 1, UnitPrice: decimal.NewFromInt(500)},
		},
	}
}

func dialBufconn(t *testing.T, uc *stubUseCase) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(auth.ContextInterceptor()))
	RegisterWorkOrderServiceServer(srv, NewWorkOrderHandler(uc, logger.NewNop()))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestGRPCStart(t *testing.T) {
	uc := &stubUseCase{order: sampleOrder(model.StateInProgress)}
	conn := dialBufconn(t, uc)
	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-user-id", "tech-1", "x-user-role", "technician")

	resp, err := rpc.Invoke[dto.TransitionInput, OrderResponse](ctx, conn, ServiceName, "Start",
		&dto.TransitionInput{OrderID: 7, ExpectedState: model.StatePending})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if resp.Order.State != model.StateInProgress || resp.Total != "500.00" {
		t.Fatalf("response = %+v", resp)
	}
	if len(resp.Available) != 2 {
		t.Fatalf("available = %v", resp.Available)
	}
	if uc.caller.UserID != "tech-1" || uc.caller.Role != auth.RoleTechnician {
		t.Fatalf("caller = %+v", uc.caller)
	}
	if in, ok := uc.last.(*dto.TransitionInput); !ok || in.OrderID != 7 || in.ExpectedState != model.StatePending {
		t.Fatalf("input = %+v", uc.last)
	}
}

func TestGRPCErrorCodes(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{apperror.Conflict("stale"), codes.Aborted},
		{apperror.InsufficientStock([]apperror.Shortage{{PartID: 1, Required: 2}}), codes.FailedPrecondition},
		{apperror.Unauthorized("nope"), codes.PermissionDenied},
		{errors.New("db down"), codes.Internal},
	}
	for _, tt := range tests {
		conn := dialBufconn(t, &stubUseCase{err: tt.err})
		_, err := rpc.Invoke[dto.OrderRef, OrderResponse](context.Background(), conn, ServiceName, "GetOrder", &dto.OrderRef{OrderID: 1})
		if got := status.Code(err); got != tt.want {
			t.Errorf("%v: code = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func newRouter(uc *stubUseCase) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api/v1", auth.GinMiddleware())
	NewWorkOrderHandler(uc, logger.NewNop()).RegisterRoutes(api)
	return r
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "cash-1")
	req.Header.Set("X-User-Role", "cashier")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data  *OrderResponse `json:"data"`
	Error *apperror.Body `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return env
}

func TestHTTPDeliver(t *testing.T) {
	uc := &stubUseCase{order: sampleOrder(model.StateDelivered)}
	w := do(newRouter(uc), http.MethodPost, "/api/v1/work-orders/7/deliver", map[string]any{"expected_state": "completed"})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	env := decode(t, w)
	if env.Data == nil || env.Data.Order.State != model.StateDelivered || len(env.Data.Available) != 0 {
		t.Fatalf("body = %s", w.Body.String())
	}
	in := uc.last.(*dto.TransitionInput)
	if in.OrderID != 7 || in.ExpectedState != model.StateCompleted {
		t.Fatalf("input = %+v", in)
	}
	if uc.caller.Role != auth.RoleCashier {
		t.Fatalf("caller = %+v", uc.caller)
	}
}

func TestHTTPFinishWithFailedSaleReturnsOrder(t *testing.T) {
	uc := &stubUseCase{order: sampleOrder(model.StateCompleted), err: apperror.SaleLinkage(errors.New("timeout"))}
	w := do(newRouter(uc), http.MethodPost, "/api/v1/work-orders/7/finish", map[string]any{"expected_state": "in_progress", "create_sale": true})

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", w.Code)
	}
	env := decode(t, w)
	if env.Error == nil || env.Error.Kind != apperror.KindSaleLinkage {
		t.Fatalf("error = %+v", env.Error)
	}
	if env.Data == nil || env.Data.Order.State != model.StateCompleted {
		t.Fatalf("committed order missing: %s", w.Body.String())
	}
	if in := uc.last.(*dto.TransitionInput); !in.CreateSale {
		t.Fatal("create_sale flag not forwarded")
	}
}

func TestHTTPErrors(t *testing.T) {
	r := newRouter(&stubUseCase{err: apperror.IllegalTransition("order WO-000007 is delivered and accepts no further commands")})

	w := do(r, http.MethodPost, "/api/v1/work-orders/7/start", map[string]any{"expected_state": "pending"})
	if w.Code != http.StatusConflict {
		t.Fatalf("illegal transition status = %d", w.Code)
	}
	if env := decode(t, w); env.Error == nil || env.Error.Kind != apperror.KindIllegalTransition || env.Data != nil {
		t.Fatalf("body = %s", w.Body.String())
	}

	w = do(r, http.MethodGet, "/api/v1/work-orders/abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad id status = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/work-orders/7/cancel", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body status = %d", rec.Code)
	}
}

func TestHTTPCreateOrder(t *testing.T) {
	uc := &stubUseCase{order: sampleOrder(model.StatePending)}
	w := do(newRouter(uc), http.MethodPost, "/api/v1/work-orders", map[string]any{
		"client_id":           1,
		"vehicle_id":          2,
		"diagnostic_notes":    "noise",
		"client_observations": "none",
		"lines":               []map[string]any{{"kind": "service", "service_id": 3, "quantity": 1}},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	in := uc.last.(*dto.CreateOrderInput)
	if len(in.Lines) != 1 || *in.Lines[0].ServiceID != 3 {
		t.Fatalf("input = %+v", in)
	}
	want := []statemachine.Command{statemachine.CommandRequestAuthorization, statemachine.CommandStart, statemachine.CommandCancel}
	if got := decode(t, w).Data.Available; len(got) != len(want) {
		t.Fatalf("available = %v, want %v", got, want)
	}
}
