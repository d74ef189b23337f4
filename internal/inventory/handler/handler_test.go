package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fekuna/omnipos-workshop-service/internal/apperror"
	"github.com/fekuna/omnipos-workshop-service/internal/auth"
	"github.com/fekuna/omnipos-workshop-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-workshop-service/internal/model"
	"github.com/fekuna/omnipos-workshop-service/pkg/logger"
	"github.com/gin-gonic/gin"
)

type stubUseCase struct {
	adjust  *dto.AdjustStockInput
	filters *dto.MovementFilters
	role    auth.Role
}

func (s *stubUseCase) GetPartStock(ctx context.Context, partID int64) (*model.PartStock, error) {
	if partID == 404 {
		return nil, apperror.NotFound("part", partID)
	}
	return &model.PartStock{PartID: partID, Quantity: 9}, nil
}

func (s *stubUseCase) ReceiveStock(ctx context.Context, in *dto.ReceiveStockInput) (*model.InventoryMovement, error) {
	return &model.InventoryMovement{PartID: in.PartID, Type: model.MovementReceipt, Quantity: in.Quantity}, nil
}

func (s *stubUseCase) AdjustStock(ctx context.Context, in *dto.AdjustStockInput) (*model.InventoryMovement, error) {
	s.adjust = in
	s.role = auth.GetUser(ctx).Role
	return nil, apperror.InsufficientStock([]apperror.Shortage{{PartID: in.PartID, Required: 5, Available: 1}})
}

func (s *stubUseCase) BookReceipt(ctx context.Context, in *dto.BookReceiptInput) (*dto.ReceiptResult, error) {
	return &dto.ReceiptResult{ReceiptID: in.ReceiptID}, nil
}

func (s *stubUseCase) ListMovements(ctx context.Context, f *dto.MovementFilters) ([]model.InventoryMovement, error) {
	s.filters = f
	return []model.InventoryMovement{}, nil
}

func newRouter(uc *stubUseCase) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewInventoryHandler(uc, logger.NewNop()).RegisterRoutes(r.Group("/api/v1", auth.GinMiddleware()))
	return r
}

func TestGetStock(t *testing.T) {
	r := newRouter(&stubUseCase{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/parts/3/stock", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Data model.PartStock `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Data.Quantity != 9 {
		t.Fatalf("body = %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/parts/404/stock", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing part status = %d", w.Code)
	}
}

func TestAdjustBelowZero(t *testing.T) {
	uc := &stubUseCase{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/parts/3/adjustments",
		bytes.NewBufferString(`{"quantity_change": -5, "reason": "count"}`))
	req.Header.Set("X-User-ID", "mgr-1")
	req.Header.Set("X-User-Role", "manager")
	w := httptest.NewRecorder()
	newRouter(uc).ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", w.Code)
	}
	if uc.adjust.PartID != 3 || uc.adjust.QuantityChange != -5 || uc.role != auth.RoleManager {
		t.Fatalf("input = %+v, role = %s", uc.adjust, uc.role)
	}
}

func TestListMovementsQuery(t *testing.T) {
	uc := &stubUseCase{}
	w := httptest.NewRecorder()
	newRouter(uc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/inventory/movements?order_id=12&movement_type=scrap", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if uc.filters.OrderID != 12 || uc.filters.Type != model.MovementScrap {
		t.Fatalf("filters = %+v", uc.filters)
	}
}
