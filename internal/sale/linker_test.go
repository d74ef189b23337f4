package sale

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fekuna/omnipos-workshop-service/internal/model"
	"github.com/shopspring/decimal"
)

func testOrder() *model.WorkOrder {
	serviceID := int64(3)
	return &model.WorkOrder{
		ID:          12,
		OrderNumber: "WO-000012",
		ClientID:    4,
		State:       model.StateCompleted,
		Lines: []model.OrderLine{
			{Kind: model.LineKindService, ServiceID: &serviceID, Quantity: 1, UnitPrice: decimal.NewFromInt(500)},
			{Kind: model.LineKindPart, Description: "brake pads", Quantity: 2, UnitPrice: decimal.NewFromInt(40)},
		},
	}
}

func TestHTTPLinkerCreatesSale(t *testing.T) {
	var got saleRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/sales/from-work-order" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sale_id":"sale-77"}`))
	}))
	defer srv.Close()

	id, err := NewHTTPLinker(srv.URL+"/", time.Second).CreateFromOrder(context.Background(), testOrder())
	if err != nil {
		t.Fatalf("CreateFromOrder: %v", err)
	}
	if id != "sale-77" {
		t.Fatalf("sale id = %q", id)
	}
	if got.OrderID != 12 || got.OrderNumber != "WO-000012" || len(got.Lines) != 2 {
		t.Fatalf("request = %+v", got)
	}
	if !got.Total.Equal(decimal.NewFromInt(580)) {
		t.Fatalf("total = %s, want 580", got.Total)
	}
}

func TestHTTPLinkerErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`},
		{"missing id", http.StatusCreated, `{}`},
		{"garbage", http.StatusOK, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			if _, err := NewHTTPLinker(srv.URL, time.Second).CreateFromOrder(context.Background(), testOrder()); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestDisabledLinker(t *testing.T) {
	if _, err := Disabled().CreateFromOrder(context.Background(), testOrder()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("got %v", err)
	}
}
