// Package sale hands finished work orders to the sales service, which owns
// invoicing. The order keeps only the returned sale id.
package sale

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fekuna/omnipos-workshop-service/internal/model"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Linker creates a sale from an order and returns its id.
type Linker interface {
	CreateFromOrder(ctx context.Context, order *model.WorkOrder) (string, error)
}

var ErrNotConfigured = errors.New("sale service is not configured")

type disabledLinker struct{}

// Disabled is used when no sale service URL is configured.
func Disabled() Linker { return disabledLinker{} }

func (disabledLinker) CreateFromOrder(context.Context, *model.WorkOrder) (string, error) {
	return "", ErrNotConfigured
}

type HTTPLinker struct {
	baseURL string
	client  *http.Client
}

func NewHTTPLinker(baseURL string, timeout time.Duration) *HTTPLinker {
	return &HTTPLinker{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type saleLine struct {
	Kind        model.LineKind  `json:"kind"`
	ServiceID   *int64          `json:"service_id,omitempty"`
	PartID      *int64          `json:"part_id,omitempty"`
	Description string          `json:"description,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type saleRequest struct {
	OrderID     int64           `json:"work_order_id"`
	OrderNumber string          `json:"work_order_number"`
	ClientID    int64           `json:"client_id"`
	Lines       []saleLine      `json:"lines"`
	Total       decimal.Decimal `json:"total"`
}

type saleResponse struct {
	SaleID string `json:"sale_id"`
}

func (l *HTTPLinker) CreateFromOrder(ctx context.Context, order *model.WorkOrder) (string, error) {
	req := saleRequest{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		ClientID:    order.ClientID,
		Lines:       make([]saleLine, 0, len(order.Lines)),
		Total:       order.Total(),
	}
	for _, l := range order.Lines {
		req.Lines = append(req.Lines, saleLine{
			Kind:        l.Kind,
			ServiceID:   l.ServiceID,
			PartID:      l.PartID,
			Description: l.Description,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
		})
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode sale request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/api/v1/sales/from-work-order", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build sale request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := l.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call sale service: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read sale response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("sale service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out saleResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decode sale response: %w", err)
	}
	if out.SaleID == "" {
		return "", errors.New("sale service returned no sale id")
	}
	return out.SaleID, nil
}
