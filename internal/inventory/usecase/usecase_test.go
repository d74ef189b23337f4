package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/fekuna/omnipos-workshop-service/internal/apperror"
	"github.com/fekuna/omnipos-workshop-service/internal/auth"
	catalogrepo "github.com/fekuna/omnipos-workshop-service/internal/catalog/repository"
	catalogusecase "github.com/fekuna/omnipos-workshop-service/internal/catalog/usecase"
	"github.com/fekuna/omnipos-workshop-service/internal/inventory"
	"github.com/fekuna/omnipos-workshop-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-workshop-service/internal/inventory/repository"
	"github.com/fekuna/omnipos-workshop-service/internal/model"
	"github.com/fekuna/omnipos-workshop-service/internal/testutil"
	"github.com/fekuna/omnipos-workshop-service/pkg/cache"
	"github.com/fekuna/omnipos-workshop-service/pkg/database/postgres"
	"github.com/fekuna/omnipos-workshop-service/pkg/logger"
	"github.com/fekuna/omnipos-workshop-service/pkg/metrics"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

var (
	manager = auth.WithUser(context.Background(), auth.UserContext{UserID: "mgr-1", Role: auth.RoleManager})
	cashier = auth.WithUser(context.Background(), auth.UserContext{UserID: "cash-1", Role: auth.RoleCashier})
)

type fakeLocker struct {
	err      error
	keys     []string
	released int
}

func (l *fakeLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.keys = append(l.keys, key)
	return func(context.Context) error {
		l.released++
		return nil
	}, nil
}

func newUseCase(t *testing.T) (inventory.UseCase, *sqlx.DB, *metrics.Metrics) {
	return newLockedUseCase(t, nil)
}

func newLockedUseCase(t *testing.T, locker cache.Locker) (inventory.UseCase, *sqlx.DB, *metrics.Metrics) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	log := logger.NewNop()
	m := metrics.New(prometheus.NewRegistry())
	catalogUC := catalogusecase.NewCatalogUseCase(catalogrepo.NewPGRepository(db), nil, 0, log)
	uc := NewInventoryUseCase(repository.NewPGRepository(db), catalogUC, postgres.NewTxManager(db), locker, time.Second, m, log)
	return uc, db, m
}

func TestReceiveStock(t *testing.T) {
	uc, db, m := newUseCase(t)
	partID := testutil.SeedPart(t, db, "BRK-PAD", 40)

	mv, err := uc.ReceiveStock(manager, &dto.ReceiveStockInput{PartID: partID, Quantity: 6, Reason: "supplier delivery"})
	if err != nil {
		t.Fatalf("ReceiveStock: %v", err)
	}
	if mv.Type != model.MovementReceipt || mv.StockBefore != 0 || mv.StockAfter != 6 || mv.ID == 0 {
		t.Fatalf("movement = %+v", mv)
	}

	stock, err := uc.GetPartStock(cashier, partID)
	if err != nil {
		t.Fatalf("GetPartStock: %v", err)
	}
	if stock.Quantity != 6 {
		t.Fatalf("quantity = %d, want 6", stock.Quantity)
	}
	if got := promtest.ToFloat64(m.StockMovements.WithLabelValues("receipt")); got != 1 {
		t.Fatalf("receipt counter = %v", got)
	}
}

func TestReceiveStockRejections(t *testing.T) {
	uc, db, _ := newUseCase(t)
	partID := testutil.SeedPart(t, db, "BRK-PAD", 40)

	_, err := uc.ReceiveStock(cashier, &dto.ReceiveStockInput{PartID: partID, Quantity: 1})
	if !apperror.Is(err, apperror.KindAuthorization) {
		t.Fatalf("cashier receive: %v", err)
	}
	_, err = uc.ReceiveStock(manager, &dto.ReceiveStockInput{PartID: partID, Quantity: 0})
	if !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("zero quantity: %v", err)
	}
	_, err = uc.ReceiveStock(manager, &dto.ReceiveStockInput{PartID: 999, Quantity: 1})
	if !apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("unknown part: %v", err)
	}
}

func TestAdjustStock(t *testing.T) {
	uc, db, _ := newUseCase(t)
	partID := testutil.SeedPart(t, db, "OIL-FLT", 15)
	testutil.SetStock(t, db, partID, 4)

	mv, err := uc.AdjustStock(manager, &dto.AdjustStockInput{PartID: partID, QuantityChange: -3, Reason: "physical count"})
	if err != nil {
		t.Fatalf("AdjustStock: %v", err)
	}
	if mv.Quantity != 3 || mv.StockBefore != 4 || mv.StockAfter != 1 {
		t.Fatalf("movement = %+v", mv)
	}

	_, err = uc.AdjustStock(manager, &dto.AdjustStockInput{PartID: partID, QuantityChange: -2, Reason: "physical count"})
	if !apperror.Is(err, apperror.KindInsufficientStock) {
		t.Fatalf("below zero: %v", err)
	}
	if got := testutil.StockOf(t, db, partID); got != 1 {
		t.Fatalf("stock = %d, want 1", got)
	}

	_, err = uc.AdjustStock(manager, &dto.AdjustStockInput{PartID: partID, QuantityChange: 2})
	if !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("missing reason: %v", err)
	}
}

func TestGetPartStockNeverStocked(t *testing.T) {
	uc, db, _ := newUseCase(t)
	partID := testutil.SeedPart(t, db, "WPR-BLD", 9)

	stock, err := uc.GetPartStock(cashier, partID)
	if err != nil {
		t.Fatalf("GetPartStock: %v", err)
	}
	if stock.Quantity != 0 || stock.PartID != partID {
		t.Fatalf("stock = %+v", stock)
	}
}

func TestListMovementsFilters(t *testing.T) {
	uc, db, _ := newUseCase(t)
	pad := testutil.SeedPart(t, db, "BRK-PAD", 40)
	flt := testutil.SeedPart(t, db, "OIL-FLT", 15)

	for _, in := range []*dto.ReceiveStockInput{
		{PartID: pad, Quantity: 2},
		{PartID: flt, Quantity: 5},
		{PartID: pad, Quantity: 1},
	} {
		if _, err := uc.ReceiveStock(manager, in); err != nil {
			t.Fatalf("ReceiveStock: %v", err)
		}
	}

	items, err := uc.ListMovements(cashier, &dto.MovementFilters{PartID: pad})
	if err != nil {
		t.Fatalf("ListMovements: %v", err)
	}
	if len(items) != 2 || items[0].StockAfter != 2 || items[1].StockAfter != 3 {
		t.Fatalf("pad movements = %+v", items)
	}

	items, err = uc.ListMovements(cashier, &dto.MovementFilters{Type: model.MovementDeduction})
	if err != nil {
		t.Fatalf("ListMovements: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("deductions = %+v", items)
	}
}

func TestStockLock(t *testing.T) {
	t.Run("held elsewhere", func(t *testing.T) {
		locker := &fakeLocker{err: cache.ErrLockNotObtained}
		uc, db, _ := newLockedUseCase(t, locker)
		partID := testutil.SeedPart(t, db, "BRK-PAD", 40)

		_, err := uc.ReceiveStock(manager, &dto.ReceiveStockInput{PartID: partID, Quantity: 3})
		if !apperror.Is(err, apperror.KindConflict) {
			t.Fatalf("ReceiveStock with lock held: %v", err)
		}
		if got := testutil.StockOf(t, db, partID); got != 0 {
			t.Fatalf("stock = %d, want 0", got)
		}
		items, _ := uc.ListMovements(manager, &dto.MovementFilters{PartID: partID})
		if len(items) != 0 {
			t.Fatalf("movements = %+v", items)
		}
	})

	t.Run("released after success and failure", func(t *testing.T) {
		locker := &fakeLocker{}
		uc, db, _ := newLockedUseCase(t, locker)
		partID := testutil.SeedPart(t, db, "BRK-PAD", 40)

		if _, err := uc.ReceiveStock(manager, &dto.ReceiveStockInput{PartID: partID, Quantity: 2}); err != nil {
			t.Fatalf("ReceiveStock: %v", err)
		}
		_, err := uc.AdjustStock(manager, &dto.AdjustStockInput{PartID: partID, QuantityChange: -5, Reason: "physical count"})
		if !apperror.Is(err, apperror.KindInsufficientStock) {
			t.Fatalf("AdjustStock below zero: %v", err)
		}

		want := fmt.Sprintf("lock:inventory:%d", partID)
		if len(locker.keys) != 2 || locker.keys[0] != want || locker.keys[1] != want {
			t.Fatalf("lock keys = %v", locker.keys)
		}
		if locker.released != 2 {
			t.Fatalf("released = %d, want 2", locker.released)
		}
	})
}

func TestStockBounds(t *testing.T) {
	uc, db, _ := newUseCase(t)
	partID := testutil.SeedPart(t, db, "BRK-PAD", 40)

	_, err := uc.ReceiveStock(manager, &dto.ReceiveStockInput{PartID: partID, Quantity: model.MaxQuantity + 1})
	if !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("oversized receipt: %v", err)
	}
	_, err = uc.AdjustStock(manager, &dto.AdjustStockInput{PartID: partID, QuantityChange: -model.MaxQuantity - 1, Reason: "physical count"})
	if !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("oversized adjustment: %v", err)
	}

	testutil.SetStock(t, db, partID, model.MaxStock-1)
	_, err = uc.ReceiveStock(manager, &dto.ReceiveStockInput{PartID: partID, Quantity: 5})
	if !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("receipt past the ceiling: %v", err)
	}
	_, err = uc.AdjustStock(manager, &dto.AdjustStockInput{PartID: partID, QuantityChange: 5, Reason: "physical count"})
	if !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("adjustment past the ceiling: %v", err)
	}
	if got := testutil.StockOf(t, db, partID); got != model.MaxStock-1 {
		t.Fatalf("stock = %d, want %d", got, model.MaxStock-1)
	}
}

func TestBookReceiptOnce(t *testing.T) {
	uc, db, m := newUseCase(t)
	pad := testutil.SeedPart(t, db, "BRK-PAD", 40)
	flt := testutil.SeedPart(t, db, "OIL-FLT", 15)
	system := auth.WithUser(context.Background(), auth.System)

	in := &dto.BookReceiptInput{
		ReceiptID: "GRN-7",
		EventID:   "evt-1",
		Items: []dto.ReceivedItem{
			{PartID: pad, Quantity: 4},
			{PartID: 999, Quantity: 1},
			{PartID: flt, Quantity: 0},
			{PartID: flt, Quantity: 2},
		},
	}
	result, err := uc.BookReceipt(system, in)
	if err != nil {
		t.Fatalf("BookReceipt: %v", err)
	}
	if result.Duplicate || len(result.Movements) != 2 || len(result.Skipped) != 2 {
		t.Fatalf("result = %+v", result)
	}
	if result.Movements[0].Reason != "goods received GRN-7" || result.Movements[0].CreatedBy != auth.System.UserID {
		t.Fatalf("movement = %+v", result.Movements[0])
	}
	if result.Skipped[0].PartID != 999 || result.Skipped[1].Quantity != 0 {
		t.Fatalf("skipped = %+v", result.Skipped)
	}

	again, err := uc.BookReceipt(system, in)
	if err != nil {
		t.Fatalf("BookReceipt redelivered: %v", err)
	}
	if !again.Duplicate || len(again.Movements) != 0 {
		t.Fatalf("redelivered result = %+v", again)
	}
	if testutil.StockOf(t, db, pad) != 4 || testutil.StockOf(t, db, flt) != 2 {
		t.Fatalf("stock = %d/%d, want 4/2", testutil.StockOf(t, db, pad), testutil.StockOf(t, db, flt))
	}
	if got := promtest.ToFloat64(m.StockMovements.WithLabelValues("receipt")); got != 2 {
		t.Fatalf("receipt counter = %v, want 2", got)
	}

	_, err = uc.BookReceipt(cashier, &dto.BookReceiptInput{ReceiptID: "GRN-9", Items: []dto.ReceivedItem{{PartID: pad, Quantity: 1}}})
	if !apperror.Is(err, apperror.KindAuthorization) {
		t.Fatalf("cashier booking: %v", err)
	}
}
