package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fekuna/omnipos-workshop-service/internal/apperror"
	"github.com/fekuna/omnipos-workshop-service/internal/auth"
	"github.com/fekuna/omnipos-workshop-service/internal/catalog"
	"github.com/fekuna/omnipos-workshop-service/internal/inventory"
	"github.com/fekuna/omnipos-workshop-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-workshop-service/internal/model"
	"github.com/fekuna/omnipos-workshop-service/pkg/cache"
	"github.com/fekuna/omnipos-workshop-service/pkg/database/postgres"
	"github.com/fekuna/omnipos-workshop-service/pkg/logger"
	"github.com/fekuna/omnipos-workshop-service/pkg/metrics"
	"go.uber.org/zap"
)

type inventoryUseCase struct {
	repo    inventory.Repository
	catalog catalog.UseCase
	tx      *postgres.TxManager
	locker  cache.Locker
	lockTTL time.Duration
	metrics *metrics.Metrics
	logger  logger.ZapLogger
}

// NewInventoryUseCase wires the stock store. locker and m may be nil.
func NewInventoryUseCase(
	repo inventory.Repository,
	catalogUC catalog.UseCase,
	tx *postgres.TxManager,
	locker cache.Locker,
	lockTTL time.Duration,
	m *metrics.Metrics,
	log logger.ZapLogger,
) inventory.UseCase {
	return &inventoryUseCase{
		repo:    repo,
		catalog: catalogUC,
		tx:      tx,
		locker:  locker,
		lockTTL: lockTTL,
		metrics: m,
		logger:  log,
	}
}

func (uc *inventoryUseCase) GetPartStock(ctx context.Context, partID int64) (*model.PartStock, error) {
	if !auth.Can(auth.GetUser(ctx).Role, auth.ActionViewStock) {
		return nil, apperror.Unauthorized("role may not view stock")
	}
	if _, err := uc.catalog.GetPart(ctx, partID); err != nil {
		return nil, err
	}

	stock, err := uc.repo.GetByPart(ctx, partID)
	if err != nil {
		return nil, apperror.Internal("get part stock", err)
	}
	if stock == nil {
		// Never stocked reads as zero.
		return &model.PartStock{PartID: partID}, nil
	}
	return stock, nil
}

func (uc *inventoryUseCase) ReceiveStock(ctx context.Context, input *dto.ReceiveStockInput) (*model.InventoryMovement, error) {
	user := auth.GetUser(ctx)
	if !auth.Can(user.Role, auth.ActionReceiveStock) {
		return nil, apperror.Unauthorized("role may not receive stock")
	}
	if err := apperror.ValidateStruct(input); err != nil {
		return nil, err
	}

	return uc.move(ctx, input.PartID, func(before int) (*model.InventoryMovement, error) {
		if before > model.MaxStock-input.Quantity {
			return nil, stockCeiling(input.PartID, before)
		}
		return &model.InventoryMovement{
			PartID:      input.PartID,
			Type:        model.MovementReceipt,
			Quantity:    input.Quantity,
			StockBefore: before,
			StockAfter:  before + input.Quantity,
			Reason:      input.Reason,
			CreatedBy:   user.UserID,
		}, nil
	})
}

func (uc *inventoryUseCase) AdjustStock(ctx context.Context, input *dto.AdjustStockInput) (*model.InventoryMovement, error) {
	user := auth.GetUser(ctx)
	if !auth.Can(user.Role, auth.ActionAdjustStock) {
		return nil, apperror.Unauthorized("role may not adjust stock")
	}
	if err := apperror.ValidateStruct(input); err != nil {
		return nil, err
	}

	return uc.move(ctx, input.PartID, func(before int) (*model.InventoryMovement, error) {
		after := before + input.QuantityChange
		if input.QuantityChange > 0 && before > model.MaxStock-input.QuantityChange {
			return nil, stockCeiling(input.PartID, before)
		}
		if after < 0 {
			return nil, apperror.InsufficientStock([]apperror.Shortage{
				{PartID: input.PartID, Required: -input.QuantityChange, Available: before},
			})
		}
		qty := input.QuantityChange
		if qty < 0 {
			qty = -qty
		}
		return &model.InventoryMovement{
			PartID:      input.PartID,
			Type:        model.MovementAdjustment,
			Quantity:    qty,
			StockBefore: before,
			StockAfter:  after,
			Reason:      input.Reason,
			CreatedBy:   user.UserID,
		}, nil
	})
}

// BookReceipt books a goods-received note at most once. Lines that fail
// validation or name an unknown part are reported back as skipped; the rest
// move stock in one transaction together with the receipt marker.
func (uc *inventoryUseCase) BookReceipt(ctx context.Context, input *dto.BookReceiptInput) (*dto.ReceiptResult, error) {
	user := auth.GetUser(ctx)
	if !auth.Can(user.Role, auth.ActionReceiveStock) {
		return nil, apperror.Unauthorized("role may not receive stock")
	}
	input.ReceiptID = strings.TrimSpace(input.ReceiptID)
	if err := apperror.ValidateStruct(input); err != nil {
		return nil, err
	}

	result := &dto.ReceiptResult{ReceiptID: input.ReceiptID, Movements: []model.InventoryMovement{}}
	skip := func(item dto.ReceivedItem, err error) {
		result.Skipped = append(result.Skipped, dto.SkippedItem{PartID: item.PartID, Quantity: item.Quantity, Reason: err.Error()})
	}

	var items []dto.ReceivedItem
	for _, item := range input.Items {
		if err := apperror.ValidateStruct(&item); err != nil {
			skip(item, err)
			continue
		}
		if _, err := uc.catalog.GetPart(ctx, item.PartID); err != nil {
			if !apperror.Is(err, apperror.KindNotFound) {
				return nil, err
			}
			skip(item, err)
			continue
		}
		items = append(items, item)
	}

	reason := "goods received " + input.ReceiptID
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := time.Now().UTC()
		fresh, err := uc.repo.RecordReceipt(ctx, &model.StockReceipt{
			ReceiptID: input.ReceiptID,
			EventID:   input.EventID,
			CreatedBy: user.UserID,
			CreatedAt: now,
		})
		if err != nil {
			return apperror.Internal("record receipt", err)
		}
		if !fresh {
			result.Duplicate = true
			return nil
		}
		if len(items) == 0 {
			return nil
		}

		partIDs := make([]int64, 0, len(items))
		for _, item := range items {
			partIDs = append(partIDs, item.PartID)
		}
		sort.Slice(partIDs, func(i, j int) bool { return partIDs[i] < partIDs[j] })
		stock, err := uc.repo.LockByParts(ctx, partIDs)
		if err != nil {
			return apperror.Internal("lock part stock", err)
		}

		for _, item := range items {
			s := stock[item.PartID]
			if s.Quantity > model.MaxStock-item.Quantity {
				skip(item, stockCeiling(item.PartID, s.Quantity))
				continue
			}
			m := model.InventoryMovement{
				PartID:      item.PartID,
				Type:        model.MovementReceipt,
				Quantity:    item.Quantity,
				StockBefore: s.Quantity,
				StockAfter:  s.Quantity + item.Quantity,
				Reason:      reason,
				CreatedBy:   user.UserID,
				CreatedAt:   now,
			}
			if err := uc.repo.ApplyMovement(ctx, &m); err != nil {
				return apperror.Internal("apply stock movement", err)
			}
			s.Quantity = m.StockAfter
			result.Movements = append(result.Movements, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Duplicate {
		result.Skipped = nil
		uc.logger.Info("Receipt already booked", zap.String("receipt_id", input.ReceiptID))
		return result, nil
	}

	for _, m := range result.Movements {
		uc.metrics.AddMovement(string(m.Type))
	}
	uc.logger.Info("Receipt booked",
		zap.String("receipt_id", input.ReceiptID),
		zap.Int("booked", len(result.Movements)),
		zap.Int("skipped", len(result.Skipped)),
	)
	return result, nil
}

func stockCeiling(partID int64, before int) error {
	return apperror.ValidationFields(
		fmt.Sprintf("stock of part %d would exceed %d (now %d)", partID, model.MaxStock, before),
		map[string]string{"quantity": "max"},
	)
}

// move serializes changes to one part counter behind the redis lock and the
// row lock, then applies the movement built from the locked quantity.
func (uc *inventoryUseCase) move(ctx context.Context, partID int64, build func(before int) (*model.InventoryMovement, error)) (*model.InventoryMovement, error) {
	if _, err := uc.catalog.GetPart(ctx, partID); err != nil {
		return nil, err
	}

	if uc.locker != nil {
		lockKey := fmt.Sprintf("lock:inventory:%d", partID)
		release, err := uc.locker.Obtain(ctx, lockKey, uc.lockTTL)
		if errors.Is(err, cache.ErrLockNotObtained) {
			return nil, apperror.Conflict("part stock is being changed by another request, try again")
		}
		if err != nil {
			uc.logger.Error("Failed to acquire inventory lock", zap.String("key", lockKey), zap.Error(err))
			return nil, apperror.Internal("acquire inventory lock", err)
		}
		defer func() {
			if err := release(context.Background()); err != nil {
				uc.logger.Warn("Failed to release inventory lock", zap.String("key", lockKey), zap.Error(err))
			}
		}()
	}

	var movement *model.InventoryMovement
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		locked, err := uc.repo.LockByParts(ctx, []int64{partID})
		if err != nil {
			return apperror.Internal("lock part stock", err)
		}

		movement, err = build(locked[partID].Quantity)
		if err != nil {
			return err
		}
		movement.CreatedAt = time.Now().UTC()
		if err := uc.repo.ApplyMovement(ctx, movement); err != nil {
			return apperror.Internal("apply stock movement", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.metrics.AddMovement(string(movement.Type))
	uc.logger.Info("Stock movement applied",
		zap.Int64("part_id", partID),
		zap.String("movement_type", string(movement.Type)),
		zap.Int("quantity", movement.Quantity),
		zap.Int("stock_after", movement.StockAfter),
	)
	return movement, nil
}

func (uc *inventoryUseCase) ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.InventoryMovement, error) {
	if !auth.Can(auth.GetUser(ctx).Role, auth.ActionViewStock) {
		return nil, apperror.Unauthorized("role may not view stock")
	}
	if filters.Limit <= 0 || filters.Limit > 500 {
		filters.Limit = 500
	}
	items, err := uc.repo.ListMovements(ctx, filters)
	if err != nil {
		return nil, apperror.Internal("list movements", err)
	}
	return items, nil
}
