package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/fekuna/omnipos-workshop-service/internal/apperror"
	"github.com/fekuna/omnipos-workshop-service/internal/auth"
	invdto "github.com/fekuna/omnipos-workshop-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-workshop-service/internal/model"
	"github.com/fekuna/omnipos-workshop-service/internal/workorder"
	"github.com/fekuna/omnipos-workshop-service/internal/workorder/dto"
	"github.com/fekuna/omnipos-workshop-service/internal/workorder/statemachine"
)

// Start moves the order to in progress and deducts its stock lines in the
// same transaction. Every part is checked before anything is written.
func (uc *workOrderUseCase) Start(ctx context.Context, input *dto.TransitionInput) (*model.WorkOrder, error) {
	var movements []model.InventoryMovement
	order, err := uc.execute(ctx, string(statemachine.CommandStart), input.OrderID, workorder.EventStarted, func(ctx context.Context) (*model.WorkOrder, error) {
		user := auth.GetUser(ctx)
		if err := permit(user, auth.ActionStart); err != nil {
			return nil, err
		}
		if err := apperror.ValidateStruct(input); err != nil {
			return nil, err
		}
		// A technician may end up stamped on the order, so they must be an
		// active technician in the directory.
		if user.Role == auth.RoleTechnician {
			if err := uc.checkTechnician(ctx, user.UserID); err != nil {
				return nil, err
			}
		}
		return uc.locked(ctx, input.OrderID, func(ctx context.Context, o *model.WorkOrder) error {
			t, err := statemachine.Fire(o, statemachine.CommandStart, statemachine.Input{Expected: input.ExpectedState, Actor: user})
			if err != nil {
				return err
			}

			now := uc.now()
			movements, err = uc.deductStock(ctx, o, user, now)
			if err != nil {
				return err
			}

			if !o.HasTechnician() {
				technicianID := user.UserID
				o.TechnicianID = &technicianID
			}
			o.State = t.To
			o.StartedBy = &user.UserID
			o.StartedAt = &now
			return uc.save(ctx, o)
		})
	})
	if err != nil {
		return nil, err
	}
	uc.countMovements(movements)
	return order, nil
}

func (uc *workOrderUseCase) deductStock(ctx context.Context, o *model.WorkOrder, user auth.UserContext, now time.Time) ([]model.InventoryMovement, error) {
	lines := o.StockLines()
	if len(lines) == 0 {
		return nil, nil
	}

	demand := map[int64]int{}
	var partIDs []int64
	for _, l := range lines {
		if _, seen := demand[*l.PartID]; !seen {
			partIDs = append(partIDs, *l.PartID)
		}
		demand[*l.PartID] = addQuantity(demand[*l.PartID], l.Quantity)
	}
	sort.Slice(partIDs, func(i, j int) bool { return partIDs[i] < partIDs[j] })

	stock, err := uc.stock.LockByParts(ctx, partIDs)
	if err != nil {
		return nil, apperror.Internal("lock part stock", err)
	}

	var shortages []apperror.Shortage
	for _, id := range partIDs {
		if available := stock[id].Quantity; available < demand[id] {
			shortages = append(shortages, apperror.Shortage{PartID: id, Required: demand[id], Available: available})
		}
	}
	if len(shortages) > 0 {
		return nil, apperror.InsufficientStock(shortages)
	}

	movements := make([]model.InventoryMovement, 0, len(lines))
	for _, l := range lines {
		s := stock[*l.PartID]
		orderID, lineID := o.ID, l.ID
		m := model.InventoryMovement{
			PartID:      s.PartID,
			OrderID:     &orderID,
			OrderLineID: &lineID,
			Type:        model.MovementDeduction,
			Quantity:    l.Quantity,
			StockBefore: s.Quantity,
			StockAfter:  s.Quantity - l.Quantity,
			Reason:      fmt.Sprintf("work order %s started", o.OrderNumber),
			CreatedBy:   user.UserID,
			CreatedAt:   now,
		}
		if err := uc.stock.ApplyMovement(ctx, &m); err != nil {
			return nil, apperror.Internal("deduct stock", err)
		}
		s.Quantity = m.StockAfter
		movements = append(movements, m)
	}
	return movements, nil
}

// addQuantity sums without wrapping; a saturated demand is simply short.
func addQuantity(a, b int) int {
	if b > 0 && a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

// Cancel ends the order. Leaving in progress returns or scraps exactly what
// start deducted, per line, as the caller's dispositions say.
func (uc *workOrderUseCase) Cancel(ctx context.Context, input *dto.CancelInput) (*model.WorkOrder, error) {
	var movements []model.InventoryMovement
	order, err := uc.execute(ctx, string(statemachine.CommandCancel), input.OrderID, workorder.EventCancelled, func(ctx context.Context) (*model.WorkOrder, error) {
		user := auth.GetUser(ctx)
		if err := permit(user, auth.ActionCancel); err != nil {
			return nil, err
		}
		input.Reason = strings.TrimSpace(input.Reason)
		if err := apperror.ValidateStruct(input); err != nil {
			return nil, err
		}
		return uc.locked(ctx, input.OrderID, func(ctx context.Context, o *model.WorkOrder) error {
			t, err := statemachine.Fire(o, statemachine.CommandCancel, statemachine.Input{Expected: input.ExpectedState, Actor: user, Reason: input.Reason})
			if err != nil {
				return err
			}

			now := uc.now()
			record := &model.CancellationRecord{
				OrderID:       o.ID,
				Reason:        input.Reason,
				CancelledFrom: o.State,
				CreatedBy:     user.UserID,
				CreatedAt:     now,
				Dispositions:  []model.LineDisposition{},
			}

			if o.State == model.StateInProgress {
				record.Dispositions, movements, err = uc.reconcile(ctx, o, input.Dispositions, user, now)
				if err != nil {
					return err
				}
			} else if len(input.Dispositions) > 0 {
				return apperror.ValidationFields(
					fmt.Sprintf("nothing was deducted for an order in state %s, dispositions are not accepted", o.State),
					map[string]string{"dispositions": "empty"},
				)
			}

			if err := uc.repo.CreateCancellation(ctx, record); err != nil {
				return apperror.Internal("record cancellation", err)
			}
			o.State = t.To
			o.CancelledBy = &user.UserID
			o.CancelledAt = &now
			return uc.save(ctx, o)
		})
	})
	if err != nil {
		return nil, err
	}
	uc.countMovements(movements)
	return order, nil
}

// reconcile validates the dispositions as a whole against the deductions on
// record, then writes one return and one scrap movement per line as needed.
func (uc *workOrderUseCase) reconcile(ctx context.Context, o *model.WorkOrder, in []dto.DispositionInput, user auth.UserContext, now time.Time) ([]model.LineDisposition, []model.InventoryMovement, error) {
	deductions, err := uc.stock.ListMovements(ctx, &invdto.MovementFilters{OrderID: o.ID, Type: model.MovementDeduction})
	if err != nil {
		return nil, nil, apperror.Internal("load deductions", err)
	}
	deducted := map[int64]int{}
	partOf := map[int64]int64{}
	for _, m := range deductions {
		if m.OrderLineID == nil {
			continue
		}
		deducted[*m.OrderLineID] += m.Quantity
		partOf[*m.OrderLineID] = m.PartID
	}

	fields := map[string]string{}
	seen := map[int64]bool{}
	for i, d := range in {
		key := fmt.Sprintf("dispositions[%d]", i)
		qty, wasDeducted := deducted[d.OrderLineID]
		switch {
		case seen[d.OrderLineID]:
			fields[key] = "duplicate line"
		case !wasDeducted:
			fields[key] = "line had no stock deducted"
		case d.ReturnableQty < 0 || d.ScrapQty < 0:
			fields[key] = "quantities must not be negative"
		case d.ReturnableQty+d.ScrapQty != qty:
			fields[key] = fmt.Sprintf("returnable_qty + scrap_qty must equal %d", qty)
		case d.ScrapQty > 0 && strings.TrimSpace(d.ScrapReason) == "":
			fields[key+".scrap_reason"] = "required"
		}
		seen[d.OrderLineID] = true
	}
	for lineID := range deducted {
		if !seen[lineID] {
			fields[fmt.Sprintf("line %d", lineID)] = "disposition missing"
		}
	}
	if len(fields) > 0 {
		return nil, nil, apperror.ValidationFields("invalid cancellation dispositions", fields)
	}
	if len(in) == 0 {
		return []model.LineDisposition{}, nil, nil
	}

	ordered := append([]dto.DispositionInput(nil), in...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].OrderLineID < ordered[j].OrderLineID })
	partIDs := make([]int64, 0, len(ordered))
	for _, d := range ordered {
		partIDs = append(partIDs, partOf[d.OrderLineID])
	}

	stock, err := uc.stock.LockByParts(ctx, partIDs)
	if err != nil {
		return nil, nil, apperror.Internal("lock part stock", err)
	}

	dispositions := make([]model.LineDisposition, 0, len(ordered))
	var movements []model.InventoryMovement
	for _, d := range ordered {
		partID := partOf[d.OrderLineID]
		s := stock[partID]
		orderID, lineID := o.ID, d.OrderLineID
		scrapReason := strings.TrimSpace(d.ScrapReason)

		if d.ReturnableQty > 0 {
			m := model.InventoryMovement{
				PartID:      partID,
				OrderID:     &orderID,
				OrderLineID: &lineID,
				Type:        model.MovementReturn,
				Quantity:    d.ReturnableQty,
				StockBefore: s.Quantity,
				StockAfter:  s.Quantity + d.ReturnableQty,
				Reason:      fmt.Sprintf("work order %s cancelled", o.OrderNumber),
				CreatedBy:   user.UserID,
				CreatedAt:   now,
			}
			if err := uc.stock.ApplyMovement(ctx, &m); err != nil {
				return nil, nil, apperror.Internal("return stock", err)
			}
			s.Quantity = m.StockAfter
			movements = append(movements, m)
		}
		if d.ScrapQty > 0 {
			m := model.InventoryMovement{
				PartID:      partID,
				OrderID:     &orderID,
				OrderLineID: &lineID,
				Type:        model.MovementScrap,
				Quantity:    d.ScrapQty,
				StockBefore: s.Quantity,
				StockAfter:  s.Quantity,
				Reason:      scrapReason,
				CreatedBy:   user.UserID,
				CreatedAt:   now,
			}
			if err := uc.stock.ApplyMovement(ctx, &m); err != nil {
				return nil, nil, apperror.Internal("record scrap", err)
			}
			movements = append(movements, m)
		}

		dispositions = append(dispositions, model.LineDisposition{
			OrderLineID:   d.OrderLineID,
			PartID:        partID,
			DeductedQty:   d.ReturnableQty + d.ScrapQty,
			ReturnableQty: d.ReturnableQty,
			ScrapQty:      d.ScrapQty,
			ScrapReason:   scrapReason,
		})
	}
	return dispositions, movements, nil
}

func (uc *workOrderUseCase) countMovements(movements []model.InventoryMovement) {
	for _, m := range movements {
		uc.metrics.AddMovement(string(m.Type))
	}
}
