package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/omnipos-workshop-service/internal/apperror"
	"github.com/fekuna/omnipos-workshop-service/internal/auth"
	"github.com/fekuna/omnipos-workshop-service/internal/catalog"
	"github.com/fekuna/omnipos-workshop-service/internal/directory"
	"github.com/fekuna/omnipos-workshop-service/internal/inventory"
	"github.com/fekuna/omnipos-workshop-service/internal/model"
	"github.com/fekuna/omnipos-workshop-service/internal/sale"
	"github.com/fekuna/omnipos-workshop-service/internal/workorder"
	"github.com/fekuna/omnipos-workshop-service/internal/workorder/dto"
	"github.com/fekuna/omnipos-workshop-service/internal/workorder/statemachine"
	"github.com/fekuna/omnipos-workshop-service/pkg/cache"
	"github.com/fekuna/omnipos-workshop-service/pkg/database/postgres"
	"github.com/fekuna/omnipos-workshop-service/pkg/logger"
	"github.com/fekuna/omnipos-workshop-service/pkg/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Deps groups the collaborators of the work-order usecase. Locker, Publisher
// and Metrics are optional.
type Deps struct {
	Repo      workorder.Repository
	Stock     inventory.Repository
	Catalog   catalog.UseCase
	Directory directory.Repository
	Sales     sale.Linker
	Tx        *postgres.TxManager
	Locker    cache.Locker
	LockTTL   time.Duration
	Publisher workorder.Publisher
	Metrics   *metrics.Metrics
	Logger    logger.ZapLogger
}

type workOrderUseCase struct {
	repo      workorder.Repository
	stock     inventory.Repository
	catalog   catalog.UseCase
	directory directory.Repository
	sales     sale.Linker
	tx        *postgres.TxManager
	locker    cache.Locker
	lockTTL   time.Duration
	publisher workorder.Publisher
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	logger    logger.ZapLogger
	now       func() time.Time
}

func NewWorkOrderUseCase(d Deps) workorder.UseCase {
	sales := d.Sales
	if sales == nil {
		sales = sale.Disabled()
	}
	lockTTL := d.LockTTL
	if lockTTL <= 0 {
		lockTTL = 10 * time.Second
	}
	return &workOrderUseCase{
		repo:      d.Repo,
		stock:     d.Stock,
		catalog:   d.Catalog,
		directory: d.Directory,
		sales:     sales,
		tx:        d.Tx,
		locker:    d.Locker,
		lockTTL:   lockTTL,
		publisher: d.Publisher,
		metrics:   d.Metrics,
		tracer:    otel.Tracer("omnipos-workshop-service/workorder"),
		logger:    d.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func permit(user auth.UserContext, action auth.Action) error {
	if user.UserID == "" || !auth.Can(user.Role, action) {
		return apperror.Unauthorized(fmt.Sprintf("role %q may not perform %s", user.Role, action))
	}
	return nil
}

// execute wraps one command with a span, metrics, an outcome log line and,
// on success, the lifecycle event.
func (uc *workOrderUseCase) execute(ctx context.Context, command string, orderID int64, eventType string, fn func(ctx context.Context) (*model.WorkOrder, error)) (*model.WorkOrder, error) {
	started := time.Now()
	ctx, span := uc.tracer.Start(ctx, "workorder."+command, trace.WithAttributes(
		attribute.String("workorder.command", command),
		attribute.Int64("workorder.id", orderID),
	))
	defer span.End()

	order, err := fn(ctx)

	outcome := "ok"
	if err != nil {
		outcome = string(apperror.KindOf(err))
	}
	uc.metrics.ObserveCommand(command, outcome, started)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		fields := []zap.Field{zap.String("command", command), zap.Int64("order_id", orderID), zap.String("outcome", outcome), zap.Error(err)}
		if outcome == string(apperror.KindInternal) {
			uc.logger.Error("Work order command failed", fields...)
		} else {
			uc.logger.Info("Work order command rejected", fields...)
		}
		return nil, err
	}

	span.SetAttributes(attribute.String("workorder.state", string(order.State)))
	uc.logger.Info("Work order command applied",
		zap.String("command", command),
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("state", string(order.State)),
	)
	uc.publish(ctx, eventType, order)
	return order, nil
}

func (uc *workOrderUseCase) publish(ctx context.Context, eventType string, o *model.WorkOrder) {
	if uc.publisher == nil || eventType == "" {
		return
	}
	event := &workorder.Event{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Payload: workorder.EventPayload{
			OrderID:      o.ID,
			OrderNumber:  o.OrderNumber,
			State:        o.State,
			TechnicianID: o.TechnicianID,
			LinkedSaleID: o.LinkedSaleID,
			Actor:        auth.GetUser(ctx).UserID,
		},
		Timestamp: uc.now(),
	}
	if err := uc.publisher.Publish(ctx, event); err != nil {
		uc.logger.Warn("Failed to publish work order event",
			zap.String("event_type", eventType),
			zap.Int64("order_id", o.ID),
			zap.Error(err),
		)
	}
}

// locked runs fn against the order row inside one transaction. The row is
// locked before fn sees it; a redis lock, when configured, serializes the
// order across instances first.
func (uc *workOrderUseCase) locked(ctx context.Context, orderID int64, fn func(ctx context.Context, o *model.WorkOrder) error) (*model.WorkOrder, error) {
	if uc.locker != nil {
		key := fmt.Sprintf("lock:workorder:%d", orderID)
		release, err := uc.locker.Obtain(ctx, key, uc.lockTTL)
		if errors.Is(err, cache.ErrLockNotObtained) {
			return nil, apperror.Conflict("order is being changed by another request, re-fetch and retry")
		}
		if err != nil {
			return nil, apperror.Internal("acquire order lock", err)
		}
		defer func() {
			if err := release(context.Background()); err != nil {
				uc.logger.Warn("Failed to release order lock", zap.String("key", key), zap.Error(err))
			}
		}()
	}

	var order *model.WorkOrder
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := uc.repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return apperror.Internal("load work order", err)
		}
		if o == nil {
			return apperror.NotFound("work order", orderID)
		}
		if err := fn(ctx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// save persists the order, keeping infrastructure failures out of the taxonomy.
func (uc *workOrderUseCase) save(ctx context.Context, o *model.WorkOrder) error {
	o.UpdatedAt = uc.now()
	if err := uc.repo.Update(ctx, o); err != nil {
		return apperror.Internal("save work order", err)
	}
	return nil
}

func (uc *workOrderUseCase) CreateOrder(ctx context.Context, input *dto.CreateOrderInput) (*model.WorkOrder, error) {
	return uc.execute(ctx, "create", 0, workorder.EventCreated, func(ctx context.Context) (*model.WorkOrder, error) {
		user := auth.GetUser(ctx)
		if err := permit(user, auth.ActionCreateOrder); err != nil {
			return nil, err
		}
		input.DiagnosticNotes = strings.TrimSpace(input.DiagnosticNotes)
		input.ClientObservations = strings.TrimSpace(input.ClientObservations)
		if err := apperror.ValidateStruct(input); err != nil {
			return nil, err
		}
		if err := uc.checkParties(ctx, input.ClientID, input.VehicleID, input.TechnicianID); err != nil {
			return nil, err
		}

		lines, services, err := uc.buildLines(ctx, input.Lines)
		if err != nil {
			return nil, err
		}
		if err := partsWarning(services, lines, input.ClientSuppliedParts, input.AcknowledgeWarnings); err != nil {
			return nil, err
		}

		priority := input.Priority
		if priority == "" {
			priority = model.PriorityNormal
		}
		technicianID := input.TechnicianID
		if technicianID != nil && *technicianID == "" {
			technicianID = nil
		}
		now := uc.now()
		order := &model.WorkOrder{
			ClientID:              input.ClientID,
			VehicleID:             input.VehicleID,
			TechnicianID:          technicianID,
			Priority:              priority,
			State:                 model.StatePending,
			RequiresAuthorization: input.RequiresAuthorization,
			ClientSuppliedParts:   input.ClientSuppliedParts,
			DiagnosticNotes:       input.DiagnosticNotes,
			ClientObservations:    input.ClientObservations,
			PromisedAt:            input.PromisedAt,
			CreatedBy:             user.UserID,
			CreatedAt:             now,
			UpdatedAt:             now,
			Lines:                 lines,
		}

		err = uc.tx.WithinTx(ctx, func(ctx context.Context) error {
			if err := uc.repo.Create(ctx, order); err != nil {
				return apperror.Internal("create work order", err)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return order, nil
	})
}

func (uc *workOrderUseCase) UpdateOrder(ctx context.Context, input *dto.UpdateOrderInput) (*model.WorkOrder, error) {
	return uc.execute(ctx, "update", input.OrderID, workorder.EventUpdated, func(ctx context.Context) (*model.WorkOrder, error) {
		user := auth.GetUser(ctx)
		if err := permit(user, auth.ActionUpdateOrder); err != nil {
			return nil, err
		}
		input.DiagnosticNotes = strings.TrimSpace(input.DiagnosticNotes)
		input.ClientObservations = strings.TrimSpace(input.ClientObservations)
		if err := apperror.ValidateStruct(input); err != nil {
			return nil, err
		}

		lines, services, err := uc.buildLines(ctx, input.Lines)
		if err != nil {
			return nil, err
		}
		if err := partsWarning(services, lines, input.ClientSuppliedParts, input.AcknowledgeWarnings); err != nil {
			return nil, err
		}

		return uc.locked(ctx, input.OrderID, func(ctx context.Context, o *model.WorkOrder) error {
			if err := statemachine.Check(o, input.ExpectedState); err != nil {
				return err
			}
			if o.State != model.StatePending {
				return apperror.IllegalTransition(fmt.Sprintf("only pending orders can be edited, order %s is %s", o.OrderNumber, o.State))
			}
			// Only signers may drop the sign-off requirement.
			if o.RequiresAuthorization && !input.RequiresAuthorization && !auth.Can(user.Role, auth.ActionAuthorize) {
				return apperror.Unauthorized("role may not waive authorization")
			}

			if input.Priority != "" {
				o.Priority = input.Priority
			}
			o.DiagnosticNotes = input.DiagnosticNotes
			o.ClientObservations = input.ClientObservations
			o.PromisedAt = input.PromisedAt
			o.ClientSuppliedParts = input.ClientSuppliedParts
			o.RequiresAuthorization = input.RequiresAuthorization
			// An edit invalidates any earlier sign-off.
			o.Authorized = nil
			o.AuthorizedBy = nil
			o.AuthorizedAt = nil

			if err := uc.repo.ReplaceLines(ctx, o.ID, lines); err != nil {
				return apperror.Internal("replace order lines", err)
			}
			o.Lines = lines
			return uc.save(ctx, o)
		})
	})
}

func (uc *workOrderUseCase) GetOrder(ctx context.Context, id int64) (*model.WorkOrder, error) {
	if err := permit(auth.GetUser(ctx), auth.ActionViewOrder); err != nil {
		return nil, err
	}
	o, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, apperror.Internal("load work order", err)
	}
	if o == nil {
		return nil, apperror.NotFound("work order", id)
	}
	return o, nil
}

func (uc *workOrderUseCase) ListOrders(ctx context.Context, filters *dto.OrderFilters) ([]model.WorkOrder, error) {
	if err := permit(auth.GetUser(ctx), auth.ActionViewOrder); err != nil {
		return nil, err
	}
	if filters.State != "" && !filters.State.Valid() {
		return nil, apperror.ValidationFields("unknown state", map[string]string{"state": "oneof"})
	}
	if filters.Limit <= 0 || filters.Limit > 200 {
		filters.Limit = 200
	}
	orders, err := uc.repo.FindAll(ctx, filters)
	if err != nil {
		return nil, apperror.Internal("list work orders", err)
	}
	return orders, nil
}

func (uc *workOrderUseCase) AssignTechnician(ctx context.Context, input *dto.AssignTechnicianInput) (*model.WorkOrder, error) {
	return uc.execute(ctx, "assign_technician", input.OrderID, workorder.EventTechnicianAssigned, func(ctx context.Context) (*model.WorkOrder, error) {
		user := auth.GetUser(ctx)
		if err := permit(user, auth.ActionAssignTechnician); err != nil {
			return nil, err
		}
		if err := apperror.ValidateStruct(input); err != nil {
			return nil, err
		}
		if user.Role == auth.RoleTechnician && input.TechnicianID != user.UserID {
			return nil, apperror.Unauthorized("technicians may only assign themselves")
		}
		if err := uc.checkTechnician(ctx, input.TechnicianID); err != nil {
			return nil, err
		}

		return uc.locked(ctx, input.OrderID, func(ctx context.Context, o *model.WorkOrder) error {
			if err := statemachine.Check(o, input.ExpectedState); err != nil {
				return err
			}
			if o.State != model.StatePending && o.State != model.StateAwaitingAuthorization {
				return apperror.IllegalTransition(fmt.Sprintf("cannot reassign an order in state %s", o.State))
			}
			if user.Role == auth.RoleTechnician && o.HasTechnician() && *o.TechnicianID != user.UserID {
				return apperror.Unauthorized("order is assigned to another technician")
			}
			technicianID := input.TechnicianID
			o.TechnicianID = &technicianID
			return uc.save(ctx, o)
		})
	})
}

func (uc *workOrderUseCase) RequestAuthorization(ctx context.Context, input *dto.TransitionInput) (*model.WorkOrder, error) {
	return uc.execute(ctx, "request_authorization", input.OrderID, workorder.EventAuthorizationRequested, func(ctx context.Context) (*model.WorkOrder, error) {
		user := auth.GetUser(ctx)
		if err := permit(user, auth.ActionRequestAuthorization); err != nil {
			return nil, err
		}
		if err := apperror.ValidateStruct(input); err != nil {
			return nil, err
		}
		return uc.locked(ctx, input.OrderID, func(ctx context.Context, o *model.WorkOrder) error {
			t, err := statemachine.Fire(o, statemachine.CommandRequestAuthorization, statemachine.Input{Expected: input.ExpectedState, Actor: user})
			if err != nil {
				return err
			}
			o.State = t.To
			return uc.save(ctx, o)
		})
	})
}

func (uc *workOrderUseCase) Authorize(ctx context.Context, input *dto.AuthorizeInput) (*model.WorkOrder, error) {
	command, eventType := statemachine.CommandReject, workorder.EventRejected
	if input.Approved {
		command, eventType = statemachine.CommandApprove, workorder.EventAuthorized
	}
	return uc.execute(ctx, string(command), input.OrderID, eventType, func(ctx context.Context) (*model.WorkOrder, error) {
		user := auth.GetUser(ctx)
		if err := permit(user, auth.ActionAuthorize); err != nil {
			return nil, err
		}
		if err := apperror.ValidateStruct(input); err != nil {
			return nil, err
		}
		return uc.locked(ctx, input.OrderID, func(ctx context.Context, o *model.WorkOrder) error {
			t, err := statemachine.Fire(o, command, statemachine.Input{Actor: user})
			if err != nil {
				return err
			}

			now := uc.now()
			approved := input.Approved
			o.State = t.To
			o.Authorized = &approved
			o.AuthorizedBy = &user.UserID
			o.AuthorizedAt = &now

			event := &model.AuthorizationEvent{
				OrderID:   o.ID,
				Approved:  approved,
				Note:      strings.TrimSpace(input.Note),
				CreatedBy: user.UserID,
				CreatedAt: now,
			}
			if err := uc.repo.CreateAuthorizationEvent(ctx, event); err != nil {
				return apperror.Internal("record authorization event", err)
			}
			return uc.save(ctx, o)
		})
	})
}

func (uc *workOrderUseCase) ListAuthorizationEvents(ctx context.Context, orderID int64) ([]model.AuthorizationEvent, error) {
	if _, err := uc.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	events, err := uc.repo.ListAuthorizationEvents(ctx, orderID)
	if err != nil {
		return nil, apperror.Internal("list authorization events", err)
	}
	return events, nil
}

func (uc *workOrderUseCase) Finish(ctx context.Context, input *dto.TransitionInput) (*model.WorkOrder, error) {
	return uc.complete(ctx, input, statemachine.CommandFinish, auth.ActionFinish, workorder.EventFinished, func(o *model.WorkOrder, user auth.UserContext, now time.Time) {
		o.FinishedBy = &user.UserID
		o.FinishedAt = &now
	})
}

func (uc *workOrderUseCase) Deliver(ctx context.Context, input *dto.TransitionInput) (*model.WorkOrder, error) {
	return uc.complete(ctx, input, statemachine.CommandDeliver, auth.ActionDeliver, workorder.EventDelivered, func(o *model.WorkOrder, user auth.UserContext, now time.Time) {
		o.DeliveredBy = &user.UserID
		o.DeliveredAt = &now
	})
}

// complete runs finish or deliver. When the caller asks for a sale it is
// created after the state change commits; a linkage failure returns the
// committed order together with the error.
func (uc *workOrderUseCase) complete(ctx context.Context, input *dto.TransitionInput, command statemachine.Command, action auth.Action, eventType string, stamp func(*model.WorkOrder, auth.UserContext, time.Time)) (*model.WorkOrder, error) {
	order, err := uc.execute(ctx, string(command), input.OrderID, eventType, func(ctx context.Context) (*model.WorkOrder, error) {
		user := auth.GetUser(ctx)
		if err := permit(user, action); err != nil {
			return nil, err
		}
		if input.CreateSale {
			if err := permit(user, auth.ActionCreateSale); err != nil {
				return nil, err
			}
		}
		if err := apperror.ValidateStruct(input); err != nil {
			return nil, err
		}
		return uc.locked(ctx, input.OrderID, func(ctx context.Context, o *model.WorkOrder) error {
			t, err := statemachine.Fire(o, command, statemachine.Input{Expected: input.ExpectedState, Actor: user})
			if err != nil {
				return err
			}
			o.State = t.To
			stamp(o, user, uc.now())
			return uc.save(ctx, o)
		})
	})
	if err != nil || !input.CreateSale {
		return order, err
	}

	linked, err := uc.CreateSale(ctx, order.ID)
	if err != nil {
		return order, err
	}
	return linked, nil
}

func (uc *workOrderUseCase) GetCancellation(ctx context.Context, orderID int64) (*model.CancellationRecord, error) {
	if _, err := uc.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	rec, err := uc.repo.FindCancellation(ctx, orderID)
	if err != nil {
		return nil, apperror.Internal("load cancellation", err)
	}
	if rec == nil {
		return nil, apperror.NotFound("cancellation of work order", orderID)
	}
	return rec, nil
}

// CreateSale calls the sale service while the order row is locked, so a
// concurrent caller cannot create a second sale. Nothing is written when the
// call fails.
func (uc *workOrderUseCase) CreateSale(ctx context.Context, orderID int64) (*model.WorkOrder, error) {
	return uc.execute(ctx, "create_sale", orderID, workorder.EventSaleLinked, func(ctx context.Context) (*model.WorkOrder, error) {
		if err := permit(auth.GetUser(ctx), auth.ActionCreateSale); err != nil {
			return nil, err
		}
		return uc.locked(ctx, orderID, func(ctx context.Context, o *model.WorkOrder) error {
			if err := statemachine.CanLinkSale(o); err != nil {
				return err
			}

			saleID, err := uc.sales.CreateFromOrder(ctx, o)
			if err != nil {
				return apperror.SaleLinkage(err)
			}

			ok, err := uc.repo.SetLinkedSale(ctx, o.ID, saleID)
			if err != nil {
				return apperror.Internal("store linked sale", err)
			}
			if !ok {
				return apperror.IllegalTransition(fmt.Sprintf("order %s is already linked to a sale", o.OrderNumber))
			}
			o.LinkedSaleID = &saleID
			return nil
		})
	})
}
