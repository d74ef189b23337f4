package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fekuna/omnipos-workshop-service/internal/model"
	"github.com/fekuna/omnipos-workshop-service/internal/workorder/dto"
	"github.com/fekuna/omnipos-workshop-service/pkg/database/postgres"
	"github.com/jmoiron/sqlx"
)

const orderColumns = `id, order_number, client_id, vehicle_id, technician_id, priority, state,
	requires_authorization, authorized, client_supplied_parts, diagnostic_notes,
	client_observations, promised_at, linked_sale_id, created_by, authorized_by,
	authorized_at, started_by, started_at, finished_by, finished_at, delivered_by,
	delivered_at, cancelled_by, cancelled_at, created_at, updated_at`

const lineColumns = `id, order_id, kind, service_id, part_id, description, estimated_cost,
	quantity, unit_price, position`

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) conn(ctx context.Context) sqlx.ExtContext {
	return postgres.Conn(ctx, r.DB)
}

func (r *PGRepository) Create(ctx context.Context, o *model.WorkOrder) error {
	q := r.conn(ctx)
	query := q.Rebind(`
        INSERT INTO work_orders (
            client_id, vehicle_id, technician_id, priority, state,
            requires_authorization, authorized, client_supplied_parts,
            diagnostic_notes, client_observations, promised_at, created_by,
            created_at, updated_at
        )
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        RETURNING id
    `)
	err := q.QueryRowxContext(ctx, query,
		o.ClientID, o.VehicleID, o.TechnicianID, o.Priority, o.State,
		o.RequiresAuthorization, o.Authorized, o.ClientSuppliedParts,
		o.DiagnosticNotes, o.ClientObservations, o.PromisedAt, o.CreatedBy,
		o.CreatedAt, o.UpdatedAt,
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("insert work order: %w", err)
	}

	o.OrderNumber = model.FormatOrderNumber(o.ID)
	if _, err := q.ExecContext(ctx, q.Rebind(`UPDATE work_orders SET order_number = ? WHERE id = ?`), o.OrderNumber, o.ID); err != nil {
		return fmt.Errorf("set order number: %w", err)
	}

	return r.insertLines(ctx, q, o.ID, o.Lines)
}

func (r *PGRepository) insertLines(ctx context.Context, q sqlx.ExtContext, orderID int64, lines []model.OrderLine) error {
	query := q.Rebind(`
        INSERT INTO work_order_lines (
            order_id, kind, service_id, part_id, description, estimated_cost,
            quantity, unit_price, position
        )
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        RETURNING id
    `)
	for i := range lines {
		l := &lines[i]
		l.OrderID = orderID
		l.Position = i
		err := q.QueryRowxContext(ctx, query,
			l.OrderID, l.Kind, l.ServiceID, l.PartID, l.Description, l.EstimatedCost,
			l.Quantity, l.UnitPrice, l.Position,
		).Scan(&l.ID)
		if err != nil {
			return fmt.Errorf("insert order line %d: %w", i, err)
		}
	}
	return nil
}

func (r *PGRepository) FindByID(ctx context.Context, id int64) (*model.WorkOrder, error) {
	return r.find(ctx, id, "")
}

func (r *PGRepository) FindByIDForUpdate(ctx context.Context, id int64) (*model.WorkOrder, error) {
	return r.find(ctx, id, postgres.ForUpdate(r.conn(ctx)))
}

func (r *PGRepository) find(ctx context.Context, id int64, suffix string) (*model.WorkOrder, error) {
	q := r.conn(ctx)
	var o model.WorkOrder
	err := sqlx.GetContext(ctx, q, &o, q.Rebind(`SELECT `+orderColumns+` FROM work_orders WHERE id = ?`+suffix), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get work order %d: %w", id, err)
	}

	lines, err := r.lines(ctx, q, id)
	if err != nil {
		return nil, err
	}
	o.Lines = lines
	return &o, nil
}

func (r *PGRepository) lines(ctx context.Context, q sqlx.ExtContext, orderID int64) ([]model.OrderLine, error) {
	var lines []model.OrderLine
	err := sqlx.SelectContext(ctx, q, &lines,
		q.Rebind(`SELECT `+lineColumns+` FROM work_order_lines WHERE order_id = ? ORDER BY position, id`), orderID)
	if err != nil {
		return nil, fmt.Errorf("list lines of order %d: %w", orderID, err)
	}
	return lines, nil
}

// FindAll returns orders with their lines, newest first.
func (r *PGRepository) FindAll(ctx context.Context, f *dto.OrderFilters) ([]model.WorkOrder, error) {
	q := r.conn(ctx)
	conditions := []string{}
	args := []interface{}{}

	if f.State != "" {
		conditions = append(conditions, "state = ?")
		args = append(args, f.State)
	}
	if f.TechnicianID != "" {
		conditions = append(conditions, "technician_id = ?")
		args = append(args, f.TechnicianID)
	}
	if f.ClientID > 0 {
		conditions = append(conditions, "client_id = ?")
		args = append(args, f.ClientID)
	}

	query := `SELECT ` + orderColumns + ` FROM work_orders`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	orders := []model.WorkOrder{}
	if err := sqlx.SelectContext(ctx, q, &orders, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list work orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}
	linesQuery, linesArgs, err := sqlx.In(`SELECT `+lineColumns+` FROM work_order_lines WHERE order_id IN (?) ORDER BY order_id, position, id`, ids)
	if err != nil {
		return nil, fmt.Errorf("build line query: %w", err)
	}
	var lines []model.OrderLine
	if err := sqlx.SelectContext(ctx, q, &lines, q.Rebind(linesQuery), linesArgs...); err != nil {
		return nil, fmt.Errorf("list lines of work orders: %w", err)
	}
	for _, l := range lines {
		i := index[l.OrderID]
		orders[i].Lines = append(orders[i].Lines, l)
	}
	return orders, nil
}

func (r *PGRepository) Update(ctx context.Context, o *model.WorkOrder) error {
	query := `
        UPDATE work_orders SET
            technician_id = :technician_id,
            priority = :priority,
            state = :state,
            requires_authorization = :requires_authorization,
            authorized = :authorized,
            client_supplied_parts = :client_supplied_parts,
            diagnostic_notes = :diagnostic_notes,
            client_observations = :client_observations,
            promised_at = :promised_at,
            authorized_by = :authorized_by,
            authorized_at = :authorized_at,
            started_by = :started_by,
            started_at = :started_at,
            finished_by = :finished_by,
            finished_at = :finished_at,
            delivered_by = :delivered_by,
            delivered_at = :delivered_at,
            cancelled_by = :cancelled_by,
            cancelled_at = :cancelled_at,
            updated_at = :updated_at
        WHERE id = :id
    `
	res, err := sqlx.NamedExecContext(ctx, r.conn(ctx), query, o)
	if err != nil {
		return fmt.Errorf("update work order %d: %w", o.ID, err)
	}
	if err := postgres.ExpectRows(res, 1); err != nil {
		return fmt.Errorf("update work order %d: %w", o.ID, err)
	}
	return nil
}

func (r *PGRepository) ReplaceLines(ctx context.Context, orderID int64, lines []model.OrderLine) error {
	q := r.conn(ctx)
	if _, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM work_order_lines WHERE order_id = ?`), orderID); err != nil {
		return fmt.Errorf("delete lines of order %d: %w", orderID, err)
	}
	return r.insertLines(ctx, q, orderID, lines)
}

func (r *PGRepository) SetLinkedSale(ctx context.Context, orderID int64, saleID string) (bool, error) {
	q := r.conn(ctx)
	res, err := q.ExecContext(ctx,
		q.Rebind(`UPDATE work_orders SET linked_sale_id = ? WHERE id = ? AND linked_sale_id IS NULL`),
		saleID, orderID)
	if err != nil {
		return false, fmt.Errorf("link sale to order %d: %w", orderID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("link sale to order %d: %w", orderID, err)
	}
	return n == 1, nil
}

func (r *PGRepository) CreateAuthorizationEvent(ctx context.Context, e *model.AuthorizationEvent) error {
	q := r.conn(ctx)
	err := q.QueryRowxContext(ctx, q.Rebind(`
        INSERT INTO authorization_events (order_id, approved, note, created_by, created_at)
        VALUES (?, ?, ?, ?, ?)
        RETURNING id
    `), e.OrderID, e.Approved, e.Note, e.CreatedBy, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("insert authorization event: %w", err)
	}
	return nil
}

func (r *PGRepository) ListAuthorizationEvents(ctx context.Context, orderID int64) ([]model.AuthorizationEvent, error) {
	q := r.conn(ctx)
	events := []model.AuthorizationEvent{}
	err := sqlx.SelectContext(ctx, q, &events, q.Rebind(`
        SELECT id, order_id, approved, note, created_by, created_at
        FROM authorization_events WHERE order_id = ? ORDER BY id
    `), orderID)
	if err != nil {
		return nil, fmt.Errorf("list authorization events of order %d: %w", orderID, err)
	}
	return events, nil
}

func (r *PGRepository) CreateCancellation(ctx context.Context, rec *model.CancellationRecord) error {
	q := r.conn(ctx)
	err := q.QueryRowxContext(ctx, q.Rebind(`
        INSERT INTO order_cancellations (order_id, reason, cancelled_from, created_by, created_at)
        VALUES (?, ?, ?, ?, ?)
        RETURNING id
    `), rec.OrderID, rec.Reason, rec.CancelledFrom, rec.CreatedBy, rec.CreatedAt).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("insert cancellation of order %d: %w", rec.OrderID, err)
	}

	query := q.Rebind(`
        INSERT INTO cancellation_dispositions (
            cancellation_id, order_line_id, part_id, deducted_qty,
            returnable_qty, scrap_qty, scrap_reason
        )
        VALUES (?, ?, ?, ?, ?, ?, ?)
        RETURNING id
    `)
	for i := range rec.Dispositions {
		d := &rec.Dispositions[i]
		d.CancellationID = rec.ID
		err := q.QueryRowxContext(ctx, query,
			d.CancellationID, d.OrderLineID, d.PartID, d.DeductedQty,
			d.ReturnableQty, d.ScrapQty, d.ScrapReason,
		).Scan(&d.ID)
		if err != nil {
			return fmt.Errorf("insert disposition for line %d: %w", d.OrderLineID, err)
		}
	}
	return nil
}

func (r *PGRepository) FindCancellation(ctx context.Context, orderID int64) (*model.CancellationRecord, error) {
	q := r.conn(ctx)
	var rec model.CancellationRecord
	err := sqlx.GetContext(ctx, q, &rec, q.Rebind(`
        SELECT id, order_id, reason, cancelled_from, created_by, created_at
        FROM order_cancellations WHERE order_id = ?
    `), orderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cancellation of order %d: %w", orderID, err)
	}

	rec.Dispositions = []model.LineDisposition{}
	err = sqlx.SelectContext(ctx, q, &rec.Dispositions, q.Rebind(`
        SELECT id, cancellation_id, order_line_id, part_id, deducted_qty,
               returnable_qty, scrap_qty, scrap_reason
        FROM cancellation_dispositions WHERE cancellation_id = ? ORDER BY order_line_id
    `), rec.ID)
	if err != nil {
		return nil, fmt.Errorf("list dispositions of order %d: %w", orderID, err)
	}
	return &rec, nil
}
