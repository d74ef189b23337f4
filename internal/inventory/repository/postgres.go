package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/fekuna/omnipos-workshop-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-workshop-service/internal/model"
	"github.com/fekuna/omnipos-workshop-service/pkg/database/postgres"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) GetByPart(ctx context.Context, partID int64) (*model.PartStock, error) {
	q := postgres.Conn(ctx, r.DB)
	var s model.PartStock
	err := sqlx.GetContext(ctx, q, &s, q.Rebind(`SELECT part_id, quantity, updated_at FROM part_stock WHERE part_id = ?`), partID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock of part %d: %w", partID, err)
	}
	return &s, nil
}

func (r *PGRepository) LockByParts(ctx context.Context, partIDs []int64) (map[int64]*model.PartStock, error) {
	ids := append([]int64(nil), partIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	q := postgres.Conn(ctx, r.DB)
	ensure := q.Rebind(`INSERT INTO part_stock (part_id, quantity, updated_at) VALUES (?, 0, CURRENT_TIMESTAMP) ON CONFLICT (part_id) DO NOTHING`)
	lock := q.Rebind(`SELECT part_id, quantity, updated_at FROM part_stock WHERE part_id = ?` + postgres.ForUpdate(q))

	out := make(map[int64]*model.PartStock, len(ids))
	for _, id := range ids {
		if _, seen := out[id]; seen {
			continue
		}
		if _, err := q.ExecContext(ctx, ensure, id); err != nil {
			return nil, fmt.Errorf("ensure stock row for part %d: %w", id, err)
		}
		var s model.PartStock
		if err := sqlx.GetContext(ctx, q, &s, lock, id); err != nil {
			return nil, fmt.Errorf("lock stock of part %d: %w", id, err)
		}
		out[id] = &s
	}
	return out, nil
}

func (r *PGRepository) ApplyMovement(ctx context.Context, m *model.InventoryMovement) error {
	if !m.Balanced() {
		return fmt.Errorf("unbalanced %s movement for part %d: %d -> %d by %d",
			m.Type, m.PartID, m.StockBefore, m.StockAfter, m.Quantity)
	}
	q := postgres.Conn(ctx, r.DB)

	if m.StockAfter != m.StockBefore {
		res, err := q.ExecContext(ctx,
			q.Rebind(`UPDATE part_stock SET quantity = ?, updated_at = ? WHERE part_id = ? AND quantity = ?`),
			m.StockAfter, m.CreatedAt, m.PartID, m.StockBefore)
		if err != nil {
			return fmt.Errorf("update stock of part %d: %w", m.PartID, err)
		}
		if err := postgres.ExpectRows(res, 1); err != nil {
			return fmt.Errorf("stock of part %d moved away from %d: %w", m.PartID, m.StockBefore, err)
		}
	}

	err := q.QueryRowxContext(ctx, q.Rebind(`
        INSERT INTO inventory_movements (
            part_id, order_id, order_line_id, movement_type, quantity,
            stock_before, stock_after, reason, created_by, created_at
        )
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        RETURNING id
    `), m.PartID, m.OrderID, m.OrderLineID, m.Type, m.Quantity,
		m.StockBefore, m.StockAfter, m.Reason, m.CreatedBy, m.CreatedAt,
	).Scan(&m.ID)
	if err != nil {
		return fmt.Errorf("insert %s movement for part %d: %w", m.Type, m.PartID, err)
	}
	return nil
}

func (r *PGRepository) ListMovements(ctx context.Context, f *dto.MovementFilters) ([]model.InventoryMovement, error) {
	q := postgres.Conn(ctx, r.DB)
	conditions := []string{}
	args := []interface{}{}

	if f.PartID > 0 {
		conditions = append(conditions, "part_id = ?")
		args = append(args, f.PartID)
	}
	if f.OrderID > 0 {
		conditions = append(conditions, "order_id = ?")
		args = append(args, f.OrderID)
	}
	if f.Type != "" {
		conditions = append(conditions, "movement_type = ?")
		args = append(args, f.Type)
	}

	query := `SELECT id, part_id, order_id, order_line_id, movement_type, quantity,
        stock_before, stock_after, reason, created_by, created_at
        FROM inventory_movements`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	items := []model.InventoryMovement{}
	if err := sqlx.SelectContext(ctx, q, &items, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return items, nil
}

func (r *PGRepository) RecordReceipt(ctx context.Context, receipt *model.StockReceipt) (bool, error) {
	q := postgres.Conn(ctx, r.DB)
	res, err := q.ExecContext(ctx,
		q.Rebind(`INSERT INTO stock_receipts (receipt_id, event_id, created_by, created_at) VALUES (?, ?, ?, ?) ON CONFLICT (receipt_id) DO NOTHING`),
		receipt.ReceiptID, receipt.EventID, receipt.CreatedBy, receipt.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("record receipt %s: %w", receipt.ReceiptID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record receipt %s: %w", receipt.ReceiptID, err)
	}
	return n == 1, nil
}
