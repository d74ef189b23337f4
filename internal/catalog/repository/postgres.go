package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

func (r *PGRepository) FindService(ctx context.Context, id int64) (*model.CatalogService, error) {
	q := postgres.Conn(ctx, r.DB)
	var s model.CatalogService
	err := sqlx.GetContext(ctx, q, &s, q.Rebind(`
        SELECT id, name, price, requires_parts, is_active
        FROM catalog_services WHERE id = ?
    `), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get catalog service %d: %w", id, err)
	}
	return &s, nil
}

func (r *PGRepository) FindPart(ctx context.Context, id int64) (*model.CatalogPart, error) {
	q := postgres.Conn(ctx, r.DB)
	var p model.CatalogPart
	err := sqlx.GetContext(ctx, q, &p, q.Rebind(`
        SELECT id, sku, name, price, cost, is_active
        FROM catalog_parts WHERE id = ?
    `), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get catalog part %d: %w", id, err)
	}
	return &p, nil
}
