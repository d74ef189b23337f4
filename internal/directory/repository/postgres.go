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

func (r *PGRepository) FindClient(ctx context.Context, id int64) (*model.Client, error) {
	var c model.Client
	if err := r.get(ctx, &c, `SELECT id, name FROM clients WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get client %d: %w", id, err)
	}
	return &c, nil
}

func (r *PGRepository) FindVehicle(ctx context.Context, id int64) (*model.Vehicle, error) {
	var v model.Vehicle
	if err := r.get(ctx, &v, `SELECT id, client_id, plate FROM vehicles WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get vehicle %d: %w", id, err)
	}
	return &v, nil
}

func (r *PGRepository) FindUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := r.get(ctx, &u, `SELECT id, name, role, is_active FROM users WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &u, nil
}

func (r *PGRepository) get(ctx context.Context, dst any, query string, args ...any) error {
	q := postgres.Conn(ctx, r.DB)
	return sqlx.GetContext(ctx, q, dst, q.Rebind(query), args...)
}
