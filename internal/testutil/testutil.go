// Package testutil opens in-memory SQLite databases carrying the service
// schema and seeds directory and catalog rows for tests.
package testutil

import (
	"context"
	"testing"

	"github.com/fekuna/omnipos-workshop-service/migrations"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// SetupTestDB returns a migrated in-memory database. It holds a single
// connection, since every new connection to :memory: is a separate database.
func SetupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test DB: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}
	if err := migrations.Apply(context.Background(), db); err != nil {
		t.Fatalf("Failed to migrate test DB: %v", err)
	}
	return db
}

func insert(t *testing.T, db *sqlx.DB, query string, args ...any) int64 {
	t.Helper()
	var id int64
	if err := db.QueryRowx(query+" RETURNING id", args...).Scan(&id); err != nil {
		t.Fatalf("seed %q: %v", query, err)
	}
	return id
}

func SeedClient(t *testing.T, db *sqlx.DB, name string) int64 {
	t.Helper()
	return insert(t, db, `INSERT INTO clients (name) VALUES (?)`, name)
}

func SeedVehicle(t *testing.T, db *sqlx.DB, clientID int64, plate string) int64 {
	t.Helper()
	return insert(t, db, `INSERT INTO vehicles (client_id, plate) VALUES (?, ?)`, clientID, plate)
}

func SeedUser(t *testing.T, db *sqlx.DB, id, name, role string) {
	t.Helper()
	if _, err := db.Exec(`INSERT INTO users (id, name, role, is_active) VALUES (?, ?, ?, ?)`, id, name, role, true); err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}

func SeedService(t *testing.T, db *sqlx.DB, name string, price int64, requiresParts bool) int64 {
	t.Helper()
	return insert(t, db, `INSERT INTO catalog_services (name, price, requires_parts, is_active) VALUES (?, ?, ?, ?)`,
		name, decimal.NewFromInt(price), requiresParts, true)
}

func SeedPart(t *testing.T, db *sqlx.DB, sku string, price int64) int64 {
	t.Helper()
	return insert(t, db, `INSERT INTO catalog_parts (sku, name, price, is_active) VALUES (?, ?, ?, ?)`,
		sku, "Part "+sku, decimal.NewFromInt(price), true)
}

func SetStock(t *testing.T, db *sqlx.DB, partID int64, quantity int) {
	t.Helper()
	_, err := db.Exec(`
        INSERT INTO part_stock (part_id, quantity, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT (part_id) DO UPDATE SET quantity = excluded.quantity`, partID, quantity)
	if err != nil {
		t.Fatalf("set stock of part %d: %v", partID, err)
	}
}

// StockOf reads a counter; a part without a row has zero stock.
func StockOf(t *testing.T, db *sqlx.DB, partID int64) int {
	t.Helper()
	var qty int
	err := db.Get(&qty, `SELECT COALESCE((SELECT quantity FROM part_stock WHERE part_id = ?), 0)`, partID)
	if err != nil {
		t.Fatalf("read stock of part %d: %v", partID, err)
	}
	return qty
}
