package model

import "github.com/shopspring/decimal"

type CatalogService struct {
	ID            int64           `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	Price         decimal.Decimal `db:"price" json:"price"`
	RequiresParts bool            `db:"requires_parts" json:"requires_parts"`
	IsActive      bool            `db:"is_active" json:"is_active"`
}

type CatalogPart struct {
	ID       int64               `db:"id" json:"id"`
	SKU      string              `db:"sku" json:"sku"`
	Name     string              `db:"name" json:"name"`
	Price    decimal.Decimal     `db:"price" json:"price"`
	Cost     decimal.NullDecimal `db:"cost" json:"cost"`
	IsActive bool                `db:"is_active" json:"is_active"`
}
