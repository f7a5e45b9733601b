package sqlstore

import (
	"context"
	"fmt"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		product_id   BIGSERIAL PRIMARY KEY,
		product_name TEXT NOT NULL,
		price        NUMERIC(12,2) NOT NULL CHECK (price >= 0),
		category     TEXT NOT NULL DEFAULT '',
		quantity     INTEGER NOT NULL CHECK (quantity >= 0),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS sales (
		sales_id      BIGSERIAL PRIMARY KEY,
		salesman_id   BIGINT NOT NULL,
		product_id    BIGINT NOT NULL,
		product_name  TEXT NOT NULL,
		price         NUMERIC(12,2) NOT NULL,
		category      TEXT NOT NULL DEFAULT '',
		quantity_sold INTEGER NOT NULL CHECK (quantity_sold > 0),
		total_price   NUMERIC(14,2) NOT NULL,
		sale_date     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS sales_sale_date_idx ON sales (sale_date DESC)`,
	`CREATE TABLE IF NOT EXISTS debtors (
		debtor_id      BIGSERIAL PRIMARY KEY,
		name           TEXT NOT NULL,
		contact_number TEXT NOT NULL DEFAULT '',
		address        TEXT NOT NULL DEFAULT '',
		debt_amount    NUMERIC(14,2) NOT NULL DEFAULT 0,
		date_incurred  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS vendors (
		vendor_id      BIGSERIAL PRIMARY KEY,
		name           TEXT NOT NULL,
		contact_number TEXT NOT NULL DEFAULT '',
		address        TEXT NOT NULL DEFAULT '',
		cash_balance   NUMERIC(14,2) NOT NULL DEFAULT 0,
		date_of_supply TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS workers (
		worker_id       BIGSERIAL PRIMARY KEY,
		name            TEXT NOT NULL,
		contact_number  TEXT NOT NULL DEFAULT '',
		email           TEXT NOT NULL DEFAULT '',
		status          TEXT NOT NULL DEFAULT '',
		salary          NUMERIC(14,2) NOT NULL DEFAULT 0,
		date_of_joining TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		user_id    BIGSERIAL PRIMARY KEY,
		username   TEXT NOT NULL UNIQUE,
		password   TEXT NOT NULL,
		role       TEXT NOT NULL,
		active     BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		product_id   BIGINT AUTO_INCREMENT PRIMARY KEY,
		product_name VARCHAR(255) NOT NULL,
		price        DECIMAL(12,2) NOT NULL CHECK (price >= 0),
		category     VARCHAR(100) NOT NULL DEFAULT '',
		quantity     INT NOT NULL CHECK (quantity >= 0),
		updated_at   DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sales (
		sales_id      BIGINT AUTO_INCREMENT PRIMARY KEY,
		salesman_id   BIGINT NOT NULL,
		product_id    BIGINT NOT NULL,
		product_name  VARCHAR(255) NOT NULL,
		price         DECIMAL(12,2) NOT NULL,
		category      VARCHAR(100) NOT NULL DEFAULT '',
		quantity_sold INT NOT NULL CHECK (quantity_sold > 0),
		total_price   DECIMAL(14,2) NOT NULL,
		sale_date     DATETIME(6) NOT NULL,
		INDEX sales_sale_date_idx (sale_date)
	)`,
	`CREATE TABLE IF NOT EXISTS debtors (
		debtor_id      BIGINT AUTO_INCREMENT PRIMARY KEY,
		name           VARCHAR(255) NOT NULL,
		contact_number VARCHAR(50) NOT NULL DEFAULT '',
		address        VARCHAR(255) NOT NULL DEFAULT '',
		debt_amount    DECIMAL(14,2) NOT NULL DEFAULT 0,
		date_incurred  DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS vendors (
		vendor_id      BIGINT AUTO_INCREMENT PRIMARY KEY,
		name           VARCHAR(255) NOT NULL,
		contact_number VARCHAR(50) NOT NULL DEFAULT '',
		address        VARCHAR(255) NOT NULL DEFAULT '',
		cash_balance   DECIMAL(14,2) NOT NULL DEFAULT 0,
		date_of_supply DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS workers (
		worker_id       BIGINT AUTO_INCREMENT PRIMARY KEY,
		name            VARCHAR(255) NOT NULL,
		contact_number  VARCHAR(50) NOT NULL DEFAULT '',
		email           VARCHAR(255) NOT NULL DEFAULT '',
		status          VARCHAR(50) NOT NULL DEFAULT '',
		salary          DECIMAL(14,2) NOT NULL DEFAULT 0,
		date_of_joining DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		user_id    BIGINT AUTO_INCREMENT PRIMARY KEY,
		username   VARCHAR(100) NOT NULL UNIQUE,
		password   VARCHAR(255) NOT NULL,
		role       VARCHAR(32) NOT NULL,
		active     BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME(6) NOT NULL
	)`,
}

// Migrate creates any missing tables. It never alters existing ones.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := postgresSchema
	if s.dialect == MySQL {
		stmts = mysqlSchema
	}
	for i, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
