//-------------------------------------------------------------------------
//
// pgEdge Retail Warehouse Pipeline
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package warehouse

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgEdge/retail-dwh/internal/logging"
)

// Schema SQL for the star schema and its staging tables. Dimension
// tables share one shape; attributes live in JSONB so all four are
// handled by the same write path.
const createSchemaSQL = `
-- Date Dimension (surrogate key is the YYYYMMDD encoding)
CREATE TABLE IF NOT EXISTS dim_date (
    date_key    BIGINT PRIMARY KEY,
    full_date   DATE NOT NULL,
    year        INTEGER NOT NULL,
    quarter     INTEGER NOT NULL,
    month       INTEGER NOT NULL,
    day         INTEGER NOT NULL,
    day_of_week INTEGER NOT NULL,
    month_name  VARCHAR(9) NOT NULL,
    day_name    VARCHAR(9) NOT NULL,
    is_weekend  BOOLEAN NOT NULL
);

-- Customer Dimension (SCD type 2)
CREATE TABLE IF NOT EXISTS dim_customer (
    surrogate_key BIGINT PRIMARY KEY,
    natural_key   TEXT NOT NULL,
    attributes    JSONB NOT NULL,
    valid_from    DATE NOT NULL,
    valid_to      DATE,
    is_current    BOOLEAN NOT NULL
);
CREATE INDEX IF NOT EXISTS dim_customer_natural_key_idx ON dim_customer (natural_key);

-- Product Dimension (SCD type 2)
CREATE TABLE IF NOT EXISTS dim_product (
    surrogate_key BIGINT PRIMARY KEY,
    natural_key   TEXT NOT NULL,
    attributes    JSONB NOT NULL,
    valid_from    DATE NOT NULL,
    valid_to      DATE,
    is_current    BOOLEAN NOT NULL
);
CREATE INDEX IF NOT EXISTS dim_product_natural_key_idx ON dim_product (natural_key);

-- Geography Dimension (type 1)
CREATE TABLE IF NOT EXISTS dim_geography (
    surrogate_key BIGINT PRIMARY KEY,
    natural_key   TEXT NOT NULL,
    attributes    JSONB NOT NULL,
    valid_from    DATE NOT NULL,
    valid_to      DATE,
    is_current    BOOLEAN NOT NULL
);
CREATE INDEX IF NOT EXISTS dim_geography_natural_key_idx ON dim_geography (natural_key);

-- Ship Mode Dimension (type 1)
CREATE TABLE IF NOT EXISTS dim_ship_mode (
    surrogate_key BIGINT PRIMARY KEY,
    natural_key   TEXT NOT NULL,
    attributes    JSONB NOT NULL,
    valid_from    DATE NOT NULL,
    valid_to      DATE,
    is_current    BOOLEAN NOT NULL
);

-- Order Line Facts
CREATE TABLE IF NOT EXISTS fact_orders (
    order_id       TEXT NOT NULL,
    product_id     TEXT NOT NULL,
    customer_key   BIGINT NOT NULL,
    product_key    BIGINT NOT NULL,
    geography_key  BIGINT NOT NULL,
    ship_mode_key  BIGINT NOT NULL,
    order_date_key BIGINT NOT NULL,
    ship_date_key  BIGINT,
    sales          NUMERIC(12,2),
    quantity       INTEGER,
    discount       NUMERIC(5,4),
    profit         NUMERIC(12,2),
    delivery_days  INTEGER,
    PRIMARY KEY (order_id, product_id)
);

-- Staging mirrors, tagged by run. Promotion moves rows from here into
-- the tables above in one transaction.
CREATE TABLE IF NOT EXISTS stg_dimension (
    run_id        TEXT NOT NULL,
    dimension     TEXT NOT NULL,
    surrogate_key BIGINT NOT NULL,
    natural_key   TEXT NOT NULL,
    attributes    JSONB NOT NULL,
    valid_from    DATE NOT NULL,
    valid_to      DATE,
    is_current    BOOLEAN NOT NULL,
    PRIMARY KEY (run_id, dimension, surrogate_key)
);

CREATE TABLE IF NOT EXISTS stg_dim_date (
    run_id      TEXT NOT NULL,
    date_key    BIGINT NOT NULL,
    full_date   DATE NOT NULL,
    year        INTEGER NOT NULL,
    quarter     INTEGER NOT NULL,
    month       INTEGER NOT NULL,
    day         INTEGER NOT NULL,
    day_of_week INTEGER NOT NULL,
    month_name  VARCHAR(9) NOT NULL,
    day_name    VARCHAR(9) NOT NULL,
    is_weekend  BOOLEAN NOT NULL,
    PRIMARY KEY (run_id, date_key)
);

CREATE TABLE IF NOT EXISTS stg_fact_orders (
    run_id         TEXT NOT NULL,
    order_id       TEXT NOT NULL,
    product_id     TEXT NOT NULL,
    customer_key   BIGINT NOT NULL,
    product_key    BIGINT NOT NULL,
    geography_key  BIGINT NOT NULL,
    ship_mode_key  BIGINT NOT NULL,
    order_date_key BIGINT NOT NULL,
    ship_date_key  BIGINT,
    sales          NUMERIC(12,2),
    quantity       INTEGER,
    discount       NUMERIC(5,4),
    profit         NUMERIC(12,2),
    delivery_days  INTEGER,
    PRIMARY KEY (run_id, order_id, product_id)
);

-- Run ledger
CREATE TABLE IF NOT EXISTS pipeline_runs (
    run_id         TEXT PRIMARY KEY,
    run_date       DATE NOT NULL,
    status         TEXT NOT NULL,
    stage_reached  TEXT NOT NULL DEFAULT '',
    quality_score  DOUBLE PRECISION,
    bronze_records INTEGER NOT NULL DEFAULT 0,
    silver_records INTEGER NOT NULL DEFAULT 0,
    gold_facts     INTEGER NOT NULL DEFAULT 0,
    started_at     TIMESTAMPTZ NOT NULL,
    finished_at    TIMESTAMPTZ,
    error          TEXT
)`

const dropSchemaSQL = `
DROP TABLE IF EXISTS stg_fact_orders;
DROP TABLE IF EXISTS stg_dim_date;
DROP TABLE IF EXISTS stg_dimension;
DROP TABLE IF EXISTS fact_orders;
DROP TABLE IF EXISTS dim_ship_mode;
DROP TABLE IF EXISTS dim_geography;
DROP TABLE IF EXISTS dim_product;
DROP TABLE IF EXISTS dim_customer;
DROP TABLE IF EXISTS dim_date;
DROP TABLE IF EXISTS pipeline_runs`

// InitSchema creates the warehouse tables if they don't exist.
func InitSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, createSchemaSQL); err != nil {
		return fmt.Errorf("failed to create warehouse schema: %w", err)
	}
	logging.Info().Msg("Warehouse schema ready")
	return nil
}

// DropSchema removes all warehouse tables.
func DropSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, dropSchemaSQL); err != nil {
		return fmt.Errorf("failed to drop warehouse schema: %w", err)
	}
	logging.Info().Msg("Warehouse schema dropped")
	return nil
}
