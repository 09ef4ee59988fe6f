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
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgEdge/retail-dwh/internal/logging"
	"github.com/pgEdge/retail-dwh/internal/model"
)

// dimensionTables maps dimension identifiers to their table names.
// Table names are always taken from this map, never from input.
var dimensionTables = map[model.Dimension]string{
	model.DimCustomer:  "dim_customer",
	model.DimProduct:   "dim_product",
	model.DimGeography: "dim_geography",
	model.DimShipMode:  "dim_ship_mode",
}

// PostgresSink persists the gold layer in PostgreSQL. Staged rows live
// in stg_* tables tagged with the run ID; PromoteGold moves them into
// the star schema in a single transaction.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink creates a sink over an established pool. The schema
// must already exist (see InitSchema).
func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

// StageGold opens the staging area for a run. Any leftovers from an
// earlier attempt with the same run ID are cleared first.
func (s *PostgresSink) StageGold(ctx context.Context, runID string) error {
	if err := s.clearStaging(ctx, runID); err != nil {
		return fmt.Errorf("failed to clear staging for run %s: %w", runID, err)
	}
	logging.Debug().Str("run_id", runID).Msg("Staging area ready")
	return nil
}

// WriteDimension stages dimension rows for the run.
func (s *PostgresSink) WriteDimension(ctx context.Context, runID string, dim model.Dimension, rows []model.DimensionRow) error {
	if _, ok := dimensionTables[dim]; !ok {
		return fmt.Errorf("unknown dimension %q", dim)
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
            INSERT INTO stg_dimension
                (run_id, dimension, surrogate_key, natural_key, attributes, valid_from, valid_to, is_current)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
            ON CONFLICT (run_id, dimension, surrogate_key) DO UPDATE SET
                natural_key = EXCLUDED.natural_key,
                attributes  = EXCLUDED.attributes,
                valid_from  = EXCLUDED.valid_from,
                valid_to    = EXCLUDED.valid_to,
                is_current  = EXCLUDED.is_current
        `, runID, string(dim), row.SurrogateKey, row.NaturalKey, row.Attributes,
			row.ValidFrom, nullableDate(row.ValidTo), row.IsCurrent)
	}
	if err := s.sendBatch(ctx, batch); err != nil {
		return fmt.Errorf("failed to stage %s rows: %w", dim, err)
	}

	logging.Debug().
		Str("run_id", runID).
		Str("dimension", string(dim)).
		Int("rows", len(rows)).
		Msg("Staged dimension rows")
	return nil
}

// UpsertDateDimension stages calendar rows for the run.
func (s *PostgresSink) UpsertDateDimension(ctx context.Context, runID string, rows []model.DateDimensionRow) error {
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
            INSERT INTO stg_dim_date
                (run_id, date_key, full_date, year, quarter, month, day, day_of_week, month_name, day_name, is_weekend)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
            ON CONFLICT (run_id, date_key) DO NOTHING
        `, runID, row.DateKey, row.Date, row.Year, row.Quarter, row.Month,
			row.Day, row.DayOfWeek, row.MonthName, row.DayName, row.IsWeekend)
	}
	if err := s.sendBatch(ctx, batch); err != nil {
		return fmt.Errorf("failed to stage date rows: %w", err)
	}
	return nil
}

// AppendFacts stages fact rows for the run.
func (s *PostgresSink) AppendFacts(ctx context.Context, runID string, rows []model.FactRow) error {
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
            INSERT INTO stg_fact_orders
                (run_id, order_id, product_id, customer_key, product_key, geography_key,
                 ship_mode_key, order_date_key, ship_date_key,
                 sales, quantity, discount, profit, delivery_days)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
            ON CONFLICT (run_id, order_id, product_id) DO NOTHING
        `, runID, row.Key.OrderID, row.Key.ProductID,
			row.CustomerKey, row.ProductKey, row.GeographyKey, row.ShipModeKey,
			row.OrderDateKey, nullableKey(row.ShipDateKey),
			nullableDecimal(row.Sales), nullableInt(row.Quantity),
			nullableDecimal(row.Discount), nullableDecimal(row.Profit),
			nullableInt(row.DeliveryDays))
	}
	if err := s.sendBatch(ctx, batch); err != nil {
		return fmt.Errorf("failed to stage fact rows: %w", err)
	}

	logging.Debug().Str("run_id", runID).Int("rows", len(rows)).Msg("Staged fact rows")
	return nil
}

// PromoteGold publishes the run's staged rows in one transaction:
// dimension upserts, date upserts, then fact upserts, then staging
// cleanup. Readers see the old gold layer until commit.
func (s *PostgresSink) PromoteGold(ctx context.Context, runID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin promotion: %w", err)
	}
	defer tx.Rollback(ctx)

	var staged int
	err = tx.QueryRow(ctx, `
        SELECT (SELECT COUNT(*) FROM stg_dimension WHERE run_id = $1)
             + (SELECT COUNT(*) FROM stg_dim_date WHERE run_id = $1)
             + (SELECT COUNT(*) FROM stg_fact_orders WHERE run_id = $1)
    `, runID).Scan(&staged)
	if err != nil {
		return fmt.Errorf("failed to count staged rows: %w", err)
	}
	if staged == 0 {
		return fmt.Errorf("run %s: %w", runID, ErrNoStagedRun)
	}

	for dim, table := range dimensionTables {
		_, err := tx.Exec(ctx, fmt.Sprintf(`
            INSERT INTO %s (surrogate_key, natural_key, attributes, valid_from, valid_to, is_current)
            SELECT surrogate_key, natural_key, attributes, valid_from, valid_to, is_current
            FROM stg_dimension WHERE run_id = $1 AND dimension = $2
            ON CONFLICT (surrogate_key) DO UPDATE SET
                attributes = EXCLUDED.attributes,
                valid_to   = EXCLUDED.valid_to,
                is_current = EXCLUDED.is_current
        `, table), runID, string(dim))
		if err != nil {
			return fmt.Errorf("failed to promote %s: %w", dim, err)
		}
	}

	_, err = tx.Exec(ctx, `
        INSERT INTO dim_date
            (date_key, full_date, year, quarter, month, day, day_of_week, month_name, day_name, is_weekend)
        SELECT date_key, full_date, year, quarter, month, day, day_of_week, month_name, day_name, is_weekend
        FROM stg_dim_date WHERE run_id = $1
        ON CONFLICT (date_key) DO NOTHING
    `, runID)
	if err != nil {
		return fmt.Errorf("failed to promote date dimension: %w", err)
	}

	_, err = tx.Exec(ctx, `
        INSERT INTO fact_orders
            (order_id, product_id, customer_key, product_key, geography_key,
             ship_mode_key, order_date_key, ship_date_key,
             sales, quantity, discount, profit, delivery_days)
        SELECT order_id, product_id, customer_key, product_key, geography_key,
               ship_mode_key, order_date_key, ship_date_key,
               sales, quantity, discount, profit, delivery_days
        FROM stg_fact_orders WHERE run_id = $1
        ON CONFLICT (order_id, product_id) DO UPDATE SET
            customer_key   = EXCLUDED.customer_key,
            product_key    = EXCLUDED.product_key,
            geography_key  = EXCLUDED.geography_key,
            ship_mode_key  = EXCLUDED.ship_mode_key,
            order_date_key = EXCLUDED.order_date_key,
            ship_date_key  = EXCLUDED.ship_date_key,
            sales          = EXCLUDED.sales,
            quantity       = EXCLUDED.quantity,
            discount       = EXCLUDED.discount,
            profit         = EXCLUDED.profit,
            delivery_days  = EXCLUDED.delivery_days
    `, runID)
	if err != nil {
		return fmt.Errorf("failed to promote facts: %w", err)
	}

	if err := clearStagingTx(ctx, tx, runID); err != nil {
		return fmt.Errorf("failed to clear staging after promotion: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit promotion: %w", err)
	}

	logging.Info().Str("run_id", runID).Msg("Promoted gold layer")
	return nil
}

// DiscardGold drops the run's staged rows without publishing.
func (s *PostgresSink) DiscardGold(ctx context.Context, runID string) error {
	if err := s.clearStaging(ctx, runID); err != nil {
		return fmt.Errorf("failed to discard staged run %s: %w", runID, err)
	}
	logging.Info().Str("run_id", runID).Msg("Discarded staged gold data")
	return nil
}

// DimensionRows returns every promoted version of one dimension.
func (s *PostgresSink) DimensionRows(ctx context.Context, dim model.Dimension) ([]model.DimensionRow, error) {
	table, ok := dimensionTables[dim]
	if !ok {
		return nil, fmt.Errorf("unknown dimension %q", dim)
	}

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
        SELECT surrogate_key, natural_key, attributes, valid_from, valid_to, is_current
        FROM %s ORDER BY surrogate_key
    `, table))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dim, err)
	}
	defer rows.Close()

	var result []model.DimensionRow
	for rows.Next() {
		row := model.DimensionRow{Dimension: dim}
		var validTo *time.Time
		if err := rows.Scan(&row.SurrogateKey, &row.NaturalKey, &row.Attributes,
			&row.ValidFrom, &validTo, &row.IsCurrent); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", dim, err)
		}
		if validTo != nil {
			row.ValidTo = *validTo
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// SurrogateHighWaterMark returns the highest promoted surrogate key.
func (s *PostgresSink) SurrogateHighWaterMark(ctx context.Context, dim model.Dimension) (int64, error) {
	table, ok := dimensionTables[dim]
	if !ok {
		return 0, fmt.Errorf("unknown dimension %q", dim)
	}

	var mark int64
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT COALESCE(MAX(surrogate_key), 0) FROM %s`, table)).Scan(&mark)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s high-water mark: %w", dim, err)
	}
	return mark, nil
}

func (s *PostgresSink) clearStaging(ctx context.Context, runID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := clearStagingTx(ctx, tx, runID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func clearStagingTx(ctx context.Context, tx pgx.Tx, runID string) error {
	for _, table := range []string{"stg_fact_orders", "stg_dim_date", "stg_dimension"} {
		if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE run_id = $1`, table), runID); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresSink) sendBatch(ctx context.Context, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return results.Close()
}

// nullableDate maps a zero time to SQL NULL.
func nullableDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// nullableKey maps a zero surrogate key to SQL NULL.
func nullableKey(k int64) *int64 {
	if k == 0 {
		return nil
	}
	return &k
}

// nullableDecimal renders a decimal as its string form for the numeric
// codec, NULL when absent.
func nullableDecimal(d model.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

func nullableInt(i model.NullInt) *int64 {
	if !i.Valid {
		return nil
	}
	v := i.Int64
	return &v
}
