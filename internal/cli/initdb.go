//-------------------------------------------------------------------------
//
// pgEdge Retail Warehouse Pipeline
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgEdge/retail-dwh/internal/warehouse"
)

var initDBDrop bool

var initDBCmd = &cobra.Command{
	Use:   "initdb",
	Short: "Create the warehouse schema",
	Long: `Create the star schema, staging tables, and run ledger in the target
database. Existing tables are left untouched, so initdb is safe to
re-run.

Example:
  retail-dwh initdb --connection "postgres://localhost/retail"
  retail-dwh initdb --connection "postgres://localhost/retail" --drop`,
	RunE: runInitDB,
}

func init() {
	initDBCmd.Flags().BoolVar(&initDBDrop, "drop", false,
		"drop all warehouse tables before creating them")
}

func runInitDB(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateInitDB(); err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := warehouse.Connect(ctx, cfg.Connection)
	if err != nil {
		return fmt.Errorf("failed to connect to warehouse: %w", err)
	}
	defer pool.Close()

	if initDBDrop {
		if err := warehouse.DropSchema(ctx, pool); err != nil {
			return err
		}
	}
	if err := warehouse.InitSchema(ctx, pool); err != nil {
		return err
	}

	cmd.Println("Warehouse schema initialized")
	return nil
}
