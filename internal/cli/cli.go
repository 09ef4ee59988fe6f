//-------------------------------------------------------------------------
//
// pgEdge Retail Warehouse Pipeline
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package cli implements the command-line interface for retail-dwh.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/pgEdge/retail-dwh/internal/config"
	"github.com/pgEdge/retail-dwh/internal/logging"
	"github.com/pgEdge/retail-dwh/pkg/version"
)

var (
	// Global flags
	cfgFile    string
	connection string
	logLevel   string

	// Global config
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "retail-dwh",
		Short: "Retail order warehouse pipeline",
		Long: `retail-dwh loads monthly retail order extracts into a quality-scored
star schema warehouse in PostgreSQL.

Each run moves one extract through three layers: raw records are kept
verbatim with provenance (bronze), cleansed, flagged, and deduplicated
(silver), and finally published as dimension and fact tables (gold).
A batch whose quality score falls below the configured gate threshold
is fully analyzed and reported but never reaches the gold layer.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ./retail-dwh.yaml)")
	rootCmd.PersistentFlags().StringVar(&connection, "connection", "",
		"PostgreSQL connection string")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error)")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initDBCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(genCmd)
}

func initConfig() error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}

	// Override with CLI flags
	if connection != "" {
		cfg.Connection = connection
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	// Reinitialize logger with config
	logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version.Info())
	},
}
