//-------------------------------------------------------------------------
//
// pgEdge Retail Warehouse Pipeline
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package config handles configuration management for retail-dwh.
// Configuration is loaded from config files and CLI flags (no environment
// variables). CLI flags take precedence over config file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/pgEdge/retail-dwh/internal/model"
)

// Policy selects the automated remediation for a quality concern.
type Policy string

const (
	// PolicyReject rejects the offending record outright.
	PolicyReject Policy = "reject"

	// PolicyFlag records the defect and lets the record proceed.
	PolicyFlag Policy = "flag"

	// PolicyDefault substitutes a configured replacement value and
	// records the correction on the record's audit trail.
	PolicyDefault Policy = "default"
)

func (p Policy) valid() bool {
	return p == PolicyReject || p == PolicyFlag || p == PolicyDefault
}

// Config holds all configuration for retail-dwh.
type Config struct {
	// Connection is the PostgreSQL connection string for the warehouse
	// sink. When empty, runs execute against the in-memory sink.
	Connection string `mapstructure:"connection"`

	// LogLevel controls logging verbosity (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`

	// Normalize holds configuration for record normalization.
	Normalize NormalizeConfig `mapstructure:"normalize"`

	// Quality holds the weight table, gate threshold and policies.
	Quality QualityConfig `mapstructure:"quality"`

	// Run holds configuration for the run subcommand.
	Run RunConfig `mapstructure:"run"`

	// Gen holds configuration for the gen subcommand.
	Gen GenConfig `mapstructure:"gen"`
}

// NormalizeConfig holds configuration for record normalization.
type NormalizeConfig struct {
	// CurrencyScale is the number of decimal places money fields are
	// rounded to.
	CurrencyScale int32 `mapstructure:"currency_scale"`
}

// QualityConfig holds the quality scoring configuration.
type QualityConfig struct {
	// Weights maps quality flag names to penalty weights used in the
	// score formula: 100 - sum(count * weight) / total_records.
	Weights map[string]float64 `mapstructure:"weights"`

	// GateThreshold is the minimum score required to promote a run
	// from silver to gold.
	GateThreshold float64 `mapstructure:"gate_threshold"`

	// CriticalFields are the fields whose absence raises a
	// missing-critical-field flag.
	CriticalFields []string `mapstructure:"critical_fields"`

	// Policies selects the automated remediation per concern.
	Policies PolicyConfig `mapstructure:"policies"`
}

// PolicyConfig holds per-concern remediation policies.
type PolicyConfig struct {
	// NegativeNumeric controls handling of negative quantity/sales:
	// reject, flag, or default.
	NegativeNumeric Policy `mapstructure:"negative_numeric"`

	// NegativeNumericDefault is the replacement value used when
	// NegativeNumeric is "default".
	NegativeNumericDefault string `mapstructure:"negative_numeric_default"`

	// PostalCode controls handling of unmatched postal codes:
	// reject, flag, or default (default falls back to state level).
	PostalCode Policy `mapstructure:"postal_code"`
}

// RunConfig holds configuration for pipeline execution.
type RunConfig struct {
	// Workers is the number of goroutines used for record-level
	// normalization and inspection.
	Workers int `mapstructure:"workers"`
}

// GenConfig holds configuration for synthetic extract generation.
type GenConfig struct {
	// Rows is the number of order lines to generate.
	Rows int `mapstructure:"rows"`

	// DirtRate is the fraction of rows that receive an injected
	// quality defect.
	DirtRate float64 `mapstructure:"dirt_rate"`

	// Seed makes generation reproducible when non-zero.
	Seed uint64 `mapstructure:"seed"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Normalize: NormalizeConfig{
			CurrencyScale: 2,
		},
		Quality: QualityConfig{
			Weights: map[string]float64{
				string(model.FlagMissingCriticalField): 10,
				string(model.FlagInvalidFormat):        5,
				string(model.FlagDuplicateKey):         8,
				string(model.FlagNegativeNumeric):      6,
				string(model.FlagMissingNumeric):       3,
			},
			GateThreshold:  80,
			CriticalFields: []string{"order_id", "product_id", "customer_id", "order_date"},
			Policies: PolicyConfig{
				NegativeNumeric: PolicyFlag,
				PostalCode:      PolicyFlag,
			},
		},
		Run: RunConfig{
			Workers: 4,
		},
		Gen: GenConfig{
			Rows:     1000,
			DirtRate: 0.08,
		},
	}
}

// Load reads configuration from config files.
// Config file locations (in order of precedence):
// 1. Path specified by configFile parameter
// 2. ./retail-dwh.yaml
// 3. ~/.config/retail-dwh/config.yaml
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("retail-dwh")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "retail-dwh"))
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// WeightTable converts the configured weights into a model weight
// table. Flags absent from the config carry zero weight.
func (c *Config) WeightTable() model.WeightTable {
	table := make(model.WeightTable, len(c.Quality.Weights))
	for name, weight := range c.Quality.Weights {
		table[model.Flag(name)] = weight
	}
	return table
}

// Validate checks configuration shared by all subcommands.
func (c *Config) Validate() error {
	if c.Quality.GateThreshold < 0 || c.Quality.GateThreshold > 100 {
		return fmt.Errorf("gate_threshold must be in [0, 100], got %g", c.Quality.GateThreshold)
	}
	for name, weight := range c.Quality.Weights {
		if weight < 0 {
			return fmt.Errorf("weight for %q must be non-negative, got %g", name, weight)
		}
	}
	if !c.Quality.Policies.NegativeNumeric.valid() {
		return fmt.Errorf("policies.negative_numeric must be reject, flag, or default")
	}
	if !c.Quality.Policies.PostalCode.valid() {
		return fmt.Errorf("policies.postal_code must be reject, flag, or default")
	}
	if c.Normalize.CurrencyScale < 0 {
		return fmt.Errorf("currency_scale must be non-negative")
	}
	return nil
}

// ValidateRun checks configuration required for the run command.
func (c *Config) ValidateRun() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Run.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	return nil
}

// ValidateInitDB checks configuration required for the initdb command.
func (c *Config) ValidateInitDB() error {
	if c.Connection == "" {
		return fmt.Errorf("connection string is required for initdb")
	}
	return nil
}

// ValidateGen checks configuration required for the gen command.
func (c *Config) ValidateGen() error {
	if c.Gen.Rows < 1 {
		return fmt.Errorf("rows must be at least 1")
	}
	if c.Gen.DirtRate < 0 || c.Gen.DirtRate > 1 {
		return fmt.Errorf("dirt_rate must be in [0, 1]")
	}
	return nil
}
