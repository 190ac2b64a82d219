/*
Copyright IBM Corp. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package timeout derives the per-run time budget of mutant runs from the
// measured duration of the golden run, and provides the timers enforcing it.
package timeout

import (
	"math"

	"github.com/pkg/errors"

	"github.com/hyperledger-labs/fimut/pkg/logging"
	t "github.com/hyperledger-labs/fimut/pkg/types"
)

const (
	// DefaultFactor scales the measured golden run duration.
	DefaultFactor = 1.25

	// DefaultExtraMicros is added to the scaled golden run duration.
	DefaultExtraMicros = 1000

	// MinFactor is the smallest accepted factor. A budget shorter than the
	// golden run itself would time out fault-free runs.
	MinFactor = 1.0
)

// Config holds the two parameters of the budget computation.
type Config struct {
	Factor      float64
	ExtraMicros uint64
}

// DefaultConfig returns the configuration used when the test setup does not override it.
func DefaultConfig() Config {
	return Config{
		Factor:      DefaultFactor,
		ExtraMicros: DefaultExtraMicros,
	}
}

// Normalize returns a copy of the configuration with an invalid factor replaced
// by DefaultFactor. The substitution is logged as a warning.
func (c Config) Normalize(logger logging.Logger) Config {
	if math.IsNaN(c.Factor) || math.IsInf(c.Factor, 0) || c.Factor < MinFactor {
		logger.Log(logging.LevelWarn, "invalid timeout factor, using default", "factor", c.Factor, "default", DefaultFactor)
		c.Factor = DefaultFactor
	}
	return c
}

// ComputeBudget returns floor(factor * measured) + extra.
func ComputeBudget(measured t.Micros, factor float64, extra uint64) t.Micros {
	return t.Micros(uint64(math.Floor(factor*float64(measured))) + extra)
}

// Budget is the timeout budget of a campaign. It is calibrated exactly once,
// from the golden run, and stays fixed afterwards.
type Budget struct {
	config     Config
	computed   t.Micros
	calibrated bool
}

// NewBudget returns an uncalibrated budget using the normalized configuration.
func NewBudget(config Config, logger logging.Logger) *Budget {
	return &Budget{
		config: config.Normalize(logger),
	}
}

// Config returns the normalized configuration of the budget.
func (b *Budget) Config() Config {
	return b.config
}

// Calibrate computes the budget from the measured golden run duration.
func (b *Budget) Calibrate(measured t.Micros) (t.Micros, error) {
	if b.calibrated {
		return 0, errors.Errorf("timeout budget already calibrated to %dus", b.computed)
	}
	b.computed = ComputeBudget(measured, b.config.Factor, b.config.ExtraMicros)
	b.calibrated = true
	return b.computed, nil
}

// Micros returns the computed budget, and false if the budget has not been calibrated yet.
func (b *Budget) Micros() (t.Micros, bool) {
	return b.computed, b.calibrated
}
