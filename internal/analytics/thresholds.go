package analytics

import (
	"fmt"
	"time"
)

// Thresholds collects every tunable constant used by the analyzers. The
// defaults were inferred from dashboard usage and are not a fixed contract.
type Thresholds struct {
	// DecayDeclineThreshold is the fitted drop, in percentage points over
	// the window, beyond which efficiency is "declining".
	DecayDeclineThreshold float64
	// DecayImproveThreshold is the fitted gain beyond which efficiency is
	// "improving".
	DecayImproveThreshold float64

	// DustTrendThreshold is the relative change between the later and the
	// earlier half means (0.10 = 10%).
	DustTrendThreshold float64
	// DustDropFraction is the relative drop between consecutive readings
	// that counts as a cleaning (0.40 = 40%).
	DustDropFraction float64
	// DustDropMaxGap bounds the time between the two readings of a drop.
	DustDropMaxGap time.Duration

	// MinCorrelationSamples is the minimum number of paired samples.
	MinCorrelationSamples int
	// StrongCorrelation and ModerateCorrelation are the |r| band edges.
	StrongCorrelation   float64
	ModerateCorrelation float64
}

// DefaultThresholds returns the stock tuning.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DecayDeclineThreshold: 1,
		DecayImproveThreshold: 1,
		DustTrendThreshold:    0.10,
		DustDropFraction:      0.40,
		DustDropMaxGap:        48 * time.Hour,
		MinCorrelationSamples: 2,
		StrongCorrelation:     0.7,
		ModerateCorrelation:   0.4,
	}
}

// Validate checks that the thresholds are usable.
func (t Thresholds) Validate() error {
	if t.DecayDeclineThreshold < 0 || t.DecayImproveThreshold < 0 {
		return fmt.Errorf("decay thresholds cannot be negative")
	}
	if t.DustTrendThreshold < 0 {
		return fmt.Errorf("dust trend threshold cannot be negative")
	}
	if t.DustDropFraction <= 0 || t.DustDropFraction >= 1 {
		return fmt.Errorf("dust drop fraction must be in (0,1)")
	}
	if t.DustDropMaxGap <= 0 {
		return fmt.Errorf("dust drop max gap must be positive")
	}
	if t.MinCorrelationSamples < 2 {
		return fmt.Errorf("min correlation samples must be at least 2")
	}
	if t.ModerateCorrelation <= 0 || t.StrongCorrelation <= t.ModerateCorrelation || t.StrongCorrelation > 1 {
		return fmt.Errorf("correlation bands must satisfy 0 < moderate < strong <= 1")
	}
	return nil
}
