package analytics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// AnalyzeTemperatureCorrelation computes Pearson's r between temperature
// and efficiency. Strength and sign are always reported together.
func AnalyzeTemperatureCorrelation(pairs []Pair, th Thresholds) Result[Correlation] {
	minSamples := th.MinCorrelationSamples
	if minSamples < 2 {
		minSamples = 2
	}
	if len(pairs) < minSamples {
		return Insufficient[Correlation](fmt.Sprintf("need at least %d temperature/efficiency pairs", minSamples))
	}

	temps := make([]float64, len(pairs))
	effs := make([]float64, len(pairs))
	var tAcc, eAcc accumulator
	for i, p := range pairs {
		temps[i] = p.Temperature
		effs[i] = p.Efficiency
		tAcc.addValue(p.Temperature)
		eAcc.addValue(p.Efficiency)
	}

	// Constant series have no variance and r is undefined.
	if tAcc.min == tAcc.max {
		return Insufficient[Correlation]("temperature does not vary")
	}
	if eAcc.min == eAcc.max {
		return Insufficient[Correlation]("efficiency does not vary")
	}

	r := stat.Correlation(temps, effs, nil)
	if math.IsNaN(r) {
		return Insufficient[Correlation]("correlation undefined")
	}
	r = math.Max(-1, math.Min(1, r))

	return Analyzed(Correlation{
		Coefficient:      r,
		Strength:         classifyStrength(r, th),
		Sign:             classifySign(r),
		TemperatureRange: Range{Min: tAcc.min, Max: tAcc.max, Avg: tAcc.meanOrZero()},
		EfficiencyRange:  Range{Min: eAcc.min, Max: eAcc.max, Avg: eAcc.meanOrZero()},
		DataPoints:       len(pairs),
	})
}

func classifyStrength(r float64, th Thresholds) Strength {
	abs := math.Abs(r)
	switch {
	case abs >= th.StrongCorrelation:
		return StrengthStrong
	case abs >= th.ModerateCorrelation:
		return StrengthModerate
	default:
		return StrengthWeak
	}
}

func classifySign(r float64) Sign {
	if r < 0 {
		return SignNegative
	}
	return SignPositive
}
