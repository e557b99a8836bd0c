package analytics

import (
	"gonum.org/v1/gonum/stat"
)

const hoursPerDay = 24

// AnalyzeEfficiencyDecay fits a least-squares line through the efficiency
// points and classifies the fitted change across the window. When the
// window is zero the observed data span is used instead.
func AnalyzeEfficiencyDecay(points []Point, window Window, th Thresholds) Result[EfficiencyTrend] {
	if len(points) < 2 {
		return Insufficient[EfficiencyTrend]("need at least 2 efficiency readings")
	}
	if span(points) <= 0 {
		return Insufficient[EfficiencyTrend]("efficiency readings share one timestamp")
	}

	if window.IsZero() || window.Days() <= 0 {
		window = Window{Start: points[0].Timestamp, End: points[len(points)-1].Timestamp}
	}

	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.Timestamp.Sub(window.Start).Hours() / hoursPerDay
		ys[i] = p.Value
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	spanDays := window.Days()
	rate := beta * spanDays

	class := TrendStable
	switch {
	case rate < -th.DecayDeclineThreshold:
		class = TrendDeclining
	case rate > th.DecayImproveThreshold:
		class = TrendImproving
	}

	return Analyzed(EfficiencyTrend{
		Classification: class,
		ReferenceValue: alpha,
		CurrentValue:   alpha + beta*spanDays,
		Rate:           rate,
		SlopePerDay:    beta,
		DataPoints:     len(points),
		PeriodDays:     spanDays,
	})
}
