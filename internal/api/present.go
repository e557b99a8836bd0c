package api

import (
	"math"

	"github.com/shopspring/decimal"

	"panel-trends/internal/analytics"
	"panel-trends/internal/service"
)

const (
	valuePlaces       = 2
	coefficientPlaces = 3
)

func round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

func r2(v float64) float64 { return round(v, valuePlaces) }

func r2p(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := r2(*v)
	return &out
}

// mapResult rounds the value of an analyzed result and leaves degraded
// results untouched.
func mapResult[T any](res analytics.Result[T], fn func(T) T) analytics.Result[T] {
	v, ok := res.Get()
	if !ok {
		return res
	}
	out := fn(v)
	res.Value = &out
	return res
}

func presentBuckets(in []analytics.Bucket) []analytics.Bucket {
	out := make([]analytics.Bucket, len(in))
	for i, b := range in {
		out[i] = analytics.Bucket{
			Timestamp:      b.Timestamp,
			AvgPower:       r2p(b.AvgPower),
			MaxPower:       r2p(b.MaxPower),
			MinPower:       r2p(b.MinPower),
			AvgTemperature: r2p(b.AvgTemperature),
			AvgEfficiency:  r2p(b.AvgEfficiency),
			AvgDust:        r2p(b.AvgDust),
			AvgShading:     r2p(b.AvgShading),
			AvgIrradiance:  r2p(b.AvgIrradiance),
			Count:          b.Count,
		}
	}
	return out
}

func presentTrend(t analytics.EfficiencyTrend) analytics.EfficiencyTrend {
	t.CurrentValue = r2(t.CurrentValue)
	t.ReferenceValue = r2(t.ReferenceValue)
	t.Rate = r2(t.Rate)
	t.SlopePerDay = round(t.SlopePerDay, coefficientPlaces)
	t.PeriodDays = r2(t.PeriodDays)
	return t
}

func presentDust(d analytics.DustPattern) analytics.DustPattern {
	d.CurrentValue = r2(d.CurrentValue)
	d.ReferenceValue = r2(d.ReferenceValue)
	d.Rate = r2(d.Rate)
	d.AverageLevel = r2(d.AverageLevel)
	d.LatestLevel = r2(d.LatestLevel)
	d.PeriodDays = r2(d.PeriodDays)
	events := make([]analytics.MaintenanceEvent, len(d.MaintenanceEvents))
	for i, e := range d.MaintenanceEvents {
		events[i] = analytics.MaintenanceEvent{
			Timestamp:  e.Timestamp,
			Magnitude:  r2(e.Magnitude),
			DustBefore: r2(e.DustBefore),
			DustAfter:  r2(e.DustAfter),
		}
	}
	d.MaintenanceEvents = events
	return d
}

func presentRange(r analytics.Range) analytics.Range {
	return analytics.Range{Min: r2(r.Min), Max: r2(r.Max), Avg: r2(r.Avg)}
}

func presentCorrelation(c analytics.Correlation) analytics.Correlation {
	c.Coefficient = round(c.Coefficient, coefficientPlaces)
	c.TemperatureRange = presentRange(c.TemperatureRange)
	c.EfficiencyRange = presentRange(c.EfficiencyRange)
	return c
}

func presentMetrics(m analytics.ImpactMetrics) analytics.ImpactMetrics {
	return analytics.ImpactMetrics{
		Power:       r2(m.Power),
		Efficiency:  r2(m.Efficiency),
		Dust:        r2(m.Dust),
		Temperature: r2(m.Temperature),
	}
}

func presentImpact(i analytics.Impact) analytics.Impact {
	i.Before = presentMetrics(i.Before)
	i.After = presentMetrics(i.After)
	i.Improvement = analytics.Improvement{
		PowerPct:      r2(i.Improvement.PowerPct),
		EfficiencyPct: r2(i.Improvement.EfficiencyPct),
		DustPct:       r2(i.Improvement.DustPct),
	}
	return i
}

func presentReport(r service.Report) service.Report {
	r.TimeSeries = presentBuckets(r.TimeSeries)
	r.EfficiencyDecay = mapResult(r.EfficiencyDecay, presentTrend)
	r.DustPattern = mapResult(r.DustPattern, presentDust)
	r.TemperatureCorrelation = mapResult(r.TemperatureCorrelation, presentCorrelation)
	if r.MaintenanceImpact != nil {
		impact := mapResult(*r.MaintenanceImpact, presentImpact)
		r.MaintenanceImpact = &impact
	}
	return r
}
