package analytics

import (
	"gonum.org/v1/gonum/stat"
)

// AnalyzeDustPattern compares the mean dust level of the later half of the
// observed span against the earlier half and scans consecutive readings
// for sharp drops that look like cleanings. The split point is the midpoint
// of the data span (first to last point), not of the request window.
func AnalyzeDustPattern(points []Point, th Thresholds) Result[DustPattern] {
	if len(points) < 2 {
		return Insufficient[DustPattern]("need at least 2 dust readings")
	}
	total := span(points)
	if total <= 0 {
		return Insufficient[DustPattern]("dust readings share one timestamp")
	}

	mid := points[0].Timestamp.Add(total / 2)
	var earlier, later []float64
	all := make([]float64, 0, len(points))
	for _, p := range points {
		all = append(all, p.Value)
		if p.Timestamp.Before(mid) {
			earlier = append(earlier, p.Value)
		} else {
			later = append(later, p.Value)
		}
	}

	// The first point is strictly before mid and the last is at or after it.
	refMean := stat.Mean(earlier, nil)
	curMean := stat.Mean(later, nil)

	var rate float64
	class := TrendStable
	if refMean != 0 {
		rate = (curMean - refMean) / refMean * 100
		switch {
		case curMean > refMean*(1+th.DustTrendThreshold):
			class = TrendIncreasing
		case curMean < refMean*(1-th.DustTrendThreshold):
			class = TrendDecreasing
		}
	} else if curMean > 0 {
		class = TrendIncreasing
	}

	return Analyzed(DustPattern{
		Classification:    class,
		ReferenceValue:    refMean,
		CurrentValue:      curMean,
		Rate:              rate,
		AverageLevel:      stat.Mean(all, nil),
		LatestLevel:       points[len(points)-1].Value,
		MaintenanceEvents: DetectMaintenanceEvents(points, th),
		DataPoints:        len(points),
		PeriodDays:        total.Hours() / hoursPerDay,
	})
}

// DetectMaintenanceEvents returns a candidate event for every consecutive
// pair whose dust level fell by more than th.DustDropFraction within
// th.DustDropMaxGap. Events are ordered oldest first.
func DetectMaintenanceEvents(points []Point, th Thresholds) []MaintenanceEvent {
	events := make([]MaintenanceEvent, 0)
	for i := 1; i < len(points); i++ {
		prev, cur := points[i-1], points[i]
		if prev.Value <= 0 {
			continue
		}
		if cur.Timestamp.Sub(prev.Timestamp) > th.DustDropMaxGap {
			continue
		}
		drop := prev.Value - cur.Value
		if drop/prev.Value <= th.DustDropFraction {
			continue
		}
		events = append(events, MaintenanceEvent{
			Timestamp:  cur.Timestamp,
			Magnitude:  drop,
			DustBefore: prev.Value,
			DustAfter:  cur.Value,
		})
	}
	return events
}
