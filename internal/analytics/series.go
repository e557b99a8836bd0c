package analytics

import (
	"time"
)

// EfficiencyPoints extracts (timestamp, efficiency) for readings inside the
// window that report both voltage and current.
func EfficiencyPoints(readings []Reading, ratedW float64, window Window) []Point {
	points := make([]Point, 0, len(readings))
	for _, r := range readings {
		if !window.IsZero() && !window.Contains(r.Timestamp) {
			continue
		}
		if eff, ok := r.Efficiency(ratedW); ok {
			points = append(points, Point{Timestamp: r.Timestamp, Value: eff})
		}
	}
	return points
}

// DustPoints extracts (timestamp, dust) for readings inside the window.
func DustPoints(readings []Reading, window Window) []Point {
	points := make([]Point, 0, len(readings))
	for _, r := range readings {
		if !window.IsZero() && !window.Contains(r.Timestamp) {
			continue
		}
		if r.Dust != nil {
			points = append(points, Point{Timestamp: r.Timestamp, Value: *r.Dust})
		}
	}
	return points
}

// TemperaturePairs extracts readings that carry both a temperature and an
// efficiency.
func TemperaturePairs(readings []Reading, ratedW float64, window Window) []Pair {
	pairs := make([]Pair, 0, len(readings))
	for _, r := range readings {
		if !window.IsZero() && !window.Contains(r.Timestamp) {
			continue
		}
		if r.Temperature == nil {
			continue
		}
		eff, ok := r.Efficiency(ratedW)
		if !ok {
			continue
		}
		pairs = append(pairs, Pair{Temperature: *r.Temperature, Efficiency: eff})
	}
	return pairs
}

// span returns the distance between the first and last point.
func span(points []Point) time.Duration {
	if len(points) < 2 {
		return 0
	}
	return points[len(points)-1].Timestamp.Sub(points[0].Timestamp)
}

type accumulator struct {
	sum      float64
	n        int
	min, max float64
}

func (a *accumulator) add(v *float64) {
	if v == nil {
		return
	}
	a.addValue(*v)
}

func (a *accumulator) addValue(v float64) {
	if a.n == 0 || v < a.min {
		a.min = v
	}
	if a.n == 0 || v > a.max {
		a.max = v
	}
	a.sum += v
	a.n++
}

func (a *accumulator) mean() *float64 {
	if a.n == 0 {
		return nil
	}
	m := a.sum / float64(a.n)
	return &m
}

func (a *accumulator) meanOrZero() float64 {
	if m := a.mean(); m != nil {
		return *m
	}
	return 0
}

func (a *accumulator) minPtr() *float64 {
	if a.n == 0 {
		return nil
	}
	v := a.min
	return &v
}

func (a *accumulator) maxPtr() *float64 {
	if a.n == 0 {
		return nil
	}
	v := a.max
	return &v
}
