package analytics

import (
	"time"
)

// ImpactWindows returns the before window [m-before, m) and the after
// window [m, m+after]. The before window's End is exclusive.
func ImpactWindows(m time.Time, before, after time.Duration) (Window, Window) {
	return Window{Start: m.Add(-before), End: m}, Window{Start: m, End: m.Add(after)}
}

// AnalyzeMaintenanceImpact compares mean power, efficiency and dust in the
// two windows anchored at maintenanceAt.
func AnalyzeMaintenanceImpact(readings []Reading, ratedW float64, maintenanceAt time.Time, before, after time.Duration) Result[Impact] {
	beforeWin, afterWin := ImpactWindows(maintenanceAt, before, after)

	var pre, post []Reading
	for _, r := range readings {
		switch {
		case !r.Timestamp.Before(beforeWin.Start) && r.Timestamp.Before(beforeWin.End):
			pre = append(pre, r)
		case afterWin.Contains(r.Timestamp):
			post = append(post, r)
		}
	}

	if len(pre) == 0 {
		return Insufficient[Impact]("no readings before maintenance")
	}
	if len(post) == 0 {
		return Insufficient[Impact]("no readings after maintenance")
	}

	b := windowMeans(pre, ratedW)
	a := windowMeans(post, ratedW)

	return Analyzed(Impact{
		MaintenanceAt: maintenanceAt,
		Before:        b,
		After:         a,
		Improvement: Improvement{
			PowerPct:      relativeChange(b.Power, a.Power),
			EfficiencyPct: relativeChange(b.Efficiency, a.Efficiency),
			DustPct:       reduction(b.Dust, a.Dust),
		},
		BeforePoints: len(pre),
		AfterPoints:  len(post),
	})
}

func windowMeans(readings []Reading, ratedW float64) ImpactMetrics {
	var power, eff, dust, temp accumulator
	for _, r := range readings {
		if p, ok := r.Power(); ok {
			power.addValue(p)
		}
		if e, ok := r.Efficiency(ratedW); ok {
			eff.addValue(e)
		}
		dust.add(r.Dust)
		temp.add(r.Temperature)
	}
	return ImpactMetrics{
		Power:       power.meanOrZero(),
		Efficiency:  eff.meanOrZero(),
		Dust:        dust.meanOrZero(),
		Temperature: temp.meanOrZero(),
	}
}

// reduction is (from-to)/from in percent, or 0 when from is 0.
func reduction(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (from - to) / from * 100
}

// relativeChange is (to-from)/from in percent, or 0 when from is 0.
func relativeChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}
