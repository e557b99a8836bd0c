package analytics

import (
	"errors"
	"slices"
	"time"
)

// ErrInvalidWidth is returned when a bucket width is not positive.
var ErrInvalidWidth = errors.New("analytics: bucket width must be positive")

type bucketAcc struct {
	start                                 time.Time
	power, temp, eff, dust, shade, irrad accumulator
	count                                 int
}

// Resample groups readings into UTC-aligned buckets of the given width and
// returns the most recent limit non-empty buckets, oldest first. A limit of
// zero or less keeps every bucket.
func Resample(readings []Reading, ratedW float64, width time.Duration, limit int) ([]Bucket, error) {
	if width <= 0 {
		return nil, ErrInvalidWidth
	}
	if len(readings) == 0 {
		return []Bucket{}, nil
	}

	byStart := make(map[int64]*bucketAcc)
	for _, r := range readings {
		start := r.Timestamp.UTC().Truncate(width)
		key := start.UnixNano()
		acc, ok := byStart[key]
		if !ok {
			acc = &bucketAcc{start: start}
			byStart[key] = acc
		}

		acc.count++
		if p, ok := r.Power(); ok {
			acc.power.addValue(p)
		}
		if e, ok := r.Efficiency(ratedW); ok {
			acc.eff.addValue(e)
		}
		acc.temp.add(r.Temperature)
		acc.dust.add(r.Dust)
		acc.shade.add(r.Shading)
		acc.irrad.add(r.Irradiance)
	}

	keys := make([]int64, 0, len(byStart))
	for k := range byStart {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[len(keys)-limit:]
	}

	buckets := make([]Bucket, 0, len(keys))
	for _, k := range keys {
		acc := byStart[k]
		buckets = append(buckets, Bucket{
			Timestamp:      acc.start,
			AvgPower:       acc.power.mean(),
			MaxPower:       acc.power.maxPtr(),
			MinPower:       acc.power.minPtr(),
			AvgTemperature: acc.temp.mean(),
			AvgEfficiency:  acc.eff.mean(),
			AvgDust:        acc.dust.mean(),
			AvgShading:     acc.shade.mean(),
			AvgIrradiance:  acc.irrad.mean(),
			Count:          acc.count,
		})
	}
	return buckets, nil
}
