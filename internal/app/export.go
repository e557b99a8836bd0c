package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"panel-trends/internal/analytics"
)

// Export renders a panel's resampled series as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.PanelID == "" {
		return errors.New("--panel is required")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	src, err := a.openSource(ctx)
	if err != nil {
		return err
	}
	defer src.close()

	engine := a.newEngine(src.reader, nil)
	buckets, err := engine.TimeSeries(ctx, opts.PanelID, opts.Interval, opts.Limit)
	if err != nil {
		return err
	}
	if len(buckets) == 0 {
		a.Logger.Info().Str("panel_id", opts.PanelID).Msg("no readings found for export window")
		return nil
	}

	downsampled := downsampleBuckets(buckets, opts.MaxPoints)
	a.Logger.Info().Int("total", len(buckets)).Int("exported", len(downsampled)).Msg("exporting buckets")

	if opts.CSVPath != "" {
		if err := writeBucketsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeBucketsPNG(opts.PNGPath, opts.PanelID, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleBuckets(buckets []analytics.Bucket, max int) []analytics.Bucket {
	if max <= 0 || len(buckets) <= max {
		return buckets
	}
	if max == 1 {
		return buckets[len(buckets)-1:]
	}

	result := make([]analytics.Bucket, 0, max)
	step := float64(len(buckets)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(buckets) {
			idx = len(buckets) - 1
		}
		result = append(result, buckets[idx])
	}
	return result
}

func writeBucketsCSV(path string, buckets []analytics.Bucket) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"bucket_ts", "avg_power_w", "max_power_w", "min_power_w", "avg_efficiency_pct", "avg_temperature", "avg_dust", "avg_shading", "avg_irradiance", "count"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, b := range buckets {
		record := []string{
			b.Timestamp.UTC().Format(time.RFC3339),
			formatOptional(b.AvgPower, 2),
			formatOptional(b.MaxPower, 2),
			formatOptional(b.MinPower, 2),
			formatOptional(b.AvgEfficiency, 2),
			formatOptional(b.AvgTemperature, 2),
			formatOptional(b.AvgDust, 2),
			formatOptional(b.AvgShading, 2),
			formatOptional(b.AvgIrradiance, 2),
			strconv.Itoa(b.Count),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// writeBucketsPNG charts power on the primary axis and efficiency on the
// secondary axis. Buckets without a value are skipped per series.
func writeBucketsPNG(path, panelID string, buckets []analytics.Bucket) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	var (
		powerX, effX []time.Time
		power, eff   []float64
	)
	for _, b := range buckets {
		if b.AvgPower != nil {
			powerX = append(powerX, b.Timestamp)
			power = append(power, *b.AvgPower)
		}
		if b.AvgEfficiency != nil {
			effX = append(effX, b.Timestamp)
			eff = append(eff, *b.AvgEfficiency)
		}
	}
	if len(powerX) < 2 && len(effX) < 2 {
		return errors.New("not enough power or efficiency values to chart")
	}

	formatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	var series []chart.Series
	if len(powerX) >= 2 {
		series = append(series, chart.TimeSeries{
			Name:    "Avg power (W)",
			XValues: powerX,
			YValues: power,
		})
	}
	if len(effX) >= 2 {
		series = append(series, chart.TimeSeries{
			Name:    "Avg efficiency (%)",
			XValues: effX,
			YValues: eff,
			YAxis:   chart.YAxisSecondary,
		})
	}

	graph := chart.Chart{
		Title:  "Panel " + panelID,
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Power (W)",
			ValueFormatter: formatter,
		},
		YAxisSecondary: chart.YAxis{
			Name:           "Efficiency (%)",
			ValueFormatter: formatter,
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
