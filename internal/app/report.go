package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"panel-trends/internal/service"
)

// Report prints the comprehensive analysis of one panel.
func (a *App) Report(ctx context.Context, opts ReportOptions) error {
	if strings.TrimSpace(opts.PanelID) == "" {
		return errors.New("panel id is required")
	}

	src, err := a.openSource(ctx)
	if err != nil {
		return err
	}
	defer src.close()

	engine := a.newEngine(src.reader, nil)
	report, err := engine.Comprehensive(ctx, service.ComprehensiveRequest{
		PanelID:       opts.PanelID,
		Days:          opts.Days,
		Interval:      opts.Interval,
		MaintenanceAt: opts.MaintenanceAt,
	})
	if err != nil {
		return err
	}

	if opts.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return renderReport(os.Stdout, report)
}

func renderReport(out io.Writer, r service.Report) error {
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Panel\t%s\n", r.PanelID)
	fmt.Fprintf(writer, "Period (UTC)\t%s .. %s (%d days)\n",
		r.Period.Start.UTC().Format(time.RFC3339), r.Period.End.UTC().Format(time.RFC3339), r.Period.Days)
	fmt.Fprintf(writer, "Readings\t%d in %d buckets\n", r.DataPoints, len(r.TimeSeries))
	fmt.Fprintln(writer)
	fmt.Fprintln(writer, "Analysis\tStatus\tResult")

	if t, ok := r.EfficiencyDecay.Get(); ok {
		fmt.Fprintf(writer, "Efficiency decay\t%s\t%s (%s%% -> %s%%, rate %s)\n", r.EfficiencyDecay.Status,
			t.Classification, formatFloat(t.ReferenceValue, 2), formatFloat(t.CurrentValue, 2), formatFloat(t.Rate, 2))
	} else {
		fmt.Fprintf(writer, "Efficiency decay\t%s\t%s\n", r.EfficiencyDecay.Status, sanitizeInline(r.EfficiencyDecay.Reason))
	}

	if d, ok := r.DustPattern.Get(); ok {
		fmt.Fprintf(writer, "Dust pattern\t%s\t%s (avg %s, %d inferred cleanings)\n", r.DustPattern.Status,
			d.Classification, formatFloat(d.AverageLevel, 2), len(d.MaintenanceEvents))
	} else {
		fmt.Fprintf(writer, "Dust pattern\t%s\t%s\n", r.DustPattern.Status, sanitizeInline(r.DustPattern.Reason))
	}

	if c, ok := r.TemperatureCorrelation.Get(); ok {
		fmt.Fprintf(writer, "Temperature correlation\t%s\t%s %s (r=%s)\n", r.TemperatureCorrelation.Status,
			c.Strength, c.Sign, formatFloat(c.Coefficient, 3))
	} else {
		fmt.Fprintf(writer, "Temperature correlation\t%s\t%s\n", r.TemperatureCorrelation.Status, sanitizeInline(r.TemperatureCorrelation.Reason))
	}

	switch {
	case r.MaintenanceImpact == nil:
		fmt.Fprintf(writer, "Maintenance impact\t%s\t%s\n", "skipped", "no maintenance date supplied or inferred")
	case r.MaintenanceImpact.OK():
		i, _ := r.MaintenanceImpact.Get()
		fmt.Fprintf(writer, "Maintenance impact\t%s\t%s @ %s: power %s%%, efficiency %s%%, dust %s%%\n",
			r.MaintenanceImpact.Status, r.MaintenanceAnchor, i.MaintenanceAt.UTC().Format(time.RFC3339),
			formatFloat(i.Improvement.PowerPct, 2), formatFloat(i.Improvement.EfficiencyPct, 2), formatFloat(i.Improvement.DustPct, 2))
	default:
		fmt.Fprintf(writer, "Maintenance impact\t%s\t%s\n", r.MaintenanceImpact.Status, sanitizeInline(r.MaintenanceImpact.Reason))
	}

	return writer.Flush()
}

func formatFloat(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

func formatOptional(v *float64, places int32) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v, places)
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
