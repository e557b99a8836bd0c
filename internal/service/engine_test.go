package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"panel-trends/internal/analytics"
	"panel-trends/internal/telemetry"
)

var testNow = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

type fakeReader struct {
	mu      sync.Mutex
	snap    analytics.Snapshot
	err     error
	calls   int
	windows []analytics.Window
}

func (f *fakeReader) Fetch(_ context.Context, panelID string, window analytics.Window) (analytics.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.windows = append(f.windows, window)
	if f.err != nil {
		return analytics.Snapshot{}, f.err
	}
	snap := f.snap
	snap.PanelID = panelID
	snap.Window = window
	return snap, nil
}

type countingObserver struct {
	mu     sync.Mutex
	counts map[string]analytics.Status
}

func (c *countingObserver) AnalyzerResult(analyzer string, status analytics.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[string]analytics.Status)
	}
	c.counts[analyzer] = status
}

func ptr(v float64) *float64 { return &v }

// tenDays builds one reading per day ending a day before testNow. Output
// declines, temperature rises and dust drops sharply on day five.
func tenDays(withDust bool) []analytics.Reading {
	base := testNow.AddDate(0, 0, -10)
	out := make([]analytics.Reading, 0, 10)
	for i := 0; i < 10; i++ {
		r := analytics.Reading{
			Timestamp:   base.Add(time.Duration(i) * 24 * time.Hour),
			Temperature: ptr(20 + 2*float64(i)),
			Voltage:     ptr(30),
			Current:     ptr(5 - 0.1*float64(i)),
		}
		if withDust {
			dust := 100 + float64(i)
			if i >= 5 {
				dust = 20 + float64(i)
			}
			r.Dust = ptr(dust)
		}
		out = append(out, r)
	}
	return out
}

func newTestEngine(reader telemetry.Reader, obs Observer) *Engine {
	return NewEngine(reader, analytics.DefaultThresholds(), Options{}, obs, zerolog.Nop()).
		WithClock(func() time.Time { return testNow })
}

func TestComprehensiveSingleFetchAndInferredImpact(t *testing.T) {
	reader := &fakeReader{snap: analytics.Snapshot{RatedCapacityW: 200, Readings: tenDays(true)}}
	obs := &countingObserver{}
	engine := newTestEngine(reader, obs)

	report, err := engine.Comprehensive(context.Background(), ComprehensiveRequest{PanelID: "p1", Days: 30})
	if err != nil {
		t.Fatalf("comprehensive: %v", err)
	}
	if reader.calls != 1 {
		t.Fatalf("expected exactly one fetch, got %d", reader.calls)
	}
	if report.DataPoints != 10 || len(report.TimeSeries) != 10 {
		t.Fatalf("unexpected sizes: points=%d buckets=%d", report.DataPoints, len(report.TimeSeries))
	}

	decay, ok := report.EfficiencyDecay.Get()
	if !ok || decay.Classification != analytics.TrendDeclining {
		t.Fatalf("expected declining efficiency, got %#v", report.EfficiencyDecay)
	}
	dust, ok := report.DustPattern.Get()
	if !ok || dust.Classification != analytics.TrendDecreasing || len(dust.MaintenanceEvents) != 1 {
		t.Fatalf("unexpected dust pattern %#v", report.DustPattern)
	}
	corr, ok := report.TemperatureCorrelation.Get()
	if !ok || corr.Sign != analytics.SignNegative || corr.Strength != analytics.StrengthStrong {
		t.Fatalf("unexpected correlation %#v", report.TemperatureCorrelation)
	}

	if report.MaintenanceImpact == nil || report.MaintenanceAnchor != AnchorInferred {
		t.Fatalf("impact should be inferred from the dust drop, anchor=%q", report.MaintenanceAnchor)
	}
	impact, ok := report.MaintenanceImpact.Get()
	if !ok {
		t.Fatalf("inferred impact should be analyzed: %#v", report.MaintenanceImpact)
	}
	if !impact.MaintenanceAt.Equal(dust.MaintenanceEvents[0].Timestamp) {
		t.Fatalf("impact anchored at %s, event at %s", impact.MaintenanceAt, dust.MaintenanceEvents[0].Timestamp)
	}
	if impact.Improvement.DustPct <= 0 {
		t.Fatalf("dust should improve after cleaning, got %v", impact.Improvement.DustPct)
	}

	for _, name := range []string{AnalyzerTimeSeries, AnalyzerDecay, AnalyzerDust, AnalyzerCorrelation, AnalyzerImpact} {
		if obs.counts[name] != analytics.StatusAnalyzed {
			t.Fatalf("observer missing analyzed outcome for %s: %#v", name, obs.counts)
		}
	}
}

func TestComprehensiveDegradesOnlyMissingAnalyzer(t *testing.T) {
	reader := &fakeReader{snap: analytics.Snapshot{RatedCapacityW: 200, Readings: tenDays(false)}}
	engine := newTestEngine(reader, nil)

	report, err := engine.Comprehensive(context.Background(), ComprehensiveRequest{PanelID: "p1"})
	if err != nil {
		t.Fatalf("comprehensive: %v", err)
	}
	if report.DustPattern.Status != analytics.StatusInsufficientData || report.DustPattern.Value != nil {
		t.Fatalf("dust should be insufficient without dust readings: %#v", report.DustPattern)
	}
	if !report.EfficiencyDecay.OK() || !report.TemperatureCorrelation.OK() {
		t.Fatal("sibling analyzers must still be analyzed")
	}
	if report.MaintenanceImpact != nil {
		t.Fatal("no impact without supplied date or detected event")
	}
	if report.Period.Days != 30 {
		t.Fatalf("default days should apply, got %d", report.Period.Days)
	}
}

func TestComprehensiveSuppliedMaintenanceDate(t *testing.T) {
	reader := &fakeReader{snap: analytics.Snapshot{RatedCapacityW: 200, Readings: tenDays(true)}}
	engine := newTestEngine(reader, nil)
	at := testNow.AddDate(0, 0, -3)

	report, err := engine.Comprehensive(context.Background(), ComprehensiveRequest{PanelID: "p1", MaintenanceAt: &at})
	if err != nil {
		t.Fatalf("comprehensive: %v", err)
	}
	if report.MaintenanceAnchor != AnchorSupplied || report.MaintenanceImpact == nil {
		t.Fatalf("expected supplied anchor, got %q", report.MaintenanceAnchor)
	}
	impact, ok := report.MaintenanceImpact.Get()
	if !ok || !impact.MaintenanceAt.Equal(at) {
		t.Fatalf("unexpected impact %#v", report.MaintenanceImpact)
	}
}

// hourly builds one reading per hour over the days before testNow.
func hourly(days int) []analytics.Reading {
	start := testNow.AddDate(0, 0, -days)
	out := make([]analytics.Reading, 0, days*24)
	for ts := start; ts.Before(testNow); ts = ts.Add(time.Hour) {
		out = append(out, analytics.Reading{
			Timestamp: ts,
			Voltage:   ptr(30),
			Current:   ptr(5),
			Dust:      ptr(50),
		})
	}
	return out
}

func TestComprehensiveSuppliedDateNearPeriodStart(t *testing.T) {
	for _, daysAgo := range []int{28, 40} {
		reader := &fakeReader{snap: analytics.Snapshot{RatedCapacityW: 200, Readings: hourly(60)}}
		engine := newTestEngine(reader, nil)
		at := testNow.AddDate(0, 0, -daysAgo)

		standalone, err := engine.MaintenanceImpact(context.Background(), "p1", at, 7, 7)
		if err != nil {
			t.Fatalf("impact: %v", err)
		}
		want, ok := standalone.Get()
		if !ok || want.BeforePoints != 168 {
			t.Fatalf("%dd: standalone impact should cover 7 full days, got %#v", daysAgo, standalone)
		}

		report, err := engine.Comprehensive(context.Background(), ComprehensiveRequest{
			PanelID: "p1", Days: 30, MaintenanceAt: &at, DaysBefore: 7, DaysAfter: 7,
		})
		if err != nil {
			t.Fatalf("%dd: comprehensive: %v", daysAgo, err)
		}
		if reader.calls != 2 {
			t.Fatalf("%dd: report should fetch once, total calls %d", daysAgo, reader.calls)
		}
		w := reader.windows[1]
		if !w.Start.Equal(at.AddDate(0, 0, -7)) || !w.End.Equal(testNow) {
			t.Fatalf("%dd: fetch window should cover the impact windows, got %s..%s", daysAgo, w.Start, w.End)
		}

		got, ok := report.MaintenanceImpact.Get()
		if !ok {
			t.Fatalf("%dd: impact should be analyzed: %#v", daysAgo, report.MaintenanceImpact)
		}
		if got.BeforePoints != want.BeforePoints || got.AfterPoints != want.AfterPoints {
			t.Fatalf("%dd: report impact %d/%d differs from standalone %d/%d",
				daysAgo, got.BeforePoints, got.AfterPoints, want.BeforePoints, want.AfterPoints)
		}

		if report.DataPoints != 30*24 || !report.Period.Start.Equal(testNow.AddDate(0, 0, -30)) {
			t.Fatalf("%dd: period analyzers should stay on the 30 day window, points=%d start=%s",
				daysAgo, report.DataPoints, report.Period.Start)
		}
		if len(report.TimeSeries) != 30 && len(report.TimeSeries) != 31 {
			t.Fatalf("%dd: daily series should span the period only, got %d buckets", daysAgo, len(report.TimeSeries))
		}
	}
}

func TestEmptySnapshotIsInsufficientNotError(t *testing.T) {
	reader := &fakeReader{snap: analytics.Snapshot{RatedCapacityW: 200}}
	engine := newTestEngine(reader, nil)

	report, err := engine.Comprehensive(context.Background(), ComprehensiveRequest{PanelID: "p1"})
	if err != nil {
		t.Fatalf("empty telemetry is not an error: %v", err)
	}
	if report.EfficiencyDecay.OK() || report.DustPattern.OK() || report.TemperatureCorrelation.OK() {
		t.Fatal("every analyzer should be insufficient on an empty snapshot")
	}
	if report.TimeSeries == nil || len(report.TimeSeries) != 0 {
		t.Fatalf("time series should be empty, got %#v", report.TimeSeries)
	}
}

func TestFetchErrorMapping(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		snap      analytics.Snapshot
		wantIs    error
		wantNotIs error
	}{
		{
			name:      "panel not found passes through",
			err:       telemetry.ErrPanelNotFound,
			wantIs:    telemetry.ErrPanelNotFound,
			wantNotIs: ErrTelemetryUnavailable,
		},
		{
			name:   "collaborator failure",
			err:    errors.New("connection refused"),
			wantIs: ErrTelemetryUnavailable,
		},
		{
			name: "out of order snapshot",
			snap: analytics.Snapshot{Readings: []analytics.Reading{
				{Timestamp: testNow.Add(-time.Hour)},
				{Timestamp: testNow.Add(-2 * time.Hour)},
			}},
			wantIs: ErrTelemetryUnavailable,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := newTestEngine(&fakeReader{err: tc.err, snap: tc.snap}, nil)
			_, err := engine.DustPattern(context.Background(), "p1", 7)
			if !errors.Is(err, tc.wantIs) {
				t.Fatalf("expected %v, got %v", tc.wantIs, err)
			}
			if tc.wantNotIs != nil && errors.Is(err, tc.wantNotIs) {
				t.Fatalf("error should not be %v: %v", tc.wantNotIs, err)
			}
		})
	}
}

func TestInvalidInputSkipsFetch(t *testing.T) {
	reader := &fakeReader{}
	engine := newTestEngine(reader, nil)
	ctx := context.Background()

	if _, err := engine.EfficiencyDecay(ctx, "p1", -1); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("negative days: %v", err)
	}
	if _, err := engine.EfficiencyDecay(ctx, "p1", 10_000); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("days beyond max: %v", err)
	}
	if _, err := engine.TemperatureCorrelation(ctx, "  ", 7); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("blank panel: %v", err)
	}
	if _, err := engine.MaintenanceImpact(ctx, "p1", time.Time{}, 7, 7); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("zero maintenance date: %v", err)
	}
	if _, err := engine.TimeSeries(ctx, "p1", "fortnightly", 10); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad interval: %v", err)
	}
	if _, err := engine.TimeSeries(ctx, "p1", "day", 100_000); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("oversized window: %v", err)
	}
	if reader.calls != 0 {
		t.Fatalf("invalid input must not reach telemetry, got %d fetches", reader.calls)
	}
}

func TestTimeSeriesDefaults(t *testing.T) {
	reader := &fakeReader{snap: analytics.Snapshot{RatedCapacityW: 200, Readings: tenDays(true)}}
	engine := newTestEngine(reader, nil)

	buckets, err := engine.TimeSeries(context.Background(), "p1", "", 0)
	if err != nil {
		t.Fatalf("timeseries: %v", err)
	}
	if got := reader.windows[0].End.Sub(reader.windows[0].Start); got != 48*time.Hour {
		t.Fatalf("default window should cover 48 hourly buckets, got %s", got)
	}
	if len(buckets) != 2 {
		t.Fatalf("expected the two readings inside the window, got %d buckets", len(buckets))
	}
	for i := 1; i < len(buckets); i++ {
		if !buckets[i-1].Timestamp.Before(buckets[i].Timestamp) {
			t.Fatal("buckets must be ascending")
		}
	}
}

func TestMaintenanceImpactWindow(t *testing.T) {
	reader := &fakeReader{snap: analytics.Snapshot{RatedCapacityW: 200, Readings: tenDays(true)}}
	engine := newTestEngine(reader, nil)
	at := testNow.AddDate(0, 0, -5)

	res, err := engine.MaintenanceImpact(context.Background(), "p1", at, 0, 2)
	if err != nil {
		t.Fatalf("impact: %v", err)
	}
	w := reader.windows[0]
	if !w.Start.Equal(at.AddDate(0, 0, -7)) || !w.End.Equal(at.AddDate(0, 0, 2)) {
		t.Fatalf("unexpected fetch window %s..%s", w.Start, w.End)
	}
	impact, ok := res.Get()
	if !ok {
		t.Fatalf("impact should be analyzed: %#v", res)
	}
	if impact.AfterPoints != 3 {
		t.Fatalf("after window should hold 3 daily readings, got %d", impact.AfterPoints)
	}
}
