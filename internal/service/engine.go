package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"panel-trends/internal/analytics"
	"panel-trends/internal/config"
	"panel-trends/internal/telemetry"
)

var (
	// ErrInvalidInput marks a request rejected before any data was read.
	ErrInvalidInput = errors.New("invalid request")
	// ErrTelemetryUnavailable marks a failed or malformed telemetry fetch.
	ErrTelemetryUnavailable = errors.New("telemetry unavailable")
)

// Analyzer names used in logs and metrics.
const (
	AnalyzerTimeSeries   = "timeseries"
	AnalyzerDecay        = "efficiency_decay"
	AnalyzerDust         = "dust_pattern"
	AnalyzerCorrelation  = "temperature_correlation"
	AnalyzerImpact       = "maintenance_impact"
	AnchorSupplied       = "supplied"
	AnchorInferred       = "inferred"
	defaultFetchTimeout  = 15 * time.Second
	defaultImpactDays    = 7
	defaultTimeseriesLen = 48
)

// Observer receives analyzer outcomes.
type Observer interface {
	AnalyzerResult(analyzer string, status analytics.Status)
}

// Options tune request defaults and limits.
type Options struct {
	DefaultDays      int
	MaxWindowDays    int
	ImpactDaysBefore int
	ImpactDaysAfter  int
	TimeseriesWidth  time.Duration
	TimeseriesLimit  int
	FetchTimeout     time.Duration
}

// OptionsFromConfig derives engine options from configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	width, err := config.ParseInterval(cfg.Analytics.TimeseriesInterval)
	if err != nil {
		width = time.Hour
	}
	return Options{
		DefaultDays:      cfg.Analytics.DefaultDays,
		MaxWindowDays:    cfg.Telemetry.MaxWindowDays,
		ImpactDaysBefore: cfg.Analytics.ImpactDaysBefore,
		ImpactDaysAfter:  cfg.Analytics.ImpactDaysAfter,
		TimeseriesWidth:  width,
		TimeseriesLimit:  cfg.Analytics.TimeseriesLimit,
		FetchTimeout:     cfg.Telemetry.RequestTimeout,
	}
}

// Engine answers trend queries. Every call fetches telemetry once and
// computes its results from that snapshot only.
type Engine struct {
	reader     telemetry.Reader
	thresholds analytics.Thresholds
	opts       Options
	observer   Observer
	logger     zerolog.Logger
	now        func() time.Time
}

// NewEngine constructs the analytics engine.
func NewEngine(reader telemetry.Reader, th analytics.Thresholds, opts Options, observer Observer, logger zerolog.Logger) *Engine {
	if opts.DefaultDays <= 0 {
		opts.DefaultDays = 30
	}
	if opts.MaxWindowDays <= 0 {
		opts.MaxWindowDays = 365
	}
	if opts.ImpactDaysBefore <= 0 {
		opts.ImpactDaysBefore = defaultImpactDays
	}
	if opts.ImpactDaysAfter <= 0 {
		opts.ImpactDaysAfter = defaultImpactDays
	}
	if opts.TimeseriesWidth <= 0 {
		opts.TimeseriesWidth = time.Hour
	}
	if opts.TimeseriesLimit <= 0 {
		opts.TimeseriesLimit = defaultTimeseriesLen
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}

	return &Engine{
		reader:     reader,
		thresholds: th,
		opts:       opts,
		observer:   observer,
		logger:     logger.With().Str("component", "engine").Logger(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the wall clock used to anchor "last N days" windows.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// TimeSeries returns the most recent limit buckets of the given interval.
func (e *Engine) TimeSeries(ctx context.Context, panelID, interval string, limit int) ([]analytics.Bucket, error) {
	width := e.opts.TimeseriesWidth
	if interval != "" {
		parsed, err := config.ParseInterval(interval)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		width = parsed
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit cannot be negative", ErrInvalidInput)
	}
	if limit == 0 {
		limit = e.opts.TimeseriesLimit
	}

	span := width * time.Duration(limit)
	if span/width != time.Duration(limit) || span > e.maxSpan() {
		return nil, fmt.Errorf("%w: interval * limit exceeds %d days", ErrInvalidInput, e.opts.MaxWindowDays)
	}

	now := e.now()
	window := analytics.Window{Start: now.Add(-span), End: now}
	snap, err := e.fetch(ctx, panelID, window)
	if err != nil {
		return nil, err
	}

	res := analytics.Guard(func() (analytics.Result[[]analytics.Bucket], error) {
		buckets, err := analytics.Resample(snap.Readings, snap.RatedCapacityW, width, limit)
		if err != nil {
			return analytics.Result[[]analytics.Bucket]{}, err
		}
		return analytics.Analyzed(buckets), nil
	})
	e.observe(AnalyzerTimeSeries, res.Status)
	buckets, _ := res.Get()
	if buckets == nil {
		buckets = []analytics.Bucket{}
	}
	return buckets, nil
}

// EfficiencyDecay classifies the efficiency trend over the last days.
func (e *Engine) EfficiencyDecay(ctx context.Context, panelID string, days int) (analytics.Result[analytics.EfficiencyTrend], error) {
	snap, err := e.fetchDays(ctx, panelID, days)
	if err != nil {
		return analytics.Result[analytics.EfficiencyTrend]{}, err
	}
	return e.decay(snap), nil
}

// DustPattern classifies the dust trend and lists inferred cleanings.
func (e *Engine) DustPattern(ctx context.Context, panelID string, days int) (analytics.Result[analytics.DustPattern], error) {
	snap, err := e.fetchDays(ctx, panelID, days)
	if err != nil {
		return analytics.Result[analytics.DustPattern]{}, err
	}
	return e.dust(snap), nil
}

// TemperatureCorrelation computes the temperature/efficiency correlation.
func (e *Engine) TemperatureCorrelation(ctx context.Context, panelID string, days int) (analytics.Result[analytics.Correlation], error) {
	snap, err := e.fetchDays(ctx, panelID, days)
	if err != nil {
		return analytics.Result[analytics.Correlation]{}, err
	}
	return e.correlation(snap), nil
}

// MaintenanceImpact compares the windows before and after maintenanceAt.
// Zero day counts fall back to the configured defaults.
func (e *Engine) MaintenanceImpact(ctx context.Context, panelID string, maintenanceAt time.Time, daysBefore, daysAfter int) (analytics.Result[analytics.Impact], error) {
	if maintenanceAt.IsZero() {
		return analytics.Result[analytics.Impact]{}, fmt.Errorf("%w: maintenance date is required", ErrInvalidInput)
	}
	before, after, err := e.impactDays(daysBefore, daysAfter)
	if err != nil {
		return analytics.Result[analytics.Impact]{}, err
	}

	window := analytics.Window{
		Start: maintenanceAt.Add(-before),
		End:   maintenanceAt.Add(after),
	}
	snap, err := e.fetch(ctx, panelID, window)
	if err != nil {
		return analytics.Result[analytics.Impact]{}, err
	}
	return e.impact(snap, maintenanceAt, before, after), nil
}

// ComprehensiveRequest parameterises a combined report.
type ComprehensiveRequest struct {
	PanelID       string
	Days          int
	Interval      string
	MaintenanceAt *time.Time
	DaysBefore    int
	DaysAfter     int
}

// Period describes the analysed window.
type Period struct {
	Days  int       `json:"days"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Report is the combined output of every analyzer over one snapshot.
type Report struct {
	PanelID                string                                      `json:"panelId"`
	Period                 Period                                      `json:"period"`
	DataPoints             int                                         `json:"dataPoints"`
	TimeSeries             []analytics.Bucket                          `json:"timeSeries"`
	EfficiencyDecay        analytics.Result[analytics.EfficiencyTrend] `json:"efficiencyDecay"`
	DustPattern            analytics.Result[analytics.DustPattern]     `json:"dustPattern"`
	TemperatureCorrelation analytics.Result[analytics.Correlation]     `json:"temperatureCorrelation"`
	MaintenanceImpact      *analytics.Result[analytics.Impact]         `json:"maintenanceImpact,omitempty"`
	MaintenanceAnchor      string                                      `json:"maintenanceAnchor,omitempty"`
}

// Comprehensive fetches the window once and runs every analyzer on the
// same snapshot. A failing analyzer degrades only its own field.
func (e *Engine) Comprehensive(ctx context.Context, req ComprehensiveRequest) (Report, error) {
	width := 24 * time.Hour
	if req.Interval != "" {
		parsed, err := config.ParseInterval(req.Interval)
		if err != nil {
			return Report{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		width = parsed
	}
	days, err := e.resolveDays(req.Days)
	if err != nil {
		return Report{}, err
	}
	before, after, err := e.impactDays(req.DaysBefore, req.DaysAfter)
	if err != nil {
		return Report{}, err
	}

	window := analytics.LastDays(e.now(), days)
	var supplied *time.Time
	if req.MaintenanceAt != nil && !req.MaintenanceAt.IsZero() {
		supplied = req.MaintenanceAt
	}

	// A supplied maintenance date widens the one fetch so both impact
	// windows are complete; the period analyzers still see only window.
	fetchWindow := window
	if supplied != nil {
		fetchWindow = cover(window, supplied.Add(-before), supplied.Add(after))
		if fetchWindow.End.Sub(fetchWindow.Start) > e.maxSpan() {
			return Report{}, fmt.Errorf("%w: maintenance date is too far from the reporting period", ErrInvalidInput)
		}
	}
	full, err := e.fetch(ctx, req.PanelID, fetchWindow)
	if err != nil {
		return Report{}, err
	}
	snap := full
	snap.Window = window
	snap.Readings = clip(full.Readings, window)

	report := Report{
		PanelID:    snap.PanelID,
		Period:     Period{Days: days, Start: window.Start, End: window.End},
		DataPoints: len(snap.Readings),
	}

	var g errgroup.Group
	g.Go(func() error {
		res := analytics.Guard(func() (analytics.Result[[]analytics.Bucket], error) {
			buckets, err := analytics.Resample(snap.Readings, snap.RatedCapacityW, width, 0)
			if err != nil {
				return analytics.Result[[]analytics.Bucket]{}, err
			}
			return analytics.Analyzed(buckets), nil
		})
		e.observe(AnalyzerTimeSeries, res.Status)
		report.TimeSeries, _ = res.Get()
		return nil
	})
	g.Go(func() error {
		report.EfficiencyDecay = e.decay(snap)
		return nil
	})
	g.Go(func() error {
		report.DustPattern = e.dust(snap)
		return nil
	})
	g.Go(func() error {
		report.TemperatureCorrelation = e.correlation(snap)
		return nil
	})
	if supplied != nil {
		at := *supplied
		g.Go(func() error {
			res := e.impact(full, at, before, after)
			report.MaintenanceImpact = &res
			report.MaintenanceAnchor = AnchorSupplied
			return nil
		})
	}
	_ = g.Wait()

	if report.TimeSeries == nil {
		report.TimeSeries = []analytics.Bucket{}
	}

	if report.MaintenanceImpact == nil {
		if dust, ok := report.DustPattern.Get(); ok && len(dust.MaintenanceEvents) > 0 {
			latest := dust.MaintenanceEvents[len(dust.MaintenanceEvents)-1]
			res := e.impact(snap, latest.Timestamp, before, after)
			report.MaintenanceImpact = &res
			report.MaintenanceAnchor = AnchorInferred
		}
	}

	e.logger.Debug().
		Str("panel_id", report.PanelID).
		Int("readings", report.DataPoints).
		Str("decay", string(report.EfficiencyDecay.Status)).
		Str("dust", string(report.DustPattern.Status)).
		Str("correlation", string(report.TemperatureCorrelation.Status)).
		Msg("comprehensive report assembled")
	return report, nil
}

func (e *Engine) decay(snap analytics.Snapshot) analytics.Result[analytics.EfficiencyTrend] {
	res := analytics.Guard(func() (analytics.Result[analytics.EfficiencyTrend], error) {
		points := analytics.EfficiencyPoints(snap.Readings, snap.RatedCapacityW, snap.Window)
		return analytics.AnalyzeEfficiencyDecay(points, snap.Window, e.thresholds), nil
	})
	e.observe(AnalyzerDecay, res.Status)
	return res
}

func (e *Engine) dust(snap analytics.Snapshot) analytics.Result[analytics.DustPattern] {
	res := analytics.Guard(func() (analytics.Result[analytics.DustPattern], error) {
		points := analytics.DustPoints(snap.Readings, snap.Window)
		return analytics.AnalyzeDustPattern(points, e.thresholds), nil
	})
	e.observe(AnalyzerDust, res.Status)
	return res
}

func (e *Engine) correlation(snap analytics.Snapshot) analytics.Result[analytics.Correlation] {
	res := analytics.Guard(func() (analytics.Result[analytics.Correlation], error) {
		pairs := analytics.TemperaturePairs(snap.Readings, snap.RatedCapacityW, snap.Window)
		return analytics.AnalyzeTemperatureCorrelation(pairs, e.thresholds), nil
	})
	e.observe(AnalyzerCorrelation, res.Status)
	return res
}

func (e *Engine) impact(snap analytics.Snapshot, at time.Time, before, after time.Duration) analytics.Result[analytics.Impact] {
	res := analytics.Guard(func() (analytics.Result[analytics.Impact], error) {
		return analytics.AnalyzeMaintenanceImpact(snap.Readings, snap.RatedCapacityW, at, before, after), nil
	})
	e.observe(AnalyzerImpact, res.Status)
	return res
}

func (e *Engine) observe(analyzer string, status analytics.Status) {
	if status != analytics.StatusAnalyzed {
		e.logger.Debug().Str("analyzer", analyzer).Msg("analyzer degraded to insufficient_data")
	}
	if e.observer != nil {
		e.observer.AnalyzerResult(analyzer, status)
	}
}

func (e *Engine) fetchDays(ctx context.Context, panelID string, days int) (analytics.Snapshot, error) {
	resolved, err := e.resolveDays(days)
	if err != nil {
		return analytics.Snapshot{}, err
	}
	return e.fetch(ctx, panelID, analytics.LastDays(e.now(), resolved))
}

// fetch is the single blocking step of every request.
func (e *Engine) fetch(ctx context.Context, panelID string, window analytics.Window) (analytics.Snapshot, error) {
	panelID = strings.TrimSpace(panelID)
	if panelID == "" {
		return analytics.Snapshot{}, fmt.Errorf("%w: panel id is required", ErrInvalidInput)
	}
	if !window.Start.Before(window.End) {
		return analytics.Snapshot{}, fmt.Errorf("%w: window start must be before end", ErrInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return analytics.Snapshot{}, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, e.opts.FetchTimeout)
	defer cancel()

	snap, err := e.reader.Fetch(fetchCtx, panelID, window)
	if err != nil {
		if errors.Is(err, telemetry.ErrPanelNotFound) || errors.Is(err, context.Canceled) {
			return analytics.Snapshot{}, err
		}
		return analytics.Snapshot{}, fmt.Errorf("%w: %w", ErrTelemetryUnavailable, err)
	}
	if err := telemetry.CheckOrder(snap); err != nil {
		return analytics.Snapshot{}, fmt.Errorf("%w: %w", ErrTelemetryUnavailable, err)
	}

	if snap.PanelID == "" {
		snap.PanelID = panelID
	}
	snap.Window = window
	snap.Readings = clip(snap.Readings, window)
	return snap, nil
}

// cover extends window to include [start, end].
func cover(window analytics.Window, start, end time.Time) analytics.Window {
	if start.Before(window.Start) {
		window.Start = start
	}
	if end.After(window.End) {
		window.End = end
	}
	return window
}

// clip returns the readings inside window without touching the source slice.
func clip(readings []analytics.Reading, window analytics.Window) []analytics.Reading {
	out := make([]analytics.Reading, 0, len(readings))
	for _, r := range readings {
		if window.Contains(r.Timestamp) {
			out = append(out, r)
		}
	}
	return out
}

func (e *Engine) resolveDays(days int) (int, error) {
	if days == 0 {
		return e.opts.DefaultDays, nil
	}
	if days < 0 || days > e.opts.MaxWindowDays {
		return 0, fmt.Errorf("%w: days must be between 1 and %d", ErrInvalidInput, e.opts.MaxWindowDays)
	}
	return days, nil
}

func (e *Engine) impactDays(before, after int) (time.Duration, time.Duration, error) {
	if before == 0 {
		before = e.opts.ImpactDaysBefore
	}
	if after == 0 {
		after = e.opts.ImpactDaysAfter
	}
	if before < 0 || after < 0 || before > e.opts.MaxWindowDays || after > e.opts.MaxWindowDays {
		return 0, 0, fmt.Errorf("%w: daysBefore and daysAfter must be between 1 and %d", ErrInvalidInput, e.opts.MaxWindowDays)
	}
	return time.Duration(before) * 24 * time.Hour, time.Duration(after) * 24 * time.Hour, nil
}

func (e *Engine) maxSpan() time.Duration {
	return time.Duration(e.opts.MaxWindowDays) * 24 * time.Hour
}
