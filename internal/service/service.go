package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"panel-trends/internal/alerting"
	"panel-trends/internal/analytics"
	"panel-trends/internal/config"
	"panel-trends/internal/scheduler"
	"panel-trends/internal/storage"
)

// PanelLister enumerates panels when no explicit watch list is configured.
type PanelLister interface {
	ListPanelIDs(ctx context.Context) ([]string, error)
}

// SuggestionObserver records dispatch outcomes.
type SuggestionObserver interface {
	Suggestion(delivered bool)
}

// Watcher sweeps panels on a schedule and forwards inferred cleanings as
// maintenance suggestions.
type Watcher struct {
	scheduler  *scheduler.Scheduler
	engine     *Engine
	lister     PanelLister
	notifier   alerting.Notifier
	observer   SuggestionObserver
	logger     zerolog.Logger
	panels     []string
	windowDays int
	interval   time.Duration
	alertsOn   bool
	locker     storage.AdvisoryLocker
	lockKey    int64

	mu        sync.Mutex
	lastSweep time.Time
}

// NewWatcher constructs the maintenance suggestion watcher. lister may be nil
// when watch.panels is set.
func NewWatcher(cfg *config.Config, sched *scheduler.Scheduler, engine *Engine, lister PanelLister, notifier alerting.Notifier, logger zerolog.Logger) *Watcher {
	var locker storage.AdvisoryLocker
	if l, ok := lister.(storage.AdvisoryLocker); ok {
		locker = l
	}

	return &Watcher{
		scheduler:  sched,
		engine:     engine,
		lister:     lister,
		notifier:   notifier,
		logger:     logger.With().Str("component", "watcher").Logger(),
		panels:     cfg.Watch.Panels,
		windowDays: cfg.Watch.WindowDays,
		interval:   cfg.Watch.Interval,
		alertsOn:   cfg.Alerting.Enabled,
		locker:     locker,
		lockKey:    cfg.Watch.AdvisoryLockKey,
	}
}

// WithObserver attaches a dispatch observer.
func (w *Watcher) WithObserver(o SuggestionObserver) *Watcher {
	w.observer = o
	return w
}

// Run begins the aligned sweep loop.
func (w *Watcher) Run(ctx context.Context) error {
	if w.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return w.scheduler.Run(ctx, w.ProcessBucket)
}

// ProcessBucket sweeps every panel once for the given tick.
func (w *Watcher) ProcessBucket(ctx context.Context, bucket time.Time) error {
	unlock, proceed, err := w.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		w.logger.Debug().Time("bucket", bucket).Msg("skip bucket because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	_, err = w.Sweep(ctx, bucket)
	return err
}

// Sweep runs the dust analyzer for each panel and dispatches suggestions
// for events detected after the previous tick or, when later, after the
// previous sweep's clock. It returns the suggestions produced. Per-panel
// failures are logged and do not stop the sweep.
func (w *Watcher) Sweep(ctx context.Context, bucket time.Time) ([]alerting.Suggestion, error) {
	panels, err := w.resolvePanels(ctx)
	if err != nil {
		return nil, err
	}

	sweptAt := w.engine.now()
	since := w.since(bucket)
	defer w.markSwept(sweptAt)

	var out []alerting.Suggestion
	for _, panelID := range panels {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		res, err := w.engine.DustPattern(ctx, panelID, w.windowDays)
		if err != nil {
			w.logger.Error().Err(err).Str("panel_id", panelID).Time("bucket", bucket).Msg("dust sweep failed")
			continue
		}
		pattern, ok := res.Get()
		if !ok {
			w.logger.Debug().Str("panel_id", panelID).Str("reason", res.Reason).Msg("not enough dust data")
			continue
		}

		for _, event := range pattern.MaintenanceEvents {
			if !event.Timestamp.After(since) {
				continue
			}
			suggestion := alerting.Suggestion{
				PanelID:      panelID,
				Event:        event,
				DetectedAt:   bucket,
				DustTrend:    pattern.Classification,
				AverageLevel: pattern.AverageLevel,
				Note:         suggestionNote(pattern),
			}
			out = append(out, suggestion)

			w.logger.Info().
				Str("panel_id", panelID).
				Time("event_at", event.Timestamp).
				Float64("magnitude", event.Magnitude).
				Msg("maintenance event detected")

			if w.alertsOn && w.notifier != nil {
				err := w.notifier.Notify(ctx, suggestion)
				if err != nil {
					w.logger.Error().Err(err).Str("panel_id", panelID).Msg("failed to dispatch suggestion")
				}
				if w.observer != nil {
					w.observer.Suggestion(err == nil)
				}
			}
		}
	}
	return out, nil
}

// suggestionNote flags the event as inferred and, when dust is building up
// again, recommends the next cleaning.
func suggestionNote(pattern analytics.DustPattern) string {
	if pattern.Classification == analytics.TrendIncreasing {
		return "Inferred from a dust drop; dust is accumulating again, cleaning recommended."
	}
	return "Inferred from a dust drop; confirm against the maintenance log."
}

// since is the exclusive lower bound for events reported at bucket.
func (w *Watcher) since(bucket time.Time) time.Time {
	since := bucket.Add(-w.interval)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastSweep.After(since) {
		return w.lastSweep
	}
	return since
}

func (w *Watcher) markSwept(at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if at.After(w.lastSweep) {
		w.lastSweep = at
	}
}

func (w *Watcher) resolvePanels(ctx context.Context) ([]string, error) {
	if len(w.panels) > 0 {
		return w.panels, nil
	}
	if w.lister == nil {
		return nil, fmt.Errorf("watch.panels is empty and no panel store is configured")
	}
	ids, err := w.lister.ListPanelIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list panels: %w", err)
	}
	return ids, nil
}

func (w *Watcher) acquireLock(ctx context.Context) (func(), bool, error) {
	if w.lockKey == 0 || w.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := w.locker.TryAdvisoryLock(ctx, w.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
