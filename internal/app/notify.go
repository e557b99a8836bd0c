package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"panel-trends/internal/analytics"
	"panel-trends/internal/config"
	"panel-trends/internal/service"
	"panel-trends/internal/telemetry"
)

// NotifyTest pushes one synthetic cleaning through the real sweep and the
// configured channels.
func (a *App) NotifyTest(ctx context.Context, panelID string) (int, error) {
	if !a.Config.Alerting.Enabled {
		return 0, errors.New("alerting is not enabled")
	}
	if panelID == "" {
		panelID = "notify-test"
	}

	notifier, release := a.newNotifier()
	defer release()
	if notifier == nil {
		return 0, errors.New("no alerting channel configured")
	}

	now := time.Now().UTC()
	interval := a.Config.Watch.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	bucket := now.Truncate(interval)

	reader := &staticReader{snap: syntheticSnapshot(panelID, bucket.Add(-interval/2))}
	engine := a.newEngine(reader, nil).WithClock(func() time.Time { return now })

	cfg := *a.Config
	cfg.Watch = config.WatchConfig{
		Interval:   interval,
		WindowDays: 2,
		Panels:     []string{panelID},
	}
	watcher := service.NewWatcher(&cfg, nil, engine, nil, notifier, a.Logger)

	out, err := watcher.Sweep(ctx, bucket)
	if err != nil {
		return 0, err
	}
	if len(out) == 0 {
		return 0, fmt.Errorf("synthetic cleaning was not detected")
	}
	return len(out), nil
}

// syntheticSnapshot holds hourly dust readings that drop sharply at cleaning.
func syntheticSnapshot(panelID string, cleaning time.Time) analytics.Snapshot {
	readings := make([]analytics.Reading, 0, 7)
	for i := -6; i <= 0; i++ {
		dust := 120.0 + float64(i+6)
		if i == 0 {
			dust = 35.0
		}
		d := dust
		readings = append(readings, analytics.Reading{
			PanelID:   panelID,
			Timestamp: cleaning.Add(time.Duration(i) * time.Hour),
			Dust:      &d,
		})
	}
	return analytics.Snapshot{PanelID: panelID, Readings: readings}
}

type staticReader struct {
	snap analytics.Snapshot
}

func (s *staticReader) Fetch(_ context.Context, panelID string, window analytics.Window) (analytics.Snapshot, error) {
	snap := s.snap
	snap.PanelID = panelID
	snap.Window = window
	return snap, nil
}

var _ telemetry.Reader = (*staticReader)(nil)
