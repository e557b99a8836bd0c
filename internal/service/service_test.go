package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"panel-trends/internal/alerting"
	"panel-trends/internal/analytics"
	"panel-trends/internal/config"
)

type recordingNotifier struct {
	got []alerting.Suggestion
	err error
}

func (r *recordingNotifier) Notify(_ context.Context, s alerting.Suggestion) error {
	r.got = append(r.got, s)
	return r.err
}

type fakeLister struct {
	ids      []string
	acquired bool
	locks    int
	unlocks  int
}

func (f *fakeLister) ListPanelIDs(context.Context) ([]string, error) {
	return f.ids, nil
}

func (f *fakeLister) TryAdvisoryLock(context.Context, int64) (func(), bool, error) {
	f.locks++
	if !f.acquired {
		return nil, false, nil
	}
	return func() { f.unlocks++ }, true, nil
}

type suggestionCounter struct{ delivered, failed int }

func (s *suggestionCounter) Suggestion(delivered bool) {
	if delivered {
		s.delivered++
		return
	}
	s.failed++
}

func watchConfig(panels ...string) *config.Config {
	return &config.Config{
		Watch: config.WatchConfig{
			Interval:        time.Hour,
			WindowDays:      30,
			Panels:          panels,
			AdvisoryLockKey: 42,
		},
		Alerting: config.AlertingConfig{Enabled: true},
	}
}

func TestSweepEmitsEventsSincePreviousTick(t *testing.T) {
	reader := &fakeReader{snap: analytics.Snapshot{RatedCapacityW: 200, Readings: tenDays(true)}}
	engine := newTestEngine(reader, nil)
	notifier := &recordingNotifier{}
	counter := &suggestionCounter{}
	w := NewWatcher(watchConfig("p1"), nil, engine, nil, notifier, zerolog.Nop()).WithObserver(counter)

	// The cleaning happened on day five; the tick right after it reports it.
	cleaning := testNow.AddDate(0, 0, -5)
	out, err := w.Sweep(context.Background(), cleaning.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(out) != 1 || len(notifier.got) != 1 {
		t.Fatalf("expected one suggestion, got %d (notified %d)", len(out), len(notifier.got))
	}
	if !out[0].Event.Timestamp.Equal(cleaning) || out[0].PanelID != "p1" {
		t.Fatalf("unexpected suggestion %#v", out[0])
	}
	if out[0].Note == "" || notifier.got[0].Note != out[0].Note {
		t.Fatalf("suggestion should carry a note, got %q", out[0].Note)
	}
	if counter.delivered != 1 {
		t.Fatalf("observer should record a delivery, got %+v", counter)
	}

	// A later tick must not repeat it.
	out, err = w.Sweep(context.Background(), testNow)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("stale event re-sent: %#v", out)
	}
}

func TestImmediateTickThenAlignedTickSuggestsOnce(t *testing.T) {
	reader := &fakeReader{snap: analytics.Snapshot{RatedCapacityW: 200, Readings: tenDays(true)}}
	cleaning := testNow.AddDate(0, 0, -5)
	bucket0 := cleaning.Add(-10 * time.Minute)

	clock := cleaning.Add(20 * time.Minute)
	engine := NewEngine(reader, analytics.DefaultThresholds(), Options{}, nil, zerolog.Nop()).
		WithClock(func() time.Time { return clock })
	notifier := &recordingNotifier{}
	w := NewWatcher(watchConfig("p1"), nil, engine, nil, notifier, zerolog.Nop())

	// Startup tick for the current bucket, fired mid-bucket.
	immediate, err := w.Sweep(context.Background(), bucket0)
	if err != nil {
		t.Fatalf("immediate sweep: %v", err)
	}
	if len(immediate) != 1 {
		t.Fatalf("startup tick should report the cleaning, got %d", len(immediate))
	}

	clock = bucket0.Add(time.Hour)
	aligned, err := w.Sweep(context.Background(), bucket0.Add(time.Hour))
	if err != nil {
		t.Fatalf("aligned sweep: %v", err)
	}
	if len(aligned) != 0 || len(notifier.got) != 1 {
		t.Fatalf("cleaning suggested twice: aligned=%d notified=%d", len(aligned), len(notifier.got))
	}
}

func TestSweepContinuesAfterPanelFailure(t *testing.T) {
	reader := &fakeReader{err: errors.New("down")}
	engine := newTestEngine(reader, nil)
	w := NewWatcher(watchConfig("p1", "p2"), nil, engine, nil, &recordingNotifier{}, zerolog.Nop())

	out, err := w.Sweep(context.Background(), testNow)
	if err != nil {
		t.Fatalf("per-panel failures should not fail the sweep: %v", err)
	}
	if len(out) != 0 || reader.calls != 2 {
		t.Fatalf("expected both panels attempted, calls=%d", reader.calls)
	}
}

func TestSweepListsPanelsFromStore(t *testing.T) {
	reader := &fakeReader{snap: analytics.Snapshot{RatedCapacityW: 200}}
	engine := newTestEngine(reader, nil)
	lister := &fakeLister{ids: []string{"a", "b", "c"}, acquired: true}
	w := NewWatcher(watchConfig(), nil, engine, lister, nil, zerolog.Nop())

	if _, err := w.Sweep(context.Background(), testNow); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if reader.calls != 3 {
		t.Fatalf("expected every listed panel fetched, got %d", reader.calls)
	}

	noSource := NewWatcher(watchConfig(), nil, engine, nil, nil, zerolog.Nop())
	if _, err := noSource.Sweep(context.Background(), testNow); err == nil {
		t.Fatal("sweep without panels or store should fail")
	}
}

func TestProcessBucketHonoursAdvisoryLock(t *testing.T) {
	reader := &fakeReader{snap: analytics.Snapshot{RatedCapacityW: 200}}
	engine := newTestEngine(reader, nil)

	held := &fakeLister{ids: []string{"p1"}}
	w := NewWatcher(watchConfig(), nil, engine, held, nil, zerolog.Nop())
	if err := w.ProcessBucket(context.Background(), testNow); err != nil {
		t.Fatalf("process bucket: %v", err)
	}
	if held.locks != 1 || reader.calls != 0 {
		t.Fatalf("held lock should skip the sweep: locks=%d calls=%d", held.locks, reader.calls)
	}

	free := &fakeLister{ids: []string{"p1"}, acquired: true}
	w = NewWatcher(watchConfig(), nil, engine, free, nil, zerolog.Nop())
	if err := w.ProcessBucket(context.Background(), testNow); err != nil {
		t.Fatalf("process bucket: %v", err)
	}
	if free.unlocks != 1 || reader.calls != 1 {
		t.Fatalf("expected sweep under lock: unlocks=%d calls=%d", free.unlocks, reader.calls)
	}
}

func TestRunWithoutScheduler(t *testing.T) {
	w := NewWatcher(watchConfig("p1"), nil, newTestEngine(&fakeReader{}, nil), nil, nil, zerolog.Nop())
	if err := w.Run(context.Background()); err == nil {
		t.Fatal("run without scheduler should fail")
	}
}
