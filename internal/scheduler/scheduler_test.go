package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewRejectsNonPositiveInterval(t *testing.T) {
	if _, err := New(Options{}, zerolog.Nop()); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("expected ErrInvalidInterval, got %v", err)
	}
}

func TestNextTickAligned(t *testing.T) {
	s, err := New(Options{Interval: time.Hour, AlignToStart: true}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	now := time.Date(2025, 3, 1, 10, 17, 0, 0, time.UTC)
	if got := s.nextTick(now); !got.Equal(time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected next tick %s", got)
	}
	onBoundary := time.Date(2025, 3, 1, 11, 0, 0, 0, time.UTC)
	if got := s.nextTick(onBoundary); !got.Equal(onBoundary.Add(time.Hour)) {
		t.Fatalf("tick on boundary should move to the next bucket, got %s", got)
	}
	if got := s.bucketStart(now); !got.Equal(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected bucket start %s", got)
	}
}

func TestNextTickUnaligned(t *testing.T) {
	s, err := New(Options{Interval: 5 * time.Minute}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	now := time.Date(2025, 3, 1, 10, 17, 3, 0, time.UTC)
	if got := s.nextTick(now); !got.Equal(now.Add(5 * time.Minute)) {
		t.Fatalf("unexpected next tick %s", got)
	}
	if got := s.bucketStart(now); !got.Equal(now) {
		t.Fatalf("unaligned bucket should equal tick time, got %s", got)
	}
}

func TestRunImmediatelyFiresThenStops(t *testing.T) {
	s, err := New(Options{Interval: time.Hour, AlignToStart: true, RunImmediately: true}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	fixed := time.Date(2025, 3, 1, 10, 17, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	ctx, cancel := context.WithCancel(context.Background())
	var buckets []time.Time
	runErr := s.Run(ctx, func(_ context.Context, bucket time.Time) error {
		buckets = append(buckets, bucket)
		cancel()
		return errors.New("tick errors are logged only")
	})

	if !errors.Is(runErr, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", runErr)
	}
	if len(buckets) != 1 || !buckets[0].Equal(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected buckets %v", buckets)
	}
}
