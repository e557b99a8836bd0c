package telemetry

import (
	"context"
	"errors"
	"fmt"

	"panel-trends/internal/analytics"
)

var (
	// ErrPanelNotFound indicates the panel id is unknown to the source.
	ErrPanelNotFound = errors.New("telemetry: panel not found")
	// ErrUnordered indicates a source returned readings out of order.
	ErrUnordered = errors.New("telemetry: readings not in ascending order")
)

// Reader fetches the readings of one panel within a window. Readings must be
// ascending by timestamp without duplicates.
type Reader interface {
	Fetch(ctx context.Context, panelID string, window analytics.Window) (analytics.Snapshot, error)
}

// CheckOrder verifies the ordering contract of a snapshot.
func CheckOrder(snap analytics.Snapshot) error {
	for i := 1; i < len(snap.Readings); i++ {
		prev, cur := snap.Readings[i-1].Timestamp, snap.Readings[i].Timestamp
		if cur.Before(prev) {
			return fmt.Errorf("%w: reading %d at %s follows %s", ErrUnordered, i, cur, prev)
		}
	}
	return nil
}
