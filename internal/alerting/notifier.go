package alerting

import (
	"context"
	"errors"
	"time"

	"panel-trends/internal/analytics"
)

// Suggestion is an inferred cleaning forwarded to the maintenance workflow.
// It is advisory and never recorded as a maintenance event.
type Suggestion struct {
	PanelID      string                     `json:"panelId"`
	Event        analytics.MaintenanceEvent `json:"event"`
	DetectedAt   time.Time                  `json:"detectedAt"`
	DustTrend    analytics.Classification   `json:"dustTrend"`
	AverageLevel float64                    `json:"averageDustLevel"`
	Note         string                     `json:"note,omitempty"`
}

// Notifier delivers suggestions to a channel.
type Notifier interface {
	Notify(ctx context.Context, suggestion Suggestion) error
}

// Multi fans a suggestion out to every notifier and joins their errors.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, suggestion Suggestion) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, suggestion); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Notifier = Multi(nil)
