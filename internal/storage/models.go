package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"panel-trends/internal/analytics"
)

// PanelRecord is the subset of a panel row the engine reads.
type PanelRecord struct {
	ID             string
	Name           string
	RatedCapacityW decimal.Decimal
}

// readingRow mirrors a sensor_readings row with numerics fetched as text.
type readingRow struct {
	PanelID     string
	RecordedAt  time.Time
	Temperature sql.NullString
	Irradiance  sql.NullString
	Dust        sql.NullString
	Tilt        sql.NullString
	Shading     sql.NullString
	Voltage     sql.NullString
	Current     sql.NullString
}

func (r readingRow) toReading() (analytics.Reading, error) {
	reading := analytics.Reading{PanelID: r.PanelID, Timestamp: r.RecordedAt.UTC()}

	fields := []struct {
		name string
		src  sql.NullString
		dst  **float64
	}{
		{"temperature", r.Temperature, &reading.Temperature},
		{"irradiance", r.Irradiance, &reading.Irradiance},
		{"dust", r.Dust, &reading.Dust},
		{"tilt", r.Tilt, &reading.Tilt},
		{"shading", r.Shading, &reading.Shading},
		{"voltage", r.Voltage, &reading.Voltage},
		{"current", r.Current, &reading.Current},
	}
	for _, f := range fields {
		v, err := parseOptional(f.src)
		if err != nil {
			return analytics.Reading{}, fmt.Errorf("parse %s: %w", f.name, err)
		}
		*f.dst = v
	}
	return reading, nil
}

func parseOptional(ns sql.NullString) (*float64, error) {
	if !ns.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil, err
	}
	v := d.InexactFloat64()
	return &v, nil
}
