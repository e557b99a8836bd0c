package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"panel-trends/internal/analytics"
	"panel-trends/internal/telemetry"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	getPanelSQL = `SELECT
        id,
        name,
        rated_capacity_w::text
    FROM solar_panels
    WHERE id = $1;`

	listPanelIDsSQL = `SELECT id FROM solar_panels ORDER BY id;`

	listReadingsBetweenSQL = `SELECT
        panel_id,
        recorded_at,
        temperature::text,
        irradiance::text,
        dust::text,
        tilt::text,
        shading::text,
        voltage_v::text,
        current_a::text
    FROM sensor_readings
    WHERE panel_id = $1
      AND recorded_at >= $2
      AND recorded_at <= $3
    ORDER BY recorded_at, id;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// PanelStore lists panels known to the fleet database.
type PanelStore interface {
	GetPanel(ctx context.Context, panelID string) (PanelRecord, error)
	ListPanelIDs(ctx context.Context) ([]string, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store reads panels and sensor readings. It never writes fleet records.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// Closing the session releases the lock if the explicit unlock fails.
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// GetPanel loads a panel by id.
func (s *Store) GetPanel(ctx context.Context, panelID string) (PanelRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return PanelRecord{}, err
	}

	var (
		rec      PanelRecord
		capacity *string
	)
	scanErr := pool.QueryRow(ctx, getPanelSQL, panelID).Scan(&rec.ID, &rec.Name, &capacity)
	if errors.Is(scanErr, pgx.ErrNoRows) {
		return PanelRecord{}, fmt.Errorf("%w: %s", telemetry.ErrPanelNotFound, panelID)
	}
	if scanErr != nil {
		return PanelRecord{}, fmt.Errorf("get panel: %w", scanErr)
	}

	if capacity != nil {
		rec.RatedCapacityW, err = decimal.NewFromString(*capacity)
		if err != nil {
			return PanelRecord{}, fmt.Errorf("parse rated capacity: %w", err)
		}
	}
	return rec, nil
}

// ListPanelIDs returns every panel id in ascending order.
func (s *Store) ListPanelIDs(ctx context.Context) ([]string, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listPanelIDsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list panels: %w", queryErr)
	}
	ids, collectErr := pgx.CollectRows(rows, pgx.RowTo[string])
	if collectErr != nil {
		return nil, fmt.Errorf("list panels: %w", collectErr)
	}
	return ids, nil
}

// Fetch implements telemetry.Reader over the sensor_readings table.
func (s *Store) Fetch(ctx context.Context, panelID string, window analytics.Window) (analytics.Snapshot, error) {
	panel, err := s.GetPanel(ctx, panelID)
	if err != nil {
		return analytics.Snapshot{}, err
	}

	readings, err := s.ListReadingsBetween(ctx, panelID, window.Start, window.End)
	if err != nil {
		return analytics.Snapshot{}, err
	}

	return analytics.Snapshot{
		PanelID:        panel.ID,
		RatedCapacityW: panel.RatedCapacityW.InexactFloat64(),
		Window:         window,
		Readings:       readings,
	}, nil
}

// ListReadingsBetween lists readings of a panel within [from, to], ascending.
func (s *Store) ListReadingsBetween(ctx context.Context, panelID string, from, to time.Time) ([]analytics.Reading, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listReadingsBetweenSQL, panelID, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list readings between: %w", queryErr)
	}
	defer rows.Close()

	readings := make([]analytics.Reading, 0)
	for rows.Next() {
		reading, scanErr := scanReading(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		readings = append(readings, reading)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return readings, nil
}

func scanReading(rows pgx.Rows) (analytics.Reading, error) {
	var row readingRow
	if err := rows.Scan(
		&row.PanelID,
		&row.RecordedAt,
		&row.Temperature,
		&row.Irradiance,
		&row.Dust,
		&row.Tilt,
		&row.Shading,
		&row.Voltage,
		&row.Current,
	); err != nil {
		return analytics.Reading{}, err
	}
	return row.toReading()
}

var (
	_ telemetry.Reader = (*Store)(nil)
	_ PanelStore       = (*Store)(nil)
	_ AdvisoryLocker   = (*Store)(nil)
)
