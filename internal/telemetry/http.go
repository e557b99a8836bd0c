package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"panel-trends/internal/analytics"
)

const (
	readingsPathFmt = "/api/sensors/%s/readings"
	// DefaultMaxBodyBytes bounds a readings response when MaxBodyBytes is unset.
	DefaultMaxBodyBytes int64 = 32 << 20
)

// ErrResponseTooLarge is returned when a response exceeds MaxBodyBytes.
var ErrResponseTooLarge = errors.New("telemetry response exceeds size limit")

// HTTPOptions parameterise the remote telemetry reader.
type HTTPOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	APIToken  string

	// MaxBodyBytes caps the response body read per fetch.
	MaxBodyBytes int64
}

// HTTPReader fetches readings from the fleet backend's sensor API.
type HTTPReader struct {
	opts    HTTPOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewHTTPReader constructs a remote telemetry reader.
func NewHTTPReader(opts HTTPOptions, logger zerolog.Logger) *HTTPReader {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	return &HTTPReader{
		opts:    opts,
		logger:  logger.With().Str("component", "telemetry_http").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

// Fetch retrieves the readings of panelID inside window.
func (h *HTTPReader) Fetch(ctx context.Context, panelID string, window analytics.Window) (analytics.Snapshot, error) {
	if h.baseURL == "" {
		return analytics.Snapshot{}, errors.New("telemetry base url not configured")
	}
	if strings.TrimSpace(panelID) == "" {
		return analytics.Snapshot{}, ErrPanelNotFound
	}

	query := url.Values{}
	query.Set("from", window.Start.UTC().Format(time.RFC3339Nano))
	query.Set("to", window.End.UTC().Format(time.RFC3339Nano))
	endpoint := h.baseURL + fmt.Sprintf(readingsPathFmt, url.PathEscape(panelID)) + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return analytics.Snapshot{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(h.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "paneltrends/1.0")
	}
	if h.opts.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+h.opts.APIToken)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return analytics.Snapshot{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, h.opts.MaxBodyBytes+1))
	if err != nil {
		return analytics.Snapshot{}, err
	}
	if int64(len(payload)) > h.opts.MaxBodyBytes {
		return analytics.Snapshot{}, fmt.Errorf("%w (%d bytes)", ErrResponseTooLarge, h.opts.MaxBodyBytes)
	}

	if resp.StatusCode == http.StatusNotFound {
		return analytics.Snapshot{}, fmt.Errorf("%w: %s", ErrPanelNotFound, panelID)
	}
	if resp.StatusCode != http.StatusOK {
		return analytics.Snapshot{}, parseHTTPError(resp.StatusCode, payload)
	}

	var body readingsResponse
	if err := json.Unmarshal(payload, &body); err != nil {
		return analytics.Snapshot{}, fmt.Errorf("decode readings: %w", err)
	}
	if !body.Success {
		return analytics.Snapshot{}, fmt.Errorf("telemetry api error: %s", body.Message)
	}

	snap := analytics.Snapshot{
		PanelID:        panelID,
		RatedCapacityW: body.Data.RatedCapacity,
		Window:         window,
		Readings:       body.Data.Readings,
	}
	for i := range snap.Readings {
		if snap.Readings[i].PanelID == "" {
			snap.Readings[i].PanelID = panelID
		}
	}

	h.logger.Debug().Str("panel_id", panelID).Int("readings", len(snap.Readings)).Msg("telemetry fetched")
	return snap, nil
}

type readingsResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		PanelID       string              `json:"panelId"`
		RatedCapacity float64             `json:"ratedCapacity"`
		Readings      []analytics.Reading `json:"readings"`
	} `json:"data"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("telemetry api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("telemetry api error (%d): %s", status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("telemetry api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("telemetry api error (%d)", status)
}

var _ Reader = (*HTTPReader)(nil)
