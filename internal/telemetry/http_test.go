package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"panel-trends/internal/analytics"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testWindow() analytics.Window {
	end := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	return analytics.Window{Start: end.AddDate(0, 0, -3), End: end}
}

func TestHTTPReaderMissingBaseURL(t *testing.T) {
	r := NewHTTPReader(HTTPOptions{}, noopLogger())
	if _, err := r.Fetch(context.Background(), "p1", testWindow()); err == nil {
		t.Fatal("missing base url should fail")
	}
}

func TestHTTPReaderNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "Panel not found"})
	}))
	defer srv.Close()

	r := NewHTTPReader(HTTPOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	_, err := r.Fetch(context.Background(), "missing", testWindow())
	if !errors.Is(err, ErrPanelNotFound) {
		t.Fatalf("expected ErrPanelNotFound, got %v", err)
	}
}

func TestHTTPReaderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "db down"})
	}))
	defer srv.Close()

	r := NewHTTPReader(HTTPOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	_, err := r.Fetch(context.Background(), "p1", testWindow())
	if err == nil || !strings.Contains(err.Error(), "db down") {
		t.Fatalf("expected api error message, got %v", err)
	}
}

func TestHTTPReaderSuccess(t *testing.T) {
	win := testWindow()
	var gotPath, gotFrom, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFrom = r.URL.Query().Get("from")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"panelId":       "p1",
				"ratedCapacity": 400,
				"readings": []map[string]any{
					{"timestamp": win.Start.Add(time.Hour), "voltage": 30, "current": 5, "dust": 12.5},
					{"timestamp": win.Start.Add(2 * time.Hour), "temperature": 41.2},
				},
			},
		})
	}))
	defer srv.Close()

	r := NewHTTPReader(HTTPOptions{BaseURL: srv.URL + "/", Timeout: time.Second, APIToken: "secret"}, noopLogger())
	snap, err := r.Fetch(context.Background(), "p1", win)
	if err != nil {
		t.Fatalf("fetch should succeed: %v", err)
	}

	if gotPath != "/api/sensors/p1/readings" {
		t.Fatalf("unexpected path %s", gotPath)
	}
	if gotFrom != win.Start.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected from %s", gotFrom)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if snap.RatedCapacityW != 400 || len(snap.Readings) != 2 {
		t.Fatalf("unexpected snapshot %#v", snap)
	}
	if snap.Readings[0].PanelID != "p1" {
		t.Fatalf("panel id should be filled in")
	}
	if p, ok := snap.Readings[0].Power(); !ok || p != 150 {
		t.Fatalf("power should be 150, got %v %v", p, ok)
	}
	if snap.Readings[1].Dust != nil {
		t.Fatalf("absent dust must stay nil")
	}
}

func TestHTTPReaderRejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"readings":[` + strings.Repeat(`{"dust":1},`, 200) + `{}]}}`))
	}))
	defer srv.Close()

	r := NewHTTPReader(HTTPOptions{BaseURL: srv.URL, Timeout: time.Second, MaxBodyBytes: 512}, noopLogger())
	_, err := r.Fetch(context.Background(), "p1", testWindow())
	if !errors.Is(err, ErrResponseTooLarge) {
		t.Fatalf("expected ErrResponseTooLarge, got %v", err)
	}

	r = NewHTTPReader(HTTPOptions{BaseURL: srv.URL, Timeout: time.Second, MaxBodyBytes: 1 << 20}, noopLogger())
	snap, err := r.Fetch(context.Background(), "p1", testWindow())
	if err != nil || len(snap.Readings) != 201 {
		t.Fatalf("body under the cap should decode: %v (%d readings)", err, len(snap.Readings))
	}
}

func TestCheckOrder(t *testing.T) {
	win := testWindow()
	ordered := analytics.Snapshot{Readings: []analytics.Reading{
		{Timestamp: win.Start},
		{Timestamp: win.Start},
		{Timestamp: win.End},
	}}
	if err := CheckOrder(ordered); err != nil {
		t.Fatalf("ordered snapshot rejected: %v", err)
	}

	unordered := analytics.Snapshot{Readings: []analytics.Reading{
		{Timestamp: win.End},
		{Timestamp: win.Start},
	}}
	if err := CheckOrder(unordered); !errors.Is(err, ErrUnordered) {
		t.Fatalf("expected ErrUnordered, got %v", err)
	}
}
