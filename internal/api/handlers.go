package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"panel-trends/internal/service"
)

const dateOnly = "2006-01-02"

func (h *handler) timeSeries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	buckets, err := h.engine.TimeSeries(r.Context(), panelID(r), q.Get("interval"), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, "time series retrieved", presentBuckets(buckets))
}

func (h *handler) efficiencyDecay(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r.URL.Query().Get("days"), "days")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.engine.EfficiencyDecay(r.Context(), panelID(r), days)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, "efficiency decay analyzed", mapResult(res, presentTrend))
}

func (h *handler) dustPattern(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r.URL.Query().Get("days"), "days")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.engine.DustPattern(r.Context(), panelID(r), days)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, "dust pattern analyzed", mapResult(res, presentDust))
}

func (h *handler) temperatureCorrelation(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r.URL.Query().Get("days"), "days")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.engine.TemperatureCorrelation(r.Context(), panelID(r), days)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, "temperature correlation analyzed", mapResult(res, presentCorrelation))
}

func (h *handler) maintenanceImpact(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw := q.Get("maintenanceDate")
	if raw == "" {
		h.fail(w, r, fmt.Errorf("%w: maintenanceDate is required", service.ErrInvalidInput))
		return
	}
	at, err := parseDate(raw)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	before, err := intParam(q.Get("daysBefore"), "daysBefore")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	after, err := intParam(q.Get("daysAfter"), "daysAfter")
	if err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.engine.MaintenanceImpact(r.Context(), panelID(r), at, before, after)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, "maintenance impact analyzed", mapResult(res, presentImpact))
}

func (h *handler) comprehensive(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := service.ComprehensiveRequest{PanelID: panelID(r), Interval: q.Get("interval")}

	var err error
	if req.Days, err = intParam(q.Get("days"), "days"); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.DaysBefore, err = intParam(q.Get("daysBefore"), "daysBefore"); err != nil {
		h.fail(w, r, err)
		return
	}
	if req.DaysAfter, err = intParam(q.Get("daysAfter"), "daysAfter"); err != nil {
		h.fail(w, r, err)
		return
	}
	if raw := q.Get("maintenanceDate"); raw != "" {
		at, err := parseDate(raw)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		req.MaintenanceAt = &at
	}

	report, err := h.engine.Comprehensive(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeSuccess(w, "comprehensive analysis complete", presentReport(report))
}

func panelID(r *http.Request) string {
	return mux.Vars(r)["panelId"]
}

// intParam parses an optional integer query value; empty means zero so the
// engine applies its default.
func intParam(raw, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", service.ErrInvalidInput, name)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive", service.ErrInvalidInput, name)
	}
	return v, nil
}

// parseDate accepts RFC 3339 timestamps or plain dates, read as UTC midnight.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(dateOnly, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: invalid date %q", service.ErrInvalidInput, raw)
}
