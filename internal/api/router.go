package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"panel-trends/internal/analytics"
	"panel-trends/internal/metrics"
	"panel-trends/internal/service"
	"panel-trends/internal/version"
)

// Engine is the query surface the HTTP layer depends on.
type Engine interface {
	TimeSeries(ctx context.Context, panelID, interval string, limit int) ([]analytics.Bucket, error)
	EfficiencyDecay(ctx context.Context, panelID string, days int) (analytics.Result[analytics.EfficiencyTrend], error)
	DustPattern(ctx context.Context, panelID string, days int) (analytics.Result[analytics.DustPattern], error)
	TemperatureCorrelation(ctx context.Context, panelID string, days int) (analytics.Result[analytics.Correlation], error)
	MaintenanceImpact(ctx context.Context, panelID string, maintenanceAt time.Time, daysBefore, daysAfter int) (analytics.Result[analytics.Impact], error)
	Comprehensive(ctx context.Context, req service.ComprehensiveRequest) (service.Report, error)
}

type handler struct {
	engine Engine
	logger zerolog.Logger
}

// NewRouter wires the trend routes, health and metrics endpoints.
func NewRouter(engine Engine, m *metrics.Metrics, logger zerolog.Logger) http.Handler {
	h := &handler{engine: engine, logger: logger.With().Str("component", "api").Logger()}

	r := mux.NewRouter()
	r.Handle("/healthz", m.WrapHandler("healthz", http.HandlerFunc(healthHandler))).Methods(http.MethodGet)
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	trends := r.PathPrefix("/api/trends").Subrouter()
	routes := []struct {
		path string
		fn   http.HandlerFunc
	}{
		{"timeseries", h.timeSeries},
		{"efficiency-decay", h.efficiencyDecay},
		{"dust-pattern", h.dustPattern},
		{"temperature-correlation", h.temperatureCorrelation},
		{"maintenance-impact", h.maintenanceImpact},
		{"comprehensive", h.comprehensive},
	}
	for _, route := range routes {
		trends.Handle("/"+route.path+"/{panelId}", m.WrapHandler(route.path, route.fn)).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeFailure(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeFailure(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	var out http.Handler = r
	out = accessLog(h.logger)(out)
	out = requestID(out)
	out = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{h.logger}),
		handlers.PrintRecoveryStack(false),
	)(out)
	out = handlers.CORS(
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", requestIDHeader}),
	)(out)
	return handlers.CompressHandler(out)
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, "ok", map[string]string{"status": "ok", "version": version.String()})
}
