package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/city-weather-service/internal/client"
	"github.com/kjstillabower/city-weather-service/internal/models"
	"github.com/kjstillabower/city-weather-service/internal/observability"
	"github.com/kjstillabower/city-weather-service/internal/traffic"
	"github.com/kjstillabower/city-weather-service/internal/validation"
)

const internalErrorMessage = "Server side error. Please try again later."

// WeatherLookup is the core operation served by GET /api/weather/{city}.
type WeatherLookup interface {
	Lookup(ctx context.Context, city string) (*models.WeatherResponse, error)
}

// Pinger reports backend reachability for /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthConfig holds the error-rate threshold for /health. Outcomes is fed by GetWeather.
type HealthConfig struct {
	Outcomes         *traffic.Tracker
	DegradedWindow   time.Duration
	DegradedErrorPct int
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	weather       WeatherLookup
	cache         Pinger
	health        *HealthConfig
	cityMaxLength int
	logger        *zap.Logger

	shuttingDown     atomic.Bool
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. cache and health may be nil, which drops
// the matching /health check. cityMaxLength <= 0 disables the length bound.
func NewHandler(weather WeatherLookup, cache Pinger, health *HealthConfig, cityMaxLength int, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		weather:       weather,
		cache:         cache,
		health:        health,
		cityMaxLength: cityMaxLength,
		logger:        logger,
	}
}

// SetShuttingDown flips /health to shutting-down. Called when the process starts draining.
func (h *Handler) SetShuttingDown(v bool) {
	h.shuttingDown.Store(v)
}

// ShuttingDown reports whether the handler is draining.
func (h *Handler) ShuttingDown() bool {
	return h.shuttingDown.Load()
}

// GetWeather handles GET /api/weather/{city}.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	city, err := validation.ValidateCity(mux.Vars(r)["city"], h.cityMaxLength)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_CITY", err.Error(), "")
		return
	}

	result, err := h.weather.Lookup(r.Context(), city)
	h.recordOutcome(err)
	if err != nil {
		h.writeLookupError(w, r, city, err)
		return
	}
	if result == nil {
		writeError(w, r, http.StatusNotFound, "CITY_NOT_FOUND", fmt.Sprintf("'%s' not found", city), "")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// writeLookupError maps a lookup failure to the response contract:
// not found is 404, a rejected API key is 401, everything else is 500 with the error text as detail.
// The service has already logged the failure with the upstream status.
func (h *Handler) writeLookupError(w http.ResponseWriter, r *http.Request, city string, err error) {
	switch client.KindOf(err) {
	case client.KindNotFound:
		writeError(w, r, http.StatusNotFound, "CITY_NOT_FOUND", fmt.Sprintf("'%s' not found", city), "")
	case client.KindAuth:
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", client.ErrInvalidAPIKey.Error(), "")
	default:
		writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", internalErrorMessage, err.Error())
	}
}

// recordOutcome feeds the degraded check. Unknown cities are the caller's
// problem and count as answered.
func (h *Handler) recordOutcome(err error) {
	if h.health == nil || h.health.Outcomes == nil {
		return
	}
	if err == nil || client.KindOf(err) == client.KindNotFound {
		h.health.Outcomes.RecordSuccess()
		return
	}
	h.health.Outcomes.RecordError()
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
	checks     map[string]string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus(r.Context())

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":    result.status,
		"service":   observability.ServiceName,
		"checks":    result.checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates in priority order:
// shutting-down > cache unreachable > error rate breach > healthy.
func (h *Handler) computeHealthStatus(ctx context.Context) healthResult {
	checks := make(map[string]string)
	if h.ShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal", checks}
	}
	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			checks["cache"] = "unhealthy"
			return healthResult{"degraded", http.StatusServiceUnavailable, "cache_unreachable", checks}
		}
		checks["cache"] = "healthy"
	}
	if h.errorRateBreached() {
		checks["weatherApi"] = "unhealthy"
		return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach", checks}
	}
	return healthResult{"healthy", http.StatusOK, "", checks}
}

func (h *Handler) errorRateBreached() bool {
	if h.health == nil || h.health.Outcomes == nil || h.health.DegradedWindow <= 0 || h.health.DegradedErrorPct <= 0 {
		return false
	}
	errs, total := h.health.Outcomes.ErrorRate(h.health.DegradedWindow)
	if total == 0 {
		return false
	}
	return float64(errs)*100/float64(total) >= float64(h.health.DegradedErrorPct)
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"requestId"`
}

// writeError writes an error response in the standard error format with code, message,
// optional detail and requestId (correlation ID) when present in the request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message, detail string) {
	writeJSON(w, status, map[string]errorBody{
		"error": {
			Code:      code,
			Message:   message,
			Detail:    detail,
			RequestID: observability.CorrelationID(r.Context()),
		},
	})
}
