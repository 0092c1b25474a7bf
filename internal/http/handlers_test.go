package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/city-weather-service/internal/client"
	"github.com/kjstillabower/city-weather-service/internal/models"
	"github.com/kjstillabower/city-weather-service/internal/observability"
	"github.com/kjstillabower/city-weather-service/internal/traffic"
)

// fakeLookup returns a canned result and records the cities it was asked for.
type fakeLookup struct {
	mu     sync.Mutex
	resp   *models.WeatherResponse
	err    error
	cities []string
}

func (f *fakeLookup) Lookup(ctx context.Context, city string) (*models.WeatherResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cities = append(f.cities, city)
	return f.resp, f.err
}

func (f *fakeLookup) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cities...)
}

type fakePinger struct {
	err error
}

func (p *fakePinger) Ping(ctx context.Context) error { return p.err }

type errorEnvelope struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		Detail    string `json:"detail"`
		RequestID string `json:"requestId"`
	} `json:"error"`
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func londonResponse() *models.WeatherResponse {
	return &models.WeatherResponse{
		Location: &models.Location{Name: strPtr("London"), Country: strPtr("United Kingdom")},
		Current:  &models.Current{TempC: floatPtr(14.2)},
	}
}

func serveWeather(t *testing.T, h *Handler, path string, ctx context.Context) *httptest.ResponseRecorder {
	t.Helper()
	router := mux.NewRouter()
	router.HandleFunc("/api/weather/{city}", h.GetWeather)

	req := httptest.NewRequest("GET", path, nil)
	if ctx != nil {
		req = req.WithContext(ctx)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var body errorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestHandler_GetWeather_Success(t *testing.T) {
	lookup := &fakeLookup{resp: londonResponse()}
	h := NewHandler(lookup, nil, nil, 100, zap.NewNop())

	w := serveWeather(t, h, "/api/weather/London", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var got models.WeatherResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Location == nil || got.Location.Name == nil || *got.Location.Name != "London" {
		t.Errorf("location.name = %+v, want London", got.Location)
	}
	if got.Current == nil || got.Current.TempC == nil || *got.Current.TempC != 14.2 {
		t.Errorf("current.temp_c = %+v, want 14.2", got.Current)
	}
}

func TestHandler_GetWeather_AbsentFieldsSerializeAsNull(t *testing.T) {
	lookup := &fakeLookup{resp: &models.WeatherResponse{Location: &models.Location{Name: strPtr("London")}}}
	h := NewHandler(lookup, nil, nil, 100, zap.NewNop())

	w := serveWeather(t, h, "/api/weather/London", nil)

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(raw["current"]) != "null" {
		t.Errorf("current = %s, want null", raw["current"])
	}
}

func TestHandler_GetWeather_TrimsCity(t *testing.T) {
	lookup := &fakeLookup{resp: londonResponse()}
	h := NewHandler(lookup, nil, nil, 100, zap.NewNop())

	serveWeather(t, h, "/api/weather/%20London%20", nil)

	if got := lookup.calls(); len(got) != 1 || got[0] != "London" {
		t.Errorf("lookup cities = %q, want [London]", got)
	}
}

func TestHandler_GetWeather_InvalidCity(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"whitespace only", "/api/weather/%20%20%20"},
		{"too long", "/api/weather/" + strings.Repeat("a", 101)},
		{"control character", "/api/weather/Lon%07don"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookup := &fakeLookup{resp: londonResponse()}
			h := NewHandler(lookup, nil, nil, 100, zap.NewNop())

			w := serveWeather(t, h, tt.path, nil)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			if body := decodeError(t, w); body.Error.Code != "INVALID_CITY" {
				t.Errorf("code = %q, want INVALID_CITY", body.Error.Code)
			}
			if n := len(lookup.calls()); n != 0 {
				t.Errorf("lookup called %d times, want 0", n)
			}
		})
	}
}

func TestHandler_GetWeather_AbsentValueIsNotFound(t *testing.T) {
	lookup := &fakeLookup{}
	h := NewHandler(lookup, nil, nil, 100, zap.NewNop())

	w := serveWeather(t, h, "/api/weather/Atlantis", nil)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	body := decodeError(t, w)
	if body.Error.Code != "CITY_NOT_FOUND" {
		t.Errorf("code = %q, want CITY_NOT_FOUND", body.Error.Code)
	}
	if body.Error.Message != "'Atlantis' not found" {
		t.Errorf("message = %q, want 'Atlantis' not found", body.Error.Message)
	}
}

func TestHandler_GetWeather_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantDetail bool
	}{
		{
			name:       "not found",
			err:        &client.LookupError{Kind: client.KindNotFound, City: "Nowhere", StatusCode: 400},
			wantStatus: http.StatusNotFound,
			wantCode:   "CITY_NOT_FOUND",
		},
		{
			name:       "auth",
			err:        &client.LookupError{Kind: client.KindAuth, City: "Nowhere", StatusCode: 403},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "UNAUTHORIZED",
		},
		{
			name:       "upstream status",
			err:        &client.LookupError{Kind: client.KindUpstream, City: "Nowhere", StatusCode: 503},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
			wantDetail: true,
		},
		{
			name:       "transport",
			err:        &client.LookupError{Kind: client.KindUpstream, City: "Nowhere", Err: context.DeadlineExceeded},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
			wantDetail: true,
		},
		{
			name:       "decode",
			err:        &client.LookupError{Kind: client.KindDecode, City: "Nowhere", Err: client.ErrDecode},
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
			wantDetail: true,
		},
		{
			name:       "untagged",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
			wantDetail: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&fakeLookup{err: tt.err}, nil, nil, 100, zap.NewNop())

			w := serveWeather(t, h, "/api/weather/Nowhere", nil)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			body := decodeError(t, w)
			if body.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Error.Code, tt.wantCode)
			}
			if tt.wantDetail {
				if body.Error.Message != internalErrorMessage {
					t.Errorf("message = %q, want %q", body.Error.Message, internalErrorMessage)
				}
				if body.Error.Detail != tt.err.Error() {
					t.Errorf("detail = %q, want %q", body.Error.Detail, tt.err.Error())
				}
			} else if body.Error.Detail != "" {
				t.Errorf("detail = %q, want empty", body.Error.Detail)
			}
		})
	}
}

func TestHandler_GetWeather_ErrorCarriesRequestID(t *testing.T) {
	h := NewHandler(&fakeLookup{err: errors.New("boom")}, nil, nil, 100, zap.NewNop())
	ctx := observability.WithCorrelationID(context.Background(), "test-correlation-id")

	w := serveWeather(t, h, "/api/weather/London", ctx)

	if got := decodeError(t, w).Error.RequestID; got != "test-correlation-id" {
		t.Errorf("requestId = %q, want test-correlation-id", got)
	}
}

func TestHandler_GetWeather_DoesNotLogLookupFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"upstream", &client.LookupError{Kind: client.KindUpstream, City: "London", StatusCode: 502, Err: client.ErrUpstreamFailure}},
		{"auth", &client.LookupError{Kind: client.KindAuth, City: "London", StatusCode: 401, Err: client.ErrInvalidAPIKey}},
		{"timeout", fmt.Errorf("request timeout: %w", context.DeadlineExceeded)},
		{"plain", errors.New("boom")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			h := NewHandler(&fakeLookup{err: tt.err}, nil, nil, 100, zap.New(core))
			ctx := observability.WithLogger(context.Background(), zap.New(core))

			w := serveWeather(t, h, "/api/weather/London", ctx)

			if w.Code == http.StatusOK {
				t.Fatalf("status = %d, want an error status", w.Code)
			}
			if n := logs.Len(); n != 0 {
				t.Errorf("handler logged %d entries, want 0 (service logs lookup failures): %v", n, logs.All())
			}
		})
	}
}

func TestHandler_GetHealth(t *testing.T) {
	tests := []struct {
		name         string
		cache        Pinger
		shuttingDown bool
		wantStatus   int
		wantBody     string
		wantCache    string
	}{
		{"healthy without cache check", nil, false, http.StatusOK, "healthy", ""},
		{"healthy with cache", &fakePinger{}, false, http.StatusOK, "healthy", "healthy"},
		{"cache unreachable", &fakePinger{err: errors.New("dial tcp: refused")}, false, http.StatusServiceUnavailable, "degraded", "unhealthy"},
		{"shutting down", &fakePinger{}, true, http.StatusServiceUnavailable, "shutting-down", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&fakeLookup{}, tt.cache, nil, 100, zap.NewNop())
			h.SetShuttingDown(tt.shuttingDown)

			req := httptest.NewRequest("GET", "/health", nil)
			w := httptest.NewRecorder()
			h.GetHealth(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var body struct {
				Status  string            `json:"status"`
				Service string            `json:"service"`
				Checks  map[string]string `json:"checks"`
			}
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tt.wantBody {
				t.Errorf("status field = %q, want %q", body.Status, tt.wantBody)
			}
			if body.Service != observability.ServiceName {
				t.Errorf("service = %q, want %q", body.Service, observability.ServiceName)
			}
			if body.Checks["cache"] != tt.wantCache {
				t.Errorf("checks.cache = %q, want %q", body.Checks["cache"], tt.wantCache)
			}
		})
	}
}

func TestHandler_GetHealth_LogsTransition(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	pinger := &fakePinger{}
	h := NewHandler(&fakeLookup{}, pinger, nil, 100, zap.New(core))

	get := func() {
		h.GetHealth(httptest.NewRecorder(), httptest.NewRequest("GET", "/health", nil))
	}

	get()
	get()
	if n := logs.FilterMessage("health status transition").Len(); n != 0 {
		t.Fatalf("transition logs = %d before any change, want 0", n)
	}

	pinger.err = errors.New("down")
	get()

	entries := logs.FilterMessage("health status transition").All()
	if len(entries) != 1 {
		t.Fatalf("transition logs = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["previous_status"] != "healthy" || fields["current_status"] != "degraded" {
		t.Errorf("transition fields = %v, want healthy -> degraded", fields)
	}
	if fields["reason"] != "cache_unreachable" {
		t.Errorf("reason = %v, want cache_unreachable", fields["reason"])
	}
}

func TestHandler_ShuttingDown(t *testing.T) {
	h := NewHandler(&fakeLookup{}, nil, nil, 100, nil)
	if h.ShuttingDown() {
		t.Fatal("ShuttingDown() = true on a new handler")
	}
	h.SetShuttingDown(true)
	if !h.ShuttingDown() {
		t.Error("ShuttingDown() = false after SetShuttingDown(true)")
	}
}

func TestHandler_GetHealth_DegradedOnErrorRate(t *testing.T) {
	health := &HealthConfig{
		Outcomes:         traffic.NewTracker(5 * time.Minute),
		DegradedWindow:   time.Minute,
		DegradedErrorPct: 50,
	}
	lookup := &fakeLookup{resp: londonResponse()}
	h := NewHandler(lookup, nil, health, 100, zap.NewNop())

	checkHealth := func() int {
		w := httptest.NewRecorder()
		h.GetHealth(w, httptest.NewRequest("GET", "/health", nil))
		return w.Code
	}

	serveWeather(t, h, "/api/weather/London", nil)
	if code := checkHealth(); code != http.StatusOK {
		t.Fatalf("health after success = %d, want 200", code)
	}

	lookup.err = &client.LookupError{Kind: client.KindNotFound, City: "Atlantis", StatusCode: 400}
	serveWeather(t, h, "/api/weather/Atlantis", nil)
	if code := checkHealth(); code != http.StatusOK {
		t.Fatalf("health after unknown city = %d, want 200", code)
	}

	lookup.err = &client.LookupError{Kind: client.KindUpstream, City: "London", StatusCode: 502}
	serveWeather(t, h, "/api/weather/London", nil)
	serveWeather(t, h, "/api/weather/London", nil)
	if code := checkHealth(); code != http.StatusServiceUnavailable {
		t.Errorf("health after 2 of 4 failed = %d, want 503", code)
	}
}
