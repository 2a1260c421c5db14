package observability_test

import (
	"WyvernExchange/internal/observability"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

// ============================================================================
// Test: Health endpoints
// ============================================================================

func TestHealthChecker_Liveness(t *testing.T) {
	h := observability.NewHealthChecker()
	rec := httptest.NewRecorder()
	h.LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("got %d, want %d", rec.Code, http.StatusOK)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "alive" {
		t.Errorf("got status %q, want alive", body["status"])
	}
}

func TestHealthChecker_Readiness(t *testing.T) {
	h := observability.NewHealthChecker()

	readyStatus := func() int {
		rec := httptest.NewRecorder()
		h.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		return rec.Code
	}

	if got := readyStatus(); got != http.StatusServiceUnavailable {
		t.Errorf("before ready: got %d, want 503", got)
	}
	h.SetReady(true)
	if got := readyStatus(); got != http.StatusOK {
		t.Errorf("after ready: got %d, want 200", got)
	}
	h.SetReady(false)
	if h.IsReady() {
		t.Error("expected not ready after SetReady(false)")
	}
}

func TestHealthChecker_FailingCheckDegrades(t *testing.T) {
	h := observability.NewHealthChecker()
	h.SetReady(true)
	h.AddCheck("store", func(context.Context) error { return nil })
	h.AddCheck("nats", func(context.Context) error { return errors.New("disconnected") })

	rec := httptest.NewRecorder()
	h.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("got %d, want 503", rec.Code)
	}

	var body struct {
		Status   string            `json:"status"`
		Failures map[string]string `json:"failures"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "degraded" || body.Failures["nats"] != "disconnected" {
		t.Errorf("got %+v", body)
	}
	if _, ok := body.Failures["store"]; ok {
		t.Error("passing check listed as a failure")
	}

	h.AddCheck("nats", func(context.Context) error { return nil })
	rec = httptest.NewRecorder()
	h.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("after recovery: got %d, want 200", rec.Code)
	}
}

// ============================================================================
// Test: Logging
// ============================================================================

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"disabled", zerolog.Disabled},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := observability.ParseLogLevel(tt.in); got != tt.want {
			t.Errorf("ParseLogLevel(%q): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLoggerTo_TagsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLoggerTo(&buf, "exchange", zerolog.InfoLevel)
	logger.Debug().Msg("hidden")
	logger.Info().Str("hash", "0x01").Msg("order cancelled")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if line["component"] != "exchange" || line["message"] != "order cancelled" {
		t.Errorf("got %v", line)
	}
}

// ============================================================================
// Test: Metrics registration
// ============================================================================

func TestNewMetrics_IsolatedRegistries(t *testing.T) {
	a := observability.NewMetrics(prometheus.NewRegistry())
	b := observability.NewMetrics(prometheus.NewRegistry())

	a.OpsApplied.WithLabelValues("deposit").Inc()

	if got := promtest.ToFloat64(a.OpsApplied.WithLabelValues("deposit")); got != 1 {
		t.Errorf("got %v, want 1", got)
	}
	if got := promtest.ToFloat64(b.OpsApplied.WithLabelValues("deposit")); got != 0 {
		t.Errorf("second registry: got %v, want 0", got)
	}
}

func TestNewMetrics_NamesAreNamespaced(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	m.Sequence.Set(3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("no metric families gathered")
	}
	for _, f := range families {
		if !strings.HasPrefix(f.GetName(), "wyvern_") {
			t.Errorf("metric %s is not in the wyvern namespace", f.GetName())
		}
	}
}
