// Homerelay - Smart Home Sensor Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/homerelay

package middleware

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/homerelay/internal/metrics"
)

func TestPrometheusMetrics_RecordsRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics)
	r.Post("/sensor-data", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	r.Get("/devices/{id}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	badBefore := testutil.ToFloat64(metrics.APIRequestsTotal.WithLabelValues("POST", "/sensor-data", "400"))
	okBefore := testutil.ToFloat64(metrics.APIRequestsTotal.WithLabelValues("GET", "/devices/{id}", "200"))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/sensor-data", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/devices/a1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/devices/b2", nil))

	if got := testutil.ToFloat64(metrics.APIRequestsTotal.WithLabelValues("POST", "/sensor-data", "400")) - badBefore; got != 1 {
		t.Errorf("POST /sensor-data 400 delta = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.APIRequestsTotal.WithLabelValues("GET", "/devices/{id}", "200")) - okBefore; got != 2 {
		t.Errorf("GET /devices/{id} 200 delta = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.APIActiveRequests); got != 0 {
		t.Errorf("active requests = %v, want 0", got)
	}
}

func TestMetricsResponseWriter_FirstStatusWins(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &metricsResponseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusCreated)
	rw.WriteHeader(http.StatusInternalServerError)

	if rw.statusCode != http.StatusCreated {
		t.Errorf("statusCode = %d, want 201", rw.statusCode)
	}
}

type hijackRecorder struct {
	*httptest.ResponseRecorder
	hijacked bool
}

func (h *hijackRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h.hijacked = true
	return nil, nil, nil
}

func TestMetricsResponseWriter_Hijack(t *testing.T) {
	t.Run("delegates to underlying writer", func(t *testing.T) {
		under := &hijackRecorder{ResponseRecorder: httptest.NewRecorder()}
		rw := &metricsResponseWriter{ResponseWriter: under, statusCode: http.StatusOK}

		if _, _, err := rw.Hijack(); err != nil {
			t.Fatalf("Hijack() error = %v", err)
		}
		if !under.hijacked {
			t.Error("underlying Hijack not called")
		}
		if rw.statusCode != http.StatusSwitchingProtocols {
			t.Errorf("statusCode = %d, want 101", rw.statusCode)
		}
	})

	t.Run("errors when unsupported", func(t *testing.T) {
		rw := &metricsResponseWriter{ResponseWriter: httptest.NewRecorder(), statusCode: http.StatusOK}
		if _, _, err := rw.Hijack(); err == nil {
			t.Error("expected error from non-hijackable writer")
		}
	})
}
