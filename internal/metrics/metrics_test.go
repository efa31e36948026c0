// Homerelay - Smart Home Sensor Relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/homerelay

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSetConnectionGauges(t *testing.T) {
	SetConnectionGauges(1, 2, 3)

	tests := []struct {
		role string
		want float64
	}{
		{"unknown", 1},
		{"producer", 2},
		{"consumer", 3},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(ConnectionsActive.WithLabelValues(tt.role)); got != tt.want {
			t.Errorf("ConnectionsActive{role=%q} = %v, want %v", tt.role, got, tt.want)
		}
	}

	SetConnectionGauges(0, 0, 0)
	if got := testutil.ToFloat64(ConnectionsActive.WithLabelValues("consumer")); got != 0 {
		t.Errorf("expected gauge reset to 0, got %v", got)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/sensor-data", "200"))

	RecordAPIRequest("POST", "/sensor-data", "200", 3*time.Millisecond)

	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/sensor-data", "200"))
	if after-before != 1 {
		t.Errorf("expected counter to increase by 1, got %v", after-before)
	}
	if n := testutil.CollectAndCount(APIRequestDuration); n == 0 {
		t.Error("expected histogram series to be collected")
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)

	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests); got != before+1 {
		t.Errorf("after start: got %v, want %v", got, before+1)
	}

	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Errorf("after end: got %v, want %v", got, before)
	}
}
