package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tarunspandit/Flow7-A1EvoAcoustica/internal/metrics"
	"github.com/tarunspandit/Flow7-A1EvoAcoustica/internal/transfer"
)

type staticStatus struct {
	progress transfer.Progress
}

func (s staticStatus) Progress() transfer.Progress {
	return s.progress
}

func newTestServer(p transfer.Progress) (*HTTPServer, *metrics.Metrics) {
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	cfg := HTTPServerConfig{Address: "127.0.0.1", Port: 0, Enabled: true}
	return NewHTTPServer(cfg, logger, staticStatus{progress: p}, m, reg), m
}

func TestEndpoints(t *testing.T) {
	h, _ := newTestServer(transfer.Progress{
		State:         "streaming_channels",
		Target:        "192.168.1.50",
		EQType:        "XT32",
		Channel:       "SW1",
		ChannelsDone:  3,
		ChannelsTotal: 7,
	})

	tests := []struct {
		name     string
		method   string
		path     string
		wantCode int
		wantBody string
	}{
		{"health", http.MethodGet, "/health", http.StatusOK, `"transfer_state":"streaming_channels"`},
		{"status", http.MethodGet, "/status", http.StatusOK, `"channels_done":3`},
		{"root", http.MethodGet, "/", http.StatusOK, `"GET /status"`},
		{"metrics", http.MethodGet, "/metrics", http.StatusOK, "ocatransfer_state"},
		{"unknown path", http.MethodGet, "/nope", http.StatusNotFound, ""},
		{"wrong method", http.MethodPost, "/status", http.StatusMethodNotAllowed, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()
			h.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("Expected status %d, got %d", tt.wantCode, rec.Code)
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("Expected body to contain %q, got %s", tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestStatusJSON(t *testing.T) {
	h, _ := newTestServer(transfer.Progress{State: "finalized", PacketsSent: 36, Error: ""})

	rec := httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	var got transfer.Progress
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("Expected JSON body: %v", err)
	}
	if got.State != "finalized" || got.PacketsSent != 36 {
		t.Errorf("Unexpected progress: %+v", got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %s", ct)
	}
}

func TestHealthReportsFailure(t *testing.T) {
	h, _ := newTestServer(transfer.Progress{State: "closed", Error: "send layout: rejected"})

	rec := httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if !strings.Contains(rec.Body.String(), `"status":"failed"`) {
		t.Errorf("Expected failed health, got %s", rec.Body.String())
	}
}

func TestRequestsAreCounted(t *testing.T) {
	h, m := newTestServer(transfer.Progress{State: "idle"})

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	}

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/status", "200")); got != 3 {
		t.Errorf("Expected 3 counted requests, got %v", got)
	}
}

func TestStartStop(t *testing.T) {
	h, _ := newTestServer(transfer.Progress{State: "idle"})
	if err := h.Start(); err != nil {
		t.Fatalf("Expected no error but got: %v", err)
	}

	resp, err := http.Get("http://" + h.Addr() + "/health")
	if err != nil {
		t.Fatalf("Expected no error but got: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}

	if err := h.Stop(context.Background()); err != nil {
		t.Errorf("Expected clean stop, got %v", err)
	}
}
