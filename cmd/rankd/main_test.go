package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/searchrank/internal/api"
	"github.com/onnwee/searchrank/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestApp(t *testing.T, cfg *config.Config) *app {
	t.Helper()
	if cfg.Env == "" {
		cfg.Env = "test"
	}
	a, err := newApp(cfg, testLogger())
	if err != nil {
		t.Fatalf("newApp() returned error: %v", err)
	}
	t.Cleanup(func() { _ = a.close(context.Background()) })
	return a
}

const rankRequest = `{"candidates":[
	{"id":"far","distance_to_pivot":900000,"result_type":"City","rank":50,"name_score":"Full Match","errors_made":0,"num_tokens":1,"matched_fraction":1,"all_tokens_used":true,"has_name":true},
	{"id":"near","distance_to_pivot":100,"result_type":"City","rank":50,"name_score":"Full Match","errors_made":0,"num_tokens":1,"matched_fraction":1,"all_tokens_used":true,"has_name":true}
]}`

func TestServer_RankAndLookup(t *testing.T) {
	a := newTestApp(t, &config.Config{})
	srv := httptest.NewServer(a.handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/rank", "application/json", strings.NewReader(rankRequest))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
	if resp.Header.Get("X-RateLimit-Limit") != "600" {
		t.Errorf("unexpected rate limit header %q", resp.Header.Get("X-RateLimit-Limit"))
	}

	var ranked api.RankResponse
	if err := json.NewDecoder(resp.Body).Decode(&ranked); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(ranked.Results) != 2 || ranked.Results[0].ID != "near" || ranked.Results[0].Index != 1 {
		t.Fatalf("unexpected results %+v", ranked.Results)
	}

	lookup, err := http.Get(srv.URL + "/v1/stored/near")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer lookup.Body.Close()
	if lookup.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", lookup.StatusCode)
	}
	var stored api.StoredInfoResponse
	if err := json.NewDecoder(lookup.Body).Decode(&stored); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if stored.ResultType != "City" || stored.DistanceToPivot != 100 {
		t.Errorf("unexpected stored info %+v", stored)
	}
}

func TestServer_Routes(t *testing.T) {
	a := newTestApp(t, &config.Config{})
	srv := httptest.NewServer(a.handler())
	defer srv.Close()

	tests := []struct {
		method     string
		path       string
		wantStatus int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/ready", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/v1/stored/missing", http.StatusNotFound},
		{http.MethodGet, "/v1/rank", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, nil)
			if err != nil {
				t.Fatalf("failed to build request: %v", err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, resp.StatusCode)
			}
		})
	}
}

func TestServer_MetricsExposed(t *testing.T) {
	a := newTestApp(t, &config.Config{})
	srv := httptest.NewServer(a.handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/rank", "application/json", strings.NewReader(rankRequest))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		"ranking_requests_total 1",
		"ranking_candidates_text_total 2",
		"http_requests_total",
		`path="/v1/rank"`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestServer_RateLimit(t *testing.T) {
	a := newTestApp(t, &config.Config{RateLimitPerMinute: 1})
	srv := httptest.NewServer(a.handler())
	defer srv.Close()

	post := func() *http.Response {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/rank", strings.NewReader(rankRequest))
		req.Header.Set("X-Client-ID", "tester")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		return resp
	}

	if resp := post(); resp.StatusCode != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", resp.StatusCode)
	}
	resp := post()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second request: expected 429, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestServer_RateLimitIgnoresUntrustedClientID(t *testing.T) {
	a := newTestApp(t, &config.Config{RateLimitPerMinute: 1, TrustedClientIDs: []string{"batch-scorer"}})
	srv := httptest.NewServer(a.handler())
	defer srv.Close()

	post := func(clientID string) int {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/rank", strings.NewReader(rankRequest))
		req.Header.Set("X-Client-ID", clientID)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := post("rotate-1"); code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", code)
	}
	if code := post("rotate-2"); code != http.StatusTooManyRequests {
		t.Errorf("fresh client ID from same address: expected 429, got %d", code)
	}
	if code := post("batch-scorer"); code != http.StatusOK {
		t.Errorf("trusted client ID: expected 200, got %d", code)
	}
}

func TestNewApp_Calibration(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.json")

	a := newTestApp(t, &config.Config{Env: "development", CalibrationPath: missing})
	if a.calibrationCheck == nil {
		t.Fatal("expected failing calibration check in development")
	}
	srv := httptest.NewServer(a.handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/ready")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}

	if _, err := newApp(&config.Config{Env: "production", CalibrationPath: missing}, testLogger()); err == nil {
		t.Error("expected error in production")
	}
}

func TestNewApp_CalibrationFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.json")
	if err := os.WriteFile(path, []byte(`{"weights":{"text":{"rank":0.5}}}`), 0644); err != nil {
		t.Fatalf("failed to write calibration: %v", err)
	}

	a := newTestApp(t, &config.Config{CalibrationPath: path})
	if a.calibrationCheck != nil {
		t.Error("calibration should be healthy")
	}
}

func TestNewApp_CustomTaxonomyNeedsCategories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonomy.yaml")
	if err := os.WriteFile(path, []byte("amenity:\n  cafe:\n"), 0644); err != nil {
		t.Fatalf("failed to write taxonomy: %v", err)
	}
	if _, err := newApp(&config.Config{Env: "test", TaxonomyPath: path}, testLogger()); err == nil {
		t.Error("expected error without categories path")
	}
}

func TestNewApp_BadRedisURL(t *testing.T) {
	if _, err := newApp(&config.Config{Env: "test", RedisURL: "mysql://nope"}, testLogger()); err == nil {
		t.Error("expected error for invalid redis url")
	}
}

func TestServe_GracefulShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	started := make(chan struct{})
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		_, _ = w.Write([]byte("done"))
	})

	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))
	server := &http.Server{Handler: mux}

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() { serveErr <- serve(ctx, server, ln, logger) }()

	respCh := make(chan string, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/slow")
		if err != nil {
			respCh <- "error: " + err.Error()
			return
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		respCh <- string(body)
	}()

	<-started
	cancel()
	// In-flight requests finish before Serve returns.
	time.Sleep(50 * time.Millisecond)
	close(release)

	if got := <-respCh; got != "done" {
		t.Errorf("in-flight request: got %q", got)
	}
	select {
	case err := <-serveErr:
		if err != nil {
			t.Errorf("serve returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return")
	}
	if !strings.Contains(logBuf.String(), "shutting down server") {
		t.Error("expected shutdown log")
	}
}

func TestServe_ListenerError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	ln.Close()

	err = serve(context.Background(), &http.Server{}, ln, testLogger())
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		t.Errorf("expected serve error, got %v", err)
	}
}
