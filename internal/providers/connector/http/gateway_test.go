package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/crmarques/jelapi/config"
	"github.com/crmarques/jelapi/faults"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewGatewayValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  config.Context
	}{
		{name: "missing_url", cfg: config.Context{Name: "dev", API: config.API{Token: "token"}}},
		{name: "unsupported_scheme", cfg: config.Context{Name: "dev", API: config.API{URL: "ftp://app.example.com", Token: "token"}}},
		{name: "missing_token", cfg: config.Context{Name: "dev", API: config.API{URL: "https://app.example.com/1.0/"}}},
		{name: "missing_token_file", cfg: config.Context{Name: "dev", API: config.API{
			URL: "https://app.example.com/1.0/", TokenFile: filepath.Join(t.TempDir(), "missing"),
		}}},
		{name: "invalid_timeout", cfg: config.Context{Name: "dev", API: config.API{
			URL: "https://app.example.com/1.0/", Token: "token", Timeout: "later",
		}}},
		{name: "invalid_platform_version", cfg: config.Context{Name: "dev", PlatformVersion: "new", API: config.API{
			URL: "https://app.example.com/1.0/", Token: "token",
		}}},
		{name: "half_client_certificate", cfg: config.Context{Name: "dev", API: config.API{
			URL: "https://app.example.com/1.0/", Token: "token", TLS: &config.TLS{ClientKeyFile: "/tmp/key.pem"},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewGateway(tt.cfg, WithRegisterer(prometheus.NewRegistry()))
			assertTypedCategory(t, err, faults.ValidationError)
		})
	}
}

func TestNewGatewayReadsTokenFile(t *testing.T) {
	t.Parallel()

	tokenFile := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(tokenFile, []byte("  from-file\n"), 0o600); err != nil {
		t.Fatalf("failed to write token file: %v", err)
	}

	gateway, err := NewGateway(config.Context{
		Name: "dev",
		API: config.API{
			URL:       "https://app.example.com/1.0",
			TokenFile: tokenFile,
			RateLimit: &config.RateLimit{RequestsPerSecond: 2},
		},
	}, WithRegisterer(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("NewGateway returned error: %v", err)
	}
	if gateway.token != "from-file" {
		t.Fatalf("expected trimmed token from file, got %q", gateway.token)
	}
	if gateway.baseURL.Path != "/1.0/" {
		t.Fatalf("expected base path with trailing slash, got %q", gateway.baseURL.Path)
	}
	if gateway.limiter == nil || gateway.limiter.Burst() != 1 {
		t.Fatal("expected rate limiter with default burst")
	}
	if !gateway.Ready() {
		t.Fatal("expected gateway to be ready")
	}
}

func TestGatewayCallPostsForm(t *testing.T) {
	t.Parallel()

	requests := make(chan capturedRequest, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		requests <- capturedRequest{method: r.Method, path: r.URL.Path, form: r.PostForm, header: r.Header.Clone()}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":0,"env":{"envName":"demo","status":1}}`))
	}))
	t.Cleanup(server.Close)

	gateway := newTestGateway(t, server.URL+"/1.0/", prometheus.NewRegistry())

	reply, err := gateway.Call(context.Background(), "Environment.Control.SetEnvGroup", map[string]any{
		"envName":   "demo",
		"envGroups": []string{"prod", "eu"},
		"count":     2,
		"enabled":   true,
		"skipped":   nil,
	})
	if err != nil {
		t.Fatalf("Call returned error: %v", err)
	}

	captured := <-requests
	if captured.method != http.MethodPost {
		t.Fatalf("expected POST, got %s", captured.method)
	}
	if captured.path != "/1.0/environment/control/rest/setenvgroup" {
		t.Fatalf("unexpected path %q", captured.path)
	}
	if got := captured.form.Get("session"); got != "token" {
		t.Fatalf("expected session token, got %q", got)
	}
	if got := captured.form.Get("envGroups"); got != `["prod","eu"]` {
		t.Fatalf("expected JSON encoded list, got %q", got)
	}
	if got := captured.form.Get("count"); got != "2" {
		t.Fatalf("expected count 2, got %q", got)
	}
	if got := captured.form.Get("enabled"); got != "true" {
		t.Fatalf("expected enabled true, got %q", got)
	}
	if _, ok := captured.form["skipped"]; ok {
		t.Fatal("expected nil argument to be omitted")
	}
	if got := captured.header.Get(requestIDHeader); got != "request-1" {
		t.Fatalf("expected request id header, got %q", got)
	}

	env, ok := reply["env"].(map[string]any)
	if !ok || env["envName"] != "demo" {
		t.Fatalf("unexpected reply %#v", reply)
	}
}

func TestGatewayCallFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		status      int
		body        string
		wantAuth    bool
		wantMessage string
	}{
		{name: "server_error", status: http.StatusInternalServerError, body: "boom", wantMessage: "HTTP status 500"},
		{name: "unauthorized", status: http.StatusUnauthorized, body: "", wantAuth: true, wantMessage: "HTTP status 401"},
		{name: "forbidden", status: http.StatusForbidden, body: "", wantAuth: true, wantMessage: "HTTP status 403"},
		{name: "non_zero_result", status: http.StatusOK, body: `{"result":11,"error":"env not found"}`, wantMessage: "result 11: env not found"},
		{name: "missing_result", status: http.StatusOK, body: `{"env":{}}`, wantMessage: "no result code"},
		{name: "not_json", status: http.StatusOK, body: `<html>`, wantMessage: "not a JSON object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(server.Close)

			gateway := newTestGateway(t, server.URL, prometheus.NewRegistry())
			_, err := gateway.Call(context.Background(), "Environment.Control.GetEnvInfo", map[string]any{"envName": "demo"})
			assertTypedCategory(t, err, faults.RemoteCallError)
			if !strings.Contains(err.Error(), tt.wantMessage) {
				t.Fatalf("expected message containing %q, got %v", tt.wantMessage, err)
			}
			if tt.wantAuth && !faults.IsCategory(errors.Unwrap(err), faults.AuthError) {
				t.Fatalf("expected auth error cause, got %v", errors.Unwrap(err))
			}
		})
	}
}

func TestGatewayRejectsLocallyWithoutRequest(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		_, _ = w.Write([]byte(`{"result":0}`))
	}))
	t.Cleanup(server.Close)

	gateway, err := NewGateway(config.Context{
		Name:            "old",
		PlatformVersion: "5.8.2",
		API:             config.API{URL: server.URL, Token: "token"},
	}, WithRegisterer(prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("NewGateway returned error: %v", err)
	}

	_, err = gateway.Call(context.Background(), "Environment.ApplyNodeGroupData", nil)
	assertTypedCategory(t, err, faults.ValidationError)

	_, err = gateway.Call(context.Background(), "Environment.Control.ApplyNodeGroupData", map[string]any{"envName": "demo"})
	assertTypedCategory(t, err, faults.ValidationError)
	if !strings.Contains(err.Error(), "requires platform version") {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = gateway.Call(context.Background(), "Environment.Control.GetEnvs", map[string]any{"session": "other"})
	assertTypedCategory(t, err, faults.ValidationError)

	if requests.Load() != 0 {
		t.Fatalf("expected no request, got %d", requests.Load())
	}

	if _, err := gateway.Call(context.Background(), "Environment.Control.GetEnvs", nil); err != nil {
		t.Fatalf("expected ungated function to pass, got %v", err)
	}
	if requests.Load() != 1 {
		t.Fatalf("expected one request, got %d", requests.Load())
	}
}

func TestGatewayRecordsMetricsAndSpans(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/getenvs") {
			_, _ = w.Write([]byte(`{"result":0,"infos":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"result":2,"error":"denied"}`))
	}))
	t.Cleanup(server.Close)

	registry := prometheus.NewRegistry()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	gateway, err := NewGateway(config.Context{
		Name: "dev",
		API:  config.API{URL: server.URL, Token: "token"},
	}, WithRegisterer(registry), WithTracerProvider(provider))
	if err != nil {
		t.Fatalf("NewGateway returned error: %v", err)
	}

	if _, err := gateway.Call(context.Background(), "Environment.Control.GetEnvs", nil); err != nil {
		t.Fatalf("Call returned error: %v", err)
	}
	if _, err := gateway.Call(context.Background(), "Environment.Control.StopEnv", map[string]any{"envName": "demo"}); err == nil {
		t.Fatal("expected StopEnv to fail")
	}

	if got := testutil.ToFloat64(gateway.metrics.calls.WithLabelValues("Environment.Control.GetEnvs", outcomeSuccess)); got != 1 {
		t.Fatalf("expected one successful call, got %v", got)
	}
	if got := testutil.ToFloat64(gateway.metrics.calls.WithLabelValues("Environment.Control.StopEnv", outcomeRemote)); got != 1 {
		t.Fatalf("expected one failed call, got %v", got)
	}

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected two spans, got %d", len(spans))
	}
	if spans[0].Name() != "Environment.Control.GetEnvs" {
		t.Fatalf("unexpected span name %q", spans[0].Name())
	}
	if len(spans[1].Events()) == 0 {
		t.Fatal("expected failed call span to record the error")
	}

	second, err := NewGateway(config.Context{
		Name: "dev",
		API:  config.API{URL: server.URL, Token: "token"},
	}, WithRegisterer(registry))
	if err != nil {
		t.Fatalf("expected second gateway to reuse registered collectors, got %v", err)
	}
	if second.metrics.calls != gateway.metrics.calls {
		t.Fatal("expected collectors to be shared")
	}
}

type capturedRequest struct {
	method string
	path   string
	form   url.Values
	header http.Header
}

func newTestGateway(t *testing.T, baseURL string, registry *prometheus.Registry) *Gateway {
	t.Helper()

	var sequence atomic.Int32
	gateway, err := NewGateway(config.Context{
		Name: "test",
		API:  config.API{URL: baseURL, Token: "token"},
	}, WithRegisterer(registry), withRequestID(func() string {
		return "request-" + string(rune('0'+sequence.Add(1)))
	}))
	if err != nil {
		t.Fatalf("NewGateway returned error: %v", err)
	}
	return gateway
}

func assertTypedCategory(t *testing.T, err error, category faults.ErrorCategory) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected %q error, got nil", category)
	}
	if !faults.IsCategory(err, category) {
		t.Fatalf("expected %q category, got %v", category, err)
	}
}
