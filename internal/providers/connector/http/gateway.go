package http

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/crmarques/jelapi/config"
	"github.com/crmarques/jelapi/connector"
	"github.com/crmarques/jelapi/internal/providers/shared/tlsconfig"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	// Control plane calls are synchronous; topology changes routinely take
	// minutes.
	defaultHTTPTimeout = 10 * time.Minute
	defaultUserAgent   = "jelapi"
	tracerName         = "github.com/crmarques/jelapi/internal/providers/connector/http"
	maxResponseBytes   = 32 << 20
)

var _ connector.Caller = (*Gateway)(nil)

// Gateway calls the control plane REST endpoints. It is safe for concurrent
// use.
type Gateway struct {
	baseURL   *url.URL
	token     string
	client    *http.Client
	userAgent string

	limiter  *rate.Limiter
	platform *semver.Version
	minimums map[string]*semver.Constraints

	registerer     prometheus.Registerer
	tracerProvider trace.TracerProvider
	metrics        *callMetrics
	tracer         trace.Tracer
	requestID      func() string
}

type GatewayOption func(*Gateway)

func WithHTTPClient(client *http.Client) GatewayOption {
	return func(g *Gateway) {
		if client == nil {
			return
		}
		g.client = client
	}
}

// WithRegisterer registers the call metrics on registerer instead of the
// default prometheus registry.
func WithRegisterer(registerer prometheus.Registerer) GatewayOption {
	return func(g *Gateway) {
		g.registerer = registerer
	}
}

func WithTracerProvider(provider trace.TracerProvider) GatewayOption {
	return func(g *Gateway) {
		g.tracerProvider = provider
	}
}

func WithUserAgent(userAgent string) GatewayOption {
	return func(g *Gateway) {
		if strings.TrimSpace(userAgent) == "" {
			return
		}
		g.userAgent = strings.TrimSpace(userAgent)
	}
}

// WithMinimumVersion requires platform version constraint for function, on
// top of the built-in requirements.
func WithMinimumVersion(function string, constraint string) GatewayOption {
	return func(g *Gateway) {
		parsed, err := semver.NewConstraint(constraint)
		if err != nil {
			return
		}
		g.minimums[function] = parsed
	}
}

func withRequestID(generate func() string) GatewayOption {
	return func(g *Gateway) {
		g.requestID = generate
	}
}

func NewGateway(cfg config.Context, opts ...GatewayOption) (*Gateway, error) {
	baseURL, err := parseBaseURL(cfg.API.URL)
	if err != nil {
		return nil, err
	}

	token, err := resolveToken(cfg.API)
	if err != nil {
		return nil, err
	}

	timeout := defaultHTTPTimeout
	if raw := strings.TrimSpace(cfg.API.Timeout); raw != "" {
		timeout, err = time.ParseDuration(raw)
		if err != nil {
			return nil, validationError("api.timeout is not a duration", err)
		}
	}

	transport, err := tlsconfig.NewTransport(cfg.API.TLS, "api")
	if err != nil {
		return nil, err
	}

	gateway := &Gateway{
		baseURL:   baseURL,
		token:     token,
		client:    &http.Client{Timeout: timeout, Transport: transport},
		userAgent: defaultUserAgent,
		minimums:  defaultMinimumVersions(),
		requestID: uuid.NewString,
	}

	if raw := strings.TrimSpace(cfg.PlatformVersion); raw != "" {
		gateway.platform, err = semver.NewVersion(raw)
		if err != nil {
			return nil, validationError("platform-version is not a valid version", err)
		}
	}

	if cfg.API.RateLimit != nil && cfg.API.RateLimit.RequestsPerSecond > 0 {
		burst := cfg.API.RateLimit.Burst
		if burst <= 0 {
			burst = 1
		}
		gateway.limiter = rate.NewLimiter(rate.Limit(cfg.API.RateLimit.RequestsPerSecond), burst)
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(gateway)
	}

	if gateway.registerer == nil {
		gateway.registerer = prometheus.DefaultRegisterer
	}
	gateway.metrics, err = newCallMetrics(gateway.registerer)
	if err != nil {
		return nil, internalError("failed to register connector metrics", err)
	}

	if gateway.tracerProvider == nil {
		gateway.tracerProvider = otel.GetTracerProvider()
	}
	gateway.tracer = gateway.tracerProvider.Tracer(tracerName)

	return gateway, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, validationError("api.url is required", nil)
	}

	parsed, err := url.Parse(value)
	if err != nil {
		return nil, validationError("api.url is invalid", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, validationError("api.url must use http or https", nil)
	}
	if parsed.Host == "" {
		return nil, validationError("api.url host is required", nil)
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	parsed.RawQuery = ""

	return parsed, nil
}

func resolveToken(api config.API) (string, error) {
	if token := strings.TrimSpace(api.Token); token != "" {
		return token, nil
	}

	tokenFile := strings.TrimSpace(api.TokenFile)
	if tokenFile == "" {
		return "", validationError("api requires token or token-file", nil)
	}
	data, err := os.ReadFile(tokenFile)
	if err != nil {
		return "", validationError("api.token-file could not be read", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", validationError("api.token-file is empty", nil)
	}
	return token, nil
}

// Ready reports whether the gateway has what it needs to authenticate.
func (g *Gateway) Ready() bool {
	return g != nil && g.baseURL != nil && g.token != ""
}

func (g *Gateway) wait(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return transportError("rate limiter wait interrupted", err)
	}
	return nil
}
