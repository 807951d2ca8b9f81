package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/crmarques/jelapi/connector"
	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	sessionField    = "session"
	requestIDHeader = "X-Request-ID"
	formMediaType   = "application/x-www-form-urlencoded"
	jsonMediaType   = "application/json"
)

// Call posts args to the endpoint of function and returns the decoded reply.
func (g *Gateway) Call(ctx context.Context, function string, args map[string]any) (map[string]any, error) {
	parsed, err := connector.ParseFunction(function)
	if err != nil {
		return nil, err
	}
	name := parsed.String()

	if err := g.checkPlatformVersion(name); err != nil {
		return nil, err
	}

	form, err := encodeForm(args)
	if err != nil {
		return nil, err
	}
	form.Set(sessionField, g.token)

	requestID := g.requestID()
	logger := logr.FromContextOrDiscard(ctx).WithValues("function", name, "requestID", requestID)

	ctx, span := g.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("jelastic.function", name),
			attribute.String("jelastic.request_id", requestID),
		),
	)
	defer span.End()

	if err := g.wait(ctx); err != nil {
		failSpan(span, err)
		return nil, err
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint(parsed), strings.NewReader(form.Encode()))
	if err != nil {
		failSpan(span, err)
		return nil, internalError("failed to create remote request", err)
	}
	request.Header.Set("Content-Type", formMediaType)
	request.Header.Set("Accept", jsonMediaType)
	request.Header.Set("User-Agent", g.userAgent)
	request.Header.Set(requestIDHeader, requestID)

	logger.V(1).Info("remote call", "url", redactURL(request.URL), "args", argumentNames(args))

	started := time.Now()
	reply, outcome, err := g.execute(request, name)
	elapsed := time.Since(started)
	g.metrics.observe(name, outcome, elapsed.Seconds())

	if err != nil {
		logger.V(1).Info("remote call failed", "outcome", outcome, "duration", elapsed, "error", err.Error())
		failSpan(span, err)
		return nil, err
	}

	logger.V(2).Info("remote call succeeded", "duration", elapsed, "keys", replyKeys(reply))
	span.SetStatus(codes.Ok, "")
	return reply, nil
}

func (g *Gateway) execute(request *http.Request, function string) (map[string]any, string, error) {
	response, err := g.client.Do(request)
	if err != nil {
		return nil, outcomeTransport, transportError(fmt.Sprintf("%s: remote request failed", function), err)
	}
	defer response.Body.Close()

	trace.SpanFromContext(request.Context()).SetAttributes(attribute.Int("http.response.status_code", response.StatusCode))

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return nil, outcomeTransport, transportError(fmt.Sprintf("%s: failed to read remote response body", function), err)
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return nil, outcomeHTTP, classifyStatusError(function, response.StatusCode, body)
	}

	reply, err := decodeReply(function, body)
	if err != nil {
		return nil, outcomeRemote, err
	}
	if err := checkResult(function, reply); err != nil {
		return nil, outcomeRemote, err
	}
	return reply, outcomeSuccess, nil
}

// endpoint maps Group.Class.Function to <base>/group/class/rest/function.
func (g *Gateway) endpoint(function connector.Function) string {
	target := *g.baseURL
	target.Path = path.Join(
		g.baseURL.Path,
		strings.ToLower(function.Group),
		strings.ToLower(function.Class),
		"rest",
		strings.ToLower(function.Name),
	)
	return target.String()
}

// encodeForm formats scalars as text and encodes composite values as JSON.
// Nil values are omitted.
func encodeForm(args map[string]any) (url.Values, error) {
	form := url.Values{}
	for key, value := range args {
		if key == sessionField {
			return nil, validationError("session argument is reserved", nil)
		}
		encoded, ok, err := encodeArgument(value)
		if err != nil {
			return nil, validationError(fmt.Sprintf("argument %q could not be encoded", key), err)
		}
		if ok {
			form.Set(key, encoded)
		}
	}
	return form, nil
}

func encodeArgument(value any) (string, bool, error) {
	switch typed := value.(type) {
	case nil:
		return "", false, nil
	case string:
		return typed, true, nil
	case bool:
		return strconv.FormatBool(typed), true, nil
	case int:
		return strconv.Itoa(typed), true, nil
	case int64:
		return strconv.FormatInt(typed, 10), true, nil
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), true, nil
	case json.Number:
		return typed.String(), true, nil
	case time.Time:
		return typed.UTC().Format(time.RFC3339), true, nil
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return "", false, err
		}
		return string(encoded), true, nil
	}
}

func argumentNames(args map[string]any) []string {
	names := make([]string, 0, len(args))
	for key := range args {
		names = append(names, key)
	}
	sort.Strings(names)
	return names
}

func replyKeys(reply map[string]any) []string {
	return argumentNames(reply)
}

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func redactURL(value *url.URL) string {
	if value == nil {
		return ""
	}
	cloned := *value
	cloned.User = nil
	cloned.RawQuery = ""
	return cloned.String()
}
