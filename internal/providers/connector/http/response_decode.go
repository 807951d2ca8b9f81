package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/crmarques/jelapi/connector"
)

func decodeReply(function string, body []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, remoteCallError(fmt.Sprintf("%s: empty response body", function), nil)
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()

	var reply map[string]any
	if err := decoder.Decode(&reply); err != nil {
		return nil, remoteCallError(fmt.Sprintf("%s: response body is not a JSON object", function), err)
	}
	return reply, nil
}

// checkResult rejects replies whose result code is missing or not zero.
func checkResult(function string, reply map[string]any) error {
	raw, ok := reply["result"]
	if !ok {
		return remoteCallError(fmt.Sprintf("%s: response carries no result code", function), nil)
	}
	result, err := connector.ToInt(raw)
	if err != nil {
		return remoteCallError(fmt.Sprintf("%s: response result code is invalid", function), err)
	}
	if result == 0 {
		return nil
	}

	reason := firstNonEmpty(reply, "error", "reason", "message")
	if reason == "" {
		reason = "<no reason given>"
	}
	return remoteCallError(fmt.Sprintf("%s returned result %d: %s", function, result, reason), nil)
}

func classifyStatusError(function string, statusCode int, body []byte) error {
	message := fmt.Sprintf("%s failed with HTTP status %d: %s", function, statusCode, summarizeBody(body))

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return remoteCallError(message, authError("control plane rejected the session token", nil))
	}
	return remoteCallError(message, nil)
}

func firstNonEmpty(reply map[string]any, keys ...string) string {
	for _, key := range keys {
		value, err := connector.String(reply, key)
		if err == nil && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func summarizeBody(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "<empty>"
	}
	if len(trimmed) > 512 {
		return trimmed[:512] + "..."
	}
	return trimmed
}
