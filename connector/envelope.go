package connector

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/crmarques/jelapi/faults"
)

// The helpers below read fields of a decoded reply. Replies decoded by the
// HTTP connector carry json.Number values; replies built in memory carry
// native Go values. Both are accepted.

func Has(body map[string]any, key string) bool {
	value, ok := body[key]
	return ok && value != nil
}

// Object returns a required nested object.
func Object(body map[string]any, key string) (map[string]any, error) {
	value, ok := body[key]
	if !ok || value == nil {
		return nil, malformedError(key, "is missing")
	}
	object, ok := value.(map[string]any)
	if !ok {
		return nil, malformedError(key, fmt.Sprintf("is %T, not an object", value))
	}
	return object, nil
}

// List returns an optional list, nil when absent.
func List(body map[string]any, key string) ([]any, error) {
	value, ok := body[key]
	if !ok || value == nil {
		return nil, nil
	}
	list, ok := value.([]any)
	if !ok {
		return nil, malformedError(key, fmt.Sprintf("is %T, not a list", value))
	}
	return list, nil
}

// Objects returns an optional list of objects, nil when absent.
func Objects(body map[string]any, key string) ([]map[string]any, error) {
	list, err := List(body, key)
	if err != nil || list == nil {
		return nil, err
	}
	objects := make([]map[string]any, 0, len(list))
	for idx, item := range list {
		object, ok := item.(map[string]any)
		if !ok {
			return nil, malformedError(fmt.Sprintf("%s[%d]", key, idx), fmt.Sprintf("is %T, not an object", item))
		}
		objects = append(objects, object)
	}
	return objects, nil
}

// String returns the string value of key, or "" when absent.
func String(body map[string]any, key string) (string, error) {
	value, ok := body[key]
	if !ok || value == nil {
		return "", nil
	}
	switch typed := value.(type) {
	case string:
		return typed, nil
	case json.Number:
		return typed.String(), nil
	default:
		return "", malformedError(key, fmt.Sprintf("is %T, not a string", value))
	}
}

// Strings returns an optional list of strings.
func Strings(body map[string]any, key string) ([]string, error) {
	list, err := List(body, key)
	if err != nil || list == nil {
		return nil, err
	}
	values := make([]string, 0, len(list))
	for idx, item := range list {
		value, ok := item.(string)
		if !ok {
			return nil, malformedError(fmt.Sprintf("%s[%d]", key, idx), fmt.Sprintf("is %T, not a string", item))
		}
		values = append(values, value)
	}
	return values, nil
}

// StringMap returns an optional object of scalar values rendered as strings.
func StringMap(body map[string]any, key string) (map[string]string, error) {
	value, ok := body[key]
	if !ok || value == nil {
		return map[string]string{}, nil
	}
	object, ok := value.(map[string]any)
	if !ok {
		return nil, malformedError(key, fmt.Sprintf("is %T, not an object", value))
	}
	values := make(map[string]string, len(object))
	for name, item := range object {
		switch typed := item.(type) {
		case string:
			values[name] = typed
		case json.Number:
			values[name] = typed.String()
		case bool:
			values[name] = strconv.FormatBool(typed)
		case nil:
			values[name] = ""
		default:
			values[name] = fmt.Sprint(typed)
		}
	}
	return values, nil
}

// Int returns a required integer.
func Int(body map[string]any, key string) (int, error) {
	value, ok := body[key]
	if !ok || value == nil {
		return 0, malformedError(key, "is missing")
	}
	n, err := ToInt(value)
	if err != nil {
		return 0, malformedError(key, err.Error())
	}
	return n, nil
}

// IntOr returns fallback when key is absent.
func IntOr(body map[string]any, key string, fallback int) (int, error) {
	if !Has(body, key) {
		return fallback, nil
	}
	return Int(body, key)
}

// Bool returns the boolean value of key, false when absent.
func Bool(body map[string]any, key string) (bool, error) {
	value, ok := body[key]
	if !ok || value == nil {
		return false, nil
	}
	typed, ok := value.(bool)
	if !ok {
		return false, malformedError(key, fmt.Sprintf("is %T, not a bool", value))
	}
	return typed, nil
}

// ToInt converts the numeric representations found in replies. Fractional
// values are rejected.
func ToInt(value any) (int, error) {
	switch typed := value.(type) {
	case int:
		return typed, nil
	case int32:
		return int(typed), nil
	case int64:
		return int(typed), nil
	case float64:
		if typed != math.Trunc(typed) {
			return 0, fmt.Errorf("%v is not an integer", typed)
		}
		return int(typed), nil
	case json.Number:
		n, err := typed.Int64()
		if err != nil {
			return 0, fmt.Errorf("%s is not an integer", typed)
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(typed)
		if err != nil {
			return 0, fmt.Errorf("%q is not an integer", typed)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%v (%T) is not a number", value, value)
	}
}

func malformedError(key string, problem string) error {
	return faults.RemoteCall(fmt.Sprintf("malformed reply: %q %s", key, problem), nil)
}
