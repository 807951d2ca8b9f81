package common

import (
	"encoding/json"
	"strings"
)

// ParseAssignments turns key=value items into call arguments. Dotted keys
// nest objects, and key:=value decodes value as JSON.
func ParseAssignments(items []string) (map[string]any, error) {
	output := map[string]any{}
	if err := ApplyAssignments(output, items); err != nil {
		return nil, err
	}
	return output, nil
}

func ApplyAssignments(target map[string]any, items []string) error {
	for _, item := range items {
		part := strings.TrimSpace(item)
		if part == "" {
			return ValidationError("invalid assignment: empty item", nil)
		}
		pieces := strings.SplitN(part, "=", 2)
		if len(pieces) != 2 {
			return ValidationError("invalid assignment "+part+": expected key=value", nil)
		}

		key := strings.TrimSpace(pieces[0])
		var value any = pieces[1]
		if strings.HasSuffix(key, ":") {
			key = strings.TrimSuffix(key, ":")
			var decoded any
			if err := json.Unmarshal([]byte(pieces[1]), &decoded); err != nil {
				return ValidationError("invalid assignment "+part+": value is not json", err)
			}
			value = decoded
		}
		if key == "" {
			return ValidationError("invalid assignment: key must not be empty", nil)
		}

		if err := setDottedAssignmentValue(target, key, value); err != nil {
			return err
		}
	}

	return nil
}

func setDottedAssignmentValue(target map[string]any, dottedKey string, value any) error {
	segments := strings.Split(strings.TrimSpace(dottedKey), ".")
	current := target
	for idx, segment := range segments {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			return ValidationError("invalid assignment key: empty path segment", nil)
		}
		isLeaf := idx == len(segments)-1
		if isLeaf {
			current[segment] = value
			return nil
		}

		next, exists := current[segment]
		if !exists {
			child := map[string]any{}
			current[segment] = child
			current = child
			continue
		}

		child, ok := next.(map[string]any)
		if !ok {
			return ValidationError("invalid assignment: key path conflicts with scalar value", nil)
		}
		current = child
	}

	return nil
}
