package common

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/crmarques/jelapi/internal/cli/commandmeta"
	"github.com/itchyny/gojq"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
)

const (
	OutputAuto = "auto"
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

func ValidateOutputFormat(format string) error {
	switch format {
	case OutputAuto, OutputText, OutputJSON, OutputYAML:
		return nil
	default:
		return ValidationError("invalid output format: use auto, text, json, or yaml", nil)
	}
}

func ValidateOutputFormatForCommandPath(commandPath string, format string) error {
	switch strings.TrimSpace(format) {
	case "", OutputAuto, OutputText:
		return nil
	}

	switch commandmeta.OutputPolicyForPath(commandPath) {
	case commandmeta.OutputPolicyTextOnly:
		return ValidationError("command supports only text output; use --output text or --output auto", nil)
	case commandmeta.OutputPolicyYAMLDefaultTextOrYAML:
		if strings.TrimSpace(format) == OutputYAML {
			return nil
		}
		return ValidationError("command supports only yaml or text output; use --output yaml, text, or auto", nil)
	default:
		return nil
	}
}

func WriteOutput[T any](command *cobra.Command, format string, value T, renderText func(io.Writer, T) error) error {
	if isNilOutputValue(value) {
		return nil
	}

	switch format {
	case OutputAuto, OutputText:
		if renderText != nil {
			return renderText(command.OutOrStdout(), value)
		}
		_, err := fmt.Fprintln(command.OutOrStdout(), value)
		return err
	case OutputJSON:
		encoded, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(command.OutOrStdout(), string(encoded))
		return err
	case OutputYAML:
		encoded, err := yaml.Marshal(value)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(command.OutOrStdout(), string(encoded))
		return err
	default:
		return ValidationError("invalid output format: use auto, text, json, or yaml", nil)
	}
}

func WriteText(command *cobra.Command, format string, text string) error {
	return WriteOutput(command, format, text, func(w io.Writer, value string) error {
		_, err := fmt.Fprintln(w, value)
		return err
	})
}

// WriteJSONDocument renders a decoded reply. Text output falls back to
// indented json.
func WriteJSONDocument(command *cobra.Command, format string, value any) error {
	if format == OutputAuto || format == OutputText {
		format = OutputJSON
	}
	return WriteOutput(command, format, value, nil)
}

// FilterJQ evaluates expression against value. A single result is returned
// as is, several results as a list.
func FilterJQ(ctx context.Context, value any, expression string) (any, error) {
	trimmed := strings.TrimSpace(expression)
	if trimmed == "" {
		return value, nil
	}

	query, err := gojq.Parse(trimmed)
	if err != nil {
		return nil, ValidationError("invalid jq expression", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, ValidationError("invalid jq expression", err)
	}

	normalized, err := normalizeForJQ(value)
	if err != nil {
		return nil, err
	}

	iterator := code.RunWithContext(ctx, normalized)
	results := make([]any, 0, 1)
	for {
		item, ok := iterator.Next()
		if !ok {
			break
		}
		if itemErr, isErr := item.(error); isErr {
			return nil, ValidationError("failed to evaluate jq expression", itemErr)
		}
		results = append(results, item)
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}

// normalizeForJQ round-trips through json so the value only holds the types
// gojq accepts.
func normalizeForJQ(value any) (any, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, ValidationError("value cannot be filtered", err)
	}
	var decoded any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return nil, ValidationError("value cannot be filtered", err)
	}
	return decoded, nil
}

func isNilOutputValue[T any](value T) bool {
	anyValue := any(value)
	if anyValue == nil {
		return true
	}

	reflected := reflect.ValueOf(anyValue)
	switch reflected.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return reflected.IsNil()
	default:
		return false
	}
}
