package common

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
)

const (
	stdinFileIndicator  = "-"
	MissingInputMessage = "input is required: provide --payload <path|-> or stdin"
	maxInputBytes       = 4 << 20
)

// ReadInput returns the payload file, or stdin when no file is given or the
// file is "-". An interactive stdin counts as missing input.
func ReadInput(command *cobra.Command, flags InputFlags) ([]byte, error) {
	if flags.Payload != "" && flags.Payload != stdinFileIndicator {
		return readPayloadFile(flags.Payload)
	}

	reader := command.InOrStdin()
	if file, ok := fileFromReader(reader); ok && isTerminalFile(file) {
		return nil, ValidationError(MissingInputMessage, nil)
	}
	data, err := readAllWithLimit(reader, maxInputBytes)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ValidationError(MissingInputMessage, nil)
	}
	return data, nil
}

func DecodeInput[T any](command *cobra.Command, flags InputFlags) (T, error) {
	data, err := ReadInput(command, flags)
	if err != nil {
		var zero T
		return zero, err
	}
	return DecodeInputData[T](data, InputFormat(flags))
}

// InputFormat is the explicit --format, else the payload file extension,
// else yaml. JSON documents are valid yaml.
func InputFormat(flags InputFlags) string {
	if format := strings.TrimSpace(flags.Format); format != "" {
		return format
	}
	if strings.EqualFold(filepath.Ext(flags.Payload), ".json") {
		return OutputJSON
	}
	return OutputYAML
}

func DecodeInputData[T any](data []byte, format string) (T, error) {
	var output T

	switch format {
	case OutputJSON:
		if err := json.Unmarshal(data, &output); err != nil {
			return output, ValidationError("invalid json input", err)
		}
	case "", OutputYAML:
		if err := yaml.Unmarshal(data, &output); err != nil {
			return output, ValidationError("invalid yaml input", err)
		}
	default:
		return output, ValidationError("invalid input format: use json or yaml", nil)
	}
	return output, nil
}

func readPayloadFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, NotFoundError("payload file %q not found", path)
	}
	if err != nil {
		return nil, ValidationError(fmt.Sprintf("cannot read payload file %q", path), err)
	}
	defer file.Close()

	data, err := readAllWithLimit(file, maxInputBytes)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ValidationError(fmt.Sprintf("payload file %q is empty", path), nil)
	}
	return data, nil
}

func readAllWithLimit(reader io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(reader, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, ValidationError("input exceeds maximum supported size", errors.New("input too large"))
	}
	return data, nil
}
