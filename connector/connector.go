// Package connector defines the boundary between the resource model and the
// remote control plane: one generic function call returning the decoded
// reply envelope.
package connector

import (
	"context"
	"fmt"
	"strings"

	"github.com/crmarques/jelapi/faults"
)

// Caller invokes a remote function by its dotted Group.Class.Function name.
// Implementations attach authentication, fail with a RemoteCallError typed
// error when the transport status or the reply result code is not success,
// and must be safe for concurrent use.
type Caller interface {
	Call(ctx context.Context, function string, args map[string]any) (map[string]any, error)
}

type CallerFunc func(ctx context.Context, function string, args map[string]any) (map[string]any, error)

func (f CallerFunc) Call(ctx context.Context, function string, args map[string]any) (map[string]any, error) {
	return f(ctx, function, args)
}

type Function struct {
	Group string
	Class string
	Name  string
}

func (f Function) String() string {
	return f.Group + "." + f.Class + "." + f.Name
}

// ParseFunction splits a Group.Class.Function name. Exactly three non-empty
// segments are accepted.
func ParseFunction(function string) (Function, error) {
	chunks := strings.Split(strings.TrimSpace(function), ".")
	if len(chunks) != 3 {
		return Function{}, faults.NewTypedError(
			faults.ValidationError,
			fmt.Sprintf("function %q does not match Group.Class.Function", function),
			nil,
		)
	}
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk) == "" {
			return Function{}, faults.NewTypedError(
				faults.ValidationError,
				fmt.Sprintf("function %q has an empty segment", function),
				nil,
			)
		}
	}
	return Function{Group: chunks[0], Class: chunks[1], Name: chunks[2]}, nil
}
