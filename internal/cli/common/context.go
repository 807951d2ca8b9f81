package common

import (
	"context"
	"io"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
)

type contextNameKey struct{}

func WithContextName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, contextNameKey{}, name)
}

func ContextName(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	name, _ := ctx.Value(contextNameKey{}).(string)
	return name
}

// NewLogger writes key/value log lines to w. Debug enables V(1) entries,
// which carry remote calls and save steps.
func NewLogger(w io.Writer, debug bool) logr.Logger {
	if w == nil {
		return logr.Discard()
	}
	verbosity := 0
	if debug {
		verbosity = 1
	}
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			_, _ = io.WriteString(w, prefix+": "+args+"\n")
			return
		}
		_, _ = io.WriteString(w, args+"\n")
	}, funcr.Options{Verbosity: verbosity})
}
