package common

import (
	"fmt"

	"github.com/crmarques/jelapi/faults"
)

// ValidationError reports bad command input. It maps to exit code 2.
func ValidationError(message string, cause error) error {
	return faults.NewTypedError(faults.ValidationError, message, cause)
}

// NotFoundError reports a missing environment, node, context or file.
func NotFoundError(format string, args ...any) error {
	return faults.NewTypedError(faults.NotFoundError, fmt.Sprintf(format, args...), nil)
}
