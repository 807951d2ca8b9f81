package faults

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsCategory(t *testing.T) {
	t.Parallel()

	err := NewTypedError(ValidationError, "invalid input", nil)
	if !IsCategory(err, ValidationError) {
		t.Fatalf("expected validation category match")
	}
	if IsCategory(err, NotFoundError) {
		t.Fatalf("expected not-found category mismatch")
	}

	wrapped := errors.New("wrap: " + err.Error())
	if IsCategory(wrapped, ValidationError) {
		t.Fatalf("plain wrapped string error must not match typed category")
	}

	joined := errors.Join(err, errors.New("other"))
	if !IsCategory(joined, ValidationError) {
		t.Fatalf("expected category match through errors.Join")
	}
}

func TestCoreCategoryConstructors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		category ErrorCategory
	}{
		{name: "type_mismatch", err: TypeMismatch("bad type", nil), category: TypeMismatchError},
		{name: "object_state", err: ObjectState("bad state", nil), category: ObjectStateError},
		{name: "remote_call", err: RemoteCall("remote failed", nil), category: RemoteCallError},
		{name: "convergence", err: Convergence("still diverged", nil), category: ConvergenceError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if !IsCategory(tt.err, tt.category) {
				t.Fatalf("expected category %s, got %v", tt.category, tt.err)
			}
			wrapped := fmt.Errorf("context: %w", tt.err)
			category, ok := CategoryOf(wrapped)
			if !ok || category != tt.category {
				t.Fatalf("expected CategoryOf to return %s through wrapping, got %q ok=%t", tt.category, category, ok)
			}
		})
	}
}

func TestTypedErrorMessage(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	if got := RemoteCall("call failed", cause).Error(); got != "call failed: boom" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := NewTypedError(InternalError, "", nil).Error(); got != string(InternalError) {
		t.Fatalf("expected category fallback message, got %q", got)
	}
	if !errors.Is(RemoteCall("call failed", cause), cause) {
		t.Fatalf("expected errors.Is to reach the cause")
	}
}
