package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"not found", NotFoundf("user %s not found", "u1"), NotFound},
		{"wrapped conflict", fmt.Errorf("saving: %w", Conflictf("slot 2 is occupied")), Conflict},
		{"exhausted", Exhaustedf("no available slot"), ResourceExhausted},
		{"plain error", errors.New("boom"), Unknown},
		{"nil", nil, Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsSentinel(t *testing.T) {
	err := fmt.Errorf("outer: %w", Forbiddenf("only a parent may pair a dispenser"))

	if !errors.Is(err, ErrForbidden) {
		t.Error("expected errors.Is(err, ErrForbidden)")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("forbidden error must not match ErrNotFound")
	}
	if errors.Is(err, Forbiddenf("other")) {
		t.Error("non-sentinel targets must not match")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("deadline exceeded")
	err := Wrap(Busy, cause, "household %s is busy", "H1")

	if !errors.Is(err, cause) {
		t.Error("expected wrapped cause to be reachable")
	}
	if got := err.Error(); got != "household H1 is busy: deadline exceeded" {
		t.Errorf("Error() = %q", got)
	}
	if got := Reason(err); got != "household H1 is busy" {
		t.Errorf("Reason() = %q", got)
	}
	if got := Reason(cause); got != "internal error" {
		t.Errorf("Reason(plain) = %q", got)
	}
}
