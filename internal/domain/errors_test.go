package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"gigline/internal/domain"
)

func TestErrorKinds(t *testing.T) {
	cases := []struct {
		err  error
		kind error
		code string
	}{
		{domain.Deniedf("no"), domain.ErrDenied, "DENIED"},
		{domain.Preconditionf("not yet"), domain.ErrPrecondition, "PRECONDITION_FAILED"},
		{domain.Conflictf("twice"), domain.ErrConflict, "CONFLICT"},
		{domain.NotFoundf("gone"), domain.ErrNotFound, "NOT_FOUND"},
		{domain.Invalidf("bad"), domain.ErrInvalid, "INVALID"},
	}
	for _, c := range cases {
		if !errors.Is(c.err, c.kind) {
			t.Errorf("%v does not wrap %v", c.err, c.kind)
		}
		if got := domain.ErrorCode(c.err); got != c.code {
			t.Errorf("ErrorCode(%v) = %s, want %s", c.err, got, c.code)
		}
	}
	// wrapping elsewhere in a call chain keeps the code
	wrapped := fmt.Errorf("apply: %w", domain.Deniedf("no"))
	if got := domain.ErrorCode(wrapped); got != "DENIED" {
		t.Errorf("wrapped ErrorCode = %s", got)
	}
	if got := domain.ErrorCode(errors.New("boom")); got != "ERROR" {
		t.Errorf("unclassified ErrorCode = %s", got)
	}
}
