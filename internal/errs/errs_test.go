package errs_test

import (
	"errors"
	"testing"

	"legacymod/internal/errs"
)

func TestErrorMessageWithoutCause(t *testing.T) {
	e := errs.Config("bad value %d", 5)
	want := "config: bad value 5"
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}
}

func TestErrorMessageWithCause(t *testing.T) {
	cause := errors.New("disk full")
	e := errs.IOWrap(cause, "writing file")
	if e.Unwrap() != cause {
		t.Error("Unwrap() did not return the wrapped cause")
	}
}

func TestIsMatchesKind(t *testing.T) {
	e := errs.Template("unresolved ${x}")
	if !errs.Is(e, errs.KindTemplate) {
		t.Error("Is() should match the error's own kind")
	}
	if errs.Is(e, errs.KindIO) {
		t.Error("Is() should not match an unrelated kind")
	}
}

func TestIsUnwrapsChain(t *testing.T) {
	inner := errs.Graph("node missing")
	outer := errs.ConfigWrap(inner, "loading plan")

	if !errs.Is(outer, errs.KindConfig) {
		t.Error("Is() should match the outer error's kind")
	}
	if !errs.Is(outer, errs.KindGraph) {
		t.Error("Is() should unwrap through Cause to find the inner kind")
	}
}

func TestIsFalseForPlainError(t *testing.T) {
	if errs.Is(errors.New("plain"), errs.KindIO) {
		t.Error("Is() should return false for a non-taxonomy error")
	}
}
