package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestExitCodeFromWrappedError(t *testing.T) {
	base := New(CodeDeclined, "metadata update declined")
	err := fmt.Errorf("set metadata: %w", base)
	if got := ExitCode(err); got != int(CodeDeclined) {
		t.Fatalf("expected exit %d, got %d", CodeDeclined, got)
	}
	if ExitCode(nil) != 0 {
		t.Fatal("expected exit 0 for nil error")
	}
	if ExitCode(errors.New("plain")) != int(CodeInternal) {
		t.Fatal("expected internal exit code for untyped error")
	}
}

func TestSentinelMatchesAfterWrap(t *testing.T) {
	sentinel := New(CodeDeclined, "metadata update declined")
	wrapped := Wrap(CodeDeclined, "metadata update declined", errors.New("dismissed"))
	if !errors.Is(wrapped, sentinel) {
		t.Fatal("expected wrapped error to match sentinel")
	}
	if errors.Is(New(CodeUsage, "metadata update declined"), sentinel) {
		t.Fatal("expected code mismatch to fail")
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("connect: %w", Wrap(CodeUnavailable, "dial rpc", errors.New("refused")))
	if !HasCode(err, CodeUnavailable) {
		t.Fatal("expected unavailable code")
	}
	if HasCode(err, CodeMalformed) {
		t.Fatal("unexpected malformed code")
	}
	if TypeName(CodeMalformed) != "malformed_data" {
		t.Fatalf("unexpected type name %q", TypeName(CodeMalformed))
	}
}
