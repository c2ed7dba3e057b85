package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestFaultClassification(t *testing.T) {
	base := errors.New("stimulus missing")
	internal := fmt.Errorf("submit: %w", NewInternalError("task submission", base))
	if !IsInternalError(internal) {
		t.Fatalf("expected internal error")
	}
	if IsClientError(internal) {
		t.Fatalf("internal error reported as client error")
	}
	if !errors.Is(internal, base) {
		t.Fatalf("expected wrapped cause to be reachable")
	}
	client := NewClientError("bad payload", nil)
	if !IsClientError(client) {
		t.Fatalf("expected client error")
	}
	if got := client.Error(); got != "[ClientError] bad payload" {
		t.Fatalf("unexpected message %q", got)
	}
}
