package requestid_test

import (
	"context"
	"testing"

	"github.com/biexec/core/internal/requestid"
)

func TestNew_ReturnsDistinctIDs(t *testing.T) {
	a := requestid.New()
	b := requestid.New()
	if a == "" || b == "" {
		t.Fatal("expected non-empty ids")
	}
	if a == b {
		t.Error("expected distinct ids across calls")
	}
}

func TestFromContext_Empty_ReturnsEmptyString(t *testing.T) {
	if got := requestid.FromContext(context.Background()); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestWithRequestID_RoundTripsThroughContext(t *testing.T) {
	ctx := requestid.WithRequestID(context.Background(), "req-123")
	if got := requestid.FromContext(ctx); got != "req-123" {
		t.Errorf("got %q, want req-123", got)
	}
}
