package ratelimit_test

import (
	"testing"

	"github.com/biexec/core/internal/ratelimit"
)

func TestAllow_WithinBurst_Allowed(t *testing.T) {
	l := ratelimit.New(100, 5, 100, 5, 100, 5, 100, 5)
	if !l.Allow("org-1", "1.1.1.1") {
		t.Fatal("expected first request to be allowed")
	}
}

func TestAllow_PerOrgExhausted_OtherOrgUnaffected(t *testing.T) {
	l := ratelimit.New(100, 100, 0.0001, 1, 100, 100, 100, 100)

	if !l.Allow("org-a", "1.1.1.1") {
		t.Fatal("expected org-a's first request to be allowed")
	}
	if l.Allow("org-a", "1.1.1.1") {
		t.Fatal("expected org-a to be throttled after exhausting its burst")
	}
	if !l.Allow("org-b", "1.1.1.1") {
		t.Fatal("org-b should not be throttled by org-a's usage")
	}
}

func TestAllow_GlobalExhausted_BlocksEveryOrg(t *testing.T) {
	l := ratelimit.New(0.0001, 1, 100, 100, 100, 100, 100, 100)

	if !l.Allow("org-a", "1.1.1.1") {
		t.Fatal("expected first request to consume the global burst")
	}
	if l.Allow("org-b", "2.2.2.2") {
		t.Fatal("expected global budget exhaustion to block a different org too")
	}
}

func TestAllow_EmptyOrgID_OnlyGlobalAndIPBudgetApply(t *testing.T) {
	l := ratelimit.New(100, 2, 0.0001, 1, 100, 100, 100, 100)

	if !l.Allow("", "1.1.1.1") {
		t.Fatal("expected unauthenticated request to be allowed under global budget")
	}
	if !l.Allow("", "1.1.1.1") {
		t.Fatal("expected second unauthenticated request within global burst to be allowed")
	}
}

func TestAllow_PerIPExhausted_OtherIPUnaffected(t *testing.T) {
	l := ratelimit.New(100, 100, 100, 100, 0.0001, 1, 100, 100)

	if !l.Allow("", "1.1.1.1") {
		t.Fatal("expected first request from 1.1.1.1 to be allowed")
	}
	if l.Allow("", "1.1.1.1") {
		t.Fatal("expected 1.1.1.1 to be throttled after exhausting its burst")
	}
	if !l.Allow("", "2.2.2.2") {
		t.Fatal("a different remote address should not be throttled by 1.1.1.1's usage")
	}
}

func TestAllowLogin_ExhaustedForOneIP_OtherIPUnaffected(t *testing.T) {
	l := ratelimit.New(100, 100, 100, 100, 100, 100, 0.0001, 1)

	if !l.AllowLogin("1.1.1.1") {
		t.Fatal("expected first login attempt from 1.1.1.1 to be allowed")
	}
	if l.AllowLogin("1.1.1.1") {
		t.Fatal("expected 1.1.1.1 to be throttled on /auth/login after exhausting its burst")
	}
	if !l.AllowLogin("2.2.2.2") {
		t.Fatal("a different remote address should not be throttled by 1.1.1.1's login attempts")
	}
}

func TestAllowRegister_IndependentFromLogin(t *testing.T) {
	l := ratelimit.New(100, 100, 100, 100, 100, 100, 0.0001, 1)

	if !l.AllowLogin("1.1.1.1") {
		t.Fatal("expected login attempt to be allowed")
	}
	if !l.AllowRegister("1.1.1.1") {
		t.Fatal("expected register to have its own independent bucket from login, for the same address")
	}
}
