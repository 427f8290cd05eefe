package connector

import (
	"log/slog"
	"testing"
	"time"
)

func TestReapOnce_RemovesOnlyStaleEntries(t *testing.T) {
	r := NewRegistry(slog.Default())
	r.idleTimeout = time.Minute

	r.pools["fresh"] = &entry{lastUsedAt: time.Now()}
	r.pools["stale"] = &entry{lastUsedAt: time.Now().Add(-time.Hour)}

	r.reapOnce()

	if _, ok := r.pools["stale"]; ok {
		t.Fatal("expected stale entry to be reaped")
	}
	if _, ok := r.pools["fresh"]; !ok {
		t.Fatal("expected fresh entry to survive")
	}
}
