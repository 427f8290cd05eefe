package cache

import (
	"context"
	"time"
)

type noopCache struct{}

// NewNoop returns a Cache whose every operation is a harmless no-op, used
// when REDIS_URL is unset so the system still functions without Redis (§5).
func NewNoop() Cache {
	return noopCache{}
}

func (noopCache) Get(_ context.Context, _ string, _ any) (bool, error) { return false, nil }
func (noopCache) Set(_ context.Context, _ string, _ any, _ time.Duration) error { return nil }
func (noopCache) Delete(_ context.Context, _ ...string) error { return nil }
func (noopCache) InvalidateNamespace(_ context.Context, _ string) error { return nil }
func (noopCache) Ping(_ context.Context) error { return nil }
