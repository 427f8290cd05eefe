// Package connector manages pooled connections to user-registered data
// sources, as distinct from the metadata store pool in
// internal/infrastructure/postgres. One pool per data source is created
// lazily on first use; idle connections inside a pool are closed after
// MaxConnIdleTime, and ReapIdle, while a caller runs it, closes whole
// pools left unused past the idle timeout (§5).
package connector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultIdleTimeout = 15 * time.Minute
	poolMaxConns       = 4
)

type entry struct {
	pool       *pgxpool.Pool
	lastUsedAt time.Time
}

// Registry is the process-wide data source pool cache. It is the second
// of the two process-wide mutable objects in this system (the other is
// the admission limiter), both initialized once at startup.
type Registry struct {
	mu          sync.Mutex
	pools       map[string]*entry
	idleTimeout time.Duration
	logger      *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		pools:       make(map[string]*entry),
		idleTimeout: defaultIdleTimeout,
		logger:      logger.With("component", "connector_registry"),
	}
}

// Acquire returns the pool for dataSourceID, creating it from
// connectionString on first use. Subsequent calls with the same
// dataSourceID reuse the existing pool even if connectionString changed —
// callers must call Invalidate after rotating credentials.
func (r *Registry) Acquire(ctx context.Context, dataSourceID, connectionString string) (*pgxpool.Pool, error) {
	r.mu.Lock()
	if e, ok := r.pools[dataSourceID]; ok {
		e.lastUsedAt = time.Now()
		r.mu.Unlock()
		return e.pool, nil
	}
	r.mu.Unlock()

	cfg, err := pgxpool.ParseConfig(connectionString)
	if err != nil {
		return nil, fmt.Errorf("parse data source connection string: %w", err)
	}
	cfg.MaxConns = poolMaxConns
	cfg.MinConns = 0
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.ConnConfig.ConnectTimeout = 5 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create data source pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping data source: %w", err)
	}

	r.mu.Lock()
	// Another goroutine may have raced us; prefer the existing pool.
	if e, ok := r.pools[dataSourceID]; ok {
		r.mu.Unlock()
		pool.Close()
		e.lastUsedAt = time.Now()
		return e.pool, nil
	}
	r.pools[dataSourceID] = &entry{pool: pool, lastUsedAt: time.Now()}
	r.mu.Unlock()

	return pool, nil
}

// Invalidate closes and forgets the pool for a data source, forcing the
// next Acquire to reconnect with fresh credentials.
func (r *Registry) Invalidate(dataSourceID string) {
	r.mu.Lock()
	e, ok := r.pools[dataSourceID]
	delete(r.pools, dataSourceID)
	r.mu.Unlock()
	if ok {
		e.pool.Close()
	}
}

// ReapIdle runs on a ticker, closing pools unused for longer than the idle
// timeout so a data source nobody queries anymore stops holding connections
// open against it.
func (r *Registry) ReapIdle(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reapOnce()
		}
	}
}

func (r *Registry) reapOnce() {
	cutoff := time.Now().Add(-r.idleTimeout)

	r.mu.Lock()
	var stale []string
	var toClose []*pgxpool.Pool
	for id, e := range r.pools {
		if e.lastUsedAt.Before(cutoff) {
			stale = append(stale, id)
			toClose = append(toClose, e.pool)
		}
	}
	for _, id := range stale {
		delete(r.pools, id)
	}
	r.mu.Unlock()

	for i, id := range stale {
		if toClose[i] != nil {
			toClose[i].Close()
		}
		r.logger.Info("reaping idle data source pool", "data_source_id", id)
	}
}

// CloseAll closes and forgets every pooled connection.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.pools {
		e.pool.Close()
		delete(r.pools, id)
	}
}
