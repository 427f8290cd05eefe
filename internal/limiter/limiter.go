// Package limiter implements the concurrent query limiter (spec §4.3):
// a two-level, process-local admission controller bounding in-flight SQL
// executions both globally and per organization.
package limiter

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/biexec/core/internal/metrics"
)

// ErrAdmissionTimeout is returned when a ticket could not be acquired
// within the caller's timeout. The lifecycle engine classifies this as
// "retryable transient" (spec §4.1).
var ErrAdmissionTimeout = errors.New("admission limiter: timed out waiting for capacity")

const (
	DefaultGlobalMax = 50
	DefaultPerOrgMax = 5
	DefaultTimeout   = 30 * time.Second
)

// Ticket represents one concurrent in-flight SQL execution. Release must
// be called exactly once on every exit path, including cancellation and
// panic recovery — an RAII-style guard.
type Ticket struct {
	limiter *Limiter
	orgID   string
	once    sync.Once
}

func (t *Ticket) Release() {
	t.once.Do(func() {
		<-t.limiter.global
		t.limiter.releaseOrgSlot(t.orgID)
		metrics.LimiterGlobalInFlight.Dec()
		metrics.LimiterPerOrgInFlight.WithLabelValues(t.orgID).Dec()
	})
}

// Limiter is one of the two process-wide mutable objects in this system
// (the other is the connector pool registry); both are initialized once
// at startup and immutable in shape thereafter.
type Limiter struct {
	global    chan struct{}
	globalMax int
	perOrgMax int

	mu     sync.Mutex
	perOrg map[string]chan struct{}
}

func New(globalMax, perOrgMax int) *Limiter {
	if globalMax <= 0 {
		globalMax = DefaultGlobalMax
	}
	if perOrgMax <= 0 {
		perOrgMax = DefaultPerOrgMax
	}
	return &Limiter{
		global:    make(chan struct{}, globalMax),
		globalMax: globalMax,
		perOrgMax: perOrgMax,
		perOrg:    make(map[string]chan struct{}),
	}
}

func (l *Limiter) orgSlot(orgID string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	sem, ok := l.perOrg[orgID]
	if !ok {
		sem = make(chan struct{}, l.perOrgMax)
		l.perOrg[orgID] = sem
	}
	return sem
}

func (l *Limiter) releaseOrgSlot(orgID string) {
	l.mu.Lock()
	sem, ok := l.perOrg[orgID]
	l.mu.Unlock()
	if ok {
		<-sem
	}
}

// Acquire blocks up to timeout for both a per-org slot and a global slot.
// Per spec §4.3, the per-org slot is acquired first; if the subsequent
// global acquisition fails, the per-org slot is released immediately so
// it never starves other runs in the same organization.
func (l *Limiter) Acquire(ctx context.Context, orgID string, timeout time.Duration) (*Ticket, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	orgSem := l.orgSlot(orgID)

	select {
	case orgSem <- struct{}{}:
	case <-ctx.Done():
		metrics.LimiterTimeoutsTotal.WithLabelValues("org").Inc()
		return nil, ErrAdmissionTimeout
	}

	select {
	case l.global <- struct{}{}:
	case <-ctx.Done():
		<-orgSem
		metrics.LimiterTimeoutsTotal.WithLabelValues("global").Inc()
		return nil, ErrAdmissionTimeout
	}

	metrics.LimiterGlobalInFlight.Inc()
	metrics.LimiterPerOrgInFlight.WithLabelValues(orgID).Inc()

	return &Ticket{limiter: l, orgID: orgID}, nil
}
