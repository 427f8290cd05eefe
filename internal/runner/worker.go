// Package runner executes claimed runs: admit through the concurrency
// limiter, decrypt the data source credential, acquire a pooled
// connection, execute, and persist the result (spec §4.1, §4.3, §5).
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/biexec/core/internal/connector"
	"github.com/biexec/core/internal/crypto"
	"github.com/biexec/core/internal/domain"
	"github.com/biexec/core/internal/limiter"
	"github.com/biexec/core/internal/metrics"
	"github.com/biexec/core/internal/repository"
	"github.com/biexec/core/internal/safety"
)

type Worker struct {
	id           string
	runRepo      repository.RunRepository
	dsRepo       repository.DataSourceRepository
	deadLetter   repository.DeadLetterRepository
	connectors   *connector.Registry
	limiter      *limiter.Limiter
	sealer       *crypto.Sealer
	executor     *Executor
	logger       *slog.Logger
	pollInterval time.Duration
	concurrency  int
	admissionTimeout time.Duration
}

func NewWorker(
	runRepo repository.RunRepository,
	dsRepo repository.DataSourceRepository,
	deadLetter repository.DeadLetterRepository,
	connectors *connector.Registry,
	lim *limiter.Limiter,
	sealer *crypto.Sealer,
	logger *slog.Logger,
	pollInterval time.Duration,
	concurrency int,
	admissionTimeout time.Duration,
) *Worker {
	hostname, _ := os.Hostname()
	return &Worker{
		id:               fmt.Sprintf("%s-%d", hostname, os.Getpid()),
		runRepo:          runRepo,
		dsRepo:           dsRepo,
		deadLetter:       deadLetter,
		connectors:       connectors,
		limiter:          lim,
		sealer:           sealer,
		executor:         NewExecutor(logger),
		logger:           logger.With("component", "runner", "runner_id", hostname+"-"+fmt.Sprint(os.Getpid())),
		pollInterval:     pollInterval,
		concurrency:      concurrency,
		admissionTimeout: admissionTimeout,
	}
}

func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("runner started", "concurrency", w.concurrency)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("runner shut down")
			return
		case <-ticker.C:
			w.processBatch(ctx)
		}
	}
}

func (w *Worker) processBatch(ctx context.Context) {
	runs, err := w.runRepo.Claim(ctx, w.id, w.concurrency)
	if err != nil {
		w.logger.Error("claim error", "error", err)
		return
	}
	if len(runs) == 0 {
		return
	}

	w.logger.Info("claimed runs", "count", len(runs))

	var wg sync.WaitGroup
	for _, run := range runs {
		wg.Add(1)
		go func(r *domain.Run) {
			defer wg.Done()
			w.runOne(ctx, r)
		}(run)
	}
	wg.Wait()
}

func (w *Worker) runOne(ctx context.Context, run *domain.Run) {
	logger := w.logger.With("run_id", run.ID, "org_id", run.OrgID)

	ticket, err := w.limiter.Acquire(ctx, run.OrgID, w.admissionTimeout)
	if err != nil {
		logger.Warn("admission timed out, returning run to queue", "error", err)
		w.retryOrFail(ctx, run, domain.ErrorKindLimitExceeded, "concurrency limit exceeded: "+err.Error())
		return
	}
	defer ticket.Release()

	ds, err := w.dsRepo.GetByID(ctx, run.DataSourceID, run.OrgID)
	if err != nil {
		logger.Error("data source lookup failed", "error", err)
		w.terminalFail(ctx, run, domain.ErrorKindInternal, "data source unavailable: "+err.Error())
		return
	}

	connStr, err := w.sealer.Open(run.OrgID, ds.ID, ds.ConnectionStringEncrypted)
	if err != nil {
		logger.Error("credential decryption failed", "error", err)
		w.terminalFail(ctx, run, domain.ErrorKindInternal, "credential decryption failed")
		return
	}

	pool, err := w.connectors.Acquire(ctx, ds.ID, string(connStr))
	if err != nil {
		logger.Warn("data source connect failed, retrying later", "error", err)
		w.retryOrFail(ctx, run, domain.ErrorKindRetryableTransient, "data source unreachable: "+err.Error())
		return
	}

	if rej := safety.Validate(run.ExecutedSQL); rej != nil {
		logger.Error("claim-time safety re-validation rejected run", "kind", rej.Kind)
		w.terminalFail(ctx, run, domain.ErrorKindValidation, rej.Error())
		return
	}

	if cancelled, err := w.runRepo.IsCancelRequested(ctx, run.ID); err != nil {
		logger.Warn("cancellation check failed, proceeding with execution", "error", err)
	} else if cancelled {
		logger.Info("run cancelled before execution started")
		w.cancelRun(ctx, run)
		return
	}

	execCtx, cancelExec := context.WithCancel(ctx)
	defer cancelExec()
	var cancelledByCaller atomicBool
	stopWatch := make(chan struct{})
	go w.watchForCancellation(execCtx, cancelExec, run.ID, &cancelledByCaller, stopWatch)

	start := time.Now()
	result := w.executor.Run(execCtx, pool, run, safety.ParamValuesAsAny(run.ParamValues))
	close(stopWatch)
	metrics.RunExecutionDuration.WithLabelValues(statusLabel(result.Err)).Observe(time.Since(start).Seconds())

	if result.Err != nil {
		if cancelledByCaller.Load() {
			logger.Info("run cancelled during execution")
			w.cancelRun(ctx, run)
			return
		}
		logger.Warn("execution failed", "error", result.Err)
		kind := classifyExecutionError(execCtx, result.Err)
		if kind.Retryable() {
			w.retryOrFail(ctx, run, kind, result.Err.Error())
		} else {
			w.terminalFail(ctx, run, kind, result.Err.Error())
		}
		return
	}

	runResult := &domain.RunResult{
		RunID:           run.ID,
		Columns:         result.Columns,
		Rows:            result.Rows,
		RowCount:        result.RowCount,
		ByteCount:       result.ByteCount,
		Truncated:       result.Truncated,
		ExecutionTimeMS: result.Duration.Milliseconds(),
		ExpiresAt:       time.Now().Add(resultRetention),
	}
	if err := w.runRepo.Complete(ctx, run.ID, runResult); err != nil {
		logger.Error("persist result failed", "error", err)
		return
	}
	metrics.RunsCompletedTotal.Inc()
	logger.Info("run completed", "row_count", result.RowCount, "truncated", result.Truncated, "duration", result.Duration)
}

// classifyExecutionError distinguishes a deadline expiry from the generic
// "something went wrong talking to the data source" case, which is
// treated as transient and retried. Caller-initiated cancellation is
// handled separately by the cancelledByCaller flag in runOne, before
// this function is ever consulted.
func classifyExecutionError(ctx context.Context, err error) domain.ErrorKind {
	if ctx.Err() != nil {
		return domain.ErrorKindTimeout
	}
	return domain.ErrorKindRetryableTransient
}

// cancelPollInterval is how often an in-flight execution checks the
// cancellation flag a cancel request sets (spec §5, cooperative
// cancellation at suspension points).
const cancelPollInterval = 2 * time.Second

// atomicBool is a tiny bool wrapper safe for concurrent use, since the
// cancellation watcher goroutine and runOne observe it from different
// goroutines.
type atomicBool struct {
	v atomic.Bool
}

func (b *atomicBool) Load() bool   { return b.v.Load() }
func (b *atomicBool) Store(x bool) { b.v.Store(x) }

// watchForCancellation polls IsCancelRequested while an execution is in
// flight and cancels execCtx the moment a cancellation is observed,
// unblocking the query against the data source. It exits when stop is
// closed (the execution finished on its own) or execCtx is done.
func (w *Worker) watchForCancellation(execCtx context.Context, cancel context.CancelFunc, runID string, flag *atomicBool, stop <-chan struct{}) {
	ticker := time.NewTicker(cancelPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-execCtx.Done():
			return
		case <-ticker.C:
			cancelled, err := w.runRepo.IsCancelRequested(execCtx, runID)
			if err != nil {
				w.logger.Warn("cancellation poll failed", "run_id", runID, "error", err)
				continue
			}
			if cancelled {
				flag.Store(true)
				cancel()
				return
			}
		}
	}
}

// cancelRun transitions a run to its terminal cancelled state in
// response to an observed cancellation request.
func (w *Worker) cancelRun(ctx context.Context, run *domain.Run) {
	if err := w.runRepo.Fail(ctx, run.ID, domain.RunCancelled, "cancelled by user request", true, time.Time{}); err != nil {
		w.logger.Error("cancel run failed", "run_id", run.ID, "error", err)
		return
	}
	metrics.RunsFailedTotal.WithLabelValues(string(domain.ErrorKindUserCancelled)).Inc()
}

func (w *Worker) retryOrFail(ctx context.Context, run *domain.Run, kind domain.ErrorKind, msg string) {
	if run.RetriesRemaining <= 1 {
		w.terminalFail(ctx, run, domain.ErrorKindRetryableExhausted, msg)
		return
	}
	notBefore := time.Now().Add(backoffFor(run.Attempt))
	if err := w.runRepo.Fail(ctx, run.ID, domain.RunQueued, msg, false, notBefore); err != nil {
		w.logger.Error("requeue run failed", "run_id", run.ID, "error", err)
	}
}

func (w *Worker) terminalFail(ctx context.Context, run *domain.Run, kind domain.ErrorKind, msg string) {
	status := domain.RunFailed
	if kind == domain.ErrorKindTimeout {
		status = domain.RunTimeout
	}
	if err := w.runRepo.Fail(ctx, run.ID, status, msg, true, time.Time{}); err != nil {
		w.logger.Error("terminal fail run failed", "run_id", run.ID, "error", err)
		return
	}
	metrics.RunsFailedTotal.WithLabelValues(string(kind)).Inc()

	if w.deadLetter != nil && kind == domain.ErrorKindRetryableExhausted {
		entry := &domain.DeadLetterEntry{RunID: run.ID, FailureKind: kind, LastError: msg, MovedAt: time.Now()}
		if err := w.deadLetter.Insert(ctx, entry); err != nil {
			w.logger.Error("dead letter insert failed", "run_id", run.ID, "error", err)
		}
	}
}

// backoffFor returns base·2^(attempt-1) capped at an hour, jittered by
// ±10%, so a transient outage on a data source doesn't make every retry
// land in the same instant (§4.1: not_before = now + base·2^(attempt-1) + jitter).
func backoffFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	const base = 30 * time.Second
	delay := base
	for i := 0; i < attempt-1 && delay < time.Hour; i++ {
		delay *= 2
	}
	if delay > time.Hour {
		delay = time.Hour
	}
	jitter := (rand.Float64()*2 - 1) * 0.10
	return time.Duration(float64(delay) * (1 + jitter))
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

const resultRetention = 7 * 24 * time.Hour
