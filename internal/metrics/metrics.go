package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/biexec/core/internal/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Run lifecycle metrics

	RunPickupLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "bi",
		Name:      "run_pickup_latency_seconds",
		Help:      "Time from run creation to a runner claiming it.",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	RunExecutionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bi",
		Name:      "run_execution_duration_seconds",
		Help:      "Duration of query execution against the data source.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"outcome"})

	RunsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "bi",
		Name:      "runner_runs_in_flight",
		Help:      "Number of runs currently being executed by this runner.",
	})

	RunsCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bi",
		Name:      "runs_completed_total",
		Help:      "Total runs that completed successfully.",
	})

	RunsFailedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bi",
		Name:      "runs_failed_total",
		Help:      "Total runs that reached a terminal failure state, by error kind.",
	}, []string{"kind"})

	// Watchdog metrics

	WatchdogRescuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bi",
		Name:      "watchdog_rescued_total",
		Help:      "Total stale runs reclaimed by the watchdog, by action.",
	}, []string{"action"})

	WatchdogCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "bi",
		Name:      "watchdog_cycle_duration_seconds",
		Help:      "Time taken for one watchdog sweep.",
		Buckets:   prometheus.DefBuckets,
	})

	// Runner lifecycle

	RunnerStartTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "bi",
		Name:      "runner_start_time_seconds",
		Help:      "Unix timestamp when the runner started.",
	})

	RunnerShutdownsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bi",
		Name:      "runner_shutdowns_total",
		Help:      "Number of times the runner has shut down.",
	})

	// Safety gate

	SafetyRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bi",
		Name:      "safety_gate_rejections_total",
		Help:      "Total SQL statements rejected by the safety gate, by rejection kind.",
	}, []string{"kind"})

	// Admission limiter

	LimiterGlobalInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "bi",
		Name:      "limiter_global_in_flight",
		Help:      "Current number of globally in-flight query executions.",
	})

	LimiterPerOrgInFlight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bi",
		Name:      "limiter_per_org_in_flight",
		Help:      "Current number of in-flight query executions, by organization.",
	}, []string{"org_id"})

	LimiterTimeoutsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bi",
		Name:      "limiter_timeouts_total",
		Help:      "Total admission timeouts, by which level (org or global) exhausted first.",
	}, []string{"level"})

	// Scheduler

	ScheduleFiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "bi",
		Name:      "schedule_fired_total",
		Help:      "Total schedule firings that produced a run.",
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bi",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bi",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		RunPickupLatency,
		RunExecutionDuration,
		RunsInFlight,
		RunsCompletedTotal,
		RunsFailedTotal,
		WatchdogRescuedTotal,
		WatchdogCycleDuration,
		RunnerStartTime,
		RunnerShutdownsTotal,
		SafetyRejectionsTotal,
		LimiterGlobalInFlight,
		LimiterPerOrgInFlight,
		LimiterTimeoutsTotal,
		ScheduleFiredTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// NewServer builds the side-channel metrics/health process. checker may be
// nil for processes that don't own a liveness surface.
func NewServer(addr string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	if checker != nil {
		mux.HandleFunc("/healthz/live", func(w http.ResponseWriter, r *http.Request) {
			writeHealthResult(w, checker.Liveness(r.Context()))
		})
		mux.HandleFunc("/healthz/ready", func(w http.ResponseWriter, r *http.Request) {
			result := checker.Readiness(r.Context())
			status := http.StatusOK
			if result.Status != "up" {
				status = http.StatusServiceUnavailable
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(result)
		})
	}

	return &http.Server{Addr: addr, Handler: mux}
}

func writeHealthResult(w http.ResponseWriter, result health.HealthResult) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(result)
}
