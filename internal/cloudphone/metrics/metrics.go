// Package metrics exposes Prometheus counters and histograms for remote
// provider calls and workflow phases. Grounded 1:1 on the teacher's
// internal/provisioner/metrics/metrics.go: same namespace/subsystem
// convention, same label-sanitizing helpers, same registry-with-Reset
// pattern so tests can start from a clean slate.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu  sync.RWMutex
	reg *prometheus.Registry

	providerRequests        *prometheus.CounterVec
	providerRequestDuration *prometheus.HistogramVec
	providerRetries         *prometheus.CounterVec
	jobPhaseDuration        *prometheus.HistogramVec
	jobsTerminal            *prometheus.CounterVec
	busDropped              prometheus.Counter
)

// Operation labels used by the client; ops.go passes
// these as the op argument to doEnvelope so the label set has one
// source of truth.
const (
	OpListPhones    = "list_phones"
	OpStartEnv      = "start_env"
	OpStopEnv       = "stop_env"
	OpRestartEnv    = "restart_env"
	OpPhoneStatus   = "phone_status"
	OpInstallApp    = "install_app"
	OpUninstallApp  = "uninstall_app"
	OpListInstalled = "list_installed"
	OpStartApp      = "start_app"
	OpLogin         = "login"
	OpQueryTask     = "query_task"
	OpWarmup        = "warmup"
	OpPublish       = "publish"
	OpCustomTask    = "custom_task"
	OpScreenshot    = "screenshot"
	OpDiscovery     = "discovery"
)

func init() {
	resetLocked()
}

// Reset reinitializes all collectors; used by tests for isolation.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	resetLocked()
}

// Handler exposes the registry in Prometheus text format.
func Handler() http.Handler {
	mu.RLock()
	registry := reg
	mu.RUnlock()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveProviderRequest records one remote-provider call attempt.
func ObserveProviderRequest(op string, code int, duration time.Duration) {
	op = sanitizeLabel(op, "unknown")
	status := "error"
	if code >= 0 {
		status = strconv.Itoa(code)
	}
	mu.RLock()
	defer mu.RUnlock()
	if providerRequests != nil {
		providerRequests.WithLabelValues(op, status).Inc()
	}
	if providerRequestDuration != nil {
		providerRequestDuration.WithLabelValues(op).Observe(duration.Seconds())
	}
}

// IncProviderRetry increments the retry counter for an operation.
func IncProviderRetry(op string) {
	op = sanitizeLabel(op, "unknown")
	mu.RLock()
	defer mu.RUnlock()
	if providerRetries != nil {
		providerRetries.WithLabelValues(op).Inc()
	}
}

// ObserveJobPhase records how long a job spent in one state.
func ObserveJobPhase(state string, duration time.Duration) {
	state = sanitizeLabel(state, "unknown")
	mu.RLock()
	defer mu.RUnlock()
	if jobPhaseDuration != nil {
		jobPhaseDuration.WithLabelValues(state).Observe(duration.Seconds())
	}
}

// IncJobTerminal increments the per-outcome job counter (done/failed).
func IncJobTerminal(outcome string) {
	outcome = sanitizeLabel(outcome, "unknown")
	mu.RLock()
	defer mu.RUnlock()
	if jobsTerminal != nil {
		jobsTerminal.WithLabelValues(outcome).Inc()
	}
}

// IncBusDropped counts an event dropped because a subscriber's channel
// was full (internal/cloudphone/bus).
func IncBusDropped() {
	mu.RLock()
	defer mu.RUnlock()
	if busDropped != nil {
		busDropped.Inc()
	}
}

func resetLocked() {
	registry := prometheus.NewRegistry()

	reqTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cloudphone",
		Subsystem: "orchestrator",
		Name:      "provider_requests_total",
		Help:      "Total remote provider calls grouped by operation and response code.",
	}, []string{"op", "code"})

	reqDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cloudphone",
		Subsystem: "orchestrator",
		Name:      "provider_request_duration_seconds",
		Help:      "Duration of remote provider calls by operation.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"op"})

	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cloudphone",
		Subsystem: "orchestrator",
		Name:      "provider_retries_total",
		Help:      "Total retry attempts against the remote provider by operation.",
	}, []string{"op"})

	phase := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cloudphone",
		Subsystem: "orchestrator",
		Name:      "job_state_duration_seconds",
		Help:      "Time a job spent in a given state before transitioning.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 900},
	}, []string{"state"})

	terminal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cloudphone",
		Subsystem: "orchestrator",
		Name:      "jobs_terminal_total",
		Help:      "Total jobs reaching a terminal state, by outcome.",
	}, []string{"outcome"})

	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cloudphone",
		Subsystem: "orchestrator",
		Name:      "bus_dropped_events_total",
		Help:      "Total events dropped because a subscriber's channel was full.",
	})

	registry.MustRegister(reqTotal, reqDuration, retries, phase, terminal, dropped)

	reg = registry
	providerRequests = reqTotal
	providerRequestDuration = reqDuration
	providerRetries = retries
	jobPhaseDuration = phase
	jobsTerminal = terminal
	busDropped = dropped
}

func sanitizeLabel(v string, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	var b strings.Builder
	for _, r := range v {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ':' || r == '.' || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}
