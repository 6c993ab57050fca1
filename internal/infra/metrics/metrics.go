package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	tasksCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_tasks_created_total",
			Help: "Tasks created, by generation mode.",
		},
		[]string{"mode"},
	)

	tasksTerminal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_tasks_terminal_total",
			Help: "Tasks reaching a terminal state, by state and error kind.",
		},
		[]string{"state", "kind"},
	)

	pollCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_poll_cycles_total",
			Help: "Remote status polls, by outcome (running/succeeded/failed/transport_error).",
		},
		[]string{"outcome"},
	)

	remoteLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "video_remote_call_latency_ms",
			Help:    "Remote provider call latency distribution in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000},
		},
		[]string{"call", "success"},
	)

	enhancerFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "video_enhancer_fallbacks_total",
			Help: "Prompt enhancement calls that fell back to the original prompt.",
		},
		[]string{"reason"},
	)
)

// MustRegister registers collectors with the default registry (idempotent).
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(
			tasksCreated, tasksTerminal, pollCycles,
			remoteLatencyMs, enhancerFallbacks,
		)
	})
}

// TaskCreated records a task entering the registry.
func TaskCreated(mode string) {
	tasksCreated.WithLabelValues(mode).Inc()
}

// TaskTerminal records a task reaching succeeded or failed. kind is empty
// for successes.
func TaskTerminal(state, kind string) {
	tasksTerminal.WithLabelValues(state, kind).Inc()
}

// PollCycle records one poll against the remote provider.
func PollCycle(outcome string) {
	pollCycles.WithLabelValues(outcome).Inc()
}

// RemoteCall records latency of a submit or poll call.
func RemoteCall(call string, success bool, ms float64) {
	label := "false"
	if success {
		label = "true"
	}
	remoteLatencyMs.WithLabelValues(call, label).Observe(ms)
}

// EnhancerFallback records a fail-open enhancement.
func EnhancerFallback(reason string) {
	enhancerFallbacks.WithLabelValues(reason).Inc()
}
