package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the operator-facing counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry       *prometheus.Registry
	toolCalls      *prometheus.CounterVec
	storeFailures  *prometheus.CounterVec
	agentRuns      *prometheus.CounterVec
	agentRounds    prometheus.Histogram
	transcriptions *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rolodex_tool_calls_total",
			Help: "Tool invocations by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		storeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rolodex_store_failures_total",
			Help: "Row store operations that did not succeed, by operation and failure kind.",
		}, []string{"op", "kind"}),
		agentRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rolodex_agent_runs_total",
			Help: "Orchestrator runs by terminal state and reason.",
		}, []string{"state", "reason"}),
		agentRounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rolodex_agent_rounds",
			Help:    "LLM rounds used per orchestrator run.",
			Buckets: []float64{1, 2, 3, 4, 5, 8, 13},
		}),
		transcriptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rolodex_transcriptions_total",
			Help: "Audio transcriptions by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(m.toolCalls, m.storeFailures, m.agentRuns, m.agentRounds, m.transcriptions)
	return m
}

func (m *Metrics) ToolCall(tool, outcome string) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
}

func (m *Metrics) StoreFailure(op, kind string) {
	if m == nil {
		return
	}
	m.storeFailures.WithLabelValues(op, kind).Inc()
}

func (m *Metrics) AgentRun(state, reason string, rounds int) {
	if m == nil {
		return
	}
	m.agentRuns.WithLabelValues(state, reason).Inc()
	m.agentRounds.Observe(float64(rounds))
}

func (m *Metrics) Transcription(outcome string) {
	if m == nil {
		return
	}
	m.transcriptions.WithLabelValues(outcome).Inc()
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
