package session

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for session observability.
type Metrics struct {
	SessionsTotal    *prometheus.CounterVec // Completed sessions by outcome
	IterationsPerRun prometheus.Histogram   // Reason/act iterations per session
	ToolCallsTotal   *prometheus.CounterVec // Tool executions by tool and success
	TokensTotal      *prometheus.CounterVec // Model tokens by direction
}

// NewMetrics creates Prometheus metrics for an agent instance. The
// registerer parameter allows flexible registration (e.g., global registry,
// test registry).
func NewMetrics(reg prometheus.Registerer, instanceName string) *Metrics {
	sessionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "foresight_sessions_total",
		Help:        "Completed analysis sessions by outcome",
		ConstLabels: prometheus.Labels{"instance": instanceName},
	}, []string{"outcome"})

	iterationsPerRun := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "foresight_session_iterations",
		Help:        "Reason/act iterations consumed per session",
		Buckets:     []float64{1, 2, 3, 4, 5, 6, 8, 10},
		ConstLabels: prometheus.Labels{"instance": instanceName},
	})

	toolCallsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "foresight_tool_calls_total",
		Help:        "Tool executions by tool name and success",
		ConstLabels: prometheus.Labels{"instance": instanceName},
	}, []string{"tool", "success"})

	tokensTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "foresight_model_tokens_total",
		Help:        "Model tokens consumed by direction",
		ConstLabels: prometheus.Labels{"instance": instanceName},
	}, []string{"direction"})

	reg.MustRegister(sessionsTotal)
	reg.MustRegister(iterationsPerRun)
	reg.MustRegister(toolCallsTotal)
	reg.MustRegister(tokensTotal)

	return &Metrics{
		SessionsTotal:    sessionsTotal,
		IterationsPerRun: iterationsPerRun,
		ToolCallsTotal:   toolCallsTotal,
		TokensTotal:      tokensTotal,
	}
}

func (m *Metrics) observeSession(outcome string, iterations int) {
	if m == nil {
		return
	}
	m.SessionsTotal.WithLabelValues(outcome).Inc()
	m.IterationsPerRun.Observe(float64(iterations))
}

func (m *Metrics) observeToolCall(tool string, success bool) {
	if m == nil {
		return
	}
	label := "false"
	if success {
		label = "true"
	}
	m.ToolCallsTotal.WithLabelValues(tool, label).Inc()
}

func (m *Metrics) observeTokens(input, output int) {
	if m == nil {
		return
	}
	m.TokensTotal.WithLabelValues("input").Add(float64(input))
	m.TokensTotal.WithLabelValues("output").Add(float64(output))
}
