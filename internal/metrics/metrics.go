// Package metrics exposes Prometheus instruments for the agent runtime.
//
// A nil *Metrics is valid and records nothing, so components can take one
// optionally.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mcpagent"

// Conversation outcomes.
const (
	OutcomeAnswered  = "answered"
	OutcomeExhausted = "exhausted"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
)

// Metrics groups the runtime instruments behind one registry.
type Metrics struct {
	registry *prometheus.Registry

	conversations *prometheus.CounterVec
	iterations    prometheus.Histogram
	toolCalls     *prometheus.CounterVec
	toolDuration  *prometheus.HistogramVec
	serverTools   *prometheus.GaugeVec
	discoveryErrs *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// New creates the instruments and registers them on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		conversations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversations_total",
			Help:      "Conversations handled, by outcome.",
		}, []string{"outcome"}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversation_iterations",
			Help:      "Model rounds per conversation.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool dispatches, by tool and result.",
		}, []string{"tool", "result"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Tool execution latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		serverTools: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "server_tools",
			Help:      "Tools discovered per server.",
		}, []string{"server"}),
		discoveryErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_errors_total",
			Help:      "Failed tool listings, by server.",
		}, []string{"server"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by route pattern and status code.",
		}, []string{"route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	m.registry.MustRegister(
		m.conversations,
		m.iterations,
		m.toolCalls,
		m.toolDuration,
		m.serverTools,
		m.discoveryErrs,
		m.httpRequests,
		m.httpDuration,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ConversationDone records a finished conversation.
func (m *Metrics) ConversationDone(outcome string, iterations int) {
	if m == nil {
		return
	}
	m.conversations.WithLabelValues(outcome).Inc()
	m.iterations.Observe(float64(iterations))
}

// ToolCall records one dispatch.
func (m *Metrics) ToolCall(tool string, ok bool, seconds float64) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.toolCalls.WithLabelValues(tool, result).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(seconds)
}

// Discovered records the tool count of one server listing.
func (m *Metrics) Discovered(server string, tools int, err error) {
	if m == nil {
		return
	}
	m.serverTools.WithLabelValues(server).Set(float64(tools))
	if err != nil {
		m.discoveryErrs.WithLabelValues(server).Inc()
	}
}

// HTTPRequest records one served request.
func (m *Metrics) HTTPRequest(route string, code int, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(seconds)
}
