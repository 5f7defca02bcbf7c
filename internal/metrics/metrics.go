// Package metrics exposes Prometheus instruments for query bindings, push
// channels, tool calls and per-user controllers.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jamesprial/notetaker-mcp/internal/tools"
)

const namespace = "notetaker"

// Collector holds every instrument. Its methods are safe on a nil receiver,
// so callers can pass a nil *Collector when metrics are disabled.
type Collector struct {
	queryResults *prometheus.CounterVec
	pushEvents   *prometheus.CounterVec
	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
	sessions     prometheus.Gauge
}

// New creates the instruments and registers them on reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		queryResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "binding",
			Name:      "query_results_total",
			Help:      "Query binding results by operation and outcome (ok, error, superseded).",
		}, []string{"operation", "outcome"}),
		pushEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "binding",
			Name:      "push_events_total",
			Help:      "Push channel events by payload key and outcome (applied, rejected, error, stale).",
		}, []string{"key", "outcome"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mcp",
			Name:      "tool_calls_total",
			Help:      "MCP tool calls by tool and outcome (ok, error).",
		}, []string{"tool", "outcome"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mcp",
			Name:      "tool_duration_seconds",
			Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"tool"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notes",
			Name:      "sessions",
			Help:      "Users with a live notes controller.",
		}),
	}
	reg.MustRegister(c.queryResults, c.pushEvents, c.toolCalls, c.toolDuration, c.sessions)
	return c
}

// QueryResult counts one resolved query request.
func (c *Collector) QueryResult(operation, outcome string) {
	if c == nil {
		return
	}
	c.queryResults.WithLabelValues(operation, outcome).Inc()
}

// PushEvent counts one event received on a push channel.
func (c *Collector) PushEvent(key, outcome string) {
	if c == nil {
		return
	}
	c.pushEvents.WithLabelValues(key, outcome).Inc()
}

// SessionOpened and SessionClosed track controllers held by the registry.
func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.sessions.Inc()
}

func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.sessions.Dec()
}

// Sessions returns the gauge of live controllers.
func (c *Collector) Sessions() prometheus.Gauge {
	return c.sessions
}

// Instrument wraps every handler in registrations so calls are counted and
// timed. A nil Collector returns registrations unchanged.
func (c *Collector) Instrument(registrations []tools.Registration) []tools.Registration {
	if c == nil {
		return registrations
	}
	out := make([]tools.Registration, len(registrations))
	for i, r := range registrations {
		name, next := r.Tool.Name, r.Handler
		out[i] = tools.Registration{
			Tool: r.Tool,
			Handler: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
				start := time.Now()
				result, err := next(ctx, req)
				outcome := "ok"
				if err != nil || (result != nil && result.IsError) {
					outcome = "error"
				}
				c.toolCalls.WithLabelValues(name, outcome).Inc()
				c.toolDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
				return result, err
			},
		}
	}
	return out
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
