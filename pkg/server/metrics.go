package server

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tern-dev/tern/pkg/bridge"
)

// Metrics holds the server's Prometheus collectors.
type Metrics struct {
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	handlerErrors *prometheus.CounterVec
	inFlight      prometheus.Gauge
	accepted      *prometheus.CounterVec
	wsActive      prometheus.Gauge
	wsTotal       prometheus.Counter
	wsMessages    *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer, namespace string, pool *bridge.Pool) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "HTTP requests served, by method, route and status.",
		}, []string{"method", "route", "status"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		handlerErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_errors_total",
			Help:      "Errors and panics caught from handlers and middleware.",
		}, []string{"stage"}),

		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "HTTP requests currently being served.",
		}),

		accepted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_connections_total",
			Help:      "TCP connections accepted, by worker.",
		}, []string{"worker"}),

		wsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections_active",
			Help:      "Open WebSocket connections.",
		}),

		wsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_connections_total",
			Help:      "WebSocket connections opened.",
		}),

		wsMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages, by direction.",
		}, []string{"direction"}),
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "offload_in_flight",
		Help:      "Offloaded handlers currently running.",
	}, func() float64 { return float64(pool.InFlight()) })

	return m
}

func (m *Metrics) observeRequest(method, route string, status int, seconds float64) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, route).Observe(seconds)
}

func (m *Metrics) connAccepted(worker int) {
	m.accepted.WithLabelValues(strconv.Itoa(worker)).Inc()
}

func (m *Metrics) handlerError(_ context.Context, err *bridge.HandlerError) {
	m.handlerErrors.WithLabelValues(string(err.Stage)).Inc()
}

// ConnOpened implements ws.Observer.
func (m *Metrics) ConnOpened() {
	m.wsActive.Inc()
	m.wsTotal.Inc()
}

// ConnClosed implements ws.Observer.
func (m *Metrics) ConnClosed() { m.wsActive.Dec() }

// Message implements ws.Observer.
func (m *Metrics) Message(direction string) {
	m.wsMessages.WithLabelValues(direction).Inc()
}
