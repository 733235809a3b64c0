package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes application-level instruments for the payment pipeline.
type Metrics struct {
	webhooksReceived *prometheus.CounterVec
	transitions      *prometheus.CounterVec
	registrations    prometheus.Counter
	codeExhausted    prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		webhooksReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "entrypay_webhooks_received_total",
			Help: "Gateway notifications received, labelled by outcome.",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "entrypay_payment_transitions_total",
			Help: "Payment status transitions, labelled by target status and whether the caller won the conditional write.",
		}, []string{"target", "applied"}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "entrypay_registrations_materialized_total",
			Help: "Registrations created by the materializer.",
		}),
		codeExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "entrypay_code_generation_exhausted_total",
			Help: "Unique-code generation attempts that exhausted their retry budget.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "entrypay_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "entrypay_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	collectors := []prometheus.Collector{
		m.webhooksReceived,
		m.transitions,
		m.registrations,
		m.codeExhausted,
		m.httpRequests,
		m.httpDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) RecordWebhook(outcome string) {
	if m == nil {
		return
	}
	m.webhooksReceived.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordTransition(target string, applied bool) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(target, strconv.FormatBool(applied)).Inc()
}

func (m *Metrics) RecordRegistration() {
	if m == nil {
		return
	}
	m.registrations.Inc()
}

func (m *Metrics) RecordCodeExhausted() {
	if m == nil {
		return
	}
	m.codeExhausted.Inc()
}

// GinMiddleware records request counts and latency per route.
func GinMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		m.httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
