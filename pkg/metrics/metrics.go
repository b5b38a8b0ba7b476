package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the portal exports. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	responseTime   *prometheus.HistogramVec
	activeRequests prometheus.Gauge
	allowlistOps   *prometheus.CounterVec
	rateLimit      *prometheus.CounterVec
	broadcastSends *prometheus.CounterVec
	welcomeEmails  *prometheus.CounterVec
	cleanupDeleted prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rest_requests_processed_total",
			Help: "The total number of processed REST requests",
		}, []string{"method", "endpoint", "status"}),
		responseTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "restapi_response_time_milliseconds",
			Help:    "REST API response time distributions",
			Buckets: []float64{1, 10, 50, 100, 200, 300, 400, 500, 1000, 5000},
		}, []string{"method", "endpoint"}),
		activeRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "active_rest_connections",
			Help: "Number of active REST API connections",
		}),
		allowlistOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "allowlist_mutations_total",
			Help: "Allowlist mutations by operation and outcome",
		}, []string{"op", "result"}),
		rateLimit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ratelimit_decisions_total",
			Help: "Rate limiter decisions",
		}, []string{"result"}),
		broadcastSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broadcast_emails_total",
			Help: "Broadcast email sends by outcome",
		}, []string{"result"}),
		welcomeEmails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "welcome_emails_total",
			Help: "Welcome email sends by outcome",
		}, []string{"result"}),
		cleanupDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ratelimit_cleanup_deleted_total",
			Help: "Stale rate limit records removed by the janitor",
		}),
	}
	m.registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.requests, m.responseTime, m.activeRequests,
		m.allowlistOps, m.rateLimit, m.broadcastSends, m.welcomeEmails, m.cleanupDeleted,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		m.activeRequests.Inc()
		defer m.activeRequests.Dec()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		m.responseTime.WithLabelValues(c.Request.Method, endpoint).Observe(float64(time.Since(start).Milliseconds()))
	}
}

func (m *Metrics) AllowlistOp(op string, err error) {
	if m == nil {
		return
	}
	m.allowlistOps.WithLabelValues(op, outcome(err)).Inc()
}

func (m *Metrics) RateLimitDecision(allowed bool) {
	if m == nil {
		return
	}
	result := "allowed"
	if !allowed {
		result = "denied"
	}
	m.rateLimit.WithLabelValues(result).Inc()
}

func (m *Metrics) BroadcastSends(sent, failed int) {
	if m == nil {
		return
	}
	m.broadcastSends.WithLabelValues("sent").Add(float64(sent))
	m.broadcastSends.WithLabelValues("failed").Add(float64(failed))
}

func (m *Metrics) WelcomeEmail(err error) {
	if m == nil {
		return
	}
	m.welcomeEmails.WithLabelValues(outcome(err)).Inc()
}

func (m *Metrics) CleanupDeleted(n int) {
	if m == nil {
		return
	}
	m.cleanupDeleted.Add(float64(n))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
