package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttemptsTotal counts submits that reached the upstream API
	LoginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loginportal_login_attempts_total",
		Help: "Total number of login attempts (successful and failed).",
	}, []string{"result"}) // result: "success" or "failed"

	// LoginFailuresTotal breaks failed attempts down by cause
	LoginFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loginportal_login_failures_total",
		Help: "Failed login attempts by cause.",
	}, []string{"kind"}) // kind: transport, status, decode, store, unknown

	UpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "loginportal_upstream_request_duration_seconds",
		Help:    "Latency of calls to the upstream authentication API.",
		Buckets: prometheus.DefBuckets,
	}, []string{"code"})

	SessionsCleared = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loginportal_sessions_cleared_total",
		Help: "Sessions removed by logout or expiry.",
	})

	RateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loginportal_rate_limited_total",
		Help: "Login submissions rejected by the per-IP rate limiter.",
	})
)
