// Package metrics collects Prometheus metrics for the HTTP API, the auth core
// and the notification pipeline.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/wetwo-backend/internal/apperror"
)

// Collector owns every metric of the service. A nil *Collector is valid and
// records nothing.
type Collector struct {
	requests         *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	inFlight         prometheus.Gauge
	authAttempts     *prometheus.CounterVec
	gateRejections   *prometheus.CounterVec
	rateLimited      *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	revokedCleanedUp prometheus.Counter
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wetwo_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wetwo_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wetwo_http_requests_in_flight",
			Help: "HTTP requests currently being served.",
		}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wetwo_auth_attempts_total",
			Help: "Sign-in and signup attempts by method and outcome.",
		}, []string{"method", "outcome"}),
		gateRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wetwo_auth_gate_rejections_total",
			Help: "Requests rejected by the bearer token gate, by reason.",
		}, []string{"reason"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wetwo_rate_limited_total",
			Help: "Requests rejected by a rate limit bucket.",
		}, []string{"bucket"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wetwo_notifications_total",
			Help: "Notifications dispatched by transport and result.",
		}, []string{"transport", "result"}),
		revokedCleanedUp: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wetwo_revoked_tokens_cleaned_total",
			Help: "Expired denylist rows removed by the cleanup job.",
		}),
	}

	reg.MustRegister(
		c.requests,
		c.duration,
		c.inFlight,
		c.authAttempts,
		c.gateRejections,
		c.rateLimited,
		c.notifications,
		c.revokedCleanedUp,
	)
	return c
}

// Middleware records request count, latency and in-flight requests. The
// route label is the registered path template, not the raw URL.
func (c *Collector) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if c == nil {
				return next(ctx)
			}
			start := time.Now()
			c.inFlight.Inc()
			defer c.inFlight.Dec()

			err := next(ctx)

			status := ctx.Response().Status
			if err != nil {
				status = statusOf(err)
			}
			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			method := ctx.Request().Method
			c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			c.duration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// statusOf returns the status the error handler will write for err, which
// has not run yet when the middleware observes the error.
func statusOf(err error) int {
	var appErr *apperror.Error
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &appErr):
		return appErr.Status
	case errors.As(err, &httpErr):
		return httpErr.Code
	default:
		return http.StatusInternalServerError
	}
}

// RecordAuthAttempt counts one signup or sign-in attempt.
func (c *Collector) RecordAuthAttempt(method, outcome string) {
	if c == nil {
		return
	}
	c.authAttempts.WithLabelValues(method, outcome).Inc()
}

// RecordGateRejection counts a request rejected by the auth gate.
func (c *Collector) RecordGateRejection(reason string) {
	if c == nil {
		return
	}
	c.gateRejections.WithLabelValues(reason).Inc()
}

// RecordRateLimited counts a request rejected by bucket.
func (c *Collector) RecordRateLimited(bucket string) {
	if c == nil {
		return
	}
	c.rateLimited.WithLabelValues(bucket).Inc()
}

// RecordNotification counts a notification dispatch.
func (c *Collector) RecordNotification(transport string, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.notifications.WithLabelValues(transport, result).Inc()
}

// RecordRevokedCleanup adds n removed denylist rows.
func (c *Collector) RecordRevokedCleanup(n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.revokedCleanedUp.Add(float64(n))
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
