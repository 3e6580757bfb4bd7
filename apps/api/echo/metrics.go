package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "vpl",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latencies by route, method and status.",
	Buckets:   prometheus.DefBuckets,
}, []string{"route", "method", "status"})

// metricsMiddleware observes every request under its route pattern, not its raw path.
func metricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)

			status := ctx.Response().Status
			if err != nil {
				status = errorStatus(err)
			}
			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			requestDuration.WithLabelValues(route, ctx.Request().Method, strconv.Itoa(status)).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}
