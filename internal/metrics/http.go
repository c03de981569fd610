package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// unrecordedPaths are scraped or polled often and would drown the login traffic.
var unrecordedPaths = map[string]struct{}{
	"/metrics": {},
	"/health":  {},
}

// HTTPMetricsMiddleware records request count, latency and in-flight requests
// per route. It is a pass-through unless m is the Prometheus recorder.
func HTTPMetricsMiddleware(m Recorder) gin.HandlerFunc {
	prom, ok := m.(*Metrics)
	if !ok {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		if _, skip := unrecordedPaths[c.Request.URL.Path]; skip {
			c.Next()
			return
		}

		start := time.Now()
		prom.HTTPRequestsInFlight.Inc()
		defer prom.HTTPRequestsInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		prom.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		prom.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
