package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	BroadcastSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chat_broadcast_subscribers",
		Help: "Current number of realtime subscribers across all rooms",
	})
	BroadcastEventsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_broadcast_events_total",
		Help: "Total number of events accepted for broadcast",
	})
	BroadcastDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_broadcast_dropped_total",
		Help: "Total number of events or deliveries dropped on backpressure",
	})
	MessagesCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_created_total",
		Help: "Total number of messages persisted",
	})
	RateLimitRejectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_rate_limit_rejections_total",
		Help: "Total number of requests rejected by velocity limits",
	})
	RoomsDiscardedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chat_rooms_discarded_total",
		Help: "Total number of rooms soft-deleted by the lifecycle sweeper",
	})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(
		BroadcastSubscribers,
		BroadcastEventsTotal,
		BroadcastDroppedTotal,
		MessagesCreatedTotal,
		RateLimitRejectionsTotal,
		RoomsDiscardedTotal,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}

// GinMiddleware records basic request metrics for Prometheus to scrape.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}
		HTTPRequestsTotal.With(labels).Inc()
		HTTPRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
