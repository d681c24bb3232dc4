package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// 实时课堂指标
	LiveParticipants = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "live_room_participants",
			Help: "Current number of websocket participants across all rooms",
		},
	)

	LiveActiveRooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "live_active_rooms",
			Help: "Current number of open live-session rooms",
		},
	)

	LiveMessageCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "live_messages_total",
			Help: "Total number of live-session events by type and direction",
		},
		[]string{"type", "direction"},
	)
)

func Init() {
	prometheus.MustRegister(RequestCounter)
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(LiveParticipants)
	prometheus.MustRegister(LiveActiveRooms)
	prometheus.MustRegister(LiveMessageCounter)
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()

		RequestCounter.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			strconv.Itoa(status),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
