package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"overlay-sync/internal/models"
)

var (
	pollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_polls_total",
			Help: "Total number of poll attempts per room, by result.",
		},
		[]string{"room", "result"},
	)
	messagesDeliveredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_messages_delivered_total",
			Help: "Messages delivered to the UI collaborator per room.",
		},
		[]string{"room"},
	)
	duplicatesDiscardedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_duplicates_discarded_total",
			Help: "Messages discarded by the dedup ledger per room.",
		},
		[]string{"room"},
	)
	echoReconciliationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_echo_reconciliations_total",
			Help: "Local echoes superseded by their confirmed message.",
		},
		[]string{"room"},
	)
	consecutiveFailures = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sync_consecutive_failures",
			Help: "Current consecutive poll failures per room.",
		},
		[]string{"room"},
	)
	roomStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sync_room_status",
			Help: "Room loop status (0 healthy, 1 degraded, 2 stopped).",
		},
		[]string{"room"},
	)
	appendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_appends_total",
			Help: "Outbound append attempts, by result.",
		},
		[]string{"result"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_ws_active_connections",
			Help: "Number of active shell websocket subscribers.",
		},
	)
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_http_requests_total",
			Help: "Control API requests, by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sync_http_request_duration_seconds",
			Help:    "Control API request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func init() {
	prometheus.MustRegister(
		pollsTotal,
		messagesDeliveredTotal,
		duplicatesDiscardedTotal,
		echoReconciliationsTotal,
		consecutiveFailures,
		roomStatus,
		appendsTotal,
		wsActiveConnections,
		httpRequestsTotal,
		httpRequestDuration,
	)
}

// HTTPMetricsMiddleware records request counts and latency for the
// control API.
func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncPoll(room, result string) {
	pollsTotal.WithLabelValues(room, result).Inc()
}

func IncDelivered(room string) {
	messagesDeliveredTotal.WithLabelValues(room).Inc()
}

func IncDuplicate(room string) {
	duplicatesDiscardedTotal.WithLabelValues(room).Inc()
}

func IncReconciled(room string) {
	echoReconciliationsTotal.WithLabelValues(room).Inc()
}

func SetFailures(room string, n int) {
	consecutiveFailures.WithLabelValues(room).Set(float64(n))
}

func SetRoomStatus(room string, status models.RoomStatus) {
	roomStatus.WithLabelValues(room).Set(float64(status))
}

func IncAppend(result string) {
	appendsTotal.WithLabelValues(result).Inc()
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

// ForgetRoom drops per-room series once a room is closed so stopped
// rooms do not linger on dashboards.
func ForgetRoom(room string) {
	labels := prometheus.Labels{"room": room}
	pollsTotal.DeletePartialMatch(labels)
	messagesDeliveredTotal.Delete(labels)
	duplicatesDiscardedTotal.Delete(labels)
	echoReconciliationsTotal.Delete(labels)
	consecutiveFailures.Delete(labels)
	roomStatus.Delete(labels)
}
