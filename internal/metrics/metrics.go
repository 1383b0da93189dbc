package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lms"

var (
	EngineOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "engine_ops_total", Help: "Workflow operations by result kind",
	}, []string{"op", "result"})
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Name: "http_request_duration_seconds", Help: "API request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "notifications_total", Help: "Invitation notifications by channel and result",
	}, []string{"channel", "result"})
	DBPing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Name: "db_ping_seconds", Help: "DB ping latency",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(EngineOps, HTTPDuration, Notifications, DBPing)
}

func Handler() http.Handler { return promhttp.Handler() }

// ObserveOp — result: "ok" или вид ошибки (not_found, conflict, ...).
func ObserveOp(op, result string) { EngineOps.WithLabelValues(op, result).Inc() }

// ObserveHTTP — route берём из шаблона маршрута, а не из пути, чтобы не плодить серии.
func ObserveHTTP(method, route string, status int, d time.Duration) {
	HTTPDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

func ObserveNotification(channel string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	Notifications.WithLabelValues(channel, result).Inc()
}

func ObserveDBPing(d time.Duration) { DBPing.Observe(d.Seconds()) }
