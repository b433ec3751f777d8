package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edubridge", Name: "http_requests_total", Help: "Handled HTTP requests",
	}, []string{"route", "status"})
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "edubridge", Name: "http_request_seconds", Help: "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	HandlerErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "edubridge", Name: "handler_errors_total", Help: "Handler errors",
	})
	DBPing = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "edubridge", Name: "db_ping_seconds", Help: "DB ping latency",
		Buckets: prometheus.DefBuckets,
	})
	Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edubridge", Name: "notifications_total", Help: "Doubt notifications by result",
	}, []string{"result"})
	Uploads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "edubridge", Name: "uploads_total", Help: "Chat attachment uploads by result",
	}, []string{"result"})
	OpenPosts = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "edubridge", Name: "open_posts", Help: "Posts in status open",
	})
	PendingMatches = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "edubridge", Name: "pending_matches", Help: "Matches in status pending",
	})
	Subscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "edubridge", Name: "realtime_subscriptions", Help: "Active realtime subscriptions",
	})
)

func init() {
	prometheus.MustRegister(HTTPRequests, HTTPDuration, HandlerErrors, DBPing,
		Notifications, Uploads, OpenPosts, PendingMatches, Subscriptions)
}

func Handler() http.Handler { return promhttp.Handler() }

func ObserveDBPing(d time.Duration) { DBPing.Observe(d.Seconds()) }

func ObserveRequest(route, status string, d time.Duration) {
	HTTPRequests.WithLabelValues(route, status).Inc()
	HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}
