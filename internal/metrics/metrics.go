// Package metrics registers the Prometheus collectors for the auth service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what services and middleware report to.
type Recorder interface {
	AuthEvent(flow, outcome string)
	CalendarRefresh(outcome string)
	ObserveRequest(method, route string, status int, d time.Duration)
}

type Collector struct {
	authEvents      *prometheus.CounterVec
	calendarRefresh *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fitdesk_auth_events_total",
			Help: "Auth flow outcomes by flow.",
		}, []string{"flow", "outcome"}),
		calendarRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fitdesk_calendar_token_refresh_total",
			Help: "Google Calendar token refresh attempts by outcome.",
		}, []string{"outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fitdesk_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(c.authEvents, c.calendarRefresh, c.requestDuration)
	return c
}

func (c *Collector) AuthEvent(flow, outcome string) {
	c.authEvents.WithLabelValues(flow, outcome).Inc()
}

func (c *Collector) CalendarRefresh(outcome string) {
	c.calendarRefresh.WithLabelValues(outcome).Inc()
}

func (c *Collector) ObserveRequest(method, route string, status int, d time.Duration) {
	c.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything. Used when metrics are not wired, mostly in tests.
type Nop struct{}

func (Nop) AuthEvent(string, string)                          {}
func (Nop) CalendarRefresh(string)                            {}
func (Nop) ObserveRequest(string, string, int, time.Duration) {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
