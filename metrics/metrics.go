// Package metrics implements dispatch.Recorder against
// prometheus/client_golang, the way internal/httputil's rate limiter
// registers its counters against the default registry, and exposes the
// collected series over the standard /metrics endpoint.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ddnet/maproom/dispatch"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maproom",
			Subsystem: "dispatch",
			Name:      "requests_total",
			Help:      "Total number of dispatched requests by op and outcome.",
		},
		[]string{"op", "outcome"},
	)
	broadcastsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maproom",
			Subsystem: "dispatch",
			Name:      "broadcasts_total",
			Help:      "Total number of broadcasts fanned out by kind.",
		},
		[]string{"kind"},
	)
	sessionsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "maproom",
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Currently registered sessions.",
		},
	)
	roomsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "maproom",
			Subsystem: "rooms",
			Name:      "active",
			Help:      "Currently registered rooms.",
		},
	)
)

var registerOnce sync.Once

func register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(requestsTotal, broadcastsTotal, sessionsGauge, roomsGauge)
	})
}

// Recorder implements dispatch.Recorder. The zero value is usable; New
// just forces registration at a well-defined point during startup rather
// than lazily on first request.
type Recorder struct{}

// New registers maproom's metric series against the default Prometheus
// registry and returns a Recorder ready to hand to dispatch.Dispatcher.
func New() *Recorder {
	register()
	return &Recorder{}
}

// ObserveRequest satisfies dispatch.Recorder.
func (r *Recorder) ObserveRequest(op dispatch.Op, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	requestsTotal.WithLabelValues(string(op), outcome).Inc()
}

// ObserveBroadcast satisfies dispatch.Recorder.
func (r *Recorder) ObserveBroadcast(kind dispatch.BroadcastKind) {
	broadcastsTotal.WithLabelValues(string(kind)).Inc()
}

// SetSessionCount records the current number of live sessions, sampled
// periodically by the server's housekeeping loop rather than on every
// register/remove.
func (r *Recorder) SetSessionCount(n int) { sessionsGauge.Set(float64(n)) }

// SetRoomCount records the current number of registered rooms.
func (r *Recorder) SetRoomCount(n int) { roomsGauge.Set(float64(n)) }

// Handler returns the standard Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
