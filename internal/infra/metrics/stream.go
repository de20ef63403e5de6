package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(streamEventsTotal, streamsActive) }

var streamEventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "sse_stream_events_total",
		Help: "SSE events delivered to browsers, labeled by kind.",
	},
	[]string{"kind"}, // 'chunk', 'done', 'error'
)

var streamsActive = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "sse_streams_active",
		Help: "Currently connected SSE relays.",
	},
)

func IncStreamEvent(kind string) {
	streamEventsTotal.WithLabelValues(norm(kind)).Inc()
}

func StreamOpened() { streamsActive.Inc() }
func StreamClosed() { streamsActive.Dec() }
