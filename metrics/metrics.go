package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one server instance on a private registry,
// so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	Rooms            prometheus.Gauge
	Members          prometheus.Gauge
	Figures          prometheus.Counter
	MouseEvents      prometheus.Counter
	DecodeErrors     prometheus.Counter
	DeliveryFailures prometheus.Counter
	Handshakes       *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "whiteboard",
			Name:      "rooms",
			Help:      "Number of live rooms.",
		}),
		Members: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "whiteboard",
			Name:      "members",
			Help:      "Number of connected room members.",
		}),
		Figures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "whiteboard",
			Name:      "figures_added_total",
			Help:      "Figures appended to room logs.",
		}),
		MouseEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "whiteboard",
			Name:      "mouse_events_total",
			Help:      "Mouse position notifications fanned out.",
		}),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "whiteboard",
			Name:      "decode_errors_total",
			Help:      "Inbound frames that could not be decoded.",
		}),
		DeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "whiteboard",
			Name:      "delivery_failures_total",
			Help:      "Outbound frames that could not be written.",
		}),
		Handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "whiteboard",
			Name:      "handshakes_total",
			Help:      "Join handshakes by outcome.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Rooms,
		m.Members,
		m.Figures,
		m.MouseEvents,
		m.DecodeErrors,
		m.DeliveryFailures,
		m.Handshakes,
	)
	return m
}

// Handler exposes the registry at /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
