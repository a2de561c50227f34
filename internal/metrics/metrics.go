// Package metrics exposes the node's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "smarthome"

// Metrics holds every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Cycles        prometheus.Counter
	Faults        *prometheus.CounterVec
	Transitions   *prometheus.CounterVec
	Alerts        prometheus.Counter
	Commands      *prometheus.CounterVec
	Publishes     *prometheus.CounterVec
	Dropped       prometheus.Counter
	Connectivity  prometheus.Gauge
	Temperature   prometheus.Gauge
	Humidity      prometheus.Gauge
	Relay         prometheus.Gauge
	LastReadingTS prometheus.Gauge
}

// New creates and registers all collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Automation cycles run.",
		}),
		Faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faults_total",
			Help:      "Faults by kind (sensor, hardware).",
		}, []string{"kind"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_transitions_total",
			Help:      "Relay transitions made by the climate controller.",
		}, []string{"to"}),
		Alerts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "motion_alerts_total",
			Help:      "Motion alerts fired.",
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Remote commands by device and result.",
		}, []string{"device", "result"}),
		Publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publishes_total",
			Help:      "Outbound messages by kind and result.",
		}, []string{"kind", "result"}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publishes_skipped_total",
			Help:      "Outbound messages skipped because the session was down.",
		}),
		Connectivity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connectivity_level",
			Help:      "Connectivity level (0=disconnected, 1=link up, 2=session up).",
		}),
		Temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature_celsius",
			Help:      "Last temperature reading.",
		}),
		Humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "humidity_percent",
			Help:      "Last relative humidity reading.",
		}),
		Relay: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relay_on",
			Help:      "Relay state (1=on).",
		}),
		LastReadingTS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_reading_timestamp_seconds",
			Help:      "Unix time of the last successful sensor reading.",
		}),
	}

	m.registry.MustRegister(
		m.Cycles, m.Faults, m.Transitions, m.Alerts, m.Commands, m.Publishes,
		m.Dropped, m.Connectivity, m.Temperature, m.Humidity, m.Relay, m.LastReadingTS,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Result labels a success/failure outcome.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Bool converts a flag to a gauge value.
func Bool(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
