// Package metrics exposes EzCall's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yok-tottii/EzCall/internal/route"
)

// Metrics holds all collectors on a private registry
type Metrics struct {
	registry *prometheus.Registry

	routeChanges      *prometheus.CounterVec
	routeActive       *prometheus.GaugeVec
	routeAvailable    prometheus.Gauge
	callTransitions   *prometheus.CounterVec
	signalingMessages *prometheus.CounterVec
	relayForwarded    *prometheus.CounterVec
	micTestPeak       prometheus.Gauge
}

var routeDevices = []route.AudioDevice{route.SpeakerPhone, route.WiredHeadset, route.Earpiece}

// New creates and registers the collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		routeChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ezcall_route_changes_total",
				Help: "Audio route notifications by resulting active device",
			},
			[]string{"device"},
		),
		routeActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ezcall_route_active_device",
				Help: "1 for the active audio device, 0 otherwise",
			},
			[]string{"device"},
		),
		routeAvailable: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ezcall_route_available_devices",
				Help: "Number of audio devices currently available",
			},
		),
		callTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ezcall_call_transitions_total",
				Help: "Call state machine transitions",
			},
			[]string{"from", "to"},
		),
		signalingMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ezcall_signaling_messages_total",
				Help: "Signaling messages by direction and type",
			},
			[]string{"direction", "type"},
		),
		relayForwarded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ezcall_relay_forwarded_total",
				Help: "Messages forwarded by the local relay",
			},
			[]string{"type"},
		),
		micTestPeak: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ezcall_mictest_peak_dbfs",
				Help: "Peak level of the last microphone test",
			},
		),
	}
}

// OnAudioDeviceChanged implements route.Listener
func (m *Metrics) OnAudioDeviceChanged(active route.AudioDevice, available route.DeviceSet) {
	m.routeChanges.WithLabelValues(active.String()).Inc()
	for _, d := range routeDevices {
		v := 0.0
		if d == active {
			v = 1
		}
		m.routeActive.WithLabelValues(d.String()).Set(v)
	}
	m.routeAvailable.Set(float64(available.Len()))
}

// CallTransition counts a call state change
func (m *Metrics) CallTransition(from, to string) {
	m.callTransitions.WithLabelValues(from, to).Inc()
}

// SignalingMessage counts a sent ("out") or received ("in") message
func (m *Metrics) SignalingMessage(direction, msgType string) {
	m.signalingMessages.WithLabelValues(direction, msgType).Inc()
}

// RelayForwarded counts a message forwarded by the relay
func (m *Metrics) RelayForwarded(msgType string) {
	m.relayForwarded.WithLabelValues(msgType).Inc()
}

// MicTest records the peak of a microphone test
func (m *Metrics) MicTest(peakDBFS float64) {
	m.micTestPeak.Set(peakDBFS)
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
