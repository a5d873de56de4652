// Package metrics exposes prometheus collectors for the generator and the recorder.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Generator holds the broadcaster-side collectors.
type Generator struct {
	SamplesPushed  *prometheus.CounterVec
	PushErrors     *prometheus.CounterVec
	StreamsRunning prometheus.Gauge
	HostCPUPercent prometheus.Gauge
	HostMemPercent prometheus.Gauge
}

// NewGenerator creates the generator collectors and registers them on reg.
func NewGenerator(reg prometheus.Registerer) *Generator {
	m := &Generator{
		SamplesPushed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamcheck_samples_pushed_total",
			Help: "Samples pushed to the transport, per stream.",
		}, []string{"stream"}),
		PushErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamcheck_push_errors_total",
			Help: "Transport failures that terminated a generator, per stream.",
		}, []string{"stream"}),
		StreamsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "streamcheck_streams_running",
			Help: "Generator tasks currently running.",
		}),
		HostCPUPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "streamcheck_host_cpu_percent",
			Help: "Host CPU utilisation sampled during generation.",
		}),
		HostMemPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "streamcheck_host_memory_percent",
			Help: "Host memory utilisation sampled during generation.",
		}),
	}
	reg.MustRegister(m.SamplesPushed, m.PushErrors, m.StreamsRunning, m.HostCPUPercent, m.HostMemPercent)
	return m
}

// Recorder holds the reference recorder collectors.
type Recorder struct {
	SamplesReceived *prometheus.CounterVec
	StreamsKnown    prometheus.Gauge
	Rejected        *prometheus.CounterVec
}

// NewRecorder creates the recorder collectors and registers them on reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	m := &Recorder{
		SamplesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamcheck_recorder_samples_received_total",
			Help: "Samples stored by the recorder, per stream.",
		}, []string{"stream"}),
		StreamsKnown: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "streamcheck_recorder_streams",
			Help: "Streams registered with the recorder.",
		}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "streamcheck_recorder_rejected_total",
			Help: "Requests or messages rejected by the recorder, per reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.SamplesReceived, m.StreamsKnown, m.Rejected)
	return m
}

// Handler serves the collectors gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
