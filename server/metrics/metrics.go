// Package metrics exposes the health of the pipeline to Prometheus
package metrics

import (
	"math"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Float is a float64 that can be read and written concurrently
type Float struct {
	bits atomic.Uint64
}

func (f *Float) Store(v float64) {
	f.bits.Store(math.Float64bits(v))
}

func (f *Float) Load() float64 {
	return math.Float64frombits(f.bits.Load())
}

// StreamStats is implemented by the MJPEG streamer
type StreamStats interface {
	NumViewers() int
	FramesPut() int64
	EncodeErrors() int64
	ViewersServed() int64
}

// Metrics is written by the pipeline goroutine, and read by the Prometheus scraper
type Metrics struct {
	PipelineFPS  Float // Smoothed over recent iterations
	LatencyMs    Float // Most recent iteration
	NetworkFPS   Float
	CaptureFPS   Float
	TargetOffset Float // Distance of the selected target from the crosshair, or -1

	FramesProcessed  atomic.Uint64
	IterationErrors  atomic.Uint64
	PreviewErrors    atomic.Uint64
	PreviewFrames    atomic.Uint64
	RecordedFrames   atomic.Uint64
	Detections       atomic.Uint64
	RecordingActive  atomic.Bool
	PipelineEnabled  atomic.Bool
	Stream           StreamStats // Optional
	registry         *prometheus.Registry
	registeredGauges int
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.TargetOffset.Store(-1)
	m.registerPrometheusMetrics()
	return m
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (m *Metrics) gauge(name, help string, f func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: name,
		Help: help,
	}, f))
	m.registeredGauges++
}

func (m *Metrics) counter(name, help string, f func() float64) {
	m.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: name,
		Help: help,
	}, f))
	m.registeredGauges++
}

func (m *Metrics) registerPrometheusMetrics() {
	m.gauge("frcvision_pipeline_fps", "Pipeline iterations per second", m.PipelineFPS.Load)
	m.gauge("frcvision_latency_ms", "Time between the start of the two most recent iterations", m.LatencyMs.Load)
	m.gauge("frcvision_network_fps", "Inference rate of the detection network", m.NetworkFPS.Load)
	m.gauge("frcvision_capture_fps", "Measured camera frame rate", m.CaptureFPS.Load)
	m.gauge("frcvision_target_distance_pixels", "Distance of the selected target from the crosshair (-1 if none)", m.TargetOffset.Load)
	m.gauge("frcvision_recording_active", "1 while a recording session is open", func() float64 { return boolToFloat(m.RecordingActive.Load()) })
	m.gauge("frcvision_pipeline_enabled", "1 while the pipeline is processing frames", func() float64 { return boolToFloat(m.PipelineEnabled.Load()) })
	m.gauge("frcvision_stream_viewers", "Number of connected stream viewers", m.stream(func(s StreamStats) int64 { return int64(s.NumViewers()) }))

	m.counter("frcvision_frames_processed_total", "Frames that went through detection", func() float64 { return float64(m.FramesProcessed.Load()) })
	m.counter("frcvision_iteration_errors_total", "Iterations that failed", func() float64 { return float64(m.IterationErrors.Load()) })
	m.counter("frcvision_preview_errors_total", "Preview frames that could not be produced", func() float64 { return float64(m.PreviewErrors.Load()) })
	m.counter("frcvision_preview_frames_total", "Preview frames sent to the stream", func() float64 { return float64(m.PreviewFrames.Load()) })
	m.counter("frcvision_recorded_frames_total", "Frames written to recordings", func() float64 { return float64(m.RecordedFrames.Load()) })
	m.counter("frcvision_detections_total", "Qualifying detections", func() float64 { return float64(m.Detections.Load()) })
	m.counter("frcvision_stream_frames_total", "Frames sent to the streamer", m.stream(StreamStats.FramesPut))
	m.counter("frcvision_stream_encode_errors_total", "Stream frames that could not be compressed", m.stream(StreamStats.EncodeErrors))
	m.counter("frcvision_stream_viewers_total", "Stream viewers that have connected", m.stream(StreamStats.ViewersServed))
}

// stream reads f from the streamer, or 0 if there is none
func (m *Metrics) stream(f func(s StreamStats) int64) func() float64 {
	return func() float64 {
		if m.Stream == nil {
			return 0
		}
		return float64(f(m.Stream))
	}
}

// Registry is exposed so that tests can gather the metrics directly
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
