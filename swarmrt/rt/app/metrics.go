package app

import (
	"net/http"

	"github.com/gekko3d/boids/swarmrt/rt/grid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the Prometheus collectors fed once per frame.
type Metrics struct {
	Registry *prometheus.Registry

	PhaseDuration *prometheus.HistogramVec
	Frames        prometheus.Counter
	Particles     prometheus.Gauge
	Binned        prometheus.Gauge
	Dropped       prometheus.Gauge
	OutOfRange    prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		PhaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "boids_phase_duration_seconds",
				Help:    "Time spent in each phase of the frame cycle",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
			},
			[]string{"phase"},
		),
		Frames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "boids_frames_total",
			Help: "Number of completed frames",
		}),
		Particles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "boids_particles",
			Help: "Number of simulated particles",
		}),
		Binned: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "boids_grid_binned_particles",
			Help: "Particles recorded in the grid during the last frame",
		}),
		Dropped: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "boids_grid_dropped_particles",
			Help: "Particles left out of full grid cells during the last frame",
		}),
		OutOfRange: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "boids_grid_out_of_range_particles",
			Help: "Particles outside the grid during the last frame",
		}),
	}
	m.Registry.MustRegister(m.PhaseDuration, m.Frames, m.Particles, m.Binned, m.Dropped, m.OutOfRange)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeFrame(p *Profiler, g *grid.Grid) {
	for _, phase := range framePhases {
		if d, ok := p.Durations[phase]; ok {
			m.PhaseDuration.WithLabelValues(phase.String()).Observe(d.Seconds())
		}
	}
	m.Binned.Set(float64(g.Binned()))
	m.Dropped.Set(float64(g.Dropped()))
	m.OutOfRange.Set(float64(g.OutOfRange()))
	m.Frames.Inc()
}
