package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus collectors for annealing jobs.
type Metrics struct {
	JobsStarted  prometheus.Counter
	JobsFinished *prometheus.CounterVec
	JobsRunning  prometheus.Gauge
	JobDuration  *prometheus.HistogramVec
	Evaluations  *prometheus.CounterVec
}

// NewMetrics registers the job collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		JobsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "anneal",
			Name:      "jobs_started_total",
			Help:      "Annealing jobs accepted by the server.",
		}),
		JobsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "anneal",
			Name:      "jobs_finished_total",
			Help:      "Finished annealing jobs by final state and termination cause.",
		}, []string{"state", "cause"}),
		JobsRunning: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "anneal",
			Name:      "jobs_running",
			Help:      "Annealing jobs currently holding a worker slot.",
		}),
		JobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "anneal",
			Name:      "job_duration_seconds",
			Help:      "Wall time of annealing jobs.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"schedule"}),
		Evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "anneal",
			Name:      "objective_evaluations_total",
			Help:      "Objective evaluations spent by finished jobs.",
		}, []string{"objective"}),
	}
}
