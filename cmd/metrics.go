package cmd

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zalepa/metas/metas"
)

// runMetrics exports one run's totals in Prometheus text format, for the
// node exporter textfile collector.
type runMetrics struct {
	reg         *prometheus.Registry
	partitions  *prometheus.CounterVec
	rows        prometheus.Counter
	courts      prometheus.Gauge
	excluded    prometheus.Gauge
	diagnostics *prometheus.CounterVec
	stage       *prometheus.GaugeVec
	duration    prometheus.Gauge
	lastRun     prometheus.Gauge
}

func newRunMetrics() *runMetrics {
	m := &runMetrics{
		reg: prometheus.NewRegistry(),
		partitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "metas_partitions_total",
			Help: "Input partitions processed, by outcome.",
		}, []string{"status"}),
		rows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "metas_rows_total",
			Help: "Rows aggregated.",
		}),
		courts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "metas_courts",
			Help: "Courts in the summary table.",
		}),
		excluded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "metas_courts_excluded",
			Help: "Courts whose branch has no formulas.",
		}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "metas_diagnostics_total",
			Help: "Recoverable conditions recorded, by kind.",
		}, []string{"kind"}),
		stage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "metas_stage_duration_seconds",
			Help: "Wall time of each engine stage.",
		}, []string{"stage"}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "metas_run_duration_seconds",
			Help: "Wall time of the whole run.",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "metas_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
	}
	m.reg.MustRegister(m.partitions, m.rows, m.courts, m.excluded, m.diagnostics, m.stage, m.duration, m.lastRun)
	return m
}

func (m *runMetrics) observe(res *metas.Result, elapsed time.Duration) {
	s := res.Stats
	m.partitions.WithLabelValues("ok").Add(float64(s.Partitions - s.FailedPartitions))
	m.partitions.WithLabelValues("failed").Add(float64(s.FailedPartitions))
	m.rows.Add(float64(s.Rows))
	m.courts.Set(float64(s.Courts))
	m.excluded.Set(float64(s.Excluded))
	counts := metas.CountByKind(res.Diagnostics)
	for _, k := range metas.Kinds {
		m.diagnostics.WithLabelValues(string(k)).Add(float64(counts[k]))
	}
	m.stage.WithLabelValues("map").Set(s.MapDuration.Seconds())
	m.stage.WithLabelValues("combine").Set(s.CombineDuration.Seconds())
	m.stage.WithLabelValues("reduce").Set(s.ReduceDuration.Seconds())
	m.duration.Set(elapsed.Seconds())
	m.lastRun.SetToCurrentTime()
}

func (m *runMetrics) writeTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}
