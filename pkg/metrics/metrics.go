// Package metrics exposes component run statistics in the Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultOK    = "ok"
	ResultError = "error"
)

type Metrics struct {
	registry      *prometheus.Registry
	runsTotal     *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	calibrations  *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	overruns      prometheus.Counter
	readErrors    *prometheus.CounterVec
	writeErrors   prometheus.Counter
	outputs       *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "controlkit_component_runs_total",
			Help: "Total component runs by component and result.",
		}, []string{"component", "result"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "controlkit_component_run_duration_seconds",
			Help:    "Histogram of component run durations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"component"}),
		calibrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "controlkit_component_calibrations_total",
			Help: "Total component calibrations by component and result.",
		}, []string{"component", "result"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "controlkit_cycle_duration_seconds",
			Help:    "Histogram of full calculation cycle durations.",
			Buckets: prometheus.DefBuckets,
		}),
		overruns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "controlkit_cycle_overruns_total",
			Help: "Total calculation cycles that took longer than the sampling time.",
		}),
		readErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "controlkit_interface_read_errors_total",
			Help: "Total entities that could not be read by interface.",
		}, []string{"interface"}),
		writeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "controlkit_interface_write_errors_total",
			Help: "Total cycles where dispatching write-backs failed.",
		}),
		outputs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "controlkit_component_output",
			Help: "Latest numeric output value of a component.",
		}, []string{"component", "output"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.runsTotal,
		m.runDuration,
		m.calibrations,
		m.cycleDuration,
		m.overruns,
		m.readErrors,
		m.writeErrors,
		m.outputs,
	)
	return m
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

func (m *Metrics) ObserveRun(component string, d time.Duration, err error) {
	m.runsTotal.WithLabelValues(component, result(err)).Inc()
	m.runDuration.WithLabelValues(component).Observe(d.Seconds())
}

func (m *Metrics) ObserveCalibration(component string, err error) {
	m.calibrations.WithLabelValues(component, result(err)).Inc()
}

func (m *Metrics) ObserveCycle(d time.Duration, overrun bool) {
	m.cycleDuration.Observe(d.Seconds())
	if overrun {
		m.overruns.Inc()
	}
}

func (m *Metrics) ReadError(iface string) {
	m.readErrors.WithLabelValues(iface).Inc()
}

func (m *Metrics) WriteError() {
	m.writeErrors.Inc()
}

// SetOutputs records the numeric outputs of a component.
func (m *Metrics) SetOutputs(component string, values map[string]float64) {
	for name, v := range values {
		m.outputs.WithLabelValues(component, name).Set(v)
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
