package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "taskmaster"

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	programStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "program",
			Name:      "starts_total",
			Help:      "Number of successful program launches.",
		}, []string{"name"},
	)
	programRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "program",
			Name:      "restarts_total",
			Help:      "Number of automatic relaunches.",
		}, []string{"name"},
	)
	programStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "program",
			Name:      "stops_total",
			Help:      "Number of graceful stops, by whether SIGKILL was needed.",
		}, []string{"name", "forced"},
	)
	programExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "program",
			Name:      "exits_total",
			Help:      "Number of exits not caused by a stop, by expectation.",
		}, []string{"name", "expected"},
	)
	programGiveUps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "program",
			Name:      "give_ups_total",
			Help:      "Number of times the restart budget was exhausted.",
		}, []string{"name"},
	)
	probeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "probe_errors_total",
			Help:      "Number of failed process state probes.",
		}, []string{"name"},
	)
	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "sweep_duration_seconds",
			Help:      "Time spent in one monitor sweep.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		},
	)
	reloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "config",
			Name:      "reloads_total",
			Help:      "Number of configuration reloads, by result.",
		}, []string{"result"},
	)
	running = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "program",
			Name:      "running",
			Help:      "1 while the program has a live process, else 0.",
		}, []string{"name"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		programStarts, programRestarts, programStops, programExits, programGiveUps,
		probeErrors, sweepDuration, reloads, running,
		cpuPercent, memoryRSS, numThreads,
	}
}

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	for _, c := range collectors() {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Enabled reports whether Register has succeeded.
func Enabled() bool { return regOK.Load() }

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// HandlerFor serves metrics from g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncStart(name string) {
	if regOK.Load() {
		programStarts.WithLabelValues(name).Inc()
		running.WithLabelValues(name).Set(1)
	}
}

func IncRestart(name string) {
	if regOK.Load() {
		programRestarts.WithLabelValues(name).Inc()
	}
}

func IncStop(name string, forced bool) {
	if regOK.Load() {
		programStops.WithLabelValues(name, boolLabel(forced)).Inc()
		running.WithLabelValues(name).Set(0)
	}
}

func IncExit(name string, expected bool) {
	if regOK.Load() {
		programExits.WithLabelValues(name, boolLabel(expected)).Inc()
		running.WithLabelValues(name).Set(0)
	}
}

func IncGiveUp(name string) {
	if regOK.Load() {
		programGiveUps.WithLabelValues(name).Inc()
	}
}

func IncProbeError(name string) {
	if regOK.Load() {
		probeErrors.WithLabelValues(name).Inc()
	}
}

func ObserveSweep(seconds float64) {
	if regOK.Load() {
		sweepDuration.Observe(seconds)
	}
}

func IncReload(ok bool) {
	if regOK.Load() {
		result := "success"
		if !ok {
			result = "failure"
		}
		reloads.WithLabelValues(result).Inc()
	}
}

// Forget drops every per-program series for name, used when a program is
// removed from the configuration.
func Forget(name string) {
	if !regOK.Load() {
		return
	}
	l := prometheus.Labels{"name": name}
	for _, v := range []*prometheus.CounterVec{programStarts, programRestarts, programStops, programExits, programGiveUps, probeErrors} {
		v.DeletePartialMatch(l)
	}
	for _, v := range []*prometheus.GaugeVec{running, cpuPercent, memoryRSS, numThreads} {
		v.DeletePartialMatch(l)
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
