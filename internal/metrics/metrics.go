// Package metrics exposes Prometheus counters for the CMS workflow and the
// HTTP layer. Register once at start; the Record helpers are no-ops before.
package metrics

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "casehub"

var (
	registerOnce sync.Once

	transitions     *prometheus.CounterVec
	imports         *prometheus.CounterVec
	saves           *prometheus.CounterVec
	historyCommits  prometheus.Counter
	historyDepth    prometheus.Histogram
	requestDuration *prometheus.HistogramVec
)

func MustRegister() {
	registerOnce.Do(func() {
		transitions = registerCounterVec(prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "workflow",
				Name:      "transitions_total",
				Help:      "Workflow actions by action and result.",
			},
			[]string{"action", "result"},
		))
		imports = registerCounterVec(prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "editor",
				Name:      "imports_total",
				Help:      "JSON imports by kind (cases, history) and result.",
			},
			[]string{"kind", "result"},
		))
		saves = registerCounterVec(prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "editor",
				Name:      "saves_total",
				Help:      "Collection saves to the site database by result.",
			},
			[]string{"result"},
		))
		historyCommits = registerCounter(prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "snapshots_total",
			Help:      "Committed history snapshots.",
		}))
		historyDepth = registerHistogram(prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "depth",
			Help:      "Undo stack size after each commit.",
			Buckets:   prometheus.LinearBuckets(5, 10, 8),
		}))
		requestDuration = registerHistogramVec(prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency by method and status.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "status"},
		))

		registerRuntimeCollectors()
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordTransition(action, result string) {
	if transitions == nil {
		return
	}
	transitions.WithLabelValues(label(action, "unknown"), label(result, "unknown")).Inc()
}

func RecordImport(kind, result string) {
	if imports == nil {
		return
	}
	imports.WithLabelValues(label(kind, "unknown"), label(result, "unknown")).Inc()
}

func RecordSave(result string) {
	if saves == nil {
		return
	}
	saves.WithLabelValues(label(result, "unknown")).Inc()
}

// RecordSnapshot matches history.Options.OnCommit.
func RecordSnapshot(depth int) {
	if historyCommits == nil {
		return
	}
	historyCommits.Inc()
	historyDepth.Observe(float64(depth))
}

func ObserveRequest(method string, status int, d time.Duration) {
	if requestDuration == nil {
		return
	}
	requestDuration.WithLabelValues(method, statusClass(status)).Observe(d.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

func label(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func registerCounter(c prometheus.Counter) prometheus.Counter {
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func registerCounterVec(vec *prometheus.CounterVec) *prometheus.CounterVec {
	if err := prometheus.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return vec
}

func registerHistogram(h prometheus.Histogram) prometheus.Histogram {
	if err := prometheus.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing
			}
		}
		panic(err)
	}
	return h
}

func registerHistogramVec(vec *prometheus.HistogramVec) *prometheus.HistogramVec {
	if err := prometheus.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return vec
}

func registerRuntimeCollectors() {
	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := prometheus.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}
}
