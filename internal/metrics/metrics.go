// Package metrics exports list engine activity as Prometheus counters.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatview"

// Engine counts height reports, invalidations, jumps, loads and pauses. It
// satisfies chatlist.Recorder.
type Engine struct {
	reports       *prometheus.CounterVec
	invalidations *prometheus.CounterVec
	invalidateAt  prometheus.Histogram
	jumps         *prometheus.CounterVec
	loads         *prometheus.CounterVec
	loaded        *prometheus.CounterVec
	paused        prometheus.Gauge
	pauses        prometheus.Counter
	events        *prometheus.CounterVec
}

// New registers the engine collectors with reg. A nil reg uses the default
// registerer. Registering twice against the same registry reuses the
// existing collectors.
func New(reg prometheus.Registerer) (*Engine, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	e := &Engine{
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "measurement_reports_total",
			Help:      "Row height reports by outcome.",
		}, []string{"result"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layout_invalidations_total",
			Help:      "Virtualizer layout resets by reason.",
		}, []string{"reason"}),
		invalidateAt: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "layout_invalidation_index",
			Help:      "First row index of each layout reset.",
			Buckets:   []float64{0, 1, 5, 25, 100, 250, 500},
		}),
		jumps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reply_jumps_total",
			Help:      "Scroll-to-message attempts by result.",
		}, []string{"result"}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "list_updates_total",
			Help:      "Message list updates by load phase.",
		}, []string{"phase"}),
		loaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_loaded_total",
			Help:      "Messages added to the list by load phase.",
		}, []string{"phase"}),
		paused: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "paused",
			Help:      "1 while auto-scroll is paused.",
		}),
		pauses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pauses_total",
			Help:      "Times auto-scroll was paused.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_events_total",
			Help:      "Events delivered by the message source by type.",
		}, []string{"type"}),
	}

	var err error
	if e.reports, err = register(reg, e.reports); err != nil {
		return nil, err
	}
	if e.invalidations, err = register(reg, e.invalidations); err != nil {
		return nil, err
	}
	if e.invalidateAt, err = register(reg, e.invalidateAt); err != nil {
		return nil, err
	}
	if e.jumps, err = register(reg, e.jumps); err != nil {
		return nil, err
	}
	if e.loads, err = register(reg, e.loads); err != nil {
		return nil, err
	}
	if e.loaded, err = register(reg, e.loaded); err != nil {
		return nil, err
	}
	if e.paused, err = register(reg, e.paused); err != nil {
		return nil, err
	}
	if e.pauses, err = register(reg, e.pauses); err != nil {
		return nil, err
	}
	if e.events, err = register(reg, e.events); err != nil {
		return nil, err
	}
	return e, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, fmt.Errorf("register metrics: %w", err)
}

// MeasurementReport counts a height report outcome.
func (e *Engine) MeasurementReport(result string) {
	if e == nil {
		return
	}
	e.reports.WithLabelValues(result).Inc()
}

// Jump counts a reply jump outcome.
func (e *Engine) Jump(result string) {
	if e == nil {
		return
	}
	e.jumps.WithLabelValues(result).Inc()
}

// Invalidation counts a layout reset from index.
func (e *Engine) Invalidation(reason string, index int) {
	if e == nil {
		return
	}
	e.invalidations.WithLabelValues(reason).Inc()
	e.invalidateAt.Observe(float64(index))
}

// Loaded counts a list update that added count messages.
func (e *Engine) Loaded(phase string, count int) {
	if e == nil {
		return
	}
	e.loads.WithLabelValues(phase).Inc()
	if count > 0 {
		e.loaded.WithLabelValues(phase).Add(float64(count))
	}
}

// PauseChanged tracks the pause state.
func (e *Engine) PauseChanged(paused bool) {
	if e == nil {
		return
	}
	if paused {
		e.pauses.Inc()
		e.paused.Set(1)
		return
	}
	e.paused.Set(0)
}

// SourceEvent counts an event from the message source.
func (e *Engine) SourceEvent(kind string) {
	if e == nil {
		return
	}
	e.events.WithLabelValues(kind).Inc()
}

// Handler serves the metrics of g in the text exposition format.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Server returns an HTTP server exposing /metrics on addr.
func Server(addr string, g prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}
