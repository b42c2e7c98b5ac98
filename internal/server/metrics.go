package server

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Liggi/ai-learning-assistant-sub003/pkg/observability"
)

// Metrics implements the observability hooks with Prometheus collectors.
type Metrics struct {
	generations       *prometheus.CounterVec
	generationSeconds *prometheus.HistogramVec
	generationsActive prometheus.Gauge

	layouts          *prometheus.CounterVec
	layoutSeconds    prometheus.Histogram
	layoutsDiscarded prometheus.Counter

	cacheOps *prometheus.CounterVec

	saves       *prometheus.CounterVec
	saveSeconds *prometheus.HistogramVec

	upstream        *prometheus.CounterVec
	upstreamSeconds *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnmap_generations_total",
			Help: "Content generations by kind and result.",
		}, []string{"kind", "result"}),
		generationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "learnmap_generation_duration_seconds",
			Help:    "Content generation latency.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"kind"}),
		generationsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "learnmap_generations_in_flight",
			Help: "Content generations currently running.",
		}),
		layouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnmap_layouts_total",
			Help: "Layout computations by result.",
		}, []string{"result"}),
		layoutSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "learnmap_layout_duration_seconds",
			Help:    "Layout computation latency.",
			Buckets: prometheus.DefBuckets,
		}),
		layoutsDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "learnmap_layouts_discarded_total",
			Help: "Layout results dropped because a newer layout was requested.",
		}),
		cacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnmap_cache_operations_total",
			Help: "Cache operations by key type and outcome.",
		}, []string{"key_type", "op"}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnmap_store_saves_total",
			Help: "Store saves by entity and result.",
		}, []string{"entity", "result"}),
		saveSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "learnmap_store_save_duration_seconds",
			Help:    "Store save latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"entity"}),
		upstream: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "learnmap_upstream_requests_total",
			Help: "Outgoing HTTP requests by host and status.",
		}, []string{"host", "status"}),
		upstreamSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "learnmap_upstream_request_duration_seconds",
			Help:    "Outgoing HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"host"}),
	}
	reg.MustRegister(
		m.generations, m.generationSeconds, m.generationsActive,
		m.layouts, m.layoutSeconds, m.layoutsDiscarded,
		m.cacheOps, m.saves, m.saveSeconds,
		m.upstream, m.upstreamSeconds,
	)
	return m
}

// Install registers m as the process-wide observability hooks.
func (m *Metrics) Install() {
	observability.SetGenerationHooks(m)
	observability.SetLayoutHooks(m)
	observability.SetCacheHooks(m)
	observability.SetStoreHooks(m)
	observability.SetHTTPHooks(m)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) OnGenerationStart(_ context.Context, _ observability.GenerationKind, _ string) {
	m.generationsActive.Inc()
}

func (m *Metrics) OnGenerationComplete(_ context.Context, kind observability.GenerationKind, _ string, d time.Duration, err error) {
	m.generationsActive.Dec()
	m.generations.WithLabelValues(string(kind), result(err)).Inc()
	m.generationSeconds.WithLabelValues(string(kind)).Observe(d.Seconds())
}

func (m *Metrics) OnLayoutStart(context.Context, int) {}

func (m *Metrics) OnLayoutComplete(_ context.Context, _ int, d time.Duration, err error) {
	m.layouts.WithLabelValues(result(err)).Inc()
	m.layoutSeconds.Observe(d.Seconds())
}

func (m *Metrics) OnLayoutDiscarded(context.Context) { m.layoutsDiscarded.Inc() }

func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.cacheOps.WithLabelValues(keyType, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.cacheOps.WithLabelValues(keyType, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, keyType string, _ int) {
	m.cacheOps.WithLabelValues(keyType, "set").Inc()
}

func (m *Metrics) OnSave(_ context.Context, entity string, d time.Duration, err error) {
	m.saves.WithLabelValues(entity, result(err)).Inc()
	m.saveSeconds.WithLabelValues(entity).Observe(d.Seconds())
}

func (m *Metrics) OnRequest(context.Context, string, string, string) {}

func (m *Metrics) OnResponse(_ context.Context, _, host, _ string, status int, d time.Duration) {
	m.upstream.WithLabelValues(host, strconv.Itoa(status)).Inc()
	m.upstreamSeconds.WithLabelValues(host).Observe(d.Seconds())
}

func (m *Metrics) OnError(_ context.Context, _, host, _ string, _ error) {
	m.upstream.WithLabelValues(host, "error").Inc()
}

var (
	_ observability.GenerationHooks = (*Metrics)(nil)
	_ observability.LayoutHooks     = (*Metrics)(nil)
	_ observability.CacheHooks      = (*Metrics)(nil)
	_ observability.StoreHooks      = (*Metrics)(nil)
	_ observability.HTTPHooks       = (*Metrics)(nil)
)
