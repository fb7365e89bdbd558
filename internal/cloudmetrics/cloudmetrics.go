// Package cloudmetrics pushes fleet accounting metrics from self-hosted
// installations to a central endpoint. It keeps its own registry so
// fleet series never leak into the instance's /metrics scrape, and all
// failures are logged and never block renewal processing.
package cloudmetrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	instanceInfo        *prometheus.GaugeVec
	memoryBytes         prometheus.Gauge
	assetsTracked       *prometheus.GaugeVec
	clientsTotal        prometheus.Gauge
	openEscalations     prometheus.Gauge
	remindersDispatched *prometheus.CounterVec
	renewalsApplied     *prometheus.CounterVec
	engineErrors        *prometheus.CounterVec
}

func newMetrics(registry *prometheus.Registry) *metrics {
	m := &metrics{
		instanceInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "renewd_instance_info",
			Help: "Static instance identity labels.",
		}, []string{"instance_id", "version"}),
		memoryBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "renewd_instance_memory_bytes",
			Help: "Memory obtained from the OS.",
		}),
		assetsTracked: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "renewd_assets_tracked",
			Help: "Renewable assets under management.",
		}, []string{"kind"}),
		clientsTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "renewd_clients_total",
			Help: "Clients under management.",
		}),
		openEscalations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "renewd_open_escalations",
			Help: "Escalations awaiting resolution.",
		}),
		remindersDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "renewd_reminders_dispatched_total",
			Help: "Reminder notifications handed to a channel.",
		}, []string{"org", "channel"}),
		renewalsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "renewd_renewals_applied_total",
			Help: "Renewals applied per asset kind.",
		}, []string{"org", "kind"}),
		engineErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "renewd_engine_errors_total",
			Help: "Scheduling engine errors by operation.",
		}, []string{"org", "operation"}),
	}

	registry.MustRegister(
		m.instanceInfo,
		m.memoryBytes,
		m.assetsTracked,
		m.clientsTotal,
		m.openEscalations,
		m.remindersDispatched,
		m.renewalsApplied,
		m.engineErrors,
	)

	return m
}

// CloudMetrics owns the fleet registry and its gauges.
type CloudMetrics struct {
	registry *prometheus.Registry
	metrics  *metrics
	pusher   Pusher
}

// New wires the fleet registry and marks the instance identity series.
func New(registry *prometheus.Registry, pusher Pusher, instanceID, version string) *CloudMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	c := &CloudMetrics{
		registry: registry,
		metrics:  newMetrics(registry),
		pusher:   pusher,
	}
	c.metrics.instanceInfo.WithLabelValues(normalizeLabel(instanceID), normalizeLabel(version)).Set(1)
	return c
}

func (c *CloudMetrics) SetMemoryUsage(bytes uint64) {
	if c == nil {
		return
	}
	c.metrics.memoryBytes.Set(float64(bytes))
}

func (c *CloudMetrics) SetAssetsTracked(kind string, count int64) {
	if c == nil {
		return
	}
	if count < 0 {
		count = 0
	}
	c.metrics.assetsTracked.WithLabelValues(normalizeLabel(kind)).Set(float64(count))
}

func (c *CloudMetrics) SetClientsTotal(count int64) {
	if c == nil {
		return
	}
	if count < 0 {
		count = 0
	}
	c.metrics.clientsTotal.Set(float64(count))
}

func (c *CloudMetrics) SetOpenEscalations(count int64) {
	if c == nil {
		return
	}
	if count < 0 {
		count = 0
	}
	c.metrics.openEscalations.Set(float64(count))
}

// Recorder is the event-side surface. Services call the package-level
// functions so the fleet pipeline stays optional at every call site.
type Recorder interface {
	RecordReminderDispatched(orgID, channel string)
	RecordRenewalApplied(orgID, kind string)
	RecordEngineError(orgID, operation string)
}

type noopRecorder struct{}

func (noopRecorder) RecordReminderDispatched(string, string) {}
func (noopRecorder) RecordRenewalApplied(string, string)     {}
func (noopRecorder) RecordEngineError(string, string)        {}

var (
	activeRecorder Recorder = noopRecorder{}
	recorderMu     sync.RWMutex
)

func setRecorder(rec Recorder) {
	if rec == nil {
		return
	}
	recorderMu.Lock()
	activeRecorder = rec
	recorderMu.Unlock()
}

func RecordReminderDispatched(orgID, channel string) {
	recorderMu.RLock()
	rec := activeRecorder
	recorderMu.RUnlock()
	rec.RecordReminderDispatched(orgID, channel)
}

func RecordRenewalApplied(orgID, kind string) {
	recorderMu.RLock()
	rec := activeRecorder
	recorderMu.RUnlock()
	rec.RecordRenewalApplied(orgID, kind)
}

func RecordEngineError(orgID, operation string) {
	recorderMu.RLock()
	rec := activeRecorder
	recorderMu.RUnlock()
	rec.RecordEngineError(orgID, operation)
}

func (c *CloudMetrics) RecordReminderDispatched(orgID, channel string) {
	if c == nil {
		return
	}
	c.metrics.remindersDispatched.WithLabelValues(normalizeLabel(orgID), normalizeLabel(channel)).Inc()
}

func (c *CloudMetrics) RecordRenewalApplied(orgID, kind string) {
	if c == nil {
		return
	}
	c.metrics.renewalsApplied.WithLabelValues(normalizeLabel(orgID), normalizeLabel(kind)).Inc()
}

func (c *CloudMetrics) RecordEngineError(orgID, operation string) {
	if c == nil {
		return
	}
	c.metrics.engineErrors.WithLabelValues(normalizeLabel(orgID), normalizeLabel(operation)).Inc()
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
