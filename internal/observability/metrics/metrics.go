package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	remindersDispatched metric.Int64Counter
	remindersSuppressed metric.Int64Counter
	escalationsRaised   metric.Int64Counter
	renewalsApplied     metric.Int64Counter
	renewalsRejected    metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "renewd"
	}
	meter := provider.Meter(name)

	remindersDispatched, err := meter.Int64Counter("renewd_reminders_dispatched_total")
	if err != nil {
		return nil, err
	}
	remindersSuppressed, err := meter.Int64Counter("renewd_reminders_suppressed_total")
	if err != nil {
		return nil, err
	}
	escalationsRaised, err := meter.Int64Counter("renewd_escalations_raised_total")
	if err != nil {
		return nil, err
	}
	renewalsApplied, err := meter.Int64Counter("renewd_renewals_applied_total")
	if err != nil {
		return nil, err
	}
	renewalsRejected, err := meter.Int64Counter("renewd_renewals_rejected_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		remindersDispatched: remindersDispatched,
		remindersSuppressed: remindersSuppressed,
		escalationsRaised:   escalationsRaised,
		renewalsApplied:     renewalsApplied,
		renewalsRejected:    renewalsRejected,
	}, nil
}

// RecordReminderDispatched increments dispatched reminder counts per channel.
func (m *Metrics) RecordReminderDispatched(ctx context.Context, channel, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("channel", strings.TrimSpace(channel)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.remindersDispatched.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordReminderSuppressed increments suppressed reminder counts.
func (m *Metrics) RecordReminderSuppressed(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.remindersSuppressed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordEscalationRaised increments escalation counts.
func (m *Metrics) RecordEscalationRaised(ctx context.Context, assetKind string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("asset_kind", strings.TrimSpace(assetKind)))
	m.escalationsRaised.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRenewalApplied increments successful renewal counts.
func (m *Metrics) RecordRenewalApplied(ctx context.Context, assetKind string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("asset_kind", strings.TrimSpace(assetKind)))
	m.renewalsApplied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRenewalRejected increments rejected renewal counts by reason.
func (m *Metrics) RecordRenewalRejected(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.renewalsRejected.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"org_id":     {},
	"endpoint":   {},
	"channel":    {},
	"outcome":    {},
	"asset_kind": {},
	"reason":     {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
