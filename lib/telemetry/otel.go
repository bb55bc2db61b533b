// Package telemetry configures the OpenTelemetry metrics pipeline for the
// relay service.
package telemetry

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	apimetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/coachpo/execrelay/config"
	"github.com/coachpo/execrelay/internal/observability"
)

// Providers groups telemetry provider handles.
type Providers struct {
	MeterProvider apimetric.MeterProvider
}

// Init configures the OTLP metrics exporter from the provided configuration.
// An empty endpoint installs noop providers so instrumentation stays free.
func Init(ctx context.Context, cfg config.TelemetryConfig) (Providers, func(context.Context) error, error) {
	endpoint := strings.TrimSpace(cfg.OTLPEndpoint)
	service := strings.TrimSpace(cfg.ServiceName)
	if service == "" {
		service = "execrelay"
	}

	if endpoint == "" {
		providers := Providers{MeterProvider: noop.NewMeterProvider()}
		otel.SetMeterProvider(providers.MeterProvider)
		return providers, func(context.Context) error { return nil }, nil
	}

	host, insecure, err := parseEndpoint(endpoint)
	if err != nil {
		return Providers{}, nil, err
	}

	metricOpts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(host)}
	if insecure {
		metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
	}
	metricExp, err := otlpmetrichttp.New(ctx, metricOpts...)
	if err != nil {
		return Providers{}, nil, fmt.Errorf("create metric exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(service)))
	if err != nil {
		return Providers{}, nil, fmt.Errorf("create resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(metricExp, sdkmetric.WithInterval(15*time.Second))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)

	providers := Providers{MeterProvider: mp}
	return providers, mp.Shutdown, nil
}

func parseEndpoint(raw string) (string, bool, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse otlp endpoint: %w", err)
	}
	host := parsed.Host
	if host == "" {
		host = raw
	}
	insecure := parsed.Scheme != "https"
	return host, insecure, nil
}

// Bridge adapts an OpenTelemetry meter to the relay metrics interface,
// creating instruments lazily and caching them by name.
type Bridge struct {
	meter apimetric.Meter

	mu         sync.Mutex
	counters   map[string]apimetric.Float64Counter
	histograms map[string]apimetric.Float64Histogram
	gauges     map[string]apimetric.Float64Gauge
}

var _ observability.Metrics = (*Bridge)(nil)

// NewBridge wraps the provider's meter for relay-wide metric recording.
func NewBridge(provider apimetric.MeterProvider, scope string) *Bridge {
	if scope == "" {
		scope = "execrelay"
	}
	return &Bridge{
		meter:      provider.Meter(scope),
		counters:   make(map[string]apimetric.Float64Counter),
		histograms: make(map[string]apimetric.Float64Histogram),
		gauges:     make(map[string]apimetric.Float64Gauge),
	}
}

// IncCounter adds value to the named counter.
func (b *Bridge) IncCounter(name string, value float64, labels map[string]string) {
	b.mu.Lock()
	counter, ok := b.counters[name]
	if !ok {
		var err error
		counter, err = b.meter.Float64Counter(name)
		if err != nil {
			b.mu.Unlock()
			return
		}
		b.counters[name] = counter
	}
	b.mu.Unlock()
	counter.Add(context.Background(), value, apimetric.WithAttributes(attrs(labels)...))
}

// ObserveHistogram records value in the named histogram.
func (b *Bridge) ObserveHistogram(name string, value float64, labels map[string]string) {
	b.mu.Lock()
	histogram, ok := b.histograms[name]
	if !ok {
		var err error
		histogram, err = b.meter.Float64Histogram(name)
		if err != nil {
			b.mu.Unlock()
			return
		}
		b.histograms[name] = histogram
	}
	b.mu.Unlock()
	histogram.Record(context.Background(), value, apimetric.WithAttributes(attrs(labels)...))
}

// SetGauge records the latest value for the named gauge.
func (b *Bridge) SetGauge(name string, value float64, labels map[string]string) {
	b.mu.Lock()
	gauge, ok := b.gauges[name]
	if !ok {
		var err error
		gauge, err = b.meter.Float64Gauge(name)
		if err != nil {
			b.mu.Unlock()
			return
		}
		b.gauges[name] = gauge
	}
	b.mu.Unlock()
	gauge.Record(context.Background(), value, apimetric.WithAttributes(attrs(labels)...))
}

func attrs(labels map[string]string) []attribute.KeyValue {
	if len(labels) == 0 {
		return nil
	}
	out := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		out = append(out, attribute.String(k, v))
	}
	return out
}
