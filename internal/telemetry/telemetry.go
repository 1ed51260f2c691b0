package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"tradeagents/internal/config"
)

const MeterName = "tradeagents"

type Provider struct {
	MeterProvider metric.MeterProvider
	Metrics       *Metrics
	reader        *sdkmetric.ManualReader
	shutdown      func(context.Context) error
}

func Init(ctx context.Context, cfg config.TelemetryConfig) (*Provider, error) {
	if !cfg.Enabled {
		mp := noop.NewMeterProvider()
		m, err := NewMetrics(mp.Meter(MeterName))
		if err != nil {
			return nil, err
		}
		return &Provider{MeterProvider: mp, Metrics: m, shutdown: func(context.Context) error { return nil }}, nil
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "tradeagents"
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	m, err := NewMetrics(mp.Meter(MeterName))
	if err != nil {
		return nil, err
	}
	return &Provider{
		MeterProvider: mp,
		Metrics:       m,
		reader:        reader,
		shutdown:      mp.Shutdown,
	}, nil
}

func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}

// Point is one counter series in a snapshot.
type Point struct {
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes"`
	Value      float64           `json:"value"`
}

// Snapshot collects current sums and histogram counts. It returns nil when telemetry is disabled.
func (p *Provider) Snapshot(ctx context.Context) ([]Point, error) {
	if p == nil || p.reader == nil {
		return nil, nil
	}
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return nil, err
	}
	var out []Point
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out = append(out, Point{Name: m.Name, Attributes: attrs(dp.Attributes), Value: float64(dp.Value)})
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					out = append(out, Point{Name: m.Name + ".count", Attributes: attrs(dp.Attributes), Value: float64(dp.Count)})
				}
			}
		}
	}
	return out, nil
}

func attrs(set attribute.Set) map[string]string {
	out := map[string]string{}
	for _, kv := range set.ToSlice() {
		out[string(kv.Key)] = kv.Value.Emit()
	}
	return out
}
