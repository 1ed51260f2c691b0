package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type Metrics struct {
	AgentRuns     metric.Int64Counter
	AgentDuration metric.Float64Histogram
	LLMDegraded   metric.Int64Counter
	RiskActions   metric.Int64Counter
	Trades        metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.AgentRuns, err = meter.Int64Counter("tradeagents.agent.runs",
		metric.WithDescription("Agent cycles by outcome"),
	)
	if err != nil {
		return nil, err
	}

	m.AgentDuration, err = meter.Float64Histogram("tradeagents.agent.duration",
		metric.WithDescription("Agent cycle duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.LLMDegraded, err = meter.Int64Counter("tradeagents.llm.degraded",
		metric.WithDescription("LLM, embedding and vector steps that fell back to a default value"),
	)
	if err != nil {
		return nil, err
	}

	m.RiskActions, err = meter.Int64Counter("tradeagents.risk.actions",
		metric.WithDescription("Pre-trade risk resolutions by action"),
	)
	if err != nil {
		return nil, err
	}

	m.Trades, err = meter.Int64Counter("tradeagents.trades",
		metric.WithDescription("Simulated fills by side"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Nop returns instruments that record nothing. Agents built without metrics use it.
func Nop() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter(MeterName))
	return m
}

func (m *Metrics) Degraded(ctx context.Context, agent, step string) {
	if m == nil {
		return
	}
	m.LLMDegraded.Add(ctx, 1, metric.WithAttributes(
		attribute.String("agent", agent),
		attribute.String("step", step),
	))
}

func (m *Metrics) AgentRun(ctx context.Context, agent, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("agent", agent), attribute.String("outcome", outcome))
	m.AgentRuns.Add(ctx, 1, attrs)
	m.AgentDuration.Record(ctx, took.Seconds(), metric.WithAttributes(attribute.String("agent", agent)))
}

func (m *Metrics) RiskAction(ctx context.Context, action string) {
	if m == nil {
		return
	}
	m.RiskActions.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action)))
}

func (m *Metrics) Trade(ctx context.Context, side string) {
	if m == nil {
		return
	}
	m.Trades.Add(ctx, 1, metric.WithAttributes(attribute.String("side", side)))
}
