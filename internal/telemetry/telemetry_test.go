package telemetry

import (
	"context"
	"testing"
	"time"

	"tradeagents/internal/config"
)

func TestDisabledProviderIsNoop(t *testing.T) {
	ctx := context.Background()
	p, err := Init(ctx, config.TelemetryConfig{Enabled: false})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	p.Metrics.Degraded(ctx, "decision", "judge")
	points, err := p.Snapshot(ctx)
	if err != nil || points != nil {
		t.Fatalf("points=%v err=%v want nil", points, err)
	}
}

func TestDegradedCounterCarriesAgentAndStep(t *testing.T) {
	ctx := context.Background()
	p, err := Init(ctx, config.TelemetryConfig{Enabled: true, ServiceName: "test"})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	defer p.Shutdown(ctx)

	p.Metrics.Degraded(ctx, "decision", "judge")
	p.Metrics.Degraded(ctx, "decision", "judge")
	p.Metrics.Degraded(ctx, "memory", "embed")
	p.Metrics.AgentRun(ctx, "decision", "ok", 20*time.Millisecond)

	points, err := p.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	var judge, embed, runs float64
	for _, pt := range points {
		switch {
		case pt.Name == "tradeagents.llm.degraded" && pt.Attributes["step"] == "judge":
			judge = pt.Value
			if pt.Attributes["agent"] != "decision" {
				t.Fatalf("agent attr=%q", pt.Attributes["agent"])
			}
		case pt.Name == "tradeagents.llm.degraded" && pt.Attributes["step"] == "embed":
			embed = pt.Value
		case pt.Name == "tradeagents.agent.runs":
			runs = pt.Value
		}
	}
	if judge != 2 || embed != 1 || runs != 1 {
		t.Fatalf("judge=%v embed=%v runs=%v", judge, embed, runs)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.Degraded(context.Background(), "a", "b")
	m.Trade(context.Background(), "BUY")
}
