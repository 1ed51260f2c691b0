package agent

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"tradeagents/internal/models"
	"tradeagents/internal/telemetry"
)

// Summary is the result of one cycle. Agents report the number of degraded
// steps under the "degraded" key.
type Summary map[string]any

const SummaryDegraded = "degraded"

// Degraded returns the degraded-step count reported in s.
func (s Summary) Degraded() int {
	if s == nil {
		return 0
	}
	switch v := s[SummaryDegraded].(type) {
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}

type Agent interface {
	Name() models.AgentType
	// RunOnce runs one cycle. It returns an error only for unexpected failures;
	// missing data and degraded collaborators are reported in the Summary.
	RunOnce(ctx context.Context) (Summary, error)
}

// RunCycle runs one cycle of a wrapped in heartbeats. Cycle errors are recorded
// on the AgentStatus row and returned.
func RunCycle(ctx context.Context, a Agent, hb *Heartbeat, logger *zap.Logger, metrics *telemetry.Metrics) (Summary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	name := a.Name()
	hb.Beat(ctx, name, models.AgentRunning, "Agent started", "")

	start := time.Now()
	summary, err := a.RunOnce(ctx)
	took := time.Since(start)
	if err != nil {
		metrics.AgentRun(ctx, string(name), "error", took)
		if errors.Is(err, context.Canceled) {
			hb.Beat(ctx, name, models.AgentStopped, "Cancelled", "Idle")
			return summary, err
		}
		logger.Error("agent cycle failed", zap.String("agent", string(name)), zap.Error(err))
		hb.Fail(ctx, name, err)
		return summary, err
	}
	metrics.AgentRun(ctx, string(name), "ok", took)
	hb.Record(ctx, name, summary, took)
	logger.Info("agent cycle done",
		zap.String("agent", string(name)),
		zap.Duration("took", took),
		zap.Int("degraded", summary.Degraded()),
	)
	return summary, nil
}

// Loop runs a cycle immediately and then once per interval until ctx is cancelled.
// Cycle errors are recorded and the loop keeps going.
func Loop(ctx context.Context, a Agent, interval time.Duration, hb *Heartbeat, logger *zap.Logger, metrics *telemetry.Metrics) error {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("agent loop started", zap.String("agent", string(a.Name())), zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		_, _ = RunCycle(ctx, a, hb, logger, metrics)
		if ctx.Err() == nil {
			select {
			case <-ctx.Done():
			case <-ticker.C:
				continue
			}
		}
		hb.Beat(context.Background(), a.Name(), models.AgentStopped, "Agent stopped", "")
		logger.Info("agent loop stopped", zap.String("agent", string(a.Name())))
		return ctx.Err()
	}
}

// NoteDegraded logs and counts one step that fell back to its default value.
func NoteDegraded(ctx context.Context, logger *zap.Logger, metrics *telemetry.Metrics, agent models.AgentType, step string, err error) {
	if logger != nil {
		logger.Warn("degraded step",
			zap.String("agent", string(agent)),
			zap.String("step", step),
			zap.Error(err),
		)
	}
	metrics.Degraded(ctx, string(agent), step)
}
