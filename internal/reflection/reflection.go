package reflection

import (
	"context"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"tradeagents/internal/agent"
	"tradeagents/internal/llm"
	"tradeagents/internal/memory"
	"tradeagents/internal/models"
	"tradeagents/internal/repository"
	"tradeagents/internal/telemetry"
)

const (
	defaultMaxEvolutions   = 3
	defaultMutationRate    = 0.1
	defaultFitnessToEvolve = 0.5
)

type Agent struct {
	Repo      repository.Repository
	LLM       llm.Client
	Memory    *memory.Agent
	Heartbeat *agent.Heartbeat
	Metrics   *telemetry.Metrics
	Logger    *zap.Logger

	MaxEvolutions   int
	MutationRate    float64
	FitnessToEvolve float64

	now  func() time.Time
	rand func() float64
}

func (a *Agent) Name() models.AgentType { return models.AgentReflection }

// RunOnce writes today's review if missing, then runs one evolution round.
// A failure in either step is logged and does not stop the other.
func (a *Agent) RunOnce(ctx context.Context) (agent.Summary, error) {
	summary := agent.Summary{"review_created": false, "evolved": 0}
	degraded := 0

	review, err := a.DailyReview(ctx)
	if err != nil {
		a.log().Error("daily review failed", zap.Error(err))
		a.Heartbeat.Fail(ctx, models.AgentReflection, err)
	} else if review != nil {
		summary["review_created"] = true
		summary["trades_reviewed"] = review.TradesCount
		if review.Degraded {
			degraded++
		}
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	report, err := a.Evolve(ctx)
	if err != nil {
		a.log().Error("strategy evolution failed", zap.Error(err))
		a.Heartbeat.Fail(ctx, models.AgentReflection, err)
	} else if report != nil {
		ops, _ := models.DecodeJSON[[]models.EvolutionOperation](report.EvolutionOperations)
		summary["evolved"] = len(ops)
	}

	summary[agent.SummaryDegraded] = degraded
	return summary, nil
}

func (a *Agent) maxEvolutions() int {
	if a.MaxEvolutions > 0 {
		return a.MaxEvolutions
	}
	return defaultMaxEvolutions
}

func (a *Agent) mutationRate() float64 {
	if a.MutationRate > 0 {
		return a.MutationRate
	}
	return defaultMutationRate
}

func (a *Agent) fitnessToEvolve() float64 {
	if a.FitnessToEvolve > 0 {
		return a.FitnessToEvolve
	}
	return defaultFitnessToEvolve
}

func (a *Agent) draw() func() float64 {
	if a.rand != nil {
		return a.rand
	}
	return rand.Float64
}

func (a *Agent) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now().UTC()
}

func (a *Agent) log() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}
