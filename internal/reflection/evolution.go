package reflection

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradeagents/internal/models"
	"tradeagents/internal/repository"
)

const (
	EvolutionStrategy = "strategy"
	operationAdjust   = "parameter_adjustment"
)

var improvementStep = decimal.NewFromFloat(0.05)

// Fitness scores a strategy on [0, 1] from its recorded performance.
func Fitness(s models.Strategy) decimal.Decimal {
	score := decimal.Zero
	if s.TotalReturn.IsPositive() {
		score = score.Add(decimal.NewFromFloat(0.3))
	}
	if s.SharpeRatio.GreaterThan(decimal.NewFromInt(1)) {
		score = score.Add(decimal.NewFromFloat(0.3))
	}
	if s.WinRate.GreaterThan(decimal.NewFromInt(50)) {
		score = score.Add(decimal.NewFromFloat(0.2))
	}
	if s.MaxDrawdown.LessThan(decimal.NewFromFloat(0.2)) {
		score = score.Add(decimal.NewFromFloat(0.2))
	}
	return score
}

// Mutate scales every numeric parameter by a uniform factor in [1-rate, 1+rate].
// draw returns values in [0, 1). Non-numeric parameters are copied unchanged.
func Mutate(params map[string]any, rate float64, draw func() float64) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		switch n := v.(type) {
		case float64:
			out[k] = n * (1 + (draw()*2-1)*rate)
		case int:
			out[k] = float64(n) * (1 + (draw()*2-1)*rate)
		case int64:
			out[k] = float64(n) * (1 + (draw()*2-1)*rate)
		default:
			out[k] = v
		}
	}
	return out
}

// Evolve mutates the weakest active strategies and writes an EvolutionReport.
// It returns (nil, nil) when there are no active strategies.
func (a *Agent) Evolve(ctx context.Context) (*models.EvolutionReport, error) {
	active, asc := true, true
	strategies, err := a.Repo.ListStrategies(ctx, repository.ListStrategiesParams{Active: &active, Asc: &asc, Limit: 500})
	if err != nil {
		return nil, fmt.Errorf("load strategies: %w", err)
	}
	if len(strategies) == 0 {
		return nil, nil
	}

	threshold := decimal.NewFromFloat(a.fitnessToEvolve())
	sumReturn := decimal.Zero
	ops := []models.EvolutionOperation{}
	evolved := []string{}
	for i := range strategies {
		s := &strategies[i]
		sumReturn = sumReturn.Add(s.TotalReturn)
		fitness := Fitness(*s)
		if !fitness.LessThan(threshold) || len(evolved) >= a.maxEvolutions() {
			continue
		}
		op, err := a.evolveOne(ctx, s, fitness)
		if err != nil {
			a.log().Error("strategy evolution failed", zap.String("strategy_id", s.StrategyID), zap.Error(err))
			a.Heartbeat.Fail(ctx, models.AgentReflection, err)
			continue
		}
		ops = append(ops, op)
		evolved = append(evolved, s.StrategyID)
	}

	improvement := decimal.Zero
	if len(evolved) > 0 {
		improvement = improvementStep
	}
	report := &models.EvolutionReport{
		EvolutionType: EvolutionStrategy,
		TriggerReason: "performance_review",
		BeforeState: models.EncodeJSON(map[string]any{
			"strategy_count": len(strategies),
			"avg_return":     sumReturn.Div(decimal.NewFromInt(int64(len(strategies)))).InexactFloat64(),
		}),
		AfterState: models.EncodeJSON(map[string]any{
			"evolved_count": len(evolved),
			"evolved":       evolved,
		}),
		EvolutionOperations:    models.EncodeJSON(ops),
		PerformanceImprovement: improvement,
		KeyLearnings:           models.EncodeJSON([]string{"strategies need to adapt to market changes", "parameter tuning under review"}),
		NextSteps:              models.EncodeJSON([]string{"monitor evolved strategies", "prepare the next evolution round"}),
	}
	if err := a.Repo.InsertEvolutionReport(ctx, report); err != nil {
		return nil, fmt.Errorf("insert evolution report: %w", err)
	}
	a.log().Info("strategy evolution done", zap.Int("strategies", len(strategies)), zap.Strings("evolved", evolved))
	return report, nil
}

func (a *Agent) evolveOne(ctx context.Context, s *models.Strategy, fitness decimal.Decimal) (models.EvolutionOperation, error) {
	old, err := models.DecodeJSON[map[string]any](s.Parameters)
	if err != nil {
		return models.EvolutionOperation{}, fmt.Errorf("decode parameters: %w", err)
	}
	if old == nil {
		old = map[string]any{}
	}
	rate := a.mutationRate()
	next := Mutate(old, rate, a.draw())

	err = a.Repo.InTx(ctx, func(tx repository.Repository) error {
		entry := &models.StrategyEvolutionLog{
			StrategyID:     s.StrategyID,
			EvolutionType:  "mutation",
			Operation:      operationAdjust,
			ParentGenes:    models.EncodeJSON(map[string]any{"parameters": old, "type": s.StrategyType}),
			ChildGenes:     models.EncodeJSON(map[string]any{"parameters": next, "type": s.StrategyType}),
			MutationParams: models.EncodeJSON(map[string]any{"rate": rate}),
			FitnessBefore:  fitness,
			Reason:         "performance_optimization",
		}
		if err := tx.InsertStrategyEvolutionLog(ctx, entry); err != nil {
			return fmt.Errorf("insert evolution log: %w", err)
		}
		s.Parameters = models.EncodeJSON(next)
		s.Generation++
		return tx.SaveStrategy(ctx, s)
	})
	if err != nil {
		return models.EvolutionOperation{}, err
	}
	return models.EvolutionOperation{Type: operationAdjust, StrategyID: s.StrategyID, Old: old, New: next}, nil
}
