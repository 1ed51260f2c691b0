package planning

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradeagents/internal/agent"
	"tradeagents/internal/llm"
	"tradeagents/internal/models"
	"tradeagents/internal/repository"
	"tradeagents/internal/telemetry"
)

const (
	opportunityWindow   = 24 * time.Hour
	maxOpportunities    = 20
	maxStrategies       = 5
	maxTargets          = 10
	highPriorityOppsMin = 5
	defaultPortfolio    = "simulation_main"
	defaultHorizon      = "daily"
)

var minOpportunityConfidence = decimal.NewFromFloat(0.6)

var planRiskLimits = models.RiskLimits{
	MaxPositionPerSymbol: 0.05,
	MaxSectorExposure:    0.30,
	MaxDailyLoss:         0.03,
	StopLossPct:          0.05,
}

type Agent struct {
	Repo    repository.Repository
	LLM     llm.Client
	Metrics *telemetry.Metrics
	Logger  *zap.Logger

	Portfolio string
	// Horizon is intraday, daily, weekly or monthly.
	Horizon string

	now func() time.Time
}

// Draft is the LLM's plan body. Missing fields keep the fallback values.
type Draft struct {
	Allocation      map[string]float64 `json:"allocation"`
	EntryConditions []string           `json:"entry_conditions"`
	ExitConditions  []string           `json:"exit_conditions"`
	ActionSteps     []string           `json:"action_steps"`
	ExpectedReturn  float64            `json:"expected_return"`
	Confidence      float64            `json:"confidence"`
}

func fallbackDraft() Draft {
	return Draft{
		Allocation:      map[string]float64{},
		EntryConditions: []string{"Price breaks a key resistance level", "Volume expands"},
		ExitConditions:  []string{"Stop-loss hit", "Take-profit hit", "Strategy signal reverses"},
		ActionSteps:     []string{"Watch targets", "Wait for entry signal", "Build position in tranches", "Adjust dynamically"},
		ExpectedReturn:  0.05,
		Confidence:      0.5,
	}
}

// PlanReport is the monitoring result for one plan.
type PlanReport struct {
	PlanID         uint64            `json:"plan_id"`
	Status         models.PlanStatus `json:"status"`
	CompletionRate decimal.Decimal   `json:"completion_rate"`
	ActualReturn   decimal.Decimal   `json:"actual_return"`
	Positions      int               `json:"positions"`
	NeedsAdjust    bool              `json:"needs_adjustment"`
}

func (a *Agent) Name() models.AgentType { return models.AgentPlanning }

func (a *Agent) RunOnce(ctx context.Context) (agent.Summary, error) {
	now := a.clock()
	mctx, err := a.MarketContext(ctx)
	if err != nil {
		return nil, err
	}

	portfolio, err := a.Repo.GetPortfolioByName(ctx, a.portfolioName())
	if err != nil {
		return nil, fmt.Errorf("load portfolio: %w", err)
	}
	if portfolio == nil || !portfolio.IsActive {
		a.log().Warn("no active portfolio", zap.String("portfolio", a.portfolioName()))
		return agent.Summary{"skipped": "no_portfolio"}, nil
	}

	// An adjusting plan is still live until it ends.
	live, err := a.Repo.CountTradingPlans(ctx, repository.ListTradingPlansParams{
		Statuses: []models.PlanStatus{models.PlanActive, models.PlanAdjusting},
		EndAfter: &now,
	})
	if err != nil {
		return nil, fmt.Errorf("count live plans: %w", err)
	}

	summary := agent.Summary{"live_plans": live}
	degraded := 0
	if live < 1 {
		plan, err := a.CreatePlan(ctx, mctx, portfolio, a.horizon())
		if err != nil {
			return nil, err
		}
		summary["plan_created"] = plan.ID
		mc, _ := models.DecodeJSON[models.MarketContext](plan.MarketConditions)
		if mc.Degraded {
			degraded++
		}
	}

	reports, err := a.MonitorPlans(ctx)
	if err != nil {
		return nil, err
	}
	summary["plans_monitored"] = len(reports)
	summary[agent.SummaryDegraded] = degraded
	return summary, nil
}

// MarketContext derives the coarse trend from the latest sentiment row of the last day.
func (a *Agent) MarketContext(ctx context.Context) (models.MarketContext, error) {
	now := a.clock()
	out := models.MarketContext{
		SchemaVersion: models.PayloadSchemaVersion,
		Timestamp:     now,
		Trend:         TrendNeutral,
		Volatility:    "medium",
		Sentiment:     "neutral",
	}
	s, err := a.Repo.GetLatestSentiment(ctx)
	if err != nil {
		return out, fmt.Errorf("load sentiment: %w", err)
	}
	if s == nil || s.Timestamp.Before(now.Add(-24*time.Hour)) {
		return out, nil
	}
	if s.Sentiment != "" {
		out.Sentiment = s.Sentiment
	}
	out.Trend = TrendFromFearGreed(s.FearGreedIndex)
	if s.FearGreedIndex != nil {
		v := s.FearGreedIndex.InexactFloat64()
		out.FearGreedIndex = &v
	}
	return out, nil
}

// CreatePlan drafts and persists an active plan.
func (a *Agent) CreatePlan(ctx context.Context, mctx models.MarketContext, portfolio *models.Portfolio, horizon string) (*models.TradingPlan, error) {
	now := a.clock()
	since := now.Add(-opportunityWindow)
	opps, err := a.Repo.ListOpportunities(ctx, repository.ListOpportunitiesParams{
		Since:         &since,
		MinConfidence: &minOpportunityConfidence,
		OrderBy:       "confidence_score",
		Limit:         maxOpportunities,
	})
	if err != nil {
		return nil, fmt.Errorf("load opportunities: %w", err)
	}
	strategies, err := a.selectStrategies(ctx, mctx.Trend)
	if err != nil {
		return nil, err
	}
	open := true
	openPositions, err := a.Repo.CountPositions(ctx, repository.ListPositionsParams{AccountName: &portfolio.AccountName, Open: &open})
	if err != nil {
		return nil, fmt.Errorf("count positions: %w", err)
	}

	draft := a.draft(ctx, mctx, opps, strategies, portfolio, openPositions, horizon)
	if draft.Degraded {
		mctx.Degraded = true
	}

	targets := make([]string, 0, maxTargets)
	for i, o := range opps {
		if i >= maxTargets {
			break
		}
		targets = append(targets, o.Symbol)
	}
	priority := "medium"
	if len(opps) >= highPriorityOppsMin {
		priority = "high"
	}
	expected := decimal.NewFromFloat(draft.Value.ExpectedReturn)
	end := PlanEnd(now, horizon)

	plan := &models.TradingPlan{
		PlanType:           horizon,
		PlanDate:           now.Truncate(24 * time.Hour),
		Status:             models.PlanDraft,
		Priority:           priority,
		AgentType:          models.AgentPlanning,
		MarketConditions:   models.EncodeJSON(mctx),
		TargetSymbols:      models.EncodeJSON(targets),
		TargetSectors:      models.EncodeJSON([]string{}),
		PositionAllocation: models.EncodeJSON(draft.Value.Allocation),
		Strategies:         models.EncodeJSON(strategies),
		EntryConditions:    models.EncodeJSON(draft.Value.EntryConditions),
		ExitConditions:     models.EncodeJSON(draft.Value.ExitConditions),
		RiskLimits:         models.EncodeJSON(planRiskLimits),
		ActionSteps:        models.EncodeJSON(draft.Value.ActionSteps),
		ExpectedReturn:     &expected,
		ConfidenceScore:    decimal.NewFromFloat(draft.Value.Confidence),
		PlanStart:          now,
		PlanEnd:            &end,
	}
	if err := models.TransitionPlan(plan, models.PlanActive); err != nil {
		return nil, err
	}
	if err := a.Repo.InsertTradingPlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("insert plan: %w", err)
	}
	a.log().Info("trading plan created",
		zap.Uint64("plan_id", plan.ID),
		zap.String("horizon", horizon),
		zap.Int("targets", len(targets)),
		zap.Bool("degraded", draft.Degraded),
	)
	return plan, nil
}

func (a *Agent) selectStrategies(ctx context.Context, trend string) ([]models.PlanStrategy, error) {
	active := true
	minReturn := decimal.Zero
	rows, err := a.Repo.ListStrategies(ctx, repository.ListStrategiesParams{
		Active:         &active,
		MinTotalReturn: &minReturn,
		OrderBy:        "sharpe_ratio",
		Limit:          maxStrategies,
	})
	if err != nil {
		return nil, fmt.Errorf("load strategies: %w", err)
	}
	out := []models.PlanStrategy{}
	for _, s := range rows {
		if !Suitable(trend, s.StrategyType) {
			continue
		}
		params, _ := models.DecodeJSON[map[string]any](s.Parameters)
		out = append(out, models.PlanStrategy{
			ID:         s.StrategyID,
			Name:       s.Name,
			Type:       s.StrategyType,
			Parameters: params,
			Return:     s.TotalReturn.InexactFloat64(),
			Sharpe:     s.SharpeRatio.InexactFloat64(),
			WinRate:    s.WinRate.InexactFloat64(),
		})
	}
	return out, nil
}

func (a *Agent) draft(ctx context.Context, mctx models.MarketContext, opps []models.MarketOpportunity, strategies []models.PlanStrategy, portfolio *models.Portfolio, openPositions int64, horizon string) llm.Outcome[Draft] {
	type oppView struct {
		Symbol     string  `json:"symbol"`
		Type       string  `json:"type"`
		Confidence float64 `json:"confidence"`
		Reason     string  `json:"reason"`
	}
	views := []oppView{}
	for i, o := range opps {
		if i >= 5 {
			break
		}
		views = append(views, oppView{
			Symbol:     o.Symbol,
			Type:       o.OpportunityType,
			Confidence: o.ConfidenceScore.InexactFloat64(),
			Reason:     o.Rationale,
		})
	}
	status := map[string]any{
		"total_asset": portfolio.TotalAsset.InexactFloat64(),
		"cash":        portfolio.Cash.InexactFloat64(),
		"positions":   openPositions,
	}

	res := llm.Structured(ctx, a.LLM, llm.Request{
		Tier:        llm.TierFast,
		Temperature: 0.3,
		System: `You are a trading planner. From the market context, opportunities and strategies, write a trading plan.
Return JSON with:
allocation: {symbol: fraction}
entry_conditions: [string]
exit_conditions: [string]
action_steps: [string]
expected_return: number
confidence: 0-1`,
		User: fmt.Sprintf("Horizon: %s\n\nMarket context:\n%s\n\nOpportunities:\n%s\n\nStrategies:\n%s\n\nPortfolio:\n%s\n\nWrite a %s trading plan.",
			horizon, pretty(mctx), pretty(views), pretty(strategies), pretty(status), horizon),
	}, fallbackDraft())
	if res.Degraded {
		agent.NoteDegraded(ctx, a.log(), a.Metrics, models.AgentPlanning, "plan_draft", res.Err)
	}
	if res.Value.Allocation == nil {
		res.Value.Allocation = map[string]float64{}
	}
	return res
}

// MonitorPlans refreshes completion and return for every active or adjusting plan.
func (a *Agent) MonitorPlans(ctx context.Context) ([]PlanReport, error) {
	plans, err := a.Repo.ListTradingPlans(ctx, repository.ListTradingPlansParams{
		Statuses: []models.PlanStatus{models.PlanActive, models.PlanAdjusting},
		Limit:    100,
	})
	if err != nil {
		return nil, fmt.Errorf("load plans: %w", err)
	}
	var out []PlanReport
	for i := range plans {
		report, err := a.monitor(ctx, &plans[i])
		if err != nil {
			return out, err
		}
		out = append(out, report)
	}
	return out, nil
}

func (a *Agent) monitor(ctx context.Context, plan *models.TradingPlan) (PlanReport, error) {
	now := a.clock()
	targets, _ := models.DecodeJSON[[]string](plan.TargetSymbols)

	completion := decimal.Zero
	actual := decimal.Zero
	positions := 0
	if len(targets) > 0 {
		executed := true
		since := plan.PlanStart
		n, err := a.Repo.CountDecisions(ctx, repository.ListDecisionsParams{Symbols: targets, Executed: &executed, Since: &since})
		if err != nil {
			return PlanReport{}, fmt.Errorf("count decisions: %w", err)
		}
		completion = decimal.NewFromInt(n).Div(decimal.NewFromInt(int64(len(targets)))).Mul(decimal.NewFromInt(100))

		open := true
		rows, err := a.Repo.ListPositions(ctx, repository.ListPositionsParams{Symbols: targets, Open: &open, OpenedSince: &since, Limit: 500})
		if err != nil {
			return PlanReport{}, fmt.Errorf("load positions: %w", err)
		}
		pnl, invested := decimal.Zero, decimal.Zero
		for _, p := range rows {
			if p.UnrealizedPnL != nil {
				pnl = pnl.Add(*p.UnrealizedPnL)
			}
			invested = invested.Add(p.TotalCost)
		}
		if invested.IsPositive() {
			actual = pnl.Div(invested)
		}
		positions = len(rows)
	}

	expected := decimal.NewFromFloat(0.05)
	if plan.ExpectedReturn != nil {
		expected = *plan.ExpectedReturn
	}
	needsAdjust := NeedsAdjustment(actual, expected)

	plan.ActualReturn = &actual
	plan.CompletionRate = &completion
	switch {
	case plan.PlanEnd != nil && now.After(*plan.PlanEnd):
		if err := models.TransitionPlan(plan, models.PlanCompleted); err != nil {
			return PlanReport{}, err
		}
	case needsAdjust && plan.Status == models.PlanActive:
		if err := models.TransitionPlan(plan, models.PlanAdjusting); err != nil {
			return PlanReport{}, err
		}
	}
	if err := a.Repo.UpdateTradingPlan(ctx, plan); err != nil {
		return PlanReport{}, fmt.Errorf("update plan %d: %w", plan.ID, err)
	}
	return PlanReport{
		PlanID:         plan.ID,
		Status:         plan.Status,
		CompletionRate: completion,
		ActualReturn:   actual,
		Positions:      positions,
		NeedsAdjust:    needsAdjust,
	}, nil
}

func (a *Agent) portfolioName() string {
	if a.Portfolio == "" {
		return defaultPortfolio
	}
	return a.Portfolio
}

func (a *Agent) horizon() string {
	if a.Horizon == "" {
		return defaultHorizon
	}
	return a.Horizon
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

func pretty(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}
