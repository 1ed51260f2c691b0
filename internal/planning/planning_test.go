package planning

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradeagents/internal/llm"
	"tradeagents/internal/models"
	"tradeagents/internal/repository/memrepo"
)

type fakeLLM struct {
	reply string
	err   error
	calls []llm.Request
}

func (f *fakeLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.calls = append(f.calls, req)
	return f.reply, f.err
}

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func decp(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

func TestTrendAndSuitability(t *testing.T) {
	cases := []struct {
		fg   *decimal.Decimal
		want string
	}{
		{nil, TrendNeutral},
		{decp(61), TrendBullish},
		{decp(60), TrendNeutral},
		{decp(40), TrendNeutral},
		{decp(39), TrendBearish},
	}
	for _, tc := range cases {
		if got := TrendFromFearGreed(tc.fg); got != tc.want {
			t.Fatalf("fg=%v trend=%s want %s", tc.fg, got, tc.want)
		}
	}
	if !Suitable(TrendBullish, "momentum") || Suitable(TrendBullish, "defensive") {
		t.Fatalf("bullish suitability")
	}
	if !Suitable(TrendNeutral, "market_neutral") || Suitable(TrendBearish, "arbitrage") {
		t.Fatalf("neutral/bearish suitability")
	}
	types := StrategyTypes()
	if len(types) != 6 || types[0] != "trend_following" || types[5] != "market_neutral" {
		t.Fatalf("unexpected strategy types %v", types)
	}
}

func TestPlanEndAndAdjustment(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	want := map[string]time.Duration{
		"intraday": 6 * time.Hour,
		"daily":    24 * time.Hour,
		"weekly":   7 * 24 * time.Hour,
		"monthly":  30 * 24 * time.Hour,
		"other":    24 * time.Hour,
	}
	for h, d := range want {
		if got := PlanEnd(start, h).Sub(start); got != d {
			t.Fatalf("%s: %s want %s", h, got, d)
		}
	}
	if !NeedsAdjustment(dec(-0.03), dec(0.05)) {
		t.Fatalf("-3%% vs 5%% expected should need adjustment")
	}
	if NeedsAdjustment(dec(-0.02), dec(0.05)) {
		t.Fatalf("-2%% vs 5%% expected should not need adjustment")
	}
}

func newRepo(now time.Time) *memrepo.Store {
	repo := memrepo.New()
	repo.Portfolios = append(repo.Portfolios, models.Portfolio{
		ID: 1, AccountName: "simulation_main", IsActive: true,
		TotalAsset: dec(1000000), Cash: dec(1000000), AvailableCash: dec(1000000),
	})
	repo.Sentiments = append(repo.Sentiments, models.MarketSentiment{Timestamp: now.Add(-time.Hour), FearGreedIndex: decp(70)})
	for i, sym := range []string{"AAA", "BBB", "CCC", "DDD", "EEE", "LOW"} {
		conf := 0.9 - float64(i)*0.05
		if sym == "LOW" {
			conf = 0.5
		}
		repo.Opportunities = append(repo.Opportunities, models.MarketOpportunity{
			ID: uint64(i + 1), Symbol: sym, OpportunityType: "breakout", Status: models.OpportunityIdentified,
			IdentifiedAt: now.Add(-time.Hour), ConfidenceScore: dec(conf),
		})
	}
	repo.Strategies = append(repo.Strategies,
		models.Strategy{ID: 1, StrategyID: "mom-1", Name: "Momentum", StrategyType: "momentum", IsActive: true, SharpeRatio: dec(1.5), TotalReturn: dec(0.1), Parameters: []byte(`{"lookback":20}`)},
		models.Strategy{ID: 2, StrategyID: "mr-1", Name: "Mean reversion", StrategyType: "mean_reversion", IsActive: true, SharpeRatio: dec(2), TotalReturn: dec(0.1), Parameters: []byte(`{}`)},
		models.Strategy{ID: 3, StrategyID: "mom-neg", Name: "Losing momentum", StrategyType: "momentum", IsActive: true, SharpeRatio: dec(3), TotalReturn: dec(-0.1), Parameters: []byte(`{}`)},
	)
	return repo
}

func TestRunOnceCreatesOnePlan(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	repo := newRepo(now)
	fake := &fakeLLM{reply: `{"allocation":{"AAA":0.05},"entry_conditions":["breakout"],"expected_return":0.08,"confidence":0.7}`}
	a := &Agent{Repo: repo, LLM: fake, now: func() time.Time { return now }}

	summary, err := a.RunOnce(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(repo.Plans) != 1 {
		t.Fatalf("plans=%d want 1", len(repo.Plans))
	}
	plan := repo.Plans[0]
	if plan.Status != models.PlanActive || plan.Priority != "high" || plan.PlanType != "daily" {
		t.Fatalf("plan status=%s priority=%s type=%s", plan.Status, plan.Priority, plan.PlanType)
	}
	if plan.PlanEnd == nil || !plan.PlanEnd.Equal(now.Add(24*time.Hour)) {
		t.Fatalf("plan_end=%v", plan.PlanEnd)
	}
	targets, _ := models.DecodeJSON[[]string](plan.TargetSymbols)
	if len(targets) != 5 || targets[0] != "AAA" {
		t.Fatalf("targets=%v", targets)
	}
	strategies, _ := models.DecodeJSON[[]models.PlanStrategy](plan.Strategies)
	if len(strategies) != 1 || strategies[0].ID != "mom-1" {
		t.Fatalf("strategies=%+v", strategies)
	}
	if !plan.ExpectedReturn.Equal(dec(0.08)) || !plan.ConfidenceScore.Equal(dec(0.7)) {
		t.Fatalf("expected=%s confidence=%s", plan.ExpectedReturn, plan.ConfidenceScore)
	}
	exits, _ := models.DecodeJSON[[]string](plan.ExitConditions)
	if len(exits) != 3 {
		t.Fatalf("exit conditions should keep the fallback: %v", exits)
	}
	limits, _ := models.DecodeJSON[models.RiskLimits](plan.RiskLimits)
	if limits.MaxSectorExposure != 0.30 || limits.MaxDailyLoss != 0.03 {
		t.Fatalf("risk limits=%+v", limits)
	}
	if summary["plans_monitored"] != 1 || summary.Degraded() != 0 {
		t.Fatalf("summary=%v", summary)
	}
	if fake.calls[0].Tier != llm.TierFast || fake.calls[0].Temperature != 0.3 {
		t.Fatalf("request=%+v", fake.calls[0])
	}

	if _, err := a.RunOnce(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(repo.Plans) != 1 {
		t.Fatalf("second cycle created another plan: %d", len(repo.Plans))
	}
}

func TestRunOnceKeepsAdjustingPlanLive(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	repo := newRepo(now)
	end := now.Add(12 * time.Hour)
	repo.Plans = append(repo.Plans, models.TradingPlan{
		ID: 50, PlanType: "daily", PlanDate: now, Status: models.PlanAdjusting,
		PlanStart: now.Add(-12 * time.Hour), PlanEnd: &end,
	})
	fake := &fakeLLM{reply: `{"expected_return":0.05,"confidence":0.6}`}
	a := &Agent{Repo: repo, LLM: fake, now: func() time.Time { return now }}

	summary, err := a.RunOnce(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(repo.Plans) != 1 || summary["plan_created"] != nil {
		t.Fatalf("adjusting plan should block a new one: plans=%d summary=%v", len(repo.Plans), summary)
	}
	if summary["live_plans"] != int64(1) {
		t.Fatalf("summary=%v", summary)
	}
}

func TestRunOnceFallbackPlan(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	repo := newRepo(now)
	a := &Agent{Repo: repo, LLM: &fakeLLM{err: errors.New("rate limited")}, now: func() time.Time { return now }}

	summary, err := a.RunOnce(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	plan := repo.Plans[0]
	if !plan.ExpectedReturn.Equal(dec(0.05)) || !plan.ConfidenceScore.Equal(dec(0.5)) {
		t.Fatalf("fallback expected=%s confidence=%s", plan.ExpectedReturn, plan.ConfidenceScore)
	}
	mc, _ := models.DecodeJSON[models.MarketContext](plan.MarketConditions)
	if !mc.Degraded || mc.Trend != TrendBullish {
		t.Fatalf("market conditions=%+v", mc)
	}
	if summary.Degraded() != 1 {
		t.Fatalf("summary=%v", summary)
	}
}

func TestRunOnceWithoutPortfolio(t *testing.T) {
	repo := memrepo.New()
	a := &Agent{Repo: repo}
	summary, err := a.RunOnce(context.Background())
	if err != nil || summary["skipped"] != "no_portfolio" || len(repo.Plans) != 0 {
		t.Fatalf("summary=%v err=%v", summary, err)
	}
}

func TestMonitorCompletionReturnAndStatus(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	now := start.Add(2 * time.Hour)
	repo := memrepo.New()
	end := start.Add(24 * time.Hour)
	expected := dec(0.05)
	repo.Plans = append(repo.Plans,
		models.TradingPlan{ID: 1, Status: models.PlanActive, PlanStart: start, PlanEnd: &end, ExpectedReturn: &expected,
			TargetSymbols: models.EncodeJSON([]string{"AAA", "BBB"})},
		models.TradingPlan{ID: 2, Status: models.PlanActive, PlanStart: start.Add(-48 * time.Hour), PlanEnd: &start,
			TargetSymbols: models.EncodeJSON([]string{})},
	)
	repo.Decisions = append(repo.Decisions, models.DecisionRecord{ID: 1, Symbol: "AAA", IsExecuted: true, DecisionTime: start.Add(time.Hour)})
	repo.Positions = append(repo.Positions, models.Position{
		ID: 1, Symbol: "AAA", AccountName: "simulation_main", Quantity: 100, TotalCost: dec(10000),
		UnrealizedPnL: decp(-400), OpenedAt: start.Add(time.Hour),
	})
	a := &Agent{Repo: repo, now: func() time.Time { return now }}

	reports, err := a.MonitorPlans(ctx)
	if err != nil {
		t.Fatalf("monitor: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("reports=%d", len(reports))
	}
	byID := map[uint64]PlanReport{}
	for _, r := range reports {
		byID[r.PlanID] = r
	}
	live := byID[1]
	if !live.CompletionRate.Equal(dec(50)) || !live.ActualReturn.Equal(dec(-0.04)) {
		t.Fatalf("completion=%s actual=%s", live.CompletionRate, live.ActualReturn)
	}
	if live.Status != models.PlanAdjusting || !live.NeedsAdjust {
		t.Fatalf("status=%s", live.Status)
	}
	if byID[2].Status != models.PlanCompleted {
		t.Fatalf("expired plan status=%s", byID[2].Status)
	}
}
