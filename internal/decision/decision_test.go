package decision

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradeagents/internal/agent"
	"tradeagents/internal/llm"
	"tradeagents/internal/models"
	"tradeagents/internal/repository"
	"tradeagents/internal/repository/memrepo"
)

// scriptedLLM answers each debater by matching its system prompt.
type scriptedLLM struct {
	replies map[string]string
	err     error
	calls   []llm.Request
}

func (f *scriptedLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return "", f.err
	}
	for key, reply := range f.replies {
		if strings.Contains(req.System, key) {
			return reply, nil
		}
	}
	return "", errors.New("unexpected prompt")
}

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func seedOpportunity(repo *memrepo.Store, id uint64, symbol string, status models.OpportunityStatus, at time.Time) {
	repo.Opportunities = append(repo.Opportunities, models.MarketOpportunity{
		ID: id, Symbol: symbol, OpportunityType: "breakout", Status: status,
		IdentifiedAt: at, ConfidenceScore: dec(0.7),
	})
}

func seedBars(repo *memrepo.Store, symbol string, start time.Time, closes ...float64) {
	for i, c := range closes {
		repo.MarketData = append(repo.MarketData, models.MarketData{
			Symbol: symbol, Market: "US", Timestamp: start.Add(time.Duration(i) * time.Minute),
			Open: dec(c), High: dec(c), Low: dec(c), Close: dec(c), Volume: 1000,
		})
	}
}

func TestConfidenceBucket(t *testing.T) {
	cases := map[float64]models.ConfidenceLevel{
		95: models.ConfidenceVeryHigh,
		80: models.ConfidenceVeryHigh,
		75: models.ConfidenceHigh,
		60: models.ConfidenceHigh,
		40: models.ConfidenceMedium,
		20: models.ConfidenceLow,
		0:  models.ConfidenceVeryLow,
	}
	for score, want := range cases {
		if got := ConfidenceBucket(dec(score)); got != want {
			t.Fatalf("score %v: %s want %s", score, got, want)
		}
	}
}

func TestStopLevels(t *testing.T) {
	sl, tp := StopLevels(models.DecisionBuy, dec(100), dec(3), dec(8))
	if !sl.Equal(dec(97)) || !tp.Equal(dec(108)) {
		t.Fatalf("buy sl=%s tp=%s", sl, tp)
	}
	sl, tp = StopLevels(models.DecisionSell, dec(100), dec(3), dec(8))
	if !sl.Equal(dec(103)) || !tp.Equal(dec(92)) {
		t.Fatalf("sell sl=%s tp=%s", sl, tp)
	}
	if sl, tp = StopLevels(models.DecisionHold, dec(100), dec(3), dec(8)); sl != nil || tp != nil {
		t.Fatalf("hold should have no levels")
	}
}

func TestWinStats(t *testing.T) {
	win, avg, n := WinStats([]decimal.Decimal{dec(110), dec(100), dec(100)})
	if n != 2 || win != 50 || math.Abs(avg-5) > 1e-9 {
		t.Fatalf("win=%v avg=%v n=%d", win, avg, n)
	}
	if _, _, n := WinStats([]decimal.Decimal{dec(1)}); n != 0 {
		t.Fatalf("single bar should yield no samples")
	}
}

func TestMakeDecisionBuy(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	repo := memrepo.New()
	seedOpportunity(repo, 1, "AAPL", models.OpportunityIdentified, now.Add(-time.Hour))
	seedBars(repo, "AAPL", now.Add(-time.Hour), 100)

	fake := &scriptedLLM{replies: map[string]string{
		"aggressive":   `{"recommendation":"buy","confidence":80,"expected_return":6,"position_pct":5,"rationale":"clean breakout"}`,
		"conservative": `{"agreement":true,"risk_score":4,"concerns":["thin volume"],"alternative":"smaller size","adjusted_position":3}`,
		"judge":        `{"final_decision":"buy","action_type":"open","position_pct":3,"confidence":75,"reasoning":"breakout with acceptable risk","stop_loss_pct":3,"take_profit_pct":8}`,
	}}
	a := &Agent{Repo: repo, LLM: fake, now: func() time.Time { return now }}

	summary, err := a.RunOnce(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary["decisions"] != 1 || summary.Degraded() != 0 {
		t.Fatalf("summary=%v", summary)
	}
	if len(repo.Decisions) != 1 {
		t.Fatalf("decisions=%d", len(repo.Decisions))
	}
	rec := repo.Decisions[0]
	if rec.DecisionType != models.DecisionBuy || rec.ConfidenceLevel != models.ConfidenceHigh {
		t.Fatalf("type=%s level=%s", rec.DecisionType, rec.ConfidenceLevel)
	}
	if !rec.StopLoss.Equal(dec(97)) || !rec.TakeProfit.Equal(dec(108)) {
		t.Fatalf("sl=%s tp=%s", rec.StopLoss, rec.TakeProfit)
	}
	if !rec.TargetPositionPct.Equal(dec(0.03)) || !rec.TargetPrice.Equal(dec(100)) {
		t.Fatalf("pct=%s price=%s", rec.TargetPositionPct, rec.TargetPrice)
	}
	if lines := strings.Split(rec.DebateSummary, "\n"); len(lines) != 4 || !strings.HasPrefix(lines[3], "Final:") {
		t.Fatalf("debate summary=%q", rec.DebateSummary)
	}
	if rec.ConservativeView != "thin volume" {
		t.Fatalf("conservative view=%q", rec.ConservativeView)
	}
	quant, _ := models.DecodeJSON[models.QuantAnalysis](rec.QuantAnalysis)
	if quant.Validation != "insufficient_data" {
		t.Fatalf("one bar should be insufficient: %+v", quant)
	}
	// no quant call with a single bar
	if len(fake.calls) != 3 {
		t.Fatalf("llm calls=%d want 3", len(fake.calls))
	}

	opp := repo.Opportunities[0]
	if opp.Status != models.OpportunityValidated || opp.DecisionID == nil || *opp.DecisionID != rec.ID {
		t.Fatalf("opportunity status=%s decision=%v", opp.Status, opp.DecisionID)
	}
	if rec.OpportunityID == nil || *rec.OpportunityID != opp.ID {
		t.Fatalf("decision should point at its opportunity")
	}
}

func TestQuantStatsIgnoreModelClaims(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	repo := memrepo.New()
	seedOpportunity(repo, 1, "MSFT", models.OpportunityAnalyzing, now.Add(-time.Hour))
	// 25 bars alternating 100/102, oldest first; only the newest 20 are used.
	closes := make([]float64, 25)
	for i := range closes {
		closes[i] = 100 + float64(i%2)*2
	}
	seedBars(repo, "MSFT", now.Add(-2*time.Hour), closes...)

	fake := &scriptedLLM{replies: map[string]string{
		"aggressive":   `{"recommendation":"buy","confidence":60}`,
		"conservative": `{"agreement":false,"risk_score":6,"concerns":[]}`,
		"quant":        `{"validation":"positive","win_rate":95,"avg_return":12,"risk_reward_ratio":2.5}`,
		"judge":        `{"final_decision":"hold","reasoning":"mixed"}`,
	}}
	a := &Agent{Repo: repo, LLM: fake, now: func() time.Time { return now }}

	rec, err := a.MakeDecision(ctx, &repo.Opportunities[0])
	if err != nil || rec == nil {
		t.Fatalf("decision=%v err=%v", rec, err)
	}
	quant, _ := models.DecodeJSON[models.QuantAnalysis](rec.QuantAnalysis)
	want := 9.0 / 19.0 * 100
	if quant.SampleSize != 19 || math.Abs(quant.WinRate-want) > 1e-6 {
		t.Fatalf("quant=%+v want win rate %v over 19 returns", quant, want)
	}
	if quant.Validation != "positive" || quant.RiskRewardRatio != 2.5 {
		t.Fatalf("narrative fields should come from the model: %+v", quant)
	}
	if rec.DecisionType != models.DecisionHold || rec.StopLoss != nil {
		t.Fatalf("hold decision type=%s sl=%v", rec.DecisionType, rec.StopLoss)
	}
	// judge defaults apply to omitted fields
	if !rec.ConfidenceScore.Equal(dec(50)) || rec.ConfidenceLevel != models.ConfidenceMedium {
		t.Fatalf("confidence=%s level=%s", rec.ConfidenceScore, rec.ConfidenceLevel)
	}
	if repo.Opportunities[0].Status != models.OpportunityInvalid {
		t.Fatalf("hold should invalidate the opportunity, got %s", repo.Opportunities[0].Status)
	}
}

func TestAllStepsDegraded(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	repo := memrepo.New()
	seedOpportunity(repo, 1, "TSLA", models.OpportunityIdentified, now.Add(-time.Hour))
	seedBars(repo, "TSLA", now.Add(-time.Hour), 100, 101)
	a := &Agent{Repo: repo, LLM: &scriptedLLM{err: errors.New("llm down")}, now: func() time.Time { return now }}

	summary, err := a.RunOnce(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Degraded() != 4 {
		t.Fatalf("degraded=%d want 4", summary.Degraded())
	}
	rec := repo.Decisions[0]
	steps, _ := models.DecodeJSON[[]string](rec.DegradedSteps)
	if len(steps) != 4 {
		t.Fatalf("degraded steps=%v", steps)
	}
	if rec.DecisionType != models.DecisionHold || !rec.ConfidenceScore.IsZero() || rec.ConfidenceLevel != models.ConfidenceVeryLow {
		t.Fatalf("fallback type=%s confidence=%s level=%s", rec.DecisionType, rec.ConfidenceScore, rec.ConfidenceLevel)
	}
	quant, _ := models.DecodeJSON[models.QuantAnalysis](rec.QuantAnalysis)
	if quant.Validation != "error" || !quant.Degraded || quant.WinRate != 100 {
		t.Fatalf("quant fallback=%+v", quant)
	}
	if repo.Opportunities[0].Status != models.OpportunityInvalid {
		t.Fatalf("status=%s", repo.Opportunities[0].Status)
	}
}

func TestMissingMarketDataWritesNothing(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	repo := memrepo.New()
	seedOpportunity(repo, 1, "NONE", models.OpportunityIdentified, now.Add(-time.Hour))
	fake := &scriptedLLM{}
	a := &Agent{Repo: repo, LLM: fake, now: func() time.Time { return now }}

	summary, err := a.RunOnce(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(repo.Decisions) != 0 || len(fake.calls) != 0 {
		t.Fatalf("decisions=%d calls=%d", len(repo.Decisions), len(fake.calls))
	}
	if summary["skipped"] != 1 || repo.Opportunities[0].Status != models.OpportunityIdentified {
		t.Fatalf("summary=%v status=%s", summary, repo.Opportunities[0].Status)
	}
}

func TestBatchTakesNewestLiveOpportunities(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	repo := memrepo.New()
	for i := 0; i < 7; i++ {
		seedOpportunity(repo, uint64(i+1), "SYM", models.OpportunityIdentified, now.Add(-time.Duration(i)*time.Minute))
	}
	seedOpportunity(repo, 8, "SYM", models.OpportunityValidated, now)
	seedBars(repo, "SYM", now.Add(-time.Hour), 100)
	a := &Agent{Repo: repo, LLM: &scriptedLLM{err: errors.New("down")}, now: func() time.Time { return now }}

	summary, err := a.RunOnce(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary["opportunities"] != 5 || len(repo.Decisions) != 5 {
		t.Fatalf("summary=%v decisions=%d", summary, len(repo.Decisions))
	}
	for _, o := range repo.Opportunities {
		if o.ID >= 6 && o.ID <= 7 && o.Status != models.OpportunityIdentified {
			t.Fatalf("oldest opportunities should wait, %d is %s", o.ID, o.Status)
		}
	}
}

type failingRepo struct {
	*memrepo.Store
}

func (f failingRepo) InTx(ctx context.Context, fn func(tx repository.Repository) error) error {
	return fn(f)
}

func (f failingRepo) InsertDecision(ctx context.Context, item *models.DecisionRecord) error {
	return errors.New("disk full")
}

func TestOuterFailureMarksAgentError(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	store := memrepo.New()
	seedOpportunity(store, 1, "BAD", models.OpportunityIdentified, now)
	seedBars(store, "BAD", now.Add(-time.Hour), 100)
	repo := failingRepo{store}
	a := &Agent{
		Repo:      repo,
		LLM:       &scriptedLLM{err: errors.New("down")},
		Heartbeat: &agent.Heartbeat{Repo: repo},
		now:       func() time.Time { return now },
	}

	summary, err := a.RunOnce(ctx)
	if err != nil {
		t.Fatalf("per-opportunity failures should not fail the cycle: %v", err)
	}
	if summary["skipped"] != 1 || summary["decisions"] != 0 {
		t.Fatalf("summary=%v", summary)
	}
	st, _ := store.GetAgentStatus(ctx, models.AgentDecision)
	if st == nil || st.Status != models.AgentError || st.ErrorCount != 1 {
		t.Fatalf("agent status=%+v", st)
	}
	if _, err := a.MakeDecision(ctx, &models.MarketOpportunity{ID: 9, Symbol: "BAD", Status: models.OpportunityExpired}); !errors.Is(err, models.ErrIllegalTransition) {
		t.Fatalf("expired opportunity should not be decided, err=%v", err)
	}
}
