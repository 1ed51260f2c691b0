package reflection

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradeagents/internal/agent"
	"tradeagents/internal/llm"
	"tradeagents/internal/memory"
	"tradeagents/internal/models"
	"tradeagents/internal/repository"
)

const (
	ReviewDaily        = "daily"
	PrincipleSource    = "daily_review"
	overTradingTrades  = 10
	maxCases           = 5
	reviewMemoryWeight = 8
)

var hundred = decimal.NewFromInt(100)

// TradeResult is one reviewed trade and the PnL attributed to it.
type TradeResult struct {
	Trade  *models.Trade
	PnL    decimal.Decimal
	PnLPct decimal.Decimal
}

// Stats is the numeric part of a review.
type Stats struct {
	Wins         int
	Losses       int
	WinRate      decimal.Decimal
	TotalPnL     decimal.Decimal
	AvgProfit    decimal.Decimal
	AvgLoss      decimal.Decimal
	ProfitFactor decimal.Decimal
}

type insights struct {
	KeyInsights         []string          `json:"key_insights"`
	Improvements        []string          `json:"improvements"`
	StrategyAdjustments map[string]string `json:"strategy_adjustments"`
	EmotionalState      string            `json:"emotional_state"`
	Confidence          float64           `json:"confidence"`
}

func fallbackInsights() insights {
	return insights{
		KeyInsights:         []string{"Needs manual analysis"},
		Improvements:        []string{"Keep monitoring"},
		StrategyAdjustments: map[string]string{},
		EmotionalState:      "neutral",
		Confidence:          0.5,
	}
}

const insightsSystem = `You are a professional trading review analyst.
Analyze today's trading performance and give concise insights and improvements.
Reply with one JSON object:
{"key_insights": ["..."], "improvements": ["..."], "strategy_adjustments": {"strategy type": "adjustment"},
 "emotional_state": "calm|excited|fearful|greedy|neutral", "confidence": 0.0-1.0}`

// Analyze buckets results by the sign of their PnL. Zero-PnL results are ignored.
func Analyze(results []TradeResult) Stats {
	var st Stats
	sumWins, sumLosses := decimal.Zero, decimal.Zero
	for _, r := range results {
		switch {
		case r.PnL.IsPositive():
			st.Wins++
			sumWins = sumWins.Add(r.PnL)
		case r.PnL.IsNegative():
			st.Losses++
			sumLosses = sumLosses.Add(r.PnL)
		}
	}
	st.TotalPnL = sumWins.Add(sumLosses)
	if n := st.Wins + st.Losses; n > 0 {
		st.WinRate = decimal.NewFromInt(int64(st.Wins)).Mul(hundred).Div(decimal.NewFromInt(int64(n))).Round(2)
	}
	if st.Wins > 0 {
		st.AvgProfit = sumWins.Div(decimal.NewFromInt(int64(st.Wins)))
	}
	if st.Losses > 0 {
		st.AvgLoss = sumLosses.Div(decimal.NewFromInt(int64(st.Losses)))
		st.ProfitFactor = sumWins.Div(sumLosses).Abs()
	}
	return st
}

// OverallRating scores a day on [0, 10] from win rate and profit factor.
func OverallRating(st Stats) decimal.Decimal {
	pf := st.ProfitFactor.Div(decimal.NewFromInt(2))
	if pf.GreaterThan(decimal.NewFromInt(1)) {
		pf = decimal.NewFromInt(1)
	}
	half := decimal.NewFromFloat(0.5)
	return st.WinRate.Div(hundred).Mul(half).Add(pf.Mul(half)).Mul(decimal.NewFromInt(10)).Round(2)
}

// Cases returns the top wins (largest first) and top losses (largest loss first).
func Cases(results []TradeResult) (success, failure []models.ReviewCase) {
	success, failure = []models.ReviewCase{}, []models.ReviewCase{}
	sorted := append([]TradeResult(nil), results...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].PnL.GreaterThan(sorted[j].PnL) })
	for _, r := range sorted {
		if r.PnL.IsPositive() && len(success) < maxCases {
			success = append(success, reviewCase(r))
		}
	}
	for i := len(sorted) - 1; i >= 0; i-- {
		if sorted[i].PnL.IsNegative() && len(failure) < maxCases {
			failure = append(failure, reviewCase(sorted[i]))
		}
	}
	return success, failure
}

func reviewCase(r TradeResult) models.ReviewCase {
	return models.ReviewCase{
		TradeID:    r.Trade.TradeID,
		Symbol:     r.Trade.Symbol,
		PnL:        r.PnL.InexactFloat64(),
		PnLPct:     r.PnLPct.InexactFloat64(),
		Reason:     r.Trade.Reason,
		StrategyID: r.Trade.StrategyID,
	}
}

// Lessons turns each case into one lesson.
func Lessons(success, failure []models.ReviewCase) []models.Lesson {
	out := make([]models.Lesson, 0, len(success)+len(failure))
	for _, c := range success {
		out = append(out, models.Lesson{
			Type:                "success",
			Lesson:              fmt.Sprintf("%s succeeded: %s", c.Symbol, c.Reason),
			ApplicableScenarios: []string{"similar market conditions"},
			Confidence:          0.7,
		})
	}
	for _, c := range failure {
		out = append(out, models.Lesson{
			Type:                "failure",
			Lesson:              fmt.Sprintf("%s failed: avoid %s", c.Symbol, c.Reason),
			ApplicableScenarios: []string{"risk control"},
			Confidence:          0.8,
		})
	}
	return out
}

// DailyReview writes today's review. It returns (nil, nil) when one already exists.
func (a *Agent) DailyReview(ctx context.Context) (*models.ReviewReport, error) {
	now := a.clock()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	existing, err := a.Repo.GetReviewReport(ctx, ReviewDaily, dayStart)
	if err != nil {
		return nil, fmt.Errorf("check review: %w", err)
	}
	if existing != nil {
		return nil, nil
	}

	results, trades, err := a.collect(ctx, dayStart)
	if err != nil {
		return nil, err
	}
	st := Analyze(results)
	success, failure := Cases(results)

	prompt := fmt.Sprintf("Today's trading stats:\n- trades: %d\n- win rate: %s%%\n- total pnl: %s\n- profit factor: %s\n\nSuccess cases:\n%s\n\nFailure cases:\n%s\n",
		st.Wins+st.Losses, st.WinRate.StringFixed(2), st.TotalPnL.StringFixed(2), st.ProfitFactor.StringFixed(2),
		models.EncodeJSON(success), models.EncodeJSON(failure))
	out := llm.Structured(ctx, a.LLM, llm.Request{
		Tier:        llm.TierFast,
		System:      insightsSystem,
		User:        prompt,
		Temperature: 0.3,
	}, fallbackInsights())
	if out.Degraded {
		agent.NoteDegraded(ctx, a.log(), a.Metrics, models.AgentReflection, "insights", out.Err)
	}
	ins := out.Value
	if ins.StrategyAdjustments == nil {
		ins.StrategyAdjustments = map[string]string{}
	}
	lessons := Lessons(success, failure)
	biases := []string{}
	if trades > overTradingTrades {
		biases = append(biases, "over_trading")
	}

	report := &models.ReviewReport{
		ReviewType:             ReviewDaily,
		ReviewDate:             dayStart,
		PeriodStart:            dayStart,
		PeriodEnd:              now,
		TradesCount:            trades,
		WinCount:               st.Wins,
		LossCount:              st.Losses,
		WinRate:                st.WinRate,
		TotalPnL:               st.TotalPnL,
		AvgProfit:              st.AvgProfit,
		AvgLoss:                st.AvgLoss,
		ProfitFactor:           st.ProfitFactor,
		SuccessCases:           models.EncodeJSON(success),
		FailureCases:           models.EncodeJSON(failure),
		KeyInsights:            models.EncodeJSON(orEmpty(ins.KeyInsights)),
		LessonsLearned:         models.EncodeJSON(lessons),
		ImprovementSuggestions: models.EncodeJSON(orEmpty(ins.Improvements)),
		StrategyAdjustments:    models.EncodeJSON(ins.StrategyAdjustments),
		EmotionalState:         ins.EmotionalState,
		CognitiveBiases:        models.EncodeJSON(biases),
		OverallRating:          OverallRating(st),
		ConfidenceLevel:        decimal.NewFromFloat(ins.Confidence),
		Degraded:               out.Degraded,
	}

	principles := make([]models.TradingPrinciple, 0, len(lessons))
	for _, l := range lessons {
		principles = append(principles, models.TradingPrinciple{
			PrincipleType:       "learned",
			Content:             l.Lesson,
			ApplicableScenarios: models.EncodeJSON(l.ApplicableScenarios),
			ConfidenceScore:     decimal.NewFromFloat(l.Confidence),
			Source:              PrincipleSource,
			IsActive:            true,
		})
	}
	err = a.Repo.InTx(ctx, func(tx repository.Repository) error {
		if err := tx.InsertReviewReport(ctx, report); err != nil {
			return fmt.Errorf("insert review: %w", err)
		}
		if len(principles) == 0 {
			return nil
		}
		return tx.InsertTradingPrinciples(ctx, principles)
	})
	if err != nil {
		return nil, err
	}

	a.remember(ctx, report, ins, lessons)
	a.log().Info("daily review written",
		zap.Uint64("review_id", report.ID),
		zap.Int("trades", trades),
		zap.String("win_rate", st.WinRate.String()),
		zap.String("profit_factor", st.ProfitFactor.String()),
	)
	return report, nil
}

// collect loads today's filled trades, attributes PnL to each, and writes it back to BUY trades.
func (a *Agent) collect(ctx context.Context, since time.Time) ([]TradeResult, int, error) {
	status := models.TradeFilled
	trades, err := a.Repo.ListTrades(ctx, repository.ListTradesParams{Status: &status, FilledSince: &since, Limit: 500})
	if err != nil {
		return nil, 0, fmt.Errorf("load trades: %w", err)
	}
	results := make([]TradeResult, 0, len(trades))
	for i := range trades {
		tr := &trades[i]
		pnl, pct, ok, err := a.attribute(ctx, tr)
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			continue
		}
		results = append(results, TradeResult{Trade: tr, PnL: pnl, PnLPct: pct})
	}
	return results, len(trades), nil
}

func (a *Agent) attribute(ctx context.Context, tr *models.Trade) (decimal.Decimal, decimal.Decimal, bool, error) {
	if tr.Action == models.ActionSell {
		if tr.PnL == nil {
			return decimal.Zero, decimal.Zero, false, nil
		}
		pct := decimal.Zero
		if tr.PnLPct != nil {
			pct = *tr.PnLPct
		}
		return *tr.PnL, pct, true, nil
	}

	pos, err := a.Repo.GetPositionByOpenTradeID(ctx, tr.ID)
	if err != nil {
		return decimal.Zero, decimal.Zero, false, fmt.Errorf("load position for %s: %w", tr.TradeID, err)
	}
	if pos == nil {
		return decimal.Zero, decimal.Zero, false, nil
	}
	var pnl, pct decimal.Decimal
	if pos.IsClosed {
		pnl = pos.RealizedPnL
		if tr.TotalAmount.IsPositive() {
			pct = pnl.Div(tr.TotalAmount).Mul(hundred)
		}
	} else {
		if pos.UnrealizedPnL == nil {
			return decimal.Zero, decimal.Zero, false, nil
		}
		pnl = *pos.UnrealizedPnL
		if pos.UnrealizedPnLPct != nil {
			pct = *pos.UnrealizedPnLPct
		}
	}
	if pnl.IsZero() {
		return pnl, pct, false, nil
	}

	tr.PnL = &pnl
	tr.PnLPct = &pct
	tr.Outcome = "loss"
	if pnl.IsPositive() {
		tr.Outcome = "win"
	}
	if err := a.Repo.UpdateTrade(ctx, tr); err != nil {
		return decimal.Zero, decimal.Zero, false, fmt.Errorf("update trade %s: %w", tr.TradeID, err)
	}
	return pnl, pct, true, nil
}

// remember stores the review as an episodic memory. Failures are logged only.
func (a *Agent) remember(ctx context.Context, report *models.ReviewReport, ins insights, lessons []models.Lesson) {
	if a.Memory == nil {
		return
	}
	content := models.EncodeJSON(map[string]any{
		"report_id":   report.ID,
		"review_type": report.ReviewType,
		"performance": map[string]any{
			"win_rate":      report.WinRate.InexactFloat64(),
			"total_pnl":     report.TotalPnL.InexactFloat64(),
			"profit_factor": report.ProfitFactor.InexactFloat64(),
		},
		"insights": orEmpty(ins.KeyInsights),
		"lessons":  lessons,
	})
	date := report.ReviewDate.Format("2006-01-02")
	_, err := a.Memory.StoreMemory(ctx, memory.Note{
		Type:       models.MemoryEpisodic,
		Content:    string(content),
		Summary:    fmt.Sprintf("Daily review %s: win rate %s%%, pnl %s", date, report.WinRate.StringFixed(2), report.TotalPnL.StringFixed(2)),
		Importance: decimal.NewFromInt(reviewMemoryWeight),
		Source:     "review",
		SourceID:   date,
		What:       "daily review",
		Why:        strings.Join(orEmpty(ins.KeyInsights), "; "),
		Metadata:   map[string]any{"report_id": report.ID, "review_date": date},
	})
	if err != nil {
		a.log().Warn("review memory not stored", zap.Uint64("review_id", report.ID), zap.Error(err))
	}
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
