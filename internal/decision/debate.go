package decision

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"tradeagents/internal/llm"
	"tradeagents/internal/models"
)

// MarketSnapshot is what every debater sees about the symbol.
type MarketSnapshot struct {
	Symbol       string
	CurrentPrice decimal.Decimal
	ChangePct    decimal.Decimal
	Volume       int64
	High         decimal.Decimal
	Low          decimal.Decimal
}

type AggressiveView struct {
	Recommendation string  `json:"recommendation"`
	Confidence     float64 `json:"confidence"`
	ExpectedReturn float64 `json:"expected_return"`
	PositionPct    float64 `json:"position_pct"`
	Rationale      string  `json:"rationale"`
}

type ConservativeView struct {
	Agreement        bool     `json:"agreement"`
	RiskScore        float64  `json:"risk_score"`
	Concerns         []string `json:"concerns"`
	Alternative      string   `json:"alternative"`
	AdjustedPosition float64  `json:"adjusted_position"`
}

type quantReply struct {
	Validation      string   `json:"validation"`
	RiskRewardRatio float64  `json:"risk_reward_ratio"`
	Concerns        []string `json:"concerns"`
	Notes           string   `json:"notes"`
}

type JudgeView struct {
	FinalDecision string  `json:"final_decision"`
	ActionType    string  `json:"action_type"`
	PositionPct   float64 `json:"position_pct"`
	Confidence    float64 `json:"confidence"`
	Reasoning     string  `json:"reasoning"`
	StopLossPct   float64 `json:"stop_loss_pct"`
	TakeProfitPct float64 `json:"take_profit_pct"`
}

// Debate holds the four views of one round and the steps that fell back.
type Debate struct {
	Aggressive   AggressiveView
	Conservative ConservativeView
	Quant        models.QuantAnalysis
	Judge        JudgeView
	Degraded     []string
	errs         map[string]error
}

func (d *Debate) degrade(step string, err error) {
	d.Degraded = append(d.Degraded, step)
	if d.errs == nil {
		d.errs = map[string]error{}
	}
	d.errs[step] = err
}

func (a *Agent) aggressive(ctx context.Context, m MarketSnapshot, d *Debate) {
	res := llm.Structured(ctx, a.LLM, llm.Request{
		Tier:        llm.TierFast,
		Temperature: 0.8,
		System:      "You are the aggressive trader of a debate. You chase high returns.",
		User: fmt.Sprintf(`Symbol: %s
Current price: %s
Change: %s%%
Volume: %d

From an aggressive angle: is this a high-return opportunity, what return do you expect,
why enter now, and what position size (1-10%%) would you take?

Return JSON:
{"recommendation": "buy|sell|hold", "confidence": 0-100, "expected_return": number, "position_pct": number, "rationale": "under 50 words"}`,
			m.Symbol, m.CurrentPrice, m.ChangePct, m.Volume),
	}, AggressiveView{})
	if res.Degraded {
		res.Value = AggressiveView{Recommendation: "hold", Rationale: fmt.Sprintf("analysis failed: %v", res.Err)}
		d.degrade("aggressive", res.Err)
	}
	d.Aggressive = res.Value
}

func (a *Agent) conservative(ctx context.Context, m MarketSnapshot, d *Debate) {
	res := llm.Structured(ctx, a.LLM, llm.Request{
		Tier:        llm.TierFast,
		Temperature: 0.3,
		System:      "You are the conservative trader of a debate. You focus on risk.",
		User: fmt.Sprintf(`Symbol: %s
Current price: %s
Change: %s%%

Aggressive view: %s
Rationale: %s
Expected return: %v%%

What are the risks, what is the worst case, how do you score the risk (1-10),
and how would you adjust the proposal?

Return JSON:
{"agreement": true|false, "risk_score": 1-10, "concerns": ["..."], "alternative": "...", "adjusted_position": number}`,
			m.Symbol, m.CurrentPrice, m.ChangePct, d.Aggressive.Recommendation, d.Aggressive.Rationale, d.Aggressive.ExpectedReturn),
	}, ConservativeView{Concerns: []string{}})
	if res.Degraded {
		res.Value = ConservativeView{
			Agreement:   false,
			RiskScore:   10,
			Concerns:    []string{fmt.Sprintf("analysis failed: %v", res.Err)},
			Alternative: "hold",
		}
		d.degrade("conservative", res.Err)
	}
	d.Conservative = res.Value
}

// quant computes the statistics locally; the model only adds narrative.
func (a *Agent) quant(ctx context.Context, m MarketSnapshot, closes []decimal.Decimal, d *Debate) {
	winRate, avgReturn, samples := WinStats(closes)
	out := models.QuantAnalysis{
		SchemaVersion: models.PayloadSchemaVersion,
		WinRate:       winRate,
		AvgReturn:     avgReturn,
		SampleSize:    samples,
		Concerns:      []string{},
	}
	if samples == 0 {
		out.Validation = "insufficient_data"
		d.Quant = out
		return
	}
	trend := "down"
	if avgReturn > 0 {
		trend = "up"
	}
	res := llm.Structured(ctx, a.LLM, llm.Request{
		Tier:        llm.TierFast,
		Temperature: 0.2,
		System:      "You are the quant of a debate. You reason from data.",
		User: fmt.Sprintf(`Symbol: %s
Last %d returns:
- win rate: %.1f%%
- average return: %.2f%%
- current price: %s
- recent trend: %s

How has the symbol performed, is the timing right, and what is the risk/reward?

Return JSON:
{"validation": "positive|negative|neutral", "risk_reward_ratio": number, "concerns": ["..."], "notes": "..."}`,
			m.Symbol, samples, winRate, avgReturn, m.CurrentPrice, trend),
	}, quantReply{Validation: "neutral", Concerns: []string{}})
	if res.Degraded {
		out.Validation = "error"
		out.Degraded = true
		out.Notes = fmt.Sprintf("validation failed: %v", res.Err)
		d.degrade("quant", res.Err)
		d.Quant = out
		return
	}
	out.Validation = res.Value.Validation
	out.RiskRewardRatio = res.Value.RiskRewardRatio
	out.Notes = res.Value.Notes
	if res.Value.Concerns != nil {
		out.Concerns = res.Value.Concerns
	}
	d.Quant = out
}

func (a *Agent) judge(ctx context.Context, m MarketSnapshot, d *Debate) {
	res := llm.Structured(ctx, a.LLM, llm.Request{
		Tier:        llm.TierFull,
		Temperature: 0.5,
		System:      "You are the judge of a trading debate. Weigh the three views and decide.",
		User: fmt.Sprintf(`Symbol: %s
Current price: %s

[Aggressive]
Recommendation: %s
Confidence: %v%%
Expected return: %v%%
Rationale: %s

[Conservative]
Agrees: %t
Risk score: %v/10
Concerns: %s
Alternative: %s

[Quant]
Validation: %s
Win rate: %.1f%%
Average return: %.2f%%

Decide whether to trade, the action (buy/sell/hold), the position size in percent,
your confidence (0-100) and your reasoning.

Return JSON:
{"final_decision": "buy|sell|hold", "action_type": "open|add|reduce|close|wait", "position_pct": number, "confidence": 0-100, "reasoning": "under 100 words", "stop_loss_pct": number, "take_profit_pct": number}`,
			m.Symbol, m.CurrentPrice,
			d.Aggressive.Recommendation, d.Aggressive.Confidence, d.Aggressive.ExpectedReturn, d.Aggressive.Rationale,
			d.Conservative.Agreement, d.Conservative.RiskScore, strings.Join(d.Conservative.Concerns, ", "), d.Conservative.Alternative,
			d.Quant.Validation, d.Quant.WinRate, d.Quant.AvgReturn),
	}, JudgeView{FinalDecision: "hold", Confidence: 50, StopLossPct: 3, TakeProfitPct: 8})
	if res.Degraded {
		res.Value = JudgeView{
			FinalDecision: "hold",
			ActionType:    "wait",
			Reasoning:     fmt.Sprintf("decision failed: %v", res.Err),
			StopLossPct:   3,
			TakeProfitPct: 8,
		}
		d.degrade("judge", res.Err)
	}
	d.Judge = res.Value
}

// Summary renders the four-line debate transcript.
func (d *Debate) Summary() string {
	concerns := "none"
	if len(d.Conservative.Concerns) > 0 {
		concerns = strings.Join(d.Conservative.Concerns, ", ")
	}
	return strings.Join([]string{
		fmt.Sprintf("Aggressive (%v%% confidence): %s", d.Aggressive.Confidence, orNA(d.Aggressive.Rationale)),
		fmt.Sprintf("Conservative (risk %v/10): %s", d.Conservative.RiskScore, concerns),
		fmt.Sprintf("Quant (win rate %.1f%%): %s", d.Quant.WinRate, orNA(d.Quant.Validation)),
		fmt.Sprintf("Final: %s", orNA(d.Judge.Reasoning)),
	}, "\n")
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
