package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tradeagents/internal/config"
	"tradeagents/internal/models"
)

// Inputs is the portfolio state a pre-trade check sees. Percentages are fractions.
type Inputs struct {
	TargetPct     decimal.Decimal
	TotalAsset    decimal.Decimal
	AvailableCash decimal.Decimal
	// SymbolValue is the market value already held in the symbol.
	SymbolValue decimal.Decimal
	TodayReturn decimal.Decimal
	MaxDrawdown decimal.Decimal
	// Sell skips the exposure and cash clamps; a sale only lowers exposure.
	Sell bool
}

// Evaluate runs every check without short-circuiting and returns the findings with
// the position size after all clamps. Clamps only ever lower the size. Sells face
// only the daily-loss and drawdown gates.
func Evaluate(cfg config.RiskConfig, in Inputs) ([]Finding, decimal.Decimal) {
	var findings []Finding
	pct := in.TargetPct
	if pct.IsNegative() {
		pct = decimal.Zero
	}

	if !in.TotalAsset.IsPositive() {
		findings = append(findings, Finding{
			Check:  CheckNoAssets,
			Action: models.RiskReject,
			Value:  in.TotalAsset.String(),
			Msg:    "portfolio has no assets",
		})
		return findings, decimal.Zero
	}

	if !in.Sell {
		findings, pct = clampExposure(cfg, in, findings, pct)
	}

	dailyLimit := decimal.NewFromFloat(-cfg.MaxDailyLossPct)
	if in.TodayReturn.LessThan(dailyLimit) {
		findings = append(findings, Finding{
			Check:  CheckDailyLoss,
			Action: models.RiskReject,
			Value:  in.TodayReturn.String(),
			Msg:    fmt.Sprintf("today's return %s is below %s", in.TodayReturn, dailyLimit),
		})
	}

	maxDD := decimal.NewFromFloat(cfg.MaxDrawdown)
	if in.MaxDrawdown.GreaterThan(maxDD) {
		findings = append(findings, Finding{
			Check:  CheckDrawdown,
			Action: models.RiskReject,
			Value:  in.MaxDrawdown.String(),
			Msg:    fmt.Sprintf("drawdown %s exceeds %s", in.MaxDrawdown, maxDD),
		})
	}
	return findings, pct
}

// clampExposure applies the buy-side caps in order and returns the lowered size.
func clampExposure(cfg config.RiskConfig, in Inputs, findings []Finding, pct decimal.Decimal) ([]Finding, decimal.Decimal) {
	single := decimal.NewFromFloat(cfg.MaxSingleTradePct)
	if pct.GreaterThan(single) {
		findings = append(findings, Finding{
			Check:  CheckSingleTrade,
			Action: models.RiskAdjust,
			Value:  pct.String(),
			Msg:    fmt.Sprintf("single trade %s exceeds cap %s", pct, single),
		})
		pct = single
	}

	concentration := decimal.NewFromFloat(cfg.MaxConcentrationPct)
	headroom := concentration.Sub(in.SymbolValue.Div(in.TotalAsset))
	if headroom.IsNegative() {
		headroom = decimal.Zero
	}
	if pct.GreaterThan(headroom) {
		findings = append(findings, Finding{
			Check:  CheckConcentration,
			Action: models.RiskAdjust,
			Value:  headroom.String(),
			Msg:    fmt.Sprintf("symbol concentration leaves headroom %s below target %s", headroom.StringFixed(4), pct),
		})
		pct = headroom
	}

	required := in.TotalAsset.Mul(pct)
	if required.GreaterThan(in.AvailableCash) {
		allowed := decimal.Max(decimal.Zero, in.AvailableCash).Div(in.TotalAsset)
		findings = append(findings, Finding{
			Check:  CheckCash,
			Action: models.RiskAdjust,
			Value:  in.AvailableCash.String(),
			Msg:    fmt.Sprintf("needs %s cash, %s available", required.StringFixed(2), in.AvailableCash.StringFixed(2)),
		})
		pct = decimal.Min(pct, allowed)
	}
	return findings, pct
}
