package perception

import (
	"github.com/shopspring/decimal"

	"tradeagents/internal/models"
)

var (
	anomalyPct       = decimal.NewFromInt(5)
	anomalyHighPct   = decimal.NewFromInt(10)
	breakoutFactor   = decimal.NewFromFloat(1.02)
	vixThreshold     = decimal.NewFromInt(30)
	vixHighThreshold = decimal.NewFromInt(40)
)

const (
	breakoutBars       = 5
	breakoutConfidence = 0.7
	majorNewsLevel     = 7
	criticalNewsLevel  = 9
)

// anomalySeverity classifies a bar's change_pct. ok is false when the move is not an anomaly.
func anomalySeverity(changePct *decimal.Decimal) (severity string, ok bool) {
	if changePct == nil {
		return "", false
	}
	move := changePct.Abs()
	if !move.GreaterThan(anomalyPct) {
		return "", false
	}
	if move.GreaterThan(anomalyHighPct) {
		return "high", true
	}
	return "medium", true
}

// IsBreakout reports whether the newest bar closes more than 2% above the highest
// high of the four bars before it. bars are newest first.
func IsBreakout(bars []models.MarketData) bool {
	if len(bars) < breakoutBars {
		return false
	}
	pastHigh := bars[1].High
	for _, b := range bars[2:breakoutBars] {
		if b.High.GreaterThan(pastHigh) {
			pastHigh = b.High
		}
	}
	return bars[0].Close.GreaterThan(pastHigh.Mul(breakoutFactor))
}

func vixSeverity(vix *decimal.Decimal) (string, bool) {
	if vix == nil || !vix.GreaterThan(vixThreshold) {
		return "", false
	}
	if vix.GreaterThan(vixHighThreshold) {
		return "high", true
	}
	return "medium", true
}

func newsSeverity(level int) string {
	if level >= criticalNewsLevel {
		return "critical"
	}
	return "high"
}
