package memory

import (
	"github.com/shopspring/decimal"

	"tradeagents/internal/models"
)

var (
	baseImportance = decimal.NewFromInt(5)
	maxImportance  = decimal.NewFromInt(10)
	longTermFloor  = decimal.NewFromInt(8)
	shortTermFloor = decimal.NewFromInt(5)
)

// Importance scores a trade memory from its |pnl_pct| and the originating decision's
// confidence (0-100). Either may be nil. The result is within [0, 10].
func Importance(pnlPct, confidence *decimal.Decimal) decimal.Decimal {
	score := baseImportance
	if pnlPct != nil {
		move := pnlPct.Abs()
		switch {
		case move.GreaterThan(decimal.NewFromInt(10)):
			score = score.Add(decimal.NewFromInt(3))
		case move.GreaterThan(decimal.NewFromInt(5)):
			score = score.Add(decimal.NewFromInt(2))
		case move.GreaterThan(decimal.NewFromInt(2)):
			score = score.Add(decimal.NewFromInt(1))
		}
	}
	if confidence != nil && confidence.GreaterThan(decimal.NewFromInt(80)) {
		score = score.Add(decimal.NewFromInt(1))
	}
	return clamp(score)
}

func clamp(score decimal.Decimal) decimal.Decimal {
	if score.IsNegative() {
		return decimal.Zero
	}
	if score.GreaterThan(maxImportance) {
		return maxImportance
	}
	return score
}

// TypeFor maps importance onto a tier: ≥8 long_term, ≥5 short_term, else working.
func TypeFor(importance decimal.Decimal) models.MemoryType {
	switch {
	case importance.GreaterThanOrEqual(longTermFloor):
		return models.MemoryLongTerm
	case importance.GreaterThanOrEqual(shortTermFloor):
		return models.MemoryShortTerm
	default:
		return models.MemoryWorking
	}
}
