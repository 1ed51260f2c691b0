package decision

import (
	"github.com/shopspring/decimal"

	"tradeagents/internal/models"
)

var hundred = decimal.NewFromInt(100)

// ConfidenceBucket maps a 0-100 confidence score onto its level.
func ConfidenceBucket(score decimal.Decimal) models.ConfidenceLevel {
	switch {
	case score.GreaterThanOrEqual(decimal.NewFromInt(80)):
		return models.ConfidenceVeryHigh
	case score.GreaterThanOrEqual(decimal.NewFromInt(60)):
		return models.ConfidenceHigh
	case score.GreaterThanOrEqual(decimal.NewFromInt(40)):
		return models.ConfidenceMedium
	case score.GreaterThanOrEqual(decimal.NewFromInt(20)):
		return models.ConfidenceLow
	default:
		return models.ConfidenceVeryLow
	}
}

// StopLevels derives stop-loss and take-profit prices from percentages. Sell
// decisions invert the direction; hold has no levels.
func StopLevels(kind models.DecisionType, price, stopLossPct, takeProfitPct decimal.Decimal) (stopLoss, takeProfit *decimal.Decimal) {
	sl := stopLossPct.Div(hundred)
	tp := takeProfitPct.Div(hundred)
	one := decimal.NewFromInt(1)
	var s, t decimal.Decimal
	switch kind {
	case models.DecisionBuy:
		s = price.Mul(one.Sub(sl))
		t = price.Mul(one.Add(tp))
	case models.DecisionSell:
		s = price.Mul(one.Add(sl))
		t = price.Mul(one.Sub(tp))
	default:
		return nil, nil
	}
	return &s, &t
}

// WinStats computes the share of positive pairwise returns and their mean, both in
// percent. closes are newest first.
func WinStats(closes []decimal.Decimal) (winRate, avgReturn float64, samples int) {
	if len(closes) < 2 {
		return 0, 0, 0
	}
	wins := 0
	sum := decimal.Zero
	for i := 0; i+1 < len(closes); i++ {
		prev := closes[i+1]
		if prev.IsZero() {
			continue
		}
		r := closes[i].Sub(prev).Div(prev).Mul(hundred)
		if r.IsPositive() {
			wins++
		}
		sum = sum.Add(r)
		samples++
	}
	if samples == 0 {
		return 0, 0, 0
	}
	n := decimal.NewFromInt(int64(samples))
	winRate = decimal.NewFromInt(int64(wins)).Div(n).Mul(hundred).InexactFloat64()
	avgReturn = sum.Div(n).InexactFloat64()
	return winRate, avgReturn, samples
}
