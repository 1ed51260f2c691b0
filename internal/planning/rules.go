package planning

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TrendBullish = "bullish"
	TrendBearish = "bearish"
	TrendNeutral = "neutral"
)

var suitableTypes = map[string][]string{
	TrendBullish: {"trend_following", "momentum"},
	TrendBearish: {"mean_reversion", "defensive"},
	TrendNeutral: {"arbitrage", "market_neutral"},
}

// TrendFromFearGreed maps the fear & greed index onto a coarse trend.
func TrendFromFearGreed(index *decimal.Decimal) string {
	if index == nil {
		return TrendNeutral
	}
	switch {
	case index.GreaterThan(decimal.NewFromInt(60)):
		return TrendBullish
	case index.LessThan(decimal.NewFromInt(40)):
		return TrendBearish
	default:
		return TrendNeutral
	}
}

// Suitable reports whether a strategy type fits the trend.
func Suitable(trend, strategyType string) bool {
	for _, t := range suitableTypes[trend] {
		if t == strategyType {
			return true
		}
	}
	return false
}

// PlanEnd returns the end of a plan starting at start for the given horizon.
// Unknown horizons are treated as daily.
func PlanEnd(start time.Time, horizon string) time.Time {
	switch horizon {
	case "intraday":
		return start.Add(6 * time.Hour)
	case "weekly":
		return start.AddDate(0, 0, 7)
	case "monthly":
		return start.AddDate(0, 0, 30)
	default:
		return start.AddDate(0, 0, 1)
	}
}

// NeedsAdjustment is true when the plan is losing more than half its expected return.
func NeedsAdjustment(actual, expected decimal.Decimal) bool {
	return actual.LessThan(expected.Mul(decimal.NewFromFloat(-0.5)))
}

// StrategyTypes lists every strategy type tag a plan can select, bullish first.
func StrategyTypes() []string {
	var out []string
	for _, trend := range []string{TrendBullish, TrendBearish, TrendNeutral} {
		out = append(out, suitableTypes[trend]...)
	}
	return out
}
