package risk

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tradeagents/internal/models"
)

const (
	AlertLoss       = "loss"
	AlertStopLoss   = "stop_loss"
	AlertTakeProfit = "take_profit"
)

// PositionAlerts checks a revalued open position. Stop-loss and take-profit compare
// the current price against the stored levels as-is.
func (m *Manager) PositionAlerts(p *models.Position, at time.Time) []models.Alert {
	if p == nil || p.CurrentPrice == nil {
		return nil
	}
	cfg := m.config()
	price := *p.CurrentPrice
	id := p.ID
	var out []models.Alert
	newAlert := func(level models.AlertLevel, kind, title string, value, threshold decimal.Decimal) {
		out = append(out, models.Alert{
			AlertLevel:        level,
			AlertType:         kind,
			Status:            "open",
			Title:             title,
			Message:           fmt.Sprintf("%s %s: %s vs %s", p.Symbol, kind, value, threshold),
			RelatedObjectType: "position",
			RelatedObjectID:   &id,
			TriggerValue:      &value,
			Threshold:         &threshold,
			TriggeredAt:       at,
		})
	}

	lossLimit := decimal.NewFromFloat(-cfg.PositionLossAlertPct)
	if p.UnrealizedPnLPct != nil && p.UnrealizedPnLPct.LessThan(lossLimit) {
		newAlert(models.AlertHigh, AlertLoss, fmt.Sprintf("%s unrealized loss %s%%", p.Symbol, p.UnrealizedPnLPct.StringFixed(2)), *p.UnrealizedPnLPct, lossLimit)
	}
	if p.StopLoss != nil && price.LessThanOrEqual(*p.StopLoss) {
		newAlert(models.AlertCritical, AlertStopLoss, fmt.Sprintf("%s hit stop-loss", p.Symbol), price, *p.StopLoss)
	}
	if p.TakeProfit != nil && price.GreaterThanOrEqual(*p.TakeProfit) {
		newAlert(models.AlertInfo, AlertTakeProfit, fmt.Sprintf("%s hit take-profit", p.Symbol), price, *p.TakeProfit)
	}
	return out
}
