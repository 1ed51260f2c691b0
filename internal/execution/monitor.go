package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradeagents/internal/models"
	"tradeagents/internal/repository"
)

type MonitorReport struct {
	Positions int               `json:"positions"`
	Alerts    []models.Alert    `json:"alerts"`
	Portfolio *models.Portfolio `json:"portfolio,omitempty"`
}

// Monitor marks every open position to the latest close, records new alerts and then
// revalues the portfolio. A condition that stays triggered keeps its one open alert.
// Callers hold the portfolio lock.
func (a *Agent) Monitor(ctx context.Context) (*MonitorReport, error) {
	report := &MonitorReport{Alerts: []models.Alert{}}
	err := a.Repo.InTx(ctx, func(tx repository.Repository) error {
		portfolio, err := tx.GetPortfolioByName(ctx, a.portfolioName())
		if err != nil {
			return fmt.Errorf("load portfolio: %w", err)
		}
		if portfolio == nil {
			return nil
		}
		open := true
		account := portfolio.AccountName
		positions, err := tx.ListPositions(ctx, repository.ListPositionsParams{AccountName: &account, Open: &open, Limit: 500})
		if err != nil {
			return fmt.Errorf("load positions: %w", err)
		}

		now := a.clock()
		marketValue := decimal.Zero
		for i := range positions {
			pos := &positions[i]
			bar, err := tx.GetLatestMarketData(ctx, pos.Symbol)
			if err != nil {
				return fmt.Errorf("load market data for %s: %w", pos.Symbol, err)
			}
			if bar != nil {
				revalue(pos, bar.Close)
				if err := tx.SavePosition(ctx, pos); err != nil {
					return fmt.Errorf("save position %d: %w", pos.ID, err)
				}
				for _, alert := range a.Risk.PositionAlerts(pos, now) {
					raised, err := raiseAlert(ctx, tx, &alert)
					if err != nil {
						return err
					}
					if raised {
						report.Alerts = append(report.Alerts, alert)
					}
				}
			}
			if pos.MarketValue != nil {
				marketValue = marketValue.Add(*pos.MarketValue)
			} else {
				marketValue = marketValue.Add(pos.TotalCost)
			}
		}
		report.Positions = len(positions)

		Revalue(portfolio, marketValue, dayOf(now))
		if err := tx.SavePortfolio(ctx, portfolio); err != nil {
			return fmt.Errorf("save portfolio: %w", err)
		}
		report.Portfolio = portfolio
		return nil
	})
	if err != nil {
		return nil, err
	}
	a.log().Info("positions monitored",
		zap.Int("positions", report.Positions),
		zap.Int("alerts", len(report.Alerts)),
	)
	return report, nil
}

// raiseAlert inserts alert unless an open alert of the same type is already
// recorded for the same object.
func raiseAlert(ctx context.Context, tx repository.Repository, alert *models.Alert) (bool, error) {
	open := "open"
	existing, err := tx.CountAlerts(ctx, repository.ListAlertsParams{
		Status:     &open,
		Type:       &alert.AlertType,
		ObjectType: &alert.RelatedObjectType,
		ObjectID:   alert.RelatedObjectID,
	})
	if err != nil {
		return false, fmt.Errorf("count open alerts: %w", err)
	}
	if existing > 0 {
		return false, nil
	}
	if err := tx.InsertAlert(ctx, alert); err != nil {
		return false, fmt.Errorf("insert alert: %w", err)
	}
	return true, nil
}

// Revalue recomputes the portfolio's asset, return and drawdown figures from its cash
// and the market value of open positions. The day-start baseline rolls over when today
// differs from the stored day.
func Revalue(p *models.Portfolio, marketValue decimal.Decimal, today time.Time) {
	if p.DayStartDate == nil || !dayOf(*p.DayStartDate).Equal(today) {
		base := p.TotalAsset
		if !base.IsPositive() {
			base = p.InitialCapital
		}
		p.DayStartAsset = base
		day := today
		p.DayStartDate = &day
	}

	p.MarketValue = marketValue
	p.TotalAsset = p.Cash.Add(marketValue)
	p.TotalPnL = p.TotalAsset.Sub(p.InitialCapital)
	if p.InitialCapital.IsPositive() {
		p.TotalReturn = p.TotalPnL.Div(p.InitialCapital)
	}
	p.TodayPnL = p.TotalAsset.Sub(p.DayStartAsset)
	if p.DayStartAsset.IsPositive() {
		p.TodayReturn = p.TodayPnL.Div(p.DayStartAsset)
	}
	if p.TotalAsset.GreaterThan(p.PeakAsset) {
		p.PeakAsset = p.TotalAsset
	}
	if p.PeakAsset.IsPositive() {
		dd := p.PeakAsset.Sub(p.TotalAsset).Div(p.PeakAsset)
		if dd.GreaterThan(p.MaxDrawdown) {
			p.MaxDrawdown = dd
		}
	}
}
