package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradeagents/internal/agent"
	"tradeagents/internal/lock"
	"tradeagents/internal/models"
	"tradeagents/internal/repository"
	"tradeagents/internal/risk"
	"tradeagents/internal/telemetry"
)

const (
	defaultBatchSize = 5
	defaultPortfolio = "simulation_main"
	defaultLockTTL   = 30 * time.Second
)

var (
	defaultInitialCapital = decimal.NewFromInt(1000000)
	defaultCommissionRate = decimal.NewFromFloat(0.0003)
)

type Agent struct {
	Repo      repository.Repository
	Risk      *risk.Manager
	Locker    lock.Locker
	Heartbeat *agent.Heartbeat
	Metrics   *telemetry.Metrics
	Logger    *zap.Logger

	Portfolio      string
	InitialCapital decimal.Decimal
	CommissionRate decimal.Decimal
	BatchSize      int
	LockTTL        time.Duration

	now func() time.Time
}

// Outcome is what happened to one decision.
type Outcome struct {
	Status models.ExecutionStatus `json:"status"`
	Trade  *models.Trade          `json:"trade,omitempty"`
	Reason string                 `json:"reason,omitempty"`
}

func (a *Agent) Name() models.AgentType { return models.AgentExecution }

func (a *Agent) RunOnce(ctx context.Context) (agent.Summary, error) {
	if _, err := a.EnsurePortfolio(ctx); err != nil {
		return nil, err
	}
	pending, err := a.Repo.ListDecisions(ctx, repository.ListDecisionsParams{
		Pending: true,
		Types:   []models.DecisionType{models.DecisionBuy, models.DecisionSell},
		OrderBy: "decision_time",
		Limit:   a.batchSize(),
	})
	if err != nil {
		return nil, fmt.Errorf("load pending decisions: %w", err)
	}

	counts := map[models.ExecutionStatus]int{}
	lockBusy := false
	for i := range pending {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var out *Outcome
		err := a.withPortfolioLock(ctx, func() error {
			var err error
			out, err = a.ExecuteDecision(ctx, &pending[i])
			return err
		})
		switch {
		case errors.Is(err, lock.ErrNotAcquired):
			lockBusy = true
		case err != nil:
			a.log().Error("execution failed",
				zap.Uint64("decision_id", pending[i].ID),
				zap.String("symbol", pending[i].Symbol),
				zap.Error(err),
			)
			a.Heartbeat.Fail(ctx, models.AgentExecution, err)
			counts["failed"]++
		case out != nil:
			counts[out.Status]++
		}
	}

	var report *MonitorReport
	err = a.withPortfolioLock(ctx, func() error {
		var err error
		report, err = a.Monitor(ctx)
		return err
	})
	switch {
	case errors.Is(err, lock.ErrNotAcquired):
		lockBusy = true
	case err != nil:
		return nil, err
	}

	summary := agent.Summary{
		"pending":  len(pending),
		"executed": counts[models.ExecutionExecuted],
		"rejected": counts[models.ExecutionRejected],
		"skipped":  counts[models.ExecutionSkipped],
		"failed":   counts["failed"],
	}
	if report != nil {
		summary["monitored"] = report.Positions
		summary["alerts"] = len(report.Alerts)
	}
	if lockBusy {
		summary["lock_busy"] = true
	}
	summary[agent.SummaryDegraded] = 0
	return summary, nil
}

// EnsurePortfolio loads the configured portfolio, creating it with the initial capital when absent.
func (a *Agent) EnsurePortfolio(ctx context.Context) (*models.Portfolio, error) {
	p, err := a.Repo.GetPortfolioByName(ctx, a.portfolioName())
	if err != nil {
		return nil, fmt.Errorf("load portfolio: %w", err)
	}
	if p != nil {
		return p, nil
	}
	capital := a.InitialCapital
	if !capital.IsPositive() {
		capital = defaultInitialCapital
	}
	today := dayOf(a.clock())
	p = &models.Portfolio{
		AccountName:    a.portfolioName(),
		AccountType:    "simulation",
		InitialCapital: capital,
		TotalAsset:     capital,
		Cash:           capital,
		AvailableCash:  capital,
		DayStartAsset:  capital,
		DayStartDate:   &today,
		PeakAsset:      capital,
		RiskPreference: "balanced",
		IsActive:       true,
	}
	if err := a.Repo.SavePortfolio(ctx, p); err != nil {
		return nil, fmt.Errorf("create portfolio: %w", err)
	}
	a.log().Info("portfolio created", zap.String("portfolio", p.AccountName), zap.String("capital", capital.String()))
	return p, nil
}

// ExecuteDecision gates one decision through the risk checks and fills it. Callers hold
// the portfolio lock. A nil Outcome means the decision was left pending.
func (a *Agent) ExecuteDecision(ctx context.Context, d *models.DecisionRecord) (*Outcome, error) {
	if d == nil {
		return nil, nil
	}
	log := a.log().With(zap.Uint64("decision_id", d.ID), zap.String("symbol", d.Symbol))
	start := time.Now()
	var out *Outcome
	err := a.Repo.InTx(ctx, func(tx repository.Repository) error {
		portfolio, err := tx.GetPortfolioByName(ctx, a.portfolioName())
		if err != nil {
			return fmt.Errorf("load portfolio: %w", err)
		}
		if portfolio == nil {
			return fmt.Errorf("portfolio %q not found", a.portfolioName())
		}
		bar, err := tx.GetLatestMarketData(ctx, d.Symbol)
		if err != nil {
			return fmt.Errorf("load market data: %w", err)
		}
		if bar == nil {
			log.Warn("no market data, decision left pending")
			return nil
		}

		check, err := a.Risk.WithRepo(tx).PreTrade(ctx, portfolio, d)
		if err != nil {
			return err
		}
		if check.Action == models.RiskReject {
			out = &Outcome{Status: models.ExecutionRejected, Reason: strings.Join(check.Messages(), "; ")}
			return a.markDecision(ctx, tx, d, out, check, bar.Close, 0)
		}

		pct := d.TargetPositionPct
		if check.Action == models.RiskAdjust {
			pct = check.PositionPct
		}
		held, err := tx.GetOpenPosition(ctx, d.Symbol, portfolio.AccountName)
		if err != nil {
			return fmt.Errorf("load position: %w", err)
		}

		action := models.ActionBuy
		var qty int64
		if d.DecisionType == models.DecisionSell {
			action = models.ActionSell
			if held == nil || held.Quantity <= 0 {
				out = &Outcome{Status: models.ExecutionSkipped, Reason: "no open position to sell"}
				return a.markDecision(ctx, tx, d, out, check, bar.Close, 0)
			}
			qty = SellQuantity(held.Quantity, portfolio.TotalAsset, pct, bar.Close)
		} else {
			qty = Quantity(portfolio.AvailableCash, pct, bar.Close)
		}
		if qty <= 0 {
			out = &Outcome{Status: models.ExecutionSkipped, Reason: "computed quantity is zero"}
			return a.markDecision(ctx, tx, d, out, check, bar.Close, 0)
		}

		trade, err := a.fill(ctx, tx, portfolio, held, d, action, bar.Close, qty, check, time.Since(start))
		if err != nil {
			return err
		}
		out = &Outcome{Status: models.ExecutionExecuted, Trade: trade}
		if err := a.markDecision(ctx, tx, d, out, check, bar.Close, qty); err != nil {
			return err
		}
		return a.markOpportunityExecuted(ctx, tx, d)
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, nil
	}
	switch out.Status {
	case models.ExecutionExecuted:
		a.Metrics.Trade(ctx, string(out.Trade.Action))
		log.Info("trade executed",
			zap.String("trade_id", out.Trade.TradeID),
			zap.String("action", string(out.Trade.Action)),
			zap.Int64("quantity", out.Trade.FilledQuantity),
			zap.String("price", out.Trade.FilledPrice.String()),
		)
	case models.ExecutionRejected:
		log.Warn("trade rejected", zap.String("reason", out.Reason))
	default:
		log.Info("decision skipped", zap.String("reason", out.Reason))
	}
	return out, nil
}

func (a *Agent) fill(ctx context.Context, tx repository.Repository, portfolio *models.Portfolio, held *models.Position, d *models.DecisionRecord, action models.TradeAction, price decimal.Decimal, qty int64, check risk.Result, took time.Duration) (*models.Trade, error) {
	now := a.clock()
	notional := price.Mul(decimal.NewFromInt(qty))
	commission := Commission(price, qty, a.commissionRate())
	total := notional.Add(commission)
	if action == models.ActionSell {
		total = notional.Sub(commission)
	}
	decisionID := d.ID
	filledPrice := price
	trade := &models.Trade{
		TradeID:         NewTradeID(now),
		Symbol:          d.Symbol,
		Action:          action,
		AccountType:     portfolio.AccountType,
		AccountName:     portfolio.AccountName,
		OrderPrice:      price,
		OrderQuantity:   qty,
		Status:          models.TradePending,
		OrderTime:       now,
		Commission:      commission,
		Slippage:        decimal.Zero,
		TotalAmount:     total,
		DecisionID:      &decisionID,
		DecisionProcess: d.DebateSummary,
		Reason:          d.FinalDecision,
		StopLoss:        d.StopLoss,
		TakeProfit:      d.TakeProfit,
		ExecutionQuality: models.EncodeJSON(models.ExecutionQuality{
			SchemaVersion:   models.PayloadSchemaVersion,
			RiskAction:      check.Action,
			RiskChecks:      check.Messages(),
			ExecutionTimeMs: took.Milliseconds(),
		}),
	}
	// Simulated venue: every order fills immediately at the last close.
	if err := models.TransitionTrade(trade, models.TradeFilled); err != nil {
		return nil, err
	}
	trade.FilledPrice = &filledPrice
	trade.FilledQuantity = qty
	trade.FilledTime = &now
	if err := tx.InsertTrade(ctx, trade); err != nil {
		return nil, fmt.Errorf("insert trade: %w", err)
	}

	switch action {
	case models.ActionBuy:
		pos := applyBuy(held, trade, now)
		if err := tx.SavePosition(ctx, pos); err != nil {
			return nil, fmt.Errorf("save position: %w", err)
		}
		portfolio.Cash = portfolio.Cash.Sub(total)
	case models.ActionSell:
		costBasis := held.AvgCost.Mul(decimal.NewFromInt(qty))
		realized := applySell(held, trade, now)
		if err := tx.SavePosition(ctx, held); err != nil {
			return nil, fmt.Errorf("save position: %w", err)
		}
		portfolio.Cash = portfolio.Cash.Add(total)
		pnlPct := decimal.Zero
		if costBasis.IsPositive() {
			pnlPct = realized.Div(costBasis).Mul(hundred)
		}
		trade.PnL = &realized
		trade.PnLPct = &pnlPct
		trade.Outcome = outcomeOf(realized)
		if realized.IsPositive() {
			portfolio.WinTrades++
		} else {
			portfolio.LoseTrades++
		}
		if err := tx.UpdateTrade(ctx, trade); err != nil {
			return nil, fmt.Errorf("update trade pnl: %w", err)
		}
	}
	portfolio.AvailableCash = portfolio.Cash
	portfolio.TotalTrades++
	if err := tx.SavePortfolio(ctx, portfolio); err != nil {
		return nil, fmt.Errorf("save portfolio: %w", err)
	}
	return trade, nil
}

func (a *Agent) markDecision(ctx context.Context, tx repository.Repository, d *models.DecisionRecord, out *Outcome, check risk.Result, price decimal.Decimal, qty int64) error {
	now := a.clock()
	result := models.ExecutionResult{
		SchemaVersion:    models.PayloadSchemaVersion,
		Status:           out.Status,
		ExecutedPrice:    price,
		ExecutedQuantity: qty,
		RiskChecks:       check.Messages(),
		Reason:           out.Reason,
	}
	if out.Trade != nil {
		result.TradeID = out.Trade.TradeID
		d.IsExecuted = true
		target := qty
		d.TargetQuantity = &target
	}
	d.ExecutionStatus = out.Status
	d.ExecutionTime = &now
	d.ExecutionResult = models.EncodeJSON(result)
	if err := tx.UpdateDecision(ctx, d); err != nil {
		return fmt.Errorf("update decision: %w", err)
	}
	return nil
}

func (a *Agent) markOpportunityExecuted(ctx context.Context, tx repository.Repository, d *models.DecisionRecord) error {
	if d.OpportunityID == nil {
		return nil
	}
	opp, err := tx.GetOpportunityByID(ctx, *d.OpportunityID)
	if err != nil {
		return fmt.Errorf("load opportunity: %w", err)
	}
	if opp == nil || !models.OpportunityTransitions.Allows(opp.Status, models.OpportunityExecuted) {
		return nil
	}
	if err := models.TransitionOpportunity(opp, models.OpportunityExecuted); err != nil {
		return err
	}
	return tx.UpdateOpportunity(ctx, opp)
}

// withPortfolioLock runs fn under the portfolio lock. Without a Locker fn runs unguarded.
func (a *Agent) withPortfolioLock(ctx context.Context, fn func() error) error {
	if a.Locker == nil {
		return fn()
	}
	key := "portfolio:" + a.portfolioName()
	h, err := a.Locker.Lock(ctx, key, a.lockTTL())
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			a.log().Warn("portfolio lock busy, skipping", zap.String("key", key))
		}
		return err
	}
	defer func() {
		if err := h.Unlock(context.Background()); err != nil {
			a.log().Warn("portfolio unlock failed", zap.String("key", key), zap.Error(err))
		}
	}()
	return fn()
}

func outcomeOf(pnl decimal.Decimal) string {
	if pnl.IsPositive() {
		return "win"
	}
	return "loss"
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (a *Agent) portfolioName() string {
	if a.Portfolio != "" {
		return a.Portfolio
	}
	return defaultPortfolio
}

func (a *Agent) commissionRate() decimal.Decimal {
	if a.CommissionRate.IsPositive() {
		return a.CommissionRate
	}
	return defaultCommissionRate
}

func (a *Agent) batchSize() int {
	if a.BatchSize > 0 {
		return a.BatchSize
	}
	return defaultBatchSize
}

func (a *Agent) lockTTL() time.Duration {
	if a.LockTTL > 0 {
		return a.LockTTL
	}
	return defaultLockTTL
}

func (a *Agent) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now().UTC()
}

func (a *Agent) log() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}
