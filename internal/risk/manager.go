package risk

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradeagents/internal/config"
	"tradeagents/internal/models"
	"tradeagents/internal/repository"
	"tradeagents/internal/telemetry"
)

const (
	CheckSingleTrade   = "single_trade_cap"
	CheckConcentration = "concentration_cap"
	CheckCash          = "available_cash"
	CheckDailyLoss     = "daily_loss"
	CheckDrawdown      = "max_drawdown"
	CheckNoAssets      = "no_assets"
)

type Manager struct {
	Config  config.RiskConfig
	Repo    repository.Repository
	Metrics *telemetry.Metrics
	Logger  *zap.Logger
}

// Finding is one triggered check. Checks that pass produce no finding.
type Finding struct {
	Check  string            `json:"check"`
	Action models.RiskAction `json:"action"`
	Value  string            `json:"value,omitempty"`
	Msg    string            `json:"msg"`
}

type Result struct {
	Action      models.RiskAction `json:"action"`
	Findings    []Finding         `json:"findings"`
	PositionPct decimal.Decimal   `json:"position_pct"`
	LogID       uint64            `json:"log_id"`
}

// Messages lists the finding messages in evaluation order.
func (r Result) Messages() []string {
	out := make([]string, 0, len(r.Findings))
	for _, f := range r.Findings {
		out = append(out, f.Msg)
	}
	return out
}

// Resolve folds findings into one action: any reject wins, then any adjust, else allow.
func Resolve(findings []Finding) models.RiskAction {
	action := models.RiskAllow
	for _, f := range findings {
		switch f.Action {
		case models.RiskReject:
			return models.RiskReject
		case models.RiskAdjust:
			action = models.RiskAdjust
		}
	}
	return action
}

// WithRepo returns a copy of m bound to repo, typically a transaction.
func (m *Manager) WithRepo(repo repository.Repository) *Manager {
	if m == nil {
		return &Manager{Config: config.DefaultRisk(), Repo: repo}
	}
	next := *m
	next.Repo = repo
	return &next
}

// PreTrade runs every pre-trade check against the decision's target size and
// records the outcome as one RiskControlLog row.
func (m *Manager) PreTrade(ctx context.Context, portfolio *models.Portfolio, decision *models.DecisionRecord) (Result, error) {
	if portfolio == nil || decision == nil {
		return Result{}, fmt.Errorf("risk: portfolio and decision are required")
	}
	cfg := m.config()
	target := decision.TargetPositionPct
	existing, err := m.symbolValue(ctx, portfolio.AccountName, decision.Symbol)
	if err != nil {
		return Result{}, err
	}

	findings, resolved := Evaluate(cfg, Inputs{
		TargetPct:     target,
		TotalAsset:    portfolio.TotalAsset,
		AvailableCash: portfolio.AvailableCash,
		SymbolValue:   existing,
		TodayReturn:   portfolio.TodayReturn,
		MaxDrawdown:   portfolio.MaxDrawdown,
		Sell:          decision.DecisionType == models.DecisionSell,
	})
	res := Result{Action: Resolve(findings), Findings: findings, PositionPct: resolved}
	if res.Findings == nil {
		res.Findings = []Finding{}
	}

	recommendation := "execute"
	switch res.Action {
	case models.RiskReject:
		recommendation = "reject"
	case models.RiskAdjust:
		recommendation = "execute with adjusted size"
	}
	portfolioID := portfolio.ID
	row := &models.RiskControlLog{
		RiskType:    "pre_trade",
		Action:      res.Action,
		PortfolioID: &portfolioID,
		Symbol:      decision.Symbol,
		RiskIndicators: models.EncodeJSON(models.RiskIndicators{
			SchemaVersion:    models.PayloadSchemaVersion,
			TargetPosition:   target,
			AdjustedPosition: resolved,
			AvailableCash:    portfolio.AvailableCash,
			TotalAsset:       portfolio.TotalAsset,
			TodayReturn:      portfolio.TodayReturn,
			MaxDrawdown:      portfolio.MaxDrawdown,
		}),
		TriggerRules:   models.EncodeJSON(res.Messages()),
		Description:    fmt.Sprintf("pre-trade check: %s", decision.Symbol),
		Recommendation: recommendation,
		Executed:       true,
	}
	if err := m.Repo.InsertRiskControlLog(ctx, row); err != nil {
		return Result{}, fmt.Errorf("insert risk log: %w", err)
	}
	res.LogID = row.ID
	m.Metrics.RiskAction(ctx, string(res.Action))

	if res.Action != models.RiskAllow {
		m.log().Info("risk: pre-trade",
			zap.String("symbol", decision.Symbol),
			zap.String("action", string(res.Action)),
			zap.String("target_pct", target.String()),
			zap.String("resolved_pct", resolved.String()),
			zap.Strings("findings", res.Messages()),
		)
	}
	return res, nil
}

func (m *Manager) symbolValue(ctx context.Context, account, symbol string) (decimal.Decimal, error) {
	if m == nil || m.Repo == nil {
		return decimal.Zero, nil
	}
	pos, err := m.Repo.GetOpenPosition(ctx, symbol, account)
	if err != nil {
		return decimal.Zero, fmt.Errorf("load position: %w", err)
	}
	if pos == nil {
		return decimal.Zero, nil
	}
	if pos.MarketValue != nil {
		return *pos.MarketValue, nil
	}
	return pos.TotalCost, nil
}

func (m *Manager) config() config.RiskConfig {
	if m == nil {
		return config.DefaultRisk()
	}
	cfg := m.Config
	def := config.DefaultRisk()
	if cfg.MaxSingleTradePct <= 0 {
		cfg.MaxSingleTradePct = def.MaxSingleTradePct
	}
	if cfg.MaxConcentrationPct <= 0 {
		cfg.MaxConcentrationPct = def.MaxConcentrationPct
	}
	if cfg.MaxDailyLossPct <= 0 {
		cfg.MaxDailyLossPct = def.MaxDailyLossPct
	}
	if cfg.MaxDrawdown <= 0 {
		cfg.MaxDrawdown = def.MaxDrawdown
	}
	if cfg.PositionLossAlertPct <= 0 {
		cfg.PositionLossAlertPct = def.PositionLossAlertPct
	}
	return cfg
}

func (m *Manager) log() *zap.Logger {
	if m == nil || m.Logger == nil {
		return zap.NewNop()
	}
	return m.Logger
}
