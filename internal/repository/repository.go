package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"tradeagents/internal/models"
)

// Repository is the single persistence boundary shared by every agent and the HTTP API.
// Lookups that find nothing return (nil, nil).
type Repository interface {
	// InTx runs fn against a repository bound to one database transaction.
	InTx(ctx context.Context, fn func(tx Repository) error) error

	// Agent heartbeat
	GetAgentStatus(ctx context.Context, agent models.AgentType) (*models.AgentStatus, error)
	UpsertAgentStatus(ctx context.Context, item *models.AgentStatus) error
	ListAgentStatuses(ctx context.Context) ([]models.AgentStatus, error)

	// System settings
	UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error
	GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error)
	ListSystemSettings(ctx context.Context, params ListSystemSettingsParams) ([]models.SystemSetting, error)
	CountSystemSettings(ctx context.Context, params ListSystemSettingsParams) (int64, error)

	// Market data (written by the collector, read by the pipeline)
	UpsertMarketData(ctx context.Context, items []models.MarketData) error
	GetLatestMarketData(ctx context.Context, symbol string) (*models.MarketData, error)
	ListMarketData(ctx context.Context, params ListMarketDataParams) ([]models.MarketData, error)
	ListActiveSymbols(ctx context.Context, since time.Time, limit int) ([]string, error)
	ListLatestIndices(ctx context.Context, since time.Time, limit int) ([]models.MarketIndex, error)
	GetLatestSentiment(ctx context.Context) (*models.MarketSentiment, error)
	InsertMarketSentiment(ctx context.Context, item *models.MarketSentiment) error
	GetNewsEventByID(ctx context.Context, id uint64) (*models.NewsEvent, error)
	ListNewsEvents(ctx context.Context, params ListNewsEventsParams) ([]models.NewsEvent, error)
	UpdateNewsAnalysis(ctx context.Context, id uint64, level *int, sentiment *decimal.Decimal, impact string) error

	// Opportunities
	InsertOpportunity(ctx context.Context, item *models.MarketOpportunity) error
	// InsertOpportunityIfAbsent inserts unless a row with the same dedupe key exists. It reports whether a row was created.
	InsertOpportunityIfAbsent(ctx context.Context, item *models.MarketOpportunity) (bool, error)
	GetOpportunityByID(ctx context.Context, id uint64) (*models.MarketOpportunity, error)
	ListOpportunities(ctx context.Context, params ListOpportunitiesParams) ([]models.MarketOpportunity, error)
	CountOpportunities(ctx context.Context, params ListOpportunitiesParams) (int64, error)
	UpdateOpportunity(ctx context.Context, item *models.MarketOpportunity) error
	ExpireOpportunities(ctx context.Context, now time.Time) (int64, error)

	// Plans
	InsertTradingPlan(ctx context.Context, item *models.TradingPlan) error
	UpdateTradingPlan(ctx context.Context, item *models.TradingPlan) error
	ListTradingPlans(ctx context.Context, params ListTradingPlansParams) ([]models.TradingPlan, error)
	CountTradingPlans(ctx context.Context, params ListTradingPlansParams) (int64, error)

	// Decisions
	InsertDecision(ctx context.Context, item *models.DecisionRecord) error
	GetDecisionByID(ctx context.Context, id uint64) (*models.DecisionRecord, error)
	UpdateDecision(ctx context.Context, item *models.DecisionRecord) error
	ListDecisions(ctx context.Context, params ListDecisionsParams) ([]models.DecisionRecord, error)
	CountDecisions(ctx context.Context, params ListDecisionsParams) (int64, error)

	// Trades
	InsertTrade(ctx context.Context, item *models.Trade) error
	UpdateTrade(ctx context.Context, item *models.Trade) error
	ListTrades(ctx context.Context, params ListTradesParams) ([]models.Trade, error)
	CountTrades(ctx context.Context, params ListTradesParams) (int64, error)

	// Positions and portfolio
	GetOpenPosition(ctx context.Context, symbol, account string) (*models.Position, error)
	GetPositionByOpenTradeID(ctx context.Context, tradeID uint64) (*models.Position, error)
	SavePosition(ctx context.Context, item *models.Position) error
	ListPositions(ctx context.Context, params ListPositionsParams) ([]models.Position, error)
	CountPositions(ctx context.Context, params ListPositionsParams) (int64, error)
	GetPortfolioByName(ctx context.Context, name string) (*models.Portfolio, error)
	SavePortfolio(ctx context.Context, item *models.Portfolio) error

	// Risk and alerts
	InsertRiskControlLog(ctx context.Context, item *models.RiskControlLog) error
	ListRiskControlLogs(ctx context.Context, params ListRiskControlLogsParams) ([]models.RiskControlLog, error)
	CountRiskControlLogs(ctx context.Context, params ListRiskControlLogsParams) (int64, error)
	InsertAlert(ctx context.Context, item *models.Alert) error
	ListAlerts(ctx context.Context, params ListAlertsParams) ([]models.Alert, error)
	CountAlerts(ctx context.Context, params ListAlertsParams) (int64, error)

	// Memories
	InsertMemory(ctx context.Context, item *models.AgentMemory) error
	UpdateMemory(ctx context.Context, item *models.AgentMemory) error
	GetMemoryBySource(ctx context.Context, source, sourceID string) (*models.AgentMemory, error)
	ListMemories(ctx context.Context, params ListMemoriesParams) ([]models.AgentMemory, error)
	CountMemories(ctx context.Context, params ListMemoriesParams) (int64, error)
	TouchMemories(ctx context.Context, ids []uint64, at time.Time) error

	// Strategies and reflection output
	UpsertStrategy(ctx context.Context, item *models.Strategy) error
	SaveStrategy(ctx context.Context, item *models.Strategy) error
	ListStrategies(ctx context.Context, params ListStrategiesParams) ([]models.Strategy, error)
	InsertStrategyEvolutionLog(ctx context.Context, item *models.StrategyEvolutionLog) error
	GetReviewReport(ctx context.Context, reviewType string, date time.Time) (*models.ReviewReport, error)
	InsertReviewReport(ctx context.Context, item *models.ReviewReport) error
	ListReviewReports(ctx context.Context, params ListReportsParams) ([]models.ReviewReport, error)
	CountReviewReports(ctx context.Context, params ListReportsParams) (int64, error)
	InsertEvolutionReport(ctx context.Context, item *models.EvolutionReport) error
	ListEvolutionReports(ctx context.Context, params ListReportsParams) ([]models.EvolutionReport, error)
	CountEvolutionReports(ctx context.Context, params ListReportsParams) (int64, error)
	InsertTradingPrinciples(ctx context.Context, items []models.TradingPrinciple) error
}

type ListSystemSettingsParams struct {
	Limit   int
	Offset  int
	Prefix  *string
	OrderBy string
	Asc     *bool
}

// ListMarketDataParams returns bars newest first.
type ListMarketDataParams struct {
	Limit  int
	Symbol *string
	Since  *time.Time
}

type ListNewsEventsParams struct {
	Limit    int
	Since    *time.Time
	MinLevel *int
}

type ListOpportunitiesParams struct {
	Limit         int
	Offset        int
	Statuses      []models.OpportunityStatus
	Symbol        *string
	Since         *time.Time
	MinConfidence *decimal.Decimal
	OrderBy       string
	Asc           *bool
}

type ListTradingPlansParams struct {
	Limit    int
	Offset   int
	Statuses []models.PlanStatus
	EndAfter *time.Time
	OrderBy  string
	Asc      *bool
}

type ListDecisionsParams struct {
	Limit   int
	Offset  int
	Symbol  *string
	Symbols []string
	Types   []models.DecisionType
	// Pending selects rows that were never picked up by execution.
	Pending  bool
	Executed *bool
	Since    *time.Time
	OrderBy  string
	Asc      *bool
}

type ListTradesParams struct {
	Limit       int
	Offset      int
	Symbol      *string
	Action      *models.TradeAction
	Status      *models.TradeStatus
	FilledSince *time.Time
	OrderBy     string
	Asc         *bool
}

type ListPositionsParams struct {
	Limit       int
	Offset      int
	AccountName *string
	Open        *bool
	Symbols     []string
	OpenedSince *time.Time
	OrderBy     string
	Asc         *bool
}

type ListRiskControlLogsParams struct {
	Limit   int
	Offset  int
	Action  *models.RiskAction
	Symbol  *string
	OrderBy string
	Asc     *bool
}

type ListAlertsParams struct {
	Limit  int
	Offset int
	Level  *models.AlertLevel
	Status *string
	Type   *string
	// ObjectType and ObjectID select alerts raised for one related row.
	ObjectType *string
	ObjectID   *uint64
	OrderBy    string
	Asc        *bool
}

type ListMemoriesParams struct {
	Limit  int
	Offset int
	Types  []models.MemoryType
	// MinImportance is inclusive, BelowImportance exclusive.
	MinImportance    *decimal.Decimal
	BelowImportance  *decimal.Decimal
	CreatedBefore    *time.Time
	VectorIDs        []string
	IncludeForgotten bool
	OrderBy          string
	Asc              *bool
}

type ListStrategiesParams struct {
	Limit          int
	Offset         int
	Active         *bool
	MinTotalReturn *decimal.Decimal
	OrderBy        string
	Asc            *bool
}

type ListReportsParams struct {
	Limit   int
	Offset  int
	Type    *string
	OrderBy string
	Asc     *bool
}
