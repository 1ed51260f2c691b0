package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PayloadSchemaVersion is stamped on every typed JSON column value.
const PayloadSchemaVersion = 1

// Proposal is DecisionRecord.proposal.
type Proposal struct {
	SchemaVersion   int             `json:"schema_version"`
	OpportunityID   uint64          `json:"opportunity_id"`
	OpportunityType string          `json:"opportunity_type"`
	CurrentPrice    decimal.Decimal `json:"current_price"`
	StrategyID      string          `json:"strategy_id,omitempty"`
}

// QuantAnalysis is DecisionRecord.quant_analysis. WinRate and AvgReturn are always locally computed.
type QuantAnalysis struct {
	SchemaVersion   int      `json:"schema_version"`
	Validation      string   `json:"validation"`
	WinRate         float64  `json:"win_rate"`
	AvgReturn       float64  `json:"avg_return"`
	SampleSize      int      `json:"sample_size"`
	RiskRewardRatio float64  `json:"risk_reward_ratio"`
	Concerns        []string `json:"concerns"`
	Notes           string   `json:"notes,omitempty"`
	Degraded        bool     `json:"degraded,omitempty"`
}

// ExecutionResult is DecisionRecord.execution_result.
type ExecutionResult struct {
	SchemaVersion    int             `json:"schema_version"`
	Status           ExecutionStatus `json:"status"`
	TradeID          string          `json:"trade_id,omitempty"`
	ExecutedPrice    decimal.Decimal `json:"executed_price"`
	ExecutedQuantity int64           `json:"executed_quantity"`
	RiskChecks       []string        `json:"risk_checks"`
	Reason           string          `json:"reason,omitempty"`
}

// RiskIndicators is RiskControlLog.risk_indicators.
type RiskIndicators struct {
	SchemaVersion    int             `json:"schema_version"`
	TargetPosition   decimal.Decimal `json:"target_position"`
	AdjustedPosition decimal.Decimal `json:"adjusted_position"`
	AvailableCash    decimal.Decimal `json:"available_cash"`
	TotalAsset       decimal.Decimal `json:"total_asset"`
	TodayReturn      decimal.Decimal `json:"today_return"`
	MaxDrawdown      decimal.Decimal `json:"max_drawdown"`
}

// ExecutionQuality is Trade.execution_quality.
type ExecutionQuality struct {
	SchemaVersion   int        `json:"schema_version"`
	RiskAction      RiskAction `json:"risk_action"`
	RiskChecks      []string   `json:"risk_checks"`
	ExecutionTimeMs int64      `json:"execution_time_ms"`
}

// AgentMetrics is AgentStatus.metrics.
type AgentMetrics struct {
	SchemaVersion  int            `json:"schema_version"`
	LastRunAt      *time.Time     `json:"last_run_at,omitempty"`
	LastDurationMs int64          `json:"last_duration_ms"`
	DegradedTotal  int64          `json:"degraded_total"`
	Runs           int64          `json:"runs"`
	LastSummary    map[string]any `json:"last_summary,omitempty"`
}

// MarketContext is TradingPlan.market_conditions.
type MarketContext struct {
	SchemaVersion  int       `json:"schema_version"`
	Timestamp      time.Time `json:"timestamp"`
	Trend          string    `json:"trend"`
	Volatility     string    `json:"volatility"`
	Sentiment      string    `json:"sentiment"`
	FearGreedIndex *float64  `json:"fear_greed_index,omitempty"`
	Degraded       bool      `json:"degraded,omitempty"`
}

// PlanStrategy is one element of TradingPlan.strategies.
type PlanStrategy struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Parameters map[string]any `json:"parameters"`
	Return     float64        `json:"return"`
	Sharpe     float64        `json:"sharpe"`
	WinRate    float64        `json:"win_rate"`
}

// RiskLimits is TradingPlan.risk_limits.
type RiskLimits struct {
	MaxPositionPerSymbol float64 `json:"max_position_per_symbol"`
	MaxSectorExposure    float64 `json:"max_sector_exposure"`
	MaxDailyLoss         float64 `json:"max_daily_loss"`
	StopLossPct          float64 `json:"stop_loss_pct"`
}

// ReviewCase is one element of ReviewReport.success_cases / failure_cases.
type ReviewCase struct {
	TradeID    string  `json:"trade_id"`
	Symbol     string  `json:"symbol"`
	PnL        float64 `json:"pnl"`
	PnLPct     float64 `json:"pnl_pct"`
	Reason     string  `json:"reason"`
	StrategyID *uint64 `json:"strategy_id,omitempty"`
}

// Lesson is one element of ReviewReport.lessons_learned.
type Lesson struct {
	Type                string   `json:"type"`
	Lesson              string   `json:"lesson"`
	ApplicableScenarios []string `json:"applicable_scenarios"`
	Confidence          float64  `json:"confidence"`
}

// EvolutionOperation is one element of EvolutionReport.evolution_operations.
type EvolutionOperation struct {
	Type       string         `json:"type"`
	StrategyID string         `json:"strategy"`
	Old        map[string]any `json:"old"`
	New        map[string]any `json:"new"`
}

// EncodeJSON marshals v for a jsonb column; marshal failures yield "{}".
func EncodeJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte("{}"))
	}
	return datatypes.JSON(b)
}

// DecodeJSON unmarshals a jsonb column into T. Empty columns decode to the zero value.
func DecodeJSON[T any](raw datatypes.JSON) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, nil
	}
	err := json.Unmarshal(raw, &out)
	return out, err
}
