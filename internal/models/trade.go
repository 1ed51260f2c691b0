package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Trade is one simulated order fill.
type Trade struct {
	ID          uint64      `gorm:"primaryKey;autoIncrement"`
	TradeID     string      `gorm:"type:varchar(100);not null;uniqueIndex"`
	Symbol      string      `gorm:"type:varchar(50);not null;index"`
	Action      TradeAction `gorm:"type:varchar(10);not null"`
	AccountType string      `gorm:"type:varchar(20);not null;default:'simulation'"`
	AccountName string      `gorm:"type:varchar(100);index"`

	OrderPrice     decimal.Decimal  `gorm:"type:numeric(30,10);not null"`
	OrderQuantity  int64            `gorm:"not null"`
	FilledPrice    *decimal.Decimal `gorm:"type:numeric(30,10)"`
	FilledQuantity int64            `gorm:"not null;default:0"`

	Status     TradeStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	OrderTime  time.Time   `gorm:"type:timestamptz;not null;index"`
	FilledTime *time.Time  `gorm:"type:timestamptz;index"`

	Commission  decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	Slippage    decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`

	StrategyID      *uint64 `gorm:"index"`
	DecisionID      *uint64 `gorm:"index"`
	DecisionProcess string  `gorm:"type:text"`
	Reason          string  `gorm:"type:text"`

	StopLoss         *decimal.Decimal `gorm:"type:numeric(30,10)"`
	TakeProfit       *decimal.Decimal `gorm:"type:numeric(30,10)"`
	ExecutionQuality datatypes.JSON   `gorm:"type:jsonb"`

	PnL     *decimal.Decimal `gorm:"column:pnl;type:numeric(30,10)"`
	PnLPct  *decimal.Decimal `gorm:"column:pnl_pct;type:numeric(20,10)"`
	Outcome string           `gorm:"type:varchar(20)"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Trade) TableName() string {
	return "trades"
}
