package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is a holding of one symbol in one account. At most one open row per (symbol, account_name).
type Position struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	Symbol      string `gorm:"type:varchar(50);not null;index"`
	AccountType string `gorm:"type:varchar(20);not null;default:'simulation'"`
	AccountName string `gorm:"type:varchar(100);not null;index"`

	Quantity          int64           `gorm:"not null;default:0"`
	AvailableQuantity int64           `gorm:"not null;default:0"`
	AvgCost           decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	TotalCost         decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`

	CurrentPrice     *decimal.Decimal `gorm:"type:numeric(30,10)"`
	MarketValue      *decimal.Decimal `gorm:"type:numeric(30,10)"`
	UnrealizedPnL    *decimal.Decimal `gorm:"column:unrealized_pnl;type:numeric(30,10)"`
	UnrealizedPnLPct *decimal.Decimal `gorm:"column:unrealized_pnl_pct;type:numeric(20,10)"`
	RealizedPnL      decimal.Decimal  `gorm:"column:realized_pnl;type:numeric(30,10);not null;default:0"`

	StopLoss   *decimal.Decimal `gorm:"type:numeric(30,10)"`
	TakeProfit *decimal.Decimal `gorm:"type:numeric(30,10)"`

	StrategyID  *uint64    `gorm:"index"`
	OpenTradeID *uint64    `gorm:"index"`
	OpenedAt    time.Time  `gorm:"type:timestamptz;not null;index"`
	IsClosed    bool       `gorm:"not null;default:false;index"`
	ClosedAt    *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Position) TableName() string {
	return "positions"
}
