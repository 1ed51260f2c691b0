package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Portfolio is one simulated trading account. Ratios (returns, drawdown) are fractions.
type Portfolio struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	AccountName string `gorm:"type:varchar(100);not null;uniqueIndex"`
	AccountType string `gorm:"type:varchar(20);not null;default:'simulation'"`

	InitialCapital decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	TotalAsset     decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	Cash           decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	MarketValue    decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	AvailableCash  decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	FrozenCash     decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`

	TotalPnL      decimal.Decimal `gorm:"column:total_pnl;type:numeric(30,10);not null;default:0"`
	TotalReturn   decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`
	TodayPnL      decimal.Decimal `gorm:"column:today_pnl;type:numeric(30,10);not null;default:0"`
	TodayReturn   decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`
	DayStartAsset decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	DayStartDate  *time.Time      `gorm:"type:date"`

	TotalTrades int `gorm:"not null;default:0"`
	WinTrades   int `gorm:"not null;default:0"`
	LoseTrades  int `gorm:"not null;default:0"`

	PeakAsset   decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	MaxDrawdown decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`

	RiskPreference string `gorm:"type:varchar(50);not null;default:'balanced'"`
	IsActive       bool   `gorm:"not null;default:true;index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Portfolio) TableName() string {
	return "portfolios"
}
