package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Strategy is a parameterized trading strategy and its running performance.
type Strategy struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	StrategyID   string `gorm:"type:varchar(100);not null;uniqueIndex"`
	Name         string `gorm:"type:varchar(200);not null"`
	StrategyType string `gorm:"type:varchar(50);not null;index"`
	Description  string `gorm:"type:text"`
	Status       string `gorm:"type:varchar(20);not null;default:'active'"`
	IsActive     bool   `gorm:"not null;default:true;index"`

	Parameters datatypes.JSON `gorm:"type:jsonb;not null"`

	WinRate     decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`
	SharpeRatio decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`
	MaxDrawdown decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`
	TotalReturn decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`
	TotalTrades int             `gorm:"not null;default:0"`

	Generation     int     `gorm:"not null;default:1"`
	ParentStrategy *string `gorm:"type:varchar(100)"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Strategy) TableName() string {
	return "strategies"
}
