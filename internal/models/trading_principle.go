package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// TradingPrinciple is a lesson distilled from reviews.
type TradingPrinciple struct {
	ID                  uint64          `gorm:"primaryKey;autoIncrement"`
	PrincipleType       string          `gorm:"type:varchar(30);not null;index"`
	Content             string          `gorm:"type:text;not null"`
	ApplicableScenarios datatypes.JSON  `gorm:"type:jsonb"`
	ConfidenceScore     decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`
	Source              string          `gorm:"type:varchar(50);not null;index"`
	IsActive            bool            `gorm:"not null;default:true"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (TradingPrinciple) TableName() string {
	return "trading_principles"
}
