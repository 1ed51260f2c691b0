package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ReviewReport is one periodic trading review. One row per (review_type, review_date).
type ReviewReport struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	ReviewType  string    `gorm:"type:varchar(20);not null;uniqueIndex:uq_review_period,priority:1"`
	ReviewDate  time.Time `gorm:"type:date;not null;uniqueIndex:uq_review_period,priority:2"`
	PeriodStart time.Time `gorm:"type:timestamptz;not null"`
	PeriodEnd   time.Time `gorm:"type:timestamptz;not null"`

	TradesCount  int             `gorm:"not null;default:0"`
	WinCount     int             `gorm:"not null;default:0"`
	LossCount    int             `gorm:"not null;default:0"`
	WinRate      decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`
	TotalPnL     decimal.Decimal `gorm:"column:total_pnl;type:numeric(30,10);not null;default:0"`
	AvgProfit    decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	AvgLoss      decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	ProfitFactor decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`

	SuccessCases           datatypes.JSON `gorm:"type:jsonb"`
	FailureCases           datatypes.JSON `gorm:"type:jsonb"`
	KeyInsights            datatypes.JSON `gorm:"type:jsonb"`
	LessonsLearned         datatypes.JSON `gorm:"type:jsonb"`
	ImprovementSuggestions datatypes.JSON `gorm:"type:jsonb"`
	StrategyAdjustments    datatypes.JSON `gorm:"type:jsonb"`

	EmotionalState  string          `gorm:"type:varchar(50)"`
	CognitiveBiases datatypes.JSON  `gorm:"type:jsonb"`
	OverallRating   decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`
	ConfidenceLevel decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`
	Degraded        bool            `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (ReviewReport) TableName() string {
	return "review_reports"
}
