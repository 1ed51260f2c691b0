package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type TradingPlan struct {
	ID        uint64     `gorm:"primaryKey;autoIncrement"`
	PlanType  string     `gorm:"type:varchar(20);not null;index"`
	PlanDate  time.Time  `gorm:"type:date;not null;index"`
	Status    PlanStatus `gorm:"type:varchar(20);not null;default:'draft';index"`
	Priority  string     `gorm:"type:varchar(20);not null;default:'medium'"`
	AgentType AgentType  `gorm:"type:varchar(20);not null"`

	MarketConditions   datatypes.JSON `gorm:"type:jsonb"`
	TargetSymbols      datatypes.JSON `gorm:"type:jsonb"`
	TargetSectors      datatypes.JSON `gorm:"type:jsonb"`
	PositionAllocation datatypes.JSON `gorm:"type:jsonb"`
	Strategies         datatypes.JSON `gorm:"type:jsonb"`
	EntryConditions    datatypes.JSON `gorm:"type:jsonb"`
	ExitConditions     datatypes.JSON `gorm:"type:jsonb"`
	RiskLimits         datatypes.JSON `gorm:"type:jsonb"`
	ActionSteps        datatypes.JSON `gorm:"type:jsonb"`

	ExpectedReturn  *decimal.Decimal `gorm:"type:numeric(20,10)"`
	ConfidenceScore decimal.Decimal  `gorm:"type:numeric(20,10);not null;default:0"`
	ActualReturn    *decimal.Decimal `gorm:"type:numeric(20,10)"`
	CompletionRate  *decimal.Decimal `gorm:"type:numeric(20,10)"`

	PlanStart time.Time  `gorm:"type:timestamptz;not null;index"`
	PlanEnd   *time.Time `gorm:"type:timestamptz;index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (TradingPlan) TableName() string {
	return "trading_plans"
}
