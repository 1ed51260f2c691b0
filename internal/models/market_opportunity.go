package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// MarketOpportunity is a candidate trade idea awaiting a decision.
type MarketOpportunity struct {
	ID              uint64            `gorm:"primaryKey;autoIncrement"`
	Symbol          string            `gorm:"type:varchar(50);not null;index"`
	OpportunityType string            `gorm:"type:varchar(30);not null"`
	Status          OpportunityStatus `gorm:"type:varchar(20);not null;default:'identified';index"`

	// DedupeKey is symbol|type|day for machine-identified opportunities; nil for manual rows.
	DedupeKey *string `gorm:"type:varchar(120);uniqueIndex"`

	IdentifiedAt time.Time  `gorm:"type:timestamptz;not null;index"`
	ValidUntil   *time.Time `gorm:"type:timestamptz;index"`

	Description       string          `gorm:"type:text"`
	Rationale         string          `gorm:"type:text"`
	ExpectedReturn    decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`
	RiskLevel         int             `gorm:"not null;default:5"`
	ConfidenceScore   decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`
	TriggerConditions datatypes.JSON  `gorm:"type:jsonb"`

	EntryPrice *decimal.Decimal `gorm:"type:numeric(30,10)"`
	DecisionID *uint64          `gorm:"index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (MarketOpportunity) TableName() string {
	return "market_opportunities"
}
