package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// DecisionRecord is the output of one debate round for one symbol.
type DecisionRecord struct {
	ID            uint64       `gorm:"primaryKey;autoIncrement"`
	Symbol        string       `gorm:"type:varchar(50);not null;index"`
	OpportunityID *uint64      `gorm:"index"`
	DecisionType  DecisionType `gorm:"type:varchar(20);not null;index"`
	DecisionTime  time.Time    `gorm:"type:timestamptz;not null;index"`

	Proposal          datatypes.JSON   `gorm:"type:jsonb"`
	TargetPrice       *decimal.Decimal `gorm:"type:numeric(30,10)"`
	TargetQuantity    *int64
	TargetPositionPct decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`

	AggressiveView   string         `gorm:"type:text"`
	ConservativeView string         `gorm:"type:text"`
	QuantAnalysis    datatypes.JSON `gorm:"type:jsonb"`
	DebateSummary    string         `gorm:"type:text"`
	FinalDecision    string         `gorm:"type:text"`
	DegradedSteps    datatypes.JSON `gorm:"type:jsonb"`

	ConfidenceLevel ConfidenceLevel `gorm:"type:varchar(20);not null"`
	ConfidenceScore decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`

	StopLoss      *decimal.Decimal `gorm:"type:numeric(30,10)"`
	TakeProfit    *decimal.Decimal `gorm:"type:numeric(30,10)"`
	MaxLossAmount *decimal.Decimal `gorm:"type:numeric(30,10)"`

	IsExecuted      bool            `gorm:"not null;default:false;index"`
	ExecutionStatus ExecutionStatus `gorm:"type:varchar(20);index"`
	ExecutionTime   *time.Time      `gorm:"type:timestamptz"`
	ExecutionResult datatypes.JSON  `gorm:"type:jsonb"`

	Outcome      string           `gorm:"type:varchar(20)"`
	ActualReturn *decimal.Decimal `gorm:"type:numeric(20,10)"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (DecisionRecord) TableName() string {
	return "decision_records"
}
