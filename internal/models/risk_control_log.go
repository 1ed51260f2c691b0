package models

import (
	"time"

	"gorm.io/datatypes"
)

// RiskControlLog is an append-only audit row per risk decision.
type RiskControlLog struct {
	ID          uint64     `gorm:"primaryKey;autoIncrement"`
	RiskType    string     `gorm:"type:varchar(20);not null;index"`
	Action      RiskAction `gorm:"type:varchar(20);not null;index"`
	PortfolioID *uint64    `gorm:"index"`
	TradeID     *uint64    `gorm:"index"`
	Symbol      string     `gorm:"type:varchar(50);index"`

	RiskIndicators datatypes.JSON `gorm:"type:jsonb;not null"`
	TriggerRules   datatypes.JSON `gorm:"type:jsonb;not null"`
	Description    string         `gorm:"type:text"`
	Recommendation string         `gorm:"type:text"`
	Executed       bool           `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (RiskControlLog) TableName() string {
	return "risk_control_logs"
}
