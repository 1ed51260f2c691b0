package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type EvolutionReport struct {
	ID                     uint64          `gorm:"primaryKey;autoIncrement"`
	EvolutionType          string          `gorm:"type:varchar(30);not null;index"`
	TriggerReason          string          `gorm:"type:text"`
	BeforeState            datatypes.JSON  `gorm:"type:jsonb"`
	AfterState             datatypes.JSON  `gorm:"type:jsonb"`
	EvolutionOperations    datatypes.JSON  `gorm:"type:jsonb"`
	PerformanceImprovement decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`
	KeyLearnings           datatypes.JSON  `gorm:"type:jsonb"`
	NextSteps              datatypes.JSON  `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (EvolutionReport) TableName() string {
	return "evolution_reports"
}
