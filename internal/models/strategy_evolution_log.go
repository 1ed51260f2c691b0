package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type StrategyEvolutionLog struct {
	ID             uint64           `gorm:"primaryKey;autoIncrement"`
	StrategyID     string           `gorm:"type:varchar(100);not null;index"`
	EvolutionType  string           `gorm:"type:varchar(20);not null"`
	Operation      string           `gorm:"type:varchar(50);not null"`
	ParentGenes    datatypes.JSON   `gorm:"type:jsonb"`
	ChildGenes     datatypes.JSON   `gorm:"type:jsonb"`
	MutationParams datatypes.JSON   `gorm:"type:jsonb"`
	FitnessBefore  decimal.Decimal  `gorm:"type:numeric(20,10);not null;default:0"`
	FitnessAfter   *decimal.Decimal `gorm:"type:numeric(20,10)"`
	Reason         string           `gorm:"type:text"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (StrategyEvolutionLog) TableName() string {
	return "strategy_evolution_logs"
}
