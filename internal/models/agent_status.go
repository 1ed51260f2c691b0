package models

import (
	"time"

	"gorm.io/datatypes"
)

// AgentStatus is the per-stage heartbeat row. One row per agent type.
type AgentStatus struct {
	ID        uint64     `gorm:"primaryKey;autoIncrement"`
	AgentType AgentType  `gorm:"type:varchar(20);not null;uniqueIndex"`
	Status    AgentState `gorm:"type:varchar(20);not null;default:'stopped';index"`

	LastHeartbeat *time.Time `gorm:"type:timestamptz"`
	LastAction    string     `gorm:"type:varchar(500)"`
	CurrentTask   string     `gorm:"type:text"`

	ErrorCount int    `gorm:"not null;default:0"`
	LastError  string `gorm:"type:text"`

	Metrics datatypes.JSON `gorm:"type:jsonb"`
	Config  datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime;index"`
}

func (AgentStatus) TableName() string {
	return "agent_statuses"
}
