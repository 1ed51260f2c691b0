package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// AgentMemory is one recollection with 5W1H fields and an optional vector in the vector store.
type AgentMemory struct {
	ID              uint64          `gorm:"primaryKey;autoIncrement"`
	MemoryType      MemoryType      `gorm:"type:varchar(20);not null;index"`
	Content         string          `gorm:"type:text;not null"`
	Summary         string          `gorm:"type:varchar(500)"`
	ImportanceScore decimal.Decimal `gorm:"type:numeric(20,10);not null;index"`

	When  *time.Time `gorm:"column:occurred_at;type:timestamptz"`
	Where string     `gorm:"column:place;type:varchar(200)"`
	What  string     `gorm:"type:varchar(500)"`
	Who   string     `gorm:"type:varchar(200)"`
	Why   string     `gorm:"type:text"`
	How   string     `gorm:"type:text"`

	RelatedSymbols datatypes.JSON `gorm:"type:jsonb"`
	RelatedTrades  datatypes.JSON `gorm:"type:jsonb"`
	Metadata       datatypes.JSON `gorm:"type:jsonb"`

	VectorID         *string `gorm:"type:varchar(100);index"`
	VectorCollection string  `gorm:"type:varchar(60)"`

	Source   string `gorm:"type:varchar(100);not null;index:idx_agent_memory_source,priority:1"`
	SourceID string `gorm:"type:varchar(100);index:idx_agent_memory_source,priority:2"`

	AccessCount  int        `gorm:"not null;default:0"`
	LastAccessed *time.Time `gorm:"type:timestamptz"`

	IsForgotten bool       `gorm:"not null;default:false;index"`
	ForgottenAt *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (AgentMemory) TableName() string {
	return "agent_memories"
}
