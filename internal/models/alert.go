package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Alert struct {
	ID                uint64     `gorm:"primaryKey;autoIncrement"`
	AlertLevel        AlertLevel `gorm:"type:varchar(20);not null;index"`
	AlertType         string     `gorm:"type:varchar(30);not null;index"`
	Status            string     `gorm:"type:varchar(20);not null;default:'open';index"`
	Title             string     `gorm:"type:varchar(200);not null"`
	Message           string     `gorm:"type:text"`
	RelatedObjectType string     `gorm:"type:varchar(30)"`
	RelatedObjectID   *uint64    `gorm:"index"`

	TriggerValue *decimal.Decimal `gorm:"type:numeric(30,10)"`
	Threshold    *decimal.Decimal `gorm:"type:numeric(30,10)"`
	TriggeredAt  time.Time        `gorm:"type:timestamptz;not null;index"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (Alert) TableName() string {
	return "alerts"
}
