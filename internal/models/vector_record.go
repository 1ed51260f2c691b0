package models

import (
	"time"

	"gorm.io/datatypes"
)

// VectorRecord is a document in the relational vector store.
type VectorRecord struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	Collection string `gorm:"type:varchar(60);not null;uniqueIndex:uq_vector_doc,priority:1"`
	DocID      string `gorm:"type:varchar(100);not null;uniqueIndex:uq_vector_doc,priority:2"`

	Content   string         `gorm:"type:text"`
	Metadata  datatypes.JSON `gorm:"type:jsonb"`
	Embedding datatypes.JSON `gorm:"type:jsonb;not null"`
	Dims      int            `gorm:"not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (VectorRecord) TableName() string {
	return "vector_records"
}
