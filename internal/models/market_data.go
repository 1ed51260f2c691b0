package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// MarketData is one OHLCV bar. Written by the external collector; read-only to the agents.
type MarketData struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	Symbol    string    `gorm:"type:varchar(50);not null;uniqueIndex:uq_market_data_bar,priority:1;index"`
	Market    string    `gorm:"type:varchar(20);not null;uniqueIndex:uq_market_data_bar,priority:2"`
	Timestamp time.Time `gorm:"type:timestamptz;not null;uniqueIndex:uq_market_data_bar,priority:3;index"`

	Open   decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	High   decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	Low    decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	Close  decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	Volume int64           `gorm:"not null;default:0"`

	Amount       *decimal.Decimal `gorm:"type:numeric(30,10)"`
	ChangePct    *decimal.Decimal `gorm:"type:numeric(20,10)"`
	TurnoverRate *decimal.Decimal `gorm:"type:numeric(20,10)"`

	DataSource string         `gorm:"type:varchar(50);not null;default:'unknown'"`
	RawData    datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (MarketData) TableName() string {
	return "market_data"
}

type MarketIndex struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	IndexCode string    `gorm:"type:varchar(50);not null;uniqueIndex:uq_market_index_ts,priority:1"`
	IndexName string    `gorm:"type:varchar(100);not null"`
	Timestamp time.Time `gorm:"type:timestamptz;not null;uniqueIndex:uq_market_index_ts,priority:2;index"`

	Value     decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	ChangePct decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`
	RiseCount *int
	FallCount *int

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (MarketIndex) TableName() string {
	return "market_indices"
}

type MarketSentiment struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	Timestamp time.Time `gorm:"type:timestamptz;not null;index"`

	VIX                  *decimal.Decimal `gorm:"column:vix;type:numeric(20,10)"`
	FearGreedIndex       *decimal.Decimal `gorm:"type:numeric(20,10)"`
	PutCallRatio         *decimal.Decimal `gorm:"type:numeric(20,10)"`
	SocialSentimentScore *decimal.Decimal `gorm:"type:numeric(20,10)"`
	Sentiment            string           `gorm:"type:varchar(20)"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (MarketSentiment) TableName() string {
	return "market_sentiments"
}

type NewsEvent struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	Title       string    `gorm:"type:varchar(500);not null"`
	Content     string    `gorm:"type:text"`
	Source      string    `gorm:"type:varchar(100)"`
	URL         string    `gorm:"type:varchar(1000)"`
	PublishedAt time.Time `gorm:"type:timestamptz;not null;index"`

	// EventLevel is 1-10; 10 is a black-swan event.
	EventLevel     *int             `gorm:"index"`
	SentimentScore *decimal.Decimal `gorm:"type:numeric(20,10)"`
	ImpactAnalysis string           `gorm:"type:text"`
	RelatedSymbols datatypes.JSON   `gorm:"type:jsonb"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (NewsEvent) TableName() string {
	return "news_events"
}

type StockInfo struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`
	Symbol   string `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name     string `gorm:"type:varchar(200);not null"`
	Market   string `gorm:"type:varchar(20);not null"`
	Industry string `gorm:"type:varchar(100)"`
	Sector   string `gorm:"type:varchar(100)"`
	IsActive bool   `gorm:"not null;default:true"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (StockInfo) TableName() string {
	return "stock_infos"
}
