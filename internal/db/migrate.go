package db

import (
	"tradeagents/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.AgentStatus{},
		&models.SystemSetting{},
		// market data (written by the collector)
		&models.MarketData{},
		&models.MarketIndex{},
		&models.MarketSentiment{},
		&models.NewsEvent{},
		&models.StockInfo{},
		// pipeline
		&models.MarketOpportunity{},
		&models.TradingPlan{},
		&models.DecisionRecord{},
		&models.Trade{},
		&models.Position{},
		&models.Portfolio{},
		&models.RiskControlLog{},
		&models.Alert{},
		// memory and reflection
		&models.AgentMemory{},
		&models.VectorRecord{},
		&models.Strategy{},
		&models.StrategyEvolutionLog{},
		&models.ReviewReport{},
		&models.EvolutionReport{},
		&models.TradingPrinciple{},
	)
}
