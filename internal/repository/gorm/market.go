package gormrepository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"

	"tradeagents/internal/models"
	"tradeagents/internal/repository"
)

func (s *Store) UpsertMarketData(ctx context.Context, items []models.MarketData) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}, {Name: "market"}, {Name: "timestamp"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"open", "high", "low", "close", "volume", "amount",
			"change_pct", "turnover_rate", "data_source", "raw_data", "updated_at",
		}),
	}).CreateInBatches(items, 200).Error
}

func (s *Store) GetLatestMarketData(ctx context.Context, symbol string) (*models.MarketData, error) {
	if s == nil || s.db == nil || symbol == "" {
		return nil, nil
	}
	var item models.MarketData
	err := s.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("timestamp desc").
		First(&item).Error
	return found(&item, err)
}

func (s *Store) ListMarketData(ctx context.Context, params repository.ListMarketDataParams) ([]models.MarketData, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.MarketData{})
	if v, ok := trimmed(params.Symbol); ok {
		query = query.Where("symbol = ?", v)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("timestamp >= ?", *params.Since)
	}
	var items []models.MarketData
	if err := query.Order("timestamp desc").Limit(normalizeLimit(params.Limit, 100)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListActiveSymbols(ctx context.Context, since time.Time, limit int) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var symbols []string
	err := s.db.WithContext(ctx).
		Model(&models.MarketData{}).
		Where("timestamp >= ?", since).
		Distinct("symbol").
		Order("symbol asc").
		Limit(normalizeLimit(limit, 20)).
		Pluck("symbol", &symbols).Error
	if err != nil {
		return nil, err
	}
	return cleanStrings(symbols), nil
}

// ListLatestIndices returns the newest row per index code recorded since the given time.
func (s *Store) ListLatestIndices(ctx context.Context, since time.Time, limit int) ([]models.MarketIndex, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	limit = normalizeLimit(limit, 5)
	var rows []models.MarketIndex
	if err := s.db.WithContext(ctx).
		Where("timestamp >= ?", since).
		Order("index_code asc").
		Order("timestamp desc").
		Limit(500).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.MarketIndex, 0, limit)
	seen := map[string]struct{}{}
	for _, row := range rows {
		if _, ok := seen[row.IndexCode]; ok {
			continue
		}
		seen[row.IndexCode] = struct{}{}
		out = append(out, row)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) GetLatestSentiment(ctx context.Context) (*models.MarketSentiment, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.MarketSentiment
	err := s.db.WithContext(ctx).Order("timestamp desc").First(&item).Error
	return found(&item, err)
}

func (s *Store) InsertMarketSentiment(ctx context.Context, item *models.MarketSentiment) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetNewsEventByID(ctx context.Context, id uint64) (*models.NewsEvent, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.NewsEvent
	err := s.db.WithContext(ctx).First(&item, id).Error
	return found(&item, err)
}

func (s *Store) ListNewsEvents(ctx context.Context, params repository.ListNewsEventsParams) ([]models.NewsEvent, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.NewsEvent{})
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("published_at >= ?", *params.Since)
	}
	if params.MinLevel != nil {
		query = query.Where("event_level >= ?", *params.MinLevel)
	}
	var items []models.NewsEvent
	if err := query.Order("published_at desc").Limit(normalizeLimit(params.Limit, 100)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) UpdateNewsAnalysis(ctx context.Context, id uint64, level *int, sentiment *decimal.Decimal, impact string) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.NewsEvent{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"event_level":     level,
			"sentiment_score": sentiment,
			"impact_analysis": impact,
		}).Error
}
