package gormrepository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradeagents/internal/models"
	"tradeagents/internal/repository"
)

// --- memories ---------------------------------------------------------------

func (s *Store) InsertMemory(ctx context.Context, item *models.AgentMemory) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) UpdateMemory(ctx context.Context, item *models.AgentMemory) error {
	if s == nil || s.db == nil || item == nil || item.ID == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Save(item).Error
}

func (s *Store) GetMemoryBySource(ctx context.Context, source, sourceID string) (*models.AgentMemory, error) {
	if s == nil || s.db == nil || source == "" || sourceID == "" {
		return nil, nil
	}
	var item models.AgentMemory
	err := s.db.WithContext(ctx).
		Where("source = ?", source).
		Where("source_id = ?", sourceID).
		First(&item).Error
	return found(&item, err)
}

func (s *Store) ListMemories(ctx context.Context, params repository.ListMemoriesParams) ([]models.AgentMemory, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyOrder(memoryQuery(s.db.WithContext(ctx), params), params.OrderBy, params.Asc, "created_at")
	var items []models.AgentMemory
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountMemories(ctx context.Context, params repository.ListMemoriesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := memoryQuery(s.db.WithContext(ctx), params).Count(&total).Error
	return total, err
}

func memoryQuery(db *gorm.DB, params repository.ListMemoriesParams) *gorm.DB {
	query := db.Model(&models.AgentMemory{})
	if len(params.Types) > 0 {
		query = query.Where("memory_type IN ?", params.Types)
	}
	if params.MinImportance != nil {
		query = query.Where("importance_score >= ?", *params.MinImportance)
	}
	if params.BelowImportance != nil {
		query = query.Where("importance_score < ?", *params.BelowImportance)
	}
	if params.CreatedBefore != nil {
		query = query.Where("created_at < ?", *params.CreatedBefore)
	}
	if ids := cleanStrings(params.VectorIDs); len(ids) > 0 {
		query = query.Where("vector_id IN ?", ids)
	}
	if !params.IncludeForgotten {
		query = query.Where("is_forgotten = ?", false)
	}
	return query
}

func (s *Store) TouchMemories(ctx context.Context, ids []uint64, at time.Time) error {
	if s == nil || s.db == nil || len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.AgentMemory{}).
		Where("id IN ?", ids).
		UpdateColumns(map[string]any{
			"access_count":  gorm.Expr("access_count + 1"),
			"last_accessed": at,
		}).Error
}

// --- strategies -------------------------------------------------------------

func (s *Store) UpsertStrategy(ctx context.Context, item *models.Strategy) error {
	if s == nil || s.db == nil || item == nil || item.StrategyID == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "strategy_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name",
			"strategy_type",
			"description",
			"status",
			"is_active",
			"parameters",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) SaveStrategy(ctx context.Context, item *models.Strategy) error {
	if s == nil || s.db == nil || item == nil || item.ID == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Save(item).Error
}

func (s *Store) ListStrategies(ctx context.Context, params repository.ListStrategiesParams) ([]models.Strategy, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.Strategy{})
	if params.Active != nil {
		query = query.Where("is_active = ?", *params.Active)
	}
	if params.MinTotalReturn != nil {
		query = query.Where("total_return >= ?", *params.MinTotalReturn)
	}
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	var items []models.Strategy
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) InsertStrategyEvolutionLog(ctx context.Context, item *models.StrategyEvolutionLog) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

// --- reports ----------------------------------------------------------------

func (s *Store) GetReviewReport(ctx context.Context, reviewType string, date time.Time) (*models.ReviewReport, error) {
	if s == nil || s.db == nil || reviewType == "" {
		return nil, nil
	}
	var item models.ReviewReport
	err := s.db.WithContext(ctx).
		Where("review_type = ?", reviewType).
		Where("review_date = ?", date).
		First(&item).Error
	return found(&item, err)
}

func (s *Store) InsertReviewReport(ctx context.Context, item *models.ReviewReport) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListReviewReports(ctx context.Context, params repository.ListReportsParams) ([]models.ReviewReport, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := reportQuery(s.db.WithContext(ctx).Model(&models.ReviewReport{}), "review_type", params)
	query = applyOrder(query, params.OrderBy, params.Asc, "review_date")
	var items []models.ReviewReport
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountReviewReports(ctx context.Context, params repository.ListReportsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := reportQuery(s.db.WithContext(ctx).Model(&models.ReviewReport{}), "review_type", params).Count(&total).Error
	return total, err
}

func (s *Store) InsertEvolutionReport(ctx context.Context, item *models.EvolutionReport) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListEvolutionReports(ctx context.Context, params repository.ListReportsParams) ([]models.EvolutionReport, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := reportQuery(s.db.WithContext(ctx).Model(&models.EvolutionReport{}), "evolution_type", params)
	query = applyOrder(query, params.OrderBy, params.Asc, "created_at")
	var items []models.EvolutionReport
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountEvolutionReports(ctx context.Context, params repository.ListReportsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := reportQuery(s.db.WithContext(ctx).Model(&models.EvolutionReport{}), "evolution_type", params).Count(&total).Error
	return total, err
}

func reportQuery(query *gorm.DB, typeColumn string, params repository.ListReportsParams) *gorm.DB {
	if v, ok := trimmed(params.Type); ok {
		query = query.Where(typeColumn+" = ?", v)
	}
	return query
}

func (s *Store) InsertTradingPrinciples(ctx context.Context, items []models.TradingPrinciple) error {
	if s == nil || s.db == nil || len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(items, 100).Error
}
