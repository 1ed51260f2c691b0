package gormrepository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradeagents/internal/models"
	"tradeagents/internal/repository"
)

// --- opportunities ----------------------------------------------------------

func (s *Store) InsertOpportunity(ctx context.Context, item *models.MarketOpportunity) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) InsertOpportunityIfAbsent(ctx context.Context, item *models.MarketOpportunity) (bool, error) {
	if s == nil || s.db == nil || item == nil {
		return false, nil
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedupe_key"}},
		DoNothing: true,
	}).Create(item)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) GetOpportunityByID(ctx context.Context, id uint64) (*models.MarketOpportunity, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.MarketOpportunity
	err := s.db.WithContext(ctx).First(&item, id).Error
	return found(&item, err)
}

func (s *Store) ListOpportunities(ctx context.Context, params repository.ListOpportunitiesParams) ([]models.MarketOpportunity, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyOrder(opportunityQuery(s.db.WithContext(ctx), params), params.OrderBy, params.Asc, "identified_at")
	var items []models.MarketOpportunity
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountOpportunities(ctx context.Context, params repository.ListOpportunitiesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := opportunityQuery(s.db.WithContext(ctx), params).Count(&total).Error
	return total, err
}

func opportunityQuery(db *gorm.DB, params repository.ListOpportunitiesParams) *gorm.DB {
	query := db.Model(&models.MarketOpportunity{})
	if len(params.Statuses) > 0 {
		query = query.Where("status IN ?", params.Statuses)
	}
	if v, ok := trimmed(params.Symbol); ok {
		query = query.Where("symbol = ?", v)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("identified_at >= ?", *params.Since)
	}
	if params.MinConfidence != nil {
		query = query.Where("confidence_score >= ?", *params.MinConfidence)
	}
	return query
}

func (s *Store) UpdateOpportunity(ctx context.Context, item *models.MarketOpportunity) error {
	if s == nil || s.db == nil || item == nil || item.ID == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Save(item).Error
}

func (s *Store) ExpireOpportunities(ctx context.Context, now time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	res := s.db.WithContext(ctx).
		Model(&models.MarketOpportunity{}).
		Where("status IN ?", []models.OpportunityStatus{
			models.OpportunityIdentified,
			models.OpportunityAnalyzing,
			models.OpportunityValidated,
		}).
		Where("valid_until IS NOT NULL").
		Where("valid_until < ?", now).
		Updates(map[string]any{"status": models.OpportunityExpired, "updated_at": now})
	return res.RowsAffected, res.Error
}

// --- plans ------------------------------------------------------------------

func (s *Store) InsertTradingPlan(ctx context.Context, item *models.TradingPlan) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) UpdateTradingPlan(ctx context.Context, item *models.TradingPlan) error {
	if s == nil || s.db == nil || item == nil || item.ID == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Save(item).Error
}

func (s *Store) ListTradingPlans(ctx context.Context, params repository.ListTradingPlansParams) ([]models.TradingPlan, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyOrder(planQuery(s.db.WithContext(ctx), params), params.OrderBy, params.Asc, "created_at")
	var items []models.TradingPlan
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountTradingPlans(ctx context.Context, params repository.ListTradingPlansParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := planQuery(s.db.WithContext(ctx), params).Count(&total).Error
	return total, err
}

func planQuery(db *gorm.DB, params repository.ListTradingPlansParams) *gorm.DB {
	query := db.Model(&models.TradingPlan{})
	if len(params.Statuses) > 0 {
		query = query.Where("status IN ?", params.Statuses)
	}
	if params.EndAfter != nil {
		query = query.Where("plan_end >= ?", *params.EndAfter)
	}
	return query
}

// --- decisions --------------------------------------------------------------

func (s *Store) InsertDecision(ctx context.Context, item *models.DecisionRecord) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) GetDecisionByID(ctx context.Context, id uint64) (*models.DecisionRecord, error) {
	if s == nil || s.db == nil || id == 0 {
		return nil, nil
	}
	var item models.DecisionRecord
	err := s.db.WithContext(ctx).First(&item, id).Error
	return found(&item, err)
}

func (s *Store) UpdateDecision(ctx context.Context, item *models.DecisionRecord) error {
	if s == nil || s.db == nil || item == nil || item.ID == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Save(item).Error
}

func (s *Store) ListDecisions(ctx context.Context, params repository.ListDecisionsParams) ([]models.DecisionRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyOrder(decisionQuery(s.db.WithContext(ctx), params), params.OrderBy, params.Asc, "decision_time")
	var items []models.DecisionRecord
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountDecisions(ctx context.Context, params repository.ListDecisionsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := decisionQuery(s.db.WithContext(ctx), params).Count(&total).Error
	return total, err
}

func decisionQuery(db *gorm.DB, params repository.ListDecisionsParams) *gorm.DB {
	query := db.Model(&models.DecisionRecord{})
	if v, ok := trimmed(params.Symbol); ok {
		query = query.Where("symbol = ?", v)
	}
	if symbols := cleanStrings(params.Symbols); len(symbols) > 0 {
		query = query.Where("symbol IN ?", symbols)
	}
	if len(params.Types) > 0 {
		query = query.Where("decision_type IN ?", params.Types)
	}
	if params.Pending {
		query = query.Where("is_executed = ?", false).
			Where("(execution_status IS NULL OR execution_status = '')")
	}
	if params.Executed != nil {
		query = query.Where("is_executed = ?", *params.Executed)
	}
	if params.Since != nil && !params.Since.IsZero() {
		query = query.Where("decision_time >= ?", *params.Since)
	}
	return query
}
