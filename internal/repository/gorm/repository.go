package gormrepository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tradeagents/internal/models"
	"tradeagents/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx repository.Repository) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// --- agent status -----------------------------------------------------------

func (s *Store) GetAgentStatus(ctx context.Context, agent models.AgentType) (*models.AgentStatus, error) {
	if s == nil || s.db == nil || agent == "" {
		return nil, nil
	}
	var item models.AgentStatus
	err := s.db.WithContext(ctx).Where("agent_type = ?", agent).First(&item).Error
	return found(&item, err)
}

func (s *Store) UpsertAgentStatus(ctx context.Context, item *models.AgentStatus) error {
	if s == nil || s.db == nil || item == nil || item.AgentType == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "agent_type"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status",
			"last_heartbeat",
			"last_action",
			"current_task",
			"error_count",
			"last_error",
			"metrics",
			"config",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) ListAgentStatuses(ctx context.Context) ([]models.AgentStatus, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.AgentStatus
	if err := s.db.WithContext(ctx).Order("agent_type asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- system settings --------------------------------------------------------

func (s *Store) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	item.Key = strings.TrimSpace(item.Key)
	if item.Key == "" {
		return nil
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "description", "updated_at"}),
	}).Create(item).Error
}

func (s *Store) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}
	var item models.SystemSetting
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&item).Error
	return found(&item, err)
}

func (s *Store) ListSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyOrder(settingsQuery(s.db.WithContext(ctx), params), params.OrderBy, params.Asc, "key")
	var items []models.SystemSetting
	if err := query.Limit(normalizeLimit(params.Limit, 500)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := settingsQuery(s.db.WithContext(ctx), params).Count(&total).Error
	return total, err
}

func settingsQuery(db *gorm.DB, params repository.ListSystemSettingsParams) *gorm.DB {
	query := db.Model(&models.SystemSetting{})
	if params.Prefix != nil && strings.TrimSpace(*params.Prefix) != "" {
		query = query.Where("key LIKE ?", strings.TrimSpace(*params.Prefix)+"%")
	}
	return query
}

// --- helpers ----------------------------------------------------------------

func found[T any](item *T, err error) (*T, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// sortable guards ORDER BY against arbitrary input from query strings.
var sortable = map[string]struct{}{
	"id": {}, "created_at": {}, "updated_at": {}, "key": {}, "symbol": {},
	"identified_at": {}, "confidence_score": {}, "decision_time": {}, "order_time": {},
	"filled_time": {}, "opened_at": {}, "importance_score": {}, "sharpe_ratio": {},
	"total_return": {}, "review_date": {}, "triggered_at": {}, "plan_start": {},
	"expected_return": {}, "access_count": {},
}

func applyOrder(query *gorm.DB, orderBy string, asc *bool, fallback string) *gorm.DB {
	column := strings.TrimSpace(orderBy)
	if _, ok := sortable[column]; !ok {
		column = fallback
	}
	direction := "desc"
	if asc != nil && *asc {
		direction = "asc"
	}
	return query.Order(column + " " + direction)
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > 500 {
		return 500
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, raw := range items {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		if _, ok := seen[val]; ok {
			continue
		}
		seen[val] = struct{}{}
		out = append(out, val)
	}
	return out
}

func trimmed(p *string) (string, bool) {
	if p == nil {
		return "", false
	}
	v := strings.TrimSpace(*p)
	return v, v != ""
}

var _ repository.Repository = (*Store)(nil)
