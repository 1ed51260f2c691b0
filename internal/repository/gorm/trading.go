package gormrepository

import (
	"context"

	"gorm.io/gorm"

	"tradeagents/internal/models"
	"tradeagents/internal/repository"
)

// --- trades -----------------------------------------------------------------

func (s *Store) InsertTrade(ctx context.Context, item *models.Trade) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) UpdateTrade(ctx context.Context, item *models.Trade) error {
	if s == nil || s.db == nil || item == nil || item.ID == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Save(item).Error
}

func (s *Store) ListTrades(ctx context.Context, params repository.ListTradesParams) ([]models.Trade, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyOrder(tradeQuery(s.db.WithContext(ctx), params), params.OrderBy, params.Asc, "order_time")
	var items []models.Trade
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountTrades(ctx context.Context, params repository.ListTradesParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := tradeQuery(s.db.WithContext(ctx), params).Count(&total).Error
	return total, err
}

func tradeQuery(db *gorm.DB, params repository.ListTradesParams) *gorm.DB {
	query := db.Model(&models.Trade{})
	if v, ok := trimmed(params.Symbol); ok {
		query = query.Where("symbol = ?", v)
	}
	if params.Action != nil && *params.Action != "" {
		query = query.Where("action = ?", *params.Action)
	}
	if params.Status != nil && *params.Status != "" {
		query = query.Where("status = ?", *params.Status)
	}
	if params.FilledSince != nil && !params.FilledSince.IsZero() {
		query = query.Where("filled_time >= ?", *params.FilledSince)
	}
	return query
}

// --- positions --------------------------------------------------------------

func (s *Store) GetOpenPosition(ctx context.Context, symbol, account string) (*models.Position, error) {
	if s == nil || s.db == nil || symbol == "" {
		return nil, nil
	}
	var item models.Position
	err := s.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Where("account_name = ?", account).
		Where("is_closed = ?", false).
		Order("opened_at desc").
		First(&item).Error
	return found(&item, err)
}

func (s *Store) GetPositionByOpenTradeID(ctx context.Context, tradeID uint64) (*models.Position, error) {
	if s == nil || s.db == nil || tradeID == 0 {
		return nil, nil
	}
	var item models.Position
	err := s.db.WithContext(ctx).Where("open_trade_id = ?", tradeID).First(&item).Error
	return found(&item, err)
}

func (s *Store) SavePosition(ctx context.Context, item *models.Position) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if item.ID == 0 {
		return s.db.WithContext(ctx).Create(item).Error
	}
	return s.db.WithContext(ctx).Save(item).Error
}

func (s *Store) ListPositions(ctx context.Context, params repository.ListPositionsParams) ([]models.Position, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyOrder(positionQuery(s.db.WithContext(ctx), params), params.OrderBy, params.Asc, "opened_at")
	var items []models.Position
	if err := query.Limit(normalizeLimit(params.Limit, 500)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountPositions(ctx context.Context, params repository.ListPositionsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := positionQuery(s.db.WithContext(ctx), params).Count(&total).Error
	return total, err
}

func positionQuery(db *gorm.DB, params repository.ListPositionsParams) *gorm.DB {
	query := db.Model(&models.Position{})
	if v, ok := trimmed(params.AccountName); ok {
		query = query.Where("account_name = ?", v)
	}
	if params.Open != nil {
		query = query.Where("is_closed = ?", !*params.Open)
	}
	if symbols := cleanStrings(params.Symbols); len(symbols) > 0 {
		query = query.Where("symbol IN ?", symbols)
	}
	if params.OpenedSince != nil && !params.OpenedSince.IsZero() {
		query = query.Where("opened_at >= ?", *params.OpenedSince)
	}
	return query
}

// --- portfolio --------------------------------------------------------------

func (s *Store) GetPortfolioByName(ctx context.Context, name string) (*models.Portfolio, error) {
	if s == nil || s.db == nil || name == "" {
		return nil, nil
	}
	var item models.Portfolio
	err := s.db.WithContext(ctx).Where("account_name = ?", name).First(&item).Error
	return found(&item, err)
}

func (s *Store) SavePortfolio(ctx context.Context, item *models.Portfolio) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if item.ID == 0 {
		return s.db.WithContext(ctx).Create(item).Error
	}
	return s.db.WithContext(ctx).Save(item).Error
}

// --- risk logs and alerts ---------------------------------------------------

func (s *Store) InsertRiskControlLog(ctx context.Context, item *models.RiskControlLog) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListRiskControlLogs(ctx context.Context, params repository.ListRiskControlLogsParams) ([]models.RiskControlLog, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyOrder(riskLogQuery(s.db.WithContext(ctx), params), params.OrderBy, params.Asc, "created_at")
	var items []models.RiskControlLog
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountRiskControlLogs(ctx context.Context, params repository.ListRiskControlLogsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := riskLogQuery(s.db.WithContext(ctx), params).Count(&total).Error
	return total, err
}

func riskLogQuery(db *gorm.DB, params repository.ListRiskControlLogsParams) *gorm.DB {
	query := db.Model(&models.RiskControlLog{})
	if params.Action != nil && *params.Action != "" {
		query = query.Where("action = ?", *params.Action)
	}
	if v, ok := trimmed(params.Symbol); ok {
		query = query.Where("symbol = ?", v)
	}
	return query
}

func (s *Store) InsertAlert(ctx context.Context, item *models.Alert) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListAlerts(ctx context.Context, params repository.ListAlertsParams) ([]models.Alert, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := applyOrder(alertQuery(s.db.WithContext(ctx), params), params.OrderBy, params.Asc, "triggered_at")
	var items []models.Alert
	if err := query.Limit(normalizeLimit(params.Limit, 100)).Offset(normalizeOffset(params.Offset)).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) CountAlerts(ctx context.Context, params repository.ListAlertsParams) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var total int64
	err := alertQuery(s.db.WithContext(ctx), params).Count(&total).Error
	return total, err
}

func alertQuery(db *gorm.DB, params repository.ListAlertsParams) *gorm.DB {
	query := db.Model(&models.Alert{})
	if params.Level != nil && *params.Level != "" {
		query = query.Where("alert_level = ?", *params.Level)
	}
	if v, ok := trimmed(params.Status); ok {
		query = query.Where("status = ?", v)
	}
	if v, ok := trimmed(params.Type); ok {
		query = query.Where("alert_type = ?", v)
	}
	if v, ok := trimmed(params.ObjectType); ok {
		query = query.Where("related_object_type = ?", v)
	}
	if params.ObjectID != nil {
		query = query.Where("related_object_id = ?", *params.ObjectID)
	}
	return query
}
