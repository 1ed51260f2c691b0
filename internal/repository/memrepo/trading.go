package memrepo

import (
	"context"
	"sort"

	"tradeagents/internal/models"
	"tradeagents/internal/repository"
)

func (s *Store) InsertTrade(ctx context.Context, item *models.Trade) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.id()
	item.CreatedAt = now()
	item.UpdatedAt = item.CreatedAt
	s.Trades = append(s.Trades, *item)
	return nil
}

func (s *Store) UpdateTrade(ctx context.Context, item *models.Trade) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Trades {
		if s.Trades[i].ID == item.ID {
			s.Trades[i] = *item
		}
	}
	return nil
}

func (s *Store) filterTrades(params repository.ListTradesParams) []models.Trade {
	s.mu.Lock()
	var out []models.Trade
	for _, row := range s.Trades {
		if sym := str(params.Symbol); sym != "" && row.Symbol != sym {
			continue
		}
		if params.Action != nil && *params.Action != "" && row.Action != *params.Action {
			continue
		}
		if params.Status != nil && *params.Status != "" && row.Status != *params.Status {
			continue
		}
		if params.FilledSince != nil && (row.FilledTime == nil || row.FilledTime.Before(*params.FilledSince)) {
			continue
		}
		out = append(out, row)
	}
	s.mu.Unlock()
	ascending := asc(params.Asc)
	sort.SliceStable(out, func(i, j int) bool { return orderTime(out[i].OrderTime, out[j].OrderTime, ascending) })
	return out
}

func (s *Store) ListTrades(ctx context.Context, params repository.ListTradesParams) ([]models.Trade, error) {
	return page(s.filterTrades(params), params.Limit, params.Offset, 100), nil
}

func (s *Store) CountTrades(ctx context.Context, params repository.ListTradesParams) (int64, error) {
	return int64(len(s.filterTrades(params))), nil
}

func (s *Store) GetOpenPosition(ctx context.Context, symbol, account string) (*models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Positions {
		row := s.Positions[i]
		if row.Symbol == symbol && row.AccountName == account && !row.IsClosed {
			return &row, nil
		}
	}
	return nil, nil
}

func (s *Store) GetPositionByOpenTradeID(ctx context.Context, tradeID uint64) (*models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Positions {
		row := s.Positions[i]
		if row.OpenTradeID != nil && *row.OpenTradeID == tradeID {
			return &row, nil
		}
	}
	return nil, nil
}

func (s *Store) SavePosition(ctx context.Context, item *models.Position) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item.UpdatedAt = now()
	for i := range s.Positions {
		if item.ID != 0 && s.Positions[i].ID == item.ID {
			s.Positions[i] = *item
			return nil
		}
	}
	item.ID = s.id()
	item.CreatedAt = item.UpdatedAt
	s.Positions = append(s.Positions, *item)
	return nil
}

func (s *Store) filterPositions(params repository.ListPositionsParams) []models.Position {
	s.mu.Lock()
	var out []models.Position
	for _, row := range s.Positions {
		if acc := str(params.AccountName); acc != "" && row.AccountName != acc {
			continue
		}
		if params.Open != nil && row.IsClosed == *params.Open {
			continue
		}
		if len(params.Symbols) > 0 && !contains(params.Symbols, row.Symbol) {
			continue
		}
		if params.OpenedSince != nil && row.OpenedAt.Before(*params.OpenedSince) {
			continue
		}
		out = append(out, row)
	}
	s.mu.Unlock()
	ascending := asc(params.Asc)
	sort.SliceStable(out, func(i, j int) bool { return orderTime(out[i].OpenedAt, out[j].OpenedAt, ascending) })
	return out
}

func (s *Store) ListPositions(ctx context.Context, params repository.ListPositionsParams) ([]models.Position, error) {
	return page(s.filterPositions(params), params.Limit, params.Offset, 500), nil
}

func (s *Store) CountPositions(ctx context.Context, params repository.ListPositionsParams) (int64, error) {
	return int64(len(s.filterPositions(params))), nil
}

func (s *Store) GetPortfolioByName(ctx context.Context, name string) (*models.Portfolio, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Portfolios {
		if s.Portfolios[i].AccountName == name {
			item := s.Portfolios[i]
			return &item, nil
		}
	}
	return nil, nil
}

func (s *Store) SavePortfolio(ctx context.Context, item *models.Portfolio) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item.UpdatedAt = now()
	for i := range s.Portfolios {
		if item.ID != 0 && s.Portfolios[i].ID == item.ID {
			s.Portfolios[i] = *item
			return nil
		}
	}
	item.ID = s.id()
	item.CreatedAt = item.UpdatedAt
	s.Portfolios = append(s.Portfolios, *item)
	return nil
}

func (s *Store) InsertRiskControlLog(ctx context.Context, item *models.RiskControlLog) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.id()
	item.CreatedAt = now()
	s.RiskLogs = append(s.RiskLogs, *item)
	return nil
}

func (s *Store) filterRiskLogs(params repository.ListRiskControlLogsParams) []models.RiskControlLog {
	s.mu.Lock()
	var out []models.RiskControlLog
	for _, row := range s.RiskLogs {
		if params.Action != nil && *params.Action != "" && row.Action != *params.Action {
			continue
		}
		if sym := str(params.Symbol); sym != "" && row.Symbol != sym {
			continue
		}
		out = append(out, row)
	}
	s.mu.Unlock()
	ascending := asc(params.Asc)
	sort.SliceStable(out, func(i, j int) bool {
		if ascending {
			return out[i].ID < out[j].ID
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *Store) ListRiskControlLogs(ctx context.Context, params repository.ListRiskControlLogsParams) ([]models.RiskControlLog, error) {
	return page(s.filterRiskLogs(params), params.Limit, params.Offset, 100), nil
}

func (s *Store) CountRiskControlLogs(ctx context.Context, params repository.ListRiskControlLogsParams) (int64, error) {
	return int64(len(s.filterRiskLogs(params))), nil
}

func (s *Store) InsertAlert(ctx context.Context, item *models.Alert) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.id()
	item.CreatedAt = now()
	s.Alerts = append(s.Alerts, *item)
	return nil
}

func (s *Store) filterAlerts(params repository.ListAlertsParams) []models.Alert {
	s.mu.Lock()
	var out []models.Alert
	for _, row := range s.Alerts {
		if params.Level != nil && *params.Level != "" && row.AlertLevel != *params.Level {
			continue
		}
		if st := str(params.Status); st != "" && row.Status != st {
			continue
		}
		if v := str(params.Type); v != "" && row.AlertType != v {
			continue
		}
		if v := str(params.ObjectType); v != "" && row.RelatedObjectType != v {
			continue
		}
		if params.ObjectID != nil && (row.RelatedObjectID == nil || *row.RelatedObjectID != *params.ObjectID) {
			continue
		}
		out = append(out, row)
	}
	s.mu.Unlock()
	ascending := asc(params.Asc)
	sort.SliceStable(out, func(i, j int) bool { return orderTime(out[i].TriggeredAt, out[j].TriggeredAt, ascending) })
	return out
}

func (s *Store) ListAlerts(ctx context.Context, params repository.ListAlertsParams) ([]models.Alert, error) {
	return page(s.filterAlerts(params), params.Limit, params.Offset, 100), nil
}

func (s *Store) CountAlerts(ctx context.Context, params repository.ListAlertsParams) (int64, error) {
	return int64(len(s.filterAlerts(params))), nil
}
