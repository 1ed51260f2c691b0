package memrepo

import (
	"context"
	"sort"
	"time"

	"tradeagents/internal/models"
	"tradeagents/internal/repository"
)

func (s *Store) InsertMemory(ctx context.Context, item *models.AgentMemory) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.id()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now()
	}
	item.UpdatedAt = item.CreatedAt
	s.Memories = append(s.Memories, *item)
	return nil
}

func (s *Store) UpdateMemory(ctx context.Context, item *models.AgentMemory) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Memories {
		if s.Memories[i].ID == item.ID {
			s.Memories[i] = *item
		}
	}
	return nil
}

func (s *Store) GetMemoryBySource(ctx context.Context, source, sourceID string) (*models.AgentMemory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Memories {
		if s.Memories[i].Source == source && s.Memories[i].SourceID == sourceID {
			item := s.Memories[i]
			return &item, nil
		}
	}
	return nil, nil
}

func (s *Store) filterMemories(params repository.ListMemoriesParams) []models.AgentMemory {
	s.mu.Lock()
	var out []models.AgentMemory
	for _, row := range s.Memories {
		if len(params.Types) > 0 && !contains(params.Types, row.MemoryType) {
			continue
		}
		if params.MinImportance != nil && row.ImportanceScore.LessThan(*params.MinImportance) {
			continue
		}
		if params.BelowImportance != nil && !row.ImportanceScore.LessThan(*params.BelowImportance) {
			continue
		}
		if params.CreatedBefore != nil && !row.CreatedAt.Before(*params.CreatedBefore) {
			continue
		}
		if len(params.VectorIDs) > 0 && (row.VectorID == nil || !contains(params.VectorIDs, *row.VectorID)) {
			continue
		}
		if !params.IncludeForgotten && row.IsForgotten {
			continue
		}
		out = append(out, row)
	}
	s.mu.Unlock()
	ascending := asc(params.Asc)
	sort.SliceStable(out, func(i, j int) bool {
		if params.OrderBy == "importance_score" {
			return orderDecimal(out[i].ImportanceScore, out[j].ImportanceScore, ascending)
		}
		return orderTime(out[i].CreatedAt, out[j].CreatedAt, ascending)
	})
	return out
}

func (s *Store) ListMemories(ctx context.Context, params repository.ListMemoriesParams) ([]models.AgentMemory, error) {
	return page(s.filterMemories(params), params.Limit, params.Offset, 100), nil
}

func (s *Store) CountMemories(ctx context.Context, params repository.ListMemoriesParams) (int64, error) {
	return int64(len(s.filterMemories(params))), nil
}

func (s *Store) TouchMemories(ctx context.Context, ids []uint64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Memories {
		if contains(ids, s.Memories[i].ID) {
			s.Memories[i].AccessCount++
			t := at
			s.Memories[i].LastAccessed = &t
		}
	}
	return nil
}

func (s *Store) UpsertStrategy(ctx context.Context, item *models.Strategy) error {
	if item == nil || item.StrategyID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Strategies {
		if s.Strategies[i].StrategyID == item.StrategyID {
			item.ID = s.Strategies[i].ID
			s.Strategies[i] = *item
			return nil
		}
	}
	item.ID = s.id()
	item.CreatedAt = now()
	s.Strategies = append(s.Strategies, *item)
	return nil
}

func (s *Store) SaveStrategy(ctx context.Context, item *models.Strategy) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Strategies {
		if s.Strategies[i].ID == item.ID {
			s.Strategies[i] = *item
		}
	}
	return nil
}

func (s *Store) ListStrategies(ctx context.Context, params repository.ListStrategiesParams) ([]models.Strategy, error) {
	s.mu.Lock()
	var out []models.Strategy
	for _, row := range s.Strategies {
		if params.Active != nil && row.IsActive != *params.Active {
			continue
		}
		if params.MinTotalReturn != nil && row.TotalReturn.LessThan(*params.MinTotalReturn) {
			continue
		}
		out = append(out, row)
	}
	s.mu.Unlock()
	ascending := asc(params.Asc)
	sort.SliceStable(out, func(i, j int) bool {
		switch params.OrderBy {
		case "sharpe_ratio":
			return orderDecimal(out[i].SharpeRatio, out[j].SharpeRatio, ascending)
		case "total_return":
			return orderDecimal(out[i].TotalReturn, out[j].TotalReturn, ascending)
		}
		if ascending {
			return out[i].ID < out[j].ID
		}
		return out[i].ID > out[j].ID
	})
	return page(out, params.Limit, params.Offset, 100), nil
}

func (s *Store) InsertStrategyEvolutionLog(ctx context.Context, item *models.StrategyEvolutionLog) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.id()
	item.CreatedAt = now()
	s.EvolutionLogs = append(s.EvolutionLogs, *item)
	return nil
}

func (s *Store) GetReviewReport(ctx context.Context, reviewType string, date time.Time) (*models.ReviewReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Reviews {
		if s.Reviews[i].ReviewType == reviewType && s.Reviews[i].ReviewDate.Equal(date) {
			item := s.Reviews[i]
			return &item, nil
		}
	}
	return nil, nil
}

func (s *Store) InsertReviewReport(ctx context.Context, item *models.ReviewReport) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.id()
	item.CreatedAt = now()
	s.Reviews = append(s.Reviews, *item)
	return nil
}

func (s *Store) filterReviews(params repository.ListReportsParams) []models.ReviewReport {
	s.mu.Lock()
	var out []models.ReviewReport
	for _, row := range s.Reviews {
		if t := str(params.Type); t != "" && row.ReviewType != t {
			continue
		}
		out = append(out, row)
	}
	s.mu.Unlock()
	ascending := asc(params.Asc)
	sort.SliceStable(out, func(i, j int) bool { return orderTime(out[i].ReviewDate, out[j].ReviewDate, ascending) })
	return out
}

func (s *Store) ListReviewReports(ctx context.Context, params repository.ListReportsParams) ([]models.ReviewReport, error) {
	return page(s.filterReviews(params), params.Limit, params.Offset, 100), nil
}

func (s *Store) CountReviewReports(ctx context.Context, params repository.ListReportsParams) (int64, error) {
	return int64(len(s.filterReviews(params))), nil
}

func (s *Store) InsertEvolutionReport(ctx context.Context, item *models.EvolutionReport) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.id()
	item.CreatedAt = now()
	s.Evolutions = append(s.Evolutions, *item)
	return nil
}

func (s *Store) filterEvolutions(params repository.ListReportsParams) []models.EvolutionReport {
	s.mu.Lock()
	var out []models.EvolutionReport
	for _, row := range s.Evolutions {
		if t := str(params.Type); t != "" && row.EvolutionType != t {
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

func (s *Store) ListEvolutionReports(ctx context.Context, params repository.ListReportsParams) ([]models.EvolutionReport, error) {
	return page(s.filterEvolutions(params), params.Limit, params.Offset, 100), nil
}

func (s *Store) CountEvolutionReports(ctx context.Context, params repository.ListReportsParams) (int64, error) {
	return int64(len(s.filterEvolutions(params))), nil
}

func (s *Store) InsertTradingPrinciples(ctx context.Context, items []models.TradingPrinciple) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		item.ID = s.id()
		item.CreatedAt = now()
		s.Principles = append(s.Principles, item)
	}
	return nil
}
