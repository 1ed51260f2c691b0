package memrepo

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"tradeagents/internal/models"
	"tradeagents/internal/repository"
)

func (s *Store) UpsertMarketData(ctx context.Context, items []models.MarketData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		replaced := false
		for i := range s.MarketData {
			row := s.MarketData[i]
			if row.Symbol == item.Symbol && row.Market == item.Market && row.Timestamp.Equal(item.Timestamp) {
				item.ID = row.ID
				s.MarketData[i] = item
				replaced = true
				break
			}
		}
		if !replaced {
			item.ID = s.id()
			s.MarketData = append(s.MarketData, item)
		}
	}
	return nil
}

func (s *Store) GetLatestMarketData(ctx context.Context, symbol string) (*models.MarketData, error) {
	rows, _ := s.ListMarketData(ctx, repository.ListMarketDataParams{Symbol: &symbol, Limit: 1})
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (s *Store) ListMarketData(ctx context.Context, params repository.ListMarketDataParams) ([]models.MarketData, error) {
	s.mu.Lock()
	var out []models.MarketData
	for _, row := range s.MarketData {
		if sym := str(params.Symbol); sym != "" && row.Symbol != sym {
			continue
		}
		if params.Since != nil && row.Timestamp.Before(*params.Since) {
			continue
		}
		out = append(out, row)
	}
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return page(out, params.Limit, 0, 100), nil
}

func (s *Store) ListActiveSymbols(ctx context.Context, since time.Time, limit int) ([]string, error) {
	s.mu.Lock()
	seen := map[string]struct{}{}
	var out []string
	for _, row := range s.MarketData {
		if row.Timestamp.Before(since) {
			continue
		}
		if _, ok := seen[row.Symbol]; ok {
			continue
		}
		seen[row.Symbol] = struct{}{}
		out = append(out, row.Symbol)
	}
	s.mu.Unlock()
	sort.Strings(out)
	return page(out, limit, 0, 20), nil
}

func (s *Store) ListLatestIndices(ctx context.Context, since time.Time, limit int) ([]models.MarketIndex, error) {
	s.mu.Lock()
	latest := map[string]models.MarketIndex{}
	for _, row := range s.Indices {
		if row.Timestamp.Before(since) {
			continue
		}
		if cur, ok := latest[row.IndexCode]; !ok || row.Timestamp.After(cur.Timestamp) {
			latest[row.IndexCode] = row
		}
	}
	s.mu.Unlock()
	out := make([]models.MarketIndex, 0, len(latest))
	for _, row := range latest {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IndexCode < out[j].IndexCode })
	return page(out, limit, 0, 5), nil
}

func (s *Store) GetLatestSentiment(ctx context.Context) (*models.MarketSentiment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *models.MarketSentiment
	for i := range s.Sentiments {
		if best == nil || s.Sentiments[i].Timestamp.After(best.Timestamp) {
			item := s.Sentiments[i]
			best = &item
		}
	}
	return best, nil
}

func (s *Store) InsertMarketSentiment(ctx context.Context, item *models.MarketSentiment) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.id()
	s.Sentiments = append(s.Sentiments, *item)
	return nil
}

func (s *Store) GetNewsEventByID(ctx context.Context, id uint64) (*models.NewsEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.News {
		if s.News[i].ID == id {
			item := s.News[i]
			return &item, nil
		}
	}
	return nil, nil
}

func (s *Store) ListNewsEvents(ctx context.Context, params repository.ListNewsEventsParams) ([]models.NewsEvent, error) {
	s.mu.Lock()
	var out []models.NewsEvent
	for _, row := range s.News {
		if params.Since != nil && row.PublishedAt.Before(*params.Since) {
			continue
		}
		if params.MinLevel != nil && (row.EventLevel == nil || *row.EventLevel < *params.MinLevel) {
			continue
		}
		out = append(out, row)
	}
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].PublishedAt.After(out[j].PublishedAt) })
	return page(out, params.Limit, 0, 100), nil
}

func (s *Store) UpdateNewsAnalysis(ctx context.Context, id uint64, level *int, sentiment *decimal.Decimal, impact string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.News {
		if s.News[i].ID == id {
			s.News[i].EventLevel = level
			s.News[i].SentimentScore = sentiment
			s.News[i].ImpactAnalysis = impact
		}
	}
	return nil
}
