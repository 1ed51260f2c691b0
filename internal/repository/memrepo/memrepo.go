package memrepo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tradeagents/internal/models"
	"tradeagents/internal/repository"
)

type Store struct {
	mu     sync.Mutex
	nextID uint64

	AgentStatuses []models.AgentStatus
	Settings      []models.SystemSetting
	MarketData    []models.MarketData
	Indices       []models.MarketIndex
	Sentiments    []models.MarketSentiment
	News          []models.NewsEvent
	Opportunities []models.MarketOpportunity
	Plans         []models.TradingPlan
	Decisions     []models.DecisionRecord
	Trades        []models.Trade
	Positions     []models.Position
	Portfolios    []models.Portfolio
	RiskLogs      []models.RiskControlLog
	Alerts        []models.Alert
	Memories      []models.AgentMemory
	Strategies    []models.Strategy
	EvolutionLogs []models.StrategyEvolutionLog
	Reviews       []models.ReviewReport
	Evolutions    []models.EvolutionReport
	Principles    []models.TradingPrinciple
}

func New() *Store {
	return &Store{}
}

// InTx runs fn against the same store. Writes made before an error are not rolled back.
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Repository) error) error {
	return fn(s)
}

func (s *Store) id() uint64 {
	s.nextID++
	return s.nextID
}

func now() time.Time {
	return time.Now().UTC()
}

// --- agent status -----------------------------------------------------------

func (s *Store) GetAgentStatus(ctx context.Context, agent models.AgentType) (*models.AgentStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.AgentStatuses {
		if s.AgentStatuses[i].AgentType == agent {
			item := s.AgentStatuses[i]
			return &item, nil
		}
	}
	return nil, nil
}

func (s *Store) UpsertAgentStatus(ctx context.Context, item *models.AgentStatus) error {
	if item == nil || item.AgentType == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item.UpdatedAt = now()
	for i := range s.AgentStatuses {
		if s.AgentStatuses[i].AgentType == item.AgentType {
			item.ID = s.AgentStatuses[i].ID
			item.CreatedAt = s.AgentStatuses[i].CreatedAt
			s.AgentStatuses[i] = *item
			return nil
		}
	}
	item.ID = s.id()
	item.CreatedAt = item.UpdatedAt
	s.AgentStatuses = append(s.AgentStatuses, *item)
	return nil
}

func (s *Store) ListAgentStatuses(ctx context.Context) ([]models.AgentStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]models.AgentStatus(nil), s.AgentStatuses...)
	sort.Slice(out, func(i, j int) bool { return out[i].AgentType < out[j].AgentType })
	return out, nil
}

// --- system settings --------------------------------------------------------

func (s *Store) UpsertSystemSetting(ctx context.Context, item *models.SystemSetting) error {
	if item == nil || strings.TrimSpace(item.Key) == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item.Key = strings.TrimSpace(item.Key)
	item.UpdatedAt = now()
	for i := range s.Settings {
		if s.Settings[i].Key == item.Key {
			item.ID = s.Settings[i].ID
			s.Settings[i] = *item
			return nil
		}
	}
	item.ID = s.id()
	item.CreatedAt = item.UpdatedAt
	s.Settings = append(s.Settings, *item)
	return nil
}

func (s *Store) GetSystemSettingByKey(ctx context.Context, key string) (*models.SystemSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Settings {
		if s.Settings[i].Key == strings.TrimSpace(key) {
			item := s.Settings[i]
			return &item, nil
		}
	}
	return nil, nil
}

func (s *Store) filterSettings(params repository.ListSystemSettingsParams) []models.SystemSetting {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SystemSetting
	for _, item := range s.Settings {
		if params.Prefix != nil && !strings.HasPrefix(item.Key, strings.TrimSpace(*params.Prefix)) {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (s *Store) ListSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) ([]models.SystemSetting, error) {
	return page(s.filterSettings(params), params.Limit, params.Offset, 500), nil
}

func (s *Store) CountSystemSettings(ctx context.Context, params repository.ListSystemSettingsParams) (int64, error) {
	return int64(len(s.filterSettings(params))), nil
}

// --- helpers ----------------------------------------------------------------

func page[T any](items []T, limit, offset, fallback int) []T {
	if limit <= 0 {
		limit = fallback
	}
	if limit > 500 {
		limit = 500
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return append([]T(nil), items[offset:end]...)
}

func asc(p *bool) bool {
	return p != nil && *p
}

func orderTime(a, b time.Time, ascending bool) bool {
	if ascending {
		return a.Before(b)
	}
	return a.After(b)
}

func orderDecimal(a, b decimal.Decimal, ascending bool) bool {
	if ascending {
		return a.LessThan(b)
	}
	return a.GreaterThan(b)
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func contains[T comparable](items []T, v T) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}

var _ repository.Repository = (*Store)(nil)
