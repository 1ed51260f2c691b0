package memrepo

import (
	"context"
	"sort"
	"time"

	"tradeagents/internal/models"
	"tradeagents/internal/repository"
)

// --- opportunities ----------------------------------------------------------

func (s *Store) InsertOpportunity(ctx context.Context, item *models.MarketOpportunity) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.id()
	item.CreatedAt = now()
	item.UpdatedAt = item.CreatedAt
	s.Opportunities = append(s.Opportunities, *item)
	return nil
}

func (s *Store) InsertOpportunityIfAbsent(ctx context.Context, item *models.MarketOpportunity) (bool, error) {
	if item == nil {
		return false, nil
	}
	if item.DedupeKey != nil {
		s.mu.Lock()
		for _, row := range s.Opportunities {
			if row.DedupeKey != nil && *row.DedupeKey == *item.DedupeKey {
				s.mu.Unlock()
				return false, nil
			}
		}
		s.mu.Unlock()
	}
	return true, s.InsertOpportunity(ctx, item)
}

func (s *Store) GetOpportunityByID(ctx context.Context, id uint64) (*models.MarketOpportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Opportunities {
		if s.Opportunities[i].ID == id {
			item := s.Opportunities[i]
			return &item, nil
		}
	}
	return nil, nil
}

func (s *Store) filterOpportunities(params repository.ListOpportunitiesParams) []models.MarketOpportunity {
	s.mu.Lock()
	var out []models.MarketOpportunity
	for _, row := range s.Opportunities {
		if len(params.Statuses) > 0 && !contains(params.Statuses, row.Status) {
			continue
		}
		if sym := str(params.Symbol); sym != "" && row.Symbol != sym {
			continue
		}
		if params.Since != nil && row.IdentifiedAt.Before(*params.Since) {
			continue
		}
		if params.MinConfidence != nil && row.ConfidenceScore.LessThan(*params.MinConfidence) {
			continue
		}
		out = append(out, row)
	}
	s.mu.Unlock()
	ascending := asc(params.Asc)
	sort.SliceStable(out, func(i, j int) bool {
		if params.OrderBy == "confidence_score" {
			return orderDecimal(out[i].ConfidenceScore, out[j].ConfidenceScore, ascending)
		}
		return orderTime(out[i].IdentifiedAt, out[j].IdentifiedAt, ascending)
	})
	return out
}

func (s *Store) ListOpportunities(ctx context.Context, params repository.ListOpportunitiesParams) ([]models.MarketOpportunity, error) {
	return page(s.filterOpportunities(params), params.Limit, params.Offset, 100), nil
}

func (s *Store) CountOpportunities(ctx context.Context, params repository.ListOpportunitiesParams) (int64, error) {
	return int64(len(s.filterOpportunities(params))), nil
}

func (s *Store) UpdateOpportunity(ctx context.Context, item *models.MarketOpportunity) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Opportunities {
		if s.Opportunities[i].ID == item.ID {
			item.UpdatedAt = now()
			s.Opportunities[i] = *item
		}
	}
	return nil
}

func (s *Store) ExpireOpportunities(ctx context.Context, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	live := []models.OpportunityStatus{models.OpportunityIdentified, models.OpportunityAnalyzing, models.OpportunityValidated}
	var n int64
	for i := range s.Opportunities {
		row := &s.Opportunities[i]
		if !contains(live, row.Status) || row.ValidUntil == nil || !row.ValidUntil.Before(at) {
			continue
		}
		row.Status = models.OpportunityExpired
		n++
	}
	return n, nil
}

// --- plans ------------------------------------------------------------------

func (s *Store) InsertTradingPlan(ctx context.Context, item *models.TradingPlan) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.id()
	item.CreatedAt = now()
	item.UpdatedAt = item.CreatedAt
	s.Plans = append(s.Plans, *item)
	return nil
}

func (s *Store) UpdateTradingPlan(ctx context.Context, item *models.TradingPlan) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Plans {
		if s.Plans[i].ID == item.ID {
			s.Plans[i] = *item
		}
	}
	return nil
}

func (s *Store) filterPlans(params repository.ListTradingPlansParams) []models.TradingPlan {
	s.mu.Lock()
	var out []models.TradingPlan
	for _, row := range s.Plans {
		if len(params.Statuses) > 0 && !contains(params.Statuses, row.Status) {
			continue
		}
		if params.EndAfter != nil && (row.PlanEnd == nil || row.PlanEnd.Before(*params.EndAfter)) {
			continue
		}
		out = append(out, row)
	}
	s.mu.Unlock()
	ascending := asc(params.Asc)
	sort.SliceStable(out, func(i, j int) bool { return orderTime(out[i].PlanStart, out[j].PlanStart, ascending) })
	return out
}

func (s *Store) ListTradingPlans(ctx context.Context, params repository.ListTradingPlansParams) ([]models.TradingPlan, error) {
	return page(s.filterPlans(params), params.Limit, params.Offset, 100), nil
}

func (s *Store) CountTradingPlans(ctx context.Context, params repository.ListTradingPlansParams) (int64, error) {
	return int64(len(s.filterPlans(params))), nil
}

// --- decisions --------------------------------------------------------------

func (s *Store) InsertDecision(ctx context.Context, item *models.DecisionRecord) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	item.ID = s.id()
	item.CreatedAt = now()
	item.UpdatedAt = item.CreatedAt
	s.Decisions = append(s.Decisions, *item)
	return nil
}

func (s *Store) GetDecisionByID(ctx context.Context, id uint64) (*models.DecisionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Decisions {
		if s.Decisions[i].ID == id {
			item := s.Decisions[i]
			return &item, nil
		}
	}
	return nil, nil
}

func (s *Store) UpdateDecision(ctx context.Context, item *models.DecisionRecord) error {
	if item == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Decisions {
		if s.Decisions[i].ID == item.ID {
			item.UpdatedAt = now()
			s.Decisions[i] = *item
		}
	}
	return nil
}

func (s *Store) filterDecisions(params repository.ListDecisionsParams) []models.DecisionRecord {
	s.mu.Lock()
	var out []models.DecisionRecord
	for _, row := range s.Decisions {
		if sym := str(params.Symbol); sym != "" && row.Symbol != sym {
			continue
		}
		if len(params.Symbols) > 0 && !contains(params.Symbols, row.Symbol) {
			continue
		}
		if len(params.Types) > 0 && !contains(params.Types, row.DecisionType) {
			continue
		}
		if params.Pending && (row.IsExecuted || row.ExecutionStatus != "") {
			continue
		}
		if params.Executed != nil && row.IsExecuted != *params.Executed {
			continue
		}
		if params.Since != nil && row.DecisionTime.Before(*params.Since) {
			continue
		}
		out = append(out, row)
	}
	s.mu.Unlock()
	ascending := asc(params.Asc)
	sort.SliceStable(out, func(i, j int) bool { return orderTime(out[i].DecisionTime, out[j].DecisionTime, ascending) })
	return out
}

func (s *Store) ListDecisions(ctx context.Context, params repository.ListDecisionsParams) ([]models.DecisionRecord, error) {
	return page(s.filterDecisions(params), params.Limit, params.Offset, 100), nil
}

func (s *Store) CountDecisions(ctx context.Context, params repository.ListDecisionsParams) (int64, error) {
	return int64(len(s.filterDecisions(params))), nil
}
