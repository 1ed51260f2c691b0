package opportunity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradeagents/internal/models"
	"tradeagents/internal/paas"
	"tradeagents/internal/repository"
)

const (
	DefaultValidity       = 24 * time.Hour
	DefaultExpectedReturn = 0.02
	DefaultRiskLevel      = 5
)

// Candidate is a machine-identified trade idea, e.g. a perception breakout.
type Candidate struct {
	Symbol     string
	Type       string
	Confidence float64
	Price      decimal.Decimal
	Reason     string
	Trigger    map[string]any
}

// Manager owns the MarketOpportunity lifecycle outside the debate: persisting
// new candidates and expiring stale ones.
type Manager struct {
	Repo   repository.Repository
	Logger *zap.Logger

	Validity time.Duration
	now      func() time.Time
}

// DedupeKey is symbol|type|day (UTC).
func DedupeKey(symbol, typ string, at time.Time) string {
	return fmt.Sprintf("%s|%s|%s", strings.ToUpper(strings.TrimSpace(symbol)), typ, at.UTC().Format("2006-01-02"))
}

// Upsert persists c as an identified opportunity unless one with the same dedupe key
// exists. It reports whether a row was created.
func (m *Manager) Upsert(ctx context.Context, c Candidate) (bool, error) {
	if m == nil || m.Repo == nil || strings.TrimSpace(c.Symbol) == "" {
		return false, nil
	}
	now := m.clock()
	validity := m.Validity
	if validity <= 0 {
		validity = DefaultValidity
	}
	until := now.Add(validity)
	key := DedupeKey(c.Symbol, c.Type, now)
	price := c.Price

	opp := &models.MarketOpportunity{
		Symbol:            c.Symbol,
		OpportunityType:   c.Type,
		Status:            models.OpportunityIdentified,
		DedupeKey:         &key,
		IdentifiedAt:      now,
		ValidUntil:        &until,
		Description:       c.Reason,
		Rationale:         c.Reason,
		ExpectedReturn:    decimal.NewFromFloat(DefaultExpectedReturn),
		RiskLevel:         DefaultRiskLevel,
		ConfidenceScore:   decimal.NewFromFloat(c.Confidence),
		TriggerConditions: models.EncodeJSON(c.Trigger),
	}
	if !price.IsZero() {
		opp.EntryPrice = &price
	}
	created, err := m.Repo.InsertOpportunityIfAbsent(ctx, opp)
	if err != nil {
		return false, err
	}
	if created {
		paas.LogBestEffortCtx(ctx, "opportunity_identified", "info", map[string]any{
			"symbol": c.Symbol,
			"type":   c.Type,
		})
	}
	return created, nil
}

// ExpireStale moves live opportunities past valid_until to expired.
func (m *Manager) ExpireStale(ctx context.Context) (int64, error) {
	if m == nil || m.Repo == nil {
		return 0, nil
	}
	n, err := m.Repo.ExpireOpportunities(ctx, m.clock())
	if err != nil {
		return 0, err
	}
	if n > 0 && m.Logger != nil {
		m.Logger.Info("expired stale opportunities", zap.Int64("expired", n))
	}
	return n, nil
}

func (m *Manager) clock() time.Time {
	if m.now != nil {
		return m.now()
	}
	return time.Now().UTC()
}
