package opportunity

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradeagents/internal/models"
	"tradeagents/internal/repository/memrepo"
)

func TestUpsertDedupesPerSymbolTypeDay(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New()
	day := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	m := &Manager{Repo: repo, now: func() time.Time { return day }}

	c := Candidate{Symbol: "XYZ", Type: "breakout", Confidence: 0.7, Price: decimal.NewFromInt(105)}
	created, err := m.Upsert(ctx, c)
	if err != nil || !created {
		t.Fatalf("first upsert created=%v err=%v", created, err)
	}
	created, _ = m.Upsert(ctx, c)
	if created {
		t.Fatalf("second upsert on the same day must not create")
	}
	m.now = func() time.Time { return day.Add(24 * time.Hour) }
	created, _ = m.Upsert(ctx, c)
	if !created {
		t.Fatalf("next day must create")
	}
	if len(repo.Opportunities) != 2 {
		t.Fatalf("rows=%d want 2", len(repo.Opportunities))
	}
	row := repo.Opportunities[0]
	if row.Status != models.OpportunityIdentified || row.RiskLevel != 5 {
		t.Fatalf("status=%s risk=%d", row.Status, row.RiskLevel)
	}
	if !row.ExpectedReturn.Equal(decimal.NewFromFloat(0.02)) {
		t.Fatalf("expected_return=%s", row.ExpectedReturn)
	}
	if row.ValidUntil == nil || !row.ValidUntil.Equal(day.Add(24*time.Hour)) {
		t.Fatalf("valid_until=%v", row.ValidUntil)
	}
	if *row.DedupeKey != "XYZ|breakout|2026-03-02" {
		t.Fatalf("dedupe key=%q", *row.DedupeKey)
	}
}

func TestExpireStale(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	m := &Manager{Repo: repo, now: func() time.Time { return start }}
	if _, err := m.Upsert(ctx, Candidate{Symbol: "AAA", Type: "breakout"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if n, _ := m.ExpireStale(ctx); n != 0 {
		t.Fatalf("expired %d fresh rows", n)
	}
	m.now = func() time.Time { return start.Add(25 * time.Hour) }
	if n, _ := m.ExpireStale(ctx); n != 1 {
		t.Fatalf("expired=%d want 1", n)
	}
	if repo.Opportunities[0].Status != models.OpportunityExpired {
		t.Fatalf("status=%s", repo.Opportunities[0].Status)
	}
}
