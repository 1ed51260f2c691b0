package risk

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradeagents/internal/config"
	"tradeagents/internal/models"
	"tradeagents/internal/repository/memrepo"
)

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func decp(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

func TestResolveRejectDominates(t *testing.T) {
	adjust := Finding{Action: models.RiskAdjust}
	reject := Finding{Action: models.RiskReject}
	cases := []struct {
		in   []Finding
		want models.RiskAction
	}{
		{nil, models.RiskAllow},
		{[]Finding{adjust}, models.RiskAdjust},
		{[]Finding{adjust, adjust}, models.RiskAdjust},
		{[]Finding{reject}, models.RiskReject},
		{[]Finding{adjust, reject}, models.RiskReject},
		{[]Finding{reject, adjust}, models.RiskReject},
	}
	for i, tc := range cases {
		if got := Resolve(tc.in); got != tc.want {
			t.Fatalf("case %d: %s want %s", i, got, tc.want)
		}
	}
}

func TestEvaluateClamps(t *testing.T) {
	cfg := config.DefaultRisk()
	cases := []struct {
		name   string
		in     Inputs
		pct    float64
		checks []string
	}{
		{
			name: "within limits",
			in:   Inputs{TargetPct: dec(0.03), TotalAsset: dec(100000), AvailableCash: dec(100000)},
			pct:  0.03,
		},
		{
			name:   "single trade cap",
			in:     Inputs{TargetPct: dec(0.10), TotalAsset: dec(100000), AvailableCash: dec(10000)},
			pct:    0.05,
			checks: []string{CheckSingleTrade},
		},
		{
			name:   "concentration headroom",
			in:     Inputs{TargetPct: dec(0.05), TotalAsset: dec(100000), AvailableCash: dec(100000), SymbolValue: dec(28000)},
			pct:    0.02,
			checks: []string{CheckConcentration},
		},
		{
			name:   "concentration already over cap",
			in:     Inputs{TargetPct: dec(0.05), TotalAsset: dec(100000), AvailableCash: dec(100000), SymbolValue: dec(40000)},
			pct:    0,
			checks: []string{CheckConcentration},
		},
		{
			name:   "cash clamp",
			in:     Inputs{TargetPct: dec(0.04), TotalAsset: dec(100000), AvailableCash: dec(1000)},
			pct:    0.01,
			checks: []string{CheckCash},
		},
		{
			name:   "daily loss rejects",
			in:     Inputs{TargetPct: dec(0.03), TotalAsset: dec(100000), AvailableCash: dec(100000), TodayReturn: dec(-0.06)},
			pct:    0.03,
			checks: []string{CheckDailyLoss},
		},
		{
			name:   "drawdown rejects",
			in:     Inputs{TargetPct: dec(0.03), TotalAsset: dec(100000), AvailableCash: dec(100000), MaxDrawdown: dec(0.2)},
			pct:    0.03,
			checks: []string{CheckDrawdown},
		},
	}
	for _, tc := range cases {
		findings, pct := Evaluate(cfg, tc.in)
		if !pct.Equal(dec(tc.pct)) {
			t.Fatalf("%s: pct=%s want %v", tc.name, pct, tc.pct)
		}
		if len(findings) != len(tc.checks) {
			t.Fatalf("%s: findings=%+v want %v", tc.name, findings, tc.checks)
		}
		for i, f := range findings {
			if f.Check != tc.checks[i] {
				t.Fatalf("%s: finding %d is %s want %s", tc.name, i, f.Check, tc.checks[i])
			}
		}
	}
}

func TestEvaluateNeverRaisesExposure(t *testing.T) {
	cfg := config.DefaultRisk()
	for _, target := range []float64{0, 0.01, 0.05, 0.2, 0.9} {
		_, pct := Evaluate(cfg, Inputs{TargetPct: dec(target), TotalAsset: dec(100000), AvailableCash: dec(20000), SymbolValue: dec(25000)})
		if pct.GreaterThan(dec(target)) {
			t.Fatalf("target %v raised to %s", target, pct)
		}
	}
}

func TestEvaluateSellSkipsExposureClamps(t *testing.T) {
	cfg := config.DefaultRisk()
	cases := []struct {
		name   string
		in     Inputs
		checks []string
	}{
		{"no cash", Inputs{Sell: true, TargetPct: dec(0.05), TotalAsset: dec(100000), SymbolValue: dec(100000)}, nil},
		{"over concentrated", Inputs{Sell: true, TargetPct: dec(0.2), TotalAsset: dec(100000), AvailableCash: dec(60000), SymbolValue: dec(40000)}, nil},
		{"daily loss", Inputs{Sell: true, TargetPct: dec(0.05), TotalAsset: dec(100000), TodayReturn: dec(-0.06)}, []string{CheckDailyLoss}},
		{"drawdown", Inputs{Sell: true, TargetPct: dec(0.05), TotalAsset: dec(100000), MaxDrawdown: dec(0.2)}, []string{CheckDrawdown}},
	}
	for _, tc := range cases {
		findings, pct := Evaluate(cfg, tc.in)
		if !pct.Equal(tc.in.TargetPct) {
			t.Fatalf("%s: pct=%s want %s", tc.name, pct, tc.in.TargetPct)
		}
		if len(findings) != len(tc.checks) {
			t.Fatalf("%s: findings=%+v want %v", tc.name, findings, tc.checks)
		}
		for i, f := range findings {
			if f.Check != tc.checks[i] {
				t.Fatalf("%s: finding %d is %s want %s", tc.name, i, f.Check, tc.checks[i])
			}
		}
	}
}

func TestPreTradeSellOfConcentratedSymbolIsAllowed(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New()
	mv := dec(40000)
	repo.Positions = append(repo.Positions, models.Position{
		ID: 1, Symbol: "ABC", AccountName: "main", Quantity: 400, AvgCost: dec(100), TotalCost: dec(40000), MarketValue: &mv,
	})
	m := &Manager{Config: config.DefaultRisk(), Repo: repo}
	portfolio := &models.Portfolio{ID: 1, AccountName: "main", TotalAsset: dec(100000), AvailableCash: decimal.Zero}
	decision := &models.DecisionRecord{Symbol: "ABC", DecisionType: models.DecisionSell, TargetPositionPct: dec(0.1)}

	res, err := m.PreTrade(ctx, portfolio, decision)
	if err != nil {
		t.Fatalf("pre-trade: %v", err)
	}
	if res.Action != models.RiskAllow || !res.PositionPct.Equal(dec(0.1)) {
		t.Fatalf("result=%+v", res)
	}
}

func TestPreTradeAdjustsAndLogs(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New()
	m := &Manager{Config: config.DefaultRisk(), Repo: repo}
	portfolio := &models.Portfolio{ID: 7, AccountName: "simulation_main", TotalAsset: dec(100000), Cash: dec(10000), AvailableCash: dec(10000)}
	decision := &models.DecisionRecord{Symbol: "XYZ", DecisionType: models.DecisionBuy, TargetPositionPct: dec(0.10)}

	res, err := m.PreTrade(ctx, portfolio, decision)
	if err != nil {
		t.Fatalf("pre-trade: %v", err)
	}
	if res.Action != models.RiskAdjust || !res.PositionPct.Equal(dec(0.05)) {
		t.Fatalf("action=%s pct=%s", res.Action, res.PositionPct)
	}
	if len(repo.RiskLogs) != 1 {
		t.Fatalf("risk logs=%d want 1", len(repo.RiskLogs))
	}
	row := repo.RiskLogs[0]
	if row.Action != models.RiskAdjust || row.RiskType != "pre_trade" || row.PortfolioID == nil || *row.PortfolioID != 7 {
		t.Fatalf("row=%+v", row)
	}
	ind, _ := models.DecodeJSON[models.RiskIndicators](row.RiskIndicators)
	if !ind.TargetPosition.Equal(dec(0.10)) || !ind.AdjustedPosition.Equal(dec(0.05)) {
		t.Fatalf("indicators=%+v", ind)
	}
}

func TestPreTradeLogsAllowToo(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New()
	m := &Manager{Repo: repo}
	portfolio := &models.Portfolio{ID: 1, AccountName: "a", TotalAsset: dec(100000), AvailableCash: dec(100000)}
	res, err := m.PreTrade(ctx, portfolio, &models.DecisionRecord{Symbol: "ABC", TargetPositionPct: dec(0.02)})
	if err != nil || res.Action != models.RiskAllow {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	if len(repo.RiskLogs) != 1 || repo.RiskLogs[0].Recommendation != "execute" {
		t.Fatalf("logs=%+v", repo.RiskLogs)
	}
}

func TestPreTradeUsesHeldSymbolValue(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New()
	repo.Positions = append(repo.Positions, models.Position{
		ID: 1, Symbol: "ABC", AccountName: "a", Quantity: 100, TotalCost: dec(29000), MarketValue: decp(29500),
	})
	m := &Manager{Repo: repo}
	portfolio := &models.Portfolio{ID: 1, AccountName: "a", TotalAsset: dec(100000), AvailableCash: dec(70000)}
	res, err := m.PreTrade(ctx, portfolio, &models.DecisionRecord{Symbol: "ABC", TargetPositionPct: dec(0.03)})
	if err != nil {
		t.Fatalf("pre-trade: %v", err)
	}
	if res.Action != models.RiskAdjust || !res.PositionPct.Equal(dec(0.005)) {
		t.Fatalf("action=%s pct=%s", res.Action, res.PositionPct)
	}
}

func TestPositionAlerts(t *testing.T) {
	m := &Manager{}
	at := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

	losing := &models.Position{ID: 1, Symbol: "A", CurrentPrice: decp(90), UnrealizedPnLPct: decp(-10), StopLoss: decp(92), TakeProfit: decp(120)}
	alerts := m.PositionAlerts(losing, at)
	if len(alerts) != 2 || alerts[0].AlertType != AlertLoss || alerts[0].AlertLevel != models.AlertHigh ||
		alerts[1].AlertType != AlertStopLoss || alerts[1].AlertLevel != models.AlertCritical {
		t.Fatalf("alerts=%+v", alerts)
	}

	winner := &models.Position{ID: 2, Symbol: "B", CurrentPrice: decp(121), UnrealizedPnLPct: decp(21), StopLoss: decp(92), TakeProfit: decp(120)}
	alerts = m.PositionAlerts(winner, at)
	if len(alerts) != 1 || alerts[0].AlertType != AlertTakeProfit || alerts[0].AlertLevel != models.AlertInfo {
		t.Fatalf("alerts=%+v", alerts)
	}
	if *alerts[0].RelatedObjectID != 2 || !alerts[0].TriggeredAt.Equal(at) {
		t.Fatalf("alert links=%+v", alerts[0])
	}

	quiet := &models.Position{ID: 3, Symbol: "C", CurrentPrice: decp(100), UnrealizedPnLPct: decp(-4)}
	if alerts := m.PositionAlerts(quiet, at); len(alerts) != 0 {
		t.Fatalf("alerts=%+v", alerts)
	}
}
