package perception

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"tradeagents/internal/llm"
	"tradeagents/internal/models"
	"tradeagents/internal/opportunity"
	"tradeagents/internal/repository/memrepo"
	"tradeagents/internal/service"
)

type fakeLLM struct {
	reply string
	err   error
	calls []llm.Request
}

func (f *fakeLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.calls = append(f.calls, req)
	return f.reply, f.err
}

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func decp(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

func bar(symbol string, at time.Time, high, close float64) models.MarketData {
	return models.MarketData{
		Symbol: symbol, Market: "US", Timestamp: at,
		Open: dec(close), High: dec(high), Low: dec(close), Close: dec(close),
	}
}

func TestIsBreakout(t *testing.T) {
	now := time.Now()
	mk := func(latestClose float64) []models.MarketData {
		return []models.MarketData{
			bar("X", now, latestClose, latestClose),
			bar("X", now.Add(-24*time.Hour), 100, 99),
			bar("X", now.Add(-48*time.Hour), 98, 97),
			bar("X", now.Add(-72*time.Hour), 97, 96),
			bar("X", now.Add(-96*time.Hour), 96, 95),
		}
	}
	cases := []struct {
		close float64
		want  bool
	}{
		{102.01, true},
		{102, false},
		{101, false},
	}
	for _, tc := range cases {
		if got := IsBreakout(mk(tc.close)); got != tc.want {
			t.Fatalf("close=%v breakout=%v want %v", tc.close, got, tc.want)
		}
	}
	if IsBreakout(mk(200)[:4]) {
		t.Fatalf("four bars can never be a breakout")
	}
}

func TestAnomalyAndRiskSeverities(t *testing.T) {
	cases := []struct {
		pct  float64
		sev  string
		flag bool
	}{
		{5, "", false},
		{-5.5, "medium", true},
		{10, "medium", true},
		{-10.5, "high", true},
	}
	for _, tc := range cases {
		sev, ok := anomalySeverity(decp(tc.pct))
		if ok != tc.flag || sev != tc.sev {
			t.Fatalf("pct=%v got (%q,%v) want (%q,%v)", tc.pct, sev, ok, tc.sev, tc.flag)
		}
	}
	if _, ok := vixSeverity(decp(30)); ok {
		t.Fatalf("vix 30 is not a signal")
	}
	if sev, _ := vixSeverity(decp(35)); sev != "medium" {
		t.Fatalf("vix 35 severity=%s", sev)
	}
	if sev, _ := vixSeverity(decp(41)); sev != "high" {
		t.Fatalf("vix 41 severity=%s", sev)
	}
	if newsSeverity(8) != "high" || newsSeverity(9) != "critical" {
		t.Fatalf("news severity")
	}
}

func seed(repo *memrepo.Store, now time.Time) {
	day := 24 * time.Hour
	repo.MarketData = append(repo.MarketData,
		bar("BRK", now.Add(-10*time.Minute), 110, 110),
		bar("BRK", now.Add(-1*day), 100, 99),
		bar("BRK", now.Add(-2*day), 98, 97),
		bar("BRK", now.Add(-3*day), 97, 96),
		bar("BRK", now.Add(-4*day), 96, 95),
		bar("FLAT", now.Add(-10*time.Minute), 100, 100),
	)
	repo.MarketData[0].ChangePct = decp(11)
	repo.MarketData[5].ChangePct = decp(1)
	level8, level5 := 8, 5
	repo.News = append(repo.News,
		models.NewsEvent{ID: 1, Title: "major", PublishedAt: now.Add(-time.Hour), EventLevel: &level8},
		models.NewsEvent{ID: 2, Title: "minor", PublishedAt: now.Add(-time.Hour), EventLevel: &level5},
	)
	repo.Sentiments = append(repo.Sentiments, models.MarketSentiment{Timestamp: now, VIX: decp(42), FearGreedIndex: decp(20)})
	repo.Indices = append(repo.Indices,
		models.MarketIndex{IndexCode: "SPX", IndexName: "S&P 500", Timestamp: now.Add(-2 * time.Hour), Value: dec(5000)},
		models.MarketIndex{IndexCode: "SPX", IndexName: "S&P 500", Timestamp: now.Add(-time.Hour), Value: dec(5010)},
	)
}

func TestPerceivePersistsBreakouts(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	repo := memrepo.New()
	seed(repo, now)
	a := &Agent{
		Repo:          repo,
		LLM:           &fakeLLM{reply: "Fearful market, stay defensive."},
		Opportunities: &opportunity.Manager{Repo: repo},
		Settings:      &service.SystemSettingsService{Repo: repo},
		now:           func() time.Time { return now },
	}
	snap, err := a.Perceive(ctx)
	if err != nil {
		t.Fatalf("perceive: %v", err)
	}
	if len(snap.Indices) != 1 || !snap.Indices[0].Value.Equal(dec(5010)) {
		t.Fatalf("indices=%+v", snap.Indices)
	}
	if len(snap.Anomalies) != 1 || snap.Anomalies[0].Symbol != "BRK" || snap.Anomalies[0].Severity != "high" {
		t.Fatalf("anomalies=%+v", snap.Anomalies)
	}
	if len(snap.Opportunities) != 1 || snap.Opportunities[0].Confidence != 0.7 {
		t.Fatalf("opportunities=%+v", snap.Opportunities)
	}
	if len(snap.RiskSignals) != 2 {
		t.Fatalf("risk signals=%+v", snap.RiskSignals)
	}
	if snap.Sentiment.Interpretation != "Fearful market, stay defensive." || len(snap.Degraded) != 0 {
		t.Fatalf("sentiment=%+v degraded=%v", snap.Sentiment, snap.Degraded)
	}
	if snap.Persisted != 1 || len(repo.Opportunities) != 1 {
		t.Fatalf("persisted=%d rows=%d", snap.Persisted, len(repo.Opportunities))
	}

	again, err := a.Perceive(ctx)
	if err != nil {
		t.Fatalf("second perceive: %v", err)
	}
	if again.Persisted != 0 || len(repo.Opportunities) != 1 {
		t.Fatalf("second cycle persisted=%d rows=%d", again.Persisted, len(repo.Opportunities))
	}
}

func TestPerceiveRespectsSwitchAndDegradesSentiment(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	repo := memrepo.New()
	seed(repo, now)
	settings := &service.SystemSettingsService{Repo: repo}
	if err := settings.SetEnabled(ctx, service.FeaturePersistOpportunities, false); err != nil {
		t.Fatalf("switch: %v", err)
	}
	a := &Agent{
		Repo:          repo,
		LLM:           &fakeLLM{err: errors.New("timeout")},
		Opportunities: &opportunity.Manager{Repo: repo},
		Settings:      settings,
		now:           func() time.Time { return now },
	}
	summary, err := a.RunOnce(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary["persisted"] != 0 || len(repo.Opportunities) != 0 {
		t.Fatalf("persisted with switch off: %v", summary)
	}
	if summary.Degraded() != 1 || summary["sentiment"] != sentimentUnavailable {
		t.Fatalf("summary=%v", summary)
	}
}

func TestAnalyzeNews(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New()
	repo.News = append(repo.News, models.NewsEvent{ID: 7, Title: "Rate cut", Content: "The central bank cut rates.", PublishedAt: time.Now()})
	fake := &fakeLLM{reply: `{"event_level": 12, "sentiment_score": 40, "affected_sectors": ["banks"], "impact_analysis": "Positive for equities."}`}
	a := &Agent{Repo: repo, LLM: fake}

	got, err := a.AnalyzeNews(ctx, 7)
	if err != nil || got == nil {
		t.Fatalf("analyze: %v %v", got, err)
	}
	if got.EventLevel != 10 {
		t.Fatalf("level=%d want clamped 10", got.EventLevel)
	}
	row := repo.News[0]
	if row.EventLevel == nil || *row.EventLevel != 10 || row.ImpactAnalysis != "Positive for equities." {
		t.Fatalf("row=%+v", row)
	}
	if fake.calls[0].Tier != llm.TierFast || fake.calls[0].Temperature != 0.3 {
		t.Fatalf("request=%+v", fake.calls[0])
	}

	fake.reply, fake.err = "", errors.New("down")
	got, err = a.AnalyzeNews(ctx, 7)
	if err != nil || !got.Degraded {
		t.Fatalf("degraded analyze: %+v %v", got, err)
	}
	if missing, err := a.AnalyzeNews(ctx, 99); missing != nil || err != nil {
		t.Fatalf("missing news: %v %v", missing, err)
	}
}

func TestAnalyzeNewsTruncatesOnRuneBoundary(t *testing.T) {
	ctx := context.Background()
	repo := memrepo.New()
	repo.News = append(repo.News, models.NewsEvent{ID: 8, Title: "央行降息", Content: strings.Repeat("降息", 300), PublishedAt: time.Now()})
	fake := &fakeLLM{reply: `{"event_level": 6, "sentiment_score": 20, "impact_analysis": "利好"}`}
	a := &Agent{Repo: repo, LLM: fake}

	if _, err := a.AnalyzeNews(ctx, 8); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	prompt := fake.calls[0].User
	if !utf8.ValidString(prompt) {
		t.Fatalf("prompt is not valid utf-8")
	}
	if !strings.Contains(prompt, "Content: "+strings.Repeat("降息", 250)+"...\n") {
		t.Fatalf("content not cut at 500 runes: %q", prompt)
	}
}
