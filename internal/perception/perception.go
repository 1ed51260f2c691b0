package perception

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradeagents/internal/agent"
	"tradeagents/internal/llm"
	"tradeagents/internal/models"
	"tradeagents/internal/opportunity"
	"tradeagents/internal/repository"
	"tradeagents/internal/service"
	"tradeagents/internal/telemetry"
)

const (
	defaultScanSymbols   = 20
	overviewIndices      = 5
	anomalyScanLimit     = 500
	sentimentUnavailable = "Sentiment interpretation unavailable"
)

type Agent struct {
	Repo          repository.Repository
	LLM           llm.Client
	Opportunities *opportunity.Manager
	Settings      *service.SystemSettingsService
	Metrics       *telemetry.Metrics
	Logger        *zap.Logger

	// ScanSymbols caps the symbols scanned for breakouts per cycle.
	ScanSymbols int

	now func() time.Time
}

type IndexQuote struct {
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Value     decimal.Decimal `json:"value"`
	ChangePct decimal.Decimal `json:"change_pct"`
	RiseCount *int            `json:"rise_count,omitempty"`
	FallCount *int            `json:"fall_count,omitempty"`
}

type Sentiment struct {
	Status         string   `json:"status,omitempty"`
	VIX            *float64 `json:"vix,omitempty"`
	FearGreedIndex *float64 `json:"fear_greed_index,omitempty"`
	PutCallRatio   *float64 `json:"put_call_ratio,omitempty"`
	Social         *float64 `json:"social_sentiment,omitempty"`
	Interpretation string   `json:"interpretation,omitempty"`
}

type Anomaly struct {
	Type      string    `json:"type"`
	Symbol    string    `json:"symbol"`
	ChangePct float64   `json:"change_pct"`
	Timestamp time.Time `json:"timestamp"`
	Severity  string    `json:"severity"`
}

type Breakout struct {
	Type        string          `json:"type"`
	Symbol      string          `json:"symbol"`
	Description string          `json:"description"`
	Confidence  float64         `json:"confidence"`
	Close       decimal.Decimal `json:"close"`
}

type RiskSignal struct {
	Type        string     `json:"type"`
	Severity    string     `json:"severity"`
	Value       *float64   `json:"value,omitempty"`
	Threshold   *float64   `json:"threshold,omitempty"`
	EventLevel  *int       `json:"event_level,omitempty"`
	Title       string     `json:"title,omitempty"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
	Description string     `json:"description,omitempty"`
}

// Snapshot is the result of one perception cycle.
type Snapshot struct {
	Timestamp     time.Time    `json:"timestamp"`
	Indices       []IndexQuote `json:"indices"`
	Sentiment     Sentiment    `json:"sentiment"`
	Anomalies     []Anomaly    `json:"anomalies"`
	Opportunities []Breakout   `json:"opportunities"`
	RiskSignals   []RiskSignal `json:"risk_signals"`
	// Persisted counts breakouts newly written as MarketOpportunity rows.
	Persisted int      `json:"persisted"`
	Degraded  []string `json:"degraded,omitempty"`
}

func (a *Agent) Name() models.AgentType { return models.AgentPerception }

func (a *Agent) RunOnce(ctx context.Context) (agent.Summary, error) {
	snap, err := a.Perceive(ctx)
	if err != nil {
		return nil, err
	}
	summary := agent.Summary{
		"indices":       len(snap.Indices),
		"anomalies":     len(snap.Anomalies),
		"opportunities": len(snap.Opportunities),
		"persisted":     snap.Persisted,
		"risk_signals":  len(snap.RiskSignals),
		"sentiment":     snap.Sentiment.Interpretation,
	}
	summary[agent.SummaryDegraded] = len(snap.Degraded)
	return summary, nil
}

// Perceive builds the snapshot and, when enabled, persists breakouts as opportunities.
func (a *Agent) Perceive(ctx context.Context) (*Snapshot, error) {
	now := a.clock()
	snap := &Snapshot{Timestamp: now}

	if _, err := a.Opportunities.ExpireStale(ctx); err != nil {
		return nil, fmt.Errorf("expire opportunities: %w", err)
	}

	indices, err := a.Repo.ListLatestIndices(ctx, now.Add(-24*time.Hour), overviewIndices)
	if err != nil {
		return nil, fmt.Errorf("market overview: %w", err)
	}
	for _, idx := range indices {
		snap.Indices = append(snap.Indices, IndexQuote{
			Code:      idx.IndexCode,
			Name:      idx.IndexName,
			Value:     idx.Value,
			ChangePct: idx.ChangePct,
			RiseCount: idx.RiseCount,
			FallCount: idx.FallCount,
		})
	}

	latest, err := a.Repo.GetLatestSentiment(ctx)
	if err != nil {
		return nil, fmt.Errorf("sentiment: %w", err)
	}
	snap.Sentiment = a.interpretSentiment(ctx, latest, snap)

	if snap.Anomalies, err = a.detectAnomalies(ctx, now); err != nil {
		return nil, err
	}
	if snap.Opportunities, err = a.scanBreakouts(ctx, now); err != nil {
		return nil, err
	}
	if snap.RiskSignals, err = a.detectRiskSignals(ctx, now, latest); err != nil {
		return nil, err
	}

	if a.Settings.IsEnabled(ctx, service.FeaturePersistOpportunities, true) {
		for _, b := range snap.Opportunities {
			created, err := a.Opportunities.Upsert(ctx, opportunity.Candidate{
				Symbol:     b.Symbol,
				Type:       b.Type,
				Confidence: b.Confidence,
				Price:      b.Close,
				Reason:     b.Description,
				Trigger:    map[string]any{"rule": "close > 1.02 * max(high[1:5])"},
			})
			if err != nil {
				return nil, fmt.Errorf("persist opportunity %s: %w", b.Symbol, err)
			}
			if created {
				snap.Persisted++
			}
		}
	}

	a.log().Info("market perception completed",
		zap.Int("anomalies", len(snap.Anomalies)),
		zap.Int("opportunities", len(snap.Opportunities)),
		zap.Int("risk_signals", len(snap.RiskSignals)),
	)
	return snap, nil
}

func (a *Agent) interpretSentiment(ctx context.Context, row *models.MarketSentiment, snap *Snapshot) Sentiment {
	if row == nil {
		return Sentiment{Status: "no_data"}
	}
	out := Sentiment{
		VIX:            toFloat(row.VIX),
		FearGreedIndex: toFloat(row.FearGreedIndex),
		PutCallRatio:   toFloat(row.PutCallRatio),
		Social:         toFloat(row.SocialSentimentScore),
	}
	res := llm.Text(ctx, a.LLM, llm.Request{
		Tier:        llm.TierFast,
		Temperature: 0.3,
		System:      "You are a market analyst who reads sentiment indicators.",
		User: fmt.Sprintf(`Interpret these market sentiment indicators in under 50 words.

VIX: %s
Fear & greed index: %s
Put/call ratio: %s
Social sentiment: %s

What is the current mood and what stance fits it?`,
			fmtDec(row.VIX), fmtDec(row.FearGreedIndex), fmtDec(row.PutCallRatio), fmtDec(row.SocialSentimentScore)),
	}, sentimentUnavailable)
	if res.Degraded {
		agent.NoteDegraded(ctx, a.log(), a.Metrics, models.AgentPerception, "sentiment", res.Err)
		snap.Degraded = append(snap.Degraded, "sentiment")
	}
	out.Interpretation = res.Value
	return out
}

func (a *Agent) detectAnomalies(ctx context.Context, now time.Time) ([]Anomaly, error) {
	since := now.Add(-time.Hour)
	bars, err := a.Repo.ListMarketData(ctx, repository.ListMarketDataParams{Since: &since, Limit: anomalyScanLimit})
	if err != nil {
		return nil, fmt.Errorf("anomalies: %w", err)
	}
	var out []Anomaly
	for _, bar := range bars {
		severity, ok := anomalySeverity(bar.ChangePct)
		if !ok {
			continue
		}
		out = append(out, Anomaly{
			Type:      "price_spike",
			Symbol:    bar.Symbol,
			ChangePct: bar.ChangePct.InexactFloat64(),
			Timestamp: bar.Timestamp,
			Severity:  severity,
		})
	}
	return out, nil
}

func (a *Agent) scanBreakouts(ctx context.Context, now time.Time) ([]Breakout, error) {
	limit := a.ScanSymbols
	if limit <= 0 {
		limit = defaultScanSymbols
	}
	symbols, err := a.Repo.ListActiveSymbols(ctx, now.Add(-24*time.Hour), limit)
	if err != nil {
		return nil, fmt.Errorf("active symbols: %w", err)
	}
	window := now.Add(-5 * 24 * time.Hour)
	var out []Breakout
	for _, symbol := range symbols {
		sym := symbol
		bars, err := a.Repo.ListMarketData(ctx, repository.ListMarketDataParams{Symbol: &sym, Since: &window, Limit: breakoutBars})
		if err != nil {
			return nil, fmt.Errorf("bars %s: %w", symbol, err)
		}
		if !IsBreakout(bars) {
			continue
		}
		out = append(out, Breakout{
			Type:        "breakout",
			Symbol:      symbol,
			Description: fmt.Sprintf("%s broke above its recent resistance", symbol),
			Confidence:  breakoutConfidence,
			Close:       bars[0].Close,
		})
	}
	return out, nil
}

func (a *Agent) detectRiskSignals(ctx context.Context, now time.Time, latest *models.MarketSentiment) ([]RiskSignal, error) {
	var out []RiskSignal
	if latest != nil {
		if severity, ok := vixSeverity(latest.VIX); ok {
			v := latest.VIX.InexactFloat64()
			threshold := vixThreshold.InexactFloat64()
			out = append(out, RiskSignal{
				Type:        "high_vix",
				Severity:    severity,
				Value:       &v,
				Threshold:   &threshold,
				Description: fmt.Sprintf("VIX at %.2f, elevated volatility", v),
			})
		}
	}

	since := now.Add(-24 * time.Hour)
	minLevel := majorNewsLevel
	news, err := a.Repo.ListNewsEvents(ctx, repository.ListNewsEventsParams{Since: &since, MinLevel: &minLevel, Limit: 100})
	if err != nil {
		return nil, fmt.Errorf("news: %w", err)
	}
	for _, n := range news {
		if n.EventLevel == nil {
			continue
		}
		level := *n.EventLevel
		ts := n.PublishedAt
		out = append(out, RiskSignal{
			Type:       "major_event",
			Severity:   newsSeverity(level),
			EventLevel: &level,
			Title:      n.Title,
			Timestamp:  &ts,
		})
	}
	return out, nil
}

// NewsAnalysis is the LLM's read of one news event.
type NewsAnalysis struct {
	EventLevel      int      `json:"event_level"`
	SentimentScore  float64  `json:"sentiment_score"`
	AffectedSectors []string `json:"affected_sectors"`
	ImpactAnalysis  string   `json:"impact_analysis"`
	Degraded        bool     `json:"degraded,omitempty"`
}

// AnalyzeNews rates one news event and writes the result onto the row. A degraded
// analysis is returned but not written. Unknown ids return (nil, nil).
func (a *Agent) AnalyzeNews(ctx context.Context, newsID uint64) (*NewsAnalysis, error) {
	news, err := a.Repo.GetNewsEventByID(ctx, newsID)
	if err != nil || news == nil {
		return nil, err
	}
	content := news.Content
	if short := agent.Truncate(content, 500); short != content {
		content = short + "..."
	}
	res := llm.Structured(ctx, a.LLM, llm.Request{
		Tier:        llm.TierFast,
		Temperature: 0.3,
		System:      "You are a financial news analyst.",
		User: fmt.Sprintf(`Assess the market impact of this news.

Title: %s
Content: %s

Return JSON:
{"event_level": 1-10 (10 is a black swan), "sentiment_score": -100..100, "affected_sectors": ["..."], "impact_analysis": "under 100 words"}`,
			news.Title, content),
	}, NewsAnalysis{})
	out := res.Value
	if res.Degraded {
		agent.NoteDegraded(ctx, a.log(), a.Metrics, models.AgentPerception, "news_analysis", res.Err)
		out.Degraded = true
		return &out, nil
	}
	level := clampInt(out.EventLevel, 1, 10)
	out.EventLevel = level
	score := decimal.NewFromFloat(out.SentimentScore)
	if err := a.Repo.UpdateNewsAnalysis(ctx, news.ID, &level, &score, strings.TrimSpace(out.ImpactAnalysis)); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *Agent) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now().UTC()
}

func (a *Agent) log() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}

func toFloat(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	v := d.InexactFloat64()
	return &v
}

func fmtDec(d *decimal.Decimal) string {
	if d == nil {
		return "n/a"
	}
	return d.String()
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
