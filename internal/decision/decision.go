package decision

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
	"tradeagents/internal/repository"
	"tradeagents/internal/telemetry"
)

const (
	defaultBatchSize = 5
	quantWindow      = 20
)

type Agent struct {
	Repo      repository.Repository
	LLM       llm.Client
	Heartbeat *agent.Heartbeat
	Metrics   *telemetry.Metrics
	Logger    *zap.Logger

	// BatchSize caps the opportunities debated per cycle.
	BatchSize int

	now func() time.Time
}

func (a *Agent) Name() models.AgentType { return models.AgentDecision }

// RunOnce debates the newest identified or analyzing opportunities. A failure on one
// opportunity is logged and skipped.
func (a *Agent) RunOnce(ctx context.Context) (agent.Summary, error) {
	opps, err := a.Repo.ListOpportunities(ctx, repository.ListOpportunitiesParams{
		Statuses: []models.OpportunityStatus{models.OpportunityIdentified, models.OpportunityAnalyzing},
		OrderBy:  "identified_at",
		Limit:    a.batchSize(),
	})
	if err != nil {
		return nil, fmt.Errorf("load opportunities: %w", err)
	}

	made, skipped, degraded := 0, 0, 0
	for i := range opps {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		rec, err := a.MakeDecision(ctx, &opps[i])
		if err != nil {
			a.log().Error("decision failed",
				zap.Uint64("opportunity_id", opps[i].ID),
				zap.String("symbol", opps[i].Symbol),
				zap.Error(err),
			)
			a.Heartbeat.Fail(ctx, models.AgentDecision, err)
			skipped++
			continue
		}
		if rec == nil {
			skipped++
			continue
		}
		made++
		steps, _ := models.DecodeJSON[[]string](rec.DegradedSteps)
		degraded += len(steps)
	}

	summary := agent.Summary{
		"opportunities": len(opps),
		"decisions":     made,
		"skipped":       skipped,
	}
	summary[agent.SummaryDegraded] = degraded
	return summary, nil
}

// MakeDecision debates one opportunity. It returns (nil, nil) when the symbol has
// no market data; the opportunity is left untouched in that case.
func (a *Agent) MakeDecision(ctx context.Context, opp *models.MarketOpportunity) (*models.DecisionRecord, error) {
	if opp == nil {
		return nil, nil
	}
	if opp.Status != models.OpportunityIdentified && opp.Status != models.OpportunityAnalyzing {
		return nil, models.OpportunityTransitions.Check("opportunity", opp.Status, models.OpportunityValidated)
	}
	log := a.log().With(zap.Uint64("opportunity_id", opp.ID), zap.String("symbol", opp.Symbol))

	symbol := opp.Symbol
	bars, err := a.Repo.ListMarketData(ctx, repository.ListMarketDataParams{Symbol: &symbol, Limit: quantWindow})
	if err != nil {
		return nil, fmt.Errorf("load market data: %w", err)
	}
	if len(bars) == 0 {
		log.Warn("no market data, opportunity left for a later cycle")
		return nil, nil
	}

	if opp.Status == models.OpportunityIdentified {
		if err := models.TransitionOpportunity(opp, models.OpportunityAnalyzing); err != nil {
			return nil, err
		}
		if err := a.Repo.UpdateOpportunity(ctx, opp); err != nil {
			return nil, fmt.Errorf("mark analyzing: %w", err)
		}
	}

	latest := bars[0]
	snap := MarketSnapshot{
		Symbol:       symbol,
		CurrentPrice: latest.Close,
		Volume:       latest.Volume,
		High:         latest.High,
		Low:          latest.Low,
	}
	if latest.ChangePct != nil {
		snap.ChangePct = *latest.ChangePct
	}
	closes := make([]decimal.Decimal, 0, len(bars))
	for _, b := range bars {
		closes = append(closes, b.Close)
	}

	d := &Debate{}
	a.aggressive(ctx, snap, d)
	a.conservative(ctx, snap, d)
	a.quant(ctx, snap, closes, d)
	a.judge(ctx, snap, d)
	for _, step := range d.Degraded {
		agent.NoteDegraded(ctx, log, a.Metrics, models.AgentDecision, step, d.errs[step])
	}

	rec := a.record(opp, snap, d)
	err = a.Repo.InTx(ctx, func(tx repository.Repository) error {
		if err := tx.InsertDecision(ctx, rec); err != nil {
			return fmt.Errorf("insert decision: %w", err)
		}
		next := models.OpportunityValidated
		if rec.DecisionType == models.DecisionHold {
			next = models.OpportunityInvalid
		}
		if err := models.TransitionOpportunity(opp, next); err != nil {
			return err
		}
		id := rec.ID
		opp.DecisionID = &id
		return tx.UpdateOpportunity(ctx, opp)
	})
	if err != nil {
		return nil, err
	}

	log.Info("decision recorded",
		zap.Uint64("decision_id", rec.ID),
		zap.String("decision", string(rec.DecisionType)),
		zap.String("confidence", rec.ConfidenceScore.String()),
		zap.Strings("degraded_steps", d.Degraded),
	)
	return rec, nil
}

func (a *Agent) record(opp *models.MarketOpportunity, snap MarketSnapshot, d *Debate) *models.DecisionRecord {
	kind := models.ParseDecisionType(strings.ToLower(strings.TrimSpace(d.Judge.FinalDecision)))
	confidence := decimal.NewFromFloat(d.Judge.Confidence)
	positionPct := decimal.NewFromFloat(d.Judge.PositionPct)
	if positionPct.IsNegative() {
		positionPct = decimal.Zero
	}
	price := snap.CurrentPrice
	stopLoss, takeProfit := StopLevels(kind, price,
		decimal.NewFromFloat(d.Judge.StopLossPct),
		decimal.NewFromFloat(d.Judge.TakeProfitPct))

	oppID := opp.ID
	degraded := d.Degraded
	if degraded == nil {
		degraded = []string{}
	}
	return &models.DecisionRecord{
		Symbol:        opp.Symbol,
		OpportunityID: &oppID,
		DecisionType:  kind,
		DecisionTime:  a.clock(),
		Proposal: models.EncodeJSON(models.Proposal{
			SchemaVersion:   models.PayloadSchemaVersion,
			OpportunityID:   opp.ID,
			OpportunityType: opp.OpportunityType,
			CurrentPrice:    price,
		}),
		TargetPrice:       &price,
		TargetPositionPct: positionPct.Div(hundred),
		AggressiveView:    d.Aggressive.Rationale,
		ConservativeView:  strings.Join(d.Conservative.Concerns, "; "),
		QuantAnalysis:     models.EncodeJSON(d.Quant),
		DebateSummary:     d.Summary(),
		FinalDecision:     d.Judge.Reasoning,
		DegradedSteps:     models.EncodeJSON(degraded),
		ConfidenceLevel:   ConfidenceBucket(confidence),
		ConfidenceScore:   confidence,
		StopLoss:          stopLoss,
		TakeProfit:        takeProfit,
	}
}

func (a *Agent) batchSize() int {
	if a.BatchSize > 0 {
		return a.BatchSize
	}
	return defaultBatchSize
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
