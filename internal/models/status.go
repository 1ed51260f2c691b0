package models

import (
	"errors"
	"fmt"
)

// ErrIllegalTransition is returned when a status change is not an edge of the entity's transition table.
var ErrIllegalTransition = errors.New("illegal status transition")

type AgentType string

const (
	AgentPerception  AgentType = "perception"
	AgentPlanning    AgentType = "planning"
	AgentDecision    AgentType = "decision"
	AgentExecution   AgentType = "execution"
	AgentMemoryStage AgentType = "memory"
	AgentReflection  AgentType = "reflection"
)

// AgentTypes lists every pipeline stage in pipeline order.
var AgentTypes = []AgentType{
	AgentPerception,
	AgentPlanning,
	AgentDecision,
	AgentExecution,
	AgentMemoryStage,
	AgentReflection,
}

func ParseAgentType(s string) (AgentType, error) {
	for _, t := range AgentTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown agent %q", s)
}

// AgentState is informational; any state may follow any other.
type AgentState string

const (
	AgentRunning AgentState = "running"
	AgentStopped AgentState = "stopped"
	AgentError   AgentState = "error"
	AgentPaused  AgentState = "paused"
)

type OpportunityStatus string

const (
	OpportunityIdentified OpportunityStatus = "identified"
	OpportunityAnalyzing  OpportunityStatus = "analyzing"
	OpportunityValidated  OpportunityStatus = "validated"
	OpportunityInvalid    OpportunityStatus = "invalid"
	OpportunityExecuted   OpportunityStatus = "executed"
	OpportunityExpired    OpportunityStatus = "expired"
)

type PlanStatus string

const (
	PlanDraft     PlanStatus = "draft"
	PlanActive    PlanStatus = "active"
	PlanAdjusting PlanStatus = "adjusting"
	PlanCompleted PlanStatus = "completed"
	PlanCancelled PlanStatus = "cancelled"
)

type TradeStatus string

const (
	TradePending   TradeStatus = "pending"
	TradeSubmitted TradeStatus = "submitted"
	TradePartial   TradeStatus = "partial"
	TradeFilled    TradeStatus = "filled"
	TradeCancelled TradeStatus = "cancelled"
	TradeRejected  TradeStatus = "rejected"
	TradeFailed    TradeStatus = "failed"
)

// Transitions maps a state to the states it may move to. States absent from the map are terminal.
type Transitions[S ~string] map[S][]S

func (t Transitions[S]) Allows(from, to S) bool {
	for _, next := range t[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Check returns ErrIllegalTransition (wrapped with the entity and both states) when from→to is not allowed.
func (t Transitions[S]) Check(entity string, from, to S) error {
	if t.Allows(from, to) {
		return nil
	}
	return fmt.Errorf("%s %s -> %s: %w", entity, from, to, ErrIllegalTransition)
}

var OpportunityTransitions = Transitions[OpportunityStatus]{
	OpportunityIdentified: {OpportunityAnalyzing, OpportunityValidated, OpportunityInvalid, OpportunityExpired},
	OpportunityAnalyzing:  {OpportunityValidated, OpportunityInvalid, OpportunityExpired},
	OpportunityValidated:  {OpportunityExecuted, OpportunityExpired},
}

var PlanTransitions = Transitions[PlanStatus]{
	PlanDraft:     {PlanActive, PlanCancelled},
	PlanActive:    {PlanAdjusting, PlanCompleted, PlanCancelled},
	PlanAdjusting: {PlanActive, PlanCompleted, PlanCancelled},
}

var TradeTransitions = Transitions[TradeStatus]{
	TradePending:   {TradeSubmitted, TradeFilled, TradeCancelled, TradeRejected, TradeFailed},
	TradeSubmitted: {TradePartial, TradeFilled, TradeCancelled, TradeRejected, TradeFailed},
	TradePartial:   {TradeFilled, TradeCancelled},
}

// TransitionOpportunity moves o to the next status or returns ErrIllegalTransition.
func TransitionOpportunity(o *MarketOpportunity, to OpportunityStatus) error {
	if err := OpportunityTransitions.Check("opportunity", o.Status, to); err != nil {
		return err
	}
	o.Status = to
	return nil
}

func TransitionPlan(p *TradingPlan, to PlanStatus) error {
	if err := PlanTransitions.Check("plan", p.Status, to); err != nil {
		return err
	}
	p.Status = to
	return nil
}

func TransitionTrade(t *Trade, to TradeStatus) error {
	if err := TradeTransitions.Check("trade", t.Status, to); err != nil {
		return err
	}
	t.Status = to
	return nil
}

type DecisionType string

const (
	DecisionBuy  DecisionType = "buy"
	DecisionSell DecisionType = "sell"
	DecisionHold DecisionType = "hold"
)

// ParseDecisionType maps free-form judge output onto buy/sell/hold; anything unrecognized is hold.
func ParseDecisionType(s string) DecisionType {
	switch DecisionType(s) {
	case DecisionBuy, DecisionSell:
		return DecisionType(s)
	default:
		return DecisionHold
	}
}

type ConfidenceLevel string

const (
	ConfidenceVeryHigh ConfidenceLevel = "very_high"
	ConfidenceHigh     ConfidenceLevel = "high"
	ConfidenceMedium   ConfidenceLevel = "medium"
	ConfidenceLow      ConfidenceLevel = "low"
	ConfidenceVeryLow  ConfidenceLevel = "very_low"
)

type TradeAction string

const (
	ActionBuy  TradeAction = "BUY"
	ActionSell TradeAction = "SELL"
)

type ExecutionStatus string

const (
	ExecutionExecuted ExecutionStatus = "executed"
	ExecutionRejected ExecutionStatus = "rejected"
	ExecutionSkipped  ExecutionStatus = "skipped"
)

type RiskAction string

const (
	RiskAllow  RiskAction = "allow"
	RiskReject RiskAction = "reject"
	RiskAdjust RiskAction = "adjust"
	RiskAlert  RiskAction = "alert"
	RiskPause  RiskAction = "pause"
)

type MemoryType string

const (
	MemoryWorking   MemoryType = "working"
	MemoryShortTerm MemoryType = "short_term"
	MemoryLongTerm  MemoryType = "long_term"
	MemoryEpisodic  MemoryType = "episodic"
)

type AlertLevel string

const (
	AlertInfo     AlertLevel = "info"
	AlertMedium   AlertLevel = "medium"
	AlertHigh     AlertLevel = "high"
	AlertCritical AlertLevel = "critical"
)
