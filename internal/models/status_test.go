package models

import (
	"errors"
	"testing"
)

func TestOpportunityTransitions(t *testing.T) {
	cases := []struct {
		from, to OpportunityStatus
		ok       bool
	}{
		{OpportunityIdentified, OpportunityAnalyzing, true},
		{OpportunityAnalyzing, OpportunityValidated, true},
		{OpportunityValidated, OpportunityExecuted, true},
		{OpportunityValidated, OpportunityAnalyzing, false},
		{OpportunityExecuted, OpportunityExpired, false},
		{OpportunityInvalid, OpportunityValidated, false},
	}
	for _, tc := range cases {
		o := &MarketOpportunity{Status: tc.from}
		err := TransitionOpportunity(o, tc.to)
		if tc.ok {
			if err != nil || o.Status != tc.to {
				t.Fatalf("%s -> %s: %v (status %s)", tc.from, tc.to, err, o.Status)
			}
			continue
		}
		if !errors.Is(err, ErrIllegalTransition) || o.Status != tc.from {
			t.Fatalf("%s -> %s should be illegal, got %v (status %s)", tc.from, tc.to, err, o.Status)
		}
	}
}

func TestTradeAndPlanTerminalStates(t *testing.T) {
	tr := &Trade{Status: TradeFilled}
	if err := TransitionTrade(tr, TradeCancelled); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("filled trade must be terminal, got %v", err)
	}
	p := &TradingPlan{Status: PlanActive}
	if err := TransitionPlan(p, PlanCompleted); err != nil {
		t.Fatalf("active -> completed: %v", err)
	}
	if err := TransitionPlan(p, PlanActive); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("completed plan must be terminal, got %v", err)
	}
}

func TestParseDecisionTypeDefaultsToHold(t *testing.T) {
	for in, want := range map[string]DecisionType{
		"buy":    DecisionBuy,
		"sell":   DecisionSell,
		"hold":   DecisionHold,
		"":       DecisionHold,
		"strong": DecisionHold,
		"BUY":    DecisionHold,
	} {
		if got := ParseDecisionType(in); got != want {
			t.Fatalf("%q: got %s want %s", in, got, want)
		}
	}
}

func TestDecodeJSONEmptyColumn(t *testing.T) {
	got, err := DecodeJSON[[]string](nil)
	if err != nil || got != nil {
		t.Fatalf("empty column should decode to zero value, got %v %v", got, err)
	}
	steps, err := DecodeJSON[[]string](EncodeJSON([]string{"judge"}))
	if err != nil || len(steps) != 1 || steps[0] != "judge" {
		t.Fatalf("decode steps: %v %v", steps, err)
	}
}

func TestParseAgentType(t *testing.T) {
	for _, want := range AgentTypes {
		got, err := ParseAgentType(string(want))
		if err != nil || got != want {
			t.Fatalf("parse %q: got %q err=%v", want, got, err)
		}
	}
	if got, _ := ParseAgentType("memory"); got != AgentMemoryStage {
		t.Fatalf("memory stage: got %q", got)
	}
	if _, err := ParseAgentType("bogus"); err == nil {
		t.Fatalf("expected error for unknown agent")
	}
}
