package main

import (
	"context"
	"testing"

	"tradeagents/internal/models"
	"tradeagents/internal/repository/memrepo"
)

func TestSeedStrategiesIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memrepo.New()

	created, err := seedStrategies(ctx, store)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if created != 6 || len(store.Strategies) != 6 {
		t.Fatalf("expected 6 starter strategies, created=%d rows=%d", created, len(store.Strategies))
	}
	for _, s := range store.Strategies {
		params, err := models.DecodeJSON[map[string]any](s.Parameters)
		if err != nil || len(params) == 0 {
			t.Fatalf("strategy %s has no parameters (%v)", s.StrategyID, err)
		}
		if !s.IsActive || s.Generation != 1 {
			t.Fatalf("unexpected starter row %+v", s)
		}
	}

	created, err = seedStrategies(ctx, store)
	if err != nil {
		t.Fatalf("reseed: %v", err)
	}
	if created != 0 || len(store.Strategies) != 6 {
		t.Fatalf("reseed should be a no-op, created=%d rows=%d", created, len(store.Strategies))
	}
}

func TestAgentNamesCoverPipeline(t *testing.T) {
	names := agentNames()
	if len(names) != len(models.AgentTypes) || names[0] != "perception" || names[5] != "reflection" {
		t.Fatalf("unexpected names %v", names)
	}
}
