package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tradeagents/internal/agent"
	"tradeagents/internal/auth"
	"tradeagents/internal/db"
	"tradeagents/internal/models"
	"tradeagents/internal/planning"
	"tradeagents/internal/repository"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:       "run <agent>",
		Short:     "Run one cycle of a single agent and print its summary, or loop with --interval",
		Args:      cobra.ExactArgs(1),
		ValidArgs: agentNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := models.ParseAgentType(args[0])
			if err != nil {
				return err
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()

			if interval > 0 {
				err := agent.Loop(ctx, a.agents[name], interval, a.heartbeat, a.logger, a.telemetry.Metrics)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}

			summary, err := agent.RunCycle(ctx, a.agents[name], a.heartbeat, a.logger, a.telemetry.Metrics)
			if err != nil {
				return err
			}
			out, _ := json.MarshalIndent(summary, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "loop at this interval until interrupted (0 runs once)")
	return cmd
}

func agentNames() []string {
	out := make([]string, 0, len(models.AgentTypes))
	for _, t := range models.AgentTypes {
		out = append(out, string(t))
	}
	return out
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close()
			if err := db.AutoMigrate(a.db); err != nil {
				return err
			}
			a.logger.Info("migration complete", zap.String("driver", a.db.Driver))
			return nil
		},
	}
}

func newSeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the default portfolio, feature switches and starter strategies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()
			if err := db.AutoMigrate(a.db); err != nil {
				return err
			}
			if err := a.settings.EnsureDefaultSwitches(ctx); err != nil {
				return err
			}
			p, err := a.execution.EnsurePortfolio(ctx)
			if err != nil {
				return err
			}
			created, err := seedStrategies(ctx, a.store)
			if err != nil {
				return err
			}
			a.logger.Info("seed complete",
				zap.String("portfolio", p.AccountName),
				zap.String("cash", p.Cash.String()),
				zap.Int("strategies_created", created),
			)
			return nil
		},
	}
}

// starterParameters are the genes every seeded strategy starts from.
var starterParameters = map[string]map[string]any{
	"trend_following": {"fast_period": 5, "slow_period": 20, "stop_loss_pct": 0.05},
	"momentum":        {"lookback_period": 10, "entry_threshold": 0.03, "stop_loss_pct": 0.05},
	"mean_reversion":  {"lookback_period": 20, "z_entry": 2.0, "z_exit": 0.5},
	"defensive":       {"max_position_pct": 0.05, "stop_loss_pct": 0.03},
	"arbitrage":       {"spread_threshold": 0.01, "max_holding_days": 3},
	"market_neutral":  {"hedge_ratio": 1.0, "rebalance_days": 5},
}

// seedStrategies creates one starter strategy per type tag. Existing rows are left alone.
func seedStrategies(ctx context.Context, repo repository.Repository) (int, error) {
	existing, err := repo.ListStrategies(ctx, repository.ListStrategiesParams{Limit: 500})
	if err != nil {
		return 0, err
	}
	have := map[string]bool{}
	for _, s := range existing {
		have[s.StrategyID] = true
	}
	created := 0
	for _, typ := range planning.StrategyTypes() {
		id := "starter_" + typ
		if have[id] {
			continue
		}
		item := &models.Strategy{
			StrategyID:   id,
			Name:         "Starter " + typ,
			StrategyType: typ,
			Description:  "seeded starter strategy",
			Status:       "active",
			IsActive:     true,
			Parameters:   models.EncodeJSON(starterParameters[typ]),
			Generation:   1,
		}
		if err := repo.UpsertStrategy(ctx, item); err != nil {
			return created, fmt.Errorf("seed %s: %w", id, err)
		}
		created++
	}
	return created, nil
}

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for the admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			j := auth.JWT{Secret: []byte(cfg.Auth.JWTSecret), TokenTTL: cfg.Auth.TokenTTL}
			if ttl > 0 {
				j.TokenTTL = ttl
			}
			tok, expiresAt, err := j.Sign(subject, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject, e.g. ops")
	cmd.Flags().StringVar(&role, "role", "operator", "role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "override auth.token_ttl")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
