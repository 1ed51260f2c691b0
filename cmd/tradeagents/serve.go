package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"tradeagents/internal/agent"
	"tradeagents/internal/auth"
	cronrunner "tradeagents/internal/cron"
	"tradeagents/internal/db"
	"tradeagents/internal/handler"
	"tradeagents/internal/models"
	"tradeagents/internal/paas"
	"tradeagents/internal/service"

	_ "tradeagents/docs"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run every agent on its interval and serve the admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	log := a.logger
	if err := db.AutoMigrate(a.db); err != nil {
		return err
	}
	if err := a.settings.EnsureDefaultSwitches(ctx); err != nil {
		log.Warn("init default system switches failed", zap.Error(err))
	}
	if a.cfg.Auth.Disabled {
		log.Warn("api auth disabled")
	} else if strings.TrimSpace(a.cfg.Auth.JWTSecret) == "" {
		log.Warn("auth.jwt_secret is empty, every /api request will be rejected")
	}

	baseCtx := ctx
	if a.paas != nil {
		baseCtx = paas.WithClient(ctx, a.paas)
	}

	if strings.EqualFold(a.cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(auth.RequireBearer(auth.JWT{Secret: []byte(a.cfg.Auth.JWTSecret), TokenTTL: a.cfg.Auth.TokenTTL}, a.cfg.Auth.Disabled))
	engine.Use(paas.InjectClientMiddleware(a.paas))
	engine.Use(paas.WriteAuditMiddleware(a.paas, log))

	health := &handler.HealthHandler{Ping: func() error { return db.Ping(a.db) }}
	health.Register(engine)
	paas.RegisterDocs(engine)

	agentsHandler := &handler.AgentsHandler{
		Repo:      a.store,
		Agents:    a.agents,
		Heartbeat: a.heartbeat,
		Metrics:   a.telemetry.Metrics,
		Logger:    log,
	}
	agentsHandler.Register(engine)
	pipeline := &handler.PipelineHandler{Repo: a.store}
	pipeline.Register(engine)
	memories := &handler.MemoryHandler{Repo: a.store, Memory: a.memory}
	memories.Register(engine)
	settings := &handler.SettingsHandler{Repo: a.store, Settings: a.settings}
	settings.Register(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	cronRunner := cronrunner.New(log, baseCtx)
	for _, t := range models.AgentTypes {
		scheduleAgent(cronRunner, a, t)
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	srv := &http.Server{
		Addr:              a.cfg.Server.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", zap.String("addr", a.cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case serveErr = <-errCh:
		log.Error("server error", zap.Error(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	return serveErr
}

// scheduleAgent registers one agent with the cron runner. Each tick checks the
// agent's feature switch first, so a switched-off agent stays idle without a restart.
func scheduleAgent(r *cronrunner.Runner, a *app, t models.AgentType) {
	ag, ok := a.agents[t]
	if !ok {
		return
	}
	interval := a.interval(t)
	key := service.AgentFeature(t)
	_, err := r.Every(interval, func(ctx context.Context) {
		if !a.settings.IsEnabled(ctx, key, true) {
			return
		}
		ctx = paas.WithStage(ctx, string(t))
		summary, err := agent.RunCycle(ctx, ag, a.heartbeat, a.logger, a.telemetry.Metrics)
		if err != nil {
			paas.LogBestEffortCtx(ctx, "tradeagents_cycle_failed", "warn", map[string]any{
				"agent": string(t),
				"error": err.Error(),
			})
			return
		}
		if summary.Degraded() > 0 {
			paas.LogBestEffortCtx(ctx, "tradeagents_cycle_degraded", "info", map[string]any{
				"agent":    string(t),
				"degraded": summary.Degraded(),
			})
		}
	})
	if err != nil {
		a.logger.Warn("cron register agent failed", zap.String("agent", string(t)), zap.Error(err))
		return
	}
	a.logger.Info("agent scheduled", zap.String("agent", string(t)), zap.Duration("interval", interval))
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
