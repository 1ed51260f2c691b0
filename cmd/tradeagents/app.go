package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradeagents/internal/agent"
	"tradeagents/internal/config"
	"tradeagents/internal/db"
	"tradeagents/internal/decision"
	"tradeagents/internal/execution"
	"tradeagents/internal/llm"
	"tradeagents/internal/lock"
	"tradeagents/internal/logger"
	"tradeagents/internal/memory"
	"tradeagents/internal/models"
	"tradeagents/internal/opportunity"
	"tradeagents/internal/paas"
	"tradeagents/internal/perception"
	"tradeagents/internal/planning"
	"tradeagents/internal/reflection"
	gormrepository "tradeagents/internal/repository/gorm"
	"tradeagents/internal/risk"
	"tradeagents/internal/service"
	"tradeagents/internal/telemetry"
	"tradeagents/internal/vectorstore"
)

// app holds everything a command needs once config is loaded.
type app struct {
	cfg       config.Config
	logger    *zap.Logger
	db        *db.DB
	store     *gormrepository.Store
	settings  *service.SystemSettingsService
	telemetry *telemetry.Provider
	heartbeat *agent.Heartbeat
	paas      *paas.Client

	memory    *memory.Agent
	execution *execution.Agent
	agents    map[models.AgentType]agent.Agent

	closers []func()
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	a := &app{cfg: cfg, logger: log}
	a.closers = append(a.closers, func() { _ = log.Sync() })

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open db: %w", err)
	}
	a.db = dbConn
	a.closers = append(a.closers, func() { _ = db.Close(dbConn) })
	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		log.Warn("failed to set timezone", zap.Error(err))
	}

	a.store = gormrepository.New(dbConn.Gorm)
	settingsCipher, err := service.NewSettingsCipher(cfg.Settings.EncryptionKey, cfg.Settings.PrevEncryptionKey)
	if err != nil {
		a.close()
		return nil, err
	}
	a.settings = &service.SystemSettingsService{Repo: a.store, Cipher: settingsCipher}
	cfg.LLM.APIKey = a.credential(ctx, cfg.LLM.APIKey, "llm_api_key")
	cfg.Embedding.APIKey = a.credential(ctx, cfg.Embedding.APIKey, "embedding_api_key")
	a.heartbeat = &agent.Heartbeat{Repo: a.store, Logger: log}

	a.telemetry, err = telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	a.closers = append(a.closers, func() {
		sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = a.telemetry.Shutdown(sctx)
	})
	metrics := a.telemetry.Metrics

	chat, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init llm: %w", err)
	}
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		log.Warn("llm api key not set, agents will use fallback results")
	}

	var vectors vectorstore.Store
	switch strings.ToLower(strings.TrimSpace(cfg.VectorStore.Driver)) {
	case "memory":
		vectors = vectorstore.NewMemory()
	case "", "gorm":
		vectors = vectorstore.NewGorm(dbConn.Gorm)
	default:
		a.close()
		return nil, fmt.Errorf("unsupported vector store driver %q", cfg.VectorStore.Driver)
	}

	var locker lock.Locker
	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		rl := lock.NewRedis(&redis.Options{Addr: addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		a.closers = append(a.closers, func() { _ = rl.Client.Close() })
		locker = rl
	} else {
		locker = lock.NewLocal()
	}

	riskMgr := &risk.Manager{
		Config:  cfg.Risk,
		Repo:    a.store,
		Metrics: metrics,
		Logger:  logger.ForAgent(log, "risk"),
	}

	agentsCfg := cfg.Agents
	a.memory = &memory.Agent{
		Repo:        a.store,
		Embedder:    llm.NewEmbedder(cfg.Embedding),
		Vectors:     vectors,
		Metrics:     metrics,
		Logger:      logger.ForAgent(log, string(models.AgentMemoryStage)),
		ForgetAfter: agentsCfg.Memory.ForgetAfter,
		StoreBatch:  agentsCfg.Memory.StoreBatch,
	}
	a.execution = &execution.Agent{
		Repo:           a.store,
		Risk:           riskMgr,
		Locker:         locker,
		Heartbeat:      a.heartbeat,
		Metrics:        metrics,
		Logger:         logger.ForAgent(log, string(models.AgentExecution)),
		Portfolio:      agentsCfg.Execution.Portfolio,
		InitialCapital: decimal.NewFromFloat(agentsCfg.Execution.InitialCapital),
		CommissionRate: decimal.NewFromFloat(agentsCfg.Execution.CommissionRate),
		BatchSize:      agentsCfg.Execution.BatchSize,
		LockTTL:        cfg.Redis.LockTTL,
	}
	a.agents = map[models.AgentType]agent.Agent{
		models.AgentPerception: &perception.Agent{
			Repo: a.store,
			LLM:  chat,
			Opportunities: &opportunity.Manager{
				Repo:   a.store,
				Logger: logger.ForAgent(log, string(models.AgentPerception)),
			},
			Settings:    a.settings,
			Metrics:     metrics,
			Logger:      logger.ForAgent(log, string(models.AgentPerception)),
			ScanSymbols: agentsCfg.Perception.ScanSymbols,
		},
		models.AgentPlanning: &planning.Agent{
			Repo:      a.store,
			LLM:       chat,
			Metrics:   metrics,
			Logger:    logger.ForAgent(log, string(models.AgentPlanning)),
			Portfolio: agentsCfg.Planning.Portfolio,
			Horizon:   agentsCfg.Planning.Horizon,
		},
		models.AgentDecision: &decision.Agent{
			Repo:      a.store,
			LLM:       chat,
			Heartbeat: a.heartbeat,
			Metrics:   metrics,
			Logger:    logger.ForAgent(log, string(models.AgentDecision)),
			BatchSize: agentsCfg.Decision.BatchSize,
		},
		models.AgentExecution:   a.execution,
		models.AgentMemoryStage: a.memory,
		models.AgentReflection: &reflection.Agent{
			Repo:            a.store,
			LLM:             chat,
			Memory:          a.memory,
			Heartbeat:       a.heartbeat,
			Metrics:         metrics,
			Logger:          logger.ForAgent(log, string(models.AgentReflection)),
			MaxEvolutions:   agentsCfg.Reflection.MaxEvolutions,
			MutationRate:    agentsCfg.Reflection.MutationRate,
			FitnessToEvolve: agentsCfg.Reflection.FitnessToEvolve,
		},
	}

	a.paas = initPaaSClient(cfg.PaaS, log)
	return a, nil
}

// credential prefers the configured value and falls back to a sealed system setting.
func (a *app) credential(ctx context.Context, configured, settingKey string) string {
	if strings.TrimSpace(configured) != "" {
		return configured
	}
	if v, ok := a.settings.Secret(ctx, settingKey); ok {
		a.logger.Info("using credential from system settings", zap.String("key", settingKey))
		return v
	}
	return ""
}

// interval returns the scheduling period of one agent.
func (a *app) interval(t models.AgentType) time.Duration {
	c := a.cfg.Agents
	switch t {
	case models.AgentPerception:
		return c.Perception.Interval
	case models.AgentPlanning:
		return c.Planning.Interval
	case models.AgentDecision:
		return c.Decision.Interval
	case models.AgentExecution:
		return c.Execution.Interval
	case models.AgentMemoryStage:
		return c.Memory.Interval
	case models.AgentReflection:
		return c.Reflection.Interval
	}
	return 0
}

// close runs the registered closers in reverse order.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func initPaaSClient(cfg config.PaaSConfig, log *zap.Logger) *paas.Client {
	p := paas.New(cfg.BaseURL, cfg.APIKey, cfg.Agent)
	if p == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := p.Login(ctx); err != nil {
		log.Warn("paas login failed (audit forwarding disabled)", zap.Error(err))
		return nil
	}
	log.Info("paas login ok")
	return p
}
