package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	DB          DBConfig          `mapstructure:"db"`
	Redis       RedisConfig       `mapstructure:"redis"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	VectorStore VectorStoreConfig `mapstructure:"vector_store"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	PaaS        PaaSConfig        `mapstructure:"paas"`
	Settings    SettingsConfig    `mapstructure:"settings"`
	Agents      AgentsConfig      `mapstructure:"agents"`
	Risk        RiskConfig        `mapstructure:"risk"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	// Driver is "postgres" (default) or "sqlite".
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

// RedisConfig backs the portfolio lock. An empty Addr selects the in-process lock.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

type LLMConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	FastModel string        `mapstructure:"fast_model"`
	FullModel string        `mapstructure:"full_model"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type EmbeddingConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

type VectorStoreConfig struct {
	// Driver is "gorm" (default) or "memory".
	Driver string `mapstructure:"driver"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	Disabled  bool          `mapstructure:"disabled"`
}

type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

type PaaSConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Agent   string `mapstructure:"agent"`
}

// SettingsConfig holds the AES keys sealing credential rows in system_settings.
type SettingsConfig struct {
	EncryptionKey     string `mapstructure:"encryption_key"`
	PrevEncryptionKey string `mapstructure:"prev_encryption_key"`
}

type AgentsConfig struct {
	Perception PerceptionConfig `mapstructure:"perception"`
	Planning   PlanningConfig   `mapstructure:"planning"`
	Decision   DecisionConfig   `mapstructure:"decision"`
	Execution  ExecutionConfig  `mapstructure:"execution"`
	Memory     MemoryConfig     `mapstructure:"memory"`
	Reflection ReflectionConfig `mapstructure:"reflection"`
}

type PerceptionConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	ScanSymbols int           `mapstructure:"scan_symbols"`
}

type PlanningConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	Portfolio string        `mapstructure:"portfolio"`
	Horizon   string        `mapstructure:"horizon"`
}

type DecisionConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
}

type ExecutionConfig struct {
	Interval       time.Duration `mapstructure:"interval"`
	BatchSize      int           `mapstructure:"batch_size"`
	Portfolio      string        `mapstructure:"portfolio"`
	InitialCapital float64       `mapstructure:"initial_capital"`
	CommissionRate float64       `mapstructure:"commission_rate"`
}

type MemoryConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	ForgetAfter time.Duration `mapstructure:"forget_after"`
	StoreBatch  int           `mapstructure:"store_batch"`
}

type ReflectionConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	MaxEvolutions   int           `mapstructure:"max_evolutions"`
	MutationRate    float64       `mapstructure:"mutation_rate"`
	FitnessToEvolve float64       `mapstructure:"fitness_to_evolve"`
}

// RiskConfig holds pre-trade and in-trade thresholds. Percentages are fractions
// except PositionLossAlertPct, which is compared against unrealized_pnl_pct.
type RiskConfig struct {
	MaxSingleTradePct    float64 `mapstructure:"max_single_trade_pct"`
	MaxConcentrationPct  float64 `mapstructure:"max_concentration_pct"`
	MaxDailyLossPct      float64 `mapstructure:"max_daily_loss_pct"`
	MaxDrawdown          float64 `mapstructure:"max_drawdown"`
	PositionLossAlertPct float64 `mapstructure:"position_loss_alert_pct"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.name", "tradeagents")
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.development", false)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 10)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", "30s")

	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.fast_model", "gpt-4o-mini")
	v.SetDefault("llm.full_model", "gpt-4o")
	v.SetDefault("llm.max_tokens", 2000)
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("vector_store.driver", "gorm")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("auth.disabled", false)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "tradeagents")
	v.SetDefault("paas.base_url", "")
	v.SetDefault("paas.api_key", "")
	v.SetDefault("paas.agent", "tradeagents")
	v.SetDefault("settings.encryption_key", "")
	v.SetDefault("settings.prev_encryption_key", "")

	v.SetDefault("agents.perception.interval", "5m")
	v.SetDefault("agents.perception.scan_symbols", 20)
	v.SetDefault("agents.planning.interval", "1h")
	v.SetDefault("agents.planning.portfolio", "simulation_main")
	v.SetDefault("agents.planning.horizon", "daily")
	v.SetDefault("agents.decision.interval", "60s")
	v.SetDefault("agents.decision.batch_size", 5)
	v.SetDefault("agents.execution.interval", "30s")
	v.SetDefault("agents.execution.batch_size", 5)
	v.SetDefault("agents.execution.portfolio", "simulation_main")
	v.SetDefault("agents.execution.initial_capital", 1000000)
	v.SetDefault("agents.execution.commission_rate", 0.0003)
	v.SetDefault("agents.memory.interval", "1h")
	v.SetDefault("agents.memory.forget_after", "2160h")
	v.SetDefault("agents.memory.store_batch", 10)
	v.SetDefault("agents.reflection.interval", "24h")
	v.SetDefault("agents.reflection.max_evolutions", 3)
	v.SetDefault("agents.reflection.mutation_rate", 0.1)
	v.SetDefault("agents.reflection.fitness_to_evolve", 0.5)

	v.SetDefault("risk.max_single_trade_pct", 0.05)
	v.SetDefault("risk.max_concentration_pct", 0.30)
	v.SetDefault("risk.max_daily_loss_pct", 0.05)
	v.SetDefault("risk.max_drawdown", 0.15)
	v.SetDefault("risk.position_loss_alert_pct", 5)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// DefaultRisk returns the thresholds used when no config file is loaded.
func DefaultRisk() RiskConfig {
	return RiskConfig{
		MaxSingleTradePct:    0.05,
		MaxConcentrationPct:  0.30,
		MaxDailyLossPct:      0.05,
		MaxDrawdown:          0.15,
		PositionLossAlertPct: 5,
	}
}
