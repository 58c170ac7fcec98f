// Package config loads the engine's static configuration from
// environment variables and an optional YAML file, and exposes a
// dynamic override service backed by Postgres for values operators
// want to tune without a redeploy (budget limits, concurrency,
// circuit-breaker thresholds).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the engine's static, process-start configuration.
type Config struct {
	Workspace string `yaml:"workspace"`

	Concurrency string `yaml:"concurrency"` // raw value; parsed by ParseConcurrency

	Storage   StorageConfig   `yaml:"storage"`
	Vision    VisionConfig    `yaml:"vision"`
	Budget    BudgetConfig    `yaml:"budget"`
	Baseline  BaselineConfig  `yaml:"baseline"`
	Diff      DiffConfig      `yaml:"diff"`
	Log       LogConfig       `yaml:"log"`
}

// StorageConfig selects and configures the baseline/cache backends.
type StorageConfig struct {
	Backend  string `yaml:"backend"` // "local", "s3"
	S3Bucket string `yaml:"s3_bucket"`

	PostgresDSN string `yaml:"postgres_dsn"`
	RedisAddr   string `yaml:"redis_addr"`
	SQLitePath  string `yaml:"sqlite_path"`
}

// VisionConfig configures the smart vision client's provider chain.
type VisionConfig struct {
	Enabled         bool     `yaml:"enabled"`
	FallbackEnabled bool     `yaml:"fallback_enabled"`
	Providers       []string `yaml:"providers"` // ordered, e.g. ["ollama", "openai"]
	OpenAIAPIKey    string   `yaml:"-"`
	OpenAIModel     string   `yaml:"openai_model"`
	OllamaBaseURL   string   `yaml:"ollama_base_url"`
	OllamaModel     string   `yaml:"ollama_model"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	MemoryCacheSize int      `yaml:"memory_cache_size"`
}

// BudgetConfig mirrors costtracker.Budget for file/env configuration.
type BudgetConfig struct {
	DailyLimitUSD     float64 `yaml:"daily_limit_usd"`
	MonthlyLimitUSD   float64 `yaml:"monthly_limit_usd"`
	WarningPct        float64 `yaml:"warning_pct"`
	CriticalPct       float64 `yaml:"critical_pct"`
	CircuitBreakerPct float64 `yaml:"circuit_breaker_pct"`
}

// BaselineConfig configures the baseline manager's key resolution.
type BaselineConfig struct {
	DefaultBranch  string `yaml:"default_branch"`
	BranchFallback bool   `yaml:"branch_fallback"`
}

// DiffConfig mirrors visdiff.Options defaults for file/env configuration.
type DiffConfig struct {
	PixelThreshold          float64 `yaml:"pixel_threshold"`
	AntiAliasingIgnored     bool    `yaml:"anti_aliasing_ignored"`
	SemanticAnalysisEnabled bool    `yaml:"semantic_analysis_enabled"`
	MaxConcurrency          int     `yaml:"max_concurrency"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	JSON  bool    `yaml:"json"`
}

// Default returns the specification's stated defaults.
func Default() Config {
	return Config{
		Workspace:   "./.vrtest",
		Concurrency: "auto",
		Storage:     StorageConfig{Backend: "local", SQLitePath: "./.vrtest/cache/vrtest.db"},
		Vision: VisionConfig{
			Enabled:         false,
			FallbackEnabled: true,
			Providers:       []string{"ollama", "openai"},
			OpenAIModel:     "gpt-4o",
			OllamaBaseURL:   "http://localhost:11434",
			OllamaModel:     "llava",
			CacheTTL:        30 * 24 * time.Hour,
			MemoryCacheSize: 100,
		},
		Budget: BudgetConfig{
			DailyLimitUSD:     10,
			MonthlyLimitUSD:   200,
			WarningPct:        0.80,
			CriticalPct:       0.95,
			CircuitBreakerPct: 1.00,
		},
		Baseline: BaselineConfig{DefaultBranch: "main", BranchFallback: false},
		Diff: DiffConfig{
			PixelThreshold:          0.008,
			AntiAliasingIgnored:     true,
			SemanticAnalysisEnabled: false,
			MaxConcurrency:          4,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads Default(), overlays an optional YAML file at path (a
// missing file is not an error — matching the teacher's "config file
// is optional, env vars and flags are the source of truth" posture),
// then overlays environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// optional file; fall through with defaults
		default:
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	return cfg, nil
}

// VisionCachePath returns the workspace-relative persistent-tier path
// for the AI vision cache, per §6's `<workspace>/cache/vision.db`.
func (c Config) VisionCachePath() string {
	return filepath.Join(c.Workspace, "cache", "vision.db")
}

// CostLedgerPath returns the workspace-relative path for the cost
// tracker's append-only ledger, per §6's `<workspace>/cache/cost.db`.
func (c Config) CostLedgerPath() string {
	return filepath.Join(c.Workspace, "cache", "cost.db")
}

// BaselineIndexPath returns the local SQLite baseline index path, used
// when Storage.SQLitePath is left at its zero value.
func (c Config) BaselineIndexPath() string {
	if c.Storage.SQLitePath != "" {
		return c.Storage.SQLitePath
	}
	return filepath.Join(c.Workspace, "baselines", "index.db")
}

// applyEnv overlays well-known VRTEST_* environment variables, matching
// the teacher's CONCURRENCY-env-var-overrides-default pattern.
func applyEnv(cfg *Config) {
	if v := os.Getenv("VRTEST_WORKSPACE"); v != "" {
		cfg.Workspace = v
	}
	if v := os.Getenv("VRTEST_CONCURRENCY"); v != "" {
		cfg.Concurrency = v
	}
	if v := os.Getenv("VRTEST_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("VRTEST_S3_BUCKET"); v != "" {
		cfg.Storage.S3Bucket = v
	}
	if v := os.Getenv("VRTEST_POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := os.Getenv("VRTEST_REDIS_ADDR"); v != "" {
		cfg.Storage.RedisAddr = v
	}
	if v := os.Getenv("VRTEST_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("VRTEST_VISION_ENABLED"); v != "" {
		cfg.Vision.Enabled = strconv.FormatBool(true) == v || v == "1"
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Vision.OpenAIAPIKey = v
	}
	if v := os.Getenv("VRTEST_OLLAMA_URL"); v != "" {
		cfg.Vision.OllamaBaseURL = v
	}
	if v := os.Getenv("VRTEST_DAILY_BUDGET_USD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Budget.DailyLimitUSD = f
		}
	}
	if v := os.Getenv("VRTEST_MONTHLY_BUDGET_USD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Budget.MonthlyLimitUSD = f
		}
	}
	if v := os.Getenv("VRTEST_DEFAULT_BRANCH"); v != "" {
		cfg.Baseline.DefaultBranch = v
	}
}
