package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/vrtest-dev/vrtest/internal/baseline"
	"github.com/vrtest-dev/vrtest/internal/capture"
	capturepw "github.com/vrtest-dev/vrtest/internal/capture/playwright"
	"github.com/vrtest-dev/vrtest/internal/config"
	"github.com/vrtest-dev/vrtest/internal/costtracker"
	"github.com/vrtest-dev/vrtest/internal/runner"
	"github.com/vrtest-dev/vrtest/internal/vcs"
	"github.com/vrtest-dev/vrtest/internal/vision"
	"github.com/vrtest-dev/vrtest/internal/vision/providers"
	"github.com/vrtest-dev/vrtest/internal/visdiff"
	"github.com/vrtest-dev/vrtest/internal/visioncache"
)

// engine bundles a fully wired Runner with the resources that need an
// orderly Close, mirroring the app-level "wire everything, return one
// closer" shape the teacher's scrapemateapp construction uses.
type engine struct {
	Runner *runner.Runner

	driver *capturepw.Driver
	db     *sql.DB
	redis  *redis.Client
}

func (e *engine) Close(ctx context.Context) error {
	var err error
	if e.Runner != nil {
		err = multierr.Append(err, e.Runner.Close(ctx))
	}
	if e.driver != nil {
		err = multierr.Append(err, e.driver.Close())
	}
	if e.redis != nil {
		err = multierr.Append(err, e.redis.Close())
	}
	if e.db != nil {
		err = multierr.Append(err, e.db.Close())
	}
	return err
}

// buildEngine wires every subsystem named in SPEC_FULL.md's domain
// stack from a loaded config.Config: baseline store (Postgres/SQLite
// metadata index, local/S3 payload store), cost tracker (Postgres/
// SQLite ledger), vision cache (Redis/SQLite persistent tier) plus the
// provider fallback chain, the Playwright capture driver, and finally
// the runner itself.
func buildEngine(ctx context.Context, cfg config.Config, log *zap.SugaredLogger, headless bool) (*engine, error) {
	e := &engine{}

	if cfg.Storage.PostgresDSN != "" {
		db, err := sql.Open("pgx", cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("vrtest: opening postgres: %w", err)
		}
		e.db = db
	}

	if cfg.Storage.RedisAddr != "" {
		e.redis = redis.NewClient(&redis.Options{Addr: cfg.Storage.RedisAddr})
	}

	baselineRepo, err := buildBaselineRepository(cfg, e.db)
	if err != nil {
		return nil, err
	}
	payloadStore, err := buildPayloadStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	gitVCS := vcs.New("")
	baselines := baseline.NewManager(baselineRepo, payloadStore, gitVCS, baseline.Config{
		DefaultBranch:  cfg.Baseline.DefaultBranch,
		BranchFallback: cfg.Baseline.BranchFallback,
	})

	driver, err := capturepw.NewDriver(headless)
	if err != nil {
		return nil, fmt.Errorf("vrtest: starting playwright: %w", err)
	}
	e.driver = driver
	captureEngine := capture.NewEngine(log)

	diffEngine := visdiff.NewEngine()

	var visionClient *vision.Client
	if cfg.Vision.Enabled {
		visionClient, err = buildVisionClient(ctx, cfg, log, e.db, e.redis)
		if err != nil {
			return nil, err
		}
	}

	r, err := runner.NewRunner(runner.Config{
		PageFactory: func(ctx context.Context) (capture.Page, error) { return driver.NewPage(ctx) },
		Capture:     captureEngine,
		Diff:        diffEngine,
		Baselines:   baselines,
		Vision:      visionClient,
		VCS:         gitVCS,
		Concurrency: concurrencyOrDefault(cfg.Concurrency),
		Progress:    runner.NewTerminalProgressSink(func(s string) { fmt.Print(s) }),
		Log:         log,
	})
	if err != nil {
		return nil, err
	}
	e.Runner = r
	return e, nil
}

// newS3Client builds an S3 client the same way the teacher's
// s3uploader does: adaptive retry, credentials resolved from the
// environment (AWS_ACCESS_KEY_ID/AWS_SECRET_ACCESS_KEY/AWS_REGION),
// rather than baking a static credentials provider into the CLI.
func newS3Client(ctx context.Context) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRetryMaxAttempts(3),
		awsconfig.WithRetryMode(aws.RetryModeAdaptive),
	)
	if err != nil {
		return nil, fmt.Errorf("vrtest: loading aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.Retryer = retry.NewStandard(func(so *retry.StandardOptions) {
			so.MaxAttempts = 3
			so.MaxBackoff = 20 * time.Second
		})
	}), nil
}

// buildBaselineManager wires just the baseline store, for commands
// (`baseline list`, `baseline cleanup`) that never need a browser.
func buildBaselineManager(ctx context.Context, cfg config.Config) (*baseline.Manager, func() error, error) {
	var db *sql.DB
	if cfg.Storage.PostgresDSN != "" {
		var err error
		db, err = sql.Open("pgx", cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("vrtest: opening postgres: %w", err)
		}
	}

	repo, err := buildBaselineRepository(cfg, db)
	if err != nil {
		return nil, nil, err
	}
	payload, err := buildPayloadStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	mgr := baseline.NewManager(repo, payload, vcs.New(""), baseline.Config{
		DefaultBranch:  cfg.Baseline.DefaultBranch,
		BranchFallback: cfg.Baseline.BranchFallback,
	})

	closer := func() error {
		if db != nil {
			return db.Close()
		}
		return nil
	}
	return mgr, closer, nil
}

func buildBaselineRepository(cfg config.Config, db *sql.DB) (baseline.Repository, error) {
	if db != nil {
		return baseline.NewPostgresRepository(db)
	}
	path := cfg.BaselineIndexPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("vrtest: creating baseline index directory: %w", err)
	}
	return baseline.NewSQLiteRepository(path)
}

func buildPayloadStore(ctx context.Context, cfg config.Config) (baseline.PayloadStore, error) {
	if cfg.Storage.Backend == "s3" {
		client, err := newS3Client(ctx)
		if err != nil {
			return nil, err
		}
		return baseline.NewS3PayloadStore(client, cfg.Storage.S3Bucket), nil
	}
	return baseline.NewLocalPayloadStore(cfg.Workspace), nil
}

func buildVisionClient(ctx context.Context, cfg config.Config, log *zap.SugaredLogger, db *sql.DB, rdb *redis.Client) (*vision.Client, error) {
	var persistent visioncache.PersistentTier
	var err error
	if rdb != nil {
		persistent = visioncache.NewRedisTier(rdb, cfg.Vision.CacheTTL)
	} else {
		path := cfg.VisionCachePath()
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, fmt.Errorf("vrtest: creating vision cache directory: %w", mkErr)
		}
		persistent, err = visioncache.NewSQLiteTier(path)
		if err != nil {
			return nil, fmt.Errorf("vrtest: vision cache: %w", err)
		}
	}
	cache := visioncache.NewCache(persistent, cfg.Vision.MemoryCacheSize, cfg.Vision.CacheTTL)

	var store costtracker.Store
	if db != nil {
		store, err = costtracker.NewPostgresStore(context.Background(), db)
	} else {
		path := cfg.CostLedgerPath()
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, fmt.Errorf("vrtest: creating cost ledger directory: %w", mkErr)
		}
		store, err = costtracker.NewSQLiteStore(path)
	}
	if err != nil {
		return nil, fmt.Errorf("vrtest: cost tracker: %w", err)
	}
	tracker := costtracker.NewTracker(store, costtracker.NewPriceTable(), costtracker.Budget{
		DailyLimitUSD:     cfg.Budget.DailyLimitUSD,
		MonthlyLimitUSD:   cfg.Budget.MonthlyLimitUSD,
		WarningPct:        cfg.Budget.WarningPct,
		CriticalPct:       cfg.Budget.CriticalPct,
		CircuitBreakerPct: cfg.Budget.CircuitBreakerPct,
	})

	// Dynamic budget overrides: an operator can raise/lower the daily
	// or monthly limit (or the breaker percentage) by writing to
	// vrtest_config without a restart. With no Postgres configured the
	// Service still resolves env-var overrides against the static
	// fallback, so it is always worth wiring.
	cfgService := config.NewService(db)
	if db != nil {
		if err := cfgService.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("vrtest: config service schema: %w", err)
		}
	}
	tracker.SetBudgetSource(cfgService)

	chain, err := buildProviderChain(cfg, log)
	if err != nil {
		return nil, err
	}

	return vision.NewClient(vision.Config{
		Providers:       chain,
		FallbackEnabled: cfg.Vision.FallbackEnabled,
		Cache:           cache,
		Tracker:         tracker,
	})
}

func buildProviderChain(cfg config.Config, log *zap.SugaredLogger) ([]vision.Provider, error) {
	byName := map[string]func() (vision.Provider, error){
		"ollama": func() (vision.Provider, error) {
			return providers.NewOllamaProvider(cfg.Vision.OllamaBaseURL, cfg.Vision.OllamaModel, log), nil
		},
		"openai": func() (vision.Provider, error) {
			return providers.NewOpenAIProvider(cfg.Vision.OpenAIAPIKey, cfg.Vision.OpenAIModel, log)
		},
	}

	names := cfg.Vision.Providers
	if len(names) == 0 {
		names = []string{"ollama"}
	}

	chain := make([]vision.Provider, 0, len(names))
	for _, name := range names {
		ctor, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("vrtest: unknown vision provider %q", name)
		}
		p, err := ctor()
		if err != nil {
			// A misconfigured optional provider (e.g. openai without a
			// key) is dropped from the chain rather than failing
			// construction outright, so "ollama,openai" still starts
			// with only OPENAI_API_KEY unset.
			log.Warnw("vrtest: dropping vision provider", "provider", name, "error", err)
			continue
		}
		chain = append(chain, p)
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("vrtest: no usable vision providers configured")
	}
	return chain, nil
}

func concurrencyOrDefault(raw string) int {
	n, err := config.ParseConcurrency(raw)
	if err != nil {
		return 4
	}
	return n
}
