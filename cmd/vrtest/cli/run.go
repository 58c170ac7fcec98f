package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vrtest-dev/vrtest/internal/baseline"
	"github.com/vrtest-dev/vrtest/internal/capture"
	"github.com/vrtest-dev/vrtest/internal/config"
	"github.com/vrtest-dev/vrtest/internal/distqueue"
	"github.com/vrtest-dev/vrtest/internal/runner"
	"github.com/vrtest-dev/vrtest/internal/visdiff"
)

var (
	runInputFile       string
	runUpdateBaselines bool
	runStrictMissing   bool
	runIncremental     bool
	runBaseRef         string
	runHeadless        bool
	runTimeout         time.Duration
	runDistributed     bool
)

var runCmd = &cobra.Command{
	Use:   "run [urls...]",
	Short: "Capture, diff, and (optionally) classify a set of pages against their baselines",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&runInputFile, "input", "", "file of URLs, one per line (use '-' for stdin); ignored if URLs are given as args")
	runCmd.Flags().BoolVar(&runUpdateBaselines, "update-baselines", false, "replace every page's stored baseline with the fresh capture (a page with no baseline gets one stored with or without this flag)")
	runCmd.Flags().BoolVar(&runStrictMissing, "strict", false, "accepted but not read by the runner: a page with no baseline always has its fresh capture stored as the baseline and passes")
	runCmd.Flags().BoolVar(&runIncremental, "incremental", false, "select pages from a version-control diff plus a sample of unchanged pages")
	runCmd.Flags().StringVar(&runBaseRef, "base-ref", "main", "base git ref for --incremental selection")
	runCmd.Flags().BoolVar(&runHeadless, "headless", true, "run the capture browser headless")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 30*time.Minute, "overall run timeout")
	runCmd.Flags().BoolVar(&runDistributed, "distributed", false, "enqueue pages onto the Redis task queue instead of capturing them in-process (requires a running `vrtest worker`)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	urls, err := resolveURLs(args)
	if err != nil {
		return err
	}
	if len(urls) == 0 {
		return fmt.Errorf("vrtest: no URLs given; pass them as arguments or --input")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
	defer cancel()

	if runDistributed {
		return enqueueDistributed(ctx, cfg, urls)
	}

	eng, err := buildEngine(ctx, cfg, log, runHeadless)
	if err != nil {
		return err
	}
	defer eng.Close(context.Background()) //nolint:errcheck

	pages := make([]runner.PageSpec, 0, len(urls))
	for _, u := range urls {
		pages = append(pages, runner.PageSpec{
			Name: u,
			CaptureConfig: capture.Config{
				URL:            u,
				ViewportWidth:  1280,
				ViewportHeight: 720,
				Mode:           capture.ModeViewport,
				Format:         "png",
				Stabilization: capture.Stabilization{
					WaitForFonts:       true,
					DisableAnimations:  true,
					WaitForNetworkIdle: true,
					NetworkIdleTimeout: 5 * time.Second,
				},
			},
			Branch:         "", // resolved from VCS at runtime by the baseline manager
			UpdateBaseline: runUpdateBaselines,
		})
	}

	strategy := baseline.StrategyBranch

	run, err := eng.Runner.Run(ctx, runner.Input{
		Pages: pages,
		Selection: runner.SelectionOptions{
			Incremental: runIncremental,
			BaseRef:     runBaseRef,
		},
		DiffOptions: visdiff.Options{
			PixelThreshold:          cfg.Diff.PixelThreshold,
			AntiAliasingIgnored:     cfg.Diff.AntiAliasingIgnored,
			MaxConcurrency:          cfg.Diff.MaxConcurrency,
			SemanticAnalysisEnabled: cfg.Diff.SemanticAnalysisEnabled && cfg.Vision.Enabled,
		},
		BaselineStrategy: strategy,
	})
	if err != nil {
		return fmt.Errorf("vrtest: run failed: %w", err)
	}

	fmt.Println()
	printSummary(run)

	if run.Summary.Errored > 0 || run.Summary.BySeverity[visdiff.SeverityModerate] > 0 || run.Summary.BySeverity[visdiff.SeverityBreaking] > 0 {
		return fmt.Errorf("vrtest: run failed: %d errored, %d moderate, %d breaking",
			run.Summary.Errored, run.Summary.BySeverity[visdiff.SeverityModerate], run.Summary.BySeverity[visdiff.SeverityBreaking])
	}
	return nil
}

func printSummary(run *runner.VisualTestRun) {
	fmt.Printf("run %s: %d pages, %d passed, %d regressions, %d errored, %d skipped (%dms)\n",
		run.ID, run.Summary.Total, run.Summary.Passed, run.Summary.Regressions,
		run.Summary.Errored, run.Summary.Skipped, run.Summary.ProcessingTimeMs)
	if run.Summary.Interrupted {
		fmt.Println("run was interrupted before all pages completed")
	}
	if run.Summary.AIUnavailableCount > 0 {
		fmt.Printf("%d pages fell back to structural-only classification (AI vision unavailable or budget exhausted)\n", run.Summary.AIUnavailableCount)
	}
}

func resolveURLs(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if runInputFile == "" {
		return nil, nil
	}

	var r *bufio.Scanner
	if runInputFile == "-" {
		r = bufio.NewScanner(os.Stdin)
	} else {
		f, err := os.Open(runInputFile)
		if err != nil {
			return nil, fmt.Errorf("vrtest: reading --input: %w", err)
		}
		defer f.Close()
		r = bufio.NewScanner(f)
	}

	var urls []string
	for r.Scan() {
		line := strings.TrimSpace(r.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, r.Err()
}

// enqueueDistributed submits one capture task per URL onto the Redis
// queue instead of capturing in-process, for a `vrtest worker` fleet
// to pick up.
func enqueueDistributed(ctx context.Context, cfg config.Config, urls []string) error {
	if cfg.Storage.RedisAddr == "" {
		return fmt.Errorf("vrtest: --distributed requires VRTEST_REDIS_ADDR or storage.redis_addr set")
	}

	client, err := distqueue.NewClient(cfg.Storage.RedisAddr, "", 0)
	if err != nil {
		return fmt.Errorf("vrtest: connecting to task queue: %w", err)
	}
	defer client.Close()

	jobID := uuid.NewString()
	for _, u := range urls {
		payload := distqueue.PagePayload{
			JobID: jobID,
			Name:  u,
			CaptureConfig: capture.Config{
				URL:            u,
				ViewportWidth:  1280,
				ViewportHeight: 720,
				Mode:           capture.ModeViewport,
				Format:         "png",
				Stabilization: capture.Stabilization{
					WaitForFonts:       true,
					DisableAnimations:  true,
					WaitForNetworkIdle: true,
					NetworkIdleTimeout: 5 * time.Second,
				},
			},
			UpdateBaseline: runUpdateBaselines,
			Strategy:       baseline.StrategyBranch,
		}
		if err := client.EnqueueCapture(ctx, payload); err != nil {
			return err
		}
	}

	fmt.Printf("enqueued %d page(s) under job %s\n", len(urls), jobID)
	return nil
}
