package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vrtest-dev/vrtest/internal/distqueue"
	"github.com/vrtest-dev/vrtest/internal/runner"
)

var workerConcurrency int

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume capture tasks from the distributed queue (requires VRTEST_REDIS_ADDR or storage.redis_addr)",
	RunE:  runWorker,
}

func init() {
	workerCmd.Flags().IntVar(&workerConcurrency, "concurrency", 4, "number of capture tasks processed concurrently")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Storage.RedisAddr == "" {
		return fmt.Errorf("vrtest: worker requires VRTEST_REDIS_ADDR or storage.redis_addr set")
	}
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx := cmd.Context()
	eng, err := buildEngine(ctx, cfg, log, true)
	if err != nil {
		return err
	}
	defer eng.Close(context.Background()) //nolint:errcheck

	handler := distqueue.NewHandler(func(ctx context.Context, p distqueue.PagePayload) error {
		spec := runner.PageSpec{
			Name:           p.Name,
			CaptureConfig:  p.CaptureConfig,
			Branch:         p.Branch,
			Commit:         p.Commit,
			Element:        p.Element,
			Device:         p.Device,
			UpdateBaseline: p.UpdateBaseline,
		}

		run, err := eng.Runner.Run(ctx, runner.Input{
			Pages:            []runner.PageSpec{spec},
			BaselineStrategy: p.Strategy,
		})
		if err != nil {
			return fmt.Errorf("vrtest: worker: page %s: %w", p.Name, err)
		}
		if run.Summary.Errored > 0 {
			return fmt.Errorf("vrtest: worker: page %s errored", p.Name)
		}
		log.Infow("vrtest: worker processed page", "job_id", p.JobID, "page", p.Name)
		return nil
	})

	srv := distqueue.NewServer(cfg.Storage.RedisAddr, "", 0, workerConcurrency)
	log.Infow("vrtest: worker listening", "redis_addr", cfg.Storage.RedisAddr, "concurrency", workerConcurrency)
	return srv.Run(handler.Mux())
}
