package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vrtest-dev/vrtest/internal/baseline"
)

var (
	baselineListBranch string
	baselineListURL    string
	baselineListDevice string

	baselineCleanupMaxAgeDays int
)

var baselineCmd = &cobra.Command{
	Use:   "baseline",
	Short: "Inspect and prune the baseline store directly",
}

var baselineListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored baselines",
	RunE:  runBaselineList,
}

var baselineCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove baselines older than --max-age-days",
	RunE:  runBaselineCleanup,
}

func init() {
	baselineListCmd.Flags().StringVar(&baselineListBranch, "branch", "", "filter by branch")
	baselineListCmd.Flags().StringVar(&baselineListURL, "url", "", "filter by URL")
	baselineListCmd.Flags().StringVar(&baselineListDevice, "device", "", "filter by device tag")

	baselineCleanupCmd.Flags().IntVar(&baselineCleanupMaxAgeDays, "max-age-days", 90, "remove baselines whose last update is older than this many days")

	baselineCmd.AddCommand(baselineListCmd, baselineCleanupCmd)
}

func runBaselineList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mgr, closer, err := buildBaselineManager(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closer() //nolint:errcheck

	records, err := mgr.ListBaselines(cmd.Context(), baseline.ListFilters{
		Branch: baselineListBranch,
		URL:    baselineListURL,
		Device: baselineListDevice,
	})
	if err != nil {
		return fmt.Errorf("vrtest: listing baselines: %w", err)
	}

	for _, r := range records {
		quarantined := ""
		if r.Quarantined {
			quarantined = " [quarantined]"
		}
		fmt.Printf("%s\tbranch=%s\turl=%s\telement=%q\tdevice=%q\tupdated=%s%s\n",
			r.ID, r.Branch, r.URL, r.Element, r.Device, r.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"), quarantined)
	}
	fmt.Printf("%d baseline(s)\n", len(records))
	return nil
}

func runBaselineCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mgr, closer, err := buildBaselineManager(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closer() //nolint:errcheck

	n, err := mgr.CleanupOldBaselines(cmd.Context(), baselineCleanupMaxAgeDays)
	if err != nil {
		return fmt.Errorf("vrtest: cleanup: %w", err)
	}
	fmt.Printf("removed %d baseline(s) older than %d days\n", n, baselineCleanupMaxAgeDays)
	return nil
}
