package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default().Budget, cfg.Budget)
}

func TestLoadOverlaysYAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vrtest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
workspace: /tmp/from-yaml
budget:
  daily_limit_usd: 50
vision:
  enabled: true
`), 0o644))

	t.Setenv("VRTEST_WORKSPACE", "/tmp/from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/from-env", cfg.Workspace, "env override must win over the YAML file")
	require.Equal(t, 50.0, cfg.Budget.DailyLimitUSD)
	require.True(t, cfg.Vision.Enabled)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestDerivedWorkspacePaths(t *testing.T) {
	cfg := Default()
	cfg.Workspace = "/tmp/ws"

	require.Equal(t, filepath.Join("/tmp/ws", "cache", "vision.db"), cfg.VisionCachePath())
	require.Equal(t, filepath.Join("/tmp/ws", "cache", "cost.db"), cfg.CostLedgerPath())

	cfg.Storage.SQLitePath = ""
	require.Equal(t, filepath.Join("/tmp/ws", "baselines", "index.db"), cfg.BaselineIndexPath())

	cfg.Storage.SQLitePath = "/custom/path.db"
	require.Equal(t, "/custom/path.db", cfg.BaselineIndexPath())
}
