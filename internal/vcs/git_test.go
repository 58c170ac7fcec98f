package vcs

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=vrtest", "GIT_AUTHOR_EMAIL=vrtest@example.com",
			"GIT_COMMITTER_NAME=vrtest", "GIT_COMMITTER_EMAIL=vrtest@example.com",
		)
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
	}

	run("init", "-b", "main")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one"), 0o644))
	run("add", "a.txt")
	run("commit", "-m", "initial")

	return dir
}

func TestGitCurrentBranchAndCommit(t *testing.T) {
	dir := initRepo(t)
	g := New(dir)

	branch, err := g.CurrentBranch()
	require.NoError(t, err)
	require.Equal(t, "main", branch)

	commit, err := g.CurrentCommit()
	require.NoError(t, err)
	require.Len(t, commit, 40)
}

func TestGitDiffFilesAgainstBase(t *testing.T) {
	dir := initRepo(t)
	g := New(dir)
	base, err := g.CurrentCommit()
	require.NoError(t, err)

	cmd := exec.Command("git", "checkout", "-b", "feature")
	cmd.Dir = dir
	require.NoError(t, cmd.Run())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("two"), 0o644))
	for _, args := range [][]string{
		{"add", "b.txt"},
		{"-c", "user.name=vrtest", "-c", "user.email=vrtest@example.com", "commit", "-m", "add b"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		require.NoErrorf(t, err, "git %v: %s", args, out)
	}

	files, err := g.DiffFiles(base)
	require.NoError(t, err)
	require.Equal(t, []string{"b.txt"}, files)
}

func TestGitDiffFilesNoChanges(t *testing.T) {
	dir := initRepo(t)
	g := New(dir)
	head, err := g.CurrentCommit()
	require.NoError(t, err)

	files, err := g.DiffFiles(head)
	require.NoError(t, err)
	require.Empty(t, files)
}
