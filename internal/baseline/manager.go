package baseline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// VCS is the minimal version-control capability the manager needs for
// branch-aware key resolution, matching the §6 "version control
// (consumed)" external interface.
type VCS interface {
	CurrentBranch() (string, error)
	CurrentCommit() (string, error)
}

// Manager implements the baseline manager contract: getBaseline,
// setBaseline, updateBaseline, listBaselines, cleanupOldBaselines.
type Manager struct {
	repo    Repository
	payload PayloadStore
	vcs     VCS

	defaultBranch     string
	branchFallback    bool
}

// Config configures a Manager.
type Config struct {
	// DefaultBranch is used for StrategyBranch lookups that miss on the
	// current branch, when BranchFallback is enabled.
	DefaultBranch  string
	BranchFallback bool
}

// NewManager constructs a Manager over a Repository/PayloadStore pair.
func NewManager(repo Repository, payload PayloadStore, vcs VCS, cfg Config) *Manager {
	return &Manager{
		repo:           repo,
		payload:        payload,
		vcs:            vcs,
		defaultBranch:  cfg.DefaultBranch,
		branchFallback: cfg.BranchFallback,
	}
}

// GetBaseline resolves a baseline by (url, element) under the given
// strategy, verifying the stored checksum on read.
func (m *Manager) GetBaseline(ctx context.Context, url, element string, device string, strategy Strategy, explicitID string) (*Record, []byte, error) {
	var rec *Record
	var err error

	switch strategy {
	case StrategyManual:
		rec, err = m.repo.FindByID(ctx, explicitID)
	case StrategyCommit:
		commit, cerr := m.vcs.CurrentCommit()
		if cerr != nil {
			return nil, nil, fmt.Errorf("baseline: resolve commit: %w", cerr)
		}
		rec, err = m.repo.FindByCommit(ctx, commit, url, element, device)
	case StrategyBranch, "":
		branch, berr := m.vcs.CurrentBranch()
		if berr != nil {
			return nil, nil, fmt.Errorf("baseline: resolve branch: %w", berr)
		}
		rec, err = m.repo.FindByKey(ctx, branch, url, element, device)
		if rec == nil && err == nil && m.branchFallback && m.defaultBranch != "" && branch != m.defaultBranch {
			rec, err = m.repo.FindByKey(ctx, m.defaultBranch, url, element, device)
		}
	default:
		return nil, nil, fmt.Errorf("baseline: unknown strategy %q", strategy)
	}

	if err != nil {
		return nil, nil, err
	}
	if rec == nil {
		return nil, nil, ErrBaselineNotFound
	}

	data, err := m.payload.Get(ctx, rec.StoragePath)
	if err != nil {
		return nil, nil, err
	}

	if HashPayload(data) != rec.ContentHash {
		_ = m.repo.MarkQuarantined(ctx, rec.ID)
		rec.Quarantined = true
		return rec, nil, ErrChecksumMismatch
	}

	return rec, data, nil
}

// SetBaseline stores a new capture under (branch, url, element, device),
// replacing any existing record for that key. An empty Branch is
// resolved to the current VCS branch.
func (m *Manager) SetBaseline(ctx context.Context, in SetInput) (*Record, error) {
	if in.Branch == "" {
		branch, err := m.vcs.CurrentBranch()
		if err != nil {
			return nil, fmt.Errorf("baseline: resolve branch: %w", err)
		}
		in.Branch = branch
	}

	hash := HashPayload(in.Bytes)
	path := PathFor(in.Branch, in.URL, in.Element, in.Device)

	if err := m.payload.Put(ctx, path, in.Bytes); err != nil {
		return nil, err
	}

	rec := Record{
		ID:             uuid.NewString(),
		Branch:         in.Branch,
		Commit:         in.Commit,
		URL:            in.URL,
		Element:        in.Element,
		Device:         in.Device,
		StoragePath:    path,
		ContentHash:    hash,
		ConfigSnapshot: in.Config,
	}

	stored, err := m.repo.Upsert(ctx, rec)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// UpdateBaseline replaces the payload of an existing baseline by ID,
// keeping its key fields intact.
func (m *Manager) UpdateBaseline(ctx context.Context, id string, data []byte) (*Record, error) {
	existing, err := m.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrBaselineNotFound
	}

	hash := HashPayload(data)
	path := PathFor(existing.Branch, existing.URL, existing.Element, existing.Device)

	if err := m.payload.Put(ctx, path, data); err != nil {
		return nil, err
	}

	existing.StoragePath = path
	existing.ContentHash = hash
	existing.Quarantined = false

	stored, err := m.repo.Upsert(ctx, *existing)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// ListBaselines returns records matching the given filters.
func (m *Manager) ListBaselines(ctx context.Context, filters ListFilters) ([]Record, error) {
	return m.repo.List(ctx, filters)
}

// CleanupOldBaselines removes records whose UpdatedAt is older than
// maxAgeDays, along with their on-disk payloads, returning the count
// removed.
func (m *Manager) CleanupOldBaselines(ctx context.Context, maxAgeDays int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -maxAgeDays)

	victims, err := m.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	for _, v := range victims {
		// Payload deletion is best-effort: a missing file must not block
		// the index from reflecting the cleanup that already committed.
		_ = m.payload.Delete(ctx, v.StoragePath)
	}

	return len(victims), nil
}
