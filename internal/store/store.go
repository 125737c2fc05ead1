// Package store is the state store of spec §4.2: one directory per run
// on disk, with run_state.json as the single authoritative, atomically
// replaced document, plus the convention-based artifact subdirectories.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/StevenZev/ExpressDiff/internal/apierr"
	"github.com/StevenZev/ExpressDiff/internal/runpath"
	"github.com/StevenZev/ExpressDiff/internal/stage"
)

const stateFileName = "run_state.json"

// runSkeleton lists every subdirectory a fresh run directory gets,
// per spec §3's RunDirectory invariants.
var runSkeleton = []string{
	"raw",
	"reference",
	"metadata",
	"trimmed",
	"trimmed/logs",
	"qc_raw",
	"qc_trimmed",
	"star",
	"star/logs",
	"featurecounts",
	"featurecounts/logs",
	"counts",
	"deseq2",
	"logs",
}

// Store is the on-disk run state store. It is constructed, not imported
// (spec §9): callers pass it a runpath.Paths at creation.
type Store struct {
	paths runpath.Paths
	locks sync.Map // run_id -> *sync.Mutex
}

// New constructs a Store rooted at paths.WorkDir.
func New(paths runpath.Paths) *Store {
	return &Store{paths: paths}
}

// Lock acquires the per-run lock for run_id and returns a function that
// releases it. The controller holds this across its entire
// read-reconcile-decide-submit-persist sequence (spec §5).
func (s *Store) Lock(runID string) func() {
	v, _ := s.locks.LoadOrStore(runID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Create atomically creates the run directory skeleton and run_state.json.
// Fails with ConflictError if the run directory already exists.
func (s *Store) Create(runID string, seed *Run) error {
	runDir := s.paths.RunDir(runID)
	if _, err := os.Stat(runDir); err == nil {
		return &apierr.ConflictError{Subsystem: "store", Operand: runID, Detail: "run already exists"}
	}
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("store: create run directory: %w", err)
	}
	for _, rel := range runSkeleton {
		if err := os.MkdirAll(filepath.Join(runDir, rel), 0o755); err != nil {
			return fmt.Errorf("store: create %s: %w", rel, err)
		}
	}
	return s.Save(seed)
}

// Load reads and parses run_state.json for run_id. Returns NotFoundError
// if the file does not exist.
func (s *Store) Load(runID string) (*Run, error) {
	path := filepath.Join(s.paths.RunDir(runID), stateFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &apierr.NotFoundError{Subsystem: "run", Operand: runID}
		}
		return nil, fmt.Errorf("store: read %s: %w", path, err)
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("store: parse %s: %w", path, err)
	}
	return &run, nil
}

// Save serializes run and atomically replaces run_state.json: write to a
// temporary sibling, fsync, rename over the target.
func (s *Store) Save(run *Run) error {
	runDir := s.paths.RunDir(run.RunID)
	target := filepath.Join(runDir, stateFileName)

	data, err := marshalCanonical(run)
	if err != nil {
		return fmt.Errorf("store: marshal run %s: %w", run.RunID, err)
	}

	tmp, err := os.CreateTemp(runDir, stateFileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("store: create temp state file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("store: fsync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close temp state file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return fmt.Errorf("store: rename into place: %w", err)
	}
	return nil
}

// marshalCanonical renders run in a byte-stable form, per spec §8's
// "byte-stable canonical form" invariant: encoding/json sorts the keys of
// Parameters, StageMap.MarshalJSON writes Stages in stage.Names() pipeline
// order, and clock.Time pins the timestamp format. This wrapper exists as
// the one place that decision is made, not scattered at call sites.
func marshalCanonical(run *Run) ([]byte, error) {
	return json.MarshalIndent(run, "", "  ")
}

// List enumerates runs/ subdirectories. A directory whose state file is
// missing or unparsable is still reported, with status=failed and a
// diagnostic, per spec §4.2 — never silently hidden.
func (s *Store) List() ([]*Run, error) {
	entries, err := os.ReadDir(s.paths.RunsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("store: list runs directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	runs := make([]*Run, 0, len(names))
	for _, name := range names {
		run, err := s.Load(name)
		if err != nil {
			runs = append(runs, &Run{
				RunID:      name,
				Status:     RunFailed,
				Diagnostic: err.Error(),
				Stages:     map[stage.Name]*StageState{},
			})
			continue
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// Delete removes the run directory tree. Idempotent: deleting an
// already-absent run returns nil.
func (s *Store) Delete(runID string) error {
	runDir := s.paths.RunDir(runID)
	if err := os.RemoveAll(runDir); err != nil {
		return fmt.Errorf("store: delete run %s: %w", runID, err)
	}
	return nil
}

// Exists reports whether a run directory exists for run_id.
func (s *Store) Exists(runID string) bool {
	_, err := os.Stat(s.paths.RunDir(runID))
	return err == nil
}

// DoneFlagExists reports whether the given stage's done-flag file is
// present under run_id's directory.
func (s *Store) DoneFlagExists(runID string, relFlagPath string) bool {
	_, err := os.Stat(filepath.Join(s.paths.RunDir(runID), relFlagPath))
	return err == nil
}

// RemoveDoneFlag deletes the stage's done-flag file, if present.
func (s *Store) RemoveDoneFlag(runID string, relFlagPath string) error {
	err := os.Remove(filepath.Join(s.paths.RunDir(runID), relFlagPath))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Paths exposes the resolved install/work roots to collaborators that need them.
func (s *Store) Paths() runpath.Paths { return s.paths }
