// Package controller implements the run/stage controller of spec §4.6:
// the lifecycle operations on runs and stages, enforcing dependency
// order, rerun confirmation, cleanup-on-rerun, and the stage state
// machine. It is constructed, not imported, per §9's redesign flag
// against process-wide singletons: callers build one Controller at
// startup and pass it to the HTTP surface.
package controller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/StevenZev/ExpressDiff/internal/apierr"
	"github.com/StevenZev/ExpressDiff/internal/pkg/clock"
	"github.com/StevenZev/ExpressDiff/internal/scheduler"
	"github.com/StevenZev/ExpressDiff/internal/stage"
	"github.com/StevenZev/ExpressDiff/internal/store"
	"github.com/StevenZev/ExpressDiff/internal/tmpl"
	"github.com/StevenZev/ExpressDiff/internal/validate"
	"github.com/google/uuid"
)

// Controller is the run/stage controller.
type Controller struct {
	store     *store.Store
	scheduler *scheduler.Gateway
	templates *tmpl.Engine
	logger    *slog.Logger
}

// New constructs a Controller from its already-constructed collaborators.
func New(s *store.Store, g *scheduler.Gateway, t *tmpl.Engine, logger *slog.Logger) *Controller {
	return &Controller{store: s, scheduler: g, templates: t, logger: logger}
}

// RunDir exposes the on-disk directory for run_id, for collaborators
// (uploads, results adapters, QC report serving) that read artifact
// files the controller itself has no opinion about.
func (c *Controller) RunDir(runID string) string {
	return c.store.Paths().RunDir(runID)
}

// Exists reports whether run_id has a run directory.
func (c *Controller) Exists(runID string) bool {
	return c.store.Exists(runID)
}

// CreateRun assigns a fresh run_id, creates the directory skeleton, and
// writes the initial all-pending state.
func (c *Controller) CreateRun(name, description, account string, parameters map[string]string) (*store.Run, error) {
	runID := uuid.NewString()
	now := clock.Now()
	if parameters == nil {
		parameters = map[string]string{}
	}
	run := &store.Run{
		RunID:       runID,
		Name:        name,
		Description: description,
		Account:     account,
		Parameters:  parameters,
		Status:      store.RunCreated,
		CreatedAt:   now,
		UpdatedAt:   now,
		Stages:      store.NewStages(now),
	}
	unlock := c.store.Lock(runID)
	defer unlock()
	if err := c.store.Create(runID, run); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns reconciles and returns every known run, ordered by run_id
// (the run directory name).
func (c *Controller) ListRuns(ctx context.Context) ([]*store.Run, error) {
	runs, err := c.store.List()
	if err != nil {
		return nil, err
	}
	for i, run := range runs {
		if run.Diagnostic != "" {
			continue // synthesized failed entry for an unparsable state file; nothing to reconcile
		}
		reconciled, err := c.reconcileRunLocked(ctx, run.RunID)
		if err != nil {
			c.logger.Warn("reconciliation failed during list_runs", "run_id", run.RunID, "err", err)
			continue
		}
		runs[i] = reconciled
	}
	return runs, nil
}

// reconcileRunLocked acquires run_id's per-run lock, reloads it fresh from
// disk, reconciles and persists if anything changed. Used by GetRun and
// ListRuns so every caller that reconciles also serializes against a
// concurrent SubmitStage on the same run (spec §5).
func (c *Controller) reconcileRunLocked(ctx context.Context, runID string) (*store.Run, error) {
	unlock := c.store.Lock(runID)
	defer unlock()

	run, err := c.store.Load(runID)
	if err != nil {
		return nil, err
	}
	if err := c.reconcileAndSave(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// GetRun reconciles and returns a single run.
func (c *Controller) GetRun(ctx context.Context, runID string) (*store.Run, error) {
	run, err := c.reconcileRunLocked(ctx, runID)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// DeleteRun cancels every stage's known job_id best-effort and removes
// the run directory tree. Idempotent: deleting an absent run succeeds.
func (c *Controller) DeleteRun(ctx context.Context, runID string) error {
	unlock := c.store.Lock(runID)
	defer unlock()

	run, err := c.store.Load(runID)
	if err == nil {
		for _, st := range run.Stages {
			if st.JobID != "" {
				c.scheduler.Cancel(ctx, st.JobID)
			}
		}
	}
	return c.store.Delete(runID)
}

// GetStageStatus reconciles and returns the current state of one stage.
func (c *Controller) GetStageStatus(ctx context.Context, runID string, name stage.Name) (*store.StageState, error) {
	if !stage.IsValid(name) {
		return nil, &apierr.NotFoundError{Subsystem: "stage", Operand: string(name)}
	}

	unlock := c.store.Lock(runID)
	defer unlock()

	run, err := c.store.Load(runID)
	if err != nil {
		return nil, err
	}
	if err := c.reconcileAndSave(ctx, run); err != nil {
		return nil, err
	}
	st, ok := run.Stages[name]
	if !ok {
		return nil, &apierr.NotFoundError{Subsystem: "stage", Operand: string(name)}
	}
	return st, nil
}

// ValidateStage reconciles and then runs the stage validator, backing
// GET /runs/{run_id}/stages/{stage}/validate.
func (c *Controller) ValidateStage(ctx context.Context, runID string, name stage.Name) (*validate.Result, error) {
	if !stage.IsValid(name) {
		return nil, &apierr.NotFoundError{Subsystem: "stage", Operand: string(name)}
	}

	unlock := c.store.Lock(runID)
	defer unlock()

	run, err := c.store.Load(runID)
	if err != nil {
		return nil, err
	}
	if err := c.reconcileAndSave(ctx, run); err != nil {
		return nil, err
	}
	return validate.Validate(run, name, c.store.Paths())
}

// CancelStage best-effort cancels a running stage's job. The resulting
// status is left for the next reconciliation to determine.
func (c *Controller) CancelStage(ctx context.Context, runID string, name stage.Name) error {
	if !stage.IsValid(name) {
		return &apierr.NotFoundError{Subsystem: "stage", Operand: string(name)}
	}

	unlock := c.store.Lock(runID)
	defer unlock()

	run, err := c.store.Load(runID)
	if err != nil {
		return err
	}
	st, ok := run.Stages[name]
	if !ok {
		return &apierr.NotFoundError{Subsystem: "stage", Operand: string(name)}
	}
	if st.Status == store.StatusRunning && st.JobID != "" {
		c.scheduler.Cancel(ctx, st.JobID)
	}
	return nil
}

// UpdateAdapter sets the run's adapter_type parameter. Disallowed while
// trim is running, per spec §4.6.
func (c *Controller) UpdateAdapter(runID, adapterType string) (*store.Run, error) {
	unlock := c.store.Lock(runID)
	defer unlock()

	run, err := c.store.Load(runID)
	if err != nil {
		return nil, err
	}
	if trim, ok := run.Stages[stage.Trim]; ok && trim.Status == store.StatusRunning {
		return nil, &apierr.ConflictError{Subsystem: "run", Operand: runID, Detail: "cannot change adapter_type while trim is running"}
	}
	if run.Parameters == nil {
		run.Parameters = map[string]string{}
	}
	run.Parameters["adapter_type"] = adapterType
	run.UpdatedAt = clock.Now()
	if err := c.store.Save(run); err != nil {
		return nil, err
	}
	return run, nil
}

// SubmitStage implements spec §4.6's seven-step submission procedure.
func (c *Controller) SubmitStage(ctx context.Context, runID string, name stage.Name, account string, confirmRerun bool) (*store.Run, error) {
	def, ok := stage.Get(name)
	if !ok {
		return nil, &apierr.NotFoundError{Subsystem: "stage", Operand: string(name)}
	}

	unlock := c.store.Lock(runID)
	defer unlock()

	run, err := c.store.Load(runID)
	if err != nil {
		return nil, err
	}

	if err := c.reconcileAndSave(ctx, run); err != nil {
		return nil, err
	}

	for _, dep := range def.DependsOn {
		depState, ok := run.Stages[dep]
		if !ok || depState.Status != store.StatusCompleted {
			return nil, &apierr.DependencyError{Stage: string(name), Dependency: string(dep)}
		}
	}

	paths := c.store.Paths()
	result, err := validate.Validate(run, name, paths)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, &apierr.ValidationError{Stage: string(name), Errors: result.Errors, Warnings: result.Warnings}
	}

	doneFlagExists := c.store.DoneFlagExists(runID, def.DoneFlag)
	if doneFlagExists && !confirmRerun {
		return nil, &apierr.RerunRequiredError{Stage: string(name)}
	}

	if confirmRerun {
		if err := c.cleanupStage(runID, def); err != nil {
			return nil, fmt.Errorf("controller: cleanup %s for rerun: %w", name, err)
		}
	}

	scriptPath, err := c.templates.Generate(def, runID, account, run.Parameters, nil)
	if err != nil {
		return nil, err
	}

	jobID, err := c.scheduler.Submit(ctx, scriptPath)
	if err != nil {
		return nil, err
	}

	st := run.Stages[name]
	if st == nil {
		st = &store.StageState{}
		run.Stages[name] = st
	}
	if !store.IsValidTransition(st.Status, store.StatusRunning) {
		return nil, fmt.Errorf("controller: illegal transition %s -> running for stage %s", st.Status, name)
	}
	st.Status = store.StatusRunning
	st.JobID = jobID
	st.UpdatedAt = clock.Now()
	run.Account = account
	run.Status = store.DeriveRunStatus(run.Stages)
	run.UpdatedAt = clock.Now()

	if err := c.store.Save(run); err != nil {
		return nil, err
	}
	return run, nil
}
