package controller

import (
	"context"

	"github.com/StevenZev/ExpressDiff/internal/pkg/clock"
	"github.com/StevenZev/ExpressDiff/internal/scheduler"
	"github.com/StevenZev/ExpressDiff/internal/stage"
	"github.com/StevenZev/ExpressDiff/internal/store"
)

// reconcile implements spec §4.6's reconciliation procedure: a pure
// function over disk state, scheduler state and the stored run, run
// with the per-run lock already held by the caller. It reports whether
// any stage status or job_id changed, so the caller can skip an
// unnecessary save.
func (c *Controller) reconcile(ctx context.Context, run *store.Run) (bool, error) {
	changed := false

	for _, def := range stage.All() {
		st, ok := run.Stages[def.Name]
		if !ok {
			st = &store.StageState{Status: store.StatusPending}
			run.Stages[def.Name] = st
			changed = true
		}

		if c.store.DoneFlagExists(run.RunID, def.DoneFlag) {
			// The done-flag is ground truth (spec §3's completed-implies-flag
			// invariant and its converse after reconciliation): it overrides
			// whatever status was previously on record, bypassing the
			// transition legality guard that governs writes elsewhere.
			if st.Status != store.StatusCompleted {
				st.Status = store.StatusCompleted
				st.UpdatedAt = clock.Now()
				changed = true
			}
			continue
		}

		if st.JobID == "" {
			continue // nothing scheduled for this stage; status stays whatever it already is (normally pending)
		}

		native, err := c.scheduler.Status(ctx, st.JobID)
		if err != nil {
			c.logger.Warn("reconcile: scheduler status query failed", "run_id", run.RunID, "stage", def.Name, "job_id", st.JobID, "err", err)
			continue // no state mutation on a scheduler error during reconciliation
		}

		target, hasTarget := mapSchedulerStatus(native, st.Status)
		if hasTarget && setStatus(st, target) {
			changed = true
		}
	}

	if changed {
		run.Status = store.DeriveRunStatus(run.Stages)
		run.UpdatedAt = clock.Now()
	}
	return changed, nil
}

// mapSchedulerStatus applies spec §4.6 step 2's mapping table. UNKNOWN
// keeps the previous stored status, per the literal reconciliation rule
// (distinct from §4.4's general "UNKNOWN -> running-if-job_id-else-pending"
// guidance, which describes the gateway's own status() contract in
// isolation from a stage that already has a job_id on record).
func mapSchedulerStatus(native scheduler.Status, previous store.Status) (store.Status, bool) {
	switch native {
	case scheduler.StatusRunning, scheduler.StatusPending:
		return store.StatusRunning, true
	case scheduler.StatusCompleted:
		return store.StatusFailed, true // completed without a done-flag is treated as a silent failure
	case scheduler.StatusFailed:
		return store.StatusFailed, true
	case scheduler.StatusCancelled:
		return store.StatusCancelled, true
	default:
		return previous, false
	}
}

// setStatus writes a new status only through a legal transition,
// guarding against a reconciliation bug silently corrupting state.
func setStatus(st *store.StageState, target store.Status) bool {
	if st.Status == target {
		return false
	}
	if !store.IsValidTransition(st.Status, target) {
		return false
	}
	st.Status = target
	st.UpdatedAt = clock.Now()
	return true
}

// reconcileAndSave runs reconcile and persists the run only if something changed.
func (c *Controller) reconcileAndSave(ctx context.Context, run *store.Run) error {
	changed, err := c.reconcile(ctx, run)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return c.store.Save(run)
}
