package controller

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/StevenZev/ExpressDiff/internal/stage"
)

// cleanupStage implements spec §4.6's stage-scoped cleanup on confirmed
// rerun: delete the stage's primary output artifacts and its done-flag,
// never touching logs/ or any other stage's outputs. star's cleanup
// globs (internal/stage.Definition) already exclude star/genome_index/.
//
// A partial failure aborts the cleanup and is returned to the caller
// without mutating run state further, per §4.6's "refuses further
// submission of that stage until cleanup completes."
func (c *Controller) cleanupStage(runID string, def stage.Definition) error {
	runDir := c.store.Paths().RunDir(runID)

	for _, pattern := range def.CleanupGlobs {
		matches, err := filepath.Glob(filepath.Join(runDir, pattern))
		if err != nil {
			return fmt.Errorf("glob %s: %w", pattern, err)
		}
		for _, match := range matches {
			if err := os.RemoveAll(match); err != nil {
				return fmt.Errorf("remove %s: %w", match, err)
			}
		}
	}

	if err := c.store.RemoveDoneFlag(runID, def.DoneFlag); err != nil {
		return fmt.Errorf("remove done-flag: %w", err)
	}
	return nil
}
