package scheduler

import (
	"bytes"
	"context"
	"os/exec"
)

// Runner abstracts process execution so tests can substitute a fake
// without shelling out to a real Slurm install. Grounded on the
// injectable ExecCommandFunc shape of the teacher's
// internal/pkg/client/exec.Client.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout []byte, stderr []byte, err error)
}

// ExecRunner runs real OS processes via os/exec.
type ExecRunner struct{}

// Run executes name with args, returning its captured stdout and stderr separately.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
