// Package scheduler is the scheduler gateway of spec §4.4: a thin
// wrapper over submit/query/cancel of the external batch scheduler
// (Slurm), plus charge-account discovery. Grounded on the
// constructor-with-timeout-and-logger shape of the teacher's
// internal/pkg/client/slurmrest.Client, fused with the injectable
// command-runner shape of internal/pkg/client/exec.Client.
package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/StevenZev/ExpressDiff/internal/apierr"
)

// Status is one of the five canonical job states spec §4.4 requires the
// gateway to produce, regardless of the scheduler's native vocabulary.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
	StatusUnknown   Status = "UNKNOWN"
)

// nativeToCanonical maps every Slurm squeue/sacct state string this
// gateway recognizes to one of the five canonical states. Unrecognized
// or ambiguous native states fall through to StatusUnknown, on which the
// controller's reconciliation keeps the stage's previously stored status.
// Grounded on the "native vocabulary →
// canonical states" shape of the teacher's internal/pkg/common/slurm
// job-state decoder (that one decodes a bitmask; squeue/sacct emit plain
// state strings via `-o %T`/`-o State`, so the table here is a straight
// string switch instead).
var nativeToCanonical = map[string]Status{
	"PENDING":      StatusPending,
	"CONFIGURING":  StatusPending,
	"RUNNING":      StatusRunning,
	"COMPLETING":   StatusRunning,
	"SUSPENDED":    StatusRunning,
	"COMPLETED":    StatusCompleted,
	"CANCELLED":    StatusCancelled,
	"FAILED":       StatusFailed,
	"TIMEOUT":      StatusFailed,
	"NODE_FAIL":    StatusFailed,
	"OUT_OF_MEMORY": StatusFailed,
	"PREEMPTED":    StatusFailed,
	"BOOT_FAIL":    StatusFailed,
	"DEADLINE":     StatusFailed,
}

// Gateway is the scheduler gateway.
type Gateway struct {
	runner          Runner
	timeout         time.Duration
	accountsTimeout time.Duration
	logger          *slog.Logger
	installDir      string
}

// New constructs a Gateway. timeout bounds submit/status/cancel calls;
// accountsTimeout bounds account discovery, which spec §4.4/§5 documents
// as potentially slow (tens of seconds).
func New(runner Runner, timeout, accountsTimeout time.Duration, logger *slog.Logger, installDir string) *Gateway {
	return &Gateway{
		runner:          runner,
		timeout:         timeout,
		accountsTimeout: accountsTimeout,
		logger:          logger,
		installDir:      installDir,
	}
}

// Submit submits scriptPath via sbatch and returns the assigned job id.
func (g *Gateway) Submit(ctx context.Context, scriptPath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	stdout, stderr, err := g.runner.Run(ctx, "sbatch", "--parsable", scriptPath)
	if err != nil {
		g.logger.Error("sbatch failed", "script", scriptPath, "stderr", string(stderr), "err", err)
		return "", &apierr.SchedulerError{Op: "submit", Err: fmt.Errorf("sbatch %s: %w: %s", scriptPath, err, stderr)}
	}

	jobID := firstField(stdout, ';')
	if jobID == "" {
		return "", &apierr.SchedulerError{Op: "submit", Err: fmt.Errorf("sbatch produced no job id for %s", scriptPath)}
	}
	return jobID, nil
}

// Status queries the live queue first, then the historical accounting
// source, mapping whatever the scheduler reports to a canonical Status.
func (g *Gateway) Status(ctx context.Context, jobID string) (Status, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	stdout, _, err := g.runner.Run(ctx, "squeue", "-h", "-j", jobID, "-o", "%T")
	if err == nil {
		if native := strings.TrimSpace(string(stdout)); native != "" {
			return mapNative(strings.Fields(native)[0]), nil
		}
	}

	stdout, stderr, err := g.runner.Run(ctx, "sacct", "-n", "-j", jobID, "-o", "State")
	if err != nil {
		g.logger.Error("sacct failed", "job_id", jobID, "stderr", string(stderr), "err", err)
		return "", &apierr.SchedulerError{Op: "status", Err: fmt.Errorf("sacct %s: %w: %s", jobID, err, stderr)}
	}
	native := strings.TrimSpace(string(stdout))
	if native == "" {
		return StatusUnknown, nil
	}
	return mapNative(strings.Fields(native)[0]), nil
}

// Cancel is best-effort: failures are logged, never surfaced (spec §4.4).
func (g *Gateway) Cancel(ctx context.Context, jobID string) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	_, stderr, err := g.runner.Run(ctx, "scancel", jobID)
	if err != nil {
		g.logger.Warn("scancel failed (best-effort, ignoring)", "job_id", jobID, "stderr", string(stderr), "err", err)
	}
}

// Accounts queries sacctmgr for the caller's charge accounts. On a
// non-zero exit, a timeout, or empty output, it falls back to the
// deterministic list in install_dir/site.yaml, or ["default"] if that
// file is absent too.
func (g *Gateway) Accounts(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.accountsTimeout)
	defer cancel()

	stdout, stderr, err := g.runner.Run(ctx, "sacctmgr", "-n", "-P", "list", "account", "format=account")
	if err == nil {
		accounts := parseLines(stdout)
		if len(accounts) > 0 {
			return accounts, nil
		}
	} else {
		g.logger.Warn("sacctmgr unavailable, using fallback accounts", "stderr", string(stderr), "err", err)
	}

	return g.fallbackAccounts()
}

type siteConfig struct {
	Accounts []string `yaml:"accounts"`
}

func (g *Gateway) fallbackAccounts() ([]string, error) {
	path := filepath.Join(g.installDir, "site.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return []string{"default"}, nil
	}
	var cfg siteConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		g.logger.Warn("unable to parse site.yaml, using default account", "path", path, "err", err)
		return []string{"default"}, nil
	}
	if len(cfg.Accounts) == 0 {
		return []string{"default"}, nil
	}
	return cfg.Accounts, nil
}

func mapNative(native string) Status {
	if canonical, ok := nativeToCanonical[native]; ok {
		return canonical
	}
	return StatusUnknown
}

func firstField(b []byte, sep byte) string {
	s := strings.TrimSpace(string(b))
	if i := bytes.IndexByte([]byte(s), sep); i >= 0 {
		return s[:i]
	}
	return s
}

func parseLines(b []byte) []string {
	var out []string
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
