package scheduler

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// fakeRunner stubs external scheduler commands by argv[0], so tests never
// shell out to a real sbatch/squeue/sacct/scancel/sacctmgr.
type fakeRunner struct {
	responses map[string]fakeResponse
	calls     []string
}

type fakeResponse struct {
	stdout []byte
	stderr []byte
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, name)
	resp, ok := f.responses[name]
	if !ok {
		return nil, nil, nil
	}
	return resp.stdout, resp.stderr, resp.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSubmitParsesJobID(t *testing.T) {
	runner := &fakeRunner{responses: map[string]fakeResponse{
		"sbatch": {stdout: []byte("123456;cluster\n")},
	}}
	g := New(runner, time.Second, time.Second, testLogger(), t.TempDir())

	jobID, err := g.Submit(context.Background(), "/tmp/script.sh")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if jobID != "123456" {
		t.Fatalf("jobID = %q, want 123456", jobID)
	}
}

func TestSubmitErrorWrapsSchedulerError(t *testing.T) {
	runner := &fakeRunner{responses: map[string]fakeResponse{
		"sbatch": {err: context.DeadlineExceeded, stderr: []byte("boom")},
	}}
	g := New(runner, time.Second, time.Second, testLogger(), t.TempDir())

	if _, err := g.Submit(context.Background(), "/tmp/script.sh"); err == nil {
		t.Fatal("Submit succeeded on a failing sbatch, want SchedulerError")
	}
}

func TestStatusPrefersSqueueOverSacct(t *testing.T) {
	runner := &fakeRunner{responses: map[string]fakeResponse{
		"squeue": {stdout: []byte("RUNNING\n")},
		"sacct":  {stdout: []byte("COMPLETED\n")},
	}}
	g := New(runner, time.Second, time.Second, testLogger(), t.TempDir())

	status, err := g.Status(context.Background(), "123456")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status != StatusRunning {
		t.Fatalf("Status = %s, want RUNNING (from squeue, not sacct)", status)
	}
}

func TestStatusFallsBackToSacctWhenSqueueEmpty(t *testing.T) {
	runner := &fakeRunner{responses: map[string]fakeResponse{
		"squeue": {stdout: []byte("")},
		"sacct":  {stdout: []byte("FAILED\n")},
	}}
	g := New(runner, time.Second, time.Second, testLogger(), t.TempDir())

	status, err := g.Status(context.Background(), "123456")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status != StatusFailed {
		t.Fatalf("Status = %s, want FAILED (from sacct)", status)
	}
}

func TestStatusUnknownNativeStateMapsToUnknown(t *testing.T) {
	runner := &fakeRunner{responses: map[string]fakeResponse{
		"squeue": {stdout: []byte("SOME_FUTURE_STATE\n")},
	}}
	g := New(runner, time.Second, time.Second, testLogger(), t.TempDir())

	status, err := g.Status(context.Background(), "123456")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status != StatusUnknown {
		t.Fatalf("Status = %s, want UNKNOWN", status)
	}
}

func TestCancelNeverReturnsError(t *testing.T) {
	runner := &fakeRunner{responses: map[string]fakeResponse{
		"scancel": {err: context.DeadlineExceeded, stderr: []byte("no such job")},
	}}
	g := New(runner, time.Second, time.Second, testLogger(), t.TempDir())

	g.Cancel(context.Background(), "999") // must not panic and has no error return to check
}

func TestAccountsFromSacctmgr(t *testing.T) {
	runner := &fakeRunner{responses: map[string]fakeResponse{
		"sacctmgr": {stdout: []byte("acct-a\nacct-b\n")},
	}}
	g := New(runner, time.Second, time.Second, testLogger(), t.TempDir())

	accounts, err := g.Accounts(context.Background())
	if err != nil {
		t.Fatalf("Accounts: %v", err)
	}
	if len(accounts) != 2 || accounts[0] != "acct-a" || accounts[1] != "acct-b" {
		t.Fatalf("Accounts = %v, want [acct-a acct-b]", accounts)
	}
}

func TestAccountsFallsBackToSiteYAML(t *testing.T) {
	installDir := t.TempDir()
	siteYAML := "accounts:\n  - acct-fallback-1\n  - acct-fallback-2\n"
	if err := os.WriteFile(filepath.Join(installDir, "site.yaml"), []byte(siteYAML), 0o644); err != nil {
		t.Fatalf("write site.yaml: %v", err)
	}

	runner := &fakeRunner{responses: map[string]fakeResponse{
		"sacctmgr": {err: context.DeadlineExceeded, stderr: []byte("command not found")},
	}}
	g := New(runner, time.Second, time.Second, testLogger(), installDir)

	accounts, err := g.Accounts(context.Background())
	if err != nil {
		t.Fatalf("Accounts: %v", err)
	}
	if len(accounts) != 2 || accounts[0] != "acct-fallback-1" {
		t.Fatalf("Accounts = %v, want fallback accounts from site.yaml", accounts)
	}
}

func TestAccountsFallsBackToDefaultWithoutSiteYAML(t *testing.T) {
	runner := &fakeRunner{responses: map[string]fakeResponse{
		"sacctmgr": {err: context.DeadlineExceeded},
	}}
	g := New(runner, time.Second, time.Second, testLogger(), t.TempDir())

	accounts, err := g.Accounts(context.Background())
	if err != nil {
		t.Fatalf("Accounts: %v", err)
	}
	if len(accounts) != 1 || accounts[0] != "default" {
		t.Fatalf("Accounts = %v, want [default]", accounts)
	}
}
