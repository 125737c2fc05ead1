// Package runpath resolves the install directory (read-only, holds
// templates) and the work directory (writable, holds runs and generated
// scripts) from the process environment, per spec §4.1.
package runpath

import (
	"os"
	"path/filepath"

	"github.com/StevenZev/ExpressDiff/internal/apierr"
)

const (
	envInstallOverride = "EXPRESSDIFF_HOME"
	envWorkOverride    = "EXPRESSDIFF_WORKDIR"
	envScratch         = "SCRATCH"
	appName            = "expressdiff"

	// defaultInstallDir is the compiled-in fallback when neither the env
	// override nor the running binary's directory can be used.
	defaultInstallDir = "/opt/expressdiff"

	templatesSubdir    = "slurm_templates"
	runsSubdir         = "runs"
	generatedSlurmDir  = "generated_slurm"
)

// Paths holds the two resolved roots.
type Paths struct {
	InstallDir string
	WorkDir    string
}

// TemplatesDir returns install_dir/slurm_templates.
func (p Paths) TemplatesDir() string { return filepath.Join(p.InstallDir, templatesSubdir) }

// RunsDir returns work_dir/runs.
func (p Paths) RunsDir() string { return filepath.Join(p.WorkDir, runsSubdir) }

// RunDir returns work_dir/runs/<run_id>.
func (p Paths) RunDir(runID string) string { return filepath.Join(p.RunsDir(), runID) }

// GeneratedSlurmDir returns work_dir/generated_slurm.
func (p Paths) GeneratedSlurmDir() string { return filepath.Join(p.WorkDir, generatedSlurmDir) }

// Resolve computes (install_dir, work_dir) per §4.1's environment
// precedence, ensures work_dir/runs and work_dir/generated_slurm exist,
// and fails with a ConfigError if the templates directory is absent.
func Resolve() (Paths, error) {
	install := resolveInstallDir()
	work := resolveWorkDir()

	if err := os.MkdirAll(filepath.Join(work, runsSubdir), 0o755); err != nil {
		return Paths{}, &apierr.ConfigError{Detail: "unable to create runs directory: " + err.Error()}
	}
	if err := os.MkdirAll(filepath.Join(work, generatedSlurmDir), 0o755); err != nil {
		return Paths{}, &apierr.ConfigError{Detail: "unable to create generated_slurm directory: " + err.Error()}
	}

	p := Paths{InstallDir: install, WorkDir: work}
	if _, err := os.Stat(p.TemplatesDir()); err != nil {
		return Paths{}, &apierr.ConfigError{Detail: "install directory missing slurm_templates/: " + p.TemplatesDir()}
	}
	return p, nil
}

func resolveInstallDir() string {
	if v := os.Getenv(envInstallOverride); v != "" {
		return v
	}
	if exe, err := os.Executable(); err == nil {
		if dir := filepath.Dir(exe); dir != "" && dir != "." {
			return dir
		}
	}
	return defaultInstallDir
}

func resolveWorkDir() string {
	if v := os.Getenv(envWorkOverride); v != "" {
		return v
	}
	if scratch := os.Getenv(envScratch); scratch != "" {
		return filepath.Join(scratch, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = os.TempDir()
	}
	return filepath.Join(home, appName)
}
