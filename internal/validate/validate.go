// Package validate implements the stage validator of spec §4.5:
// stage-specific preflight checks against the run directory's on-disk
// artifacts, dispatched through a table keyed by stage name rather than a
// type switch (per spec §9's redesign flag against dynamic dispatch).
package validate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/StevenZev/ExpressDiff/internal/runpath"
	"github.com/StevenZev/ExpressDiff/internal/stage"
	"github.com/StevenZev/ExpressDiff/internal/store"
)

// Result is the outcome of validating one stage.
type Result struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func newResult() *Result {
	return &Result{Valid: true, Errors: []string{}, Warnings: []string{}}
}

func (r *Result) addError(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Valid = false
}

func (r *Result) addWarning(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// stageCheck is one stage's preflight logic, given the run directory and
// the run's parameters (adapter_type etc). The general dependency rule
// is applied by Validate before a stageCheck ever runs.
type stageCheck func(result *Result, runDir string, paths runpath.Paths, parameters map[string]string)

var checks = map[stage.Name]stageCheck{
	stage.QCRaw:         checkFastqInputs,
	stage.Trim:          checkTrimInputs,
	stage.QCTrimmed:     checkQCTrimmedInputs,
	stage.Star:          checkStarInputs,
	stage.FeatureCounts: checkFeatureCountsInputs,
	stage.DESeq2:        checkDESeq2Inputs,
}

// Validate runs the general dependency rule (spec §4.5) and then the
// stage-specific rule table (spec §4.5's table). A stage whose done-flag
// already exists still validates as valid=true — the rerun guard lives
// in the controller, not here.
func Validate(run *store.Run, name stage.Name, paths runpath.Paths) (*Result, error) {
	def, ok := stage.Get(name)
	if !ok {
		return nil, fmt.Errorf("validate: unknown stage %q", name)
	}
	result := newResult()

	for _, dep := range def.DependsOn {
		st, ok := run.Stages[dep]
		if !ok || st.Status != store.StatusCompleted {
			result.addError("dependency %s not completed", dep)
		}
	}

	check, ok := checks[name]
	if !ok {
		return nil, fmt.Errorf("validate: no check registered for stage %q", name)
	}
	check(result, paths.RunDir(run.RunID), paths, run.Parameters)

	return result, nil
}

func checkFastqInputs(result *Result, runDir string, _ runpath.Paths, _ map[string]string) {
	matches := globMany(filepath.Join(runDir, "raw"), "*_1.fq.gz", "*_2.fq.gz", "*_1.fastq.gz", "*_2.fastq.gz", "*.fastq.gz", "*.fq.gz")
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		seen[filepath.Base(m)] = struct{}{}
	}
	if len(seen) == 0 {
		result.addError("no FASTQ files found in raw/")
		return
	}
	if len(seen)%2 != 0 {
		result.addWarning("odd number of FASTQ files in raw/")
	}
}

func checkTrimInputs(result *Result, runDir string, paths runpath.Paths, parameters map[string]string) {
	checkFastqInputs(result, runDir, paths, parameters)
	if strings.TrimSpace(parameters["adapter_type"]) == "" {
		result.addWarning("adapter_type unset, default NexteraPE-PE will be used")
	}
}

func checkQCTrimmedInputs(result *Result, runDir string, _ runpath.Paths, _ map[string]string) {
	files := globMany(filepath.Join(runDir, "trimmed"), "*_paired.fq.gz")
	if len(files) == 0 {
		result.addError("no *_paired.fq.gz files found in trimmed/")
	}
}

func checkStarInputs(result *Result, runDir string, paths runpath.Paths, _ map[string]string) {
	forward := globMany(filepath.Join(runDir, "trimmed"), "*_forward_paired.fq.gz")
	reverse := globMany(filepath.Join(runDir, "trimmed"), "*_reverse_paired.fq.gz")
	if len(forward) != len(reverse) {
		result.addError("unequal counts of forward (%d) and reverse (%d) paired FASTQ files in trimmed/", len(forward), len(reverse))
	}
	if len(forward) == 0 {
		result.addError("no *_forward_paired.fq.gz / *_reverse_paired.fq.gz files found in trimmed/")
	}
	checkReferenceFiles(result, runDir, paths)
}

func checkFeatureCountsInputs(result *Result, runDir string, paths runpath.Paths, _ map[string]string) {
	bams := globMany(filepath.Join(runDir, "star"), "*.bam")
	if len(bams) == 0 {
		result.addError("no *.bam files found in star/")
	}
	checkGTFOnly(result, runDir, paths)
}

// checkReferenceFiles resolves both a FASTA and a GTF (star needs both).
func checkReferenceFiles(result *Result, runDir string, paths runpath.Paths) {
	if !resolveReference(runDir, paths, "*.fa", "*.fasta") {
		result.addError("no FASTA reference (*.fa/*.fasta) found in reference/ or %s", sharedMappingDir(paths))
	}
	checkGTFOnly(result, runDir, paths)
}

// checkGTFOnly resolves just the GTF (featurecounts needs only this).
func checkGTFOnly(result *Result, runDir string, paths runpath.Paths) {
	if !resolveReference(runDir, paths, "*.gtf") {
		result.addError("no GTF reference (*.gtf) found in reference/ or %s", sharedMappingDir(paths))
	}
}

// resolveReference implements the run-local-takes-precedence tie-break
// from spec §4.5: reference/ is checked before the shared location.
func resolveReference(runDir string, paths runpath.Paths, patterns ...string) bool {
	if len(globMany(filepath.Join(runDir, "reference"), patterns...)) > 0 {
		return true
	}
	return len(globMany(sharedMappingDir(paths), patterns...)) > 0
}

func sharedMappingDir(paths runpath.Paths) string {
	return filepath.Join(paths.WorkDir, "mapping_in")
}

func checkDESeq2Inputs(result *Result, runDir string, _ runpath.Paths, _ map[string]string) {
	countsPath := filepath.Join(runDir, "featurecounts", "counts.txt")
	if _, err := os.Stat(countsPath); err != nil {
		result.addError("featurecounts/counts.txt not found; run featurecounts first")
	}

	metadataPath := filepath.Join(runDir, "metadata", "metadata.csv")
	header, rows, err := readMetadataCSV(metadataPath)
	if err != nil {
		result.addError("metadata/metadata.csv not found or unreadable: %v", err)
		return
	}

	sampleIdx, condIdx := -1, -1
	for i, col := range header {
		switch strings.TrimSpace(strings.ToLower(col)) {
		case "sample_name":
			sampleIdx = i
		case "condition":
			condIdx = i
		}
	}
	if sampleIdx < 0 || condIdx < 0 {
		result.addError("metadata/metadata.csv header must contain sample_name and condition columns")
		return
	}

	conditionCounts := map[string]int{}
	for _, row := range rows {
		if condIdx < len(row) {
			conditionCounts[strings.TrimSpace(row[condIdx])]++
		}
	}
	if len(conditionCounts) < 2 {
		result.addError("metadata/metadata.csv must have at least 2 distinct condition values, found %d", len(conditionCounts))
	}
	for cond, n := range conditionCounts {
		if n < 2 {
			result.addWarning("condition %q has fewer than 2 replicates", cond)
		}
	}
}

func globMany(dir string, patterns ...string) []string {
	var out []string
	for _, p := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, p))
		if err == nil {
			out = append(out, matches...)
		}
	}
	return out
}
