package validate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/StevenZev/ExpressDiff/internal/pkg/clock"
	"github.com/StevenZev/ExpressDiff/internal/runpath"
	"github.com/StevenZev/ExpressDiff/internal/stage"
	"github.com/StevenZev/ExpressDiff/internal/store"
)

func testRun(runID string) *store.Run {
	now := clock.Now()
	return &store.Run{
		RunID:      runID,
		Parameters: map[string]string{},
		Stages:     store.NewStages(now),
	}
}

func testPaths(t *testing.T) (runpath.Paths, string) {
	t.Helper()
	workDir := t.TempDir()
	runDir := filepath.Join(workDir, "runs", "run-1")
	dirs := []string{"raw", "reference", "metadata", "trimmed", "star", "featurecounts", "deseq2"}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(runDir, d), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", d, err)
		}
	}
	return runpath.Paths{InstallDir: workDir, WorkDir: workDir}, runDir
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("touch %s: %v", path, err)
	}
}

func TestValidateDependencyNotCompleted(t *testing.T) {
	paths, _ := testPaths(t)
	run := testRun("run-1")
	// trim depends on qc_raw, which is still pending.
	result, err := Validate(run, stage.Trim, paths)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.Valid {
		t.Fatal("Valid = true, want false when dependency is not completed")
	}
}

func TestValidateQCRawRequiresFastq(t *testing.T) {
	paths, runDir := testPaths(t)
	run := testRun("run-1")

	result, err := Validate(run, stage.QCRaw, paths)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.Valid {
		t.Fatal("Valid = true with no FASTQ files present, want false")
	}

	touch(t, filepath.Join(runDir, "raw", "sample1_1.fq.gz"))
	touch(t, filepath.Join(runDir, "raw", "sample1_2.fq.gz"))
	result, err = Validate(run, stage.QCRaw, paths)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.Valid {
		t.Fatalf("Valid = false with FASTQ files present, want true; errors=%v", result.Errors)
	}
}

func TestValidateQCRawWarnsOnOddFastqCountWithoutDoubleCounting(t *testing.T) {
	paths, runDir := testPaths(t)
	run := testRun("run-1")

	// Each of these matches two of the overlapping glob patterns in
	// checkFastqInputs (*_1.fq.gz and the broader *.fq.gz both match
	// sample1_1.fq.gz) -- a naive sum-of-matches count would see 6 "files"
	// here and wrongly conclude the count is even.
	touch(t, filepath.Join(runDir, "raw", "sample1_1.fq.gz"))
	touch(t, filepath.Join(runDir, "raw", "sample1_2.fq.gz"))
	touch(t, filepath.Join(runDir, "raw", "sample2_1.fq.gz"))

	result, err := Validate(run, stage.QCRaw, paths)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.Valid {
		t.Fatalf("Valid = false, want true; errors=%v", result.Errors)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected a warning about an odd number of FASTQ files, got none (files were double-counted)")
	}
}

func TestValidateTrimWarnsOnUnsetAdapterType(t *testing.T) {
	paths, runDir := testPaths(t)
	touch(t, filepath.Join(runDir, "raw", "sample1_1.fq.gz"))
	touch(t, filepath.Join(runDir, "raw", "sample1_2.fq.gz"))

	run := testRun("run-1")
	run.Stages[stage.QCRaw].Status = store.StatusCompleted

	result, err := Validate(run, stage.Trim, paths)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.Valid {
		t.Fatalf("Valid = false, want true; errors=%v", result.Errors)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected a warning about unset adapter_type")
	}
}

func TestValidateStarRequiresEqualForwardReverseCounts(t *testing.T) {
	paths, runDir := testPaths(t)
	touch(t, filepath.Join(runDir, "trimmed", "s1_forward_paired.fq.gz"))
	touch(t, filepath.Join(runDir, "trimmed", "s2_forward_paired.fq.gz"))
	touch(t, filepath.Join(runDir, "trimmed", "s1_reverse_paired.fq.gz"))
	touch(t, filepath.Join(runDir, "reference", "genome.fa"))
	touch(t, filepath.Join(runDir, "reference", "genome.gtf"))

	run := testRun("run-1")
	run.Stages[stage.QCRaw].Status = store.StatusCompleted
	run.Stages[stage.Trim].Status = store.StatusCompleted

	result, err := Validate(run, stage.Star, paths)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.Valid {
		t.Fatal("Valid = true with unequal forward/reverse counts, want false")
	}
}

func TestValidateStarReferenceFallsBackToSharedMappingDir(t *testing.T) {
	paths, runDir := testPaths(t)
	touch(t, filepath.Join(runDir, "trimmed", "s1_forward_paired.fq.gz"))
	touch(t, filepath.Join(runDir, "trimmed", "s1_reverse_paired.fq.gz"))

	sharedDir := filepath.Join(paths.WorkDir, "mapping_in")
	if err := os.MkdirAll(sharedDir, 0o755); err != nil {
		t.Fatalf("mkdir shared mapping dir: %v", err)
	}
	touch(t, filepath.Join(sharedDir, "genome.fa"))
	touch(t, filepath.Join(sharedDir, "genome.gtf"))

	run := testRun("run-1")
	run.Stages[stage.QCRaw].Status = store.StatusCompleted
	run.Stages[stage.Trim].Status = store.StatusCompleted

	result, err := Validate(run, stage.Star, paths)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.Valid {
		t.Fatalf("Valid = false with shared mapping_in/ reference present, want true; errors=%v", result.Errors)
	}
}

func TestValidateStarPrefersRunLocalReferenceOverShared(t *testing.T) {
	paths, runDir := testPaths(t)
	touch(t, filepath.Join(runDir, "trimmed", "s1_forward_paired.fq.gz"))
	touch(t, filepath.Join(runDir, "trimmed", "s1_reverse_paired.fq.gz"))
	touch(t, filepath.Join(runDir, "reference", "genome.fa"))
	touch(t, filepath.Join(runDir, "reference", "genome.gtf"))
	// No shared mapping_in/ dir at all: run-local reference/ must be sufficient on its own.

	run := testRun("run-1")
	run.Stages[stage.QCRaw].Status = store.StatusCompleted
	run.Stages[stage.Trim].Status = store.StatusCompleted

	result, err := Validate(run, stage.Star, paths)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.Valid {
		t.Fatalf("Valid = false with run-local reference present, want true; errors=%v", result.Errors)
	}
}

func TestValidateDESeq2RequiresTwoDistinctConditions(t *testing.T) {
	paths, runDir := testPaths(t)
	if err := os.MkdirAll(filepath.Join(runDir, "featurecounts"), 0o755); err != nil {
		t.Fatal(err)
	}
	touch(t, filepath.Join(runDir, "featurecounts", "counts.txt"))

	metadataPath := filepath.Join(runDir, "metadata", "metadata.csv")
	csv := "sample_name,condition\ns1,control\ns2,control\n"
	if err := os.WriteFile(metadataPath, []byte(csv), 0o644); err != nil {
		t.Fatalf("write metadata: %v", err)
	}

	run := testRun("run-1")
	for _, name := range []stage.Name{stage.QCRaw, stage.Trim, stage.QCTrimmed, stage.Star, stage.FeatureCounts} {
		run.Stages[name].Status = store.StatusCompleted
	}

	result, err := Validate(run, stage.DESeq2, paths)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.Valid {
		t.Fatal("Valid = true with only one distinct condition, want false")
	}
}

func TestValidateDESeq2WarnsOnSingleReplicateCondition(t *testing.T) {
	paths, runDir := testPaths(t)
	if err := os.MkdirAll(filepath.Join(runDir, "featurecounts"), 0o755); err != nil {
		t.Fatal(err)
	}
	touch(t, filepath.Join(runDir, "featurecounts", "counts.txt"))

	metadataPath := filepath.Join(runDir, "metadata", "metadata.csv")
	csv := "sample_name,condition\ns1,control\ns2,control\ns3,treated\n"
	if err := os.WriteFile(metadataPath, []byte(csv), 0o644); err != nil {
		t.Fatalf("write metadata: %v", err)
	}

	run := testRun("run-1")
	for _, name := range []stage.Name{stage.QCRaw, stage.Trim, stage.QCTrimmed, stage.Star, stage.FeatureCounts} {
		run.Stages[name].Status = store.StatusCompleted
	}

	result, err := Validate(run, stage.DESeq2, paths)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.Valid {
		t.Fatalf("Valid = false, want true; errors=%v", result.Errors)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected a warning about the single-replicate condition")
	}
}
