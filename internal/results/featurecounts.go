// Package results implements the results adapters of spec §4.8: pure
// parsers over the pipeline's summary artifact files. They take a run
// directory and return a parsed struct or a typed not-found/invalid
// error; they never touch the store or the scheduler.
package results

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/StevenZev/ExpressDiff/internal/apierr"
)

const featureCountsSummaryFile = "featurecounts/counts.txt.summary"

// FeatureCountsRow is one status line of the summary (e.g. "Assigned",
// "Unassigned_MultiMapping"), with one count per sample.
type FeatureCountsRow struct {
	Status string           `json:"status"`
	Counts map[string]int64 `json:"counts"`
}

// FeatureCountsSummary is the per-sample table parsed from
// featurecounts/counts.txt.summary.
type FeatureCountsSummary struct {
	Samples []string           `json:"samples"`
	Rows    []FeatureCountsRow `json:"rows"`
}

// FeatureCountsResult parses run_dir/featurecounts/counts.txt.summary.
// Returns NotFoundError if the file is absent.
func FeatureCountsResult(runID, runDir string) (*FeatureCountsSummary, error) {
	path := filepath.Join(runDir, featureCountsSummaryFile)
	f, err := os.Open(path)
	if err != nil {
		return nil, &apierr.NotFoundError{Subsystem: "featurecounts_summary", Operand: runID}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	summary := &FeatureCountsSummary{}

	if !scanner.Scan() {
		return summary, nil
	}
	header := strings.Split(scanner.Text(), "\t")
	if len(header) > 1 {
		summary.Samples = make([]string, len(header)-1)
		for i, col := range header[1:] {
			summary.Samples[i] = filepath.Base(strings.TrimSpace(col))
		}
	}

	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		if len(fields) == 0 || strings.TrimSpace(fields[0]) == "" {
			continue
		}
		row := FeatureCountsRow{
			Status: strings.TrimSpace(fields[0]),
			Counts: make(map[string]int64, len(summary.Samples)),
		}
		for i, sample := range summary.Samples {
			if i+1 >= len(fields) {
				continue
			}
			n, err := strconv.ParseInt(strings.TrimSpace(fields[i+1]), 10, 64)
			if err != nil {
				continue
			}
			row.Counts[sample] = n
		}
		summary.Rows = append(summary.Rows, row)
	}
	return summary, scanner.Err()
}
