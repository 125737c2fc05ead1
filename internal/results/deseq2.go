package results

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/StevenZev/ExpressDiff/internal/apierr"
)

const (
	deseq2Dir              = "deseq2"
	deseq2SummaryFile      = "summary.txt"
	deseq2SignificantFile  = "significant_degs.csv"
	displayRoundingDigits  = 4
)

// downloadFiles is the fixed set of downloadable deseq2 artifacts, spec §4.8.
var downloadFiles = map[string]string{
	"summary":          deseq2SummaryFile,
	"significant_degs": deseq2SignificantFile,
	"full_results":     "full_results.csv",
	"top_degs":         "top_degs.csv",
	"counts_matrix":    "counts_matrix.csv",
}

// DESeq2Results is the parsed content of a run's deseq2/ directory.
type DESeq2Results struct {
	Summary         map[string]string   `json:"summary"`
	SignificantDEGs []map[string]string `json:"significant_degs"`
	Downloads       []string            `json:"downloads"`
}

// DESeq2Result parses run_dir/deseq2/summary.txt and
// run_dir/deseq2/significant_degs.csv. Returns NotFoundError if the
// deseq2 directory is absent, or if both primary files are absent.
func DESeq2Result(runID, runDir string) (*DESeq2Results, error) {
	dir := filepath.Join(runDir, deseq2Dir)
	if _, err := os.Stat(dir); err != nil {
		return nil, &apierr.NotFoundError{Subsystem: "deseq2_results", Operand: runID}
	}

	summaryPath := filepath.Join(dir, deseq2SummaryFile)
	significantPath := filepath.Join(dir, deseq2SignificantFile)

	summary, summaryErr := parseSummaryFile(summaryPath)
	degs, degsErr := parseSignificantDEGs(significantPath)
	if summaryErr != nil && degsErr != nil {
		return nil, &apierr.NotFoundError{Subsystem: "deseq2_results", Operand: runID}
	}

	return &DESeq2Results{
		Summary:         summary,
		SignificantDEGs: degs,
		Downloads:       availableDownloads(dir),
	}, nil
}

// DESeq2DownloadPath resolves file_type to an absolute path for download.
// Returns a ValidationError for an unrecognized file_type, NotFoundError
// if the file itself is absent on disk.
func DESeq2DownloadPath(runID, runDir, fileType string) (string, error) {
	rel, ok := downloadFiles[fileType]
	if !ok {
		return "", &apierr.ValidationError{
			Stage:  "deseq2_download",
			Errors: []string{"unknown file_type: " + fileType},
		}
	}
	path := filepath.Join(runDir, deseq2Dir, rel)
	if _, err := os.Stat(path); err != nil {
		return "", &apierr.NotFoundError{Subsystem: "deseq2_download", Operand: runID + "/" + fileType}
	}
	return path, nil
}

func availableDownloads(dir string) []string {
	var out []string
	for key, rel := range downloadFiles {
		if _, err := os.Stat(filepath.Join(dir, rel)); err == nil {
			out = append(out, key)
		}
	}
	return out
}

func parseSummaryFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	summary := map[string]string{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sep := strings.IndexAny(line, ":=")
		if sep < 0 {
			continue
		}
		key := strings.TrimSpace(line[:sep])
		value := strings.TrimSpace(line[sep+1:])
		summary[key] = value
	}
	return summary, nil
}

// parseSignificantDEGs reads the tabular CSV and rounds any numeric
// field to four decimal places for display, per spec §4.8.
func parseSignificantDEGs(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i >= len(record) {
				continue
			}
			row[col] = formatForDisplay(record[i])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func formatForDisplay(value string) string {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return value
	}
	return strconv.FormatFloat(f, 'f', displayRoundingDigits, 64)
}
