package runs

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/StevenZev/ExpressDiff/internal/apierr"
	"github.com/StevenZev/ExpressDiff/internal/pkg/response"
	"github.com/StevenZev/ExpressDiff/internal/validate"
)

// extensionRouting maps an upload's extension to its destination
// subdirectory, per spec §4.7.
var extensionRouting = map[string]string{
	".fq.gz":     "raw",
	".fastq.gz":  "raw",
	".fa":        "reference",
	".fasta":     "reference",
	".gtf":       "reference",
	".csv":       "metadata",
	".tsv":       "metadata",
}

func destinationFor(filename string) (string, bool) {
	lower := strings.ToLower(filename)
	for ext, dir := range extensionRouting {
		if strings.HasSuffix(lower, ext) {
			return dir, true
		}
	}
	return "", false
}

type uploadResult struct {
	Filename string `json:"filename"`
	SavedTo  string `json:"saved_to,omitempty"`
	Error    string `json:"error,omitempty"`
}

// handleUpload implements POST /runs/{run_id}/upload: routes each
// uploaded file into raw/, reference/ or metadata/ by extension,
// creating the destination directory if absent and rejecting
// unrecognized extensions per-file (not aborting the whole request).
func (rt *Router) handleUpload(c *gin.Context) {
	runID := c.Param("run_id")
	if !rt.ctrl.Exists(runID) {
		apierr.ServeError(c, &apierr.NotFoundError{Subsystem: "run", Operand: runID})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form: " + err.Error()})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		files = form.File["files[]"]
	}

	runDir := rt.ctrl.RunDir(runID)
	results := make([]uploadResult, 0, len(files))
	httpStatus := http.StatusOK

	for _, fileHeader := range files {
		dir, ok := destinationFor(fileHeader.Filename)
		if !ok {
			results = append(results, uploadResult{Filename: fileHeader.Filename, Error: "unrecognized extension"})
			httpStatus = http.StatusBadRequest
			continue
		}

		destDir := filepath.Join(runDir, dir)
		if err := os.MkdirAll(destDir, 0o755); err != nil {
			results = append(results, uploadResult{Filename: fileHeader.Filename, Error: fmt.Sprintf("create destination: %v", err)})
			httpStatus = http.StatusInternalServerError
			continue
		}

		destPath := filepath.Join(destDir, filepath.Base(fileHeader.Filename))
		if err := c.SaveUploadedFile(fileHeader, destPath); err != nil {
			results = append(results, uploadResult{Filename: fileHeader.Filename, Error: fmt.Sprintf("save: %v", err)})
			httpStatus = http.StatusInternalServerError
			continue
		}
		results = append(results, uploadResult{Filename: fileHeader.Filename, SavedTo: destPath})
	}

	response.JSON(c, httpStatus, gin.H{"results": results})
}

func (rt *Router) handleSamples(c *gin.Context) {
	runID := c.Param("run_id")
	if !rt.ctrl.Exists(runID) {
		apierr.ServeError(c, &apierr.NotFoundError{Subsystem: "run", Operand: runID})
		return
	}
	samples, err := validate.Samples(rt.ctrl.RunDir(runID))
	if err != nil {
		apierr.ServeError(c, err)
		return
	}
	response.OK(c, gin.H{"samples": samples})
}
