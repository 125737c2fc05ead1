package runs

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/StevenZev/ExpressDiff/internal/apierr"
	"github.com/StevenZev/ExpressDiff/internal/pkg/response"
	"github.com/StevenZev/ExpressDiff/internal/stage"
)

// qcStageDirs lists the stages that produce browsable QC HTML reports.
var qcStageDirs = []stage.Name{stage.QCRaw, stage.QCTrimmed}

func (rt *Router) handleQCList(c *gin.Context) {
	runID := c.Param("run_id")
	if !rt.ctrl.Exists(runID) {
		apierr.ServeError(c, &apierr.NotFoundError{Subsystem: "run", Operand: runID})
		return
	}

	runDir := rt.ctrl.RunDir(runID)
	listing := gin.H{}
	for _, name := range qcStageDirs {
		matches, _ := filepath.Glob(filepath.Join(runDir, string(name), "*.html"))
		files := make([]string, 0, len(matches))
		for _, m := range matches {
			files = append(files, filepath.Base(m))
		}
		listing[string(name)] = files
	}
	response.OK(c, listing)
}

// handleQCFile serves one QC HTML report, guarding against path
// traversal by resolving and re-confining the requested path under the
// stage's QC directory before serving it.
func (rt *Router) handleQCFile(c *gin.Context) {
	runID := c.Param("run_id")
	name := stage.Name(c.Param("stage"))
	if !isQCStage(name) {
		apierr.ServeError(c, &apierr.NotFoundError{Subsystem: "stage", Operand: string(name)})
		return
	}
	if !rt.ctrl.Exists(runID) {
		apierr.ServeError(c, &apierr.NotFoundError{Subsystem: "run", Operand: runID})
		return
	}

	requested := strings.TrimPrefix(c.Param("path"), "/")
	qcDir := filepath.Join(rt.ctrl.RunDir(runID), string(name))
	target := filepath.Join(qcDir, filepath.Clean("/"+requested))

	if !strings.HasPrefix(target, filepath.Clean(qcDir)+string(os.PathSeparator)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid path"})
		return
	}
	if _, err := os.Stat(target); err != nil {
		apierr.ServeError(c, &apierr.NotFoundError{Subsystem: "qc_report", Operand: requested})
		return
	}
	c.File(target)
}

func isQCStage(name stage.Name) bool {
	for _, n := range qcStageDirs {
		if n == name {
			return true
		}
	}
	return false
}
