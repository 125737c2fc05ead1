package runs

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/StevenZev/ExpressDiff/internal/apierr"
	"github.com/StevenZev/ExpressDiff/internal/pkg/response"
	"github.com/StevenZev/ExpressDiff/internal/stage"
)

func (rt *Router) handleValidateStage(c *gin.Context) {
	runID := c.Param("run_id")
	name := stage.Name(c.Param("stage"))

	result, err := rt.ctrl.ValidateStage(c.Request.Context(), runID, name)
	if err != nil {
		apierr.ServeError(c, err)
		return
	}
	response.OK(c, result)
}

type submitStageRequest struct {
	Account      string `json:"account" binding:"required"`
	ConfirmRerun bool   `json:"confirm_rerun"`
}

func (rt *Router) handleSubmitStage(c *gin.Context) {
	runID := c.Param("run_id")
	name := stage.Name(c.Param("stage"))

	var req submitStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	run, err := rt.ctrl.SubmitStage(c.Request.Context(), runID, name, req.Account, req.ConfirmRerun)
	if err != nil {
		apierr.ServeError(c, err)
		return
	}
	response.OK(c, run)
}

func (rt *Router) handleCancelStage(c *gin.Context) {
	runID := c.Param("run_id")
	name := stage.Name(c.Param("stage"))

	if err := rt.ctrl.CancelStage(c.Request.Context(), runID, name); err != nil {
		apierr.ServeError(c, err)
		return
	}
	response.OK(c, response.Message{Message: "cancel requested"})
}

func (rt *Router) handleStageStatus(c *gin.Context) {
	runID := c.Param("run_id")
	name := stage.Name(c.Param("stage"))

	st, err := rt.ctrl.GetStageStatus(c.Request.Context(), runID, name)
	if err != nil {
		apierr.ServeError(c, err)
		return
	}
	response.OK(c, gin.H{
		"stage":      name,
		"status":     st.Status,
		"job_id":     st.JobID,
		"updated_at": st.UpdatedAt,
	})
}

type stageLogsResponse struct {
	Stdout      string `json:"stdout"`
	Stderr      string `json:"stderr"`
	StdoutFile  string `json:"stdout_file"`
	StderrFile  string `json:"stderr_file"`
}

// handleStageLogs reads the slurm stdout/stderr files generated for the
// stage's most recent submission, by convention
// logs/<stage>_<run_id>.{out,err} under the run directory.
func (rt *Router) handleStageLogs(c *gin.Context) {
	runID := c.Param("run_id")
	name := stage.Name(c.Param("stage"))
	if !stage.IsValid(name) {
		apierr.ServeError(c, &apierr.NotFoundError{Subsystem: "stage", Operand: string(name)})
		return
	}
	if !rt.ctrl.Exists(runID) {
		apierr.ServeError(c, &apierr.NotFoundError{Subsystem: "run", Operand: runID})
		return
	}

	runDir := rt.ctrl.RunDir(runID)
	stdoutPath := filepath.Join(runDir, "logs", string(name)+"_"+runID+".out")
	stderrPath := filepath.Join(runDir, "logs", string(name)+"_"+runID+".err")

	response.OK(c, stageLogsResponse{
		Stdout:     readFileOrEmpty(stdoutPath),
		Stderr:     readFileOrEmpty(stderrPath),
		StdoutFile: stdoutPath,
		StderrFile: stderrPath,
	})
}

func readFileOrEmpty(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}
