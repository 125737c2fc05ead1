package runs

import (
	"github.com/gin-gonic/gin"

	"github.com/StevenZev/ExpressDiff/internal/apierr"
	"github.com/StevenZev/ExpressDiff/internal/pkg/response"
	"github.com/StevenZev/ExpressDiff/internal/results"
)

func (rt *Router) handleFeatureCountsSummary(c *gin.Context) {
	runID := c.Param("run_id")
	if !rt.ctrl.Exists(runID) {
		apierr.ServeError(c, &apierr.NotFoundError{Subsystem: "run", Operand: runID})
		return
	}
	summary, err := results.FeatureCountsResult(runID, rt.ctrl.RunDir(runID))
	if err != nil {
		apierr.ServeError(c, err)
		return
	}
	response.OK(c, summary)
}

func (rt *Router) handleDESeq2Results(c *gin.Context) {
	runID := c.Param("run_id")
	if !rt.ctrl.Exists(runID) {
		apierr.ServeError(c, &apierr.NotFoundError{Subsystem: "run", Operand: runID})
		return
	}
	out, err := results.DESeq2Result(runID, rt.ctrl.RunDir(runID))
	if err != nil {
		apierr.ServeError(c, err)
		return
	}
	response.OK(c, out)
}

func (rt *Router) handleDESeq2Download(c *gin.Context) {
	runID := c.Param("run_id")
	fileType := c.Param("file_type")
	if !rt.ctrl.Exists(runID) {
		apierr.ServeError(c, &apierr.NotFoundError{Subsystem: "run", Operand: runID})
		return
	}
	path, err := results.DESeq2DownloadPath(runID, rt.ctrl.RunDir(runID), fileType)
	if err != nil {
		apierr.ServeError(c, err)
		return
	}
	c.FileAttachment(path, fileType)
}
