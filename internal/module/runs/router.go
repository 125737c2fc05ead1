// Package runs is the HTTP module for run and stage lifecycle routes:
// spec §6.1's run CRUD, uploads, sample inspection, stage submission and
// the results/QC read endpoints. Grounded on the teacher's
// internal/module/slurm package shape (Router{...}, NewRouter, Register,
// handler_*.go split by concern).
package runs

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/StevenZev/ExpressDiff/internal/controller"
)

// Router mounts every /runs... route.
type Router struct {
	ctrl   *controller.Controller
	logger *slog.Logger
}

// NewRouter constructs a Router.
func NewRouter(ctrl *controller.Controller, logger *slog.Logger) *Router {
	return &Router{ctrl: ctrl, logger: logger}
}

// Register wires this module's routes onto r.
func (rt *Router) Register(r *gin.Engine) {
	g := r.Group("/runs")
	{
		g.POST("", rt.handleCreateRun)
		g.GET("", rt.handleListRuns)
		g.GET("/:run_id", rt.handleGetRun)
		g.DELETE("/:run_id", rt.handleDeleteRun)
		g.PUT("/:run_id/adapter", rt.handleUpdateAdapter)

		g.POST("/:run_id/upload", rt.handleUpload)
		g.GET("/:run_id/samples", rt.handleSamples)

		g.GET("/:run_id/stages/:stage/validate", rt.handleValidateStage)
		g.POST("/:run_id/stages/:stage", rt.handleSubmitStage)
		g.DELETE("/:run_id/stages/:stage", rt.handleCancelStage)
		g.GET("/:run_id/stages/:stage/status", rt.handleStageStatus)
		g.GET("/:run_id/stages/:stage/logs", rt.handleStageLogs)

		g.GET("/:run_id/featurecounts-summary", rt.handleFeatureCountsSummary)
		g.GET("/:run_id/deseq2-results", rt.handleDESeq2Results)
		g.GET("/:run_id/deseq2-download/:file_type", rt.handleDESeq2Download)

		g.GET("/:run_id/qc/list", rt.handleQCList)
		g.GET("/:run_id/qc/:stage/*path", rt.handleQCFile)
	}
}
