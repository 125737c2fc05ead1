package runs

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/StevenZev/ExpressDiff/internal/apierr"
	"github.com/StevenZev/ExpressDiff/internal/pkg/response"
)

type createRunRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Account     string `json:"account" binding:"required"`
	AdapterType string `json:"adapter_type"`
}

func (rt *Router) handleCreateRun(c *gin.Context) {
	var req createRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	parameters := map[string]string{}
	if req.AdapterType != "" {
		parameters["adapter_type"] = req.AdapterType
	}

	run, err := rt.ctrl.CreateRun(req.Name, req.Description, req.Account, parameters)
	if err != nil {
		apierr.ServeError(c, err)
		return
	}
	response.OK(c, run)
}

func (rt *Router) handleListRuns(c *gin.Context) {
	runList, err := rt.ctrl.ListRuns(c.Request.Context())
	if err != nil {
		apierr.ServeError(c, err)
		return
	}
	response.OK(c, runList)
}

func (rt *Router) handleGetRun(c *gin.Context) {
	runID := c.Param("run_id")
	run, err := rt.ctrl.GetRun(c.Request.Context(), runID)
	if err != nil {
		apierr.ServeError(c, err)
		return
	}
	response.OK(c, run)
}

func (rt *Router) handleDeleteRun(c *gin.Context) {
	runID := c.Param("run_id")
	if err := rt.ctrl.DeleteRun(c.Request.Context(), runID); err != nil {
		apierr.ServeError(c, err)
		return
	}
	response.OK(c, response.Message{Message: "run deleted"})
}

type updateAdapterRequest struct {
	AdapterType string `json:"adapter_type" binding:"required"`
}

func (rt *Router) handleUpdateAdapter(c *gin.Context) {
	runID := c.Param("run_id")
	var req updateAdapterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	run, err := rt.ctrl.UpdateAdapter(runID, req.AdapterType)
	if err != nil {
		apierr.ServeError(c, err)
		return
	}
	response.OK(c, run)
}
