// Package meta is the HTTP module for the orchestrator's non-run
// endpoints: health, account discovery, storage info and the stage
// registry. Grounded on the teacher's internal/module/slurm package
// shape (Router{...}, NewRouter, Register).
package meta

import (
	"log/slog"
	"net/http"
	"os"
	"os/user"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/common/version"

	"github.com/StevenZev/ExpressDiff/internal/apierr"
	"github.com/StevenZev/ExpressDiff/internal/runpath"
	"github.com/StevenZev/ExpressDiff/internal/scheduler"
	"github.com/StevenZev/ExpressDiff/internal/stage"
)

// Router mounts /health, /accounts, /storage-info and /stages.
type Router struct {
	scheduler *scheduler.Gateway
	paths     runpath.Paths
	logger    *slog.Logger
}

// NewRouter constructs a Router.
func NewRouter(g *scheduler.Gateway, paths runpath.Paths, logger *slog.Logger) *Router {
	return &Router{scheduler: g, paths: paths, logger: logger}
}

// Register wires this module's routes onto r.
func (rt *Router) Register(r *gin.Engine) {
	r.GET("/health", rt.handleHealth)
	r.GET("/accounts", rt.handleAccounts)
	r.GET("/storage-info", rt.handleStorageInfo)
	r.GET("/stages", rt.handleStages)
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

func (rt *Router) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   version.Version,
	})
}

func (rt *Router) handleAccounts(c *gin.Context) {
	accounts, err := rt.scheduler.Accounts(c.Request.Context())
	if err != nil {
		apierr.ServeError(c, err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}

type storageInfoResponse struct {
	InstallDirectory string `json:"install_directory"`
	DataDirectory    string `json:"data_directory"`
	RunsDirectory    string `json:"runs_directory"`
	StorageType      string `json:"storage_type"`
	User             string `json:"user"`
}

func (rt *Router) handleStorageInfo(c *gin.Context) {
	username := os.Getenv("USER")
	if u, err := user.Current(); err == nil && u.Username != "" {
		username = u.Username
	}
	c.JSON(http.StatusOK, storageInfoResponse{
		InstallDirectory: rt.paths.InstallDir,
		DataDirectory:    rt.paths.WorkDir,
		RunsDirectory:    rt.paths.RunsDir(),
		StorageType:      "posix",
		User:             username,
	})
}

type stagesResponse struct {
	Stages []stage.Name `json:"stages"`
}

func (rt *Router) handleStages(c *gin.Context) {
	c.JSON(http.StatusOK, stagesResponse{Stages: stage.Names()})
}
