package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"qiime2its/internal/pipeline"
	"qiime2its/internal/run"
)

type submitRunRequest struct {
	InputDir string `json:"input_dir" binding:"required"`
	Paired   *bool  `json:"paired"`
}

type submitRunResponse struct {
	RunID  string     `json:"run_id"`
	Status run.Status `json:"status"`
}

type runResponse struct {
	ID         string                 `json:"id"`
	Status     run.Status             `json:"status"`
	CreatedAt  string                 `json:"created_at"`
	FinishedAt string                 `json:"finished_at,omitempty"`
	InputDir   string                 `json:"input_dir"`
	Paired     bool                   `json:"paired"`
	Stages     []pipeline.StageReport `json:"stages"`
	Error      string                 `json:"error,omitempty"`
	BundleURL  string                 `json:"bundle_url,omitempty"`
}

// RunService is the part of run.Manager the handlers use.
type RunService interface {
	IsBusy() bool
	Submit(input run.Input) (*run.Run, error)
	Get(runID string) (*run.Run, bool)
}

type API struct {
	runs RunService
}

func NewAPI(runs RunService) *API {
	return &API{runs: runs}
}

// RegisterRoutes registers API routes on the provided gin engine
func (a *API) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/runs", a.SubmitRun)
		api.GET("/runs/:id", a.GetRun)
		api.GET("/runs/:id/bundle", a.DownloadBundle)
	}
}

// SubmitRun starts a pipeline run over a server-side input directory
func (a *API) SubmitRun(c *gin.Context) {
	if a.runs.IsBusy() {
		log.Warn().Msg("rejecting run: server is at max concurrency")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server busy"})
		return
	}
	var req submitRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("invalid submit run request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	submitted, err := a.runs.Submit(run.Input{InputDir: req.InputDir, Paired: req.Paired})
	switch {
	case errors.Is(err, run.ErrBusy):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server busy"})
		return
	case err != nil:
		log.Warn().Str("input_dir", req.InputDir).Err(err).Msg("failed to submit run")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	log.Info().Str("run_id", submitted.ID).Str("input_dir", submitted.InputDir).Msg("run submitted")
	c.JSON(http.StatusCreated, submitRunResponse{RunID: submitted.ID, Status: submitted.Status})
}

// GetRun returns run status and per-stage reports
func (a *API) GetRun(c *gin.Context) {
	id := c.Param("id")
	if found, ok := a.runs.Get(id); ok {
		c.JSON(http.StatusOK, toRunResponse(found))
		return
	}
	log.Warn().Str("run_id", id).Msg("run not found on get")
	c.JSON(http.StatusNotFound, gin.H{"error": run.ErrRunNotFound.Error()})
}

// DownloadBundle serves the result bundle of a finished run
func (a *API) DownloadBundle(c *gin.Context) {
	id := c.Param("id")
	found, ok := a.runs.Get(id)
	if !ok {
		log.Warn().Str("run_id", id).Msg("run not found on download")
		c.JSON(http.StatusNotFound, gin.H{"error": run.ErrRunNotFound.Error()})
		return
	}
	if !found.Status.Done() || found.BundlePath == "" {
		log.Warn().Str("run_id", id).Str("status", string(found.Status)).Msg("bundle not ready to download")
		c.JSON(http.StatusConflict, gin.H{"error": "bundle not ready"})
		return
	}
	log.Info().Str("run_id", id).Str("path", found.BundlePath).Msg("serving bundle download")
	c.FileAttachment(found.BundlePath, "qiime2its-"+found.ID+".zip")
}

func toRunResponse(r *run.Run) runResponse {
	resp := runResponse{
		ID:        r.ID,
		Status:    r.Status,
		CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
		InputDir:  r.InputDir,
		Paired:    r.Paired,
		Stages:    r.Stages,
		Error:     r.Error,
	}
	if r.FinishedAt != nil {
		resp.FinishedAt = r.FinishedAt.UTC().Format(time.RFC3339)
	}
	if r.BundlePath != "" {
		resp.BundleURL = "/api/v1/runs/" + r.ID + "/bundle"
	}
	return resp
}
