package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cacheops/cachectl/config"
	"github.com/cacheops/cachectl/lib/kubernetes"
	"github.com/cacheops/cachectl/logger"
	"github.com/cacheops/cachectl/services"
)

// CacheController exposes the rollout pipeline over HTTP. Mutating
// requests are acknowledged immediately and executed in the background;
// the history endpoint is how callers follow up on the outcome.
type CacheController struct {
	client  *kubernetes.Client
	rollout *services.RolloutService
	inspect *services.InspectService
	destroy *services.DestroyService
	history *services.HistoryService
}

// NewCacheController wires a controller around a shared client.
func NewCacheController(client *kubernetes.Client) *CacheController {
	return &CacheController{
		client:  client,
		rollout: services.NewRolloutService(client),
		inspect: services.NewInspectService(client),
		destroy: services.NewDestroyService(client),
		history: services.NewHistoryService(),
	}
}

// Rollout starts a rollout with the environment-resolved configuration
// and returns immediately with 202.
func (ctrl *CacheController) Rollout(c *gin.Context) {
	cfg, err := config.Resolve(config.ActionRollout)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status": "success",
		"data": gin.H{
			"namespace": cfg.Namespace,
			"workload":  cfg.Name,
			"replicas":  cfg.Replicas,
			"message":   "Rollout started. Check the history endpoint for the outcome.",
		},
	})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RolloutTimeout*2)
		defer cancel()
		if err := ctrl.rollout.Rollout(ctx, cfg); err != nil {
			lg := logger.WithComponent("api")
			lg.Error().Err(err).Msg("background rollout failed")
		}
	}()
}

// Inspect returns the current deployment state. The query parameter
// test=true additionally runs the functional check battery.
func (ctrl *CacheController) Inspect(c *gin.Context) {
	cfg, err := config.Resolve(config.ActionInspect)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	runChecks := c.Query("test") == "true"
	report, err := ctrl.inspect.Inspect(c.Request.Context(), cfg, runChecks)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": report})
}

// Connection returns the connection summary. The credential is
// referenced by secret name, never returned.
func (ctrl *CacheController) Connection(c *gin.Context) {
	cfg, err := config.Resolve(config.ActionInspect)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": ctrl.inspect.ConnectionInfo(cfg)})
}

// Delete tears the deployment down. The confirm=true query parameter is
// mandatory; without it the request is rejected.
func (ctrl *CacheController) Delete(c *gin.Context) {
	cfg, err := config.Resolve(config.ActionDelete)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	confirmed := c.Query("confirm") == "true"
	if err := ctrl.destroy.Destroy(c.Request.Context(), cfg, confirmed); err != nil {
		status := http.StatusInternalServerError
		if !confirmed {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"status": "error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"data":   gin.H{"namespace": cfg.Namespace, "message": "Deployment deleted."},
	})
}

// History lists recent rollout and teardown records.
func (ctrl *CacheController) History(c *gin.Context) {
	if !ctrl.history.Enabled() {
		c.JSON(http.StatusNotImplemented, gin.H{
			"status":  "error",
			"message": "History recording is not configured (DATABASE_URL unset).",
		})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	records, err := ctrl.history.List(c.Query("namespace"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": records})
}
