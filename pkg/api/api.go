package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dropdeck/dropdeck/pkg/service"
	"github.com/dropdeck/dropdeck/pkg/store"
	"github.com/dropdeck/dropdeck/pkg/types"
)

// API exposes the upload tracker over HTTP
type API struct {
	registry *service.ServiceRegistry
	hub      *ProgressHub
	apiKey   string
}

// NewAPI creates the HTTP surface. The hub may be nil to disable the
// websocket feed.
func NewAPI(registry *service.ServiceRegistry, hub *ProgressHub, apiKey string) *API {
	return &API{
		registry: registry,
		hub:      hub,
		apiKey:   apiKey,
	}
}

// RegisterRoutes attaches all endpoints to the router
func (a *API) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", a.health)

	api := router.Group("/api")
	api.Use(a.authMiddleware())

	api.POST("/uploads", a.submitBatch)
	api.GET("/files", a.listFiles)
	api.GET("/files/:id", a.getFile)
	api.DELETE("/files/:id", a.removeFile)
	api.GET("/sessions", a.listSessions)
	api.GET("/sessions/:id", a.getSession)
	api.GET("/sessions/:id/files", a.listSessionFiles)
	api.DELETE("/sessions/:id", a.deleteSession)
	api.GET("/stats", a.getStats)
	api.GET("/history", a.listHistory)

	if a.hub != nil {
		router.GET("/ws", a.hub.Handle)
	}
}

func (a *API) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.apiKey == "" {
			c.Next()
			return
		}
		if c.GetHeader("X-API-Key") != a.apiKey {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// BatchRequest is the payload for batch submission
type BatchRequest struct {
	Files []types.FileMeta `json:"files" binding:"required"`
}

func (a *API) submitBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := a.registry.UploadService.SubmitBatch(c.Request.Context(), req.Files)
	if err != nil {
		status := http.StatusBadRequest
		if result != nil && len(result.Rejected) > 0 {
			// Everything was turned away by the configured constraints.
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"error": err.Error(), "result": result})
		return
	}

	c.JSON(http.StatusAccepted, result)
}

func (a *API) listFiles(c *gin.Context) {
	if sessionID := c.Query("session"); sessionID != "" {
		c.JSON(http.StatusOK, gin.H{"files": a.registry.UploadService.ListSessionFiles(sessionID)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": a.registry.UploadService.ListFiles()})
}

func (a *API) getFile(c *gin.Context) {
	record, err := a.registry.UploadService.GetFile(c.Param("id"))
	if err != nil {
		a.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (a *API) removeFile(c *gin.Context) {
	record, err := a.registry.UploadService.RemoveFile(c.Param("id"))
	if err != nil {
		a.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (a *API) listSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": a.registry.UploadService.ListSessions()})
}

func (a *API) getSession(c *gin.Context) {
	session, err := a.registry.UploadService.GetSession(c.Param("id"))
	if err != nil {
		a.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (a *API) listSessionFiles(c *gin.Context) {
	if _, err := a.registry.UploadService.GetSession(c.Param("id")); err != nil {
		a.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": a.registry.UploadService.ListSessionFiles(c.Param("id"))})
}

func (a *API) deleteSession(c *gin.Context) {
	session, err := a.registry.UploadService.DeleteSession(c.Param("id"))
	if err != nil {
		a.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (a *API) getStats(c *gin.Context) {
	stats, err := a.registry.StatsService.GetGlobalStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (a *API) listHistory(c *gin.Context) {
	if a.registry.History == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "history disabled"})
		return
	}

	if sessionID := c.Query("session"); sessionID != "" {
		events, err := a.registry.History.ListBySession(sessionID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": events})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	events, err := a.registry.History.List(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (a *API) health(c *gin.Context) {
	results := a.registry.Health(c.Request.Context())

	healthy := true
	details := make(map[string]string, len(results))
	for name, err := range results {
		if err != nil {
			healthy = false
			details[name] = err.Error()
		} else {
			details[name] = "ok"
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"healthy": healthy, "services": details})
}

// storeError maps store sentinel errors onto HTTP status codes
func (a *API) storeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotAllowed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
