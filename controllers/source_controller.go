package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Techinsane-official/perfumex-sub001/models"
	"github.com/Techinsane-official/perfumex-sub001/services"
)

// SourceController handles HTTP requests for scraping source configuration.
type SourceController struct {
	sourceService services.SourceService
	timeout       time.Duration
}

// NewSourceController creates a new SourceController.
func NewSourceController(svc services.SourceService) *SourceController {
	return &SourceController{
		sourceService: svc,
		timeout:       DefaultContextTimeout,
	}
}

// ListSources handles GET /sources
func (sc *SourceController) ListSources(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), sc.timeout)
	defer cancel()

	sources, svcErr := sc.sourceService.ListSources(ctx)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sources": sources})
}

// UpdateSource handles PATCH /sources/:id
func (sc *SourceController) UpdateSource(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid source ID"})
		return
	}

	var req models.UpdateSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), sc.timeout)
	defer cancel()

	source, svcErr := sc.sourceService.UpdateSource(ctx, id, &req)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	c.JSON(http.StatusOK, source)
}
