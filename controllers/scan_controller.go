package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Techinsane-official/perfumex-sub001/models"
	"github.com/Techinsane-official/perfumex-sub001/services"
)

// ScanController handles HTTP requests for price-scan jobs.
type ScanController struct {
	scanService services.ScanService
	validator   *RequestValidator
	timeout     time.Duration
}

// NewScanController creates a new ScanController.
func NewScanController(svc services.ScanService, validator *RequestValidator) *ScanController {
	return &ScanController{
		scanService: svc,
		validator:   validator,
		timeout:     DefaultContextTimeout,
	}
}

// StartScan handles POST /scans
func (sc *ScanController) StartScan(c *gin.Context) {
	var req models.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), sc.timeout)
	defer cancel()

	job, svcErr := sc.scanService.StartScan(ctx, &req)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	c.JSON(http.StatusAccepted, job)
}

// GetScanJob handles GET /scans/:id
func (sc *ScanController) GetScanJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), sc.timeout)
	defer cancel()

	job, svcErr := sc.scanService.GetJob(ctx, id)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListScanJobs handles GET /scans
func (sc *ScanController) ListScanJobs(c *gin.Context) {
	page, limit, err := sc.validator.ParsePagination(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var supplierID *uuid.UUID
	if raw := strings.TrimSpace(c.Query("supplier_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid supplier ID"})
			return
		}
		supplierID = &id
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), sc.timeout)
	defer cancel()

	jobs, total, svcErr := sc.scanService.ListJobs(ctx, supplierID, page, limit)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// StopScanJob handles POST /scans/:id/stop
func (sc *ScanController) StopScanJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), sc.timeout)
	defer cancel()

	job, svcErr := sc.scanService.StopJob(ctx, id)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"job":     job,
		"message": "Stop requested, the job halts at the next batch boundary",
	})
}

// GetScanResults handles GET /scans/:id/results
func (sc *ScanController) GetScanResults(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), sc.timeout)
	defer cancel()

	results, svcErr := sc.scanService.ListResults(ctx, id)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"total":   len(results),
	})
}

// GetOpportunities handles GET /scans/:id/opportunities
func (sc *ScanController) GetOpportunities(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID"})
		return
	}

	minMargin := 0.0
	if raw := strings.TrimSpace(c.Query("min_margin")); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid min_margin value"})
			return
		}
		minMargin = parsed
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), sc.timeout)
	defer cancel()

	opportunities, svcErr := sc.scanService.Opportunities(ctx, id, minMargin)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"opportunities": opportunities,
		"total":         len(opportunities),
		"min_margin":    minMargin,
	})
}
