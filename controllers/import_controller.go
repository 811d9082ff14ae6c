package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Techinsane-official/perfumex-sub001/models"
	"github.com/Techinsane-official/perfumex-sub001/services"
)

// ImportController handles HTTP requests for the import pipeline.
type ImportController struct {
	importService   services.ImportService
	snapshotService services.SnapshotService
	redis           *redis.Client
	validator       *RequestValidator
	storageDir      string
	timeout         time.Duration
	importTimeout   time.Duration
}

// NewImportController creates a new ImportController. rdb may be nil, in
// which case async imports are rejected.
func NewImportController(importSvc services.ImportService, snapshotSvc services.SnapshotService, rdb *redis.Client, validator *RequestValidator, storageDir string) *ImportController {
	if storageDir == "" {
		storageDir = "./data/imports"
	}
	return &ImportController{
		importService:   importSvc,
		snapshotService: snapshotSvc,
		redis:           rdb,
		validator:       validator,
		storageDir:      storageDir,
		timeout:         DefaultContextTimeout,
		importTimeout:   SyncImportTimeout,
	}
}

// ImportForm carries the multipart fields accompanying an uploaded file.
type ImportForm struct {
	SupplierID        string `form:"supplier_id" validate:"required,uuid"`
	ColumnMapping     string `form:"column_mapping" validate:"required"` // JSON object
	DuplicateStrategy string `form:"duplicate_strategy" validate:"omitempty,oneof=skip overwrite flag error"`
	BatchSize         int    `form:"batch_size" validate:"omitempty,gt=0,lte=500"`
	ImportOnlyValid   *bool  `form:"import_only_valid"`
	CheckEAN          *bool  `form:"check_ean"`
	CheckNameBrand    *bool  `form:"check_name_brand"`
}

// CreateImport handles POST /imports. The request is either a JSON body
// with pre-parsed rows, or a multipart upload carrying the spreadsheet and
// its column mapping. ?async=true queues multipart uploads for the
// background worker instead of importing inline.
func (ic *ImportController) CreateImport(c *gin.Context) {
	async := strings.ToLower(strings.TrimSpace(c.Query("async"))) == "true"

	if isMultipart(c) {
		ic.handleFileImport(c, async)
		return
	}
	if async {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Async import requires a file upload"})
		return
	}
	ic.handleJSONImport(c)
}

// ValidateImport handles POST /imports/validate. It accepts the same JSON
// and multipart shapes as CreateImport but never writes anything.
func (ic *ImportController) ValidateImport(c *gin.Context) {
	var req models.ValidateImportRequest

	if isMultipart(c) {
		file, err := ic.getAndValidateFile(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		mappingStr := strings.TrimSpace(c.PostForm("column_mapping"))
		if mappingStr == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "column_mapping is required"})
			return
		}
		var mapping models.ColumnMapping
		if err := json.Unmarshal([]byte(mappingStr), &mapping); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid column mapping, must be a JSON object"})
			return
		}

		rows, err := ic.readRows(file)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		req = models.ValidateImportRequest{Rows: rows, ColumnMapping: mapping}
	} else {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ic.timeout)
	defer cancel()

	validation, svcErr := ic.importService.ValidateImport(ctx, &req)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	c.JSON(http.StatusOK, validation)
}

// GetImportSession handles GET /imports/:id
func (ic *ImportController) GetImportSession(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session ID"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ic.timeout)
	defer cancel()

	session, svcErr := ic.importService.GetSession(ctx, id)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	c.JSON(http.StatusOK, session)
}

// ListImportSessions handles GET /imports
func (ic *ImportController) ListImportSessions(c *gin.Context) {
	page, limit, err := ic.validator.ParsePagination(c)
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

	ctx, cancel := context.WithTimeout(c.Request.Context(), ic.timeout)
	defer cancel()

	sessions, total, svcErr := ic.importService.ListSessions(ctx, supplierID, page, limit)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"total":    total,
		"page":     page,
		"limit":    limit,
	})
}

// GetImportJobStatus handles GET /imports/jobs/:id
func (ic *ImportController) GetImportJobStatus(c *gin.Context) {
	if ic.redis == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Async imports are not available"})
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Job ID required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), JobStatusTimeout)
	defer cancel()

	val, err := ic.redis.Get(ctx, services.ImportJobKey(id)).Result()
	if err == redis.Nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	if err != nil {
		zap.L().Error("Failed to get job status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve job status"})
		return
	}

	var job models.ImportJob
	if err := json.Unmarshal([]byte(val), &job); err != nil {
		zap.L().Error("Failed to parse job status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to parse job result"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// RollbackImport handles POST /imports/:id/rollback
func (ic *ImportController) RollbackImport(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid session ID"})
		return
	}

	req := models.RollbackRequest{BackupBeforeRollback: true}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ic.importTimeout)
	defer cancel()

	result, svcErr := ic.snapshotService.Rollback(ctx, id, &req)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	c.JSON(http.StatusOK, result)
}

// RestoreBackup handles POST /imports/restore/:backupId
func (ic *ImportController) RestoreBackup(c *gin.Context) {
	backupID, err := uuid.Parse(c.Param("backupId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid backup ID"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ic.importTimeout)
	defer cancel()

	result, svcErr := ic.snapshotService.Restore(ctx, backupID)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	c.JSON(http.StatusOK, result)
}

// SuggestMapping handles POST /imports/mapping/suggest. It accepts either a
// JSON body with a headers array or a spreadsheet upload whose header row
// is read.
func (ic *ImportController) SuggestMapping(c *gin.Context) {
	var headers []string

	if isMultipart(c) {
		file, err := ic.getAndValidateFile(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		fileHandle, err := file.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open file"})
			return
		}
		defer fileHandle.Close()

		hs, _, err := services.ParseSpreadsheet(file.Filename, fileHandle)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		headers = hs
	} else {
		var req struct {
			Headers []string `json:"headers" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
			return
		}
		headers = req.Headers
	}

	mapping := services.SuggestColumnMapping(headers)
	c.JSON(http.StatusOK, gin.H{
		"column_mapping": mapping,
		"headers":        headers,
	})
}

// Private helper methods

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

func (ic *ImportController) handleJSONImport(c *gin.Context) {
	var req models.ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ic.importTimeout)
	defer cancel()

	progress, svcErr := ic.importService.Import(ctx, &req, nil)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	c.JSON(http.StatusOK, progress)
}

func (ic *ImportController) handleFileImport(c *gin.Context, async bool) {
	file, err := ic.getAndValidateFile(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	form, err := ic.parseImportForm(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var mapping models.ColumnMapping
	if err := json.Unmarshal([]byte(form.ColumnMapping), &mapping); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid column mapping, must be a JSON object"})
		return
	}

	if async {
		ic.handleAsyncImport(c, file, form, mapping)
		return
	}

	rows, err := ic.readRows(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req := &models.ImportRequest{
		SupplierID:      form.SupplierID,
		Filename:        file.Filename,
		Rows:            rows,
		ColumnMapping:   mapping,
		BatchSize:       form.BatchSize,
		Strategy:        models.DuplicateStrategy(form.DuplicateStrategy),
		ImportOnlyValid: form.ImportOnlyValid,
		CheckEAN:        form.CheckEAN,
		CheckNameBrand:  form.CheckNameBrand,
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ic.importTimeout)
	defer cancel()

	progress, svcErr := ic.importService.Import(ctx, req, nil)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}
	c.JSON(http.StatusOK, progress)
}

func (ic *ImportController) handleAsyncImport(c *gin.Context, file *multipart.FileHeader, form *ImportForm, mapping models.ColumnMapping) {
	if ic.redis == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Async imports are not available"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), ic.timeout)
	defer cancel()

	jobID, err := ic.enqueueJob(ctx, file, form, mapping)
	if err != nil {
		zap.L().Error("Failed to enqueue async import", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue import job"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":  jobID,
		"message": "Import queued for processing",
	})
}

func (ic *ImportController) enqueueJob(ctx context.Context, file *multipart.FileHeader, form *ImportForm, mapping models.ColumnMapping) (string, error) {
	fileHandle, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	data, err := io.ReadAll(fileHandle)
	fileHandle.Close()
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	if err := os.MkdirAll(ic.storageDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create storage directory: %w", err)
	}

	jobID := uuid.New().String()
	filePath := filepath.Join(ic.storageDir, jobID+strings.ToLower(filepath.Ext(file.Filename)))
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to persist file: %w", err)
	}

	now := time.Now().UTC()
	job := &models.ImportJob{
		ID:              jobID,
		Status:          models.ImportJobPending,
		Filename:        file.Filename,
		FilePath:        filePath,
		SupplierID:      form.SupplierID,
		ColumnMapping:   mapping,
		BatchSize:       form.BatchSize,
		Strategy:        models.DuplicateStrategy(form.DuplicateStrategy),
		ImportOnlyValid: form.ImportOnlyValid == nil || *form.ImportOnlyValid,
		CheckEAN:        form.CheckEAN,
		CheckNameBrand:  form.CheckNameBrand,
		SubmittedAt:     now,
		UpdatedAt:       now,
	}
	payload, err := json.Marshal(job)
	if err != nil {
		os.Remove(filePath)
		return "", fmt.Errorf("failed to marshal job metadata: %w", err)
	}

	if err := ic.redis.Set(ctx, services.ImportJobKey(jobID), payload, services.ImportJobTTL).Err(); err != nil {
		os.Remove(filePath)
		return "", fmt.Errorf("failed to store job metadata: %w", err)
	}
	if err := ic.redis.RPush(ctx, services.ImportQueueKey, jobID).Err(); err != nil {
		os.Remove(filePath)
		ic.redis.Del(ctx, services.ImportJobKey(jobID))
		return "", fmt.Errorf("failed to enqueue job: %w", err)
	}

	zap.L().Info("Import job queued",
		zap.String("job_id", jobID),
		zap.String("filename", file.Filename),
	)
	return jobID, nil
}

func (ic *ImportController) parseImportForm(c *gin.Context) (*ImportForm, error) {
	var form ImportForm
	if err := c.ShouldBind(&form); err != nil {
		return nil, fmt.Errorf("invalid form data: %w", err)
	}
	if err := ic.validator.ValidateStruct(&form); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return &form, nil
}

func (ic *ImportController) getAndValidateFile(c *gin.Context) (*multipart.FileHeader, error) {
	file, err := c.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("file is required")
	}

	if !ic.validator.IsValidSpreadsheetFile(file) {
		return nil, fmt.Errorf("invalid file type. Only CSV and Excel files are allowed")
	}

	if err := ic.validator.ValidateFileSize(file); err != nil {
		return nil, err
	}

	return file, nil
}

func (ic *ImportController) readRows(file *multipart.FileHeader) ([]map[string]string, error) {
	fileHandle, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file")
	}
	defer fileHandle.Close()

	_, rows, err := services.ParseSpreadsheet(file.Filename, fileHandle)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
