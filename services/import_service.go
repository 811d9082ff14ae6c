package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Techinsane-official/perfumex-sub001/kafka"
	"github.com/Techinsane-official/perfumex-sub001/metrics"
	"github.com/Techinsane-official/perfumex-sub001/models"
	"github.com/Techinsane-official/perfumex-sub001/repository"
)

// Import engine tunables.
const (
	DefaultImportBatchSize = 50
	DefaultBatchDelay      = 500 * time.Millisecond
)

// ProgressCallback receives cumulative progress after every finished batch.
type ProgressCallback func(progress *models.ImportProgress)

// ImportService runs the import pipeline: normalize, resolve duplicates,
// persist in batches, and keep the session row current for pollers.
type ImportService interface {
	Import(ctx context.Context, req *models.ImportRequest, onProgress ProgressCallback) (*models.ImportProgress, *ServiceError)
	ValidateImport(ctx context.Context, req *models.ValidateImportRequest) (*models.ImportValidation, *ServiceError)
	GetSession(ctx context.Context, id uuid.UUID) (*models.ImportSession, *ServiceError)
	ListSessions(ctx context.Context, supplierID *uuid.UUID, page, limit int) ([]models.ImportSession, int64, *ServiceError)
}

type importServiceImpl struct {
	products   repository.ProductRepository
	suppliers  repository.SupplierRepository
	imports    repository.ImportRepository
	resolver   *DuplicateResolver
	snapshots  SnapshotService
	producer   kafka.Publisher
	metrics    *metrics.Registry
	logger     *zap.Logger
	batchDelay time.Duration
}

// NewImportService creates a new ImportService. producer may be nil when
// event publishing is disabled.
func NewImportService(
	products repository.ProductRepository,
	suppliers repository.SupplierRepository,
	imports repository.ImportRepository,
	resolver *DuplicateResolver,
	snapshots SnapshotService,
	producer kafka.Publisher,
	m *metrics.Registry,
	logger *zap.Logger,
	batchDelay time.Duration,
) ImportService {
	if batchDelay <= 0 {
		batchDelay = DefaultBatchDelay
	}
	if m == nil {
		m = metrics.NewRegistry()
	}
	return &importServiceImpl{
		products:   products,
		suppliers:  suppliers,
		imports:    imports,
		resolver:   resolver,
		snapshots:  snapshots,
		producer:   producer,
		metrics:    m,
		logger:     logger,
		batchDelay: batchDelay,
	}
}

// Import runs one full import session over the request's rows. Row-level
// problems are collected into the returned progress; only engine-level
// defects (bad request, store unavailable) surface as errors.
func (s *importServiceImpl) Import(ctx context.Context, req *models.ImportRequest, onProgress ProgressCallback) (*models.ImportProgress, *ServiceError) {
	if err := req.ColumnMapping.Validate(); err != nil {
		return nil, &ServiceError{StatusCode: 400, Message: err.Error()}
	}
	if len(req.Rows) == 0 {
		return nil, &ServiceError{StatusCode: 400, Message: "no rows to import"}
	}

	strategy := req.Strategy
	if strategy == "" {
		strategy = models.DuplicateSkip
	}
	if !strategy.Valid() {
		return nil, &ServiceError{StatusCode: 400, Message: fmt.Sprintf("unknown duplicate strategy %q", strategy)}
	}

	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultImportBatchSize
	}

	supplierID, err := uuid.Parse(req.SupplierID)
	if err != nil {
		return nil, &ServiceError{StatusCode: 400, Message: "invalid supplier id"}
	}
	supplier, err := s.suppliers.FindByID(ctx, supplierID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "supplier not found"}
		}
		s.logger.Error("Failed to load supplier", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "failed to load supplier"}
	}

	importOnlyValid := true
	if req.ImportOnlyValid != nil {
		importOnlyValid = *req.ImportOnlyValid
	}
	cfg := DuplicateConfig{Strategy: strategy, CheckEAN: true, CheckNameBrand: true}
	if req.CheckEAN != nil {
		cfg.CheckEAN = *req.CheckEAN
	}
	if req.CheckNameBrand != nil {
		cfg.CheckNameBrand = *req.CheckNameBrand
	}

	// An all-or-nothing import refuses to touch the store when any row is
	// invalid.
	if !importOnlyValid {
		if verr := s.precheckAllValid(req.Rows, req.ColumnMapping); verr != nil {
			return nil, verr
		}
	}

	session := &models.ImportSession{
		SupplierID:      supplierID,
		Filename:        req.Filename,
		RowCount:        len(req.Rows),
		Strategy:        strategy,
		ImportOnlyValid: importOnlyValid,
		BatchSize:       batchSize,
		Status:          models.ImportStatusRunning,
		StartedAt:       time.Now().UTC(),
	}
	if err := s.imports.CreateSession(ctx, session); err != nil {
		s.logger.Error("Failed to create import session", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "failed to create import session"}
	}

	// Snapshot must finish before the first batch writes; a failed snapshot
	// degrades rollback, not the import itself.
	if err := s.snapshots.Snapshot(ctx, session.ID, supplierID); err != nil {
		s.logger.Warn("Pre-import snapshot failed, rollback will be limited",
			zap.String("session_id", session.ID.String()),
			zap.Error(err),
		)
	}

	progress := &models.ImportProgress{
		SessionID:  session.ID.String(),
		TotalRows:  len(req.Rows),
		Errors:     []models.RowError{},
		Warnings:   []models.RowWarning{},
		Duplicates: []models.DuplicateEntry{},
	}

	s.logger.Info("Import session started",
		zap.String("session_id", session.ID.String()),
		zap.String("supplier", supplier.Name),
		zap.Int("rows", len(req.Rows)),
		zap.String("strategy", string(strategy)),
	)

	totalBatches := (len(req.Rows) + batchSize - 1) / batchSize
	for b := 0; b < totalBatches; b++ {
		if b > 0 {
			select {
			case <-time.After(s.batchDelay):
			case <-ctx.Done():
			}
		}
		if err := ctx.Err(); err != nil {
			s.finishSession(session, progress, models.ImportStatusCancelled)
			return progress, &ServiceError{StatusCode: 499, Message: "import cancelled"}
		}

		start := b * batchSize
		end := start + batchSize
		if end > len(req.Rows) {
			end = len(req.Rows)
		}

		if err := s.processBatch(ctx, session, supplier, req.Rows[start:end], req.ColumnMapping, cfg, start, progress); err != nil {
			s.logger.Error("Import batch failed",
				zap.String("session_id", session.ID.String()),
				zap.Int("batch", b+1),
				zap.Error(err),
			)
			s.finishSession(session, progress, models.ImportStatusFailed)
			return progress, &ServiceError{StatusCode: 500, Message: "import failed: " + err.Error()}
		}

		s.syncSessionCounts(session, progress)
		if err := s.imports.UpdateSession(ctx, session); err != nil {
			s.logger.Warn("Failed to persist session progress", zap.Error(err))
		}
		if onProgress != nil {
			onProgress(snapshotProgress(progress))
		}
	}

	progress.IsComplete = true
	s.finishSession(session, progress, models.ImportStatusCompleted)

	s.logger.Info("Import session completed",
		zap.String("session_id", session.ID.String()),
		zap.Int("successful", progress.SuccessfulRows),
		zap.Int("failed", progress.FailedRows),
		zap.Int("skipped", progress.SkippedRows),
	)

	return progress, nil
}

// precheckAllValid dry-runs the normalizer over every row and reports the
// first batch of hard errors without writing anything.
func (s *importServiceImpl) precheckAllValid(rows []map[string]string, mapping models.ColumnMapping) *ServiceError {
	for i, raw := range rows {
		record, errs, _ := NormalizeRow(raw, mapping, i+1)
		if record == nil && len(errs) > 0 {
			return &ServiceError{
				StatusCode: 422,
				Message:    fmt.Sprintf("row %d is invalid and import_only_valid is false: %s", i+1, errs[0].Message),
			}
		}
	}
	return nil
}

// processBatch normalizes one slice of rows, resolves duplicates with a
// single bulk pre-check and then persists rows concurrently. Row failures
// are aggregated into progress; the returned error is engine-level only.
func (s *importServiceImpl) processBatch(
	ctx context.Context,
	session *models.ImportSession,
	supplier *models.Supplier,
	rows []map[string]string,
	mapping models.ColumnMapping,
	cfg DuplicateConfig,
	offset int,
	progress *models.ImportProgress,
) error {
	records := make([]*models.SupplierProduct, len(rows))
	for i, raw := range rows {
		rowNum := offset + i + 1
		record, errs, warns := NormalizeRow(raw, mapping, rowNum)
		progress.Warnings = append(progress.Warnings, warns...)
		if record == nil {
			progress.Errors = append(progress.Errors, errs...)
			progress.FailedRows++
			progress.ProcessedRows++
			s.metrics.ImportRowsFailed.Inc()
			continue
		}
		record.SupplierID = supplier.ID
		if record.SupplierName == "" {
			record.SupplierName = supplier.Name
		}
		record.ImportSessionID = session.ID
		records[i] = record
	}

	// bulk duplicate pre-check completes before any row writes
	resolutions, err := s.resolver.Precheck(ctx, supplier.ID, records, cfg)
	if err != nil {
		return err
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for i := range records {
		record := records[i]
		if record == nil {
			continue
		}
		res := resolutions[i]
		rowNum := offset + i + 1

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					progress.Errors = append(progress.Errors, models.RowError{
						Row:     rowNum,
						Field:   "general",
						Message: fmt.Sprintf("unexpected error while persisting row: %v", r),
					})
					progress.FailedRows++
					progress.ProcessedRows++
					mu.Unlock()
				}
			}()
			s.persistRow(ctx, record, res, rowNum, progress, &mu)
		}()
	}

	wg.Wait()
	return nil
}

// persistRow applies one resolution. It records its outcome under the
// progress mutex and never returns an error: per-row failures stay local.
func (s *importServiceImpl) persistRow(
	ctx context.Context,
	record *models.SupplierProduct,
	res Resolution,
	rowNum int,
	progress *models.ImportProgress,
	mu *sync.Mutex,
) {
	switch res.Action {
	case ActionInsert:
		err := s.products.Create(ctx, record)
		mu.Lock()
		defer mu.Unlock()
		progress.ProcessedRows++
		if err != nil {
			progress.Errors = append(progress.Errors, models.RowError{
				Row:     rowNum,
				Field:   "general",
				Message: "failed to store product: " + err.Error(),
			})
			progress.FailedRows++
			s.metrics.ImportRowsFailed.Inc()
			return
		}
		progress.SuccessfulRows++
		s.metrics.ImportRowsImported.Inc()

	case ActionUpdate:
		existing := res.Existing
		applyRecord(existing, record)
		err := s.products.Update(ctx, existing)
		mu.Lock()
		defer mu.Unlock()
		progress.ProcessedRows++
		if err != nil {
			progress.Errors = append(progress.Errors, models.RowError{
				Row:     rowNum,
				Field:   "general",
				Message: "failed to overwrite product: " + err.Error(),
			})
			progress.FailedRows++
			s.metrics.ImportRowsFailed.Inc()
			return
		}
		progress.SuccessfulRows++
		s.metrics.ImportRowsImported.Inc()
		s.metrics.ImportDuplicates.Inc()

	case ActionSkip:
		mu.Lock()
		defer mu.Unlock()
		progress.ProcessedRows++
		progress.SkippedRows++
		message := "duplicate of existing product, skipped"
		if res.InBatch {
			message = "duplicate of an earlier row in this file, skipped"
		}
		progress.Errors = append(progress.Errors, models.RowError{
			Row:     rowNum,
			Field:   "duplicate",
			Value:   record.EAN,
			Message: message,
		})
		s.metrics.ImportDuplicates.Inc()

	case ActionFlag:
		mu.Lock()
		defer mu.Unlock()
		progress.ProcessedRows++
		progress.FailedRows++
		entry := models.DuplicateEntry{
			Row:         rowNum,
			EAN:         record.EAN,
			Brand:       record.Brand,
			ProductName: record.ProductName,
			Action:      "flagged",
		}
		if res.Existing != nil {
			entry.ExistingID = res.Existing.ID.String()
		}
		progress.Duplicates = append(progress.Duplicates, entry)
		s.metrics.ImportDuplicates.Inc()

	case ActionReject:
		mu.Lock()
		defer mu.Unlock()
		progress.ProcessedRows++
		progress.FailedRows++
		progress.Errors = append(progress.Errors, models.RowError{
			Row:     rowNum,
			Field:   "duplicate",
			Value:   record.EAN,
			Message: "duplicate of existing product",
		})
		s.metrics.ImportDuplicates.Inc()
	}
}

// applyRecord copies the incoming row's fields onto an existing catalog
// record, keeping its identity and creation time.
func applyRecord(existing, incoming *models.SupplierProduct) {
	existing.Brand = incoming.Brand
	existing.ProductName = incoming.ProductName
	existing.VariantSize = incoming.VariantSize
	existing.EAN = incoming.EAN
	existing.WholesalePrice = incoming.WholesalePrice
	existing.Currency = incoming.Currency
	existing.PackSize = incoming.PackSize
	existing.SupplierName = incoming.SupplierName
	existing.LastPurchasePrice = incoming.LastPurchasePrice
	existing.Availability = incoming.Availability
	existing.Notes = incoming.Notes
	existing.ImportSessionID = incoming.ImportSessionID
}

func (s *importServiceImpl) syncSessionCounts(session *models.ImportSession, progress *models.ImportProgress) {
	session.SuccessCount = progress.SuccessfulRows
	session.FailCount = progress.FailedRows
	session.SkipCount = progress.SkippedRows
	session.DuplicateCount = len(progress.Duplicates) + progress.SkippedRows
}

// finishSession moves the session to a terminal state, stores the
// aggregated row problems and publishes the completion event.
func (s *importServiceImpl) finishSession(session *models.ImportSession, progress *models.ImportProgress, status string) {
	// terminal bookkeeping must survive a cancelled request context
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.syncSessionCounts(session, progress)
	session.Status = status
	now := time.Now().UTC()
	session.CompletedAt = &now

	if data, err := json.Marshal(progress.Errors); err == nil {
		session.ErrorsJSON = string(data)
	}
	if data, err := json.Marshal(progress.Warnings); err == nil {
		session.WarningsJSON = string(data)
	}
	if data, err := json.Marshal(progress.Duplicates); err == nil {
		session.DuplicatesJSON = string(data)
	}

	if err := s.imports.UpdateSession(ctx, session); err != nil {
		s.logger.Error("Failed to finalize import session",
			zap.String("session_id", session.ID.String()),
			zap.Error(err),
		)
	}

	s.metrics.ImportSessions.WithLabelValues(status).Inc()
	s.publishImportCompleted(ctx, session)
}

func (s *importServiceImpl) publishImportCompleted(ctx context.Context, session *models.ImportSession) {
	if s.producer == nil {
		return
	}
	event := models.ImportCompletedEvent{
		EventType:      "catalog.import.completed",
		SessionID:      session.ID.String(),
		SupplierID:     session.SupplierID.String(),
		Status:         session.Status,
		SuccessCount:   session.SuccessCount,
		FailCount:      session.FailCount,
		SkipCount:      session.SkipCount,
		DuplicateCount: session.DuplicateCount,
		Timestamp:      time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.producer.Publish(ctx, session.ID.String(), payload); err != nil {
		s.logger.Warn("Failed to publish import completed event", zap.Error(err))
	}
}

// ValidateImport dry-runs the normalizer over every row without touching
// the store, flagging in-file duplicate EANs as warnings.
func (s *importServiceImpl) ValidateImport(ctx context.Context, req *models.ValidateImportRequest) (*models.ImportValidation, *ServiceError) {
	if err := req.ColumnMapping.Validate(); err != nil {
		return nil, &ServiceError{StatusCode: 400, Message: err.Error()}
	}

	result := &models.ImportValidation{
		TotalRows: len(req.Rows),
		Errors:    []models.RowError{},
		Warnings:  []models.RowWarning{},
	}

	seenEAN := map[string]int{}
	for i, raw := range req.Rows {
		rowNum := i + 1
		record, errs, warns := NormalizeRow(raw, req.ColumnMapping, rowNum)
		result.Errors = append(result.Errors, errs...)
		result.Warnings = append(result.Warnings, warns...)
		if record == nil {
			result.InvalidRows++
			continue
		}
		result.ValidRows++
		if record.EAN != "" {
			if firstRow, ok := seenEAN[record.EAN]; ok {
				result.Warnings = append(result.Warnings, models.RowWarning{
					Row:     rowNum,
					Field:   "ean",
					Value:   record.EAN,
					Message: fmt.Sprintf("EAN already appears in row %d of this file", firstRow),
				})
			} else {
				seenEAN[record.EAN] = rowNum
			}
		}
	}

	result.Valid = result.InvalidRows == 0
	return result, nil
}

// GetSession loads one import session by id.
func (s *importServiceImpl) GetSession(ctx context.Context, id uuid.UUID) (*models.ImportSession, *ServiceError) {
	session, err := s.imports.FindSessionByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "import session not found"}
		}
		s.logger.Error("Failed to load import session", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "failed to load import session"}
	}
	return session, nil
}

// ListSessions returns paginated sessions, optionally scoped to a supplier.
func (s *importServiceImpl) ListSessions(ctx context.Context, supplierID *uuid.UUID, page, limit int) ([]models.ImportSession, int64, *ServiceError) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	sessions, total, err := s.imports.FindSessions(ctx, supplierID, page, limit)
	if err != nil {
		s.logger.Error("Failed to list import sessions", zap.Error(err))
		return nil, 0, &ServiceError{StatusCode: 500, Message: "failed to list import sessions"}
	}
	return sessions, total, nil
}

// snapshotProgress copies the aggregate counters for a callback so later
// batches cannot mutate what the callback already observed.
func snapshotProgress(p *models.ImportProgress) *models.ImportProgress {
	cp := *p
	cp.Errors = append([]models.RowError(nil), p.Errors...)
	cp.Warnings = append([]models.RowWarning(nil), p.Warnings...)
	cp.Duplicates = append([]models.DuplicateEntry(nil), p.Duplicates...)
	return &cp
}
