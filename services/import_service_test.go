package services_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Techinsane-official/perfumex-sub001/models"
	"github.com/Techinsane-official/perfumex-sub001/services"
)

// ---- helpers ----

func newTestImportService(products *memProductRepo, suppliers *mockSupplierRepo, imports *memImportRepo, producer *mockEventPublisher) services.ImportService {
	logger, _ := zap.NewDevelopment()
	resolver := services.NewDuplicateResolver(products)
	snapshots := services.NewSnapshotService(products, imports, logger)
	return services.NewImportService(products, suppliers, imports, resolver, snapshots, producer, nil, logger, time.Millisecond)
}

func testMapping() models.ColumnMapping {
	return models.ColumnMapping{Brand: "brand", ProductName: "name", WholesalePrice: "price", EAN: "ean"}
}

func testSupplier() (*mockSupplierRepo, uuid.UUID) {
	id := uuid.New()
	return &mockSupplierRepo{
		findByIDSupplier: &models.Supplier{ID: id, Name: "Parfum Groothandel BV", Country: "NL", Active: true},
	}, id
}

func findRowError(errs []models.RowError, field string) *models.RowError {
	for i := range errs {
		if errs[i].Field == field {
			return &errs[i]
		}
	}
	return nil
}

// ---- Import ----

func TestImport_InsertsNewProducts(t *testing.T) {
	products := newMemProductRepo()
	suppliers, supplierID := testSupplier()
	imports := newMemImportRepo()
	producer := &mockEventPublisher{}
	svc := newTestImportService(products, suppliers, imports, producer)

	req := &models.ImportRequest{
		SupplierID:    supplierID.String(),
		Filename:      "price_list.xlsx",
		ColumnMapping: testMapping(),
		Rows: []map[string]string{
			{"brand": "Dior", "name": "Sauvage", "price": "45,90", "ean": "3348901250154"},
			{"brand": "Chanel", "name": "Bleu", "price": "59,00", "ean": ""},
			{"brand": "Creed", "name": "Aventus", "price": "250.00", "ean": "3508441001039"},
		},
	}
	progress, svcErr := svc.Import(context.Background(), req, nil)

	assert.Nil(t, svcErr)
	assert.True(t, progress.IsComplete)
	assert.Equal(t, 3, progress.TotalRows)
	assert.Equal(t, 3, progress.ProcessedRows)
	assert.Equal(t, 3, progress.SuccessfulRows)
	assert.Equal(t, 0, progress.FailedRows)
	assert.Equal(t, 3, products.count())

	sessionID, err := uuid.Parse(progress.SessionID)
	assert.NoError(t, err)
	session := imports.session(sessionID)
	if assert.NotNil(t, session) {
		assert.Equal(t, models.ImportStatusCompleted, session.Status)
		assert.Equal(t, 3, session.SuccessCount)
		assert.Equal(t, "price_list.xlsx", session.Filename)
		assert.NotNil(t, session.CompletedAt)
	}

	// products carry the supplier and session identity
	stored, _ := products.FindAllBySupplier(context.Background(), supplierID)
	for _, p := range stored {
		assert.Equal(t, supplierID, p.SupplierID)
		assert.Equal(t, "Parfum Groothandel BV", p.SupplierName)
		assert.Equal(t, sessionID, p.ImportSessionID)
	}

	// pre-import snapshot of the then-empty catalog
	snap := imports.firstSnapshot(models.SnapshotEntityProducts)
	if assert.NotNil(t, snap) {
		assert.Equal(t, 0, snap.EntityCount)
	}

	// completion event
	if assert.Equal(t, 1, producer.count()) {
		var event models.ImportCompletedEvent
		assert.NoError(t, json.Unmarshal(producer.last(), &event))
		assert.Equal(t, "catalog.import.completed", event.EventType)
		assert.Equal(t, models.ImportStatusCompleted, event.Status)
		assert.Equal(t, 3, event.SuccessCount)
	}
}

func TestImport_SkipsExistingDuplicates(t *testing.T) {
	products := newMemProductRepo()
	suppliers, supplierID := testSupplier()
	products.seed(models.SupplierProduct{
		SupplierID: supplierID, Brand: "Dior", ProductName: "Sauvage", EAN: "3348901250154", WholesalePrice: 45,
	})
	imports := newMemImportRepo()
	svc := newTestImportService(products, suppliers, imports, &mockEventPublisher{})

	req := &models.ImportRequest{
		SupplierID:    supplierID.String(),
		ColumnMapping: testMapping(),
		Rows: []map[string]string{
			{"brand": "Dior", "name": "Sauvage", "price": "48,00", "ean": "3348901250154"},
			{"brand": "Chanel", "name": "Bleu", "price": "59,00"},
		},
	}
	progress, svcErr := svc.Import(context.Background(), req, nil)

	assert.Nil(t, svcErr)
	assert.Equal(t, 1, progress.SuccessfulRows)
	assert.Equal(t, 1, progress.SkippedRows)
	assert.Equal(t, 2, products.count())
	dup := findRowError(progress.Errors, "duplicate")
	if assert.NotNil(t, dup) {
		assert.Equal(t, "duplicate of existing product, skipped", dup.Message)
	}

	session := imports.session(uuid.MustParse(progress.SessionID))
	if assert.NotNil(t, session) {
		assert.Equal(t, 1, session.SkipCount)
		assert.Equal(t, 1, session.DuplicateCount)
	}
}

func TestImport_OverwriteUpdatesExisting(t *testing.T) {
	products := newMemProductRepo()
	suppliers, supplierID := testSupplier()
	existingID := products.seed(models.SupplierProduct{
		SupplierID: supplierID, Brand: "Dior", ProductName: "Sauvage", EAN: "3348901250154", WholesalePrice: 45,
	})
	imports := newMemImportRepo()
	svc := newTestImportService(products, suppliers, imports, &mockEventPublisher{})

	req := &models.ImportRequest{
		SupplierID:    supplierID.String(),
		ColumnMapping: testMapping(),
		Strategy:      models.DuplicateOverwrite,
		Rows: []map[string]string{
			{"brand": "Dior", "name": "Sauvage", "price": "59,90", "ean": "3348901250154"},
		},
	}
	progress, svcErr := svc.Import(context.Background(), req, nil)

	assert.Nil(t, svcErr)
	assert.Equal(t, 1, progress.SuccessfulRows)
	assert.Equal(t, 0, progress.SkippedRows)
	assert.Equal(t, 1, products.count())

	updated := products.get(existingID)
	if assert.NotNil(t, updated) {
		assert.Equal(t, 59.9, updated.WholesalePrice)
		assert.Equal(t, uuid.MustParse(progress.SessionID), updated.ImportSessionID)
	}
}

func TestImport_FlagStrategyReportsDuplicates(t *testing.T) {
	products := newMemProductRepo()
	suppliers, supplierID := testSupplier()
	existingID := products.seed(models.SupplierProduct{
		SupplierID: supplierID, Brand: "Dior", ProductName: "Sauvage", EAN: "3348901250154", WholesalePrice: 45,
	})
	imports := newMemImportRepo()
	svc := newTestImportService(products, suppliers, imports, &mockEventPublisher{})

	req := &models.ImportRequest{
		SupplierID:    supplierID.String(),
		ColumnMapping: testMapping(),
		Strategy:      models.DuplicateFlag,
		Rows: []map[string]string{
			{"brand": "Dior", "name": "Sauvage", "price": "59,90", "ean": "3348901250154"},
		},
	}
	progress, svcErr := svc.Import(context.Background(), req, nil)

	assert.Nil(t, svcErr)
	assert.Equal(t, 0, progress.SuccessfulRows)
	assert.Equal(t, 1, progress.FailedRows)
	if assert.Len(t, progress.Duplicates, 1) {
		assert.Equal(t, "flagged", progress.Duplicates[0].Action)
		assert.Equal(t, existingID.String(), progress.Duplicates[0].ExistingID)
	}
	// the catalog row is untouched
	assert.Equal(t, 45.0, products.get(existingID).WholesalePrice)
}

func TestImport_InBatchDuplicateSkipped(t *testing.T) {
	products := newMemProductRepo()
	suppliers, supplierID := testSupplier()
	imports := newMemImportRepo()
	svc := newTestImportService(products, suppliers, imports, &mockEventPublisher{})

	req := &models.ImportRequest{
		SupplierID:    supplierID.String(),
		ColumnMapping: testMapping(),
		Rows: []map[string]string{
			{"brand": "Dior", "name": "Sauvage", "price": "45,90", "ean": "3348901250154"},
			{"brand": "Dior", "name": "Sauvage EDP", "price": "55,00", "ean": "3348901250154"},
		},
	}
	progress, svcErr := svc.Import(context.Background(), req, nil)

	assert.Nil(t, svcErr)
	assert.Equal(t, 1, progress.SuccessfulRows)
	assert.Equal(t, 1, progress.SkippedRows)
	assert.Equal(t, 1, products.count())
	dup := findRowError(progress.Errors, "duplicate")
	if assert.NotNil(t, dup) {
		assert.Equal(t, "duplicate of an earlier row in this file, skipped", dup.Message)
	}
}

func TestImport_InvalidRowsCollected(t *testing.T) {
	products := newMemProductRepo()
	suppliers, supplierID := testSupplier()
	imports := newMemImportRepo()
	svc := newTestImportService(products, suppliers, imports, &mockEventPublisher{})

	req := &models.ImportRequest{
		SupplierID:    supplierID.String(),
		ColumnMapping: testMapping(),
		Rows: []map[string]string{
			{"brand": "Dior", "name": "Sauvage", "price": "45,90"},
			{"brand": "Chanel", "name": "Bleu", "price": "not a price"},
			{"brand": "Creed", "name": "Aventus", "price": "250.00"},
		},
	}
	progress, svcErr := svc.Import(context.Background(), req, nil)

	assert.Nil(t, svcErr)
	assert.Equal(t, 2, progress.SuccessfulRows)
	assert.Equal(t, 1, progress.FailedRows)
	assert.Equal(t, 3, progress.ProcessedRows)
	assert.Equal(t, 2, products.count())
	rowErr := findRowError(progress.Errors, "wholesale_price")
	if assert.NotNil(t, rowErr) {
		assert.Equal(t, 2, rowErr.Row)
	}
}

func TestImport_ErrorStrategyCountsDuplicateAsFailed(t *testing.T) {
	products := newMemProductRepo()
	suppliers, supplierID := testSupplier()
	products.seed(models.SupplierProduct{
		SupplierID: supplierID, Brand: "Dior", ProductName: "Sauvage", EAN: "3348901250154", WholesalePrice: 45,
	})
	imports := newMemImportRepo()
	svc := newTestImportService(products, suppliers, imports, &mockEventPublisher{})

	req := &models.ImportRequest{
		SupplierID:    supplierID.String(),
		ColumnMapping: testMapping(),
		Strategy:      models.DuplicateError,
		Rows: []map[string]string{
			{"brand": "Dior", "name": "Sauvage", "price": "48,00", "ean": "3348901250154"},
			{"brand": "Chanel", "name": "Bleu", "price": "59,00"},
		},
	}
	progress, svcErr := svc.Import(context.Background(), req, nil)

	assert.Nil(t, svcErr)
	assert.Equal(t, 1, progress.SuccessfulRows)
	assert.Equal(t, 1, progress.FailedRows)
	assert.Equal(t, 0, progress.SkippedRows)
	assert.Equal(t, 2, products.count())
	dup := findRowError(progress.Errors, "duplicate")
	if assert.NotNil(t, dup) {
		assert.Equal(t, "duplicate of existing product", dup.Message)
		assert.Equal(t, 1, dup.Row)
	}
}

func TestImport_EmptyBrandRowFails(t *testing.T) {
	products := newMemProductRepo()
	suppliers, supplierID := testSupplier()
	imports := newMemImportRepo()
	svc := newTestImportService(products, suppliers, imports, &mockEventPublisher{})

	req := &models.ImportRequest{
		SupplierID:    supplierID.String(),
		ColumnMapping: testMapping(),
		Rows: []map[string]string{
			{"brand": "Dior", "name": "Sauvage", "price": "45,90"},
			{"brand": "", "name": "Bleu", "price": "59,00"},
			{"brand": "Creed", "name": "Aventus", "price": "250.00"},
		},
	}
	progress, svcErr := svc.Import(context.Background(), req, nil)

	assert.Nil(t, svcErr)
	assert.Equal(t, 2, progress.SuccessfulRows)
	assert.Equal(t, 1, progress.FailedRows)
	assert.Equal(t, 2, products.count())
	if assert.Len(t, progress.Errors, 1) {
		assert.Equal(t, "brand", progress.Errors[0].Field)
		assert.Equal(t, 2, progress.Errors[0].Row)
	}
}

func TestImport_AllOrNothingRefusesInvalidFile(t *testing.T) {
	products := newMemProductRepo()
	suppliers, supplierID := testSupplier()
	imports := newMemImportRepo()
	svc := newTestImportService(products, suppliers, imports, &mockEventPublisher{})

	strict := false
	req := &models.ImportRequest{
		SupplierID:      supplierID.String(),
		ColumnMapping:   testMapping(),
		ImportOnlyValid: &strict,
		Rows: []map[string]string{
			{"brand": "Dior", "name": "Sauvage", "price": "45,90"},
			{"brand": "", "name": "Bleu", "price": "59,00"},
		},
	}
	progress, svcErr := svc.Import(context.Background(), req, nil)

	assert.Nil(t, progress)
	if assert.NotNil(t, svcErr) {
		assert.Equal(t, 422, svcErr.StatusCode)
	}
	// nothing was written, not even a session
	assert.Equal(t, 0, products.count())
	assert.Equal(t, 0, imports.sessionCount())
}

func TestImport_CancelledBetweenBatches(t *testing.T) {
	products := newMemProductRepo()
	suppliers, supplierID := testSupplier()
	imports := newMemImportRepo()
	svc := newTestImportService(products, suppliers, imports, &mockEventPublisher{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := &models.ImportRequest{
		SupplierID:    supplierID.String(),
		ColumnMapping: testMapping(),
		BatchSize:     1,
		Rows: []map[string]string{
			{"brand": "Dior", "name": "Sauvage", "price": "45,90"},
			{"brand": "Chanel", "name": "Bleu", "price": "59,00"},
		},
	}
	progress, svcErr := svc.Import(ctx, req, nil)

	if assert.NotNil(t, svcErr) {
		assert.Equal(t, 499, svcErr.StatusCode)
	}
	if assert.NotNil(t, progress) {
		session := imports.session(uuid.MustParse(progress.SessionID))
		if assert.NotNil(t, session) {
			assert.Equal(t, models.ImportStatusCancelled, session.Status)
		}
	}
}

func TestImport_ProgressCallbackPerBatch(t *testing.T) {
	products := newMemProductRepo()
	suppliers, supplierID := testSupplier()
	imports := newMemImportRepo()
	svc := newTestImportService(products, suppliers, imports, &mockEventPublisher{})

	var seen []int
	onProgress := func(p *models.ImportProgress) {
		seen = append(seen, p.ProcessedRows)
	}

	req := &models.ImportRequest{
		SupplierID:    supplierID.String(),
		ColumnMapping: testMapping(),
		BatchSize:     2,
		Rows: []map[string]string{
			{"brand": "Dior", "name": "Sauvage", "price": "45,90"},
			{"brand": "Chanel", "name": "Bleu", "price": "59,00"},
			{"brand": "Creed", "name": "Aventus", "price": "250.00"},
			{"brand": "Gucci", "name": "Bloom", "price": "60,00"},
		},
	}
	_, svcErr := svc.Import(context.Background(), req, onProgress)

	assert.Nil(t, svcErr)
	assert.Equal(t, []int{2, 4}, seen)
}

func TestImport_SnapshotFailureDoesNotAbort(t *testing.T) {
	products := newMemProductRepo()
	suppliers, supplierID := testSupplier()
	imports := newMemImportRepo()
	imports.createSnapshotErr = assert.AnError
	svc := newTestImportService(products, suppliers, imports, &mockEventPublisher{})

	req := &models.ImportRequest{
		SupplierID:    supplierID.String(),
		ColumnMapping: testMapping(),
		Rows: []map[string]string{
			{"brand": "Dior", "name": "Sauvage", "price": "45,90"},
		},
	}
	progress, svcErr := svc.Import(context.Background(), req, nil)

	assert.Nil(t, svcErr)
	assert.Equal(t, 1, progress.SuccessfulRows)
	assert.Equal(t, 0, imports.snapshotCount())
}

func TestImport_RequestValidation(t *testing.T) {
	products := newMemProductRepo()
	suppliers, supplierID := testSupplier()
	imports := newMemImportRepo()
	svc := newTestImportService(products, suppliers, imports, &mockEventPublisher{})

	// mapping without required columns
	_, svcErr := svc.Import(context.Background(), &models.ImportRequest{
		SupplierID:    supplierID.String(),
		ColumnMapping: models.ColumnMapping{Brand: "brand"},
		Rows:          []map[string]string{{"brand": "Dior"}},
	}, nil)
	if assert.NotNil(t, svcErr) {
		assert.Equal(t, 400, svcErr.StatusCode)
	}

	// no rows
	_, svcErr = svc.Import(context.Background(), &models.ImportRequest{
		SupplierID:    supplierID.String(),
		ColumnMapping: testMapping(),
		Rows:          []map[string]string{},
	}, nil)
	if assert.NotNil(t, svcErr) {
		assert.Equal(t, 400, svcErr.StatusCode)
		assert.Equal(t, "no rows to import", svcErr.Message)
	}

	// unknown strategy
	_, svcErr = svc.Import(context.Background(), &models.ImportRequest{
		SupplierID:    supplierID.String(),
		ColumnMapping: testMapping(),
		Strategy:      models.DuplicateStrategy("merge"),
		Rows:          []map[string]string{{"brand": "Dior", "name": "Sauvage", "price": "45,90"}},
	}, nil)
	if assert.NotNil(t, svcErr) {
		assert.Equal(t, 400, svcErr.StatusCode)
	}

	// bad supplier id
	_, svcErr = svc.Import(context.Background(), &models.ImportRequest{
		SupplierID:    "not-a-uuid",
		ColumnMapping: testMapping(),
		Rows:          []map[string]string{{"brand": "Dior", "name": "Sauvage", "price": "45,90"}},
	}, nil)
	if assert.NotNil(t, svcErr) {
		assert.Equal(t, 400, svcErr.StatusCode)
	}
}

func TestImport_SupplierNotFound(t *testing.T) {
	products := newMemProductRepo()
	suppliers := &mockSupplierRepo{findByIDErr: gorm.ErrRecordNotFound}
	imports := newMemImportRepo()
	svc := newTestImportService(products, suppliers, imports, &mockEventPublisher{})

	req := &models.ImportRequest{
		SupplierID:    uuid.New().String(),
		ColumnMapping: testMapping(),
		Rows:          []map[string]string{{"brand": "Dior", "name": "Sauvage", "price": "45,90"}},
	}
	_, svcErr := svc.Import(context.Background(), req, nil)

	if assert.NotNil(t, svcErr) {
		assert.Equal(t, 404, svcErr.StatusCode)
		assert.Equal(t, "supplier not found", svcErr.Message)
	}
}

// ---- ValidateImport ----

func TestValidateImport_CountsAndInFileDuplicates(t *testing.T) {
	products := newMemProductRepo()
	suppliers, _ := testSupplier()
	imports := newMemImportRepo()
	svc := newTestImportService(products, suppliers, imports, &mockEventPublisher{})

	req := &models.ValidateImportRequest{
		ColumnMapping: testMapping(),
		Rows: []map[string]string{
			{"brand": "Dior", "name": "Sauvage", "price": "45,90", "ean": "3348901250154"},
			{"brand": "", "name": "Bleu", "price": "59,00"},
			{"brand": "Dior", "name": "Sauvage EDP", "price": "55,00", "ean": "3348901250154"},
		},
	}
	result, svcErr := svc.ValidateImport(context.Background(), req)

	assert.Nil(t, svcErr)
	assert.False(t, result.Valid)
	assert.Equal(t, 3, result.TotalRows)
	assert.Equal(t, 2, result.ValidRows)
	assert.Equal(t, 1, result.InvalidRows)
	assert.NotNil(t, findRowError(result.Errors, "brand"))

	foundDup := false
	for _, w := range result.Warnings {
		if w.Field == "ean" && w.Row == 3 {
			foundDup = true
			assert.Contains(t, w.Message, "row 1")
		}
	}
	assert.True(t, foundDup, "expected an in-file duplicate EAN warning")

	// validation never writes
	assert.Equal(t, 0, products.count())
	assert.Equal(t, 0, imports.sessionCount())
}

func TestValidateImport_BadMapping(t *testing.T) {
	products := newMemProductRepo()
	suppliers, _ := testSupplier()
	svc := newTestImportService(products, suppliers, newMemImportRepo(), &mockEventPublisher{})

	_, svcErr := svc.ValidateImport(context.Background(), &models.ValidateImportRequest{
		ColumnMapping: models.ColumnMapping{ProductName: "name"},
		Rows:          []map[string]string{{"name": "Sauvage"}},
	})
	if assert.NotNil(t, svcErr) {
		assert.Equal(t, 400, svcErr.StatusCode)
	}
}

// ---- sessions ----

func TestGetSession_NotFound(t *testing.T) {
	products := newMemProductRepo()
	suppliers, _ := testSupplier()
	svc := newTestImportService(products, suppliers, newMemImportRepo(), &mockEventPublisher{})

	_, svcErr := svc.GetSession(context.Background(), uuid.New())
	if assert.NotNil(t, svcErr) {
		assert.Equal(t, 404, svcErr.StatusCode)
	}
}

func TestListSessions_FiltersBySupplier(t *testing.T) {
	products := newMemProductRepo()
	suppliers, supplierID := testSupplier()
	imports := newMemImportRepo()
	other := uuid.New()
	_ = imports.CreateSession(context.Background(), &models.ImportSession{SupplierID: supplierID, Status: models.ImportStatusCompleted})
	_ = imports.CreateSession(context.Background(), &models.ImportSession{SupplierID: other, Status: models.ImportStatusCompleted})
	svc := newTestImportService(products, suppliers, imports, &mockEventPublisher{})

	sessions, total, svcErr := svc.ListSessions(context.Background(), &supplierID, 1, 20)

	assert.Nil(t, svcErr)
	assert.Equal(t, int64(1), total)
	if assert.Len(t, sessions, 1) {
		assert.Equal(t, supplierID, sessions[0].SupplierID)
	}
}
