package repository_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/Techinsane-official/perfumex-sub001/models"
	"github.com/Techinsane-official/perfumex-sub001/repository"
)

func TestCreateSession_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormImportRepository(gormDB)

	session := &models.ImportSession{
		ID:         uuid.New(),
		SupplierID: uuid.New(),
		Filename:   "catalog.xlsx",
		Status:     models.ImportStatusRunning,
		RowCount:   120,
		StartedAt:  time.Now(),
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "import_sessions"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(session.ID))
	mock.ExpectCommit()

	err := repo.CreateSession(context.Background(), session)
	assert.NoError(t, err)
}

func TestFindSessionByID_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormImportRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "import_sessions"`)).
		WillReturnRows(sqlmock.NewRows([]string{}))

	s, err := repo.FindSessionByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Nil(t, s)
}

func TestFindSessions_FiltersBySupplier(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormImportRepository(gormDB)

	supplierID := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "import_sessions"`)).
		WithArgs(supplierID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	rows := sqlmock.NewRows([]string{"id", "supplier_id", "filename", "status"}).
		AddRow(uuid.New(), supplierID, "catalog.xlsx", models.ImportStatusCompleted)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "import_sessions"`)).
		WillReturnRows(rows)

	sessions, total, err := repo.FindSessions(context.Background(), &supplierID, 1, 20)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, sessions, 1)
}

func TestCreateSnapshot_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormImportRepository(gormDB)

	snapshot := &models.ImportSnapshot{
		ID:              uuid.New(),
		ImportSessionID: uuid.New(),
		EntityType:      models.SnapshotEntityProducts,
		SnapshotData:    `[]`,
		EntityCount:     0,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "import_snapshots"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(snapshot.ID))
	mock.ExpectCommit()

	err := repo.CreateSnapshot(context.Background(), snapshot)
	assert.NoError(t, err)
}

func TestFindSnapshotBySession_PicksNewestOfType(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormImportRepository(gormDB)

	sessionID := uuid.New()
	rows := sqlmock.NewRows([]string{"id", "import_session_id", "entity_type", "data", "entity_count"}).
		AddRow(uuid.New(), sessionID, models.SnapshotEntityProducts, `[{"brand":"Dior"}]`, 1)

	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY created_at DESC`)).
		WillReturnRows(rows)

	s, err := repo.FindSnapshotBySession(context.Background(), sessionID, models.SnapshotEntityProducts)
	assert.NoError(t, err)
	assert.Equal(t, models.SnapshotEntityProducts, s.EntityType)
	assert.Equal(t, 1, s.EntityCount)
}
