package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Techinsane-official/perfumex-sub001/models"
)

// ImportRepository defines data-access operations for import sessions and
// their snapshots.
type ImportRepository interface {
	CreateSession(ctx context.Context, session *models.ImportSession) error
	UpdateSession(ctx context.Context, session *models.ImportSession) error
	FindSessionByID(ctx context.Context, id uuid.UUID) (*models.ImportSession, error)
	FindSessions(ctx context.Context, supplierID *uuid.UUID, page, limit int) ([]models.ImportSession, int64, error)
	CreateSnapshot(ctx context.Context, snapshot *models.ImportSnapshot) error
	FindSnapshotByID(ctx context.Context, id uuid.UUID) (*models.ImportSnapshot, error)
	FindSnapshotBySession(ctx context.Context, sessionID uuid.UUID, entityType string) (*models.ImportSnapshot, error)
}

// GormImportRepository implements ImportRepository using GORM.
type GormImportRepository struct {
	db *gorm.DB
}

// NewGormImportRepository creates a new GormImportRepository.
func NewGormImportRepository(db *gorm.DB) ImportRepository {
	return &GormImportRepository{db: db}
}

func (r *GormImportRepository) CreateSession(ctx context.Context, session *models.ImportSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *GormImportRepository) UpdateSession(ctx context.Context, session *models.ImportSession) error {
	return r.db.WithContext(ctx).Save(session).Error
}

func (r *GormImportRepository) FindSessionByID(ctx context.Context, id uuid.UUID) (*models.ImportSession, error) {
	var s models.ImportSession
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormImportRepository) FindSessions(ctx context.Context, supplierID *uuid.UUID, page, limit int) ([]models.ImportSession, int64, error) {
	var sessions []models.ImportSession
	var total int64

	query := r.db.WithContext(ctx).Model(&models.ImportSession{})
	if supplierID != nil {
		query = query.Where("supplier_id = ?", *supplierID)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Offset(offset).Limit(limit).
		Order("started_at DESC").
		Find(&sessions).Error; err != nil {
		return nil, 0, err
	}

	return sessions, total, nil
}

func (r *GormImportRepository) CreateSnapshot(ctx context.Context, snapshot *models.ImportSnapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}

func (r *GormImportRepository) FindSnapshotByID(ctx context.Context, id uuid.UUID) (*models.ImportSnapshot, error) {
	var s models.ImportSnapshot
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormImportRepository) FindSnapshotBySession(ctx context.Context, sessionID uuid.UUID, entityType string) (*models.ImportSnapshot, error) {
	var s models.ImportSnapshot
	if err := r.db.WithContext(ctx).
		Where("import_session_id = ? AND entity_type = ?", sessionID, entityType).
		Order("created_at DESC").
		First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}
