package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Techinsane-official/perfumex-sub001/models"
)

// SourceRepository defines data-access operations for scraping sources.
type SourceRepository interface {
	FindAll(ctx context.Context) ([]models.ScrapingSource, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.ScrapingSource, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.ScrapingSource, error)
	FindActive(ctx context.Context) ([]models.ScrapingSource, error)
	Update(ctx context.Context, source *models.ScrapingSource) error
}

// GormSourceRepository implements SourceRepository using GORM.
type GormSourceRepository struct {
	db *gorm.DB
}

// NewGormSourceRepository creates a new GormSourceRepository.
func NewGormSourceRepository(db *gorm.DB) SourceRepository {
	return &GormSourceRepository{db: db}
}

func (r *GormSourceRepository) FindAll(ctx context.Context) ([]models.ScrapingSource, error) {
	var sources []models.ScrapingSource
	if err := r.db.WithContext(ctx).
		Order("priority ASC, name ASC").
		Find(&sources).Error; err != nil {
		return nil, err
	}
	return sources, nil
}

func (r *GormSourceRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.ScrapingSource, error) {
	var s models.ScrapingSource
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormSourceRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.ScrapingSource, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var sources []models.ScrapingSource
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("priority ASC").
		Find(&sources).Error; err != nil {
		return nil, err
	}
	return sources, nil
}

func (r *GormSourceRepository) FindActive(ctx context.Context) ([]models.ScrapingSource, error) {
	var sources []models.ScrapingSource
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("priority ASC").
		Find(&sources).Error; err != nil {
		return nil, err
	}
	return sources, nil
}

func (r *GormSourceRepository) Update(ctx context.Context, source *models.ScrapingSource) error {
	return r.db.WithContext(ctx).Save(source).Error
}
