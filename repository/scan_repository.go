package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Techinsane-official/perfumex-sub001/models"
)

// ScanRepository defines data-access operations for scraping jobs and their
// results.
type ScanRepository interface {
	CreateJob(ctx context.Context, job *models.ScrapingJob) error
	FindJobByID(ctx context.Context, id uuid.UUID) (*models.ScrapingJob, error)
	// UpdateJobFields writes only the given columns so concurrent stop
	// requests are never clobbered by progress updates.
	UpdateJobFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	FindJobs(ctx context.Context, supplierID *uuid.UUID, page, limit int) ([]models.ScrapingJob, int64, error)
	// FailInterruptedJobs marks every pending or running job as failed.
	// Called once at startup: jobs run in-process, so anything still
	// marked running after a restart was lost with the old process.
	FailInterruptedJobs(ctx context.Context, message string) (int64, error)
	CreateResult(ctx context.Context, result *models.PriceScrapingResult) error
	// FindResultsByJob returns a job's results ordered by scrape time, so
	// the earliest result wins price ties during post-processing.
	FindResultsByJob(ctx context.Context, jobID uuid.UUID) ([]models.PriceScrapingResult, error)
	SetLowestPrice(ctx context.Context, resultID uuid.UUID, lowest bool) error
}

// GormScanRepository implements ScanRepository using GORM.
type GormScanRepository struct {
	db *gorm.DB
}

// NewGormScanRepository creates a new GormScanRepository.
func NewGormScanRepository(db *gorm.DB) ScanRepository {
	return &GormScanRepository{db: db}
}

func (r *GormScanRepository) CreateJob(ctx context.Context, job *models.ScrapingJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *GormScanRepository) FindJobByID(ctx context.Context, id uuid.UUID) (*models.ScrapingJob, error) {
	var j models.ScrapingJob
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *GormScanRepository) UpdateJobFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&models.ScrapingJob{}).
		Where("id = ?", id).
		Updates(fields).
		Error
}

func (r *GormScanRepository) FindJobs(ctx context.Context, supplierID *uuid.UUID, page, limit int) ([]models.ScrapingJob, int64, error) {
	var jobs []models.ScrapingJob
	var total int64

	query := r.db.WithContext(ctx).Model(&models.ScrapingJob{})
	if supplierID != nil {
		query = query.Where("supplier_id = ?", *supplierID)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Offset(offset).Limit(limit).
		Order("created_at DESC").
		Find(&jobs).Error; err != nil {
		return nil, 0, err
	}

	return jobs, total, nil
}

func (r *GormScanRepository) FailInterruptedJobs(ctx context.Context, message string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ScrapingJob{}).
		Where("status IN ?", []string{models.JobStatusPending, models.JobStatusRunning}).
		Updates(map[string]interface{}{
			"status":        models.JobStatusFailed,
			"error_message": message,
			"completed_at":  time.Now(),
		})
	return res.RowsAffected, res.Error
}

func (r *GormScanRepository) CreateResult(ctx context.Context, result *models.PriceScrapingResult) error {
	return r.db.WithContext(ctx).Create(result).Error
}

func (r *GormScanRepository) FindResultsByJob(ctx context.Context, jobID uuid.UUID) ([]models.PriceScrapingResult, error) {
	var results []models.PriceScrapingResult
	if err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("scraped_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *GormScanRepository) SetLowestPrice(ctx context.Context, resultID uuid.UUID, lowest bool) error {
	return r.db.WithContext(ctx).
		Model(&models.PriceScrapingResult{}).
		Where("id = ?", resultID).
		Update("is_lowest_price", lowest).
		Error
}
