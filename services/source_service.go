package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Techinsane-official/perfumex-sub001/models"
	"github.com/Techinsane-official/perfumex-sub001/repository"
)

// SourceService exposes the scraping source configuration.
type SourceService interface {
	ListSources(ctx context.Context) ([]models.ScrapingSource, *ServiceError)
	UpdateSource(ctx context.Context, id uuid.UUID, req *models.UpdateSourceRequest) (*models.ScrapingSource, *ServiceError)
}

type sourceServiceImpl struct {
	sources repository.SourceRepository
	logger  *zap.Logger
}

// NewSourceService creates a new SourceService.
func NewSourceService(sources repository.SourceRepository, logger *zap.Logger) SourceService {
	return &sourceServiceImpl{sources: sources, logger: logger}
}

func (s *sourceServiceImpl) ListSources(ctx context.Context) ([]models.ScrapingSource, *ServiceError) {
	sources, err := s.sources.FindAll(ctx)
	if err != nil {
		s.logger.Error("Failed to list scraping sources", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "failed to list scraping sources"}
	}
	return sources, nil
}

// UpdateSource applies the request's non-nil fields to the source row.
func (s *sourceServiceImpl) UpdateSource(ctx context.Context, id uuid.UUID, req *models.UpdateSourceRequest) (*models.ScrapingSource, *ServiceError) {
	source, err := s.sources.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "scraping source not found"}
		}
		s.logger.Error("Failed to load scraping source", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "failed to load scraping source"}
	}

	if req.IsActive != nil {
		source.IsActive = *req.IsActive
	}
	if req.Priority != nil {
		source.Priority = *req.Priority
	}
	if req.RateLimitMs != nil {
		source.RateLimitMs = *req.RateLimitMs
	}

	if err := s.sources.Update(ctx, source); err != nil {
		s.logger.Error("Failed to update scraping source", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "failed to update scraping source"}
	}

	s.logger.Info("Scraping source updated",
		zap.String("source_id", id.String()),
		zap.String("slug", source.Slug),
		zap.Bool("is_active", source.IsActive),
	)
	return source, nil
}
