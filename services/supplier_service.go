package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Techinsane-official/perfumex-sub001/models"
	"github.com/Techinsane-official/perfumex-sub001/repository"
)

// SupplierService manages supplier records and exposes their catalogs.
type SupplierService interface {
	CreateSupplier(ctx context.Context, req *models.CreateSupplierRequest) (*models.Supplier, *ServiceError)
	GetSupplier(ctx context.Context, id uuid.UUID) (*models.Supplier, *ServiceError)
	ListSuppliers(ctx context.Context, page, limit int) ([]models.Supplier, int64, *ServiceError)
	ListProducts(ctx context.Context, supplierID uuid.UUID, page, limit int) ([]models.SupplierProduct, int64, *ServiceError)
}

type supplierServiceImpl struct {
	suppliers repository.SupplierRepository
	products  repository.ProductRepository
	logger    *zap.Logger
}

// NewSupplierService creates a new SupplierService.
func NewSupplierService(suppliers repository.SupplierRepository, products repository.ProductRepository, logger *zap.Logger) SupplierService {
	return &supplierServiceImpl{
		suppliers: suppliers,
		products:  products,
		logger:    logger,
	}
}

func (s *supplierServiceImpl) CreateSupplier(ctx context.Context, req *models.CreateSupplierRequest) (*models.Supplier, *ServiceError) {
	supplier := &models.Supplier{
		Name:    strings.TrimSpace(req.Name),
		Country: strings.ToUpper(strings.TrimSpace(req.Country)),
		Active:  true,
	}
	if supplier.Name == "" {
		return nil, &ServiceError{StatusCode: 400, Message: "supplier name is required"}
	}

	if err := s.suppliers.Create(ctx, supplier); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, &ServiceError{StatusCode: 409, Message: "a supplier with this name already exists"}
		}
		s.logger.Error("Failed to create supplier", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "failed to create supplier"}
	}

	s.logger.Info("Supplier created",
		zap.String("supplier_id", supplier.ID.String()),
		zap.String("name", supplier.Name),
	)
	return supplier, nil
}

func (s *supplierServiceImpl) GetSupplier(ctx context.Context, id uuid.UUID) (*models.Supplier, *ServiceError) {
	supplier, err := s.suppliers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "supplier not found"}
		}
		s.logger.Error("Failed to load supplier", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "failed to load supplier"}
	}
	return supplier, nil
}

func (s *supplierServiceImpl) ListSuppliers(ctx context.Context, page, limit int) ([]models.Supplier, int64, *ServiceError) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	suppliers, total, err := s.suppliers.FindAll(ctx, page, limit)
	if err != nil {
		s.logger.Error("Failed to list suppliers", zap.Error(err))
		return nil, 0, &ServiceError{StatusCode: 500, Message: "failed to list suppliers"}
	}
	return suppliers, total, nil
}

func (s *supplierServiceImpl) ListProducts(ctx context.Context, supplierID uuid.UUID, page, limit int) ([]models.SupplierProduct, int64, *ServiceError) {
	if _, svcErr := s.GetSupplier(ctx, supplierID); svcErr != nil {
		return nil, 0, svcErr
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	products, total, err := s.products.FindBySupplier(ctx, supplierID, page, limit)
	if err != nil {
		s.logger.Error("Failed to list supplier products", zap.Error(err))
		return nil, 0, &ServiceError{StatusCode: 500, Message: "failed to list supplier products"}
	}
	return products, total, nil
}
