package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Techinsane-official/perfumex-sub001/models"
)

// ProductRepository defines data-access operations for catalog products.
type ProductRepository interface {
	Create(ctx context.Context, product *models.SupplierProduct) error
	Update(ctx context.Context, product *models.SupplierProduct) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.SupplierProduct, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.SupplierProduct, error)
	FindByEANs(ctx context.Context, supplierID uuid.UUID, eans []string) ([]models.SupplierProduct, error)
	FindByNames(ctx context.Context, supplierID uuid.UUID, names []string) ([]models.SupplierProduct, error)
	FindBySupplier(ctx context.Context, supplierID uuid.UUID, page, limit int) ([]models.SupplierProduct, int64, error)
	FindAllBySupplier(ctx context.Context, supplierID uuid.UUID) ([]models.SupplierProduct, error)
	FindBySession(ctx context.Context, sessionID uuid.UUID) ([]models.SupplierProduct, error)
	FindIncompleteBySession(ctx context.Context, sessionID uuid.UUID) ([]models.SupplierProduct, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// GormProductRepository implements ProductRepository using GORM.
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository.
func NewGormProductRepository(db *gorm.DB) ProductRepository {
	return &GormProductRepository{db: db}
}

func (r *GormProductRepository) Create(ctx context.Context, product *models.SupplierProduct) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *GormProductRepository) Update(ctx context.Context, product *models.SupplierProduct) error {
	return r.db.WithContext(ctx).Save(product).Error
}

func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.SupplierProduct, error) {
	var p models.SupplierProduct
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormProductRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.SupplierProduct, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []models.SupplierProduct
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// FindByEANs is the bulk duplicate-detection lookup: one query for every
// candidate EAN in a batch.
func (r *GormProductRepository) FindByEANs(ctx context.Context, supplierID uuid.UUID, eans []string) ([]models.SupplierProduct, error) {
	if len(eans) == 0 {
		return nil, nil
	}
	var products []models.SupplierProduct
	if err := r.db.WithContext(ctx).
		Where("supplier_id = ? AND ean IN ?", supplierID, eans).
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// FindByNames fetches candidates for the name+brand fallback key in one
// query; the caller narrows by brand in memory.
func (r *GormProductRepository) FindByNames(ctx context.Context, supplierID uuid.UUID, names []string) ([]models.SupplierProduct, error) {
	if len(names) == 0 {
		return nil, nil
	}
	var products []models.SupplierProduct
	if err := r.db.WithContext(ctx).
		Where("supplier_id = ? AND LOWER(product_name) IN ?", supplierID, names).
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *GormProductRepository) FindBySupplier(ctx context.Context, supplierID uuid.UUID, page, limit int) ([]models.SupplierProduct, int64, error) {
	var products []models.SupplierProduct
	var total int64

	query := r.db.WithContext(ctx).Model(&models.SupplierProduct{}).Where("supplier_id = ?", supplierID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Offset(offset).Limit(limit).
		Order("brand ASC, product_name ASC").
		Find(&products).Error; err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// FindAllBySupplier loads a supplier's full catalog, used by snapshots and
// by the scan orchestrator to build its work list.
func (r *GormProductRepository) FindAllBySupplier(ctx context.Context, supplierID uuid.UUID) ([]models.SupplierProduct, error) {
	var products []models.SupplierProduct
	if err := r.db.WithContext(ctx).
		Where("supplier_id = ?", supplierID).
		Order("created_at ASC").
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *GormProductRepository) FindBySession(ctx context.Context, sessionID uuid.UUID) ([]models.SupplierProduct, error) {
	var products []models.SupplierProduct
	if err := r.db.WithContext(ctx).
		Where("import_session_id = ?", sessionID).
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// FindIncompleteBySession returns session entities matching the heuristic
// "incomplete" predicates (missing name, brand, EAN or a non-positive
// price) used by failed_only rollbacks.
func (r *GormProductRepository) FindIncompleteBySession(ctx context.Context, sessionID uuid.UUID) ([]models.SupplierProduct, error) {
	var products []models.SupplierProduct
	if err := r.db.WithContext(ctx).
		Where("import_session_id = ?", sessionID).
		Where("product_name = '' OR brand = '' OR ean = '' OR wholesale_price <= 0").
		Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *GormProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.SupplierProduct{}, "id = ?", id).Error
}
