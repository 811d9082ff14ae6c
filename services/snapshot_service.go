package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Techinsane-official/perfumex-sub001/models"
	"github.com/Techinsane-official/perfumex-sub001/repository"
)

// SnapshotService captures pre-import state and undoes import sessions.
// Snapshots are written once before the first batch of a session and never
// touched by the import engine itself.
type SnapshotService interface {
	Snapshot(ctx context.Context, sessionID, supplierID uuid.UUID) error
	Rollback(ctx context.Context, sessionID uuid.UUID, req *models.RollbackRequest) (*models.RollbackResult, *ServiceError)
	Restore(ctx context.Context, backupID uuid.UUID) (*models.RestoreResult, *ServiceError)
}

type snapshotServiceImpl struct {
	products repository.ProductRepository
	imports  repository.ImportRepository
	logger   *zap.Logger
}

// NewSnapshotService creates a new SnapshotService.
func NewSnapshotService(
	products repository.ProductRepository,
	imports repository.ImportRepository,
	logger *zap.Logger,
) SnapshotService {
	return &snapshotServiceImpl{
		products: products,
		imports:  imports,
		logger:   logger,
	}
}

// Snapshot serializes the supplier's current catalog into one snapshot row.
// It must complete before the session's first write, which the import
// engine guarantees by calling it synchronously before batch one.
func (s *snapshotServiceImpl) Snapshot(ctx context.Context, sessionID, supplierID uuid.UUID) error {
	products, err := s.products.FindAllBySupplier(ctx, supplierID)
	if err != nil {
		return fmt.Errorf("snapshot: load current products: %w", err)
	}

	data, err := json.Marshal(products)
	if err != nil {
		return fmt.Errorf("snapshot: serialize products: %w", err)
	}

	snapshot := &models.ImportSnapshot{
		ImportSessionID: sessionID,
		EntityType:      models.SnapshotEntityProducts,
		SnapshotData:    string(data),
		EntityCount:     len(products),
	}
	if err := s.imports.CreateSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("snapshot: persist: %w", err)
	}

	s.logger.Info("Captured pre-import snapshot",
		zap.String("session_id", sessionID.String()),
		zap.Int("entities", len(products)),
	)
	return nil
}

// Rollback removes a session's entities according to the strategy. Each
// deletion is independent: a failure is itemized and the rest continue,
// and re-running a finished rollback succeeds with zero removals.
func (s *snapshotServiceImpl) Rollback(ctx context.Context, sessionID uuid.UUID, req *models.RollbackRequest) (*models.RollbackResult, *ServiceError) {
	session, err := s.imports.FindSessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "import session not found"}
		}
		s.logger.Error("Failed to load session for rollback", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "failed to load import session"}
	}

	if session.Status == models.ImportStatusRunning {
		return nil, &ServiceError{StatusCode: 409, Message: "cannot roll back a running import"}
	}

	strategy := req.RollbackStrategy
	if strategy == "" {
		strategy = models.RollbackAll
	}

	result := &models.RollbackResult{}

	var products []models.SupplierProduct
	switch strategy {
	case models.RollbackAll:
		products, err = s.products.FindBySession(ctx, sessionID)
	case models.RollbackFailedOnly:
		products, err = s.products.FindIncompleteBySession(ctx, sessionID)
	case models.RollbackSelective:
		// no selection mechanism yet, selective falls back to all
		products, err = s.products.FindBySession(ctx, sessionID)
		result.Warnings = append(result.Warnings, "selective rollback is not implemented yet, all session products were rolled back")
	default:
		return nil, &ServiceError{StatusCode: 400, Message: fmt.Sprintf("unknown rollback strategy %q", strategy)}
	}
	if err != nil {
		s.logger.Error("Failed to load session products for rollback", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "failed to load session products"}
	}

	if len(products) == 0 {
		result.Success = true
		result.Message = "no products to roll back"
		return result, nil
	}

	if req.BackupBeforeRollback {
		backupID, backupErr := s.backup(ctx, sessionID, products)
		if backupErr != nil {
			s.logger.Error("Rollback backup failed, aborting before any deletion", zap.Error(backupErr))
			return nil, &ServiceError{StatusCode: 500, Message: "failed to create backup, nothing was rolled back"}
		}
		result.BackupID = backupID.String()
	}

	for i := range products {
		if err := s.products.Delete(ctx, products[i].ID); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("product %s (%s %s): %v", products[i].ID, products[i].Brand, products[i].ProductName, err))
			continue
		}
		result.RolledBackProducts++
	}

	session.Status = models.ImportStatusRolledBack
	if err := s.imports.UpdateSession(ctx, session); err != nil {
		s.logger.Warn("Failed to mark session rolled back", zap.Error(err))
	}

	result.Success = len(result.Errors) == 0
	if result.Success {
		result.Message = fmt.Sprintf("rolled back %d products", result.RolledBackProducts)
	} else {
		result.Message = fmt.Sprintf("rolled back %d of %d products, %d failed",
			result.RolledBackProducts, len(products), len(result.Errors))
	}

	s.logger.Info("Rollback finished",
		zap.String("session_id", sessionID.String()),
		zap.String("strategy", string(strategy)),
		zap.Int("rolled_back", result.RolledBackProducts),
		zap.Int("failed", len(result.Errors)),
	)
	return result, nil
}

func (s *snapshotServiceImpl) backup(ctx context.Context, sessionID uuid.UUID, products []models.SupplierProduct) (uuid.UUID, error) {
	data, err := json.Marshal(products)
	if err != nil {
		return uuid.Nil, fmt.Errorf("serialize backup: %w", err)
	}
	backup := &models.ImportSnapshot{
		ImportSessionID: sessionID,
		EntityType:      models.SnapshotEntityProductsBackup,
		SnapshotData:    string(data),
		EntityCount:     len(products),
	}
	if err := s.imports.CreateSnapshot(ctx, backup); err != nil {
		return uuid.Nil, fmt.Errorf("persist backup: %w", err)
	}
	return backup.ID, nil
}

// Restore re-inserts the entities of a snapshot or rollback backup with
// fresh identities.
func (s *snapshotServiceImpl) Restore(ctx context.Context, backupID uuid.UUID) (*models.RestoreResult, *ServiceError) {
	snapshot, err := s.imports.FindSnapshotByID(ctx, backupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "backup not found"}
		}
		s.logger.Error("Failed to load backup", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "failed to load backup"}
	}

	var products []models.SupplierProduct
	if err := json.Unmarshal([]byte(snapshot.SnapshotData), &products); err != nil {
		return nil, &ServiceError{StatusCode: 500, Message: "backup data is corrupt"}
	}

	result := &models.RestoreResult{}
	for i := range products {
		p := products[i]
		p.ID = uuid.Nil
		p.CreatedAt = time.Time{}
		p.UpdatedAt = time.Time{}
		p.DeletedAt = gorm.DeletedAt{}
		if err := s.products.Create(ctx, &p); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("product %s %s: %v", p.Brand, p.ProductName, err))
			continue
		}
		result.RestoredProducts++
	}

	result.Success = len(result.Errors) == 0
	result.Message = fmt.Sprintf("restored %d of %d products", result.RestoredProducts, len(products))

	s.logger.Info("Restore finished",
		zap.String("backup_id", backupID.String()),
		zap.Int("restored", result.RestoredProducts),
		zap.Int("failed", len(result.Errors)),
	)
	return result, nil
}
