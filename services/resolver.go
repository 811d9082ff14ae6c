package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Techinsane-official/perfumex-sub001/models"
	"github.com/Techinsane-official/perfumex-sub001/repository"
)

// DuplicateConfig controls how incoming rows are matched against the
// existing catalog and what happens on a match.
type DuplicateConfig struct {
	Strategy       models.DuplicateStrategy
	CheckEAN       bool
	CheckNameBrand bool
}

// DefaultDuplicateConfig matches on both natural keys and skips duplicates.
func DefaultDuplicateConfig() DuplicateConfig {
	return DuplicateConfig{
		Strategy:       models.DuplicateSkip,
		CheckEAN:       true,
		CheckNameBrand: true,
	}
}

// ResolveAction is the per-row outcome of duplicate resolution.
type ResolveAction string

const (
	ActionInsert ResolveAction = "insert"
	ActionUpdate ResolveAction = "update"
	ActionSkip   ResolveAction = "skip"
	ActionFlag   ResolveAction = "flag"
	ActionReject ResolveAction = "reject"
)

// Resolution is the decision for one normalized record. Existing is set
// when the record matched a catalog row; InBatch marks a repeat of an
// earlier row in the same file, which has no persisted counterpart yet.
type Resolution struct {
	Action   ResolveAction
	Existing *models.SupplierProduct
	InBatch  bool
}

// DuplicateResolver matches batches of normalized records against the
// catalog with one bulk lookup per natural key, never one query per row.
type DuplicateResolver struct {
	products repository.ProductRepository
}

// NewDuplicateResolver creates a DuplicateResolver on top of the product
// repository.
func NewDuplicateResolver(products repository.ProductRepository) *DuplicateResolver {
	return &DuplicateResolver{products: products}
}

// Precheck resolves every record of a batch before any of them is written.
// Records are resolved in file order, so the first occurrence of a natural
// key inside the batch proceeds and later repeats are treated as
// duplicates. Nil records (rows that failed normalization) keep a zero
// Resolution. The returned slice is index-aligned with records.
func (r *DuplicateResolver) Precheck(ctx context.Context, supplierID uuid.UUID, records []*models.SupplierProduct, cfg DuplicateConfig) ([]Resolution, error) {
	resolutions := make([]Resolution, len(records))

	var (
		byEAN map[string]*models.SupplierProduct
		byKey map[string]*models.SupplierProduct
	)

	if cfg.CheckEAN {
		eans := make([]string, 0, len(records))
		seen := map[string]bool{}
		for _, rec := range records {
			if rec == nil || rec.EAN == "" || seen[rec.EAN] {
				continue
			}
			seen[rec.EAN] = true
			eans = append(eans, rec.EAN)
		}
		existing, err := r.products.FindByEANs(ctx, supplierID, eans)
		if err != nil {
			return nil, fmt.Errorf("duplicate precheck by EAN: %w", err)
		}
		byEAN = make(map[string]*models.SupplierProduct, len(existing))
		for i := range existing {
			byEAN[existing[i].EAN] = &existing[i]
		}
	}

	if cfg.CheckNameBrand {
		names := make([]string, 0, len(records))
		seen := map[string]bool{}
		for _, rec := range records {
			if rec == nil {
				continue
			}
			name := lowerName(rec.ProductName)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
		existing, err := r.products.FindByNames(ctx, supplierID, names)
		if err != nil {
			return nil, fmt.Errorf("duplicate precheck by name: %w", err)
		}
		byKey = make(map[string]*models.SupplierProduct, len(existing))
		for i := range existing {
			byKey[existing[i].NameBrandKey()] = &existing[i]
		}
	}

	batchEANs := map[string]bool{}
	batchKeys := map[string]bool{}

	for i, rec := range records {
		if rec == nil {
			continue
		}

		var existing *models.SupplierProduct
		if cfg.CheckEAN && rec.EAN != "" {
			existing = byEAN[rec.EAN]
		}
		if existing == nil && cfg.CheckNameBrand {
			existing = byKey[rec.NameBrandKey()]
		}

		inBatch := false
		if existing == nil {
			if cfg.CheckEAN && rec.EAN != "" && batchEANs[rec.EAN] {
				inBatch = true
			}
			if !inBatch && cfg.CheckNameBrand && batchKeys[rec.NameBrandKey()] {
				inBatch = true
			}
		}

		switch {
		case existing != nil:
			resolutions[i] = Resolution{Action: resolveStrategy(cfg.Strategy), Existing: existing}
		case inBatch:
			// a repeat inside the file has nothing persisted to update,
			// so overwrite degrades to skip here
			action := resolveStrategy(cfg.Strategy)
			if action == ActionUpdate {
				action = ActionSkip
			}
			resolutions[i] = Resolution{Action: action, InBatch: true}
		default:
			resolutions[i] = Resolution{Action: ActionInsert}
			if cfg.CheckEAN && rec.EAN != "" {
				batchEANs[rec.EAN] = true
			}
			if cfg.CheckNameBrand {
				batchKeys[rec.NameBrandKey()] = true
			}
		}
	}

	return resolutions, nil
}

func lowerName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func resolveStrategy(s models.DuplicateStrategy) ResolveAction {
	switch s {
	case models.DuplicateOverwrite:
		return ActionUpdate
	case models.DuplicateFlag:
		return ActionFlag
	case models.DuplicateError:
		return ActionReject
	default:
		return ActionSkip
	}
}
