package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Supplier is a wholesale vendor whose spreadsheets feed the catalog.
type Supplier struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name      string         `gorm:"type:varchar(256);not null;uniqueIndex" json:"name"`
	Country   string         `gorm:"type:varchar(2)" json:"country"` // ISO 3166-1 alpha-2, e.g. "NL"
	Active    bool           `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// CreateSupplierRequest is the payload for registering a supplier.
type CreateSupplierRequest struct {
	Name    string `json:"name" binding:"required,min=2,max=256"`
	Country string `json:"country" binding:"omitempty,len=2"`
}

// SupplierProduct is the canonical catalog record every supplier row is
// normalized into. Rows are tagged with the import session that created
// them so a session can be rolled back later.
type SupplierProduct struct {
	ID                uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SupplierID        uuid.UUID      `gorm:"type:uuid;not null;index" json:"supplier_id"`
	SupplierName      string         `gorm:"type:varchar(256)" json:"supplier_name"`
	Brand             string         `gorm:"type:varchar(256);not null;index" json:"brand"`
	ProductName       string         `gorm:"type:varchar(512);not null" json:"product_name"`
	VariantSize       string         `gorm:"type:varchar(64)" json:"variant_size,omitempty"` // normalized, e.g. "100ml"
	EAN               string         `gorm:"type:varchar(14);index" json:"ean,omitempty"`    // 8/12/13/14 digits, empty when unknown
	WholesalePrice    float64        `gorm:"not null" json:"wholesale_price"`
	Currency          string         `gorm:"type:varchar(3);not null;default:'EUR'" json:"currency"`
	PackSize          int            `gorm:"not null;default:1" json:"pack_size"`
	LastPurchasePrice *float64       `json:"last_purchase_price,omitempty"`
	Availability      bool           `gorm:"not null;default:true" json:"availability"`
	Notes             string         `gorm:"type:text" json:"notes,omitempty"`
	ImportSessionID   uuid.UUID      `gorm:"type:uuid;index" json:"import_session_id"`
	CreatedAt         time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

// NameBrandKey returns the normalized name+brand natural key used as the
// duplicate-detection fallback when a row has no EAN.
func (p *SupplierProduct) NameBrandKey() string {
	return NameBrandKey(p.Brand, p.ProductName)
}

// NameBrandKey builds the case-insensitive natural key for a brand and
// product name pair.
func NameBrandKey(brand, productName string) string {
	return strings.ToLower(strings.TrimSpace(brand)) + "|" + strings.ToLower(strings.TrimSpace(productName))
}

// ColumnMapping maps canonical field names onto the column headers of one
// supplier's spreadsheet. Brand, product name and wholesale price must be
// mapped; everything else is optional.
type ColumnMapping struct {
	Brand             string `json:"brand" binding:"required"`
	ProductName       string `json:"product_name" binding:"required"`
	WholesalePrice    string `json:"wholesale_price" binding:"required"`
	VariantSize       string `json:"variant_size,omitempty"`
	EAN               string `json:"ean,omitempty"`
	Currency          string `json:"currency,omitempty"`
	PackSize          string `json:"pack_size,omitempty"`
	SupplierName      string `json:"supplier_name,omitempty"`
	LastPurchasePrice string `json:"last_purchase_price,omitempty"`
	Availability      string `json:"availability,omitempty"`
	Notes             string `json:"notes,omitempty"`
}

// Validate reports the first canonical field whose source column is missing.
func (m ColumnMapping) Validate() error {
	required := []struct{ field, column string }{
		{"brand", m.Brand},
		{"product_name", m.ProductName},
		{"wholesale_price", m.WholesalePrice},
	}
	for _, r := range required {
		if r.column == "" {
			return fmt.Errorf("column mapping: required field %q has no source column", r.field)
		}
	}
	return nil
}

// RowError is a hard, per-row validation failure. It blocks the row it
// belongs to and nothing else.
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

// RowWarning is advisory only and never blocks a row.
type RowWarning struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

// DuplicateEntry records one incoming row that matched an existing catalog
// record, kept separate from errors and warnings because the configured
// strategy decides what it means.
type DuplicateEntry struct {
	Row         int    `json:"row"`
	EAN         string `json:"ean,omitempty"`
	Brand       string `json:"brand"`
	ProductName string `json:"product_name"`
	ExistingID  string `json:"existing_id"`
	Action      string `json:"action"` // skipped, overwritten, flagged, rejected
}
