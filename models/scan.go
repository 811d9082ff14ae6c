package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ScrapingSource is the static configuration of one external storefront.
// The orchestrator reads it to decide what to scan; the scraper registry
// reads it to construct the matching implementation.
type ScrapingSource struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string         `gorm:"type:varchar(128);not null" json:"name"`
	Slug        string         `gorm:"type:varchar(64);not null;uniqueIndex" json:"slug"` // registry key, e.g. "douglas"
	BaseURL     string         `gorm:"type:varchar(512);not null" json:"base_url"`
	Country     string         `gorm:"type:varchar(2)" json:"country"`
	IsActive    bool           `gorm:"not null;default:true" json:"is_active"`
	Priority    int            `gorm:"not null;default:0" json:"priority"` // lower runs first
	RateLimitMs int            `gorm:"not null;default:1000" json:"rate_limit_ms"`
	// Optional per-source selector overrides as JSON
	SelectorConfig string         `gorm:"type:jsonb" json:"selector_config,omitempty"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// UpdateSourceRequest is the payload for tuning a scraping source.
type UpdateSourceRequest struct {
	IsActive    *bool `json:"is_active,omitempty"`
	Priority    *int  `json:"priority,omitempty"`
	RateLimitMs *int  `json:"rate_limit_ms,omitempty" binding:"omitempty,gte=0"`
}

// ScrapingJob status constants. pending → running → completed|failed|stopped.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusStopped   = "stopped"
)

// ScrapingJob is one price-scan run over a supplier's catalog. The row is
// the read model polling clients see; the orchestrator updates it
// continuously while the run is in flight.
type ScrapingJob struct {
	ID                 uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SupplierID         uuid.UUID `gorm:"type:uuid;not null;index" json:"supplier_id"`
	SourceIDsJSON      string    `gorm:"type:jsonb" json:"-"` // serialized []string
	Status             string    `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	TotalProducts      int       `gorm:"not null;default:0" json:"total_products"`
	ProcessedProducts  int       `gorm:"not null;default:0" json:"processed_products"`
	SuccessfulProducts int       `gorm:"not null;default:0" json:"successful_products"`
	FailedProducts     int       `gorm:"not null;default:0" json:"failed_products"`
	CurrentBatch       int       `gorm:"not null;default:0" json:"current_batch"`
	TotalBatches       int       `gorm:"not null;default:0" json:"total_batches"`
	CurrentProduct     string    `gorm:"type:varchar(512)" json:"current_product,omitempty"`
	CurrentSource      string    `gorm:"type:varchar(128)" json:"current_source,omitempty"`
	CurrentSearchTerm  string    `gorm:"type:varchar(512)" json:"current_search_term,omitempty"`
	// Terms tried for the current product, most recent last
	SearchAttemptsJSON string         `gorm:"type:jsonb" json:"-"`
	BatchSize          int            `gorm:"not null;default:10" json:"batch_size"`
	DelayMs            int            `gorm:"not null;default:2000" json:"delay_ms"`
	MaxRetries         int            `gorm:"not null;default:2" json:"max_retries"`
	TimeoutMs          int            `gorm:"not null;default:30000" json:"timeout_ms"`
	StopRequested      bool           `gorm:"not null;default:false" json:"stop_requested"`
	ErrorMessage       string         `gorm:"type:text" json:"error_message,omitempty"`
	StartedAt          *time.Time     `json:"started_at,omitempty"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty"`
	CreatedAt          time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}

// Terminal reports whether the job has left the running states for good.
func (j *ScrapingJob) Terminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusStopped:
		return true
	}
	return false
}

// PriceScrapingResult is one successfully extracted competitor listing for
// one catalog product on one source.
type PriceScrapingResult struct {
	ID              uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	JobID           uuid.UUID `gorm:"type:uuid;not null;index" json:"job_id"`
	ProductID       uuid.UUID `gorm:"type:uuid;not null;index" json:"product_id"`
	SourceID        uuid.UUID `gorm:"type:uuid;not null" json:"source_id"`
	Title           string    `gorm:"type:varchar(512);not null" json:"title"`
	Price           float64   `gorm:"not null" json:"price"`
	Currency        string    `gorm:"type:varchar(3);not null;default:'EUR'" json:"currency"`
	URL             string    `gorm:"type:varchar(1024)" json:"url"`
	Merchant        string    `gorm:"type:varchar(256)" json:"merchant"`
	Availability    bool      `gorm:"not null;default:true" json:"availability"`
	ShippingCost    *float64  `json:"shipping_cost,omitempty"`
	IsLowestPrice   bool      `gorm:"not null;default:false" json:"is_lowest_price"`
	ConfidenceScore float64   `gorm:"not null;default:0" json:"confidence_score"` // 0..1
	ScrapedAt       time.Time `gorm:"not null;index" json:"scraped_at"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// Listing is one offer extracted from a source's search-results page,
// before it is persisted as a PriceScrapingResult.
type Listing struct {
	Title        string   `json:"title"`
	Price        float64  `json:"price"`
	Currency     string   `json:"currency"`
	URL          string   `json:"url"`
	Merchant     string   `json:"merchant"`
	Availability bool     `json:"availability"`
	ShippingCost *float64 `json:"shipping_cost,omitempty"`
	Confidence   float64  `json:"confidence"` // 0..1, match quality vs the search term
}

// ScanRequest is the payload that starts a price-scan job.
type ScanRequest struct {
	SupplierID            string   `json:"supplier_id" binding:"required,uuid"`
	SourceIDs             []string `json:"source_ids" binding:"omitempty,dive,uuid"`
	BatchSize             int      `json:"batch_size" binding:"omitempty,gt=0,lte=100"`
	DelayBetweenBatchesMs int      `json:"delay_between_batches_ms" binding:"omitempty,gte=0"`
	MaxRetries            int      `json:"max_retries" binding:"omitempty,gte=0,lte=5"`
	TimeoutMs             int      `json:"timeout_ms" binding:"omitempty,gte=1000"`
}

// PriceOpportunity is a catalog product whose lowest competitor price leaves
// margin over the wholesale price.
type PriceOpportunity struct {
	ProductID      string  `json:"product_id"`
	Brand          string  `json:"brand"`
	ProductName    string  `json:"product_name"`
	VariantSize    string  `json:"variant_size,omitempty"`
	WholesalePrice float64 `json:"wholesale_price"`
	LowestPrice    float64 `json:"lowest_price"`
	Currency       string  `json:"currency"`
	MarginPct      float64 `json:"margin_pct"`
	Merchant       string  `json:"merchant"`
	URL            string  `json:"url"`
}

// ScanCompletedEvent is published to Kafka when a scan job reaches a
// terminal state.
type ScanCompletedEvent struct {
	EventType          string    `json:"event_type"`
	JobID              string    `json:"job_id"`
	SupplierID         string    `json:"supplier_id"`
	Status             string    `json:"status"`
	TotalProducts      int       `json:"total_products"`
	SuccessfulProducts int       `json:"successful_products"`
	FailedProducts     int       `json:"failed_products"`
	ResultCount        int       `json:"result_count"`
	Timestamp          time.Time `json:"timestamp"`
}
