package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DuplicateStrategy decides what happens to an incoming row that matches an
// existing catalog record.
type DuplicateStrategy string

const (
	DuplicateSkip      DuplicateStrategy = "skip"
	DuplicateOverwrite DuplicateStrategy = "overwrite"
	DuplicateFlag      DuplicateStrategy = "flag"
	DuplicateError     DuplicateStrategy = "error"
)

// Valid reports whether s is one of the known strategies.
func (s DuplicateStrategy) Valid() bool {
	switch s {
	case DuplicateSkip, DuplicateOverwrite, DuplicateFlag, DuplicateError:
		return true
	}
	return false
}

// ImportSession status constants. A session is terminal once it leaves
// "running".
const (
	ImportStatusRunning    = "running"
	ImportStatusCompleted  = "completed"
	ImportStatusFailed     = "failed"
	ImportStatusCancelled  = "cancelled"
	ImportStatusRolledBack = "rolled_back"
)

// ImportSession is one run of the import pipeline over one uploaded file,
// persisted so progress and rollback remain available after the request
// that started it.
type ImportSession struct {
	ID              uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SupplierID      uuid.UUID         `gorm:"type:uuid;not null;index" json:"supplier_id"`
	Filename        string            `gorm:"type:varchar(512)" json:"filename"`
	RowCount        int               `gorm:"not null;default:0" json:"row_count"`
	Strategy        DuplicateStrategy `gorm:"type:varchar(16);not null" json:"strategy"`
	ImportOnlyValid bool              `gorm:"not null;default:true" json:"import_only_valid"`
	BatchSize       int               `gorm:"not null;default:50" json:"batch_size"`
	Status          string            `gorm:"type:varchar(16);not null;default:'running';index" json:"status"`
	SuccessCount    int               `gorm:"not null;default:0" json:"success_count"`
	FailCount       int               `gorm:"not null;default:0" json:"fail_count"`
	SkipCount       int               `gorm:"not null;default:0" json:"skip_count"`
	DuplicateCount  int               `gorm:"not null;default:0" json:"duplicate_count"`
	// Errors/warnings/duplicates stored as JSON arrays
	ErrorsJSON     string         `gorm:"type:jsonb" json:"-"`
	WarningsJSON   string         `gorm:"type:jsonb" json:"-"`
	DuplicatesJSON string         `gorm:"type:jsonb" json:"-"`
	StartedAt      time.Time      `gorm:"not null" json:"started_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// Snapshot entity types.
const (
	SnapshotEntityProducts       = "supplier_products"
	SnapshotEntityProductsBackup = "supplier_products_backup"
)

// ImportSnapshot captures the serialized pre-import state of a supplier's
// catalog, written once before the first batch and read-only afterwards.
// Backup snapshots taken during rollback reuse the same table with the
// backup entity type.
type ImportSnapshot struct {
	ID              uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ImportSessionID uuid.UUID `gorm:"type:uuid;not null;index" json:"import_session_id"`
	EntityType      string    `gorm:"type:varchar(64);not null" json:"entity_type"`
	SnapshotData    string    `gorm:"type:jsonb" json:"-"` // serialized []SupplierProduct
	EntityCount     int       `gorm:"not null;default:0" json:"entity_count"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// ImportRequest is the payload that triggers an import run.
type ImportRequest struct {
	SupplierID      string              `json:"supplier_id" binding:"required,uuid"`
	Filename        string              `json:"filename"`
	Rows            []map[string]string `json:"rows" binding:"required"`
	ColumnMapping   ColumnMapping       `json:"column_mapping" binding:"required"`
	BatchSize       int                 `json:"batch_size" binding:"omitempty,gt=0,lte=500"`
	Strategy        DuplicateStrategy   `json:"duplicate_strategy" binding:"omitempty,oneof=skip overwrite flag error"`
	ImportOnlyValid *bool               `json:"import_only_valid,omitempty"`
	CheckEAN        *bool               `json:"check_ean,omitempty"`
	CheckNameBrand  *bool               `json:"check_name_brand,omitempty"`
}

// ValidateImportRequest is the payload for a dry-run validation.
type ValidateImportRequest struct {
	Rows          []map[string]string `json:"rows" binding:"required"`
	ColumnMapping ColumnMapping       `json:"column_mapping" binding:"required"`
}

// ImportProgress is the aggregate result reported after every batch and
// returned once an import finishes. Counters are cumulative and only ever
// grow while a session runs.
type ImportProgress struct {
	SessionID      string           `json:"session_id"`
	TotalRows      int              `json:"total_rows"`
	ProcessedRows  int              `json:"processed_rows"`
	SuccessfulRows int              `json:"successful_rows"`
	FailedRows     int              `json:"failed_rows"`
	SkippedRows    int              `json:"skipped_rows"`
	Errors         []RowError       `json:"errors"`
	Warnings       []RowWarning     `json:"warnings"`
	Duplicates     []DuplicateEntry `json:"duplicates"`
	IsComplete     bool             `json:"is_complete"`
}

// ImportValidation is the result of a dry-run over an uploaded file.
type ImportValidation struct {
	Valid       bool         `json:"valid"`
	TotalRows   int          `json:"total_rows"`
	ValidRows   int          `json:"valid_rows"`
	InvalidRows int          `json:"invalid_rows"`
	Errors      []RowError   `json:"errors"`
	Warnings    []RowWarning `json:"warnings"`
}

// RollbackStrategy selects which of a session's entities a rollback removes.
type RollbackStrategy string

const (
	RollbackAll        RollbackStrategy = "all"
	RollbackFailedOnly RollbackStrategy = "failed_only"
	RollbackSelective  RollbackStrategy = "selective"
)

// RollbackRequest is the payload that triggers a rollback of one session.
type RollbackRequest struct {
	RollbackStrategy     RollbackStrategy `json:"rollback_strategy" binding:"omitempty,oneof=all failed_only selective"`
	BackupBeforeRollback bool             `json:"backup_before_rollback"`
}

// RollbackResult reports what a rollback removed. Partial failures are
// itemized in Errors rather than silently dropped.
type RollbackResult struct {
	Success            bool     `json:"success"`
	Message            string   `json:"message"`
	RolledBackProducts int      `json:"rolled_back_products"`
	BackupID           string   `json:"backup_id,omitempty"`
	Errors             []string `json:"errors,omitempty"`
	Warnings           []string `json:"warnings,omitempty"`
}

// RestoreResult reports the outcome of re-inserting a rollback backup.
type RestoreResult struct {
	Success          bool     `json:"success"`
	Message          string   `json:"message"`
	RestoredProducts int      `json:"restored_products"`
	Errors           []string `json:"errors,omitempty"`
}

// Async import job states stored in Redis alongside the queue.
const (
	ImportJobPending    = "pending"
	ImportJobProcessing = "processing"
	ImportJobDone       = "done"
	ImportJobFailed     = "failed"
)

// ImportJob is the Redis-side metadata of one queued background import. The
// ImportSession row remains the authoritative progress record; this exists
// so clients can poll a job that has not reached the worker yet.
type ImportJob struct {
	ID              string            `json:"id"`
	Status          string            `json:"status"`
	Filename        string            `json:"filename"`
	FilePath        string            `json:"file_path"`
	SupplierID      string            `json:"supplier_id"`
	ColumnMapping   ColumnMapping     `json:"column_mapping"`
	BatchSize       int               `json:"batch_size"`
	Strategy        DuplicateStrategy `json:"duplicate_strategy"`
	ImportOnlyValid bool              `json:"import_only_valid"`
	CheckEAN        *bool             `json:"check_ean,omitempty"`
	CheckNameBrand  *bool             `json:"check_name_brand,omitempty"`
	SessionID       string            `json:"session_id,omitempty"`
	Result          *ImportProgress   `json:"result,omitempty"`
	Error           string            `json:"error,omitempty"`
	SubmittedAt     time.Time         `json:"submitted_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// ImportCompletedEvent is published to Kafka when an import session reaches
// a terminal state.
type ImportCompletedEvent struct {
	EventType      string    `json:"event_type"`
	SessionID      string    `json:"session_id"`
	SupplierID     string    `json:"supplier_id"`
	Status         string    `json:"status"`
	SuccessCount   int       `json:"success_count"`
	FailCount      int       `json:"fail_count"`
	SkipCount      int       `json:"skip_count"`
	DuplicateCount int       `json:"duplicate_count"`
	Timestamp      time.Time `json:"timestamp"`
}
