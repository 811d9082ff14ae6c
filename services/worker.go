package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/Techinsane-official/perfumex-sub001/models"
)

// Redis keys shared by the enqueueing controller and the worker.
const (
	ImportQueueKey  = "catalog_import:queue"
	ImportJobTTL    = 24 * time.Hour
	importJobPrefix = "catalog_import:job:%s"
)

// ImportJobKey returns the Redis key holding one job's metadata.
func ImportJobKey(jobID string) string {
	return fmt.Sprintf(importJobPrefix, jobID)
}

// StartImportWorker starts a background worker that consumes queued import
// jobs from Redis and runs them through the import service. Files are
// removed once their job reaches a terminal state.
func StartImportWorker(ctx context.Context, rdb *redis.Client, importSvc ImportService, storageDir string) {
	if rdb == nil || importSvc == nil {
		zap.L().Warn("import worker not started: missing dependencies")
		return
	}

	if storageDir == "" {
		storageDir = "./data/imports"
	}
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		zap.L().Error("failed to create import storage dir", zap.Error(err))
		return
	}

	go func() {
		zap.L().Info("import worker started", zap.String("queue", ImportQueueKey), zap.String("dir", storageDir))
		for {
			select {
			case <-ctx.Done():
				zap.L().Info("import worker stopping")
				return
			default:
			}

			// BLPop with no timeout blocks until an item is available
			res, err := rdb.BLPop(ctx, 0*time.Second, ImportQueueKey).Result()
			if err != nil {
				if err == context.Canceled || err == context.DeadlineExceeded {
					return
				}
				zap.L().Error("redis BLPop failed", zap.Error(err))
				time.Sleep(500 * time.Millisecond)
				continue
			}
			if len(res) < 2 {
				continue
			}
			jobID := res[1]

			job, err := loadImportJob(ctx, rdb, jobID)
			if err != nil {
				zap.L().Error("failed to read job metadata", zap.String("job", jobID), zap.Error(err))
				continue
			}

			job.Status = models.ImportJobProcessing
			storeImportJob(ctx, rdb, job)

			runImportJob(ctx, rdb, importSvc, job)
		}
	}()
}

func runImportJob(ctx context.Context, rdb *redis.Client, importSvc ImportService, job *models.ImportJob) {
	fail := func(msg string, err error) {
		zap.L().Error(msg, zap.String("job", job.ID), zap.Error(err))
		job.Status = models.ImportJobFailed
		job.Error = err.Error()
		storeImportJob(ctx, rdb, job)
		_ = os.Remove(job.FilePath)
	}

	f, err := os.Open(filepath.Clean(job.FilePath))
	if err != nil {
		fail("failed to open job file", err)
		return
	}

	_, rows, err := ParseSpreadsheet(job.Filename, f)
	f.Close()
	if err != nil {
		fail("failed to parse job file", err)
		return
	}

	req := &models.ImportRequest{
		SupplierID:      job.SupplierID,
		Filename:        job.Filename,
		Rows:            rows,
		ColumnMapping:   job.ColumnMapping,
		BatchSize:       job.BatchSize,
		Strategy:        job.Strategy,
		ImportOnlyValid: &job.ImportOnlyValid,
		CheckEAN:        job.CheckEAN,
		CheckNameBrand:  job.CheckNameBrand,
	}

	progress, svcErr := importSvc.Import(ctx, req, func(p *models.ImportProgress) {
		job.SessionID = p.SessionID
		job.Result = p
		storeImportJob(ctx, rdb, job)
	})
	if svcErr != nil {
		fail("import processing failed", svcErr)
		return
	}

	job.Status = models.ImportJobDone
	job.SessionID = progress.SessionID
	job.Result = progress
	storeImportJob(ctx, rdb, job)
	_ = os.Remove(job.FilePath)

	zap.L().Info("import job finished",
		zap.String("job", job.ID),
		zap.String("session_id", progress.SessionID),
		zap.Int("successful", progress.SuccessfulRows),
	)
}

func loadImportJob(ctx context.Context, rdb *redis.Client, jobID string) (*models.ImportJob, error) {
	val, err := rdb.Get(ctx, ImportJobKey(jobID)).Result()
	if err != nil {
		return nil, err
	}
	var job models.ImportJob
	if err := json.Unmarshal([]byte(val), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func storeImportJob(ctx context.Context, rdb *redis.Client, job *models.ImportJob) {
	job.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(job)
	if err != nil {
		zap.L().Error("failed to marshal job metadata", zap.String("job", job.ID), zap.Error(err))
		return
	}
	if err := rdb.Set(ctx, ImportJobKey(job.ID), data, ImportJobTTL).Err(); err != nil {
		zap.L().Error("failed to store job metadata", zap.String("job", job.ID), zap.Error(err))
	}
}
