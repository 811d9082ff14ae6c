package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Techinsane-official/perfumex-sub001/kafka"
	"github.com/Techinsane-official/perfumex-sub001/metrics"
	"github.com/Techinsane-official/perfumex-sub001/models"
	"github.com/Techinsane-official/perfumex-sub001/repository"
	"github.com/Techinsane-official/perfumex-sub001/scrapers"
)

// Scan engine tunables.
const (
	DefaultScanBatchSize = 10
	DefaultScanDelayMs   = 2000
	DefaultScanRetries   = 2
	DefaultScanTimeoutMs = 30000
)

// ScanService runs competitor price scans over a supplier's catalog. A scan
// is a long-lived background job; clients poll the job row for progress and
// fetch results once it finishes.
type ScanService interface {
	StartScan(ctx context.Context, req *models.ScanRequest) (*models.ScrapingJob, *ServiceError)
	GetJob(ctx context.Context, id uuid.UUID) (*models.ScrapingJob, *ServiceError)
	ListJobs(ctx context.Context, supplierID *uuid.UUID, page, limit int) ([]models.ScrapingJob, int64, *ServiceError)
	StopJob(ctx context.Context, id uuid.UUID) (*models.ScrapingJob, *ServiceError)
	ListResults(ctx context.Context, jobID uuid.UUID) ([]models.PriceScrapingResult, *ServiceError)
	Opportunities(ctx context.Context, jobID uuid.UUID, minMarginPct float64) ([]models.PriceOpportunity, *ServiceError)
	// RecoverInterrupted fails jobs left pending or running by a previous
	// process. Jobs run in-process, so nothing can resume them after a
	// restart.
	RecoverInterrupted(ctx context.Context) error
}

type scanServiceImpl struct {
	products  repository.ProductRepository
	suppliers repository.SupplierRepository
	scans     repository.ScanRepository
	sources   repository.SourceRepository
	registry  *scrapers.Registry
	producer  kafka.Publisher
	metrics   *metrics.Registry
	logger    *zap.Logger

	mu    sync.Mutex
	stops map[uuid.UUID]bool // jobs running in this process; true = stop requested
}

// NewScanService creates a new ScanService. producer may be nil when event
// publishing is disabled.
func NewScanService(
	products repository.ProductRepository,
	suppliers repository.SupplierRepository,
	scans repository.ScanRepository,
	sources repository.SourceRepository,
	registry *scrapers.Registry,
	producer kafka.Publisher,
	m *metrics.Registry,
	logger *zap.Logger,
) ScanService {
	if m == nil {
		m = metrics.NewRegistry()
	}
	return &scanServiceImpl{
		products:  products,
		suppliers: suppliers,
		scans:     scans,
		sources:   sources,
		registry:  registry,
		producer:  producer,
		metrics:   m,
		logger:    logger,
		stops:     map[uuid.UUID]bool{},
	}
}

// boundSource pairs a source row with its constructed scraper so the run
// loop never touches the registry again.
type boundSource struct {
	source  models.ScrapingSource
	scraper scrapers.SourceScraper
}

// StartScan validates the request, creates the job row and launches the
// run in the background. The returned job is in the pending state; progress
// arrives via GetJob polling.
func (s *scanServiceImpl) StartScan(ctx context.Context, req *models.ScanRequest) (*models.ScrapingJob, *ServiceError) {
	supplierID, err := uuid.Parse(req.SupplierID)
	if err != nil {
		return nil, &ServiceError{StatusCode: 400, Message: "invalid supplier id"}
	}
	if _, err := s.suppliers.FindByID(ctx, supplierID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "supplier not found"}
		}
		s.logger.Error("Failed to load supplier", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "failed to load supplier"}
	}

	sources, svcErr := s.resolveSources(ctx, req.SourceIDs)
	if svcErr != nil {
		return nil, svcErr
	}

	products, err := s.products.FindAllBySupplier(ctx, supplierID)
	if err != nil {
		s.logger.Error("Failed to load supplier products", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "failed to load supplier products"}
	}
	if len(products) == 0 {
		return nil, &ServiceError{StatusCode: 400, Message: "supplier has no products to scan"}
	}

	bound := make([]boundSource, 0, len(sources))
	for _, src := range sources {
		scraper, err := s.registry.For(src)
		if err != nil {
			return nil, &ServiceError{StatusCode: 400, Message: err.Error()}
		}
		bound = append(bound, boundSource{source: src, scraper: scraper})
	}

	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultScanBatchSize
	}
	delayMs := req.DelayBetweenBatchesMs
	if delayMs <= 0 {
		delayMs = DefaultScanDelayMs
	}
	maxRetries := req.MaxRetries
	if maxRetries < 0 {
		maxRetries = DefaultScanRetries
	}
	timeoutMs := req.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = DefaultScanTimeoutMs
	}

	sourceIDs := make([]string, 0, len(sources))
	for _, src := range sources {
		sourceIDs = append(sourceIDs, src.ID.String())
	}
	sourceIDsJSON, _ := json.Marshal(sourceIDs)

	job := &models.ScrapingJob{
		SupplierID:    supplierID,
		SourceIDsJSON: string(sourceIDsJSON),
		Status:        models.JobStatusPending,
		TotalProducts: len(products),
		TotalBatches:  (len(products) + batchSize - 1) / batchSize,
		BatchSize:     batchSize,
		DelayMs:       delayMs,
		MaxRetries:    maxRetries,
		TimeoutMs:     timeoutMs,
	}
	if err := s.scans.CreateJob(ctx, job); err != nil {
		s.logger.Error("Failed to create scan job", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "failed to create scan job"}
	}

	s.mu.Lock()
	s.stops[job.ID] = false
	s.mu.Unlock()

	go s.run(job, products, bound)

	s.logger.Info("Scan job started",
		zap.String("job_id", job.ID.String()),
		zap.String("supplier_id", supplierID.String()),
		zap.Int("products", len(products)),
		zap.Int("sources", len(bound)),
	)
	return job, nil
}

// resolveSources turns the request's source selection into active source
// rows, ordered by priority. An empty selection means every active source.
func (s *scanServiceImpl) resolveSources(ctx context.Context, rawIDs []string) ([]models.ScrapingSource, *ServiceError) {
	if len(rawIDs) == 0 {
		sources, err := s.sources.FindActive(ctx)
		if err != nil {
			s.logger.Error("Failed to load scraping sources", zap.Error(err))
			return nil, &ServiceError{StatusCode: 500, Message: "failed to load scraping sources"}
		}
		if len(sources) == 0 {
			return nil, &ServiceError{StatusCode: 400, Message: "no active scraping sources configured"}
		}
		return sources, nil
	}

	seen := map[uuid.UUID]bool{}
	ids := make([]uuid.UUID, 0, len(rawIDs))
	for _, raw := range rawIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, &ServiceError{StatusCode: 400, Message: fmt.Sprintf("invalid source id %q", raw)}
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	sources, err := s.sources.FindByIDs(ctx, ids)
	if err != nil {
		s.logger.Error("Failed to load scraping sources", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "failed to load scraping sources"}
	}
	if len(sources) != len(ids) {
		return nil, &ServiceError{StatusCode: 400, Message: "request contains an unknown source id"}
	}
	for _, src := range sources {
		if !src.IsActive {
			return nil, &ServiceError{StatusCode: 400, Message: fmt.Sprintf("source %q is not active", src.Slug)}
		}
	}
	return sources, nil
}

// run executes the scan to completion. It owns the job from here on and
// never uses the request context: the scan outlives the HTTP call that
// started it.
func (s *scanServiceImpl) run(job *models.ScrapingJob, products []models.SupplierProduct, bound []boundSource) {
	ctx := context.Background()
	resultCount := 0

	defer s.clearStop(job.ID)
	defer s.metrics.ActiveScanJobs.Dec()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Scan job panicked",
				zap.String("job_id", job.ID.String()),
				zap.Any("panic", r),
			)
			s.finishJob(ctx, job, models.JobStatusFailed, fmt.Sprintf("internal error: %v", r), resultCount)
		}
	}()
	s.metrics.ActiveScanJobs.Inc()

	now := time.Now()
	s.updateFields(ctx, job.ID, map[string]interface{}{
		"status":     models.JobStatusRunning,
		"started_at": now,
	})
	job.Status = models.JobStatusRunning
	job.StartedAt = &now

	timeout := time.Duration(job.TimeoutMs) * time.Millisecond
	delay := time.Duration(job.DelayMs) * time.Millisecond

	for start := 0; start < len(products); start += job.BatchSize {
		if start > 0 && delay > 0 {
			time.Sleep(delay)
		}
		// Stop requests take effect here, between batches.
		if s.shouldStop(ctx, job.ID) {
			s.finishJob(ctx, job, models.JobStatusStopped, "", resultCount)
			return
		}

		end := start + job.BatchSize
		if end > len(products) {
			end = len(products)
		}
		job.CurrentBatch = start/job.BatchSize + 1
		s.updateFields(ctx, job.ID, map[string]interface{}{"current_batch": job.CurrentBatch})

		for i := start; i < end; i++ {
			found := s.scanProduct(ctx, job, &products[i], bound, timeout, &resultCount)
			job.ProcessedProducts++
			if found {
				job.SuccessfulProducts++
			} else {
				job.FailedProducts++
			}
			s.updateFields(ctx, job.ID, map[string]interface{}{
				"processed_products":  job.ProcessedProducts,
				"successful_products": job.SuccessfulProducts,
				"failed_products":     job.FailedProducts,
			})
		}
	}

	if err := s.markLowestPrices(ctx, job.ID); err != nil {
		s.logger.Error("Failed to flag lowest prices",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		s.finishJob(ctx, job, models.JobStatusFailed, "failed to post-process results: "+err.Error(), resultCount)
		return
	}
	s.finishJob(ctx, job, models.JobStatusCompleted, "", resultCount)
}

// scanProduct runs one product through every source in priority order. Per
// source the search terms are tried until one yields a listing; the product
// counts as successful when at least one source produced a result.
func (s *scanServiceImpl) scanProduct(ctx context.Context, job *models.ScrapingJob, product *models.SupplierProduct, bound []boundSource, timeout time.Duration, resultCount *int) bool {
	terms := searchTerms(product)
	label := strings.TrimSpace(product.Brand + " " + product.ProductName)
	s.updateFields(ctx, job.ID, map[string]interface{}{
		"current_product":      label,
		"search_attempts_json": "[]",
	})

	found := false
	var attempts []string
	for _, bs := range bound {
		hit := false
		for _, term := range terms {
			attempts = append(attempts, bs.source.Slug+": "+term)
			attemptsJSON, _ := json.Marshal(attempts)
			s.updateFields(ctx, job.ID, map[string]interface{}{
				"current_source":       bs.source.Name,
				"current_search_term":  term,
				"search_attempts_json": string(attemptsJSON),
			})

			listing, err := s.scrapeWithRetry(ctx, bs.scraper, term, timeout, job.MaxRetries)
			if err != nil {
				if errors.Is(err, scrapers.ErrBlocked) {
					s.logger.Warn("Source blocked the scan",
						zap.String("source", bs.source.Slug),
						zap.String("term", term),
					)
					break // a blocked source stays blocked, skip its remaining terms
				}
				s.logger.Warn("Scrape attempt failed",
					zap.String("source", bs.source.Slug),
					zap.String("term", term),
					zap.Error(err),
				)
				continue
			}
			if listing == nil {
				continue
			}

			result := &models.PriceScrapingResult{
				JobID:           job.ID,
				ProductID:       product.ID,
				SourceID:        bs.source.ID,
				Title:           listing.Title,
				Price:           listing.Price,
				Currency:        listing.Currency,
				URL:             listing.URL,
				Merchant:        listing.Merchant,
				Availability:    listing.Availability,
				ShippingCost:    listing.ShippingCost,
				ConfidenceScore: listing.Confidence,
				ScrapedAt:       time.Now(),
			}
			if result.Merchant == "" {
				result.Merchant = bs.source.Name
			}
			if err := s.scans.CreateResult(ctx, result); err != nil {
				s.logger.Error("Failed to store scraping result",
					zap.String("job_id", job.ID.String()),
					zap.Error(err),
				)
				continue
			}
			s.metrics.ListingsScraped.Inc()
			*resultCount++
			hit = true
			found = true
			break
		}
		if !hit {
			s.metrics.ScrapeMisses.Inc()
		}
	}
	return found
}

// scrapeWithRetry retries transient scrape failures. Blocked responses are
// not transient and return immediately.
func (s *scanServiceImpl) scrapeWithRetry(ctx context.Context, scraper scrapers.SourceScraper, term string, timeout time.Duration, retries int) (*models.Listing, error) {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		listing, err := scraper.ScrapeProduct(attemptCtx, term)
		cancel()
		if err == nil {
			return listing, nil
		}
		if errors.Is(err, scrapers.ErrBlocked) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// searchTerms is the fallback chain for one product: EAN first when present,
// then brand, name and size, then brand and name alone.
func searchTerms(p *models.SupplierProduct) []string {
	var terms []string
	if p.EAN != "" {
		terms = append(terms, p.EAN)
	}
	base := strings.TrimSpace(strings.TrimSpace(p.Brand) + " " + strings.TrimSpace(p.ProductName))
	if base == "" {
		return terms
	}
	if p.VariantSize != "" {
		terms = append(terms, base+" "+p.VariantSize)
	}
	terms = append(terms, base)
	return terms
}

// shouldStop consults the in-process flag first, then the job row, so stop
// requests written straight to the store are honored too.
func (s *scanServiceImpl) shouldStop(ctx context.Context, jobID uuid.UUID) bool {
	s.mu.Lock()
	flagged := s.stops[jobID]
	s.mu.Unlock()
	if flagged {
		return true
	}
	row, err := s.scans.FindJobByID(ctx, jobID)
	if err != nil {
		return false
	}
	return row.StopRequested
}

func (s *scanServiceImpl) clearStop(jobID uuid.UUID) {
	s.mu.Lock()
	delete(s.stops, jobID)
	s.mu.Unlock()
}

// markLowestPrices flags, per product, the cheapest result of the job.
// Results arrive ordered by scrape time, so on a price tie the earliest
// scraped result keeps the flag.
func (s *scanServiceImpl) markLowestPrices(ctx context.Context, jobID uuid.UUID) error {
	results, err := s.scans.FindResultsByJob(ctx, jobID)
	if err != nil {
		return err
	}
	winners := map[uuid.UUID]*models.PriceScrapingResult{}
	for i := range results {
		r := &results[i]
		best, ok := winners[r.ProductID]
		if !ok || r.Price < best.Price {
			winners[r.ProductID] = r
		}
	}
	for _, w := range winners {
		if err := s.scans.SetLowestPrice(ctx, w.ID, true); err != nil {
			return err
		}
	}
	return nil
}

// finishJob records the terminal state, clears the transient progress
// fields and publishes the completion event.
func (s *scanServiceImpl) finishJob(ctx context.Context, job *models.ScrapingJob, status, errorMessage string, resultCount int) {
	now := time.Now()
	fields := map[string]interface{}{
		"status":              status,
		"completed_at":        now,
		"current_product":     "",
		"current_source":      "",
		"current_search_term": "",
	}
	if errorMessage != "" {
		fields["error_message"] = errorMessage
	}
	if err := s.scans.UpdateJobFields(ctx, job.ID, fields); err != nil {
		s.logger.Error("Failed to finalize scan job",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
	}
	job.Status = status
	job.CompletedAt = &now
	job.ErrorMessage = errorMessage

	s.metrics.ScanJobs.WithLabelValues(status).Inc()
	s.publishScanCompleted(job, resultCount)

	s.logger.Info("Scan job finished",
		zap.String("job_id", job.ID.String()),
		zap.String("status", status),
		zap.Int("processed", job.ProcessedProducts),
		zap.Int("results", resultCount),
	)
}

func (s *scanServiceImpl) publishScanCompleted(job *models.ScrapingJob, resultCount int) {
	if s.producer == nil {
		return
	}
	event := models.ScanCompletedEvent{
		EventType:          "catalog.scan.completed",
		JobID:              job.ID.String(),
		SupplierID:         job.SupplierID.String(),
		Status:             job.Status,
		TotalProducts:      job.TotalProducts,
		SuccessfulProducts: job.SuccessfulProducts,
		FailedProducts:     job.FailedProducts,
		ResultCount:        resultCount,
		Timestamp:          time.Now(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to marshal scan completed event", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.producer.Publish(ctx, job.ID.String(), payload); err != nil {
		s.logger.Warn("Failed to publish scan completed event", zap.Error(err))
	}
}

// updateFields is a best-effort progress write; a failed write must never
// abort a running scan.
func (s *scanServiceImpl) updateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) {
	if err := s.scans.UpdateJobFields(ctx, id, fields); err != nil {
		s.logger.Warn("Failed to update scan job progress",
			zap.String("job_id", id.String()),
			zap.Error(err),
		)
	}
}

func (s *scanServiceImpl) GetJob(ctx context.Context, id uuid.UUID) (*models.ScrapingJob, *ServiceError) {
	job, err := s.scans.FindJobByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "scan job not found"}
		}
		s.logger.Error("Failed to load scan job", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "failed to load scan job"}
	}
	return job, nil
}

func (s *scanServiceImpl) ListJobs(ctx context.Context, supplierID *uuid.UUID, page, limit int) ([]models.ScrapingJob, int64, *ServiceError) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	jobs, total, err := s.scans.FindJobs(ctx, supplierID, page, limit)
	if err != nil {
		s.logger.Error("Failed to list scan jobs", zap.Error(err))
		return nil, 0, &ServiceError{StatusCode: 500, Message: "failed to list scan jobs"}
	}
	return jobs, total, nil
}

// StopJob requests a cooperative stop. The job keeps running until the
// current batch finishes; polling GetJob shows when it actually stopped.
func (s *scanServiceImpl) StopJob(ctx context.Context, id uuid.UUID) (*models.ScrapingJob, *ServiceError) {
	job, err := s.scans.FindJobByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ServiceError{StatusCode: 404, Message: "scan job not found"}
		}
		s.logger.Error("Failed to load scan job", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "failed to load scan job"}
	}
	if job.Terminal() {
		return nil, &ServiceError{StatusCode: 409, Message: fmt.Sprintf("scan job is already %s", job.Status)}
	}

	s.mu.Lock()
	if _, running := s.stops[id]; running {
		s.stops[id] = true
	}
	s.mu.Unlock()

	if err := s.scans.UpdateJobFields(ctx, id, map[string]interface{}{"stop_requested": true}); err != nil {
		s.logger.Error("Failed to record stop request", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "failed to record stop request"}
	}
	job.StopRequested = true

	s.logger.Info("Stop requested for scan job", zap.String("job_id", id.String()))
	return job, nil
}

func (s *scanServiceImpl) ListResults(ctx context.Context, jobID uuid.UUID) ([]models.PriceScrapingResult, *ServiceError) {
	if _, svcErr := s.GetJob(ctx, jobID); svcErr != nil {
		return nil, svcErr
	}
	results, err := s.scans.FindResultsByJob(ctx, jobID)
	if err != nil {
		s.logger.Error("Failed to load scan results", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "failed to load scan results"}
	}
	return results, nil
}

// Opportunities lists products whose lowest scanned competitor price sits
// above the wholesale price by at least minMarginPct percent, best margin
// first.
func (s *scanServiceImpl) Opportunities(ctx context.Context, jobID uuid.UUID, minMarginPct float64) ([]models.PriceOpportunity, *ServiceError) {
	if _, svcErr := s.GetJob(ctx, jobID); svcErr != nil {
		return nil, svcErr
	}
	results, err := s.scans.FindResultsByJob(ctx, jobID)
	if err != nil {
		s.logger.Error("Failed to load scan results", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "failed to load scan results"}
	}

	var lowest []models.PriceScrapingResult
	productIDs := make([]uuid.UUID, 0)
	for _, r := range results {
		if r.IsLowestPrice {
			lowest = append(lowest, r)
			productIDs = append(productIDs, r.ProductID)
		}
	}
	if len(lowest) == 0 {
		return []models.PriceOpportunity{}, nil
	}

	products, err := s.products.FindByIDs(ctx, productIDs)
	if err != nil {
		s.logger.Error("Failed to load products for opportunities", zap.Error(err))
		return nil, &ServiceError{StatusCode: 500, Message: "failed to load products"}
	}
	byID := make(map[uuid.UUID]*models.SupplierProduct, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	opportunities := []models.PriceOpportunity{}
	for _, r := range lowest {
		p, ok := byID[r.ProductID]
		if !ok || p.WholesalePrice <= 0 {
			continue
		}
		margin := (r.Price - p.WholesalePrice) / p.WholesalePrice * 100
		if margin <= 0 || margin < minMarginPct {
			continue
		}
		opportunities = append(opportunities, models.PriceOpportunity{
			ProductID:      p.ID.String(),
			Brand:          p.Brand,
			ProductName:    p.ProductName,
			VariantSize:    p.VariantSize,
			WholesalePrice: p.WholesalePrice,
			LowestPrice:    r.Price,
			Currency:       r.Currency,
			MarginPct:      math.Round(margin*100) / 100,
			Merchant:       r.Merchant,
			URL:            r.URL,
		})
	}
	sort.Slice(opportunities, func(i, j int) bool {
		return opportunities[i].MarginPct > opportunities[j].MarginPct
	})
	return opportunities, nil
}

func (s *scanServiceImpl) RecoverInterrupted(ctx context.Context) error {
	n, err := s.scans.FailInterruptedJobs(ctx, "interrupted by service restart")
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Warn("Failed scan jobs left over from a previous run", zap.Int64("count", n))
	}
	return nil
}
