package services_test

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Techinsane-official/perfumex-sub001/models"
)

// In-memory fakes for the repository and event contracts. The import and
// scan engines read their own writes, so most of these are stateful rather
// than canned: maps behind a mutex, with error hooks where a test needs a
// failure.

// ---- product repository ----

type memProductRepo struct {
	mu       sync.Mutex
	products map[uuid.UUID]*models.SupplierProduct

	createErr    error
	updateErr    error
	findErr      error
	deleteErr    error
	deleteFailID uuid.UUID
}

func newMemProductRepo() *memProductRepo {
	return &memProductRepo{products: map[uuid.UUID]*models.SupplierProduct{}}
}

func (m *memProductRepo) Create(_ context.Context, product *models.SupplierProduct) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	cp := *product
	m.products[cp.ID] = &cp
	return nil
}

func (m *memProductRepo) Update(_ context.Context, product *models.SupplierProduct) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *product
	m.products[cp.ID] = &cp
	return nil
}

func (m *memProductRepo) FindByID(_ context.Context, id uuid.UUID) (*models.SupplierProduct, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memProductRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]models.SupplierProduct, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SupplierProduct
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memProductRepo) FindByEANs(_ context.Context, supplierID uuid.UUID, eans []string) ([]models.SupplierProduct, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	set := map[string]bool{}
	for _, e := range eans {
		set[e] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SupplierProduct
	for _, p := range m.products {
		if p.SupplierID == supplierID && p.EAN != "" && set[p.EAN] {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memProductRepo) FindByNames(_ context.Context, supplierID uuid.UUID, names []string) ([]models.SupplierProduct, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	set := map[string]bool{}
	for _, n := range names {
		set[n] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SupplierProduct
	for _, p := range m.products {
		if p.SupplierID == supplierID && set[strings.ToLower(strings.TrimSpace(p.ProductName))] {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memProductRepo) FindBySupplier(_ context.Context, supplierID uuid.UUID, _, _ int) ([]models.SupplierProduct, int64, error) {
	if m.findErr != nil {
		return nil, 0, m.findErr
	}
	all, _ := m.FindAllBySupplier(context.Background(), supplierID)
	return all, int64(len(all)), nil
}

func (m *memProductRepo) FindAllBySupplier(_ context.Context, supplierID uuid.UUID) ([]models.SupplierProduct, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SupplierProduct
	for _, p := range m.products {
		if p.SupplierID == supplierID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memProductRepo) FindBySession(_ context.Context, sessionID uuid.UUID) ([]models.SupplierProduct, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SupplierProduct
	for _, p := range m.products {
		if p.ImportSessionID == sessionID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memProductRepo) FindIncompleteBySession(_ context.Context, sessionID uuid.UUID) ([]models.SupplierProduct, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SupplierProduct
	for _, p := range m.products {
		if p.ImportSessionID == sessionID && (p.ProductName == "" || p.Brand == "" || p.EAN == "" || p.WholesalePrice <= 0) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memProductRepo) Delete(_ context.Context, id uuid.UUID) error {
	if m.deleteErr != nil && id == m.deleteFailID {
		return m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.products, id)
	return nil
}

func (m *memProductRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.products)
}

func (m *memProductRepo) get(id uuid.UUID) *models.SupplierProduct {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.products[id]; ok {
		cp := *p
		return &cp
	}
	return nil
}

func (m *memProductRepo) seed(p models.SupplierProduct) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.products[p.ID] = &p
	return p.ID
}

// ---- supplier repository ----

type mockSupplierRepo struct {
	createErr        error
	findByIDSupplier *models.Supplier
	findByIDErr      error
	findAllSuppliers []models.Supplier
	findAllErr       error

	created             []*models.Supplier
	lastPage, lastLimit int
}

func (m *mockSupplierRepo) Create(_ context.Context, supplier *models.Supplier) error {
	if m.createErr != nil {
		return m.createErr
	}
	if supplier.ID == uuid.Nil {
		supplier.ID = uuid.New()
	}
	m.created = append(m.created, supplier)
	return nil
}

func (m *mockSupplierRepo) FindByID(_ context.Context, _ uuid.UUID) (*models.Supplier, error) {
	return m.findByIDSupplier, m.findByIDErr
}

func (m *mockSupplierRepo) FindAll(_ context.Context, page, limit int) ([]models.Supplier, int64, error) {
	m.lastPage, m.lastLimit = page, limit
	return m.findAllSuppliers, int64(len(m.findAllSuppliers)), m.findAllErr
}

// ---- import repository ----

type memImportRepo struct {
	mu        sync.Mutex
	sessions  map[uuid.UUID]*models.ImportSession
	snapshots map[uuid.UUID]*models.ImportSnapshot

	createSessionErr  error
	updateSessionErr  error
	findSessionErr    error
	createSnapshotErr error
	findSnapshotErr   error
}

func newMemImportRepo() *memImportRepo {
	return &memImportRepo{
		sessions:  map[uuid.UUID]*models.ImportSession{},
		snapshots: map[uuid.UUID]*models.ImportSnapshot{},
	}
}

func (m *memImportRepo) CreateSession(_ context.Context, session *models.ImportSession) error {
	if m.createSessionErr != nil {
		return m.createSessionErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	cp := *session
	m.sessions[cp.ID] = &cp
	return nil
}

func (m *memImportRepo) UpdateSession(_ context.Context, session *models.ImportSession) error {
	if m.updateSessionErr != nil {
		return m.updateSessionErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *session
	m.sessions[cp.ID] = &cp
	return nil
}

func (m *memImportRepo) FindSessionByID(_ context.Context, id uuid.UUID) (*models.ImportSession, error) {
	if m.findSessionErr != nil {
		return nil, m.findSessionErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memImportRepo) FindSessions(_ context.Context, supplierID *uuid.UUID, _, _ int) ([]models.ImportSession, int64, error) {
	if m.findSessionErr != nil {
		return nil, 0, m.findSessionErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ImportSession
	for _, s := range m.sessions {
		if supplierID != nil && s.SupplierID != *supplierID {
			continue
		}
		out = append(out, *s)
	}
	return out, int64(len(out)), nil
}

func (m *memImportRepo) CreateSnapshot(_ context.Context, snapshot *models.ImportSnapshot) error {
	if m.createSnapshotErr != nil {
		return m.createSnapshotErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if snapshot.ID == uuid.Nil {
		snapshot.ID = uuid.New()
	}
	cp := *snapshot
	m.snapshots[cp.ID] = &cp
	return nil
}

func (m *memImportRepo) FindSnapshotByID(_ context.Context, id uuid.UUID) (*models.ImportSnapshot, error) {
	if m.findSnapshotErr != nil {
		return nil, m.findSnapshotErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snapshots[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memImportRepo) FindSnapshotBySession(_ context.Context, sessionID uuid.UUID, entityType string) (*models.ImportSnapshot, error) {
	if m.findSnapshotErr != nil {
		return nil, m.findSnapshotErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.snapshots {
		if s.ImportSessionID == sessionID && s.EntityType == entityType {
			cp := *s
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memImportRepo) session(id uuid.UUID) *models.ImportSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		cp := *s
		return &cp
	}
	return nil
}

func (m *memImportRepo) sessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *memImportRepo) firstSnapshot(entityType string) *models.ImportSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.snapshots {
		if s.EntityType == entityType {
			cp := *s
			return &cp
		}
	}
	return nil
}

func (m *memImportRepo) snapshotCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snapshots)
}

// ---- scan repository ----

type memScanRepo struct {
	mu           sync.Mutex
	jobs         map[uuid.UUID]*models.ScrapingJob
	results      []models.PriceScrapingResult
	processedSeq []int // every processed_products value written, in order

	createJobErr    error
	findJobErr      error
	createResultErr error
	findResultsErr  error
	setLowestErr    error
}

func newMemScanRepo() *memScanRepo {
	return &memScanRepo{jobs: map[uuid.UUID]*models.ScrapingJob{}}
}

func (m *memScanRepo) CreateJob(_ context.Context, job *models.ScrapingJob) error {
	if m.createJobErr != nil {
		return m.createJobErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	cp := *job
	m.jobs[cp.ID] = &cp
	return nil
}

func (m *memScanRepo) FindJobByID(_ context.Context, id uuid.UUID) (*models.ScrapingJob, error) {
	if m.findJobErr != nil {
		return nil, m.findJobErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *j
	return &cp, nil
}

func (m *memScanRepo) UpdateJobFields(_ context.Context, id uuid.UUID, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	for k, v := range fields {
		switch k {
		case "status":
			j.Status = v.(string)
		case "started_at":
			t := v.(time.Time)
			j.StartedAt = &t
		case "completed_at":
			t := v.(time.Time)
			j.CompletedAt = &t
		case "current_batch":
			j.CurrentBatch = v.(int)
		case "processed_products":
			j.ProcessedProducts = v.(int)
			m.processedSeq = append(m.processedSeq, v.(int))
		case "successful_products":
			j.SuccessfulProducts = v.(int)
		case "failed_products":
			j.FailedProducts = v.(int)
		case "current_product":
			j.CurrentProduct = v.(string)
		case "current_source":
			j.CurrentSource = v.(string)
		case "current_search_term":
			j.CurrentSearchTerm = v.(string)
		case "search_attempts_json":
			j.SearchAttemptsJSON = v.(string)
		case "error_message":
			j.ErrorMessage = v.(string)
		case "stop_requested":
			j.StopRequested = v.(bool)
		}
	}
	return nil
}

func (m *memScanRepo) FindJobs(_ context.Context, supplierID *uuid.UUID, _, _ int) ([]models.ScrapingJob, int64, error) {
	if m.findJobErr != nil {
		return nil, 0, m.findJobErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ScrapingJob
	for _, j := range m.jobs {
		if supplierID != nil && j.SupplierID != *supplierID {
			continue
		}
		out = append(out, *j)
	}
	return out, int64(len(out)), nil
}

func (m *memScanRepo) FailInterruptedJobs(_ context.Context, message string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	now := time.Now()
	for _, j := range m.jobs {
		if j.Status == models.JobStatusPending || j.Status == models.JobStatusRunning {
			j.Status = models.JobStatusFailed
			j.ErrorMessage = message
			j.CompletedAt = &now
			n++
		}
	}
	return n, nil
}

func (m *memScanRepo) CreateResult(_ context.Context, result *models.PriceScrapingResult) error {
	if m.createResultErr != nil {
		return m.createResultErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	m.results = append(m.results, *result)
	return nil
}

func (m *memScanRepo) FindResultsByJob(_ context.Context, jobID uuid.UUID) ([]models.PriceScrapingResult, error) {
	if m.findResultsErr != nil {
		return nil, m.findResultsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// insertion order doubles as scrape order here
	var out []models.PriceScrapingResult
	for _, r := range m.results {
		if r.JobID == jobID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memScanRepo) SetLowestPrice(_ context.Context, resultID uuid.UUID, lowest bool) error {
	if m.setLowestErr != nil {
		return m.setLowestErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.results {
		if m.results[i].ID == resultID {
			m.results[i].IsLowestPrice = lowest
		}
	}
	return nil
}

func (m *memScanRepo) seedJob(job models.ScrapingJob) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	m.jobs[job.ID] = &job
	return job.ID
}

func (m *memScanRepo) seedResult(r models.PriceScrapingResult) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	m.results = append(m.results, r)
	return r.ID
}

func (m *memScanRepo) job(id uuid.UUID) *models.ScrapingJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[id]; ok {
		cp := *j
		return &cp
	}
	return nil
}

func (m *memScanRepo) resultsOf(jobID uuid.UUID) []models.PriceScrapingResult {
	out, _ := m.FindResultsByJob(context.Background(), jobID)
	return out
}

func (m *memScanRepo) processedHistory() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.processedSeq...)
}

// ---- source repository ----

type mockSourceRepo struct {
	sources   []models.ScrapingSource
	findErr   error
	updateErr error
	updated   []*models.ScrapingSource
}

func (m *mockSourceRepo) FindAll(_ context.Context) ([]models.ScrapingSource, error) {
	return m.sources, m.findErr
}

func (m *mockSourceRepo) FindByID(_ context.Context, id uuid.UUID) (*models.ScrapingSource, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for i := range m.sources {
		if m.sources[i].ID == id {
			cp := m.sources[i]
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSourceRepo) FindByIDs(_ context.Context, ids []uuid.UUID) ([]models.ScrapingSource, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	set := map[uuid.UUID]bool{}
	for _, id := range ids {
		set[id] = true
	}
	var out []models.ScrapingSource
	for _, s := range m.sources {
		if set[s.ID] {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSourceRepo) FindActive(_ context.Context) ([]models.ScrapingSource, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	var out []models.ScrapingSource
	for _, s := range m.sources {
		if s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSourceRepo) Update(_ context.Context, source *models.ScrapingSource) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	for i := range m.sources {
		if m.sources[i].ID == source.ID {
			m.sources[i] = *source
		}
	}
	m.updated = append(m.updated, source)
	return nil
}

// ---- event publisher ----

type mockEventPublisher struct {
	mu         sync.Mutex
	publishErr error
	keys       []string
	payloads   [][]byte
}

func (m *mockEventPublisher) Publish(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.keys = append(m.keys, key)
	m.payloads = append(m.payloads, value)
	return nil
}

func (m *mockEventPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payloads)
}

func (m *mockEventPublisher) last() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.payloads) == 0 {
		return nil
	}
	return m.payloads[len(m.payloads)-1]
}
