package diagnosis

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/octvision/octvision/internal/platform/classifier"
	"github.com/octvision/octvision/internal/platform/db"
)

// memDB backs the three mock repositories and enforces the same foreign keys
// as the schema: predictions need a scan, reports need a prediction, and
// neither parent can be deleted while children exist.
type memDB struct {
	mu          sync.Mutex
	scans       map[uuid.UUID]*ScanImage
	predictions map[uuid.UUID]*Prediction
	reports     map[uuid.UUID]*HealthReport

	failReportCreate bool
	failScanDelete   bool
}

func newMemDB() *memDB {
	return &memDB{
		scans:       make(map[uuid.UUID]*ScanImage),
		predictions: make(map[uuid.UUID]*Prediction),
		reports:     make(map[uuid.UUID]*HealthReport),
	}
}

func (m *memDB) snapshot() (map[uuid.UUID]*ScanImage, map[uuid.UUID]*Prediction, map[uuid.UUID]*HealthReport) {
	s := make(map[uuid.UUID]*ScanImage, len(m.scans))
	for k, v := range m.scans {
		s[k] = v
	}
	p := make(map[uuid.UUID]*Prediction, len(m.predictions))
	for k, v := range m.predictions {
		p[k] = v
	}
	r := make(map[uuid.UUID]*HealthReport, len(m.reports))
	for k, v := range m.reports {
		r[k] = v
	}
	return s, p, r
}

// mockTx restores the maps when fn fails, like a rollback.
type mockTx struct {
	db *memDB
}

func (t *mockTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	t.db.mu.Lock()
	s, p, r := t.db.snapshot()
	t.db.mu.Unlock()

	if err := fn(ctx); err != nil {
		t.db.mu.Lock()
		t.db.scans, t.db.predictions, t.db.reports = s, p, r
		t.db.mu.Unlock()
		return err
	}
	return nil
}

// -- scans --

type mockScanRepo struct{ db *memDB }

func (r *mockScanRepo) Create(_ context.Context, s *ScanImage) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	r.db.scans[s.ID] = s
	return nil
}

func (r *mockScanRepo) GetByID(_ context.Context, userID, id uuid.UUID) (*ScanImage, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.scans[id]
	if !ok || s.UserID != userID {
		return nil, db.ErrNotFound
	}
	return s, nil
}

func (r *mockScanRepo) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]*ScanImage, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*ScanImage
	for _, s := range r.db.scans {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadDate.After(out[j].UploadDate) })
	return page(out, limit, offset), len(out), nil
}

func (r *mockScanRepo) Delete(_ context.Context, userID, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.scans[id]
	if !ok || s.UserID != userID {
		return db.ErrNotFound
	}
	if r.db.failScanDelete {
		return &db.BackendError{Err: fmt.Errorf("connection reset")}
	}
	for _, p := range r.db.predictions {
		if p.ImageID == id {
			return fmt.Errorf("%w: prediction %s references scan", db.ErrConstraintViolation, p.ID)
		}
	}
	delete(r.db.scans, id)
	return nil
}

// -- predictions --

type mockPredictionRepo struct{ db *memDB }

func (r *mockPredictionRepo) Create(_ context.Context, p *Prediction) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.scans[p.ImageID]; !ok {
		return fmt.Errorf("%w: scan %s missing", db.ErrConstraintViolation, p.ImageID)
	}
	r.db.predictions[p.ID] = p
	return nil
}

func (r *mockPredictionRepo) GetByID(_ context.Context, userID, id uuid.UUID) (*PredictionWithScan, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.predictions[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	s := r.db.scans[p.ImageID]
	if s == nil || s.UserID != userID {
		return nil, db.ErrNotFound
	}
	return &PredictionWithScan{Prediction: *p, Scan: *s}, nil
}

func (r *mockPredictionRepo) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]*PredictionWithScan, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*PredictionWithScan
	for _, p := range r.db.predictions {
		if s := r.db.scans[p.ImageID]; s != nil && s.UserID == userID {
			out = append(out, &PredictionWithScan{Prediction: *p, Scan: *s})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PredictionDate.After(out[j].PredictionDate) })
	return page(out, limit, offset), len(out), nil
}

func (r *mockPredictionRepo) DeleteByScan(_ context.Context, scanID uuid.UUID) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for id, p := range r.db.predictions {
		if p.ImageID != scanID {
			continue
		}
		for _, h := range r.db.reports {
			if h.PredictionID == id {
				return 0, fmt.Errorf("%w: report %s references prediction", db.ErrConstraintViolation, h.ID)
			}
		}
	}
	for id, p := range r.db.predictions {
		if p.ImageID == scanID {
			delete(r.db.predictions, id)
			n++
		}
	}
	return n, nil
}

// -- reports --

type mockReportRepo struct{ db *memDB }

func (r *mockReportRepo) Create(_ context.Context, h *HealthReport) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.failReportCreate {
		return &db.BackendError{Err: fmt.Errorf("connection reset")}
	}
	if _, ok := r.db.predictions[h.PredictionID]; !ok {
		return fmt.Errorf("%w: prediction %s missing", db.ErrConstraintViolation, h.PredictionID)
	}
	r.db.reports[h.ID] = h
	return nil
}

func (r *mockReportRepo) GetByPrediction(_ context.Context, userID, predictionID uuid.UUID) (*HealthReport, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, h := range r.db.reports {
		if h.PredictionID == predictionID && h.UserID == userID {
			return h, nil
		}
	}
	return nil, db.ErrNotFound
}

func (r *mockReportRepo) Latest(_ context.Context, userID uuid.UUID) (*HealthReport, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var latest *HealthReport
	for _, h := range r.db.reports {
		if h.UserID == userID && (latest == nil || h.ReportDate.After(latest.ReportDate)) {
			latest = h
		}
	}
	if latest == nil {
		return nil, db.ErrNotFound
	}
	return latest, nil
}

func (r *mockReportRepo) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]*HealthReport, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*HealthReport
	for _, h := range r.db.reports {
		if h.UserID == userID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReportDate.After(out[j].ReportDate) })
	return page(out, limit, offset), len(out), nil
}

func (r *mockReportRepo) SetDoctorReport(_ context.Context, userID, predictionID uuid.UUID, text string) error {
	return r.set(userID, predictionID, func(h *HealthReport) { h.DoctorReport = &text })
}

func (r *mockReportRepo) SetPatientReport(_ context.Context, userID, predictionID uuid.UUID, text string) error {
	return r.set(userID, predictionID, func(h *HealthReport) { h.PatientReport = &text })
}

func (r *mockReportRepo) set(userID, predictionID uuid.UUID, fn func(*HealthReport)) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, h := range r.db.reports {
		if h.PredictionID == predictionID && h.UserID == userID {
			fn(h)
			return nil
		}
	}
	return db.ErrNotFound
}

func (r *mockReportRepo) DeleteByScan(_ context.Context, scanID uuid.UUID) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var n int64
	for id, h := range r.db.reports {
		if p := r.db.predictions[h.PredictionID]; p != nil && p.ImageID == scanID {
			delete(r.db.reports, id)
			n++
		}
	}
	return n, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// -- classifier --

type mockClassifier struct {
	mu     sync.Mutex
	calls  int
	result *classifier.Result
	err    error
}

func (c *mockClassifier) Classify(_ context.Context, _ classifier.Image) (*classifier.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.result, nil
}

func (c *mockClassifier) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}
