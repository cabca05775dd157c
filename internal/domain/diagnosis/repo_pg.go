package diagnosis

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/octvision/octvision/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func connFor(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// -- Scans --

type scanRepoPG struct{ pool *pgxpool.Pool }

func NewScanRepoPG(pool *pgxpool.Pool) ScanRepository {
	return &scanRepoPG{pool: pool}
}

func (r *scanRepoPG) conn(ctx context.Context) queryable { return connFor(ctx, r.pool) }

const scanCols = `id, user_id, storage_path, image_url, content_type, size_bytes, image_quality, upload_date`

func scanScanImage(row pgx.Row) (*ScanImage, error) {
	var s ScanImage
	err := row.Scan(&s.ID, &s.UserID, &s.StoragePath, &s.ImageURL, &s.ContentType,
		&s.SizeBytes, &s.ImageQuality, &s.UploadDate)
	if err != nil {
		return nil, db.MapError(err)
	}
	return &s, nil
}

func (r *scanRepoPG) Create(ctx context.Context, s *ScanImage) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO oct_images (id, user_id, storage_path, image_url, content_type, size_bytes, image_quality, upload_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		s.ID, s.UserID, s.StoragePath, s.ImageURL, s.ContentType, s.SizeBytes, s.ImageQuality, s.UploadDate)
	return db.MapError(err)
}

func (r *scanRepoPG) GetByID(ctx context.Context, userID, id uuid.UUID) (*ScanImage, error) {
	return scanScanImage(r.conn(ctx).QueryRow(ctx,
		`SELECT `+scanCols+` FROM oct_images WHERE id = $1 AND user_id = $2`, id, userID))
}

func (r *scanRepoPG) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*ScanImage, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM oct_images WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, db.MapError(err)
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+scanCols+` FROM oct_images WHERE user_id = $1
		ORDER BY upload_date DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, db.MapError(err)
	}
	defer rows.Close()
	var items []*ScanImage
	for rows.Next() {
		s, err := scanScanImage(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, db.MapError(rows.Err())
}

func (r *scanRepoPG) Delete(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM oct_images WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

// -- Predictions --

type predictionRepoPG struct{ pool *pgxpool.Pool }

func NewPredictionRepoPG(pool *pgxpool.Pool) PredictionRepository {
	return &predictionRepoPG{pool: pool}
}

func (r *predictionRepoPG) conn(ctx context.Context) queryable { return connFor(ctx, r.pool) }

const predictionJoinCols = `p.id, p.image_id, p.disease_type, p.confidence_score, p.severity_level,
	p.probabilities, p.prediction_date,
	s.id, s.user_id, s.storage_path, s.image_url, s.content_type, s.size_bytes, s.image_quality, s.upload_date`

func scanPredictionWithScan(row pgx.Row) (*PredictionWithScan, error) {
	var p PredictionWithScan
	err := row.Scan(&p.ID, &p.ImageID, &p.DiseaseType, &p.ConfidenceScore, &p.SeverityLevel,
		&p.Probabilities, &p.PredictionDate,
		&p.Scan.ID, &p.Scan.UserID, &p.Scan.StoragePath, &p.Scan.ImageURL, &p.Scan.ContentType,
		&p.Scan.SizeBytes, &p.Scan.ImageQuality, &p.Scan.UploadDate)
	if err != nil {
		return nil, db.MapError(err)
	}
	return &p, nil
}

func (r *predictionRepoPG) Create(ctx context.Context, p *Prediction) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	probs := p.Probabilities
	if probs == nil {
		probs = map[string]float64{}
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO disease_predictions (id, image_id, disease_type, confidence_score, severity_level, probabilities, prediction_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.ImageID, p.DiseaseType, p.ConfidenceScore, p.SeverityLevel, probs, p.PredictionDate)
	return db.MapError(err)
}

func (r *predictionRepoPG) GetByID(ctx context.Context, userID, id uuid.UUID) (*PredictionWithScan, error) {
	return scanPredictionWithScan(r.conn(ctx).QueryRow(ctx, `
		SELECT `+predictionJoinCols+`
		FROM disease_predictions p JOIN oct_images s ON s.id = p.image_id
		WHERE p.id = $1 AND s.user_id = $2`, id, userID))
}

func (r *predictionRepoPG) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*PredictionWithScan, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM disease_predictions p JOIN oct_images s ON s.id = p.image_id
		WHERE s.user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, db.MapError(err)
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+predictionJoinCols+`
		FROM disease_predictions p JOIN oct_images s ON s.id = p.image_id
		WHERE s.user_id = $1
		ORDER BY p.prediction_date DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, db.MapError(err)
	}
	defer rows.Close()
	var items []*PredictionWithScan
	for rows.Next() {
		p, err := scanPredictionWithScan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, db.MapError(rows.Err())
}

func (r *predictionRepoPG) DeleteByScan(ctx context.Context, scanID uuid.UUID) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM disease_predictions WHERE image_id = $1`, scanID)
	if err != nil {
		return 0, db.MapError(err)
	}
	return tag.RowsAffected(), nil
}

// -- Health reports --

type healthReportRepoPG struct{ pool *pgxpool.Pool }

func NewHealthReportRepoPG(pool *pgxpool.Pool) HealthReportRepository {
	return &healthReportRepoPG{pool: pool}
}

func (r *healthReportRepoPG) conn(ctx context.Context) queryable { return connFor(ctx, r.pool) }

const reportCols = `id, prediction_id, user_id, follow_up_date, severity_status,
	requires_immediate_attention, doctor_report, patient_report, report_date`

func scanHealthReport(row pgx.Row) (*HealthReport, error) {
	var h HealthReport
	err := row.Scan(&h.ID, &h.PredictionID, &h.UserID, &h.FollowUpDate, &h.SeverityStatus,
		&h.RequiresImmediateAttention, &h.DoctorReport, &h.PatientReport, &h.ReportDate)
	if err != nil {
		return nil, db.MapError(err)
	}
	return &h, nil
}

func (r *healthReportRepoPG) Create(ctx context.Context, h *HealthReport) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO health_reports (id, prediction_id, user_id, follow_up_date, severity_status,
			requires_immediate_attention, doctor_report, patient_report, report_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		h.ID, h.PredictionID, h.UserID, h.FollowUpDate, h.SeverityStatus,
		h.RequiresImmediateAttention, h.DoctorReport, h.PatientReport, h.ReportDate)
	return db.MapError(err)
}

func (r *healthReportRepoPG) GetByPrediction(ctx context.Context, userID, predictionID uuid.UUID) (*HealthReport, error) {
	return scanHealthReport(r.conn(ctx).QueryRow(ctx,
		`SELECT `+reportCols+` FROM health_reports WHERE prediction_id = $1 AND user_id = $2`, predictionID, userID))
}

func (r *healthReportRepoPG) Latest(ctx context.Context, userID uuid.UUID) (*HealthReport, error) {
	return scanHealthReport(r.conn(ctx).QueryRow(ctx,
		`SELECT `+reportCols+` FROM health_reports WHERE user_id = $1 ORDER BY report_date DESC LIMIT 1`, userID))
}

func (r *healthReportRepoPG) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*HealthReport, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM health_reports WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, db.MapError(err)
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+reportCols+` FROM health_reports WHERE user_id = $1
		ORDER BY report_date DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, db.MapError(err)
	}
	defer rows.Close()
	var items []*HealthReport
	for rows.Next() {
		h, err := scanHealthReport(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, h)
	}
	return items, total, db.MapError(rows.Err())
}

func (r *healthReportRepoPG) SetDoctorReport(ctx context.Context, userID, predictionID uuid.UUID, text string) error {
	return r.setText(ctx, "doctor_report", userID, predictionID, text)
}

func (r *healthReportRepoPG) SetPatientReport(ctx context.Context, userID, predictionID uuid.UUID, text string) error {
	return r.setText(ctx, "patient_report", userID, predictionID, text)
}

// setText updates one of the two fixed report columns; column never comes
// from user input.
func (r *healthReportRepoPG) setText(ctx context.Context, column string, userID, predictionID uuid.UUID, text string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE health_reports SET `+column+` = $3 WHERE prediction_id = $1 AND user_id = $2`,
		predictionID, userID, text)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *healthReportRepoPG) DeleteByScan(ctx context.Context, scanID uuid.UUID) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM health_reports
		WHERE prediction_id IN (SELECT id FROM disease_predictions WHERE image_id = $1)`, scanID)
	if err != nil {
		return 0, db.MapError(err)
	}
	return tag.RowsAffected(), nil
}
