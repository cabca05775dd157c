package diagnosis

import (
	"context"

	"github.com/google/uuid"
)

// Every read and write is scoped to the owning user. A record belonging to
// another user is reported as db.ErrNotFound.

type ScanRepository interface {
	Create(ctx context.Context, s *ScanImage) error
	GetByID(ctx context.Context, userID, id uuid.UUID) (*ScanImage, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*ScanImage, int, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

type PredictionRepository interface {
	Create(ctx context.Context, p *Prediction) error
	GetByID(ctx context.Context, userID, id uuid.UUID) (*PredictionWithScan, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*PredictionWithScan, int, error)
	DeleteByScan(ctx context.Context, scanID uuid.UUID) (int64, error)
}

type HealthReportRepository interface {
	Create(ctx context.Context, r *HealthReport) error
	GetByPrediction(ctx context.Context, userID, predictionID uuid.UUID) (*HealthReport, error)
	Latest(ctx context.Context, userID uuid.UUID) (*HealthReport, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*HealthReport, int, error)
	SetDoctorReport(ctx context.Context, userID, predictionID uuid.UUID, text string) error
	SetPatientReport(ctx context.Context, userID, predictionID uuid.UUID, text string) error
	DeleteByScan(ctx context.Context, scanID uuid.UUID) (int64, error)
}
