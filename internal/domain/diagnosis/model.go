package diagnosis

import (
	"time"

	"github.com/google/uuid"
)

// Severity is the tier derived from a prediction's confidence.
type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// ImageQualityPending is stored for every new upload; no quality assessment
// runs server side.
const ImageQualityPending = "pending"

// ScanImage maps to the oct_images table.
type ScanImage struct {
	ID           uuid.UUID `db:"id" json:"id"`
	UserID       uuid.UUID `db:"user_id" json:"user_id"`
	StoragePath  string    `db:"storage_path" json:"storage_path"`
	ImageURL     string    `db:"image_url" json:"image_url"`
	ContentType  string    `db:"content_type" json:"content_type"`
	SizeBytes    int64     `db:"size_bytes" json:"size_bytes"`
	ImageQuality string    `db:"image_quality" json:"image_quality"`
	UploadDate   time.Time `db:"upload_date" json:"upload_date"`
}

// Prediction maps to the disease_predictions table.
type Prediction struct {
	ID              uuid.UUID          `db:"id" json:"id"`
	ImageID         uuid.UUID          `db:"image_id" json:"image_id"`
	DiseaseType     string             `db:"disease_type" json:"disease_type"`
	ConfidenceScore float64            `db:"confidence_score" json:"confidence_score"`
	SeverityLevel   Severity           `db:"severity_level" json:"severity_level"`
	Probabilities   map[string]float64 `db:"probabilities" json:"probabilities"`
	PredictionDate  time.Time          `db:"prediction_date" json:"prediction_date"`
}

// PredictionWithScan is a prediction joined with the scan it was made from.
type PredictionWithScan struct {
	Prediction
	Scan ScanImage `json:"scan"`
}

// HealthReport maps to the health_reports table. There is exactly one per
// prediction.
type HealthReport struct {
	ID                         uuid.UUID `db:"id" json:"id"`
	PredictionID               uuid.UUID `db:"prediction_id" json:"prediction_id"`
	UserID                     uuid.UUID `db:"user_id" json:"user_id"`
	FollowUpDate               time.Time `db:"follow_up_date" json:"follow_up_date"`
	SeverityStatus             Severity  `db:"severity_status" json:"severity_status"`
	RequiresImmediateAttention bool      `db:"requires_immediate_attention" json:"requires_immediate_attention"`
	DoctorReport               *string   `db:"doctor_report" json:"doctor_report,omitempty"`
	PatientReport              *string   `db:"patient_report" json:"patient_report,omitempty"`
	ReportDate                 time.Time `db:"report_date" json:"report_date"`
}

// Upload is an image received from a client.
type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Result is everything the diagnosis workflow persisted for one upload.
type Result struct {
	Scan       *ScanImage    `json:"scan"`
	Prediction *Prediction   `json:"prediction"`
	Report     *HealthReport `json:"report"`
}
