package report

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/octvision/octvision/internal/domain/diagnosis"
	"github.com/octvision/octvision/internal/domain/patient"
	"github.com/octvision/octvision/internal/platform/auth"
	"github.com/octvision/octvision/internal/platform/db"
	"github.com/octvision/octvision/internal/platform/events"
	"github.com/octvision/octvision/internal/platform/textgen"
)

// Kind names a report variant.
type Kind string

const (
	KindClinician Kind = "clinician"
	KindPatient   Kind = "patient"
)

const defaultGenerationTimeout = 20 * time.Second

// Generated is the outcome of a generation request. Generated is false when
// the text came from the deterministic template only.
type Generated struct {
	PredictionID uuid.UUID `json:"prediction_id"`
	Kind         Kind      `json:"kind"`
	Text         string    `json:"text"`
	Generated    bool      `json:"generated"`
}

// Invalidator drops cached per-user aggregates after a write.
type Invalidator interface {
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

type Service struct {
	predictions diagnosis.PredictionRepository
	reports     diagnosis.HealthReportRepository
	histories   patient.MedicalHistoryRepository
	profiles    patient.ProfileRepository
	generator   textgen.Generator
	logger      zerolog.Logger

	genTimeout  time.Duration
	publisher   events.Publisher
	invalidator Invalidator
}

func NewService(
	predictions diagnosis.PredictionRepository,
	reports diagnosis.HealthReportRepository,
	histories patient.MedicalHistoryRepository,
	profiles patient.ProfileRepository,
	generator textgen.Generator,
	logger zerolog.Logger,
) *Service {
	if generator == nil {
		generator = textgen.Disabled{}
	}
	return &Service{
		predictions: predictions,
		reports:     reports,
		histories:   histories,
		profiles:    profiles,
		generator:   generator,
		logger:      logger.With().Str("component", "report").Logger(),
		genTimeout:  defaultGenerationTimeout,
		publisher:   events.Nop{},
	}
}

func (s *Service) SetGenerationTimeout(d time.Duration) {
	if d > 0 {
		s.genTimeout = d
	}
}

func (s *Service) SetPublisher(p events.Publisher) {
	if p == nil {
		p = events.Nop{}
	}
	s.publisher = p
}

func (s *Service) SetInvalidator(inv Invalidator) {
	s.invalidator = inv
}

// facts loads the prediction and its report, plus the caller's profile and
// history when they exist.
func (s *Service) facts(ctx context.Context, sess *auth.Session, predictionID uuid.UUID) (Facts, error) {
	pred, err := s.predictions.GetByID(ctx, sess.UserID, predictionID)
	if err != nil {
		return Facts{}, fmt.Errorf("load prediction: %w", err)
	}
	hr, err := s.reports.GetByPrediction(ctx, sess.UserID, predictionID)
	if err != nil {
		return Facts{}, fmt.Errorf("load health report: %w", err)
	}

	f := Facts{
		PatientID:    sess.UserID,
		Email:        sess.Email,
		VisitDate:    pred.Scan.UploadDate,
		Label:        pred.DiseaseType,
		Confidence:   pred.ConfidenceScore,
		Severity:     pred.SeverityLevel,
		FollowUpDate: hr.FollowUpDate,
	}

	profile, err := s.profiles.GetByID(ctx, sess.UserID)
	switch {
	case err == nil:
		f.PatientName = profile.FullName
		if profile.Email != "" {
			f.Email = profile.Email
		}
	case !errors.Is(err, db.ErrNotFound):
		return Facts{}, fmt.Errorf("load profile: %w", err)
	}

	history, err := s.histories.GetByUser(ctx, sess.UserID)
	switch {
	case err == nil:
		f.History = history
	case !errors.Is(err, db.ErrNotFound):
		return Facts{}, fmt.Errorf("load medical history: %w", err)
	}
	return f, nil
}

// generate returns trimmed generated text or an error. Empty output counts
// as a failure.
func (s *Service) generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.genTimeout)
	defer cancel()
	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty output", textgen.ErrGenerationFailed)
	}
	return text, nil
}

// GenerateClinician builds the clinician report for a prediction and stores
// it on the prediction's health report. A failed generation only drops the
// Recommendations section.
func (s *Service) GenerateClinician(ctx context.Context, sess *auth.Session, predictionID uuid.UUID) (*Generated, error) {
	f, err := s.facts(ctx, sess, predictionID)
	if err != nil {
		return nil, err
	}

	recommendations, genErr := s.generate(ctx, ClinicianPrompt(f))
	if genErr != nil {
		s.logger.Warn().Err(genErr).Str("prediction_id", predictionID.String()).
			Msg("recommendations unavailable, using template only")
	}
	text := BuildClinicianReport(f, recommendations)

	if err := s.reports.SetDoctorReport(ctx, sess.UserID, predictionID, text); err != nil {
		return nil, fmt.Errorf("save clinician report: %w", err)
	}
	s.afterSave(ctx, sess, predictionID, KindClinician)

	return &Generated{PredictionID: predictionID, Kind: KindClinician, Text: text, Generated: genErr == nil}, nil
}

// GeneratePatient asks the generator for a layperson summary and falls back
// to a fixed template on any generation failure.
func (s *Service) GeneratePatient(ctx context.Context, sess *auth.Session, predictionID uuid.UUID) (*Generated, error) {
	f, err := s.facts(ctx, sess, predictionID)
	if err != nil {
		return nil, err
	}

	text, genErr := s.generate(ctx, PatientPrompt(f))
	if genErr != nil {
		s.logger.Warn().Err(genErr).Str("prediction_id", predictionID.String()).
			Msg("patient summary generation failed, using fallback")
		text = PatientFallback(f)
	}

	if err := s.reports.SetPatientReport(ctx, sess.UserID, predictionID, text); err != nil {
		return nil, fmt.Errorf("save patient report: %w", err)
	}
	s.afterSave(ctx, sess, predictionID, KindPatient)

	return &Generated{PredictionID: predictionID, Kind: KindPatient, Text: text, Generated: genErr == nil}, nil
}

func (s *Service) afterSave(ctx context.Context, sess *auth.Session, predictionID uuid.UUID, kind Kind) {
	if err := s.publisher.Publish(ctx, events.Event{
		Type:         events.TypeReportGenerated,
		UserID:       sess.UserID,
		PredictionID: &predictionID,
		ReportKind:   string(kind),
	}); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish report event")
	}
	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, sess.UserID); err != nil {
			s.logger.Warn().Err(err).Str("user_id", sess.UserID.String()).Msg("failed to invalidate dashboard cache")
		}
	}
}

// Get returns the health report of a prediction with both texts.
func (s *Service) Get(ctx context.Context, sess *auth.Session, predictionID uuid.UUID) (*diagnosis.HealthReport, error) {
	return s.reports.GetByPrediction(ctx, sess.UserID, predictionID)
}

// Download renders the prediction's report texts as plain text.
func (s *Service) Download(ctx context.Context, sess *auth.Session, predictionID uuid.UUID) (string, error) {
	hr, err := s.reports.GetByPrediction(ctx, sess.UserID, predictionID)
	if err != nil {
		return "", err
	}
	return FormatDownload(hr.DoctorReport, hr.PatientReport), nil
}

// Latest returns the user's most recent health report, or db.ErrNotFound.
func (s *Service) Latest(ctx context.Context, sess *auth.Session) (*diagnosis.HealthReport, error) {
	return s.reports.Latest(ctx, sess.UserID)
}
