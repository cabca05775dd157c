package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/octvision/octvision/internal/platform/auth"
	"github.com/octvision/octvision/internal/platform/blobstore"
	"github.com/octvision/octvision/internal/platform/classifier"
	"github.com/octvision/octvision/internal/platform/db"
	"github.com/octvision/octvision/internal/platform/events"
)

// Classifier labels an image. *classifier.Client satisfies it.
type Classifier interface {
	Classify(ctx context.Context, img classifier.Image) (*classifier.Result, error)
}

// Invalidator drops cached per-user aggregates after a write.
type Invalidator interface {
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

type Service struct {
	scans       ScanRepository
	predictions PredictionRepository
	reports     HealthReportRepository
	tx          db.Transactor
	store       blobstore.ObjectStore
	classifier  Classifier
	logger      zerolog.Logger

	publisher   events.Publisher
	invalidator Invalidator
	now         func() time.Time
}

func NewService(
	scans ScanRepository,
	predictions PredictionRepository,
	reports HealthReportRepository,
	tx db.Transactor,
	store blobstore.ObjectStore,
	cls Classifier,
	logger zerolog.Logger,
) *Service {
	return &Service{
		scans:       scans,
		predictions: predictions,
		reports:     reports,
		tx:          tx,
		store:       store,
		classifier:  cls,
		logger:      logger.With().Str("component", "diagnosis").Logger(),
		publisher:   events.Nop{},
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetPublisher configures where lifecycle events are sent.
func (s *Service) SetPublisher(p events.Publisher) {
	if p == nil {
		p = events.Nop{}
	}
	s.publisher = p
}

// SetInvalidator configures the cache dropped after writes.
func (s *Service) SetInvalidator(inv Invalidator) {
	s.invalidator = inv
}

// Diagnose validates and classifies an upload, stores the image and records
// the scan, prediction and health report atomically.
func (s *Service) Diagnose(ctx context.Context, sess *auth.Session, up Upload) (*Result, error) {
	contentType, err := ValidateUpload(up)
	if err != nil {
		return nil, err
	}

	res, err := s.classifier.Classify(ctx, classifier.Image{
		FileName:    up.FileName,
		ContentType: contentType,
		Data:        up.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("classify scan: %w", err)
	}

	key := blobstore.NewKey(sess.UserID, up.FileName, contentType)
	if err := s.store.Put(ctx, key, contentType, up.Data); err != nil {
		return nil, fmt.Errorf("store scan image: %w", err)
	}

	now := s.now()
	scan := &ScanImage{
		ID:           uuid.New(),
		UserID:       sess.UserID,
		StoragePath:  key,
		ImageURL:     s.store.URL(key),
		ContentType:  contentType,
		SizeBytes:    int64(len(up.Data)),
		ImageQuality: ImageQualityPending,
		UploadDate:   now,
	}
	prediction := &Prediction{
		ID:              uuid.New(),
		ImageID:         scan.ID,
		DiseaseType:     res.Label,
		ConfidenceScore: res.Confidence,
		SeverityLevel:   SeverityFor(res.Confidence),
		Probabilities:   res.Probabilities,
		PredictionDate:  now,
	}
	report := &HealthReport{
		ID:                         uuid.New(),
		PredictionID:               prediction.ID,
		UserID:                     sess.UserID,
		FollowUpDate:               FollowUpDate(now),
		SeverityStatus:             prediction.SeverityLevel,
		RequiresImmediateAttention: RequiresImmediateAttention(res.Confidence),
		ReportDate:                 now,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.scans.Create(ctx, scan); err != nil {
			return fmt.Errorf("insert scan: %w", err)
		}
		if err := s.predictions.Create(ctx, prediction); err != nil {
			return fmt.Errorf("insert prediction: %w", err)
		}
		if err := s.reports.Create(ctx, report); err != nil {
			return fmt.Errorf("insert health report: %w", err)
		}
		return nil
	})
	if err != nil {
		// The rows were rolled back; remove the object so nothing is orphaned.
		if delErr := s.store.Delete(context.WithoutCancel(ctx), key); delErr != nil && !errors.Is(delErr, blobstore.ErrObjectNotFound) {
			s.logger.Warn().Err(delErr).Str("key", key).Msg("failed to remove stored scan after rollback")
		}
		return nil, err
	}

	s.logger.Info().
		Str("user_id", sess.UserID.String()).
		Str("scan_id", scan.ID.String()).
		Str("label", prediction.DiseaseType).
		Float64("confidence", prediction.ConfidenceScore).
		Str("severity", string(prediction.SeverityLevel)).
		Msg("diagnosis completed")

	s.publish(ctx, events.Event{
		Type:         events.TypeDiagnosisCompleted,
		UserID:       sess.UserID,
		ScanID:       &scan.ID,
		PredictionID: &prediction.ID,
		Label:        prediction.DiseaseType,
		Confidence:   prediction.ConfidenceScore,
		Severity:     string(prediction.SeverityLevel),
		OccurredAt:   now,
	})
	s.invalidate(ctx, sess.UserID)

	return &Result{Scan: scan, Prediction: prediction, Report: report}, nil
}

func (s *Service) ListScans(ctx context.Context, sess *auth.Session, limit, offset int) ([]*ScanImage, int, error) {
	return s.scans.ListByUser(ctx, sess.UserID, limit, offset)
}

func (s *Service) GetScan(ctx context.Context, sess *auth.Session, id uuid.UUID) (*ScanImage, error) {
	return s.scans.GetByID(ctx, sess.UserID, id)
}

// OpenScanImage returns a reader over the stored image. The caller closes it.
func (s *Service) OpenScanImage(ctx context.Context, sess *auth.Session, id uuid.UUID) (io.ReadCloser, *ScanImage, error) {
	scan, err := s.scans.GetByID(ctx, sess.UserID, id)
	if err != nil {
		return nil, nil, err
	}
	rc, _, err := s.store.Get(ctx, scan.StoragePath)
	if err != nil {
		if errors.Is(err, blobstore.ErrObjectNotFound) {
			return nil, nil, fmt.Errorf("scan image %s: %w", scan.StoragePath, db.ErrNotFound)
		}
		return nil, nil, fmt.Errorf("read scan image: %w", err)
	}
	return rc, scan, nil
}

// DeleteScan removes the scan's health reports, predictions and row in one
// transaction, then the stored object. The object outlives a failed
// transaction, and an already missing object is not an error.
func (s *Service) DeleteScan(ctx context.Context, sess *auth.Session, id uuid.UUID) error {
	scan, err := s.scans.GetByID(ctx, sess.UserID, id)
	if err != nil {
		return err
	}

	var removedPredictions int64
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.reports.DeleteByScan(ctx, scan.ID); err != nil {
			return fmt.Errorf("delete health reports: %w", err)
		}
		n, err := s.predictions.DeleteByScan(ctx, scan.ID)
		if err != nil {
			return fmt.Errorf("delete predictions: %w", err)
		}
		removedPredictions = n

		if err := s.scans.Delete(ctx, sess.UserID, scan.ID); err != nil {
			return fmt.Errorf("delete scan: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.store.Delete(context.WithoutCancel(ctx), scan.StoragePath); err != nil && !errors.Is(err, blobstore.ErrObjectNotFound) {
		s.logger.Warn().Err(err).Str("key", scan.StoragePath).Msg("failed to delete stored scan image")
	}

	s.logger.Info().
		Str("user_id", sess.UserID.String()).
		Str("scan_id", scan.ID.String()).
		Int64("predictions", removedPredictions).
		Msg("scan deleted")

	s.publish(ctx, events.Event{
		Type:   events.TypeScanDeleted,
		UserID: sess.UserID,
		ScanID: &scan.ID,
	})
	s.invalidate(ctx, sess.UserID)
	return nil
}

func (s *Service) ListPredictions(ctx context.Context, sess *auth.Session, limit, offset int) ([]*PredictionWithScan, int, error) {
	return s.predictions.ListByUser(ctx, sess.UserID, limit, offset)
}

func (s *Service) GetPrediction(ctx context.Context, sess *auth.Session, id uuid.UUID) (*PredictionWithScan, error) {
	return s.predictions.GetByID(ctx, sess.UserID, id)
}

func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn().Err(err).Str("type", e.Type).Msg("failed to publish event")
	}
}

func (s *Service) invalidate(ctx context.Context, userID uuid.UUID) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Invalidate(ctx, userID); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("failed to invalidate dashboard cache")
	}
}
