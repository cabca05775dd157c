package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/octvision/octvision/internal/domain/diagnosis"
	"github.com/octvision/octvision/internal/domain/patient"
	"github.com/octvision/octvision/internal/platform/auth"
	"github.com/octvision/octvision/internal/platform/cache"
	"github.com/octvision/octvision/internal/platform/db"
)

// maxRows bounds every collection read for one dashboard.
const maxRows = 500

const defaultCacheTTL = time.Minute

// generationTTL outlives any snapshot, so an expired counter restarting at
// zero never meets a snapshot written under the old zero.
const generationTTL = 24 * time.Hour

// Snapshot is the full dashboard of one user.
type Snapshot struct {
	Profile              *patient.Profile                `json:"profile"`
	Scans                []*diagnosis.ScanImage          `json:"scans"`
	Predictions          []*diagnosis.PredictionWithScan `json:"predictions"`
	MedicalHistory       *patient.MedicalHistory         `json:"medical_history"`
	Reports              []*diagnosis.HealthReport       `json:"reports"`
	Progression          Progression                     `json:"progression"`
	ProgressionByDisease map[string]Progression          `json:"progression_by_disease"`
	Stats                QuickStats                      `json:"stats"`
	Trend                []TrendPoint                    `json:"trend"`
	GeneratedAt          time.Time                       `json:"generated_at"`
}

type Service struct {
	scans       diagnosis.ScanRepository
	predictions diagnosis.PredictionRepository
	reports     diagnosis.HealthReportRepository
	histories   patient.MedicalHistoryRepository
	profiles    patient.ProfileRepository
	logger      zerolog.Logger

	cache    cache.Cache
	cacheTTL time.Duration
	now      func() time.Time
}

func NewService(
	scans diagnosis.ScanRepository,
	predictions diagnosis.PredictionRepository,
	reports diagnosis.HealthReportRepository,
	histories patient.MedicalHistoryRepository,
	profiles patient.ProfileRepository,
	logger zerolog.Logger,
) *Service {
	return &Service{
		scans:       scans,
		predictions: predictions,
		reports:     reports,
		histories:   histories,
		profiles:    profiles,
		logger:      logger.With().Str("component", "dashboard").Logger(),
		cache:       cache.Noop{},
		cacheTTL:    defaultCacheTTL,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetCache enables read-through caching of snapshots.
func (s *Service) SetCache(c cache.Cache, ttl time.Duration) {
	if c == nil {
		c = cache.Noop{}
	}
	s.cache = c
	if ttl > 0 {
		s.cacheTTL = ttl
	}
}

func generationKey(userID uuid.UUID) string {
	return "dashboard:gen:" + userID.String()
}

func snapshotKey(userID uuid.UUID, gen int64) string {
	return "dashboard:" + userID.String() + ":" + strconv.FormatInt(gen, 10)
}

// Invalidate retires the cached snapshot of userID by bumping its
// generation. A Get that started before the bump may still write its
// snapshot, but only under the retired generation, which no later Get reads.
// Writers call it after any change to the user's records.
func (s *Service) Invalidate(ctx context.Context, userID uuid.UUID) error {
	_, err := s.cache.Bump(ctx, generationKey(userID), generationTTL+s.cacheTTL)
	return err
}

// Get returns the caller's dashboard, from cache when fresh. Cache failures
// are logged and fall through to the database.
func (s *Service) Get(ctx context.Context, sess *auth.Session) (*Snapshot, error) {
	log := s.logger.With().Str("user_id", sess.UserID.String()).Logger()

	gen, err := s.cache.Generation(ctx, generationKey(sess.UserID))
	if err != nil {
		log.Warn().Err(err).Msg("dashboard cache generation read failed")
		return s.Build(ctx, sess)
	}
	key := snapshotKey(sess.UserID, gen)

	var cached Snapshot
	hit, err := s.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		log.Warn().Err(err).Msg("dashboard cache read failed")
	}
	if hit {
		return &cached, nil
	}

	snap, err := s.Build(ctx, sess)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, key, snap, s.cacheTTL); err != nil {
		log.Warn().Err(err).Msg("dashboard cache write failed")
	}
	return snap, nil
}

// Build reads every collection concurrently and derives the aggregate. The
// first failing read cancels the others.
func (s *Service) Build(ctx context.Context, sess *auth.Session) (*Snapshot, error) {
	var (
		snap                                 = &Snapshot{GeneratedAt: s.now()}
		totalScans, totalPreds, totalReports int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, total, err := s.scans.ListByUser(gctx, sess.UserID, maxRows, 0)
		if err != nil {
			return fmt.Errorf("list scans: %w", err)
		}
		snap.Scans, totalScans = items, total
		return nil
	})
	g.Go(func() error {
		items, total, err := s.predictions.ListByUser(gctx, sess.UserID, maxRows, 0)
		if err != nil {
			return fmt.Errorf("list predictions: %w", err)
		}
		snap.Predictions, totalPreds = items, total
		return nil
	})
	g.Go(func() error {
		items, total, err := s.reports.ListByUser(gctx, sess.UserID, maxRows, 0)
		if err != nil {
			return fmt.Errorf("list health reports: %w", err)
		}
		snap.Reports, totalReports = items, total
		return nil
	})
	g.Go(func() error {
		h, err := s.histories.GetByUser(gctx, sess.UserID)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("get medical history: %w", err)
		}
		snap.MedicalHistory = h
		return nil
	})
	g.Go(func() error {
		p, err := s.profiles.GetByID(gctx, sess.UserID)
		switch {
		case err == nil:
			snap.Profile = p
		case errors.Is(err, db.ErrNotFound):
			snap.Profile = &patient.Profile{ID: sess.UserID, Email: sess.Email}
		default:
			return fmt.Errorf("get profile: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if snap.Scans == nil {
		snap.Scans = []*diagnosis.ScanImage{}
	}
	if snap.Predictions == nil {
		snap.Predictions = []*diagnosis.PredictionWithScan{}
	}
	if snap.Reports == nil {
		snap.Reports = []*diagnosis.HealthReport{}
	}

	snap.Progression = ProgressionOf(confidences(snap.Predictions))
	snap.ProgressionByDisease = ProgressionByDisease(snap.Predictions)
	snap.Stats = computeStats(snap.GeneratedAt,
		snap.Scans, totalScans, snap.Predictions, totalPreds, snap.Reports, totalReports)
	snap.Trend = trendSeries(snap.Predictions)
	return snap, nil
}
