package patient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/octvision/octvision/internal/platform/auth"
	"github.com/octvision/octvision/internal/platform/db"
)

const maxFieldLength = 500

// ErrInvalidHistory is wrapped by every medical history validation failure.
var ErrInvalidHistory = errors.New("invalid medical history")

// FieldError names the rejected field.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error { return ErrInvalidHistory }

func (e *FieldError) HTTPStatus() int { return http.StatusBadRequest }

// Invalidator drops cached per-user aggregates after a write.
type Invalidator interface {
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

type Service struct {
	histories   MedicalHistoryRepository
	profiles    ProfileRepository
	logger      zerolog.Logger
	invalidator Invalidator
	now         func() time.Time
}

func NewService(histories MedicalHistoryRepository, profiles ProfileRepository, logger zerolog.Logger) *Service {
	return &Service{
		histories: histories,
		profiles:  profiles,
		logger:    logger.With().Str("component", "patient").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetInvalidator configures the cache dropped after a history save.
func (s *Service) SetInvalidator(inv Invalidator) {
	s.invalidator = inv
}

// GetHistory returns db.ErrNotFound when the user never saved one.
func (s *Service) GetHistory(ctx context.Context, sess *auth.Session) (*MedicalHistory, error) {
	return s.histories.GetByUser(ctx, sess.UserID)
}

// SaveHistory creates the user's history on first save and replaces it after.
func (s *Service) SaveHistory(ctx context.Context, sess *auth.Session, in HistoryInput) (*MedicalHistory, error) {
	h := &MedicalHistory{UserID: sess.UserID}

	fields := []struct {
		name   string
		choice Choice
		dst    *string
	}{
		{"existing_conditions", in.ExistingConditions, &h.ExistingConditions},
		{"chronic_diseases", in.ChronicDiseases, &h.ChronicDiseases},
		{"previous_eye_conditions", in.PreviousEyeConditions, &h.PreviousEyeConditions},
		{"previous_ocular_surgeries", in.PreviousOcularSurgeries, &h.PreviousOcularSurgeries},
		{"family_history_eye_diseases", in.FamilyHistoryEyeDiseases, &h.FamilyHistoryEyeDiseases},
	}
	for _, f := range fields {
		v, err := Resolve(f.name, f.choice)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}

	if in.LastCheckupDate != "" {
		d, err := time.Parse(time.DateOnly, in.LastCheckupDate)
		if err != nil {
			return nil, &FieldError{Field: "last_checkup_date", Reason: "expected YYYY-MM-DD"}
		}
		if d.After(latestCheckupDate(s.now())) {
			return nil, &FieldError{Field: "last_checkup_date", Reason: "must not be in the future"}
		}
		h.LastCheckupDate = &d
	}

	if err := s.histories.Upsert(ctx, h); err != nil {
		return nil, fmt.Errorf("save medical history: %w", err)
	}

	if s.invalidator != nil {
		if err := s.invalidator.Invalidate(ctx, sess.UserID); err != nil {
			s.logger.Warn().Err(err).Str("user_id", sess.UserID.String()).Msg("failed to invalidate dashboard cache")
		}
	}
	return h, nil
}

// latestCheckupDate is the last calendar date a client anywhere can call
// today. Dates carry no zone, so a user east of UTC may already be a day
// ahead of now.
func latestCheckupDate(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}

// Resolve returns the stored text for a choice: the custom text when the
// value is "Other", the value otherwise.
func Resolve(field string, c Choice) (string, error) {
	v := strings.TrimSpace(c.Value)
	if v == OtherChoice {
		v = strings.TrimSpace(c.Custom)
		if v == "" {
			return "", &FieldError{Field: field, Reason: "custom value is required when Other is selected"}
		}
	}
	if utf8.RuneCountInString(v) > maxFieldLength {
		return "", &FieldError{Field: field, Reason: fmt.Sprintf("must be at most %d characters", maxFieldLength)}
	}
	return v, nil
}

// GetProfile returns the caller's profile. A user without a profile row gets
// one built from the session.
func (s *Service) GetProfile(ctx context.Context, sess *auth.Session) (*Profile, error) {
	p, err := s.profiles.GetByID(ctx, sess.UserID)
	if err == nil {
		return p, nil
	}
	if errors.Is(err, db.ErrNotFound) {
		return &Profile{ID: sess.UserID, Email: sess.Email}, nil
	}
	return nil, err
}
