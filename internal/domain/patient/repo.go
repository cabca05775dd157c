package patient

import (
	"context"

	"github.com/google/uuid"
)

type MedicalHistoryRepository interface {
	GetByUser(ctx context.Context, userID uuid.UUID) (*MedicalHistory, error)
	// Upsert inserts the user's history or replaces the existing one.
	Upsert(ctx context.Context, h *MedicalHistory) error
}

type ProfileRepository interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*Profile, error)
}
