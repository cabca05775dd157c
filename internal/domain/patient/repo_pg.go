package patient

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

type historyRepoPG struct{ pool *pgxpool.Pool }

func NewMedicalHistoryRepoPG(pool *pgxpool.Pool) MedicalHistoryRepository {
	return &historyRepoPG{pool: pool}
}

func (r *historyRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const historyCols = `id, user_id, existing_conditions, chronic_diseases, previous_eye_conditions,
	previous_ocular_surgeries, family_history_eye_diseases, last_checkup_date, created_at, updated_at`

func (r *historyRepoPG) scanRow(row pgx.Row) (*MedicalHistory, error) {
	var h MedicalHistory
	err := row.Scan(&h.ID, &h.UserID, &h.ExistingConditions, &h.ChronicDiseases, &h.PreviousEyeConditions,
		&h.PreviousOcularSurgeries, &h.FamilyHistoryEyeDiseases, &h.LastCheckupDate, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, db.MapError(err)
	}
	return &h, nil
}

func (r *historyRepoPG) GetByUser(ctx context.Context, userID uuid.UUID) (*MedicalHistory, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx,
		`SELECT `+historyCols+` FROM medical_histories WHERE user_id = $1`, userID))
}

// Upsert keys on user_id so concurrent first saves cannot create two rows.
func (r *historyRepoPG) Upsert(ctx context.Context, h *MedicalHistory) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	saved, err := r.scanRow(r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_histories (id, user_id, existing_conditions, chronic_diseases,
			previous_eye_conditions, previous_ocular_surgeries, family_history_eye_diseases, last_checkup_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (user_id) DO UPDATE SET
			existing_conditions = EXCLUDED.existing_conditions,
			chronic_diseases = EXCLUDED.chronic_diseases,
			previous_eye_conditions = EXCLUDED.previous_eye_conditions,
			previous_ocular_surgeries = EXCLUDED.previous_ocular_surgeries,
			family_history_eye_diseases = EXCLUDED.family_history_eye_diseases,
			last_checkup_date = EXCLUDED.last_checkup_date,
			updated_at = NOW()
		RETURNING `+historyCols,
		h.ID, h.UserID, h.ExistingConditions, h.ChronicDiseases,
		h.PreviousEyeConditions, h.PreviousOcularSurgeries, h.FamilyHistoryEyeDiseases, h.LastCheckupDate))
	if err != nil {
		return err
	}
	*h = *saved
	return nil
}

type profileRepoPG struct{ pool *pgxpool.Pool }

func NewProfileRepoPG(pool *pgxpool.Pool) ProfileRepository {
	return &profileRepoPG{pool: pool}
}

func (r *profileRepoPG) GetByID(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	var p Profile
	err := r.pool.QueryRow(ctx,
		`SELECT id, full_name, email, created_at FROM profiles WHERE id = $1`, userID).
		Scan(&p.ID, &p.FullName, &p.Email, &p.CreatedAt)
	if err != nil {
		return nil, db.MapError(err)
	}
	return &p, nil
}
