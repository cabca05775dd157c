package patient

import (
	"time"

	"github.com/google/uuid"
)

// OtherChoice marks a field whose value is the user-supplied custom text.
const OtherChoice = "Other"

// MedicalHistory maps to the medical_histories table. A user has at most one.
type MedicalHistory struct {
	ID                       uuid.UUID  `db:"id" json:"id"`
	UserID                   uuid.UUID  `db:"user_id" json:"user_id"`
	ExistingConditions       string     `db:"existing_conditions" json:"existing_conditions"`
	ChronicDiseases          string     `db:"chronic_diseases" json:"chronic_diseases"`
	PreviousEyeConditions    string     `db:"previous_eye_conditions" json:"previous_eye_conditions"`
	PreviousOcularSurgeries  string     `db:"previous_ocular_surgeries" json:"previous_ocular_surgeries"`
	FamilyHistoryEyeDiseases string     `db:"family_history_eye_diseases" json:"family_history_eye_diseases"`
	LastCheckupDate          *time.Time `db:"last_checkup_date" json:"last_checkup_date,omitempty"`
	CreatedAt                time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time  `db:"updated_at" json:"updated_at"`
}

// Profile maps to the profiles table, owned by the identity provider.
type Profile struct {
	ID        uuid.UUID `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Choice is a form value plus the free text used when Value is "Other".
type Choice struct {
	Value  string `json:"value"`
	Custom string `json:"custom,omitempty"`
}

// HistoryInput is the body of a medical history save.
type HistoryInput struct {
	ExistingConditions       Choice `json:"existing_conditions"`
	ChronicDiseases          Choice `json:"chronic_diseases"`
	PreviousEyeConditions    Choice `json:"previous_eye_conditions"`
	PreviousOcularSurgeries  Choice `json:"previous_ocular_surgeries"`
	FamilyHistoryEyeDiseases Choice `json:"family_history_eye_diseases"`
	// LastCheckupDate is a calendar date, YYYY-MM-DD. Empty clears it.
	LastCheckupDate string `json:"last_checkup_date,omitempty"`
}

// HistoryOptions lists the predefined choices per field. Any field also
// accepts "Other" with custom text.
var HistoryOptions = map[string][]string{
	"existing_conditions":         {"Diabetes", "Hypertension", "High Cholesterol", "Asthma"},
	"chronic_diseases":            {"Heart Disease", "Kidney Disease", "Liver Disease", "Cancer"},
	"previous_eye_conditions":     {"Glaucoma", "Cataract", "Macular Degeneration", "Diabetic Retinopathy"},
	"previous_ocular_surgeries":   {"Cataract Surgery", "LASIK", "Retinal Detachment Repair", "Glaucoma Surgery"},
	"family_history_eye_diseases": {"Glaucoma", "Macular Degeneration", "Diabetic Retinopathy", "Retinitis Pigmentosa"},
}
