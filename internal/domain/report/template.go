package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/octvision/octvision/internal/domain/diagnosis"
	"github.com/octvision/octvision/internal/domain/patient"
)

// DownloadFileName is the attachment name of the text download.
const DownloadFileName = "oct-diagnosis-report.txt"

const (
	prescriptionHigh    = "Urgent referral to a retina specialist is recommended. Begin treatment as clinically indicated and review the patient within one week."
	prescriptionRoutine = "Continue routine monitoring. Repeat OCT imaging at the scheduled follow-up visit, or sooner if visual symptoms change."

	patientInstruction   = "Please generate a simple, patient-friendly explanation of the diagnosis and what the patient should do next. Respond ONLY with the summary, do not include any extra text, labels, or formatting."
	clinicianInstruction = "Please generate a detailed doctor-style report for this patient, including recommendations and next steps."
)

// Facts is everything a report is built from.
type Facts struct {
	PatientID    uuid.UUID
	PatientName  string
	Email        string
	VisitDate    time.Time
	History      *patient.MedicalHistory
	Label        string
	Confidence   float64
	Severity     diagnosis.Severity
	FollowUpDate time.Time
}

// ConfidencePercent renders a [0,1] confidence as a percentage with one
// decimal, e.g. 0.9134 -> "91.3".
func ConfidencePercent(c float64) string {
	return fmt.Sprintf("%.1f", c*100)
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "None"
	}
	return s
}

type historyFields struct {
	existing, chronic, eye, surgeries, family string
}

func (f Facts) history() historyFields {
	if f.History == nil {
		return historyFields{"None", "None", "None", "None", "None"}
	}
	return historyFields{
		existing:  orNone(f.History.ExistingConditions),
		chronic:   orNone(f.History.ChronicDiseases),
		eye:       orNone(f.History.PreviousEyeConditions),
		surgeries: orNone(f.History.PreviousOcularSurgeries),
		family:    orNone(f.History.FamilyHistoryEyeDiseases),
	}
}

// BuildClinicianReport renders the deterministic clinician report. A
// non-empty recommendations text is appended as its own section.
func BuildClinicianReport(f Facts, recommendations string) string {
	var b strings.Builder
	h := f.history()

	b.WriteString("OCT DIAGNOSIS REPORT\n\n")
	if f.PatientName != "" {
		fmt.Fprintf(&b, "Patient Name: %s\n", f.PatientName)
	}
	if f.Email != "" {
		fmt.Fprintf(&b, "Email: %s\n", f.Email)
	}
	if f.PatientID != uuid.Nil {
		fmt.Fprintf(&b, "Patient ID: %s\n", f.PatientID)
	}
	fmt.Fprintf(&b, "Visit Date: %s\n\n", f.VisitDate.Format("January 2, 2006"))

	b.WriteString("Clinical Findings:\n")
	fmt.Fprintf(&b, "The patient's medical history includes existing conditions: %s; chronic diseases: %s; "+
		"previous eye conditions: %s; previous ocular surgeries: %s; family history of eye diseases: %s. ",
		h.existing, h.chronic, h.eye, h.surgeries, h.family)
	fmt.Fprintf(&b, "OCT imaging analysis indicates %s with %s%% confidence, classified as %s severity.\n\n",
		f.Label, ConfidencePercent(f.Confidence), f.Severity)

	b.WriteString("Prescription:\n")
	if f.Severity == diagnosis.SeverityHigh {
		b.WriteString(prescriptionHigh)
	} else {
		b.WriteString(prescriptionRoutine)
	}
	b.WriteString("\n")

	if !f.FollowUpDate.IsZero() {
		fmt.Fprintf(&b, "\nFollow-up Date: %s\n", f.FollowUpDate.Format(time.DateOnly))
	}

	if rec := strings.TrimSpace(recommendations); rec != "" {
		b.WriteString("\nRecommendations:\n")
		b.WriteString(rec)
		b.WriteString("\n")
	}
	return b.String()
}

func promptFacts(f Facts) string {
	h := f.history()
	return fmt.Sprintf("Patient Name: %s\n"+
		"Medical History: Existing Conditions: %s, Chronic Diseases: %s, Previous Eye Conditions: %s\n"+
		"Diagnosis: %s\n"+
		"Confidence: %s%%\n"+
		"Severity: %s\n",
		f.PatientName, h.existing, h.chronic, h.eye, f.Label, ConfidencePercent(f.Confidence), f.Severity)
}

// PatientPrompt asks the generator for a layperson summary.
func PatientPrompt(f Facts) string {
	return promptFacts(f) + "\n" + patientInstruction
}

// ClinicianPrompt asks the generator for recommendations and next steps.
func ClinicianPrompt(f Facts) string {
	return promptFacts(f) + "\n" + clinicianInstruction
}

// PatientFallback is used whenever generation fails or returns nothing.
func PatientFallback(f Facts) string {
	return fmt.Sprintf("Your OCT scan analysis suggests %s with a confidence of %s%%. "+
		"The severity level is %s. "+
		"Please consult your doctor to discuss these results and the next steps for your eye health.",
		f.Label, ConfidencePercent(f.Confidence), f.Severity)
}

// FormatDownload renders both report texts for the text download.
func FormatDownload(doctorText, patientText *string) string {
	return fmt.Sprintf("Doctor Report:\n%s\n\nPatient Report:\n%s", textOrNA(doctorText), textOrNA(patientText))
}

func textOrNA(s *string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return "N/A"
	}
	return *s
}
