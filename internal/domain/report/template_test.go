package report

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/octvision/octvision/internal/domain/diagnosis"
)

func TestConfidencePercent(t *testing.T) {
	tests := map[float64]string{0: "0.0", 0.5: "50.0", 0.9134: "91.3", 1: "100.0"}
	for in, want := range tests {
		if got := ConfidencePercent(in); got != want {
			t.Errorf("ConfidencePercent(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildClinicianReport_OmitsEmptyIdentityLines(t *testing.T) {
	out := BuildClinicianReport(Facts{
		Label:      "NORMAL",
		Confidence: 0.4,
		Severity:   diagnosis.SeverityLow,
		VisitDate:  time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC),
	}, "")

	for _, absent := range []string{"Patient Name:", "Email:", "Patient ID:", "Recommendations:", "Follow-up Date:"} {
		if strings.Contains(out, absent) {
			t.Errorf("unexpected %q in:\n%s", absent, out)
		}
	}
	if !strings.Contains(out, "Visit Date: January 5, 2025") {
		t.Errorf("visit date missing:\n%s", out)
	}
	if !strings.Contains(out, "previous ocular surgeries: None") {
		t.Errorf("empty history should read None:\n%s", out)
	}
}

func TestBuildClinicianReport_PrescriptionBranch(t *testing.T) {
	for _, tt := range []struct {
		severity diagnosis.Severity
		want     string
	}{
		{diagnosis.SeverityHigh, prescriptionHigh},
		{diagnosis.SeverityMedium, prescriptionRoutine},
		{diagnosis.SeverityLow, prescriptionRoutine},
	} {
		out := BuildClinicianReport(Facts{PatientID: uuid.New(), Label: "CNV", Severity: tt.severity}, "")
		if !strings.Contains(out, tt.want) {
			t.Errorf("%s: expected prescription %q", tt.severity, tt.want)
		}
	}
}

func TestFormatDownload(t *testing.T) {
	doc, pat := "Doc text", ""
	got := FormatDownload(&doc, &pat)
	if got != "Doctor Report:\nDoc text\n\nPatient Report:\nN/A" {
		t.Errorf("unexpected %q", got)
	}
}
