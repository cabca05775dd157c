package dashboard

import (
	"time"

	"github.com/samber/lo"

	"github.com/octvision/octvision/internal/domain/diagnosis"
)

// ReminderWindowDays is how close a follow-up must be to raise the reminder.
const ReminderWindowDays = 7

type QuickStats struct {
	TotalScans        int            `json:"total_scans"`
	TotalPredictions  int            `json:"total_predictions"`
	TotalReports      int            `json:"total_reports"`
	LatestScanDate    *time.Time     `json:"latest_scan_date,omitempty"`
	LatestDiagnosis   string         `json:"latest_diagnosis,omitempty"`
	LatestSeverity    string         `json:"latest_severity,omitempty"`
	NextFollowUp      *time.Time     `json:"next_follow_up,omitempty"`
	DaysUntilFollowUp *int           `json:"days_until_follow_up,omitempty"`
	FollowUpReminder  bool           `json:"follow_up_reminder"`
	RequiresAttention bool           `json:"requires_attention"`
	SeverityCounts    map[string]int `json:"severity_counts"`
}

// TrendPoint is one chart sample. Trend series run oldest to newest.
type TrendPoint struct {
	Date       time.Time `json:"date"`
	Confidence float64   `json:"confidence"`
	Label      string    `json:"label"`
	Severity   string    `json:"severity"`
}

// computeStats expects every slice ordered newest first.
func computeStats(
	now time.Time,
	scans []*diagnosis.ScanImage, totalScans int,
	preds []*diagnosis.PredictionWithScan, totalPreds int,
	reports []*diagnosis.HealthReport, totalReports int,
) QuickStats {
	st := QuickStats{
		TotalScans:       totalScans,
		TotalPredictions: totalPreds,
		TotalReports:     totalReports,
		SeverityCounts: lo.CountValuesBy(preds, func(p *diagnosis.PredictionWithScan) string {
			return string(p.SeverityLevel)
		}),
	}

	if len(scans) > 0 {
		d := scans[0].UploadDate
		st.LatestScanDate = &d
	}
	if len(preds) > 0 {
		st.LatestDiagnosis = preds[0].DiseaseType
		st.LatestSeverity = string(preds[0].SeverityLevel)
	}
	if len(reports) > 0 {
		latest := reports[0]
		follow := latest.FollowUpDate
		days := DaysBetween(now, follow)
		st.NextFollowUp = &follow
		st.DaysUntilFollowUp = &days
		st.FollowUpReminder = days >= 0 && days <= ReminderWindowDays
		st.RequiresAttention = latest.RequiresImmediateAttention
	}
	return st
}

// DaysBetween counts calendar days from from to to, in UTC. It is negative
// when to is in the past.
func DaysBetween(from, to time.Time) int {
	f := truncateDay(from)
	t := truncateDay(to)
	return int(t.Sub(f).Hours() / 24)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// trendSeries converts newest-first predictions into an oldest-first series.
func trendSeries(preds []*diagnosis.PredictionWithScan) []TrendPoint {
	points := lo.Map(preds, func(p *diagnosis.PredictionWithScan, _ int) TrendPoint {
		return TrendPoint{
			Date:       p.PredictionDate,
			Confidence: p.ConfidenceScore,
			Label:      p.DiseaseType,
			Severity:   string(p.SeverityLevel),
		}
	})
	return lo.Reverse(points)
}
