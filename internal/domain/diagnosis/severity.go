package diagnosis

import "time"

const (
	highThreshold   = 0.8
	mediumThreshold = 0.5

	// FollowUpDays is added to the upload date regardless of severity.
	FollowUpDays = 15
)

// SeverityFor maps a confidence in [0,1] to a tier. Both thresholds are
// exclusive: exactly 0.8 is Medium and exactly 0.5 is Low.
func SeverityFor(confidence float64) Severity {
	switch {
	case confidence > highThreshold:
		return SeverityHigh
	case confidence > mediumThreshold:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// RequiresImmediateAttention is true only for the High tier.
func RequiresImmediateAttention(confidence float64) bool {
	return confidence > highThreshold
}

// FollowUpDate returns uploadedAt plus fifteen days.
func FollowUpDate(uploadedAt time.Time) time.Time {
	return uploadedAt.AddDate(0, 0, FollowUpDays)
}
