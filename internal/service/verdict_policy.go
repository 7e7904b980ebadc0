package service

import "github.com/AungKyawPhyo1142/be-sentria/internal/models"

// VerdictPolicy maps a consumed fact-check result onto the report's lifecycle
// status. A processing error from the worker always wins; confidence
// thresholds only take effect when both a bound and a target status are
// configured, so the zero value applies no confidence-based transitions.
type VerdictPolicy struct {
	// LowConfidenceBelow marks results with confidence strictly below the
	// bound with LowConfidenceStatus.
	LowConfidenceBelow  float64
	LowConfidenceStatus models.ReportStatus

	// HighConfidenceAtLeast marks results at or above the bound with
	// HighConfidenceStatus.
	HighConfidenceAtLeast float64
	HighConfidenceStatus  models.ReportStatus
}

// LifecycleStatus returns the status the report row should carry after the
// result is applied.
func (p VerdictPolicy) LifecycleStatus(result models.FactCheckResult) models.ReportStatus {
	if result.ProcessingError != "" || result.Status == "ERROR" {
		return models.ReportStatusFailed
	}
	if p.LowConfidenceStatus != "" && result.OverallConfidence < p.LowConfidenceBelow {
		return p.LowConfidenceStatus
	}
	if p.HighConfidenceStatus != "" && result.OverallConfidence >= p.HighConfidenceAtLeast {
		return p.HighConfidenceStatus
	}
	return models.ReportStatusFactCheckComplete
}
