package v1alpha1

import "time"

// StringToProcessingStatus converts a wire status string into a
// ProcessingStatus. Unknown values map to pending.
func StringToProcessingStatus(s string) ProcessingStatus {
	switch s {
	case string(ProcessingStatusQueued):
		return ProcessingStatusQueued
	case string(ProcessingStatusProcessing):
		return ProcessingStatusProcessing
	case string(ProcessingStatusCompleted):
		return ProcessingStatusCompleted
	case string(ProcessingStatusFailed):
		return ProcessingStatusFailed
	default:
		return ProcessingStatusPending
	}
}

// StringToEvaluationStatus converts a wire status string into an
// EvaluationStatus. Unknown values map to queued.
func StringToEvaluationStatus(s string) EvaluationStatus {
	switch s {
	case string(EvaluationStatusRunning):
		return EvaluationStatusRunning
	case string(EvaluationStatusCompleted):
		return EvaluationStatusCompleted
	case string(EvaluationStatusPartial):
		return EvaluationStatusPartial
	case string(EvaluationStatusFailed):
		return EvaluationStatusFailed
	case string(EvaluationStatusCancelled):
		return EvaluationStatusCancelled
	default:
		return EvaluationStatusQueued
	}
}

// StringToGateStatus converts a wire gate verdict into a GateStatus.
func StringToGateStatus(s string) GateStatus {
	switch s {
	case string(GateStatusPass):
		return GateStatusPass
	case string(GateStatusWarn):
		return GateStatusWarn
	case string(GateStatusFail):
		return GateStatusFail
	default:
		return GateStatusUnknown
	}
}

// ParseTime parses the timestamp formats the service emits. Timestamps
// without a zone are taken as UTC. Returns nil when the value does not
// parse.
func ParseTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", value, time.UTC); err == nil {
		return &t
	}
	return nil
}
