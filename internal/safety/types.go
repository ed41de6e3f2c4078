package safety

import "time"

// Flag identifies which safety category a message tripped.
type Flag string

const (
	// FlagCrisis marks messages suggesting the caregiver or patient is
	// in danger (self-harm, violence, severe distress).
	FlagCrisis Flag = "crisis"
	// FlagDangerous marks requests for advice that is unsafe to give
	// without a clinician (dosing, restraint, sedation, stopping
	// treatment).
	FlagDangerous Flag = "dangerous"
)

// DetectedBy identifies which layer flagged a message.
type DetectedBy string

const (
	DetectedByKeyword    DetectedBy = "keyword"
	DetectedByClassifier DetectedBy = "classifier"
)

// Result is the outcome of a safety check. When Safe is false,
// Response holds the canned reply that must be returned verbatim in
// place of model output.
type Result struct {
	Safe       bool
	Flag       Flag
	Response   string
	DetectedBy DetectedBy
	Reason     string
}

// Event is a persisted record of a flagged message.
type Event struct {
	ID         int64
	Flag       Flag
	DetectedBy DetectedBy
	Reason     string
	Message    string
	CreatedAt  time.Time
}
