package safety

import (
	"context"
	"fmt"
	"log/slog"
)

// Detector is the subtle-case layer of the filter. *Classifier
// implements it; tests substitute fakes.
type Detector interface {
	DetectCrisis(ctx context.Context, message string) (bool, string, error)
	DetectDangerousTopic(ctx context.Context, message string) (bool, string, error)
}

// Recorder persists flagged messages. *EventStore implements it.
type Recorder interface {
	Record(ctx context.Context, flag Flag, detectedBy DetectedBy, reason, message string) error
}

// Filter runs the two-layer safety check that gates every chat turn.
//
// Layer 1 is substring matching against curated keyword lists: instant
// and free. Layer 2 is an LLM zero-shot classifier that catches the
// phrasings keywords miss. Crisis detection runs before dangerous-topic
// detection so a message that trips both gets the crisis protocol.
//
// Layer 2 fails open: if the classifier errors, the message passes and
// the failure is logged. The keyword layer has no failure mode, and
// blocking every caregiver question whenever the model is down would
// make the assistant useless exactly when it is needed.
type Filter struct {
	detector Detector
	recorder Recorder
	logger   *slog.Logger
	helpline string
}

// NewFilter creates a Filter. detector may be nil to run keyword-only
// (used in tests and degraded startup); recorder may be nil to skip
// event persistence.
func NewFilter(detector Detector, recorder Recorder, helpline string, logger *slog.Logger) *Filter {
	if logger == nil {
		logger = slog.Default()
	}
	if helpline == "" {
		helpline = DefaultHelpline
	}
	return &Filter{detector: detector, recorder: recorder, logger: logger, helpline: helpline}
}

// Check runs all safety layers in order and returns the verdict.
// It never returns an error: every failure path degrades to a
// documented verdict instead of blocking the conversation.
func (f *Filter) Check(ctx context.Context, message string) *Result {
	// Crisis, layer 1.
	if kw, ok := MatchCrisisKeyword(message); ok {
		return f.flagged(ctx, FlagCrisis, DetectedByKeyword, fmt.Sprintf("matched keyword %q", kw), message)
	}

	// Crisis, layer 2.
	if f.detector != nil {
		flagged, reason, err := f.detector.DetectCrisis(ctx, message)
		if err != nil {
			f.logger.Warn("crisis classification failed, failing open", "error", err)
		} else if flagged {
			return f.flagged(ctx, FlagCrisis, DetectedByClassifier, reason, message)
		}
	}

	// Dangerous topic, layer 1.
	if topic, ok := MatchDangerousTopic(message); ok {
		return f.flagged(ctx, FlagDangerous, DetectedByKeyword, fmt.Sprintf("matched topic %q", topic), message)
	}

	// Dangerous topic, layer 2.
	if f.detector != nil {
		flagged, reason, err := f.detector.DetectDangerousTopic(ctx, message)
		if err != nil {
			f.logger.Warn("dangerous topic classification failed, failing open", "error", err)
		} else if flagged {
			return f.flagged(ctx, FlagDangerous, DetectedByClassifier, reason, message)
		}
	}

	return &Result{Safe: true}
}

// flagged builds the unsafe verdict and records the event best-effort.
func (f *Filter) flagged(ctx context.Context, flag Flag, detectedBy DetectedBy, reason, message string) *Result {
	response := RedirectResponse(f.helpline)
	if flag == FlagCrisis {
		response = CrisisResponse(f.helpline)
	}

	f.logger.Info("message flagged",
		"flag", flag,
		"detected_by", detectedBy,
		"reason", reason,
	)

	if f.recorder != nil {
		if err := f.recorder.Record(ctx, flag, detectedBy, reason, message); err != nil {
			f.logger.Warn("recording safety event failed", "flag", flag, "error", err)
		}
	}

	return &Result{
		Safe:       false,
		Flag:       flag,
		Response:   response,
		DetectedBy: detectedBy,
		Reason:     reason,
	}
}
