package safety

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fakeDetector returns scripted verdicts for the classifier layer.
type fakeDetector struct {
	crisis       bool
	crisisErr    error
	dangerous    bool
	dangerousErr error

	crisisCalls    int
	dangerousCalls int
}

func (f *fakeDetector) DetectCrisis(context.Context, string) (bool, string, error) {
	f.crisisCalls++
	return f.crisis, "scripted crisis verdict", f.crisisErr
}

func (f *fakeDetector) DetectDangerousTopic(context.Context, string) (bool, string, error) {
	f.dangerousCalls++
	return f.dangerous, "scripted dangerous verdict", f.dangerousErr
}

// fakeRecorder captures recorded events.
type fakeRecorder struct {
	events []Event
	err    error
}

func (f *fakeRecorder) Record(_ context.Context, flag Flag, detectedBy DetectedBy, reason, message string) error {
	f.events = append(f.events, Event{Flag: flag, DetectedBy: detectedBy, Reason: reason, Message: message})
	return f.err
}

func TestCheck_CrisisKeywordShortCircuits(t *testing.T) {
	detector := &fakeDetector{}
	recorder := &fakeRecorder{}
	f := NewFilter(detector, recorder, "", nil)

	got := f.Check(context.Background(), "I cant take it anymore")
	if got.Safe {
		t.Fatal("Check() Safe = true, want flagged")
	}
	if got.Flag != FlagCrisis {
		t.Errorf("Flag = %v, want %v", got.Flag, FlagCrisis)
	}
	if got.DetectedBy != DetectedByKeyword {
		t.Errorf("DetectedBy = %v, want %v", got.DetectedBy, DetectedByKeyword)
	}
	if !strings.Contains(got.Response, DefaultHelpline) {
		t.Errorf("crisis response missing helpline %q", DefaultHelpline)
	}
	if detector.crisisCalls != 0 || detector.dangerousCalls != 0 {
		t.Error("classifier called after keyword match, want short-circuit")
	}
	if len(recorder.events) != 1 || recorder.events[0].Flag != FlagCrisis {
		t.Errorf("recorded events = %+v, want one crisis event", recorder.events)
	}
}

func TestCheck_ClassifierCatchesSubtleCrisis(t *testing.T) {
	detector := &fakeDetector{crisis: true}
	recorder := &fakeRecorder{}
	f := NewFilter(detector, recorder, "", nil)

	got := f.Check(context.Background(), "I have not slept in 4 days, I don't know how long I can keep doing this")
	if got.Safe {
		t.Fatal("Check() Safe = true, want crisis flagged by classifier")
	}
	if got.Flag != FlagCrisis || got.DetectedBy != DetectedByClassifier {
		t.Errorf("got flag %v by %v, want %v by %v", got.Flag, got.DetectedBy, FlagCrisis, DetectedByClassifier)
	}
}

func TestCheck_DangerousTopicKeyword(t *testing.T) {
	f := NewFilter(&fakeDetector{}, &fakeRecorder{}, "", nil)

	got := f.Check(context.Background(), "Can I give him an extra half pill? What medication dose is safe?")
	if got.Safe {
		t.Fatal("Check() Safe = true, want dangerous flagged")
	}
	if got.Flag != FlagDangerous {
		t.Errorf("Flag = %v, want %v", got.Flag, FlagDangerous)
	}
	if !strings.Contains(got.Response, "doctor or care team") {
		t.Errorf("redirect response = %q, want professional redirect", got.Response)
	}
}

func TestCheck_NormalMessagePasses(t *testing.T) {
	detector := &fakeDetector{}
	recorder := &fakeRecorder{}
	f := NewFilter(detector, recorder, "", nil)

	got := f.Check(context.Background(), "How do I calm my father when he gets confused at night?")
	if !got.Safe {
		t.Fatalf("Check() flagged a normal message: %+v", got)
	}
	if got.Response != "" {
		t.Errorf("Response = %q, want empty for safe messages", got.Response)
	}
	if len(recorder.events) != 0 {
		t.Errorf("recorded %d events for a safe message, want 0", len(recorder.events))
	}
	if detector.crisisCalls != 1 || detector.dangerousCalls != 1 {
		t.Errorf("classifier calls = %d crisis, %d dangerous; want 1 and 1",
			detector.crisisCalls, detector.dangerousCalls)
	}
}

func TestCheck_ClassifierErrorFailsOpen(t *testing.T) {
	detector := &fakeDetector{
		crisisErr:    errors.New("model unavailable"),
		dangerousErr: errors.New("model unavailable"),
	}
	f := NewFilter(detector, &fakeRecorder{}, "", nil)

	got := f.Check(context.Background(), "How do I help her get dressed in the morning?")
	if !got.Safe {
		t.Errorf("Check() blocked on classifier failure, want fail-open: %+v", got)
	}
}

func TestCheck_RecorderFailureDoesNotChangeVerdict(t *testing.T) {
	f := NewFilter(&fakeDetector{}, &fakeRecorder{err: errors.New("db down")}, "", nil)

	got := f.Check(context.Background(), "I feel so hopeless today")
	if got.Safe {
		t.Error("Check() Safe = true, want flagged even when recording fails")
	}
}

func TestCheck_NilDetectorRunsKeywordOnly(t *testing.T) {
	f := NewFilter(nil, nil, "", nil)

	if got := f.Check(context.Background(), "I want to die"); got.Safe {
		t.Error("keyword-only filter missed a crisis keyword")
	}
	if got := f.Check(context.Background(), "How do I plan meals for the week?"); !got.Safe {
		t.Errorf("keyword-only filter flagged a normal message: %+v", got)
	}
}

func TestCheck_CustomHelplineInResponses(t *testing.T) {
	f := NewFilter(nil, nil, "900 200 120", nil)

	got := f.Check(context.Background(), "I want to give up")
	if !strings.Contains(got.Response, "900 200 120") {
		t.Errorf("response = %q, want configured helpline", got.Response)
	}
}
