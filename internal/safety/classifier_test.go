package safety

import (
	"context"
	"strings"
	"testing"

	"github.com/amparo-care/amparo/internal/testutil"
)

func TestValidLabel(t *testing.T) {
	if !validLabel(crisisBenignLabel, crisisLabels) {
		t.Error("benign crisis label not recognized")
	}
	if validLabel("made-up label", crisisLabels) {
		t.Error("unknown label accepted")
	}
}

func TestNewClassifier_Validation(t *testing.T) {
	if _, err := NewClassifier(nil, "gemini-2.5-flash", 0.7); err == nil {
		t.Error("NewClassifier(nil genkit) expected error, got nil")
	}
}

func TestLabelSetsEndWithBenign(t *testing.T) {
	// The flagging logic assumes the benign label is part of each set.
	if !validLabel(crisisBenignLabel, crisisLabels) {
		t.Error("crisis benign label missing from label set")
	}
	if !validLabel(dangerousBenignLabel, dangerousLabels) {
		t.Error("dangerous benign label missing from label set")
	}
}

func TestClassifierDetectCrisis(t *testing.T) {
	llm := testutil.NewMockLLM(`{"label": "` + crisisBenignLabel + `", "confidence": 0.96}`)
	llm.AddResponse("no reason to go on",
		`{"label": "`+crisisLabels[2]+`", "confidence": 0.91}`)
	g, _, _ := testutil.SetupMockGenkit(t, llm, testutil.NewMockEmbedder(8))

	cls, err := NewClassifier(g, "mock/test-model", 0.7)
	if err != nil {
		t.Fatalf("NewClassifier() error = %v", err)
	}

	flagged, reason, err := cls.DetectCrisis(context.Background(),
		"some days I feel there is no reason to go on")
	if err != nil {
		t.Fatalf("DetectCrisis() error = %v", err)
	}
	if !flagged {
		t.Error("DetectCrisis() = false for a hopelessness message, want true")
	}
	if !strings.Contains(reason, "91%") {
		t.Errorf("reason = %q, want the confidence included", reason)
	}

	flagged, _, err = cls.DetectCrisis(context.Background(),
		"how do I help mom settle down at night")
	if err != nil {
		t.Fatalf("DetectCrisis() error = %v", err)
	}
	if flagged {
		t.Error("DetectCrisis() = true for a routine question, want false")
	}
}

func TestClassifierDetect_BelowThresholdNotFlagged(t *testing.T) {
	llm := testutil.NewMockLLM(`{"label": "` + dangerousLabels[0] + `", "confidence": 0.4}`)
	g, _, _ := testutil.SetupMockGenkit(t, llm, testutil.NewMockEmbedder(8))

	cls, err := NewClassifier(g, "mock/test-model", 0.7)
	if err != nil {
		t.Fatalf("NewClassifier() error = %v", err)
	}

	flagged, _, err := cls.DetectDangerousTopic(context.Background(), "should I adjust the pills")
	if err != nil {
		t.Fatalf("DetectDangerousTopic() error = %v", err)
	}
	if flagged {
		t.Error("low-confidence classification flagged, want unflagged below threshold")
	}
}

func TestClassifierDetect_UnknownLabelIsError(t *testing.T) {
	llm := testutil.NewMockLLM(`{"label": "something off-list", "confidence": 0.99}`)
	g, _, _ := testutil.SetupMockGenkit(t, llm, testutil.NewMockEmbedder(8))

	cls, err := NewClassifier(g, "mock/test-model", 0.7)
	if err != nil {
		t.Fatalf("NewClassifier() error = %v", err)
	}

	if _, _, err := cls.DetectCrisis(context.Background(), "hello"); err == nil {
		t.Error("DetectCrisis() with an off-list label expected error, got nil")
	}
}
