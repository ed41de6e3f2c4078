package safety

import (
	"strings"
	"unicode"
)

// crisisKeywords trigger the crisis protocol on substring match.
// Deliberately broad: a false positive costs one canned reply with a
// helpline; a false negative costs much more.
var crisisKeywords = []string{
	"suicide", "kill", "hurt himself", "hurt herself",
	"hurting me", "violent", "danger", "emergency",
	"can't take it anymore", "cant take it anymore",
	"want to give up", "no way out", "end it",
	"harm", "abuse", "attacked", "threatening",
	"overwhelmed", "desperate", "hopeless", "helpless",
	"violent thoughts", "violent feelings", "self-harm",
	"homicidal", "violent urges", "violent impulses",
	"hurt others", "hurt people", "hurting others", "hurting people",
	"hurt myself", "hurting myself", "suicidal thoughts", "suicidal feelings",
	"suicidal urges", "suicidal impulses", "want to die",
}

// dangerousTopics are medical subjects the assistant must never advise
// on. Matching any of these redirects to a professional.
var dangerousTopics = []string{
	"specific medication doses",
	"stopping prescribed medication",
	"physical restraint techniques",
	"sedation at home",
	"medication dosage", "medication dosages", "medication dose", "medication doses",
	"stop medication", "stopping medication", "change medication", "changing medication",
	"restrain", "restraining", "restraint techniques", "physical restraint",
	"sedation", "sedating", "sedation techniques", "sedate",
}

// MatchCrisisKeyword reports whether text contains a crisis keyword
// and returns the first keyword matched.
func MatchCrisisKeyword(text string) (string, bool) {
	return matchAny(text, crisisKeywords)
}

// MatchDangerousTopic reports whether text touches a blocked medical
// topic and returns the first topic matched.
func MatchDangerousTopic(text string) (string, bool) {
	return matchAny(text, dangerousTopics)
}

// DangerousTopics returns the blocklist for injection into the system
// prompt, so the model also refuses these topics on its own.
func DangerousTopics() []string {
	out := make([]string, len(dangerousTopics))
	copy(out, dangerousTopics)
	return out
}

func matchAny(text string, keywords []string) (string, bool) {
	normalized := normalizeInput(text)
	for _, kw := range keywords {
		if strings.Contains(normalized, kw) {
			return kw, true
		}
	}
	return "", false
}

// normalizeInput prepares input for keyword matching.
// - Converts to lowercase for case-insensitive matching
// - Normalizes whitespace
// - Removes zero-width characters that could evade detection
func normalizeInput(s string) string {
	var b strings.Builder
	for _, r := range s {
		// Skip zero-width and format characters
		if unicode.Is(unicode.Cf, r) || unicode.Is(unicode.Mn, r) {
			continue
		}
		// Normalize different types of spaces/whitespace
		if unicode.IsSpace(r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}

	// Collapse multiple spaces
	return strings.Join(strings.Fields(b.String()), " ")
}
