package safety

import "fmt"

// DefaultHelpline is the Alzheimer's Association 24/7 helpline.
const DefaultHelpline = "1-800-272-3900"

// CrisisResponse is the canned reply for crisis-flagged messages.
// It is returned verbatim; the model never sees the message.
func CrisisResponse(helpline string) string {
	if helpline == "" {
		helpline = DefaultHelpline
	}
	return fmt.Sprintf(`I can hear that this is a difficult moment, and I want you to know that you are not alone.

If there is immediate danger, please:
1. Call emergency services: 911 (US) / 112 (Europe)
2. Contact your doctor
3. Remove any objects that could cause harm from the environment

For emotional support right now:
- Alzheimer's Association 24/7 Helpline: %s`, helpline)
}

// RedirectResponse is the canned reply for dangerous-topic messages
// and for queries the knowledge base cannot answer reliably.
func RedirectResponse(helpline string) string {
	if helpline == "" {
		helpline = DefaultHelpline
	}
	return fmt.Sprintf(`I want to give you accurate information, and I don't have enough verified data to answer this specific question safely.

I'd recommend:
- Speaking directly with your doctor or care team
- Visiting alz.org for trusted resources
- Calling the Alzheimer's Association 24/7 Helpline: %s`, helpline)
}
