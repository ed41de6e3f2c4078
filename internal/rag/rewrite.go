package rag

import (
	"regexp"
	"strings"
)

// rewriteRule maps a vague-query pattern to a specific, retrievable
// question. Patterns are matched against the lowercased query in
// order; the first hit wins.
type rewriteRule struct {
	pattern *regexp.Regexp
	rewrite string
}

// vagueQueryRewrites expands the short, underspecified questions
// caregivers actually type into queries that embed well against the
// knowledge base.
var vagueQueryRewrites = []rewriteRule{
	// General overview queries.
	{regexp.MustCompile(`tell me about (?:alzheimer'?s?|dementia)`),
		"What is Alzheimer's disease? What are the main symptoms and causes?"},
	{regexp.MustCompile(`what is (?:alzheimer'?s?|dementia)\??$`),
		"What is Alzheimer's disease? What are the main symptoms?"},
	{regexp.MustCompile(`explain (?:alzheimer'?s?|dementia)`),
		"What is Alzheimer's disease? What are its causes and symptoms?"},
	{regexp.MustCompile(`(?:alzheimer'?s?|dementia) info(?:rmation)?`),
		"What is Alzheimer's disease? Symptoms and treatment"},
	{regexp.MustCompile(`(?:give me|provide) (?:an? )?overview of (?:alzheimer'?s?|dementia)`),
		"What is Alzheimer's disease? Main symptoms, causes, and progression"},

	// Help and support queries.
	{regexp.MustCompile(`how (?:do i|can i|to) help (?:someone|a person|my (?:mom|dad|parent|loved one))`),
		"What are effective caregiving strategies for Alzheimer's patients?"},
	{regexp.MustCompile(`(?:i need|need) help with (?:my )?(?:mom|dad|parent|husband|wife|loved one)`),
		"What caregiving support and strategies are available for Alzheimer's?"},
	{regexp.MustCompile(`how (?:do i|to) (?:care for|take care of|look after)`),
		"What are best practices for caring for someone with Alzheimer's?"},
	{regexp.MustCompile(`caring for (?:someone|a person) with (?:alzheimer'?s?|dementia)`),
		"What are effective caregiving strategies and daily care tips for Alzheimer's?"},

	// Vague symptom queries.
	{regexp.MustCompile(`what (?:are|is) (?:the )?symptoms?\??$`),
		"What are the symptoms of Alzheimer's disease?"},
	{regexp.MustCompile(`signs? of (?:alzheimer'?s?|dementia)$`),
		"What are the early signs and symptoms of Alzheimer's disease?"},
	{regexp.MustCompile(`how (?:do i|to) (?:know|tell) if (?:someone has|they have)`),
		"What are the early warning signs and symptoms of Alzheimer's disease?"},
	{regexp.MustCompile(`(?:my )?(?:mom|dad|parent|loved one) is (?:forgetting|confused)`),
		"What are memory loss and confusion symptoms in Alzheimer's disease?"},

	// Vague treatment queries.
	{regexp.MustCompile(`(?:what|any) treatments?\??$`),
		"What are the available treatments for Alzheimer's disease?"},
	{regexp.MustCompile(`how (?:is it|to) treat(?:ed)?\??`),
		"What are the treatment options for Alzheimer's disease?"},
	{regexp.MustCompile(`(?:is there a )?cure\??$`),
		"What are current treatment options and research for Alzheimer's disease?"},
	{regexp.MustCompile(`can (?:alzheimer'?s?|dementia) be (?:cured|treated|stopped)`),
		"What are treatment options and can Alzheimer's progression be slowed?"},

	// Progression queries.
	{regexp.MustCompile(`how (?:fast|quickly) (?:does it|will (?:it|they))`),
		"What is the progression timeline and stages of Alzheimer's disease?"},
	{regexp.MustCompile(`what (?:are|is) (?:the )?stages?\??$`),
		"What are the stages of Alzheimer's disease progression?"},
	{regexp.MustCompile(`how (?:does|will) (?:it|the disease) progress`),
		"What is the progression and timeline of Alzheimer's disease?"},

	// Behavioral queries.
	{regexp.MustCompile(`(?:dealing with|handling) (?:behavior|aggression|anger|wandering)`),
		"How to manage behavioral symptoms in Alzheimer's patients?"},
	{regexp.MustCompile(`(?:my )?(?:mom|dad|parent|loved one) is (?:aggressive|angry|agitated|wandering)`),
		"How to handle behavioral changes and aggression in Alzheimer's patients?"},
	{regexp.MustCompile(`behavior(?:al)? (?:changes|problems|issues)`),
		"What are behavioral symptoms of Alzheimer's and how to manage them?"},

	// Cause and risk queries.
	{regexp.MustCompile(`what causes (?:alzheimer'?s?|dementia)\??$`),
		"What are the causes and risk factors of Alzheimer's disease?"},
	{regexp.MustCompile(`why (?:do people|does someone) get (?:alzheimer'?s?|dementia)`),
		"What are the causes and risk factors of Alzheimer's disease?"},
	{regexp.MustCompile(`(?:am i|is (?:my )?(?:mom|dad|parent)) at risk\??`),
		"What are the risk factors for developing Alzheimer's disease?"},

	// Prevention queries.
	{regexp.MustCompile(`how (?:to|can i) prevent (?:alzheimer'?s?|dementia)`),
		"What are prevention strategies and risk reduction for Alzheimer's disease?"},
	{regexp.MustCompile(`can (?:alzheimer'?s?|dementia) be prevented\??`),
		"What are known prevention strategies and risk factors for Alzheimer's?"},

	// Diagnosis queries.
	{regexp.MustCompile(`how (?:is it|to (?:get|be)) diagnos(?:ed|is)`),
		"What is the diagnosis process and tests for Alzheimer's disease?"},
	{regexp.MustCompile(`what (?:are|is) (?:the )?(?:tests?|exams?)`),
		"What diagnostic tests and evaluations are used for Alzheimer's?"},

	// Daily living queries.
	{regexp.MustCompile(`daily (?:life|living|activities|routine)`),
		"How to manage daily activities and routines for Alzheimer's patients?"},
	{regexp.MustCompile(`(?:eating|feeding|bathing|dressing) (?:problems|difficulties|issues)`),
		"How to help with daily living activities for Alzheimer's patients?"},

	// Communication queries.
	{regexp.MustCompile(`how (?:to|do i) (?:talk to|communicate with|speak to)`),
		"What are effective communication strategies for Alzheimer's patients?"},
	{regexp.MustCompile(`(?:they )?(?:can't|cannot|won't) (?:talk|speak|communicate)`),
		"How to communicate with Alzheimer's patients with language difficulties?"},

	// Resource and support queries.
	{regexp.MustCompile(`(?:where|how) (?:to|can i) (?:get|find) (?:help|support|resources)`),
		"What support resources are available for Alzheimer's caregivers?"},
	{regexp.MustCompile(`support (?:for|groups?|services?)`),
		"What caregiver support services and resources are available for Alzheimer's?"},

	// Safety queries.
	{regexp.MustCompile(`(?:home )?safety (?:concerns|tips|issues)`),
		"What are home safety modifications for Alzheimer's patients?"},
	{regexp.MustCompile(`how (?:to|do i) (?:keep|make) (?:them |the house |home )?safe`),
		"What safety precautions and home modifications for Alzheimer's patients?"},
}

// RewriteQuery replaces a vague query with a more specific one when it
// matches a known pattern. Returns the original query and false when
// no pattern matches.
func RewriteQuery(query string) (string, bool) {
	lowered := strings.ToLower(strings.TrimSpace(query))
	for _, rule := range vagueQueryRewrites {
		if rule.pattern.MatchString(lowered) {
			return rule.rewrite, true
		}
	}
	return query, false
}
