package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/amparo-care/amparo/internal/rag"
	"github.com/amparo-care/amparo/internal/safety"
	"github.com/amparo-care/amparo/internal/session"
)

const (
	// PromptName is the name of the Dotprompt file for the assistant.
	// This corresponds to prompts/amparo.prompt.
	PromptName = "amparo"

	// fallbackResponseMessage is returned when the model produces an
	// empty response.
	fallbackResponseMessage = "I'm sorry, I wasn't able to put together an answer just now. Please try rephrasing your question."

	// maxQueryRunes bounds user input before it reaches the safety
	// filter and the model.
	maxQueryRunes = 4000
)

// Sentinel errors for assistant operations.
var (
	ErrEmptyQuery   = fmt.Errorf("query is empty")
	ErrQueryTooLong = fmt.Errorf("query exceeds %d characters", maxQueryRunes)
)

// StreamCallback is called for each chunk of a streaming response.
// Return an error to abort the stream.
type StreamCallback func(ctx context.Context, chunk *ai.ModelResponseChunk) error

// SafetyChecker screens user messages before they reach the model.
type SafetyChecker interface {
	Check(ctx context.Context, message string) *safety.Result
}

// ContextSearcher retrieves knowledge base context for a query.
type ContextSearcher interface {
	SmartSearch(ctx context.Context, query string) (*rag.SearchResult, error)
}

// ConversationStore persists sessions and their message history.
type ConversationStore interface {
	Get(ctx context.Context, id uuid.UUID) (*session.Session, error)
	History(ctx context.Context, id uuid.UUID, limit int) ([]*ai.Message, error)
	AppendExchange(ctx context.Context, id uuid.UUID, userInput, assistantResponse string) error
}

// Config contains all required parameters for the assistant Agent.
type Config struct {
	Genkit    *genkit.Genkit
	Sessions  ConversationStore
	Retriever ContextSearcher
	Safety    SafetyChecker
	Logger    *slog.Logger

	// ModelName overrides the model declared in the prompt file.
	// Optional; empty uses the prompt's model.
	ModelName string

	// GenerationConfig is passed with every prompt execution and
	// overrides the prompt file's defaults (temperature, output token
	// limit). The shape is provider-specific; nil sends nothing.
	GenerationConfig any

	// Helpline shown in safety responses and the prompt. Optional;
	// empty uses the default Alzheimer's Association helpline.
	Helpline string

	// HistoryLimit caps how many prior messages are loaded per turn.
	// Optional; <= 0 uses session.DefaultHistoryLimit.
	HistoryLimit int

	// Resilience knobs. Zero values get defaults.
	Retry       RetryConfig
	Circuit     CircuitBreakerConfig
	RateLimiter *rate.Limiter
	TokenBudget TokenBudget
}

// Response is the complete result of one assistant turn.
type Response struct {
	Text           string             // Assistant's final text
	Safety         *safety.Result     // Verdict from the safety filter
	Confidence     rag.Confidence     // Retrieval confidence, empty if retrieval was skipped
	Recommendation rag.Recommendation // Retrieval recommendation, empty if retrieval was skipped
	Sources        []string           // Distinct document sources used as context
}

// Agent answers caregiver questions grounded in the knowledge base.
// Every message passes the safety filter before anything else happens;
// a flagged message gets a canned response and the model is never
// called for it.
type Agent struct {
	g         *genkit.Genkit
	sessions  ConversationStore
	retriever ContextSearcher
	safety    SafetyChecker
	logger    *slog.Logger
	prompt    ai.Prompt

	modelName    string
	genConfig    any
	helpline     string
	historyLimit int

	retryConfig    RetryConfig
	circuitBreaker *CircuitBreaker
	rateLimiter    *rate.Limiter
	tokenBudget    TokenBudget
}

// New creates the assistant agent. All of Genkit, Sessions, Retriever,
// Safety and Logger are required.
func New(cfg Config) (*Agent, error) {
	if cfg.Genkit == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if cfg.Safety == nil {
		return nil, fmt.Errorf("safety filter is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	helpline := cfg.Helpline
	if helpline == "" {
		helpline = safety.DefaultHelpline
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = session.DefaultHistoryLimit
	}
	retryConfig := cfg.Retry
	if retryConfig.MaxAttempts == 0 {
		retryConfig = DefaultRetryConfig()
	}
	tokenBudget := cfg.TokenBudget
	if tokenBudget.MaxHistoryTokens == 0 {
		tokenBudget = DefaultTokenBudget()
	}
	rl := cfg.RateLimiter
	if rl == nil {
		rl = rate.NewLimiter(10, 30)
	}

	a := &Agent{
		g:         cfg.Genkit,
		sessions:  cfg.Sessions,
		retriever: cfg.Retriever,
		safety:    cfg.Safety,
		logger:    cfg.Logger,

		modelName:    cfg.ModelName,
		genConfig:    cfg.GenerationConfig,
		helpline:     helpline,
		historyLimit: historyLimit,

		retryConfig:    retryConfig,
		circuitBreaker: NewCircuitBreaker(cfg.Circuit),
		rateLimiter:    rl,
		tokenBudget:    tokenBudget,
	}

	a.prompt = genkit.LookupPrompt(a.g, PromptName)
	if a.prompt == nil {
		return nil, fmt.Errorf("dotprompt %q not found: ensure the prompts directory is configured", PromptName)
	}

	a.logger.Info("assistant agent initialized",
		"model", cfg.ModelName,
		"history_limit", historyLimit)
	return a, nil
}

// Execute runs one assistant turn without streaming.
func (a *Agent) Execute(ctx context.Context, sessionID uuid.UUID, input string) (*Response, error) {
	return a.ExecuteStream(ctx, sessionID, input, nil)
}

// ExecuteStream runs one assistant turn. If callback is non-nil it is
// invoked for each response chunk as the model generates it; the full
// response is returned either way.
//
// Order of operations is deliberate and must not change:
//  1. Safety filter. A flagged message returns the canned crisis or
//     redirect response immediately; the model never sees it.
//  2. History load and knowledge retrieval, in parallel.
//  3. A do-not-answer retrieval verdict returns the redirect response
//     without calling the model.
//  4. Prompt execution with retry, rate limiting and circuit breaking.
//  5. Best-effort persistence of the exchange.
func (a *Agent) ExecuteStream(ctx context.Context, sessionID uuid.UUID, input string, callback StreamCallback) (*Response, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyQuery
	}
	if len([]rune(input)) > maxQueryRunes {
		return nil, ErrQueryTooLong
	}

	sess, err := a.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	// Safety gate comes first. Check never fails; a flagged verdict
	// carries the complete response text.
	verdict := a.safety.Check(ctx, input)
	if !verdict.Safe {
		a.logger.Info("message blocked by safety filter",
			"session_id", sessionID,
			"flag", verdict.Flag,
			"detected_by", verdict.DetectedBy)
		a.saveExchange(ctx, sessionID, input, verdict.Response)
		return &Response{Text: verdict.Response, Safety: verdict}, nil
	}

	// History and retrieval are independent; run them in parallel.
	// Channels are buffered so neither goroutine blocks if the other
	// path errors out first.
	type historyResult struct {
		messages []*ai.Message
		err      error
	}
	type searchResult struct {
		result *rag.SearchResult
		err    error
	}
	historyCh := make(chan historyResult, 1)
	searchCh := make(chan searchResult, 1)

	go func() {
		messages, err := a.sessions.History(ctx, sessionID, a.historyLimit)
		historyCh <- historyResult{messages, err}
	}()
	go func() {
		result, err := a.retriever.SmartSearch(ctx, input)
		searchCh <- searchResult{result, err}
	}()

	hist := <-historyCh
	if hist.err != nil {
		return nil, fmt.Errorf("load history: %w", hist.err)
	}
	search := <-searchCh
	if search.err != nil {
		return nil, fmt.Errorf("search knowledge base: %w", search.err)
	}

	if search.result.Recommendation == rag.RecommendDoNotAnswer {
		a.logger.Info("query outside knowledge base, redirecting",
			"session_id", sessionID,
			"confidence", search.result.Confidence)
		text := safety.RedirectResponse(a.helpline)
		a.saveExchange(ctx, sessionID, input, text)
		return &Response{
			Text:           text,
			Safety:         verdict,
			Confidence:     search.result.Confidence,
			Recommendation: search.result.Recommendation,
		}, nil
	}

	resp, err := a.generateResponse(ctx, sess, input, hist.messages, search.result, callback)
	if err != nil {
		return nil, err
	}

	responseText := strings.TrimSpace(resp.Text())
	if responseText == "" {
		a.logger.Warn("model returned empty response", "session_id", sessionID)
		responseText = fallbackResponseMessage
	}

	a.saveExchange(ctx, sessionID, input, responseText)

	return &Response{
		Text:           responseText,
		Safety:         verdict,
		Confidence:     search.result.Confidence,
		Recommendation: search.result.Recommendation,
		Sources:        contextSources(search.result),
	}, nil
}

// generateResponse renders the prompt and calls the model, shared by
// streaming and non-streaming paths.
func (a *Agent) generateResponse(ctx context.Context, sess *session.Session, input string, history []*ai.Message, search *rag.SearchResult, callback StreamCallback) (*ai.ModelResponse, error) {
	// Deep copy before handing messages to Genkit: renderMessages()
	// mutates msg.Content in place, so concurrent turns sharing cached
	// history objects would race. Tested against genkit v1.4.0.
	messages := deepCopyMessages(history)
	messages = a.tokenBudget.truncateHistory(messages)
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(input)))

	// Dotprompt's {{#if}} wants booleans, so audience switches are
	// derived here rather than compared as strings in the template.
	promptInput := map[string]any{
		"context":             formatContext(search),
		"caution":             search.Recommendation == rag.RecommendCaution,
		"audience":            string(sess.Audience),
		"first_responder":     sess.Audience == session.AudienceFirstResponder,
		"healthcare_provider": sess.Audience == session.AudienceHealthcareProvider,
		"helpline":            a.helpline,
		"current_date":        time.Now().Format("2006-01-02"),
		"blocked":             strings.Join(safety.DangerousTopics(), ", "),
	}
	if sess.Patient != nil {
		promptInput["patient"] = formatPatient(sess.Patient)
	}

	opts := []ai.PromptExecuteOption{
		ai.WithInput(promptInput),
		ai.WithMessagesFn(func(_ context.Context, _ any) ([]*ai.Message, error) {
			return messages, nil
		}),
	}
	if a.modelName != "" {
		opts = append(opts, ai.WithModelName(a.modelName))
	}
	if a.genConfig != nil {
		opts = append(opts, ai.WithConfig(a.genConfig))
	}
	if callback != nil {
		opts = append(opts, ai.WithStreaming(callback))
	}

	if err := a.circuitBreaker.Allow(); err != nil {
		a.logger.Warn("circuit breaker open, rejecting request",
			"state", a.circuitBreaker.State().String())
		return nil, fmt.Errorf("service unavailable: %w", err)
	}

	resp, err := executeWithRetry(ctx, a.rateLimiter, a.retryConfig, a.logger,
		func(ctx context.Context) (*ai.ModelResponse, error) {
			return a.prompt.Execute(ctx, opts...)
		})
	if err != nil {
		a.circuitBreaker.Failure()
		return nil, fmt.Errorf("generate response: %w", err)
	}
	a.circuitBreaker.Success()
	return resp, nil
}

// saveExchange persists a turn. Persistence failures are logged but
// never surfaced: the caregiver already has their answer.
func (a *Agent) saveExchange(ctx context.Context, sessionID uuid.UUID, input, response string) {
	if err := a.sessions.AppendExchange(ctx, sessionID, input, response); err != nil {
		a.logger.Error("failed to save exchange",
			"session_id", sessionID,
			"error", err)
	}
}

// formatContext renders retrieved documents for prompt injection.
func formatContext(search *rag.SearchResult) string {
	if search == nil || len(search.Results) == 0 {
		return ""
	}
	var b strings.Builder
	for i, res := range search.Results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Document %d]\n", i+1)
		if title := res.Title(); title != "" {
			fmt.Fprintf(&b, "Title: %s\n", title)
		}
		if src := res.Source(); src != "" {
			fmt.Fprintf(&b, "Source: %s\n", src)
		}
		b.WriteString(res.Content)
	}
	return b.String()
}

// contextSources collects the distinct sources of the retrieved
// documents, in rank order.
func contextSources(search *rag.SearchResult) []string {
	if search == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(search.Results))
	var sources []string
	for _, res := range search.Results {
		src := res.Source()
		if src == "" {
			continue
		}
		if _, ok := seen[src]; ok {
			continue
		}
		seen[src] = struct{}{}
		sources = append(sources, src)
	}
	return sources
}

// formatPatient renders the session's patient context for the prompt.
func formatPatient(p *session.PatientContext) string {
	var parts []string
	if p.Name != "" {
		parts = append(parts, "Name: "+p.Name)
	}
	if p.Age > 0 {
		parts = append(parts, fmt.Sprintf("Age: %d", p.Age))
	}
	if p.Stage != "" {
		parts = append(parts, "Dementia stage: "+p.Stage)
	}
	if p.Gender != "" {
		parts = append(parts, "Gender: "+p.Gender)
	}
	return strings.Join(parts, "\n")
}

// deepCopyMessages creates independent copies of Message and Part
// structs. Genkit's renderMessages() modifies msg.Content in place,
// which races when concurrent executions share message objects.
func deepCopyMessages(msgs []*ai.Message) []*ai.Message {
	if msgs == nil {
		return nil
	}
	copied := make([]*ai.Message, len(msgs))
	for i, msg := range msgs {
		parts := make([]*ai.Part, len(msg.Content))
		for j, part := range msg.Content {
			parts[j] = deepCopyPart(part)
		}
		copied[i] = &ai.Message{
			Role:     msg.Role,
			Content:  parts,
			Metadata: shallowCopyMap(msg.Metadata),
		}
	}
	return copied
}

// deepCopyPart copies an ai.Part. ToolRequest.Input and
// ToolResponse.Output are `any` and stay shared; renderMessages only
// mutates the Content slice, not tool payloads.
func deepCopyPart(p *ai.Part) *ai.Part {
	if p == nil {
		return nil
	}
	cp := &ai.Part{
		Kind:        p.Kind,
		ContentType: p.ContentType,
		Text:        p.Text,
		Metadata:    shallowCopyMap(p.Metadata),
	}
	if p.ToolRequest != nil {
		tr := *p.ToolRequest
		cp.ToolRequest = &tr
	}
	if p.ToolResponse != nil {
		tr := *p.ToolResponse
		cp.ToolResponse = &tr
	}
	return cp
}

// shallowCopyMap copies map entries; nested structures stay shared.
func shallowCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

// Title generation constants.
const (
	titleGenerationTimeout = 5 * time.Second
	titleInputMaxRunes     = 500
)

var titlePrompt = fmt.Sprintf(`Generate a concise title (max %d characters) for a chat session based on this first message.`, session.MaxTitleLength) + `
The title should capture the main topic or intent.
Return ONLY the title text, no quotes, no explanations, no punctuation at the end.

Message: %s

Title:`

// GenerateTitle produces a short session title from the first user
// message. Best-effort: returns "" on any failure and the caller keeps
// the default title.
func (a *Agent) GenerateTitle(ctx context.Context, userMessage string) string {
	ctx, cancel := context.WithTimeout(ctx, titleGenerationTimeout)
	defer cancel()

	inputRunes := []rune(userMessage)
	if len(inputRunes) > titleInputMaxRunes {
		userMessage = string(inputRunes[:titleInputMaxRunes]) + "..."
	}

	opts := []ai.GenerateOption{
		ai.WithPrompt(titlePrompt, userMessage),
	}
	if a.modelName != "" {
		opts = append(opts, ai.WithModelName(a.modelName))
	}

	response, err := genkit.Generate(ctx, a.g, opts...)
	if err != nil {
		a.logger.Debug("title generation failed", "error", err)
		return ""
	}

	title := strings.TrimSpace(response.Text())
	if title == "" {
		return ""
	}
	titleRunes := []rune(title)
	if len(titleRunes) > session.MaxTitleLength {
		title = string(titleRunes[:session.MaxTitleLength-3]) + "..."
	}
	return title
}
