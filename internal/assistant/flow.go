package assistant

import (
	"context"
	"fmt"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
)

// Input is the request payload for the assistant flow.
type Input struct {
	Query     string `json:"query"`
	SessionID string `json:"sessionId"`
}

// Output is the response payload from the assistant flow.
type Output struct {
	Response       string   `json:"response"`
	SessionID      string   `json:"sessionId"`
	SafetyFlag     string   `json:"safetyFlag,omitempty"`
	Confidence     string   `json:"confidence,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
	Sources        []string `json:"sources,omitempty"`
}

// StreamChunk is the streaming output type for the assistant flow.
type StreamChunk struct {
	Text string `json:"text"`
}

// FlowName is the registered name of the assistant flow in Genkit.
const FlowName = "amparo/chat"

// Flow is the type alias for the assistant's Genkit streaming flow.
// Exported for use in the api package with genkit.Handler().
type Flow = core.Flow[Input, Output, StreamChunk]

// ErrInvalidSession indicates the session ID is missing or malformed.
var ErrInvalidSession = fmt.Errorf("invalid session ID")

// Package-level singleton: genkit.DefineStreamingFlow panics on
// re-registration, so the flow is defined exactly once per process.
var (
	flowOnce sync.Once
	flow     *Flow
)

// NewFlow returns the assistant flow singleton, initializing it on
// first call. Subsequent calls return the existing flow.
func NewFlow(g *genkit.Genkit, agent *Agent) *Flow {
	flowOnce.Do(func() {
		flow = agent.DefineFlow(g)
	})
	return flow
}

// ResetFlowForTesting resets the flow singleton so tests can register
// with different configurations. Not safe for concurrent use.
func ResetFlowForTesting() {
	flowOnce = sync.Once{}
	flow = nil
}

// DefineFlow registers the Genkit streaming flow wrapping
// Agent.ExecuteStream. Use NewFlow instead of calling this directly;
// registering the same flow name twice panics.
func (a *Agent) DefineFlow(g *genkit.Genkit) *Flow {
	return genkit.DefineStreamingFlow(g, FlowName,
		func(ctx context.Context, input Input, streamCb func(context.Context, StreamChunk) error) (Output, error) {
			sessionID, err := uuid.Parse(input.SessionID)
			if err != nil {
				return Output{SessionID: input.SessionID}, fmt.Errorf("%w: %w", ErrInvalidSession, err)
			}

			// When streamCb is nil (Run instead of Stream) the agent
			// runs in non-streaming mode.
			var agentCallback StreamCallback
			if streamCb != nil {
				agentCallback = func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
					if chunk == nil {
						return nil
					}
					for _, part := range chunk.Content {
						if part.Text == "" {
							continue
						}
						if streamErr := streamCb(ctx, StreamChunk{Text: part.Text}); streamErr != nil {
							return streamErr
						}
					}
					return nil
				}
			}

			resp, err := a.ExecuteStream(ctx, sessionID, input.Query, agentCallback)
			if err != nil {
				return Output{SessionID: input.SessionID}, fmt.Errorf("assistant execution: %w", err)
			}

			out := Output{
				Response:       resp.Text,
				SessionID:      input.SessionID,
				Confidence:     string(resp.Confidence),
				Recommendation: string(resp.Recommendation),
				Sources:        resp.Sources,
			}
			if resp.Safety != nil && !resp.Safety.Safe {
				out.SafetyFlag = string(resp.Safety.Flag)
			}
			return out, nil
		},
	)
}
