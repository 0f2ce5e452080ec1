package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/KamdynS/go-swarm/llm"
	"github.com/KamdynS/go-swarm/ratelimit"
)

// RoleOutput is one worker's contribution to a turn, in assignment order.
// Err is set when the worker failed; Content is empty in that case.
type RoleOutput struct {
	Role    string
	Content string
	Err     error
}

// SynthesisEngine merges worker outputs into a single user-facing response.
type SynthesisEngine struct {
	client  llm.Client
	limiter *ratelimit.Limiter
}

func NewSynthesisEngine(client llm.Client, limiter *ratelimit.Limiter) *SynthesisEngine {
	return &SynthesisEngine{client: client, limiter: limiter}
}

// Synthesize asks the model to merge the outputs. Failed workers are
// represented by an explicit failure marker so the model can work around
// the gap rather than silently dropping the role.
func (s *SynthesisEngine) Synthesize(ctx context.Context, outputs []RoleOutput) (string, error) {
	if len(outputs) == 0 {
		return "", fmt.Errorf("synthesis: no outputs to merge")
	}

	prompt := buildSynthesisPrompt(outputs)
	resp, err := ratelimit.Do(s.limiter, ctx, EndpointSynthesis, func(ctx context.Context) (*llm.Response, error) {
		return s.client.Complete(ctx, prompt, llm.ModelTypeNormal)
	})
	if err != nil {
		return "", fmt.Errorf("synthesis call: %w", err)
	}
	return resp.Content, nil
}

// Fallback concatenates the outputs, labeled by role. Failed workers get an
// explicit failure marker so the reader can tell a silent role from a broken
// one. It is the degraded path used when the synthesis call itself fails.
func Fallback(outputs []RoleOutput) string {
	var parts []string
	succeeded := 0
	for _, out := range outputs {
		if out.Err != nil {
			parts = append(parts, fmt.Sprintf("[%s]\n%s", out.Role, failureMarker))
			continue
		}
		parts = append(parts, fmt.Sprintf("[%s]\n%s", out.Role, out.Content))
		succeeded++
	}
	if succeeded == 0 {
		return "The team was unable to produce a response. Please try again."
	}
	return strings.Join(parts, "\n\n")
}
