package llm

import (
	"context"
	"fmt"

	"aivisibility/internal/config"
	"aivisibility/internal/engine"
)

var _ engine.Invoker = (*Invoker)(nil)

const invokeSystemPrompt = "You are a helpful assistant answering a user's question. " +
	"Recommend specific products, companies and websites where relevant and cite source URLs."

// Invoker asks a roster model the phrase as a user would.
type Invoker struct {
	client  ChatClient
	pricing *config.ModelsConfig
}

// NewInvoker creates an invoker. pricing may be nil, in which case cost is zero.
func NewInvoker(client ChatClient, pricing *config.ModelsConfig) *Invoker {
	return &Invoker{client: client, pricing: pricing}
}

// Invoke sends the phrase to req.Model and prices the answer from token usage.
func (i *Invoker) Invoke(ctx context.Context, req engine.InvokeRequest) (*engine.Invocation, error) {
	resp, err := i.client.CreateChatCompletion(ctx, &ChatCompletionRequest{
		Model: req.Model,
		Messages: []ChatMessage{
			{Role: "system", Content: invokeSystemPrompt},
			{Role: "user", Content: userPrompt(req)},
		},
	})
	if err != nil {
		return nil, err
	}

	text, err := resp.Content()
	if err != nil {
		return nil, err
	}
	return &engine.Invocation{Text: text, Cost: i.cost(req.Model, resp.Usage)}, nil
}

func userPrompt(req engine.InvokeRequest) string {
	if req.Location == "" {
		return req.Phrase
	}
	return fmt.Sprintf("%s (I am located in %s.)", req.Phrase, req.Location)
}

func (i *Invoker) cost(model string, usage *Usage) float64 {
	m := i.pricing.GetModel(model)
	if m == nil || usage == nil {
		return 0
	}
	return float64(usage.PromptTokens)/1000*m.InputPer1K + float64(usage.CompletionTokens)/1000*m.OutputPer1K
}
