package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"
)

var mockSites = []string{"g2.com", "capterra.com", "reddit.com", "forbes.com", "techradar.com"}

// MockClient answers locally for development runs without a gateway.
// Answers are deterministic for a given prompt.
type MockClient struct{}

// NewMockClient creates a mock client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// CreateChatCompletion returns a canned answer, or a JSON score object when
// the request asks for JSON output.
func (m *MockClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prompt := lastUserMessage(req)
	seed := hashString(req.Model + "|" + prompt)

	var content string
	if req.ResponseFormat["type"] == "json_object" {
		content = mockScores(seed)
	} else {
		content = mockAnswer(prompt, seed)
	}

	promptTokens := 0
	for _, msg := range req.Messages {
		promptTokens += len(msg.Content) / 4
	}
	completionTokens := len(content) / 4

	return &ChatCompletionResponse{
		ID:    fmt.Sprintf("mock-chatcmpl-%d", time.Now().UnixNano()),
		Model: req.Model,
		Choices: []Choice{{
			Message:      &ChatMessage{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
		Usage: &Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}, nil
}

func mockAnswer(prompt string, seed uint32) string {
	a := mockSites[seed%uint32(len(mockSites))]
	b := mockSites[(seed/7)%uint32(len(mockSites))]
	return fmt.Sprintf("[MOCK] For %q, reviewers on https://%s and https://%s/reviews list several options worth comparing.",
		truncate(prompt, 80), a, b)
}

func mockScores(seed uint32) string {
	presence := int(seed % 2)
	base := float64(seed%40) / 10
	out, _ := json.Marshal(map[string]any{
		"presence":             presence,
		"relevance":            base + 1,
		"accuracy":             base + 0.5,
		"sentiment":            2.5,
		"overall":              base + 0.5,
		"confidence":           0.5,
		"sources":              []string{},
		"competitorUrls":       []string{},
		"competitorMatchScore": 0,
	})
	return string(out)
}

func lastUserMessage(req *ChatCompletionRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return req.Messages[i].Content
		}
	}
	return ""
}

func hashString(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
