package llm

import (
	"log"

	"aivisibility/internal/config"
)

// NewChatClient returns the mock client when LLM_MODE=MOCK, otherwise the gateway client.
func NewChatClient(cfg *config.Config) ChatClient {
	if cfg.IsMockLLM() {
		log.Println("LLM_MODE=MOCK detected, using mock LLM client")
		return NewMockClient()
	}
	return NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey)
}
