package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"aivisibility/internal/engine"
	"aivisibility/internal/models"
)

var _ engine.Scorer = (*Scorer)(nil)

const scoreSystemPrompt = `You grade how visible a website is in an AI assistant's answer.
Reply with a single JSON object and nothing else, using these keys:
presence (1 if the site or brand is mentioned, else 0),
relevance, accuracy, sentiment, overall (numbers from 0 to 5),
confidence (0 to 1),
sources (URLs cited in the answer),
competitorUrls (cited URLs that belong to other sites),
competitorMatchScore (0 to 1, share of citations that are competitors),
domainRank (1-based position of the site among cited sites, omit if absent).`

// Scorer grades responses with a judge model in JSON mode.
type Scorer struct {
	client ChatClient
	model  string
}

// NewScorer creates a scorer that uses model as the judge.
func NewScorer(client ChatClient, model string) *Scorer {
	return &Scorer{client: client, model: model}
}

// Score asks the judge model for a ScoreVector.
func (s *Scorer) Score(ctx context.Context, req engine.ScoreRequest) (*models.ScoreVector, error) {
	temp := 0.0
	resp, err := s.client.CreateChatCompletion(ctx, &ChatCompletionRequest{
		Model:       s.model,
		Temperature: &temp,
		Messages: []ChatMessage{
			{Role: "system", Content: scoreSystemPrompt},
			{Role: "user", Content: scorePrompt(req)},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, err
	}

	content, err := resp.Content()
	if err != nil {
		return nil, err
	}
	return parseScores(content)
}

func scorePrompt(req engine.ScoreRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Website: %s (%s)\n", req.Domain.Hostname, req.Domain.Name)
	fmt.Fprintf(&b, "Keyword: %s\n", req.Keyword)
	fmt.Fprintf(&b, "Question asked to %s: %s\n\n", req.Model, req.Phrase)
	b.WriteString("Answer:\n")
	b.WriteString(req.Response)
	return b.String()
}

// scoreJSON tolerates judges that answer presence as a boolean.
type scoreJSON struct {
	models.ScoreVector
	Presence json.RawMessage `json:"presence"`
}

func parseScores(content string) (*models.ScoreVector, error) {
	content = extractObject(content)

	var raw scoreJSON
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScores, err)
	}

	vec := raw.ScoreVector
	switch p := string(bytes.TrimSpace(raw.Presence)); p {
	case "true", "1", "1.0", `"1"`, `"yes"`:
		vec.Presence = 1
	case "", "null", "false", "0", "0.0", `"0"`, `"no"`:
		vec.Presence = 0
	default:
		return nil, fmt.Errorf("%w: presence %s", ErrInvalidScores, p)
	}

	vec.Clamp()
	return &vec, nil
}

// extractObject returns the outermost {...} span, dropping code fences and
// any prose the judge wrapped around the object.
func extractObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return strings.TrimSpace(s)
	}
	return s[start : end+1]
}
