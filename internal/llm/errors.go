package llm

import "errors"

var (
	ErrAPI           = errors.New("llm api error")
	ErrEmptyResponse = errors.New("llm returned no choices")
	ErrInvalidScores = errors.New("scorer returned unparseable scores")
)
