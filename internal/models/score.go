package models

// Score bounds for the numeric ScoreVector fields.
const (
	MinScore = 0.0
	MaxScore = 5.0
)

// ScoreVector is the structured judgment produced for one model response.
type ScoreVector struct {
	Presence             int      `json:"presence"` // 0 or 1
	Relevance            float64  `json:"relevance"`
	Accuracy             float64  `json:"accuracy"`
	Sentiment            float64  `json:"sentiment"`
	Overall              float64  `json:"overall"`
	Confidence           float64  `json:"confidence"`
	Sources              []string `json:"sources"`
	CompetitorURLs       []string `json:"competitorUrls"`
	CompetitorMatchScore float64  `json:"competitorMatchScore"`
	DomainRank           *int     `json:"domainRank,omitempty"`
	FoundDomains         []string `json:"foundDomains,omitempty"`
}

// Clamp forces every field into its documented range and replaces nil slices
// so the vector always serializes as arrays.
func (s *ScoreVector) Clamp() {
	if s.Presence != 0 {
		s.Presence = 1
	}
	s.Relevance = clamp(s.Relevance, MinScore, MaxScore)
	s.Accuracy = clamp(s.Accuracy, MinScore, MaxScore)
	s.Sentiment = clamp(s.Sentiment, MinScore, MaxScore)
	s.Overall = clamp(s.Overall, MinScore, MaxScore)
	s.Confidence = clamp(s.Confidence, 0, 1)
	s.CompetitorMatchScore = clamp(s.CompetitorMatchScore, 0, 1)
	if s.Sources == nil {
		s.Sources = []string{}
	}
	if s.CompetitorURLs == nil {
		s.CompetitorURLs = []string{}
	}
	if s.DomainRank != nil && *s.DomainRank < 1 {
		s.DomainRank = nil
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
