package engine

import (
	"net/url"
	"regexp"
	"strings"

	"aivisibility/internal/models"
)

// heuristicConfidence marks heuristic vectors as low-confidence.
const heuristicConfidence = 0.3

var (
	urlPattern  = regexp.MustCompile(`https?://[^\s<>"'()\[\]]+`)
	wordPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)
)

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "what": true, "which": true,
	"how": true, "are": true, "is": true, "best": true, "top": true, "from": true,
	"that": true, "this": true, "you": true, "your": true, "can": true, "near": true,
}

// HeuristicScorer produces a coarse ScoreVector from literal term overlap,
// response length and domain-name presence. It never fails.
type HeuristicScorer struct{}

// Score scores a response without calling any model.
func (HeuristicScorer) Score(req ScoreRequest) *models.ScoreVector {
	response := strings.ToLower(req.Response)
	host := normalizeHost(req.Domain.Hostname)

	vec := &models.ScoreVector{
		Sentiment:  2.5,
		Confidence: heuristicConfidence,
	}

	if mentionsDomain(response, host, req.Domain.Name) {
		vec.Presence = 1
		vec.Sentiment = 3
	}

	terms := phraseTerms(req.Phrase)
	if len(terms) == 0 {
		vec.Relevance = 2.5
	} else {
		words := make(map[string]bool)
		for _, w := range wordPattern.FindAllString(response, -1) {
			words[w] = true
		}
		matched := 0
		for _, term := range terms {
			if words[term] {
				matched++
			}
		}
		vec.Relevance = round1(1 + 4*float64(matched)/float64(len(terms)))
	}

	switch n := len(strings.TrimSpace(req.Response)); {
	case n < 50:
		vec.Accuracy = 1
	case n < 200:
		vec.Accuracy = 2
	case n < 800:
		vec.Accuracy = 3
	default:
		vec.Accuracy = 3.5
	}

	vec.Overall = round1((vec.Relevance + vec.Accuracy + vec.Sentiment) / 3)
	if vec.Presence == 1 {
		vec.Overall = round1(vec.Overall + 0.5)
	}

	applySources(vec, req.Response, host)
	vec.Clamp()
	return vec
}

// applySources fills sources, found domains, competitor URLs and domain rank
// from the URLs cited in the response.
func applySources(vec *models.ScoreVector, response, host string) {
	seen := make(map[string]bool)
	seenHosts := make(map[string]bool)
	for _, raw := range urlPattern.FindAllString(response, -1) {
		raw = strings.TrimRight(raw, ".,;:!?")
		if seen[raw] {
			continue
		}
		seen[raw] = true

		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			continue
		}
		vec.Sources = append(vec.Sources, raw)

		h := normalizeHost(u.Hostname())
		if !seenHosts[h] {
			seenHosts[h] = true
			vec.FoundDomains = append(vec.FoundDomains, h)
		}

		if host != "" && sameSite(h, host) {
			if vec.DomainRank == nil {
				rank := len(vec.FoundDomains)
				vec.DomainRank = &rank
			}
			continue
		}
		vec.CompetitorURLs = append(vec.CompetitorURLs, raw)
	}

	if len(vec.Sources) > 0 {
		vec.CompetitorMatchScore = round1(float64(len(vec.CompetitorURLs)) / float64(len(vec.Sources)))
	}
}

func mentionsDomain(response, host, name string) bool {
	if host != "" && strings.Contains(response, host) {
		return true
	}
	if label := siteLabel(host); len(label) >= 3 && containsWord(response, label) {
		return true
	}
	name = strings.ToLower(strings.TrimSpace(name))
	return len(name) >= 3 && strings.Contains(response, name)
}

func phraseTerms(phrase string) []string {
	var terms []string
	seen := make(map[string]bool)
	for _, w := range wordPattern.FindAllString(strings.ToLower(phrase), -1) {
		if len(w) < 3 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
	}
	return terms
}

func containsWord(text, word string) bool {
	for _, w := range wordPattern.FindAllString(text, -1) {
		if w == word {
			return true
		}
	}
	return false
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if u, err := url.Parse(host); err == nil && u.Host != "" {
		host = u.Hostname()
	}
	return strings.TrimPrefix(host, "www.")
}

// siteLabel returns the registrable label of a host, e.g. "acme" for "shop.acme.com".
func siteLabel(host string) string {
	parts := strings.Split(host, ".")
	if len(parts) < 2 {
		return host
	}
	return parts[len(parts)-2]
}

func sameSite(a, b string) bool {
	return a == b || strings.HasSuffix(a, "."+b) || strings.HasSuffix(b, "."+a)
}
