// Package relevance flags articles concerning job losses, automation and AI
// displacement using deterministic keyword heuristics. No external calls,
// same input always yields the same classification.
package relevance

import (
	"strings"

	"github.com/jobradar/jobradar/pkg/domain"
)

// layoffPhrases carry the strongest signal, each match adds phraseWeight
var layoffPhrases = []string{
	"layoff", "layoffs", "laid off", "lays off", "laying off",
	"job cuts", "jobs cut", "cuts jobs", "cutting jobs", "job losses",
	"workforce reduction", "reduce workforce", "reduces workforce",
	"downsizing", "downsize", "redundancies", "redundancy",
	"eliminates positions", "eliminate positions", "eliminating positions",
	"staff cuts", "headcount reduction", "hiring freeze",
	"restructuring", "plant closure", "plant closing", "shuts down",
	"displaced workers", "job displacement", "unemployment",
}

// automationTerms are supporting signal, each match adds termWeight
var automationTerms = []string{
	"automation", "automated", "automate", "robotics", "robots",
	"artificial intelligence", "machine learning", "generative ai",
	"chatgpt", "chatbot", "llm", "ai",
}

const (
	phraseWeight = 2.0
	termWeight   = 1.0
)

// Classify returns a copy of the input with IsJobLossRelated and
// RelevanceScore set on every article. Articles are never removed, the
// flags drive the store's filtered view. An article is flagged relevant
// only when it carries layoff language, automation terms alone just raise
// the ranking score.
func Classify(articles []domain.Article) []domain.Article {
	result := make([]domain.Article, len(articles))
	for i, a := range articles {
		a.RelevanceScore = Score(a.Title, a.Description)
		a.IsJobLossRelated = hasLayoffSignal(a.Title, a.Description)
		result[i] = a
	}
	return result
}

// hasLayoffSignal reports whether the article text contains any
// company-layoff phrase
func hasLayoffSignal(title, description string) bool {
	text := strings.ToLower(title + " " + description)
	for _, phrase := range layoffPhrases {
		if containsTerm(text, phrase) {
			return true
		}
	}
	return false
}

// Score computes the keyword relevance score over title and description.
// Title matches count double, headline language is the stronger signal.
func Score(title, description string) float64 {
	titleText := strings.ToLower(title)
	bodyText := strings.ToLower(description)

	var score float64
	for _, phrase := range layoffPhrases {
		if containsTerm(titleText, phrase) {
			score += phraseWeight * 2
		} else if containsTerm(bodyText, phrase) {
			score += phraseWeight
		}
	}
	for _, term := range automationTerms {
		if containsTerm(titleText, term) {
			score += termWeight * 2
		} else if containsTerm(bodyText, term) {
			score += termWeight
		}
	}
	return score
}

// containsTerm matches the term on word boundaries to avoid false positives
// like "ai" inside "said" or "robots" inside "robotski"
func containsTerm(text, term string) bool {
	idx := 0
	for {
		pos := strings.Index(text[idx:], term)
		if pos < 0 {
			return false
		}
		start := idx + pos
		end := start + len(term)
		if boundaryAt(text, start-1) && boundaryAt(text, end) {
			return true
		}
		idx = start + 1
	}
}

// boundaryAt reports whether position i is outside the text or a non-letter
func boundaryAt(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	c := text[i]
	return !(c >= 'a' && c <= 'z') && !(c >= '0' && c <= '9')
}
