// Package analysis runs LLM-backed analysis of individual articles,
// producing a structured judgment about job-loss impact.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/jobradar/jobradar/pkg/config"
	"github.com/jobradar/jobradar/pkg/domain"
)

// minKeyLength is the cheapest possible shape check for a bearer-style
// credential, no cryptographic validation happens here
const minKeyLength = 20

// ValidateCredential reports whether the API key looks like a plausible
// bearer credential, checked by prefix and length only
func ValidateCredential(key string) bool {
	key = strings.TrimSpace(key)
	return len(key) >= minKeyLength && strings.HasPrefix(key, "sk-")
}

// Analyzer calls an OpenAI-compatible endpoint once per article and parses
// the structured JSON response. No retry inside, a failed or unparseable
// call is the caller's per-article failure to handle.
type Analyzer struct {
	client    *openai.Client
	cfg       config.LLMConfig
	systemMsg string
}

const systemPrompt = `You are an analyst evaluating news articles about job losses, layoffs, automation and AI displacement.
For the given article respond with a single JSON object with exactly these fields:
- impact_level: "low", "medium" or "high" severity of job-loss impact
- companies: array of company names mentioned
- industries: array of affected industries
- jobs_affected: number of jobs affected, or null if not stated
- is_ai_related: true if AI is a cause or factor
- is_automation_related: true if automation is a cause or factor
- key_insights: array of 1-3 short insight strings
- confidence: your confidence in this analysis, 0.0 to 1.0
- sentiment: "positive", "negative" or "neutral"
Respond with the JSON object only, no markdown fences, no commentary.`

// NewAnalyzer creates an analyzer for the configured endpoint and model
func NewAnalyzer(cfg config.LLMConfig) *Analyzer {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}
	return &Analyzer{
		client:    openai.NewClientWithConfig(clientConfig),
		cfg:       cfg,
		systemMsg: systemPrompt,
	}
}

// CredentialOK reports whether the configured API key passes shape validation
func (a *Analyzer) CredentialOK() bool {
	return ValidateCredential(a.cfg.APIKey)
}

// Analyze runs a single LLM call for one article and parses the response.
// The returned result carries the article's ID.
func (a *Analyzer) Analyze(ctx context.Context, article domain.Article) (domain.AnalysisResult, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       a.cfg.Model,
		Temperature: float32(a.cfg.Temperature),
		MaxTokens:   a.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: a.systemMsg},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(article)},
		},
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("llm request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.AnalysisResult{}, fmt.Errorf("no response from llm")
	}

	result, err := parseResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	result.ArticleID = article.ID
	return result, nil
}

// buildPrompt embeds the article fields into the user message
func buildPrompt(article domain.Article) string {
	var sb strings.Builder
	sb.WriteString("Analyze this article:\n\n")
	sb.WriteString(fmt.Sprintf("Title: %s\n", article.Title))
	if article.Description != "" {
		sb.WriteString(fmt.Sprintf("Description: %s\n", article.Description))
	}
	sb.WriteString(fmt.Sprintf("Link: %s\n", article.Link))
	if !article.PubDate.IsZero() {
		sb.WriteString(fmt.Sprintf("Published: %s\n", article.PubDate.UTC().Format(time.RFC1123)))
	}
	return sb.String()
}

// parseResponse extracts and decodes the JSON object from the LLM response
func parseResponse(content string) (domain.AnalysisResult, error) {
	// models occasionally wrap the object in prose or fences, cut to the
	// outermost braces before decoding
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || start >= end {
		return domain.AnalysisResult{}, fmt.Errorf("no json object found in response")
	}

	var result domain.AnalysisResult
	if err := json.Unmarshal([]byte(content[start:end+1]), &result); err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("failed to parse json response: %w", err)
	}

	normalize(&result)
	return result, nil
}

// normalize clamps and defaults fields the model filled loosely
func normalize(r *domain.AnalysisResult) {
	switch r.ImpactLevel {
	case domain.ImpactLow, domain.ImpactMedium, domain.ImpactHigh:
	default:
		r.ImpactLevel = domain.ImpactLow
	}
	switch r.Sentiment {
	case domain.SentimentPositive, domain.SentimentNegative, domain.SentimentNeutral:
	default:
		r.Sentiment = domain.SentimentNeutral
	}
	if r.Confidence < 0 {
		r.Confidence = 0
	}
	if r.Confidence > 1 {
		r.Confidence = 1
	}
	if r.Companies == nil {
		r.Companies = []string{}
	}
	if r.Industries == nil {
		r.Industries = []string{}
	}
	if r.KeyInsights == nil {
		r.KeyInsights = []string{}
	}
}
