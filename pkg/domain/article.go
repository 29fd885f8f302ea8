package domain

import "time"

// Article is a single normalized feed entry. ID is a stable digest derived
// from the entry's link/title/date, so the same entry fetched on different
// days keeps the same identity across dedup and selection.
type Article struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Link             string    `json:"link"`
	PubDate          time.Time `json:"pub_date"`
	IsJobLossRelated bool      `json:"is_job_loss_related"`
	RelevanceScore   float64   `json:"relevance_score,omitempty"`
}

// ImpactLevel grades how severe the job-loss impact of an article is
type ImpactLevel string

// impact levels returned by the analyzer
const (
	ImpactLow    ImpactLevel = "low"
	ImpactMedium ImpactLevel = "medium"
	ImpactHigh   ImpactLevel = "high"
)

// Sentiment is the overall tone of an article
type Sentiment string

// sentiment values returned by the analyzer
const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// AnalysisResult is the LLM-derived judgment about one article.
// Keyed by ArticleID in the store, so re-analysis overwrites the prior result.
type AnalysisResult struct {
	ArticleID           string      `json:"article_id"`
	ImpactLevel         ImpactLevel `json:"impact_level"`
	Companies           []string    `json:"companies"`
	Industries          []string    `json:"industries"`
	JobsAffected        *int        `json:"jobs_affected"`
	IsAIRelated         bool        `json:"is_ai_related"`
	IsAutomationRelated bool        `json:"is_automation_related"`
	KeyInsights         []string    `json:"key_insights"`
	Confidence          float64     `json:"confidence"`
	Sentiment           Sentiment   `json:"sentiment"`
}
