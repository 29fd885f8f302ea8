package domain

import "time"

// FeedConfig is the user-supplied feed source configuration
type FeedConfig struct {
	URL             string `json:"url" yaml:"url"`
	RefreshInterval int    `json:"refresh_interval" yaml:"refresh_interval"` // minutes, 0 disables auto-refresh
	MaxArticles     int    `json:"max_articles" yaml:"max_articles"`
	FilterRelevant  bool   `json:"filter_relevant" yaml:"filter_relevant"`
	AutoAnalyze     bool   `json:"auto_analyze" yaml:"auto_analyze"`
}

// FeedState is the observable health of the last fetch attempt
type FeedState string

// feed states, transitions go through StateLoading only
const (
	StateHealthy FeedState = "healthy"
	StateLoading FeedState = "loading"
	StateError   FeedState = "error"
)

// FeedStatus reports the outcome of the refresh lifecycle. LastError is set
// only when State is StateError.
type FeedStatus struct {
	State        FeedState  `json:"state"`
	LastUpdated  *time.Time `json:"last_updated,omitempty"`
	ArticleCount int        `json:"article_count"`
	LastError    string     `json:"last_error,omitempty"`
}

// SortMode selects the ordering of the derived article view
type SortMode string

// supported sort modes
const (
	SortByDate      SortMode = "date"
	SortByRelevance SortMode = "relevance"
	SortByAnalysis  SortMode = "analysis"
)

// Valid reports whether the sort mode is one of the supported values
func (m SortMode) Valid() bool {
	return m == SortByDate || m == SortByRelevance || m == SortByAnalysis
}

// Snapshot is the persisted subset of the store's state. Articles, feed
// status and transient flags are deliberately not included, they are
// rebuilt on the next refresh.
type Snapshot struct {
	Config           FeedConfig                `json:"config"`
	SelectedArticles []string                  `json:"selected_articles"`
	AnalysisResults  map[string]AnalysisResult `json:"analysis_results"`
	ShowRelevantOnly bool                      `json:"show_relevant_only"`
	SortBy           SortMode                  `json:"sort_by"`
}
