// Package store implements the feed orchestrator. A Store owns the feed
// configuration, fetch status, the canonical article list, the user's
// selection and the analysis result map. All mutation goes through its
// operations, collaborators (parser, analyzer) stay pure with respect to
// this state. Stores are constructed explicitly and disposed with Close,
// there is no package-level singleton.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/jobradar/jobradar/pkg/domain"
)

// Parser fetches and normalizes a feed URL into articles
type Parser interface {
	Parse(ctx context.Context, url string) ([]domain.Article, error)
}

// Deduper collapses repeated articles, first occurrence wins
type Deduper func(articles []domain.Article) []domain.Article

// Classifier flags job-loss related articles, pure function
type Classifier func(articles []domain.Article) []domain.Article

// Analyzer runs LLM analysis for a single article
type Analyzer interface {
	CredentialOK() bool
	Analyze(ctx context.Context, article domain.Article) (domain.AnalysisResult, error)
}

// operation errors surfaced to callers
var (
	ErrNoFeedURL         = errors.New("no feed url configured")
	ErrEmptySelection    = errors.New("no articles selected for analysis")
	ErrInvalidCredential = errors.New("api credential is missing or malformed")
	ErrAnalysisRunning   = errors.New("analysis already in progress")
	ErrAllArticlesFailed = errors.New("analysis failed for every selected article")
)

// BatchReport summarizes one analysis batch run
type BatchReport struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// Store is the feed orchestrator, safe for concurrent use
type Store struct {
	parser   Parser
	dedup    Deduper
	classify Classifier
	analyzer Analyzer

	mu               sync.RWMutex
	config           domain.FeedConfig
	status           domain.FeedStatus
	articles         []domain.Article
	selectedOrder    []string
	selectedSet      map[string]struct{}
	results          map[string]domain.AnalysisResult
	showRelevantOnly bool
	sortBy           domain.SortMode
	loadError        string
	analysisError    string
	loading          bool
	analyzing        bool

	refreshMu     sync.Mutex
	refreshCancel context.CancelFunc
	wg            sync.WaitGroup

	// overridable in tests to avoid minute-scale timers
	refreshEvery func(minutes int) time.Duration
	now          func() time.Time
}

// New creates a store with the given collaborators and initial feed
// configuration. Auto-refresh starts immediately when the configuration
// enables it; the first explicit load stays the caller's responsibility.
func New(parser Parser, analyzer Analyzer, cfg domain.FeedConfig) *Store {
	s := &Store{
		parser:      parser,
		analyzer:    analyzer,
		config:      cfg,
		status:      domain.FeedStatus{State: domain.StateHealthy},
		selectedSet: make(map[string]struct{}),
		results:     make(map[string]domain.AnalysisResult),
		sortBy:      domain.SortByDate,
		refreshEvery: func(minutes int) time.Duration {
			return time.Duration(minutes) * time.Minute
		},
		now: time.Now,
	}
	s.rescheduleRefresh()
	return s
}

// SetPipeline installs the dedup and relevance steps applied on refresh.
// Both may be nil, which skips the step.
func (s *Store) SetPipeline(dedup Deduper, classify Classifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dedup = dedup
	s.classify = classify
}

// Close cancels the auto-refresh timer and waits for it to stop
func (s *Store) Close() {
	s.refreshMu.Lock()
	if s.refreshCancel != nil {
		s.refreshCancel()
		s.refreshCancel = nil
	}
	s.refreshMu.Unlock()
	s.wg.Wait()
}

// SetFeedURL sets the feed source and clears any pending user-visible load
// error. It does not trigger a fetch, the caller decides when to load.
// Changing the URL replaces the auto-refresh timer.
func (s *Store) SetFeedURL(url string) {
	s.mu.Lock()
	s.config.URL = url
	s.loadError = ""
	s.mu.Unlock()
	s.rescheduleRefresh()
}

// SetConfig replaces the feed configuration wholesale and replaces the
// auto-refresh timer
func (s *Store) SetConfig(cfg domain.FeedConfig) {
	s.mu.Lock()
	s.config = cfg
	s.loadError = ""
	s.mu.Unlock()
	s.rescheduleRefresh()
}

// Config returns the current feed configuration
func (s *Store) Config() domain.FeedConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Status returns the current feed status
func (s *Store) Status() domain.FeedStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// LoadError returns the user-visible error of the last failed load attempt
func (s *Store) LoadError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadError
}

// IsLoading reports whether a refresh is in flight
func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// LoadArticles runs one refresh cycle: fetch, truncate to MaxArticles,
// dedup, optional relevance classification, store. A failed refresh leaves
// the previously stored articles untouched. Calls made while a refresh is
// already in flight are ignored. A result fetched for a URL that was
// replaced mid-flight is discarded rather than applied.
func (s *Store) LoadArticles(ctx context.Context) error {
	s.mu.Lock()
	if s.config.URL == "" {
		s.loadError = ErrNoFeedURL.Error()
		s.mu.Unlock()
		return ErrNoFeedURL
	}
	if s.loading {
		s.mu.Unlock()
		lgr.Printf("[DEBUG] refresh already in progress, ignoring trigger")
		return nil
	}
	url := s.config.URL
	cfg := s.config
	prevState := s.status.State
	s.loading = true
	s.status.State = domain.StateLoading
	s.mu.Unlock()

	articles, err := s.parser.Parse(ctx, url)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false

	if s.config.URL != url {
		// stale fetch against a superseded URL, drop the result
		lgr.Printf("[DEBUG] discarding stale fetch for %s", url)
		s.status.State = prevState
		return nil
	}

	if err != nil {
		s.status.State = domain.StateError
		s.status.LastError = err.Error()
		s.loadError = err.Error()
		lgr.Printf("[WARN] feed refresh failed: %v", err)
		return err
	}

	if cfg.MaxArticles > 0 && len(articles) > cfg.MaxArticles {
		articles = articles[:cfg.MaxArticles]
	}
	if s.dedup != nil {
		articles = s.dedup(articles)
	}
	if cfg.FilterRelevant && s.classify != nil {
		articles = s.classify(articles)
	}

	prior := make(map[string]struct{}, len(s.articles))
	for _, a := range s.articles {
		prior[a.ID] = struct{}{}
	}

	s.articles = articles
	now := s.now()
	s.status.State = domain.StateHealthy
	s.status.LastUpdated = &now
	s.status.ArticleCount = len(articles)
	s.status.LastError = ""
	s.loadError = ""

	if cfg.AutoAnalyze {
		queued := 0
		for _, a := range articles {
			if _, seen := prior[a.ID]; seen || !a.IsJobLossRelated {
				continue
			}
			if s.addSelectionLocked(a.ID) {
				queued++
			}
		}
		if queued > 0 {
			lgr.Printf("[INFO] queued %d new relevant articles for analysis", queued)
		}
	}

	lgr.Printf("[INFO] refreshed feed, %d articles stored", len(articles))
	return nil
}

// rescheduleRefresh replaces the auto-refresh timer according to the
// current configuration. At most one timer exists at any time.
func (s *Store) rescheduleRefresh() {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if s.refreshCancel != nil {
		s.refreshCancel()
		s.refreshCancel = nil
	}

	cfg := s.Config()
	if cfg.RefreshInterval <= 0 || cfg.URL == "" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.refreshCancel = cancel
	interval := s.refreshEvery(cfg.RefreshInterval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.LoadArticles(ctx); err != nil {
					lgr.Printf("[WARN] auto refresh failed: %v", err)
				}
			}
		}
	}()
	lgr.Printf("[INFO] auto-refresh scheduled every %v for %s", interval, cfg.URL)
}

// Articles returns a copy of the stored canonical article list
func (s *Store) Articles() []domain.Article {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Article, len(s.articles))
	copy(out, s.articles)
	return out
}

// FilteredArticles returns the derived view: relevance filtering applied
// per ShowRelevantOnly, ordered per the current sort mode
func (s *Store) FilteredArticles() []domain.Article {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filteredLocked()
}

func (s *Store) filteredLocked() []domain.Article {
	res := make([]domain.Article, 0, len(s.articles))
	for _, a := range s.articles {
		if s.showRelevantOnly && !a.IsJobLossRelated {
			continue
		}
		res = append(res, a)
	}

	switch s.sortBy {
	case domain.SortByDate:
		sort.SliceStable(res, func(i, j int) bool { return res[i].PubDate.After(res[j].PubDate) })
	case domain.SortByRelevance:
		sort.SliceStable(res, func(i, j int) bool { return res[i].RelevanceScore > res[j].RelevanceScore })
	case domain.SortByAnalysis:
		sort.SliceStable(res, func(i, j int) bool {
			_, iDone := s.results[res[i].ID]
			_, jDone := s.results[res[j].ID]
			return iDone && !jDone
		})
	}
	return res
}

// SetShowRelevantOnly toggles relevance filtering of the derived view
func (s *Store) SetShowRelevantOnly(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showRelevantOnly = v
}

// ShowRelevantOnly reports the current view filter setting
func (s *Store) ShowRelevantOnly() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.showRelevantOnly
}

// SetSortBy changes the ordering of the derived view, invalid modes are
// rejected
func (s *Store) SetSortBy(mode domain.SortMode) error {
	if !mode.Valid() {
		return fmt.Errorf("unsupported sort mode %q", mode)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sortBy = mode
	return nil
}

// SortBy returns the current sort mode
func (s *Store) SortBy() domain.SortMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortBy
}
