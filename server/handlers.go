package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jobradar/jobradar/pkg/domain"
	"github.com/jobradar/jobradar/pkg/feed"
	"github.com/jobradar/jobradar/pkg/store"
)

// statusHandler returns feed status and transient flags
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Version       string            `json:"version"`
		Feed          domain.FeedStatus `json:"feed"`
		Config        domain.FeedConfig `json:"config"`
		Loading       bool              `json:"loading"`
		Analyzing     bool              `json:"analyzing"`
		LoadError     string            `json:"load_error,omitempty"`
		AnalysisError string            `json:"analysis_error,omitempty"`
	}{
		Version:       s.version,
		Feed:          s.store.Status(),
		Config:        s.store.Config(),
		Loading:       s.store.IsLoading(),
		Analyzing:     s.store.IsAnalyzing(),
		LoadError:     s.store.LoadError(),
		AnalysisError: s.store.AnalysisError(),
	}
	RenderJSON(w, r, http.StatusOK, resp)
}

// articlesHandler returns the derived article view with selection state
func (s *Server) articlesHandler(w http.ResponseWriter, r *http.Request) {
	articles := s.store.FilteredArticles()
	if r.URL.Query().Get("all") == "true" {
		articles = s.store.Articles()
	}

	resp := struct {
		Articles         []domain.Article `json:"articles"`
		Selected         []string         `json:"selected"`
		ShowRelevantOnly bool             `json:"show_relevant_only"`
		SortBy           domain.SortMode  `json:"sort_by"`
	}{
		Articles:         articles,
		Selected:         s.store.Selected(),
		ShowRelevantOnly: s.store.ShowRelevantOnly(),
		SortBy:           s.store.SortBy(),
	}
	RenderJSON(w, r, http.StatusOK, resp)
}

// refreshHandler triggers one refresh cycle
func (s *Server) refreshHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.store.LoadArticles(r.Context()); err != nil {
		code := http.StatusBadGateway
		if errors.Is(err, store.ErrNoFeedURL) {
			code = http.StatusBadRequest
		}
		var parseErr *feed.ParseError
		if errors.As(err, &parseErr) {
			code = http.StatusUnprocessableEntity
		}
		RenderError(w, r, err, code)
		return
	}
	RenderJSON(w, r, http.StatusOK, s.store.Status())
}

// feedURLHandler validates and commits a new feed URL
func (s *Server) feedURLHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RenderError(w, r, fmt.Errorf("decode request: %w", err), http.StatusBadRequest)
		return
	}

	url := strings.TrimSpace(req.URL)
	if url != "" && !s.validator.Validate(r.Context(), url) {
		RenderError(w, r, fmt.Errorf("url does not serve a supported feed"), http.StatusBadRequest)
		return
	}

	s.store.SetFeedURL(url)
	s.persist(r.Context())
	RenderJSON(w, r, http.StatusOK, s.store.Config())
}

// configHandler replaces the feed configuration wholesale
func (s *Server) configHandler(w http.ResponseWriter, r *http.Request) {
	var cfg domain.FeedConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		RenderError(w, r, fmt.Errorf("decode request: %w", err), http.StatusBadRequest)
		return
	}
	if cfg.RefreshInterval < 0 || cfg.MaxArticles < 1 {
		RenderError(w, r, fmt.Errorf("invalid feed configuration"), http.StatusBadRequest)
		return
	}

	s.store.SetConfig(cfg)
	s.persist(r.Context())
	RenderJSON(w, r, http.StatusOK, s.store.Config())
}

// viewHandler updates the derived view preferences
func (s *Server) viewHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ShowRelevantOnly *bool            `json:"show_relevant_only"`
		SortBy           *domain.SortMode `json:"sort_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RenderError(w, r, fmt.Errorf("decode request: %w", err), http.StatusBadRequest)
		return
	}

	if req.ShowRelevantOnly != nil {
		s.store.SetShowRelevantOnly(*req.ShowRelevantOnly)
	}
	if req.SortBy != nil {
		if err := s.store.SetSortBy(*req.SortBy); err != nil {
			RenderError(w, r, err, http.StatusBadRequest)
			return
		}
	}

	s.persist(r.Context())
	RenderJSON(w, r, http.StatusOK, map[string]interface{}{
		"show_relevant_only": s.store.ShowRelevantOnly(),
		"sort_by":            s.store.SortBy(),
	})
}

// toggleSelectionHandler flips selection membership for one article
func (s *Server) toggleSelectionHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		RenderError(w, r, fmt.Errorf("article id required"), http.StatusBadRequest)
		return
	}

	s.store.ToggleSelection(req.ID)
	s.persist(r.Context())
	RenderJSON(w, r, http.StatusOK, map[string][]string{"selected": s.store.Selected()})
}

// selectAllHandler selects all articles of the filtered view, or none
func (s *Server) selectAllHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Selected bool `json:"selected"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RenderError(w, r, fmt.Errorf("decode request: %w", err), http.StatusBadRequest)
		return
	}

	s.store.SelectAll(req.Selected)
	s.persist(r.Context())
	RenderJSON(w, r, http.StatusOK, map[string][]string{"selected": s.store.Selected()})
}

// clearSelectionHandler empties the selection
func (s *Server) clearSelectionHandler(w http.ResponseWriter, r *http.Request) {
	s.store.ClearSelection()
	s.persist(r.Context())
	RenderJSON(w, r, http.StatusOK, map[string][]string{"selected": {}})
}

// analyzeHandler runs the analysis batch over the current selection
func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	report, err := s.store.AnalyzeSelected(r.Context())
	if err != nil {
		code := http.StatusBadRequest
		switch {
		case errors.Is(err, store.ErrAnalysisRunning):
			code = http.StatusConflict
		case errors.Is(err, store.ErrAllArticlesFailed):
			code = http.StatusBadGateway
		}
		RenderError(w, r, err, code)
		return
	}

	s.persist(r.Context())
	RenderJSON(w, r, http.StatusOK, report)
}

// analysisHandler returns all analysis results keyed by article id
func (s *Server) analysisHandler(w http.ResponseWriter, r *http.Request) {
	RenderJSON(w, r, http.StatusOK, s.store.Results())
}
