package store

import (
	"context"
	"fmt"

	"github.com/go-pkgz/lgr"

	"github.com/jobradar/jobradar/pkg/domain"
)

// ToggleSelection flips membership of the article id in the selection set.
// Selection keeps insertion order, the analysis batch processes articles in
// the order they were selected.
func (s *Store) ToggleSelection(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.selectedSet[id]; ok {
		s.removeSelectionLocked(id)
		return
	}
	s.addSelectionLocked(id)
}

// SelectAll sets the selection to all ids of the currently filtered view
// when selected is true, or empties it when false. It operates on the
// filtered view, not the full unfiltered article list.
func (s *Store) SelectAll(selected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedOrder = nil
	s.selectedSet = make(map[string]struct{})
	if !selected {
		return
	}
	for _, a := range s.filteredLocked() {
		s.addSelectionLocked(a.ID)
	}
}

// ClearSelection empties the selection unconditionally. A refresh never
// clears the selection implicitly, only this call does.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedOrder = nil
	s.selectedSet = make(map[string]struct{})
}

// Selected returns the selected article ids in selection order
func (s *Store) Selected() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.selectedOrder))
	copy(out, s.selectedOrder)
	return out
}

// IsSelected reports whether the article id is in the selection
func (s *Store) IsSelected(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.selectedSet[id]
	return ok
}

func (s *Store) addSelectionLocked(id string) bool {
	if _, ok := s.selectedSet[id]; ok {
		return false
	}
	s.selectedSet[id] = struct{}{}
	s.selectedOrder = append(s.selectedOrder, id)
	return true
}

func (s *Store) removeSelectionLocked(id string) {
	delete(s.selectedSet, id)
	for i, sid := range s.selectedOrder {
		if sid == id {
			s.selectedOrder = append(s.selectedOrder[:i], s.selectedOrder[i+1:]...)
			break
		}
	}
}

// Results returns a copy of the analysis result map
func (s *Store) Results() map[string]domain.AnalysisResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.AnalysisResult, len(s.results))
	for k, v := range s.results {
		out[k] = v
	}
	return out
}

// Result returns the analysis result for an article id, if present
func (s *Store) Result(id string) (domain.AnalysisResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[id]
	return r, ok
}

// AnalysisError returns the aggregate analysis error, empty when the last
// batch had at least one success
func (s *Store) AnalysisError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.analysisError
}

// IsAnalyzing reports whether an analysis batch is in flight
func (s *Store) IsAnalyzing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.analyzing
}

// AnalyzeSelected runs LLM analysis over the current selection, one article
// at a time in selection order. Preconditions (non-empty selection, valid
// credential shape) fail the whole batch before it starts. A failed call or
// unparseable response for one article is logged and skipped, the batch
// continues. The result for article N is stored before the call for N+1
// begins. An aggregate error is set only when every article fails.
func (s *Store) AnalyzeSelected(ctx context.Context) (BatchReport, error) {
	s.mu.Lock()
	if s.analyzing {
		s.mu.Unlock()
		return BatchReport{}, ErrAnalysisRunning
	}
	if len(s.selectedOrder) == 0 {
		s.analysisError = ErrEmptySelection.Error()
		s.mu.Unlock()
		return BatchReport{}, ErrEmptySelection
	}
	if s.analyzer == nil || !s.analyzer.CredentialOK() {
		s.analysisError = ErrInvalidCredential.Error()
		s.mu.Unlock()
		return BatchReport{}, ErrInvalidCredential
	}

	ids := make([]string, len(s.selectedOrder))
	copy(ids, s.selectedOrder)
	byID := make(map[string]domain.Article, len(s.articles))
	for _, a := range s.articles {
		byID[a.ID] = a
	}
	s.analyzing = true
	s.analysisError = ""
	s.mu.Unlock()

	var report BatchReport
	for _, id := range ids {
		article, ok := byID[id]
		if !ok {
			// selection can outlive the article list across refreshes
			lgr.Printf("[DEBUG] selected article %s no longer loaded, skipping", id)
			continue
		}

		result, err := s.analyzer.Analyze(ctx, article)
		if err != nil {
			lgr.Printf("[WARN] analysis failed for %q: %v", article.Title, err)
			report.Failed++
			continue
		}
		result.ArticleID = article.ID

		s.mu.Lock()
		s.results[article.ID] = result
		s.mu.Unlock()
		report.Processed++
	}

	s.mu.Lock()
	s.analyzing = false
	var err error
	if report.Processed == 0 && report.Failed > 0 {
		s.analysisError = fmt.Sprintf("analysis failed for all %d selected articles", report.Failed)
		err = ErrAllArticlesFailed
	}
	s.mu.Unlock()

	lgr.Printf("[INFO] analysis batch completed: %d analyzed, %d failed", report.Processed, report.Failed)
	return report, err
}
