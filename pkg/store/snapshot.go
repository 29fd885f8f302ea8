package store

import "github.com/jobradar/jobradar/pkg/domain"

// ToSnapshot captures the persisted subset of the store's state: feed
// configuration, selection, analysis results and view preferences.
// Articles, status and transient flags are rebuilt on the next refresh.
func (s *Store) ToSnapshot() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	selected := make([]string, len(s.selectedOrder))
	copy(selected, s.selectedOrder)

	results := make(map[string]domain.AnalysisResult, len(s.results))
	for k, v := range s.results {
		results[k] = v
	}

	return domain.Snapshot{
		Config:           s.config,
		SelectedArticles: selected,
		AnalysisResults:  results,
		ShowRelevantOnly: s.showRelevantOnly,
		SortBy:           s.sortBy,
	}
}

// RestoreSnapshot replaces the persisted subset of the store's state from a
// previously captured snapshot and replaces the auto-refresh timer to match
// the restored configuration.
func (s *Store) RestoreSnapshot(snap domain.Snapshot) {
	s.mu.Lock()

	s.config = snap.Config

	s.selectedOrder = nil
	s.selectedSet = make(map[string]struct{}, len(snap.SelectedArticles))
	for _, id := range snap.SelectedArticles {
		s.addSelectionLocked(id)
	}

	s.results = make(map[string]domain.AnalysisResult, len(snap.AnalysisResults))
	for k, v := range snap.AnalysisResults {
		s.results[k] = v
	}

	s.showRelevantOnly = snap.ShowRelevantOnly
	if snap.SortBy.Valid() {
		s.sortBy = snap.SortBy
	}
	s.mu.Unlock()

	s.rescheduleRefresh()
}
