package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobradar/jobradar/pkg/domain"
	"github.com/jobradar/jobradar/pkg/feed"
	"github.com/jobradar/jobradar/pkg/relevance"
	"github.com/jobradar/jobradar/pkg/store"
)

type stubParser struct {
	mu       sync.Mutex
	articles []domain.Article
	err      error
}

func (p *stubParser) Parse(_ context.Context, _ string) ([]domain.Article, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	out := make([]domain.Article, len(p.articles))
	copy(out, p.articles)
	return out, nil
}

type stubAnalyzer struct {
	credentialOK bool
	failAll      bool
}

func (a *stubAnalyzer) CredentialOK() bool { return a.credentialOK }

func (a *stubAnalyzer) Analyze(_ context.Context, article domain.Article) (domain.AnalysisResult, error) {
	if a.failAll {
		return domain.AnalysisResult{}, fmt.Errorf("llm unavailable")
	}
	return domain.AnalysisResult{ArticleID: article.ID, ImpactLevel: domain.ImpactMedium, Sentiment: domain.SentimentNegative}, nil
}

type stubValidator struct{ ok bool }

func (v *stubValidator) Validate(_ context.Context, _ string) bool { return v.ok }

type recordSaver struct {
	mu    sync.Mutex
	saves int
	last  domain.Snapshot
}

func (s *recordSaver) Save(_ context.Context, snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.last = snap
	return nil
}

func (s *recordSaver) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

type stubConfig struct{}

func (stubConfig) GetServerConfig() (string, time.Duration) { return "127.0.0.1:0", 5 * time.Second }

type testEnv struct {
	ts       *httptest.Server
	store    *store.Store
	parser   *stubParser
	analyzer *stubAnalyzer
	saver    *recordSaver
}

func setupTestServer(t *testing.T, cfg domain.FeedConfig) *testEnv {
	t.Helper()

	parser := &stubParser{articles: []domain.Article{
		{ID: "a1", Title: "TechCorp announces layoffs", PubDate: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)},
		{ID: "a2", Title: "Garden show opens", PubDate: time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC)},
	}}
	analyzer := &stubAnalyzer{credentialOK: true}
	saver := &recordSaver{}

	st := store.New(parser, analyzer, cfg)
	st.SetPipeline(feed.Deduplicate, relevance.Classify)
	t.Cleanup(st.Close)

	srv := New(stubConfig{}, st, &stubValidator{ok: true}, saver, "test", false)
	ts := httptest.NewServer(srv.router)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, store: st, parser: parser, analyzer: analyzer, saver: saver}
}

func request(t *testing.T, method, url string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestServer_Ping(t *testing.T) {
	env := setupTestServer(t, domain.FeedConfig{URL: "http://example.com/feed", MaxArticles: 10})

	resp, body := request(t, http.MethodGet, env.ts.URL+"/ping", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pong", string(body))
	assert.Equal(t, "jobradar", resp.Header.Get("App-Name"))
}

func TestServer_Status(t *testing.T) {
	env := setupTestServer(t, domain.FeedConfig{URL: "http://example.com/feed", MaxArticles: 10})

	resp, body := request(t, http.MethodGet, env.ts.URL+"/api/v1/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status struct {
		Version   string            `json:"version"`
		Feed      domain.FeedStatus `json:"feed"`
		Config    domain.FeedConfig `json:"config"`
		Loading   bool              `json:"loading"`
		Analyzing bool              `json:"analyzing"`
	}
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, "test", status.Version)
	assert.Equal(t, domain.StateHealthy, status.Feed.State)
	assert.Equal(t, "http://example.com/feed", status.Config.URL)
	assert.False(t, status.Loading)
	assert.False(t, status.Analyzing)
}

func TestServer_RefreshAndArticles(t *testing.T) {
	env := setupTestServer(t, domain.FeedConfig{URL: "http://example.com/feed", MaxArticles: 10, FilterRelevant: true})

	resp, body := request(t, http.MethodPost, env.ts.URL+"/api/v1/refresh", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status domain.FeedStatus
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, domain.StateHealthy, status.State)
	assert.Equal(t, 2, status.ArticleCount)

	resp, body = request(t, http.MethodGet, env.ts.URL+"/api/v1/articles", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view struct {
		Articles         []domain.Article `json:"articles"`
		Selected         []string         `json:"selected"`
		ShowRelevantOnly bool             `json:"show_relevant_only"`
		SortBy           domain.SortMode  `json:"sort_by"`
	}
	require.NoError(t, json.Unmarshal(body, &view))
	require.Len(t, view.Articles, 2)
	assert.Equal(t, "a2", view.Articles[0].ID, "default sort is date descending")
	assert.Empty(t, view.Selected)
	assert.Equal(t, domain.SortByDate, view.SortBy)
}

func TestServer_Refresh_Errors(t *testing.T) {
	t.Run("no feed url configured", func(t *testing.T) {
		env := setupTestServer(t, domain.FeedConfig{MaxArticles: 10})
		resp, body := request(t, http.MethodPost, env.ts.URL+"/api/v1/refresh", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, string(body), "no feed url configured")
	})

	t.Run("malformed feed content", func(t *testing.T) {
		env := setupTestServer(t, domain.FeedConfig{URL: "http://example.com/feed", MaxArticles: 10})
		env.parser.mu.Lock()
		env.parser.err = &feed.ParseError{URL: "http://example.com/feed", Err: fmt.Errorf("not xml")}
		env.parser.mu.Unlock()

		resp, _ := request(t, http.MethodPost, env.ts.URL+"/api/v1/refresh", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("network failure", func(t *testing.T) {
		env := setupTestServer(t, domain.FeedConfig{URL: "http://example.com/feed", MaxArticles: 10})
		env.parser.mu.Lock()
		env.parser.err = &feed.FetchError{URL: "http://example.com/feed", Err: fmt.Errorf("connection refused")}
		env.parser.mu.Unlock()

		resp, _ := request(t, http.MethodPost, env.ts.URL+"/api/v1/refresh", nil)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})
}

func TestServer_FeedURL(t *testing.T) {
	env := setupTestServer(t, domain.FeedConfig{MaxArticles: 10})

	resp, body := request(t, http.MethodPost, env.ts.URL+"/api/v1/feed/url",
		map[string]string{"url": "http://example.com/new-feed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var cfg domain.FeedConfig
	require.NoError(t, json.Unmarshal(body, &cfg))
	assert.Equal(t, "http://example.com/new-feed", cfg.URL)
	assert.Equal(t, 1, env.saver.count(), "url change persisted")
}

func TestServer_FeedURL_RejectedByValidator(t *testing.T) {
	env := setupTestServer(t, domain.FeedConfig{MaxArticles: 10})

	srv := New(stubConfig{}, env.store, &stubValidator{ok: false}, env.saver, "test", false)
	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	resp, body := request(t, http.MethodPost, ts.URL+"/api/v1/feed/url",
		map[string]string{"url": "http://example.com/not-a-feed"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "does not serve a supported feed")
	assert.Empty(t, env.store.Config().URL, "rejected url not committed")
}

func TestServer_Config(t *testing.T) {
	env := setupTestServer(t, domain.FeedConfig{MaxArticles: 10})

	t.Run("valid update", func(t *testing.T) {
		resp, body := request(t, http.MethodPut, env.ts.URL+"/api/v1/config", domain.FeedConfig{
			URL: "http://example.com/feed", RefreshInterval: 60, MaxArticles: 5, FilterRelevant: true,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var cfg domain.FeedConfig
		require.NoError(t, json.Unmarshal(body, &cfg))
		assert.Equal(t, 60, cfg.RefreshInterval)
		assert.Equal(t, 5, cfg.MaxArticles)
	})

	t.Run("invalid configuration rejected", func(t *testing.T) {
		resp, _ := request(t, http.MethodPut, env.ts.URL+"/api/v1/config",
			domain.FeedConfig{URL: "http://example.com/feed", MaxArticles: 0})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestServer_View(t *testing.T) {
	env := setupTestServer(t, domain.FeedConfig{URL: "http://example.com/feed", MaxArticles: 10})

	t.Run("update both preferences", func(t *testing.T) {
		resp, body := request(t, http.MethodPut, env.ts.URL+"/api/v1/view",
			map[string]interface{}{"show_relevant_only": true, "sort_by": "relevance"})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var view struct {
			ShowRelevantOnly bool            `json:"show_relevant_only"`
			SortBy           domain.SortMode `json:"sort_by"`
		}
		require.NoError(t, json.Unmarshal(body, &view))
		assert.True(t, view.ShowRelevantOnly)
		assert.Equal(t, domain.SortByRelevance, view.SortBy)
	})

	t.Run("partial update leaves the other untouched", func(t *testing.T) {
		resp, _ := request(t, http.MethodPut, env.ts.URL+"/api/v1/view",
			map[string]interface{}{"show_relevant_only": false})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.False(t, env.store.ShowRelevantOnly())
		assert.Equal(t, domain.SortByRelevance, env.store.SortBy())
	})

	t.Run("invalid sort mode", func(t *testing.T) {
		resp, _ := request(t, http.MethodPut, env.ts.URL+"/api/v1/view",
			map[string]interface{}{"sort_by": "shuffle"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestServer_Selection(t *testing.T) {
	env := setupTestServer(t, domain.FeedConfig{URL: "http://example.com/feed", MaxArticles: 10})
	_, _ = request(t, http.MethodPost, env.ts.URL+"/api/v1/refresh", nil)

	t.Run("toggle", func(t *testing.T) {
		resp, body := request(t, http.MethodPost, env.ts.URL+"/api/v1/selection/toggle",
			map[string]string{"id": "a1"})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var sel map[string][]string
		require.NoError(t, json.Unmarshal(body, &sel))
		assert.Equal(t, []string{"a1"}, sel["selected"])
	})

	t.Run("toggle without id", func(t *testing.T) {
		resp, _ := request(t, http.MethodPost, env.ts.URL+"/api/v1/selection/toggle",
			map[string]string{})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("select all", func(t *testing.T) {
		resp, body := request(t, http.MethodPost, env.ts.URL+"/api/v1/selection/all",
			map[string]bool{"selected": true})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var sel map[string][]string
		require.NoError(t, json.Unmarshal(body, &sel))
		assert.Len(t, sel["selected"], 2)
	})

	t.Run("clear", func(t *testing.T) {
		resp, body := request(t, http.MethodDelete, env.ts.URL+"/api/v1/selection", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var sel map[string][]string
		require.NoError(t, json.Unmarshal(body, &sel))
		assert.Empty(t, sel["selected"])
		assert.Empty(t, env.store.Selected())
	})
}

func TestServer_Analyze(t *testing.T) {
	env := setupTestServer(t, domain.FeedConfig{URL: "http://example.com/feed", MaxArticles: 10})
	_, _ = request(t, http.MethodPost, env.ts.URL+"/api/v1/refresh", nil)

	t.Run("empty selection", func(t *testing.T) {
		resp, body := request(t, http.MethodPost, env.ts.URL+"/api/v1/analyze", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, string(body), "no articles selected")
	})

	t.Run("successful batch", func(t *testing.T) {
		_, _ = request(t, http.MethodPost, env.ts.URL+"/api/v1/selection/all", map[string]bool{"selected": true})

		resp, body := request(t, http.MethodPost, env.ts.URL+"/api/v1/analyze", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var report store.BatchReport
		require.NoError(t, json.Unmarshal(body, &report))
		assert.Equal(t, 2, report.Processed)
		assert.Zero(t, report.Failed)

		resp, body = request(t, http.MethodGet, env.ts.URL+"/api/v1/analysis", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var results map[string]domain.AnalysisResult
		require.NoError(t, json.Unmarshal(body, &results))
		assert.Len(t, results, 2)
		assert.Equal(t, domain.ImpactMedium, results["a1"].ImpactLevel)
	})

	t.Run("all articles fail", func(t *testing.T) {
		env.analyzer.failAll = true
		defer func() { env.analyzer.failAll = false }()

		resp, _ := request(t, http.MethodPost, env.ts.URL+"/api/v1/analyze", nil)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})

	t.Run("invalid credential", func(t *testing.T) {
		env.analyzer.credentialOK = false
		defer func() { env.analyzer.credentialOK = true }()

		resp, body := request(t, http.MethodPost, env.ts.URL+"/api/v1/analyze", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, string(body), "credential")
	})
}

func TestServer_PersistOnMutation(t *testing.T) {
	env := setupTestServer(t, domain.FeedConfig{URL: "http://example.com/feed", MaxArticles: 10})
	_, _ = request(t, http.MethodPost, env.ts.URL+"/api/v1/refresh", nil)

	before := env.saver.count()
	_, _ = request(t, http.MethodPost, env.ts.URL+"/api/v1/selection/toggle", map[string]string{"id": "a1"})
	_, _ = request(t, http.MethodPut, env.ts.URL+"/api/v1/view", map[string]interface{}{"show_relevant_only": true})
	assert.Equal(t, before+2, env.saver.count())

	env.saver.mu.Lock()
	last := env.saver.last
	env.saver.mu.Unlock()
	assert.Equal(t, []string{"a1"}, last.SelectedArticles)
	assert.True(t, last.ShowRelevantOnly)
}

func TestServer_Run_Shutdown(t *testing.T) {
	env := setupTestServer(t, domain.FeedConfig{MaxArticles: 10})
	srv := New(stubConfig{}, env.store, &stubValidator{ok: true}, env.saver, "test", false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(100 * time.Millisecond) // let the listener come up
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
