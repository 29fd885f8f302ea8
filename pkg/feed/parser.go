package feed

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/jobradar/jobradar/pkg/domain"
)

// Parser fetches RSS 2.0 / Atom 1.0 / RSS 1.0 feeds and normalizes entries
// into domain articles. Stateless with respect to store data.
type Parser struct {
	client    *http.Client
	userAgent string
	sanitizer *bluemonday.Policy
}

// NewParser creates a new feed parser with the given fetch timeout
func NewParser(timeout time.Duration, userAgent string) *Parser {
	return &Parser{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: userAgent,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// Parse fetches the URL and returns normalized articles in feed order.
// Network failures return *FetchError, unsupported or malformed content
// returns *ParseError.
func (p *Parser) Parse(ctx context.Context, url string) ([]domain.Article, error) {
	body, err := p.fetch(ctx, url)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer body.Close()

	parsed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, &ParseError{URL: url, Err: err}
	}

	articles := make([]domain.Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		articles = append(articles, p.normalize(item))
	}
	return articles, nil
}

// Validate probes the candidate URL and reports whether it serves a feed
// the parser understands. Never returns an error, any failure means false.
func (p *Parser) Validate(ctx context.Context, url string) bool {
	if strings.TrimSpace(url) == "" {
		return false
	}
	_, err := p.Parse(ctx, url)
	return err == nil
}

// normalize converts a gofeed item into a domain article with a stable ID
func (p *Parser) normalize(item *gofeed.Item) domain.Article {
	article := domain.Article{
		Title:       strings.TrimSpace(item.Title),
		Description: p.cleanText(item.Description),
		Link:        strings.TrimSpace(item.Link),
	}

	// prefer published time, fall back to updated
	if item.PublishedParsed != nil {
		article.PubDate = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		article.PubDate = *item.UpdatedParsed
	}

	article.ID = ArticleID(article.Link, article.Title, article.PubDate)
	return article
}

// cleanText strips HTML markup and collapses whitespace in feed-provided text
func (p *Parser) cleanText(s string) string {
	s = p.sanitizer.Sanitize(s)
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// fetch retrieves content from a URL
func (p *Parser) fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return resp.Body, nil
}
