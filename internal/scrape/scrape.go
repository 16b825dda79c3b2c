// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scrape fetches help-center articles over the paginated JSON
// API and renders their HTML bodies to markdown.
package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"github.com/mvanek/helpsync/internal/httputil"
	"github.com/mvanek/helpsync/pkg/types"
)

const defaultPerPage = 30

// wireArticle is the help-center API representation of one article.
type wireArticle struct {
	ID        json.Number `json:"id"`
	Title     string      `json:"title"`
	HTMLURL   string      `json:"html_url"`
	CreatedAt string      `json:"created_at"`
	UpdatedAt string      `json:"updated_at"`
	Body      string      `json:"body"`
}

type articlePage struct {
	Articles []wireArticle `json:"articles"`
}

// Scraper lists help-center articles and renders them to markdown.
type Scraper struct {
	http   *http.Client
	cfg    types.ScrapeConfig
	conv   *md.Converter
	origin string
}

// New builds a Scraper. The markdown converter keeps relative links
// untouched so intra-help-center references survive rendering.
func New(cfg types.ScrapeConfig) (*Scraper, error) {
	if cfg.PerPage <= 0 {
		cfg.PerPage = defaultPerPage
	}

	origin := ""
	if u, err := url.Parse(cfg.BaseURL); err == nil && u.Host != "" {
		origin = u.Scheme + "://" + u.Host
	}

	return &Scraper{
		http:   &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		conv:   md.NewConverter("", true, nil),
		origin: origin,
	}, nil
}

// FetchAll walks the article listing page by page until the API stops
// returning full pages, rendering each article's body to markdown.
// The sequence is finite and non-restartable; a listing failure aborts
// the fetch since a partial set would look like mass upstream removal.
func (s *Scraper) FetchAll(ctx context.Context, w io.Writer) ([]types.Article, error) {
	var articles []types.Article

	for page := 1; ; page++ {
		fmt.Fprintf(w, "fetching page %d...\n", page)

		batch, err := s.fetchPage(ctx, page)
		if err != nil {
			return nil, fmt.Errorf("fetching page %d: %w", page, err)
		}
		if len(batch) == 0 {
			break
		}

		for _, wa := range batch {
			a, err := s.render(wa)
			if err != nil {
				fmt.Fprintf(w, "  warning: article %s render failed: %v\n", wa.ID.String(), err)
				continue
			}
			articles = append(articles, a)
		}

		if len(batch) < s.cfg.PerPage {
			break
		}
	}

	fmt.Fprintf(w, "fetched %d articles\n", len(articles))
	return articles, nil
}

// fetchPage retrieves one page of the article listing.
func (s *Scraper) fetchPage(ctx context.Context, page int) ([]wireArticle, error) {
	reqURL := fmt.Sprintf("%s?page=%d&per_page=%d", s.cfg.BaseURL, page, s.cfg.PerPage)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if s.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", s.cfg.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, s.http, req, 0)
	if err != nil {
		return nil, fmt.Errorf("listing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing returned HTTP %d", resp.StatusCode)
	}

	var p articlePage
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("parsing listing: %w", err)
	}
	return p.Articles, nil
}
