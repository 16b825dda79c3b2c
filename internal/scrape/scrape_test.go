// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/mvanek/helpsync/pkg/types"
)

func wire(id int, title, body string) wireArticle {
	return wireArticle{
		ID:        json.Number(fmt.Sprintf("%d", id)),
		Title:     title,
		HTMLURL:   fmt.Sprintf("https://support.example.com/hc/en-us/articles/%d", id),
		CreatedAt: "2026-01-02T10:00:00Z",
		UpdatedAt: "2026-03-04T10:00:00Z",
		Body:      body,
	}
}

// articleServer serves paginated article listings from a fixed set.
func articleServer(t *testing.T, perPage int, articles []wireArticle) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := 1
		fmt.Sscanf(r.URL.Query().Get("page"), "%d", &page)
		start := (page - 1) * perPage
		end := start + perPage
		if start > len(articles) {
			start = len(articles)
		}
		if end > len(articles) {
			end = len(articles)
		}
		json.NewEncoder(w).Encode(articlePage{Articles: articles[start:end]})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func testScraper(t *testing.T, baseURL string, perPage int) *Scraper {
	t.Helper()
	s, err := New(types.ScrapeConfig{
		HTTPConfig: types.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "helpsync-test"},
		BaseURL:    baseURL,
		PerPage:    perPage,
	})
	require.NoError(t, err)
	return s
}

func TestFetchAllPaginates(t *testing.T) {
	all := []wireArticle{
		wire(1001, "One", "<p>first</p>"),
		wire(1002, "Two", "<p>second</p>"),
		wire(1003, "Three", "<p>third</p>"),
	}
	ts := articleServer(t, 2, all)
	s := testScraper(t, ts.URL, 2)

	var buf strings.Builder
	articles, err := s.FetchAll(context.Background(), &buf)
	require.NoError(t, err)
	require.Len(t, articles, 3)

	assert.Equal(t, "1001", articles[0].ID)
	assert.Equal(t, "1003", articles[2].ID)
	assert.Contains(t, buf.String(), "fetched 3 articles")
}

func TestFetchAllStopsOnShortPage(t *testing.T) {
	var pagesServed int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pagesServed++
		if pagesServed == 1 {
			json.NewEncoder(w).Encode(articlePage{Articles: []wireArticle{wire(1001, "Only", "<p>x</p>")}})
			return
		}
		json.NewEncoder(w).Encode(articlePage{})
	}))
	defer ts.Close()

	s := testScraper(t, ts.URL, 30)
	articles, err := s.FetchAll(context.Background(), &strings.Builder{})
	require.NoError(t, err)
	assert.Len(t, articles, 1)
	assert.Equal(t, 1, pagesServed, "a short page terminates the listing")
}

func TestFetchAllListingFailureAborts(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	s := testScraper(t, ts.URL, 30)
	_, err := s.FetchAll(context.Background(), &strings.Builder{})
	require.Error(t, err)
}

func TestRenderDocumentShape(t *testing.T) {
	ts := articleServer(t, 30, []wireArticle{
		wire(1001, "Getting Started", "<h2>Install</h2><p>Run the installer.</p>"),
	})
	s := testScraper(t, ts.URL, 30)

	articles, err := s.FetchAll(context.Background(), &strings.Builder{})
	require.NoError(t, err)
	require.Len(t, articles, 1)

	body := articles[0].Body
	assert.True(t, strings.HasPrefix(body, "# Getting Started\n"))
	assert.Contains(t, body, "**Article ID:** 1001")
	assert.Contains(t, body, "**Original URL:** https://support.example.com/hc/en-us/articles/1001")
	assert.Contains(t, body, "**Created:** 2026-01-02T10:00:00Z")
	assert.Contains(t, body, "## Install")
	assert.Contains(t, body, "Run the installer.")
	assert.True(t, strings.HasSuffix(body, "*Scraped from the help center*\n"))
	assert.Equal(t, "1001.md", articles[0].LogicalName())
}

func TestHTMLToMarkdownStripsChrome(t *testing.T) {
	ts := articleServer(t, 30, nil)
	s := testScraper(t, ts.URL, 30)

	md, err := s.htmlToMarkdown(`
		<nav>site nav</nav>
		<div class="sidebar">side</div>
		<script>evil()</script>
		<p>Real content.</p>
		<div class="ads">buy now</div>`)
	require.NoError(t, err)

	assert.Contains(t, md, "Real content.")
	assert.NotContains(t, md, "site nav")
	assert.NotContains(t, md, "side")
	assert.NotContains(t, md, "evil")
	assert.NotContains(t, md, "buy now")
}

func TestHTMLToMarkdownRewritesAbsoluteLinks(t *testing.T) {
	s := testScraper(t, "https://support.example.com/api/v2/help_center/en-us/articles", 30)

	md, err := s.htmlToMarkdown(
		`<p>See <a href="https://support.example.com/hc/en-us/articles/2002">this guide</a>` +
			` and <a href="/hc/en-us/articles/2003">that one</a>` +
			` and <a href="https://elsewhere.example.org/page">external</a>.</p>`)
	require.NoError(t, err)

	assert.Contains(t, md, "(/hc/en-us/articles/2002)")
	assert.Contains(t, md, "(/hc/en-us/articles/2003)")
	assert.Contains(t, md, "(https://elsewhere.example.org/page)")
}

func TestHTMLToMarkdownCollapsesBlankLines(t *testing.T) {
	ts := articleServer(t, 30, nil)
	s := testScraper(t, ts.URL, 30)

	md, err := s.htmlToMarkdown("<p>a</p><br><br><br><br><p>b</p>")
	require.NoError(t, err)
	assert.NotContains(t, md, "\n\n\n")
}

func TestWriteMetadata(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "metadata")
	a := types.Article{
		ID:        "1001",
		Title:     "Getting Started",
		URL:       "https://support.example.com/hc/en-us/articles/1001",
		UpdatedAt: time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
		Body:      "should not be persisted",
	}
	require.NoError(t, WriteMetadata(dir, a))

	data, err := os.ReadFile(filepath.Join(dir, "1001.yaml"))
	require.NoError(t, err)

	var got types.Article
	require.NoError(t, yaml.Unmarshal(data, &got))
	assert.Equal(t, "Getting Started", got.Title)
	assert.Empty(t, got.Body, "body is excluded from metadata")
}
