// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scrape

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.yaml.in/yaml/v3"

	"github.com/mvanek/helpsync/pkg/types"
)

// unwantedSelectors match chrome and noise that must not end up in the
// search corpus.
var unwantedSelectors = []string{
	"nav", ".nav", ".navigation",
	".ad", ".advertisement", ".ads",
	".sidebar", ".menu",
	".footer", ".header",
	"script", "style",
}

var excessBlankLines = regexp.MustCompile(`\n{3,}`)

// render converts one wire article into a markdown Article.
func (s *Scraper) render(wa wireArticle) (types.Article, error) {
	body, err := s.htmlToMarkdown(wa.Body)
	if err != nil {
		return types.Article{}, err
	}

	a := types.Article{
		ID:    wa.ID.String(),
		Title: wa.Title,
		URL:   wa.HTMLURL,
	}
	if t, parseErr := time.Parse(time.RFC3339, wa.CreatedAt); parseErr == nil {
		a.CreatedAt = t
	}
	if t, parseErr := time.Parse(time.RFC3339, wa.UpdatedAt); parseErr == nil {
		a.UpdatedAt = t
	}
	a.Body = renderDocument(a, body)
	return a, nil
}

// htmlToMarkdown strips unwanted elements, normalizes article links to
// relative form, and converts the rest to markdown.
func (s *Scraper) htmlToMarkdown(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parsing article HTML: %w", err)
	}

	for _, sel := range unwantedSelectors {
		doc.Find(sel).Remove()
	}

	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		if s.origin != "" && strings.HasPrefix(href, s.origin+"/") {
			link.SetAttr("href", strings.TrimPrefix(href, s.origin))
		}
	})

	markdown := s.conv.Convert(doc.Selection)
	markdown = excessBlankLines.ReplaceAllString(markdown, "\n\n")
	return strings.TrimSpace(markdown), nil
}

// renderDocument wraps the converted body with a metadata header and an
// attribution footer, producing the exact bytes that get fingerprinted
// and uploaded.
func renderDocument(a types.Article, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", a.Title)
	fmt.Fprintf(&b, "**Article ID:** %s  \n", a.ID)
	fmt.Fprintf(&b, "**Original URL:** %s  \n", a.URL)
	if !a.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "**Created:** %s  \n", a.CreatedAt.Format(time.RFC3339))
	}
	if !a.UpdatedAt.IsZero() {
		fmt.Fprintf(&b, "**Updated:** %s  \n", a.UpdatedAt.Format(time.RFC3339))
	}
	b.WriteString("\n---\n\n")
	b.WriteString(body)
	b.WriteString("\n\n---\n*Scraped from the help center*\n")
	return b.String()
}

// WriteMetadata writes an article's metadata record (everything except
// the body) as YAML under dir.
func WriteMetadata(dir string, a types.Article) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating metadata directory: %w", err)
	}
	data, err := yaml.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, a.ID+".yaml"), data, 0o644)
}
