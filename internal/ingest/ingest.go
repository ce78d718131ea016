// Package ingest turns HTML pages into plain sample text.
package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"chunkchain/internal/version"
)

// MaxBodyBytes caps how much of a fetched page is read.
const MaxBodyBytes = 10 << 20

var (
	spaceRun     = regexp.MustCompile(`\s+`)
	paragraphRun = regexp.MustCompile(`\n{3,}`)
)

// Document is the readable content of a page.
type Document struct {
	Title string
	Text  string
}

// Description returns the title, or fallback when the page has none.
func (d *Document) Description(fallback string) string {
	if d.Title != "" {
		return d.Title
	}
	return fallback
}

// FromHTML extracts the title and the text of the main content area. Block
// elements become paragraphs separated by blank lines; whitespace inside a
// block collapses to single spaces.
func FromHTML(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, noscript, nav, footer, aside, form, .ad, .advertisement, .sidebar").Remove()

	title := strings.TrimSpace(spaceRun.ReplaceAllString(doc.Find("title").First().Text(), " "))

	main := mainContent(doc)

	var paragraphs []string
	main.Find("p, h1, h2, h3, h4, h5, h6, li, blockquote, pre").Each(func(_ int, s *goquery.Selection) {
		// Nested blocks are picked up on their own.
		if s.Find("p, li, blockquote, pre").Length() > 0 {
			return
		}
		if text := collapse(s.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})

	text := strings.Join(paragraphs, "\n\n")
	if text == "" {
		text = collapse(main.Text())
	}
	text = paragraphRun.ReplaceAllString(text, "\n\n")

	return &Document{Title: title, Text: text}, nil
}

func mainContent(doc *goquery.Document) *goquery.Selection {
	for _, selector := range []string{"main", "article", ".content", ".post", ".entry", "#content", "#main"} {
		if sel := doc.Find(selector); sel.Length() > 0 {
			return sel.First()
		}
	}
	return doc.Find("body")
}

func collapse(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

// Fetcher downloads pages.
type Fetcher struct {
	client *http.Client
}

// NewFetcher returns a Fetcher using client, or a client with a 30 second
// timeout when client is nil.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{client: client}
}

// Fetch downloads url. HTML responses go through FromHTML; anything else is
// returned as-is.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "text/html, text/plain;q=0.9, */*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to fetch %s: HTTP %d", url, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, MaxBodyBytes)
	if strings.Contains(resp.Header.Get("Content-Type"), "html") {
		return FromHTML(body)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}
	return &Document{Text: strings.TrimSpace(string(data))}, nil
}
