// Package extract pulls the readable title, description and body text out of
// an HTML document.
package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"github.com/JakeFAU/site-enricher/internal/crawl"
)

var (
	whitespace = regexp.MustCompile(`\s+`)
	blockOpen  = regexp.MustCompile(`<(div|p|br|li|td|tr|h[1-6])(\s[^>]*)?/?>`)
)

// Readability implements crawl.Extractor with go-readability, falling back to
// document metadata and the raw <body> text when the article heuristics fail.
type Readability struct{}

// New returns a Readability extractor.
func New() *Readability {
	return &Readability{}
}

// Extract parses html fetched from pageURL.
func (r *Readability) Extract(html []byte, pageURL string) (crawl.Extraction, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return crawl.Extraction{}, fmt.Errorf("parse page url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return crawl.Extraction{}, fmt.Errorf("parse html: %w", err)
	}

	out := crawl.Extraction{
		Title:       normalize(doc.Find("title").First().Text()),
		Description: metaDescription(doc),
	}

	article, err := readability.FromReader(bytes.NewReader(html), parsedURL)
	if err == nil {
		if title := normalize(article.Title); title != "" {
			out.Title = title
		}
		if out.Description == "" {
			out.Description = normalize(article.Excerpt)
		}
		out.Content = textOf(article.Content)
	}
	if out.Content == "" {
		doc.Find("script,style,noscript").Remove()
		out.Content = normalize(doc.Find("body").Text())
	}
	return out, nil
}

func metaDescription(doc *goquery.Document) string {
	for _, sel := range []string{`meta[name="description"]`, `meta[property="og:description"]`} {
		if v, ok := doc.Find(sel).First().Attr("content"); ok {
			if v = normalize(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// textOf flattens readability's cleaned HTML into plain text, keeping block
// boundaries as spaces so adjacent paragraphs do not run together.
func textOf(articleHTML string) string {
	if strings.TrimSpace(articleHTML) == "" {
		return ""
	}
	spaced := blockOpen.ReplaceAllString(articleHTML, " $0")
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(spaced))
	if err != nil {
		return ""
	}
	return normalize(doc.Text())
}

func normalize(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}
