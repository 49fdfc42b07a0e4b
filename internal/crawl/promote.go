package crawl

import (
	"bytes"
	"strings"
)

// spaMarkers are fragments left behind by client-rendered frameworks.
var spaMarkers = [][]byte{
	[]byte("__next"),
	[]byte(`id="root"`),
	[]byte(`id="app"`),
	[]byte("data-reactroot"),
	[]byte("ng-version"),
}

// Promoter decides whether a probe fetch must be repeated in a headless
// browser.
type Promoter struct {
	// MinContentChars is the extracted-text length below which a page is
	// considered thin.
	MinContentChars int
}

// ShouldPromote reports whether resp, given what was extracted from it,
// needs rendering. Only thin 200 responses that look client-rendered are
// promoted; a short static page renders the same either way.
func (p Promoter) ShouldPromote(resp FetchResponse, ext Extraction) bool {
	if resp.StatusCode != 200 {
		return false
	}
	if len(resp.Body) == 0 {
		return true
	}
	if len([]rune(strings.TrimSpace(ext.Content))) >= p.MinContentChars {
		return false
	}
	if scriptDensityHigh(resp.Body) {
		return true
	}
	for _, marker := range spaMarkers {
		if bytes.Contains(resp.Body, marker) {
			return true
		}
	}
	return false
}

func scriptDensityHigh(body []byte) bool {
	lower := strings.ToLower(string(body))
	total := len(lower)
	if total == 0 {
		return false
	}

	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	covered := 0
	pos := 0
	for {
		rel := strings.Index(lower[pos:], openTag)
		if rel == -1 {
			break
		}
		start := pos + rel
		tagEnd := strings.IndexByte(lower[start:], '>')
		if tagEnd == -1 {
			covered += total - start
			break
		}
		bodyStart := start + tagEnd + 1
		next := total
		if end := strings.Index(lower[bodyStart:], closeTag); end != -1 {
			next = bodyStart + end + len(closeTag)
		}
		covered += next - start
		pos = next
	}
	return covered*100/total >= 25
}
