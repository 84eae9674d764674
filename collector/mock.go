package collector

import (
	"context"
	"fmt"
)

// MockIngester, MockScraper and MockSearcher return canned content so the
// pipeline can run offline.
type MockIngester struct{}

func (MockIngester) Ingest(_ context.Context, url string) (string, string, string, error) {
	summary := fmt.Sprintf("Repository: %s\nFiles analyzed: 1\n\n", url)
	tree := "Directory structure:\n└── repo/\n    └── README.md\n\n"
	content := fileSeparator + "FILE: README.md\n" + fileSeparator +
		"# Mock repository\n\nA small demo project used for offline runs. See " + url + "\n"
	return summary, tree, content, nil
}

type MockScraper struct{}

func (MockScraper) Scrape(_ context.Context, url string) ([]Page, error) {
	return []Page{{
		URL:      url,
		Title:    "Mock page",
		Content:  "Mock page content fetched from " + url,
		Metadata: map[string]string{"scraper": "mock"},
	}}, nil
}

type MockSearcher struct{}

func (MockSearcher) Search(_ context.Context, query string, opts SearchOptions) (SearchResult, error) {
	return SearchResult{
		Query:  query,
		Answer: "Mock answer for " + query,
		Results: []SearchHit{
			{Title: "Mock result", URL: "https://example.com/article", Content: "Background on " + query, Score: 0.9},
		},
	}, nil
}
