package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const firecrawlScrapeURL = "https://api.firecrawl.dev/v1/scrape"

type firecrawlReq struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
}

type firecrawlResp struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    struct {
		Markdown string `json:"markdown"`
		Metadata struct {
			Title      string `json:"title"`
			SourceURL  string `json:"sourceURL"`
			StatusCode int    `json:"statusCode"`
		} `json:"metadata"`
	} `json:"data"`
}

// FirecrawlScraper scrapes a single page via the Firecrawl API.
type FirecrawlScraper struct {
	APIKey   string
	Endpoint string
	client   *http.Client
	limiter  *rate.Limiter
}

// NewFirecrawlScraper rps<=0 disables client side throttling.
func NewFirecrawlScraper(apiKey string, rps float64) *FirecrawlScraper {
	return &FirecrawlScraper{
		APIKey:   apiKey,
		Endpoint: firecrawlScrapeURL,
		client:   &http.Client{Timeout: 60 * time.Second},
		limiter:  newLimiter(rps),
	}
}

func (f *FirecrawlScraper) Scrape(ctx context.Context, url string) ([]Page, error) {
	if f.APIKey == "" {
		return nil, errors.New("firecrawl api key is empty")
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(firecrawlReq{URL: url, Formats: []string{"markdown"}, OnlyMainContent: true})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.APIKey)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read firecrawl response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("firecrawl status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	var out firecrawlResp
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode firecrawl response: %w", err)
	}
	if !out.Success {
		return nil, fmt.Errorf("firecrawl: %s", out.Error)
	}
	if strings.TrimSpace(out.Data.Markdown) == "" {
		return []Page{}, nil
	}

	meta := map[string]string{"scraper": "firecrawl"}
	if out.Data.Metadata.SourceURL != "" {
		meta["sourceURL"] = out.Data.Metadata.SourceURL
	}
	return []Page{{
		URL:      url,
		Title:    out.Data.Metadata.Title,
		Content:  out.Data.Markdown,
		Metadata: meta,
	}}, nil
}

func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
