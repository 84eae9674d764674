package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const tavilySearchURL = "https://api.tavily.com/search"

type tavilyReq struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	MaxResults    int    `json:"max_results"`
	SearchDepth   string `json:"search_depth"`
	IncludeAnswer bool   `json:"include_answer"`
}

// TavilySearcher runs topic searches against the Tavily API.
type TavilySearcher struct {
	APIKey   string
	Endpoint string
	client   *http.Client
	limiter  *rate.Limiter
}

func NewTavilySearcher(apiKey string, rps float64) *TavilySearcher {
	return &TavilySearcher{
		APIKey:   apiKey,
		Endpoint: tavilySearchURL,
		client:   &http.Client{Timeout: 60 * time.Second},
		limiter:  newLimiter(rps),
	}
}

// Search returns the parsed result with Raw holding the provider payload verbatim.
func (t *TavilySearcher) Search(ctx context.Context, query string, opts SearchOptions) (SearchResult, error) {
	if t.APIKey == "" {
		return SearchResult{}, errors.New("tavily api key is empty")
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = TopicMaxResults
	}
	if opts.Depth == "" {
		opts.Depth = TopicDepth
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return SearchResult{}, err
	}

	payload, err := json.Marshal(tavilyReq{
		APIKey:        t.APIKey,
		Query:         query,
		MaxResults:    opts.MaxResults,
		SearchDepth:   opts.Depth,
		IncludeAnswer: opts.IncludeAnswer,
	})
	if err != nil {
		return SearchResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return SearchResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return SearchResult{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return SearchResult{}, fmt.Errorf("read tavily response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return SearchResult{}, fmt.Errorf("tavily status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	var out SearchResult
	if err := json.Unmarshal(body, &out); err != nil {
		return SearchResult{}, fmt.Errorf("decode tavily response: %w", err)
	}
	if len(out.Results) == 0 && out.Answer == "" {
		return SearchResult{}, errors.New("tavily returned no results")
	}
	out.Raw = json.RawMessage(body)
	return out, nil
}
