package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"devecho/classify"
	"devecho/store"
)

// RepositoryIngester turns a repository URL into (summary, tree, content).
type RepositoryIngester interface {
	Ingest(ctx context.Context, url string) (summary, tree, content string, err error)
}

// Page is one scraped page.
type Page struct {
	URL      string            `json:"url"`
	Title    string            `json:"title,omitempty"`
	Content  string            `json:"page_content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// PageScraper fetches a single page (no crawling).
type PageScraper interface {
	Scrape(ctx context.Context, url string) ([]Page, error)
}

// SearchOptions mirrors the knobs the topic branch sets.
type SearchOptions struct {
	MaxResults    int
	Depth         string
	IncludeAnswer bool
}

// SearchHit is one web search result.
type SearchHit struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// SearchResult keeps the raw provider payload alongside the parsed fields.
type SearchResult struct {
	Query   string          `json:"query"`
	Answer  string          `json:"answer,omitempty"`
	Results []SearchHit     `json:"results"`
	Raw     json.RawMessage `json:"-"`
}

// TopicSearcher runs a web search for a topic query.
type TopicSearcher interface {
	Search(ctx context.Context, query string, opts SearchOptions) (SearchResult, error)
}

// Topic search defaults.
const (
	TopicMaxResults = 5
	TopicDepth      = "advanced"
)

// Query is the routing metadata persisted next to the document.
type Query struct {
	Query     string `json:"query"`
	InputType string `json:"input_type"`
	InputURL  string `json:"input_url"`
}

// Collected is the outcome of one collection.
type Collected struct {
	Document string
	Query    Query
	// Warning is set when the repository branch fell back to an empty document.
	Warning error
}

// AcquisitionError reports a failed fetch or search.
type AcquisitionError struct {
	Kind classify.Kind
	URL  string
	Err  error
}

func (e *AcquisitionError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("acquire %s %s: %v", e.Kind, e.URL, e.Err)
	}
	return fmt.Sprintf("acquire %s: %v", e.Kind, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// Collector dispatches classified input to one acquisition strategy and
// persists the resulting document for the next stage.
type Collector struct {
	ingester RepositoryIngester
	scraper  PageScraper
	searcher TopicSearcher
	store    store.Store
	logger   *log.Logger

	// Search is passed to the searcher for topic input.
	Search SearchOptions
}

func New(ingester RepositoryIngester, scraper PageScraper, searcher TopicSearcher, st store.Store, logger *log.Logger) *Collector {
	if logger == nil {
		logger = log.Default()
	}
	return &Collector{
		ingester: ingester,
		scraper:  scraper,
		searcher: searcher,
		store:    st,
		logger:   logger,
		Search:   SearchOptions{MaxResults: TopicMaxResults, Depth: TopicDepth, IncludeAnswer: true},
	}
}

// Collect acquires content for in and writes the document and query record under runID.
func (c *Collector) Collect(ctx context.Context, runID string, in classify.ClassifiedInput) (Collected, error) {
	var (
		doc     string
		warning error
		err     error
	)
	switch in.Kind {
	case classify.RepositorySource:
		doc, warning = c.collectRepository(ctx, in.Payload)
	case classify.WebSource:
		doc, err = c.collectPage(ctx, in.Payload)
	default:
		doc, err = c.collectTopic(ctx, in.Instructions, in.Payload)
	}
	if err != nil {
		return Collected{}, err
	}

	if err := c.store.Put(ctx, runID, store.CollectedDocument, []byte(doc)); err != nil {
		return Collected{}, err
	}
	c.logger.Printf("[collector] run=%s wrote %d bytes (%s)", runID, len(doc), in.Kind)

	q := Query{Query: in.Instructions, InputType: string(in.Kind)}
	if in.HasURL() {
		q.InputURL = in.Payload
	}
	if err := store.PutJSON(ctx, c.store, runID, store.QueryRecord, q); err != nil {
		return Collected{}, err
	}

	return Collected{Document: doc, Query: q, Warning: warning}, nil
}

// collectRepository never fails: ingestion errors degrade to an empty document.
func (c *Collector) collectRepository(ctx context.Context, url string) (string, error) {
	summary, tree, content, err := c.ingester.Ingest(ctx, url)
	if err != nil {
		warning := &AcquisitionError{Kind: classify.RepositorySource, URL: url, Err: err}
		c.logger.Printf("[collector] ingestion error, continuing with empty document: %v", warning)
		return "", warning
	}
	return summary + tree + content, nil
}

func (c *Collector) collectPage(ctx context.Context, url string) (string, error) {
	pages, err := c.scraper.Scrape(ctx, url)
	if err != nil {
		return "", &AcquisitionError{Kind: classify.WebSource, URL: url, Err: err}
	}
	if pages == nil {
		pages = []Page{}
	}
	data, err := marshalDocument(pages)
	if err != nil {
		return "", &AcquisitionError{Kind: classify.WebSource, URL: url, Err: err}
	}
	return data, nil
}

func (c *Collector) collectTopic(ctx context.Context, instructions, topic string) (string, error) {
	query := instructions + ":-" + topic
	res, err := c.searcher.Search(ctx, query, c.Search)
	if err != nil {
		return "", &AcquisitionError{Kind: classify.TopicSource, Err: err}
	}
	if len(res.Raw) > 0 {
		return string(res.Raw), nil
	}
	data, err := json.Marshal(res)
	if err != nil {
		return "", &AcquisitionError{Kind: classify.TopicSource, Err: err}
	}
	return string(data), nil
}

// marshalDocument encodes v without HTML escaping so URLs with & stay intact.
func marshalDocument(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
