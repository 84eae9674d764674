package cli

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"devecho/collector"
	"devecho/config"
	"devecho/generator"
	"devecho/llm"
	"devecho/pipeline"
	"devecho/publisher"
	"devecho/retrieval"
	"devecho/shorten"
	"devecho/store"
)

// app holds the components shared by every command.
type app struct {
	cfg       config.Config
	store     store.Store
	tones     *store.ToneStore
	runner    *pipeline.Runner
	publisher *publisher.Client
	// linker is nil unless linkedin.client_id is set.
	linker *publisher.Authorizer
}

func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// buildApp 按配置组装存储、采集、检索、生成和发布组件。
func buildApp(cfg config.Config, logger *log.Logger) (*app, error) {
	st, err := buildStore(cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, store: st, tones: store.NewToneStore(cfg.TonePath)}

	client, err := llm.New(cfg.LLMSettings())
	if err != nil {
		a.Close()
		return nil, err
	}
	ingester, scraper, searcher, err := buildSources(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	col := collector.New(ingester, scraper, searcher, st, logger)
	col.Search = collector.SearchOptions{
		MaxResults:    cfg.Search.MaxResults,
		Depth:         cfg.Search.Depth,
		IncludeAnswer: true,
	}

	ret, err := retrieval.New(client, st, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	agent, err := generator.NewAgent(client)
	if err != nil {
		a.Close()
		return nil, err
	}
	ref, err := generator.NewRefiner(agent, buildShortener(cfg), logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.runner = pipeline.New(col, ret, ref, a.tones, st, logger)
	httpClient := &http.Client{Timeout: 30 * time.Second}
	a.publisher = publisher.New(httpClient, cfg.LinkedIn.Verbose, logger)
	if cfg.LinkedIn.ClientID != "" {
		a.linker, err = publisher.NewAuthorizer(publisher.OAuthConfig{
			ClientID:     cfg.LinkedIn.ClientID,
			ClientSecret: cfg.LinkedIn.ClientSecret,
			RedirectURL:  cfg.LinkedIn.RedirectURL,
		}, httpClient)
		if err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func buildStore(cfg config.Config) (store.Store, error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		st, err := store.NewSQLiteStore(cfg.StoragePath())
		if err != nil {
			return nil, err
		}
		return st, nil
	case "file", "":
		st, err := store.NewFileStore(cfg.StoragePath())
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("storage driver %s not supported", cfg.Storage.Driver)
	}
}

func buildSources(cfg config.Config, logger *log.Logger) (collector.RepositoryIngester, collector.PageScraper, collector.TopicSearcher, error) {
	var (
		ingester collector.RepositoryIngester
		scraper  collector.PageScraper
		searcher collector.TopicSearcher
	)
	switch cfg.Repository.Provider {
	case "git", "":
		ingester = collector.NewGitIngester(cfg.Repository.MaxFileBytes, cfg.Repository.MaxTotalBytes, logger)
	case "mock":
		ingester = collector.MockIngester{}
	default:
		return nil, nil, nil, fmt.Errorf("repository provider %s not supported", cfg.Repository.Provider)
	}
	switch cfg.Scrape.Provider {
	case "firecrawl":
		scraper = collector.NewFirecrawlScraper(cfg.Scrape.APIKey, cfg.Scrape.RPS)
	case "browser":
		scraper = collector.NewBrowserScraper(cfg.Scrape.Headless)
	case "mock", "":
		scraper = collector.MockScraper{}
	default:
		return nil, nil, nil, fmt.Errorf("scrape provider %s not supported", cfg.Scrape.Provider)
	}
	switch cfg.Search.Provider {
	case "tavily":
		searcher = collector.NewTavilySearcher(cfg.Search.APIKey, cfg.Search.RPS)
	case "mock", "":
		searcher = collector.MockSearcher{}
	default:
		return nil, nil, nil, fmt.Errorf("search provider %s not supported", cfg.Search.Provider)
	}
	return ingester, scraper, searcher, nil
}

func buildShortener(cfg config.Config) shorten.Shortener {
	if cfg.Shorten.Provider == "none" {
		return shorten.Noop{}
	}
	return shorten.NewTinyURL(cfg.Shorten.RPS)
}
