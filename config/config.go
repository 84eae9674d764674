// Package config loads devecho settings from a JSON or YAML file plus the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"devecho/llm"
)

// Config is the top-level structure of config/config.json (or .yaml).
type Config struct {
	LLM        LLMConfig        `json:"llm" yaml:"llm"`
	Telegram   TelegramConfig   `json:"telegram" yaml:"telegram"`
	ServerAddr string           `json:"server_addr,omitempty" yaml:"server_addr"`
	DataDir    string           `json:"data_dir,omitempty" yaml:"data_dir"`
	TonePath   string           `json:"tone_path,omitempty" yaml:"tone_path"`
	Storage    StorageConfig    `json:"storage" yaml:"storage"`
	Scrape     ScrapeConfig     `json:"scrape" yaml:"scrape"`
	Search     SearchConfig     `json:"search" yaml:"search"`
	Repository RepositoryConfig `json:"repository" yaml:"repository"`
	Shorten    ShortenConfig    `json:"shorten" yaml:"shorten"`
	LinkedIn   LinkedInConfig   `json:"linkedin" yaml:"linkedin"`
	Session    SessionConfig    `json:"session" yaml:"session"`
}

// LLMConfig 对应 llm.Settings，provider 可选 openai / groq / deepseek / anthropic / mock。
type LLMConfig struct {
	Provider    string  `json:"provider,omitempty" yaml:"provider"`
	Model       string  `json:"model,omitempty" yaml:"model"`
	APIKey      string  `json:"api_key,omitempty" yaml:"api_key"`
	BaseURL     string  `json:"base_url,omitempty" yaml:"base_url"`
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature"`
	MaxTokens   int     `json:"max_tokens,omitempty" yaml:"max_tokens"`
}

type TelegramConfig struct {
	Token string `json:"token,omitempty" yaml:"token"`
	Debug bool   `json:"debug,omitempty" yaml:"debug"`
}

// StorageConfig selects the artifact backend: "file" or "sqlite".
type StorageConfig struct {
	Driver string `json:"driver,omitempty" yaml:"driver"`
	Path   string `json:"path,omitempty" yaml:"path"`
}

// ScrapeConfig selects the page scraper: "firecrawl", "browser" or "mock".
type ScrapeConfig struct {
	Provider string  `json:"provider,omitempty" yaml:"provider"`
	APIKey   string  `json:"api_key,omitempty" yaml:"api_key"`
	Headless bool    `json:"headless" yaml:"headless"`
	RPS      float64 `json:"rps,omitempty" yaml:"rps"`
}

// SearchConfig selects the topic searcher: "tavily" or "mock".
type SearchConfig struct {
	Provider   string  `json:"provider,omitempty" yaml:"provider"`
	APIKey     string  `json:"api_key,omitempty" yaml:"api_key"`
	MaxResults int     `json:"max_results,omitempty" yaml:"max_results"`
	Depth      string  `json:"depth,omitempty" yaml:"depth"`
	RPS        float64 `json:"rps,omitempty" yaml:"rps"`
}

// RepositoryConfig selects the repository ingester ("git" or "mock") and its limits.
type RepositoryConfig struct {
	Provider      string `json:"provider,omitempty" yaml:"provider"`
	MaxFileBytes  int64  `json:"max_file_bytes,omitempty" yaml:"max_file_bytes"`
	MaxTotalBytes int64  `json:"max_total_bytes,omitempty" yaml:"max_total_bytes"`
}

// ShortenConfig selects the URL shortener: "tinyurl" or "none".
type ShortenConfig struct {
	Provider string  `json:"provider,omitempty" yaml:"provider"`
	RPS      float64 `json:"rps,omitempty" yaml:"rps"`
}

// LinkedInConfig 中 client_id 为空时不启用 /linkedin 授权登录，用户仍可手动发送 token。
type LinkedInConfig struct {
	Attribution  string `json:"attribution" yaml:"attribution"`
	Verbose      bool   `json:"verbose,omitempty" yaml:"verbose"`
	ClientID     string `json:"client_id,omitempty" yaml:"client_id"`
	ClientSecret string `json:"client_secret,omitempty" yaml:"client_secret"`
	RedirectURL  string `json:"redirect_url,omitempty" yaml:"redirect_url"`
}

type SessionConfig struct {
	IdleTimeout   string `json:"idle_timeout,omitempty" yaml:"idle_timeout"`
	SweepSchedule string `json:"sweep_schedule,omitempty" yaml:"sweep_schedule"`
	MaxDrafts     int    `json:"max_drafts,omitempty" yaml:"max_drafts"`
}

// Default returns a Config populated with offline-friendly defaults.
func Default() Config {
	return Config{
		LLM:        LLMConfig{Provider: "mock", Temperature: 0.7},
		ServerAddr: ":8080",
		DataDir:    "data",
		TonePath:   filepath.Join("config", "tone.json"),
		Storage:    StorageConfig{Driver: "file"},
		Scrape:     ScrapeConfig{Provider: "mock", Headless: true, RPS: 2},
		Search:     SearchConfig{Provider: "mock", MaxResults: 5, Depth: "advanced", RPS: 2},
		Repository: RepositoryConfig{Provider: "git", MaxFileBytes: 1 << 20, MaxTotalBytes: 8 << 20},
		Shorten:    ShortenConfig{Provider: "tinyurl", RPS: 1},
		LinkedIn:   LinkedInConfig{Attribution: "Made with devecho"},
		Session:    SessionConfig{IdleTimeout: "24h", SweepSchedule: "@every 5m", MaxDrafts: 10},
	}
}

// Load reads path on top of Default. A missing file is not an error, so the
// process can run from environment variables alone. Environment overrides are
// applied last.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("reading config: %w", err)
		default:
			if err := decode(path, data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}
	applyEnv(&cfg, os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadEnv loads KEY=VALUE pairs from the given .env files into the process
// environment. Missing files are ignored; variables already set win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

func applyEnv(cfg *Config, getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.Telegram.Token, "BOT_TOKEN")
	set(&cfg.LLM.Provider, "LLM_PROVIDER")
	set(&cfg.LLM.Model, "LLM_MODEL")
	set(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	set(&cfg.LLM.APIKey, "LLM_API_KEY")
	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case "groq":
			set(&cfg.LLM.APIKey, "GROQ_API_KEY")
		case "openai":
			set(&cfg.LLM.APIKey, "OPENAI_API_KEY")
		case "deepseek":
			set(&cfg.LLM.APIKey, "DEEPSEEK_API_KEY")
		case "anthropic":
			set(&cfg.LLM.APIKey, "ANTHROPIC_API_KEY")
		}
	}
	if cfg.LLM.Provider == "groq" && cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://api.groq.com/openai/v1"
	}
	set(&cfg.Search.APIKey, "TAVILY_API_KEY")
	set(&cfg.Scrape.APIKey, "FIRECRAWL_API_KEY")
	set(&cfg.LinkedIn.ClientID, "LINKEDIN_CLIENT_ID")
	set(&cfg.LinkedIn.ClientSecret, "LINKEDIN_CLIENT_SECRET")
	set(&cfg.LinkedIn.RedirectURL, "LINKEDIN_REDIRECT_URL")
	set(&cfg.ServerAddr, "SERVER_ADDR")
	set(&cfg.DataDir, "DATA_DIR")
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	if c.LLM.Provider == "" {
		return errors.New("config must include llm.provider")
	}
	if c.LLM.Provider != "mock" && c.LLM.APIKey == "" {
		return fmt.Errorf("llm provider %s requires an api key (llm.api_key or LLM_API_KEY)", c.LLM.Provider)
	}
	switch c.Storage.Driver {
	case "file", "sqlite":
	default:
		return fmt.Errorf("storage driver %q not supported", c.Storage.Driver)
	}
	switch c.Scrape.Provider {
	case "firecrawl":
		if c.Scrape.APIKey == "" {
			return errors.New("scrape provider firecrawl requires an api key (FIRECRAWL_API_KEY)")
		}
	case "browser", "mock":
	default:
		return fmt.Errorf("scrape provider %q not supported", c.Scrape.Provider)
	}
	switch c.Search.Provider {
	case "tavily":
		if c.Search.APIKey == "" {
			return errors.New("search provider tavily requires an api key (TAVILY_API_KEY)")
		}
	case "mock":
	default:
		return fmt.Errorf("search provider %q not supported", c.Search.Provider)
	}
	switch c.Repository.Provider {
	case "git", "mock":
	default:
		return fmt.Errorf("repository provider %q not supported", c.Repository.Provider)
	}
	switch c.Shorten.Provider {
	case "tinyurl", "none":
	default:
		return fmt.Errorf("shorten provider %q not supported", c.Shorten.Provider)
	}
	if c.LinkedIn.ClientID != "" && (c.LinkedIn.ClientSecret == "" || c.LinkedIn.RedirectURL == "") {
		return errors.New("linkedin.client_id requires client_secret and redirect_url")
	}
	if _, err := c.IdleTimeout(); err != nil {
		return err
	}
	if c.Session.MaxDrafts < 0 {
		return errors.New("session.max_drafts must not be negative")
	}
	return nil
}

// IdleTimeout parses session.idle_timeout. An empty value disables eviction.
func (c Config) IdleTimeout() (time.Duration, error) {
	if c.Session.IdleTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Session.IdleTimeout)
	if err != nil {
		return 0, fmt.Errorf("session.idle_timeout: %w", err)
	}
	return d, nil
}

// LLMSettings converts the llm section for llm.New.
func (c Config) LLMSettings() *llm.Settings {
	return &llm.Settings{
		Provider:    c.LLM.Provider,
		Model:       c.LLM.Model,
		APIKey:      c.LLM.APIKey,
		BaseURL:     c.LLM.BaseURL,
		Temperature: c.LLM.Temperature,
		MaxTokens:   c.LLM.MaxTokens,
	}
}

// StoragePath is the artifact location, defaulting under DataDir.
func (c Config) StoragePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	if c.Storage.Driver == "sqlite" {
		return filepath.Join(c.DataDir, "devecho.db")
	}
	return filepath.Join(c.DataDir, "runs")
}
