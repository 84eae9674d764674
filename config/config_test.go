package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable applyEnv reads so tests are hermetic.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"BOT_TOKEN", "LLM_PROVIDER", "LLM_MODEL", "LLM_BASE_URL", "LLM_API_KEY",
		"GROQ_API_KEY", "OPENAI_API_KEY", "DEEPSEEK_API_KEY", "ANTHROPIC_API_KEY",
		"TAVILY_API_KEY", "FIRECRAWL_API_KEY", "SERVER_ADDR", "DATA_DIR",
		"LINKEDIN_CLIENT_ID", "LINKEDIN_CLIENT_SECRET", "LINKEDIN_REDIRECT_URL",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Session.MaxDrafts != 10 || cfg.Session.SweepSchedule != "@every 5m" {
		t.Fatalf("session defaults = %+v", cfg.Session)
	}
	d, _ := cfg.IdleTimeout()
	if d != 24*time.Hour {
		t.Fatalf("IdleTimeout = %v", d)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Provider != "mock" || cfg.Storage.Driver != "file" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadJSON(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{
  "llm": {"provider": "openai", "model": "gpt-4o-mini", "api_key": "sk-test"},
  "storage": {"driver": "sqlite"},
  "session": {"max_drafts": 5}
}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Model != "gpt-4o-mini" || cfg.Session.MaxDrafts != 5 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Search.MaxResults != 5 {
		t.Fatalf("defaults lost: %+v", cfg.Search)
	}
	if got := cfg.StoragePath(); got != filepath.Join("data", "devecho.db") {
		t.Fatalf("StoragePath = %q", got)
	}
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `llm:
  provider: anthropic
  api_key: key
scrape:
  provider: browser
  headless: false
session:
  idle_timeout: 30m
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Provider != "anthropic" || cfg.Scrape.Provider != "browser" || cfg.Scrape.Headless {
		t.Fatalf("cfg = %+v", cfg)
	}
	if d, _ := cfg.IdleTimeout(); d != 30*time.Minute {
		t.Fatalf("IdleTimeout = %v", d)
	}
}

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{
		"BOT_TOKEN":         "123:abc",
		"LLM_PROVIDER":      "groq",
		"GROQ_API_KEY":      "gsk",
		"TAVILY_API_KEY":    "tvly",
		"FIRECRAWL_API_KEY": "fc",
		"DATA_DIR":          "/var/lib/devecho",

		"LINKEDIN_CLIENT_ID":     "cid",
		"LINKEDIN_CLIENT_SECRET": "csecret",
		"LINKEDIN_REDIRECT_URL":  "https://devecho.example/linkedin/callback",
	}
	cfg := Default()
	applyEnv(&cfg, func(k string) string { return env[k] })

	if cfg.Telegram.Token != "123:abc" || cfg.LLM.APIKey != "gsk" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if !strings.Contains(cfg.LLM.BaseURL, "groq.com") {
		t.Fatalf("groq base url = %q", cfg.LLM.BaseURL)
	}
	if cfg.Search.APIKey != "tvly" || cfg.Scrape.APIKey != "fc" || cfg.DataDir != "/var/lib/devecho" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.LinkedIn.ClientID != "cid" || cfg.LinkedIn.ClientSecret != "csecret" || cfg.LinkedIn.RedirectURL == "" {
		t.Fatalf("linkedin = %+v", cfg.LinkedIn)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no provider", func(c *Config) { c.LLM.Provider = "" }, "llm.provider"},
		{"missing key", func(c *Config) { c.LLM.Provider = "openai" }, "api key"},
		{"storage", func(c *Config) { c.Storage.Driver = "redis" }, "storage driver"},
		{"firecrawl key", func(c *Config) { c.Scrape.Provider = "firecrawl" }, "FIRECRAWL_API_KEY"},
		{"tavily key", func(c *Config) { c.Search.Provider = "tavily" }, "TAVILY_API_KEY"},
		{"bad duration", func(c *Config) { c.Session.IdleTimeout = "soon" }, "idle_timeout"},
		{"shortener", func(c *Config) { c.Shorten.Provider = "bitly" }, "shorten provider"},
		{"linkedin app", func(c *Config) { c.LinkedIn.ClientID = "cid" }, "client_secret"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Validate() = %v, want %q", err, tc.want)
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("DEVECHO_TEST_VALUE=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DEVECHO_TEST_VALUE", "")
	os.Unsetenv("DEVECHO_TEST_VALUE")
	if err := LoadEnv(path); err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if got := os.Getenv("DEVECHO_TEST_VALUE"); got != "from-file" {
		t.Fatalf("DEVECHO_TEST_VALUE = %q", got)
	}
	if err := LoadEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing file: %v", err)
	}
}
