// Package shorten wraps URL shortening services.
package shorten

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const tinyURLEndpoint = "https://tinyurl.com/api-create.php"

// Shortener returns a shorter alias for a URL.
type Shortener interface {
	Shorten(ctx context.Context, longURL string) (string, error)
}

// TinyURL uses the tinyurl.com create API, which needs no key.
type TinyURL struct {
	Endpoint string
	client   *http.Client
	limiter  *rate.Limiter
}

func NewTinyURL(rps float64) *TinyURL {
	lim := rate.NewLimiter(rate.Inf, 1)
	if rps > 0 {
		lim = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &TinyURL{
		Endpoint: tinyURLEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		limiter:  lim,
	}
}

func (t *TinyURL) Shorten(ctx context.Context, longURL string) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.Endpoint+"?url="+url.QueryEscape(longURL), nil)
	if err != nil {
		return "", err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tinyurl status %d", resp.StatusCode)
	}
	short := strings.TrimSpace(string(body))
	if !strings.HasPrefix(short, "http") {
		return "", errors.New("tinyurl returned no url")
	}
	return short, nil
}

// Noop returns URLs unchanged. Used for offline runs.
type Noop struct{}

func (Noop) Shorten(_ context.Context, longURL string) (string, error) { return longURL, nil }

// OrOriginal shortens u, falling back to u itself on any failure.
func OrOriginal(ctx context.Context, s Shortener, u string) (string, error) {
	if s == nil {
		return u, nil
	}
	short, err := s.Shorten(ctx, u)
	if err != nil {
		return u, err
	}
	return short, nil
}
