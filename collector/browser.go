package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// DefaultUserAgent is sent by the local browser scraper.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const browserTimeout = 90 * time.Second

// BrowserOptions returns allocator options for a scraping Chrome instance.
func BrowserOptions(headless bool) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(DefaultUserAgent),
		chromedp.WindowSize(1280, 1024),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)
	if headless {
		opts = append(opts, chromedp.Flag("disable-gpu", true))
	}
	return opts
}

// BrowserScraper renders a page in a local Chrome and reads its visible text.
// It is the fallback when no hosted scraping key is configured.
type BrowserScraper struct {
	headless bool
}

func NewBrowserScraper(headless bool) *BrowserScraper {
	return &BrowserScraper{headless: headless}
}

func (b *BrowserScraper) Scrape(ctx context.Context, url string) ([]Page, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, BrowserOptions(b.headless)...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	browserCtx, timeoutCancel := context.WithTimeout(browserCtx, browserTimeout)
	defer timeoutCancel()

	var title, text, final string
	if err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Title(&title),
		chromedp.Location(&final),
		chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text),
	); err != nil {
		return nil, fmt.Errorf("load page: %w", err)
	}

	return browserPages(url, title, final, text), nil
}

// browserPages builds the scrape result. A page without readable text yields
// no pages, which the collector stores as an empty result.
func browserPages(url, title, final, text string) []Page {
	text = strings.TrimSpace(text)
	if text == "" {
		return []Page{}
	}
	return []Page{{
		URL:     url,
		Title:   title,
		Content: text,
		Metadata: map[string]string{
			"sourceURL": final,
			"scraper":   "browser",
		},
	}}
}
