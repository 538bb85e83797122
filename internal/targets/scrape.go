package targets

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// ScraperConfig controls the viewer page collector.
type ScraperConfig struct {
	UserAgent string
	Timeout   time.Duration
	// Transport overrides the default pooled transport.
	Transport http.RoundTripper
}

// Scraper reads share codes from image viewer pages using colly.
type Scraper struct {
	cfg  ScraperConfig
	base *colly.Collector
}

var (
	errNoBBCode   = errors.New("no thumbnail bbcode found on page")
	bbcodePattern = regexp.MustCompile(`\[url=([^\]]+)\]\[img\]([^\[]+)\[/img\]\[/url\]`)
)

// NewScraper builds a Scraper.
func NewScraper(cfg ScraperConfig) *Scraper {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Transport == nil {
		cfg.Transport = newHTTPTransport()
	}
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.WithTransport(cfg.Transport)
	return &Scraper{cfg: cfg, base: c}
}

// ThumbnailBBCode fetches viewerURL and returns the viewer and thumbnail URLs
// of the share code that most looks like a thumbnail link.
func (s *Scraper) ThumbnailBBCode(ctx context.Context, viewerURL string) (string, string, error) {
	collector := s.base.Clone()
	collector.SetRequestTimeout(s.cfg.Timeout)
	if s.cfg.UserAgent != "" {
		collector.UserAgent = s.cfg.UserAgent
	}

	var (
		best     string
		fetchErr error
	)
	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Referer", refererFor(r.URL))
	})
	collector.OnHTML("html", func(e *colly.HTMLElement) {
		best = bestBBCode(e.DOM)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := runCollector(ctx, collector, viewerURL, &fetchErr); err != nil {
		return "", "", err
	}
	if best == "" {
		return "", "", errNoBBCode
	}
	m := bbcodePattern.FindStringSubmatch(best)
	if len(m) < 3 {
		return "", "", fmt.Errorf("parse bbcode candidate %q: %w", best, errNoBBCode)
	}
	return m[1], m[2], nil
}

// bestBBCode scores every text box holding a linked image code. Nearby labels
// and thumbnail-looking paths raise the score; earlier boxes win ties.
func bestBBCode(doc *goquery.Selection) string {
	best, bestScore := "", -100
	doc.Find("textarea, input[type='text']").Each(func(i int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text == "" {
			text = s.AttrOr("value", "")
		}
		if !strings.Contains(text, "[url=") || !strings.Contains(text, "[img]") {
			return
		}

		score := 0
		label := strings.ToLower(strings.Join([]string{
			s.Prev().Text(),
			s.Parent().Prev().Text(),
			s.Parent().Parent().Prev().Text(),
		}, " "))
		switch {
		case strings.Contains(label, "thumb"):
			score += 50
		case strings.Contains(label, "hotlink"), strings.Contains(label, "full"):
			score -= 50
		}
		switch {
		case strings.Contains(text, "/u/t/"), strings.Contains(text, "_t"):
			score += 100
		case strings.Contains(text, "/u/i/"):
			score -= 20
		}
		score -= i

		if score > bestScore {
			best, bestScore = text, score
		}
	})
	return best
}

func refererFor(u *url.URL) string {
	return u.Scheme + "://" + u.Host + "/"
}

func runCollector(ctx context.Context, collector *colly.Collector, target string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("scrape canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit %s: %w", target, err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("scrape response: %w", *fetchErr)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
