package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	maxBodyBytes = 2 << 20
	userAgent    = "Mozilla/5.0 (compatible; fleetscraper/1.0)"
)

// PageResult is the rendered page handed to the extraction layer.
type PageResult struct {
	HTML       string
	FinalURL   string
	HTTPStatus int
	Title      string
}

// PageLoader fetches a URL and returns its rendered HTML.
type PageLoader interface {
	Fetch(ctx context.Context, pageURL string) (*PageResult, error)
}

var titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

// HTTPPageLoader is the production loader: plain HTTP with a per-host rate
// limiter so independent sources are throttled independently.
type HTTPPageLoader struct {
	client      *http.Client
	minInterval time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewHTTPPageLoader(timeout, minInterval time.Duration) *HTTPPageLoader {
	return &HTTPPageLoader{
		client:      &http.Client{Timeout: timeout},
		minInterval: minInterval,
		limiters:    make(map[string]*rate.Limiter),
	}
}

func (l *HTTPPageLoader) limiter(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if lim, exists := l.limiters[host]; exists {
		return lim
	}
	lim := rate.NewLimiter(rate.Every(l.minInterval), 1)
	l.limiters[host] = lim
	return lim
}

func (l *HTTPPageLoader) Fetch(ctx context.Context, pageURL string) (*PageResult, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", pageURL, err)
	}

	if err := l.limiter(parsed.Host).Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", pageURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}

	html := string(body)
	return &PageResult{
		HTML:       html,
		FinalURL:   resp.Request.URL.String(),
		HTTPStatus: resp.StatusCode,
		Title:      pageTitle(html),
	}, nil
}

func pageTitle(html string) string {
	if m := titleRe.FindStringSubmatch(html); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	return ""
}
