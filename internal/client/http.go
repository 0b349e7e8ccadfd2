package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"

	"trends/scraper/internal/config"
	"trends/scraper/internal/proxy"
)

var ErrQuotaExceeded = errors.New("quota exceeded")

// httpFetcher is the transport shared by the trends and news clients. It paces requests and
// rotates proxies on quota errors but never retries by itself: retries belong to the caller.
// Each proxy gets its own resty client; rotation swaps the current client instead of changing
// the proxy of a client that other requests are using.
type httpFetcher struct {
	rl            ratelimit.Limiter
	proxySupplier proxy.ProxySupplier
	timeout       time.Duration

	mu      sync.Mutex
	client  *resty.Client
	clients map[string]*resty.Client
}

func newHTTPFetcher(cfg config.TrendsConfig, proxySupplier proxy.ProxySupplier) *httpFetcher {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	rl := ratelimit.NewUnlimited()
	if cfg.MaxRequestsPerSecond > 0 {
		rl = ratelimit.New(cfg.MaxRequestsPerSecond)
	}

	f := &httpFetcher{
		rl:            rl,
		proxySupplier: proxySupplier,
		timeout:       timeout,
		clients:       make(map[string]*resty.Client),
	}

	proxyURL := ""
	if proxySupplier != nil {
		proxyURL = proxySupplier.Get()
	}
	f.client = f.clientFor(proxyURL)
	if proxyURL != "" {
		log.Infof("🔗 Using initial proxy: %s", proxyURL)
	}

	return f
}

// clientFor returns the client bound to proxyURL, creating it on first use. f.mu must be held
// or f must not be shared yet.
func (f *httpFetcher) clientFor(proxyURL string) *resty.Client {
	if c, ok := f.clients[proxyURL]; ok {
		return c
	}

	c := resty.New().
		SetTimeout(f.timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36").
		SetHeader("Accept-Language", "en-US,en;q=0.5")
	if proxyURL != "" {
		c.SetProxy(proxyURL)
	}

	f.clients[proxyURL] = c
	return c
}

func (f *httpFetcher) current() *resty.Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.client
}

func (f *httpFetcher) get(ctx context.Context, url string, params map[string]string) (string, error) {
	f.rl.Take()

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	client := f.current()
	resp, err := client.R().
		SetContext(reqCtx).
		SetQueryParams(params).
		Get(url)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}

	body := resp.String()
	if resp.StatusCode() == http.StatusTooManyRequests || strings.Contains(body, "Quota Exceeded") {
		log.Warnf("🚫 Rate limit exceeded for URL: %s", url)
		f.rotateProxy(client)
		return "", fmt.Errorf("%w: HTTP %d", ErrQuotaExceeded, resp.StatusCode())
	}

	if resp.IsError() {
		return "", fmt.Errorf("HTTP error: %d %s", resp.StatusCode(), resp.Status())
	}

	return body, nil
}

// rotateProxy moves to the next proxy unless another request already moved away from failed.
func (f *httpFetcher) rotateProxy(failed *resty.Client) {
	if f.proxySupplier == nil {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.client != failed {
		return
	}
	if next := f.proxySupplier.Get(); next != "" {
		log.Infof("🔄 Switching to new proxy: %s", next)
		f.client = f.clientFor(next)
	}
}
