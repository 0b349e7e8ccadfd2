package proxy

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"resty.dev/v3"
)

// ProxySupplier hands out proxy URLs. An empty string means "connect directly".
type ProxySupplier interface {
	Get() string
}

type proxySupplier struct {
	proxies []string
	current int
	mutex   sync.Mutex
}

// NewStaticSupplier returns a round-robin supplier over proxies without validating them.
func NewStaticSupplier(proxies []string) ProxySupplier {
	return &proxySupplier{proxies: append([]string(nil), proxies...)}
}

// NewProxySupplier validates proxies in parallel against testURL and returns a round-robin
// supplier over the ones that answered.
func NewProxySupplier(ctx context.Context, proxies []string, testURL string) (ProxySupplier, error) {
	if len(proxies) == 0 {
		return &proxySupplier{}, nil
	}

	log.Infof("🔄 Testing %d proxies in parallel...", len(proxies))

	valid := make([]bool, len(proxies))
	semaphore := make(chan struct{}, 50)

	var wg sync.WaitGroup
	for i, proxyURL := range proxies {
		wg.Add(1)
		go func() {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			valid[i] = isProxyValid(ctx, proxyURL, testURL)
			if valid[i] {
				log.Infof("✅ Proxy %s is working", proxyURL)
			} else {
				log.Infof("❌ Proxy %s is not working, skipping", proxyURL)
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Keep the configured order so rotation is predictable.
	working := make([]string, 0, len(proxies))
	for i, ok := range valid {
		if ok {
			working = append(working, proxies[i])
		}
	}

	log.Infof("✅ ProxySupplier initialized with %d working proxies out of %d tested", len(working), len(proxies))

	return &proxySupplier{proxies: working}, nil
}

// Get returns the next proxy URL in round-robin fashion
func (p *proxySupplier) Get() string {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if len(p.proxies) == 0 {
		return ""
	}

	proxy := p.proxies[p.current]
	p.current = (p.current + 1) % len(p.proxies)

	return proxy
}

func isProxyValid(ctx context.Context, proxyURL, testURL string) bool {
	client := resty.New().
		SetTimeout(5 * time.Second).
		SetRetryCount(0).
		SetProxy(proxyURL)

	resp, err := client.R().
		SetContext(ctx).
		Get(testURL)
	if err != nil {
		log.Debugf("Proxy test failed for %s: %v", proxyURL, err)
		return false
	}

	if resp.IsError() {
		log.Debugf("Proxy test failed for %s with status: %s", proxyURL, resp.Status())
		return false
	}

	return true
}
