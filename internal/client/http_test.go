package client

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"trends/scraper/internal/proxy"
	"trends/scraper/internal/testing/require"
)

// countingProxy answers every request itself with status and counts them.
func countingProxy(t *testing.T, status int, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRotateProxyConcurrent(t *testing.T) {
	var blockedHits, workingHits atomic.Int64
	blocked := countingProxy(t, http.StatusTooManyRequests, &blockedHits)
	working := countingProxy(t, http.StatusOK, &workingHits)

	supplier := proxy.NewStaticSupplier([]string{blocked.URL, working.URL})
	f := newHTTPFetcher(testConfig("http://trends.invalid"), supplier)

	var wg sync.WaitGroup
	var succeeded atomic.Int64
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 2 {
				if _, err := f.get(t.Context(), "http://trends.invalid/x", nil); err == nil {
					succeeded.Add(1)
					return
				}
			}
		}()
	}
	wg.Wait()

	// Stale quota errors from the blocked proxy don't rotate back to it.
	require.Equal(t, succeeded.Load(), int64(8))
	require.True(t, workingHits.Load() >= 8, "requests should reach the working proxy")
	require.True(t, f.current() == f.clients[working.URL], "current client should use the working proxy")
	require.Len(t, f.clients, 2)
}
