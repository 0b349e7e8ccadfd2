package proxy

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"trends/scraper/internal/testing/require"
)

func TestSupplierRoundRobin(t *testing.T) {
	s := NewStaticSupplier([]string{"http://a:1", "http://b:2", "http://c:3"})
	got := make([]string, 0, 7)
	for range 7 {
		got = append(got, s.Get())
	}
	require.Equal(t, got, []string{
		"http://a:1", "http://b:2", "http://c:3",
		"http://a:1", "http://b:2", "http://c:3",
		"http://a:1",
	})
}

func TestSupplierEmpty(t *testing.T) {
	s, err := NewProxySupplier(t.Context(), nil, "http://unused")
	require.NoError(t, err)
	require.Equal(t, s.Get(), "")
}

func TestSupplierValidation(t *testing.T) {
	// A plain HTTP server answering every request acts as a forward proxy for http:// URLs.
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()

	s, err := NewProxySupplier(t.Context(), []string{bad.URL, good.URL}, "http://trends.invalid/")
	require.NoError(t, err)
	require.Equal(t, s.Get(), good.URL)
	require.Equal(t, s.Get(), good.URL)
}
