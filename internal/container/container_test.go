package container

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"trends/scraper/internal/config"
	"trends/scraper/internal/testing/require"
)

func trendsServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/trends/api/explore", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`)]}'` + "\n" + `{"widgets":[{"id":"TIMESERIES","token":"tok","request":{}}]}`))
	})
	mux.HandleFunc("/trends/api/widgetdata/multiline", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`)]}',` + "\n" + `{"default":{"timelineData":[{"time":"1704585600","value":[1,2,3,4,5]}]}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestContainerRun(t *testing.T) {
	srv := trendsServer(t)
	dir := t.TempDir()

	keywords := filepath.Join(dir, "keywords.csv")
	require.NoError(t, os.WriteFile(keywords, []byte("keyword\na\nb\nc\nd\ne\nf\n"), 0o644))

	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
run:
  name: container-test
trends:
  base_url: %s
  max_requests_per_second: 0
retry:
  max_retries: 1
  base_timeout: 0s
  jitter: 0s
  escalation: 0s
  pause_after_success: false
  countdown_step: 0s
input:
  keywords_file: %s
output:
  dir: %s
  sinks: [csv, sqlite]
sqlite:
  file: %s
metrics:
  enabled: true
  port: 0
`, srv.URL, keywords, filepath.Join(dir, "out"), filepath.Join(dir, "ledger.db"))), 0o644))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	app, err := New(t.Context(), cfg)
	require.NoError(t, err)
	defer app.Close()

	require.NoError(t, app.Run(t.Context()))

	n, err := app.sqlite.CountPoints(t.Context(), app.Service.RunID())
	require.NoError(t, err)
	// Batch [a..e] yields five points, batch [f] one.
	require.Equal(t, n, 6)

	matches, err := filepath.Glob(filepath.Join(dir, "out", "*_gtrends.csv"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	matches, err = filepath.Glob(filepath.Join(dir, "out", "*_gtrends_metadata.csv"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
}
