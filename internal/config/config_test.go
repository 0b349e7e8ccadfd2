package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"trends/scraper/internal/fetcher"
	"trends/scraper/internal/testing/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
run:
  name: test-run
retry:
  max_retries: 4
  base_timeout: 10s
  jitter: 2s
  escalation: 0s
  pause_after_success: false
trends:
  geo: DE
  proxies:
    - http://proxy-1:8080
output:
  sinks: [csv, sqlite]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, cfg.Run.Name, "test-run")
	require.Equal(t, cfg.Trends.Geo, "DE")
	require.Equal(t, cfg.Trends.Proxies, []string{"http://proxy-1:8080"})
	require.Equal(t, cfg.Retry.Policy(), fetcher.Policy{
		MaxRetries:  4,
		BaseTimeout: 10 * time.Second,
		Jitter:      2 * time.Second,
	})
	require.True(t, cfg.Output.HasSink(SinkSQLite), "sqlite sink should be enabled")
	require.True(t, !cfg.Output.HasSink(SinkPostgres), "postgres sink should be disabled")

	// Defaults fill in what the file leaves out.
	require.Equal(t, cfg.Trends.BatchSize, 5)
	require.Equal(t, cfg.Trends.EmptySeriesLength, 261)
	require.Equal(t, cfg.Output.UnsuccessfulFile, "unsuccessful_queries.csv")
	require.Equal(t, cfg.Run.Mode, "trends")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("RETRY_MAX_RETRIES", "7")
	t.Setenv("TRENDS_GEO", "US")

	cfg, err := Load(writeConfig(t, "trends:\n  geo: DE\n"))
	require.NoError(t, err)
	require.Equal(t, cfg.Retry.MaxRetries, 7)
	require.Equal(t, cfg.Trends.Geo, "US")
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(writeConfig(t, "retry:\n  max_retries: 0\n"))
	require.ErrorIs(t, err, fetcher.ErrInvalidPolicy)

	_, err = Load(writeConfig(t, "output:\n  sinks: [s3]\n"))
	require.NotNil(t, err)

	_, err = Load(writeConfig(t, "run:\n  mode: plot\n"))
	require.NotNil(t, err)

	_, err = Load(writeConfig(t, "trends:\n  batch_size: 6\n"))
	require.NotNil(t, err)

	_, err = Load(writeConfig(t, "trends:\n  empty_series_length: -1\n"))
	require.NotNil(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NotNil(t, err)
}

func TestDatabaseDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5433, Name: "n", User: "u", Password: "p"}
	require.Equal(t, c.DSN(), "host=db port=5433 user=u password=p dbname=n sslmode=disable")
}

func TestLoad_DefaultPolicy(t *testing.T) {
	// No config.yaml in the package directory, so only defaults apply.
	cfg, err := Load("")
	require.NoError(t, err)

	policy := cfg.Retry.Policy()
	require.Equal(t, policy.Escalation, time.Duration(0))
	lo, hi := policy.Window(3)
	require.Equal(t, lo, 17*time.Second)
	require.Equal(t, hi, 23*time.Second)
}
