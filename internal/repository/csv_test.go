package repository

import (
	"encoding/csv"
	"os"
	"testing"
	"time"

	"trends/scraper/internal/domain"
	"trends/scraper/internal/testing/require"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

func testFiles() CSVFiles {
	return CSVFiles{
		Results:      "gtrends.csv",
		Unsuccessful: "unsuccessful_queries.csv",
		Metadata:     "gtrends_metadata.csv",
		News:         "news.csv",
	}
}

func TestCSVLedger_Results(t *testing.T) {
	l := NewCSVLedger(t.TempDir(), "20240101-120000_", testFiles())
	require.Equal(t, l.Files().Results, "20240101-120000_gtrends.csv")
	require.Equal(t, l.Files().Unsuccessful, "unsuccessful_queries.csv")

	batch := domain.Batch{Index: 2, Keywords: []string{"go", "rust"}}
	for range 2 {
		err := l.SaveResult(t.Context(), &domain.QueryResult{
			RunID: "run",
			Batch: batch,
			Points: []domain.InterestPoint{
				{Date: "2024-01-07", Keyword: "go", SearchInterest: 40},
				{Date: "2024-01-07", Keyword: "rust", SearchInterest: 12},
			},
			QueriedAt: time.Now(),
		})
		require.NoError(t, err)
	}

	rows := readCSV(t, l.Path(l.Files().Results))
	// Header is written once.
	require.Len(t, rows, 5)
	require.Equal(t, rows[0], resultsHeader)
	require.Equal(t, rows[1], []string{"run", "2", "2024-01-07", "go", "40"})
}

func TestCSVLedger_Failure(t *testing.T) {
	l := NewCSVLedger(t.TempDir(), "stamp_", testFiles())

	err := l.SaveFailure(t.Context(), &domain.FailedQuery{
		RunID:    "run",
		Batch:    domain.Batch{Index: 4, Keywords: []string{"a", "b"}},
		Attempts: 3,
		Error:    "quota exceeded",
	})
	require.NoError(t, err)

	rows := readCSV(t, l.Path("unsuccessful_queries.csv"))
	require.Equal(t, rows, [][]string{
		unsuccessfulHeader,
		{"run", "4", "a", "3", "quota exceeded"},
		{"run", "4", "b", "3", "quota exceeded"},
	})
}

func TestCSVLedger_MetadataAndNews(t *testing.T) {
	l := NewCSVLedger(t.TempDir(), "s_", testFiles())

	require.NoError(t, l.SaveMetadata([]domain.KeywordRecord{{Keyword: "go", QueryDate: "2024-01-01"}}))
	require.Equal(t, readCSV(t, l.Path("s_gtrends_metadata.csv")), [][]string{
		metadataHeader,
		{"go", "2024-01-01"},
	})

	err := l.SaveArticles(t.Context(), "run", []domain.NewsArticle{
		{Keyword: "go", Title: "T", URL: "https://x", Source: "S", Published: "1h", Page: 0},
	})
	require.NoError(t, err)
	require.Equal(t, readCSV(t, l.Path("s_news.csv"))[1], []string{"run", "go", "0", "T", "https://x", "S", "1h"})
}
