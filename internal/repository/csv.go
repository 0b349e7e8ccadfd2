package repository

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	log "github.com/sirupsen/logrus"

	"trends/scraper/internal/domain"
)

var (
	resultsHeader      = []string{"run_id", "batch", "date", "keyword", "search_interest"}
	unsuccessfulHeader = []string{"run_id", "batch", "keyword", "attempts", "error"}
	metadataHeader     = []string{"keyword", "date_query_googletrends"}
	newsHeader         = []string{"run_id", "keyword", "page", "title", "url", "source", "published"}
)

// CSVFiles names the files of a CSV ledger, relative to its directory.
type CSVFiles struct {
	Results      string
	Unsuccessful string
	Metadata     string
	News         string
}

// CSVLedger appends outcomes to CSV files. Completed batches go to the results file, exhausted
// ones to the unsuccessful file, so the two can be told apart for manual follow-up.
type CSVLedger struct {
	dir   string
	files CSVFiles
	mu    sync.Mutex
}

var _ Ledger = (*CSVLedger)(nil)

// NewCSVLedger creates the ledger. Results, metadata and news file names are prefixed with stamp
// so every run writes its own files; the unsuccessful file is shared between runs.
func NewCSVLedger(dir, stamp string, files CSVFiles) *CSVLedger {
	files.Results = stamp + files.Results
	files.Metadata = stamp + files.Metadata
	files.News = stamp + files.News
	return &CSVLedger{dir: dir, files: files}
}

func (l *CSVLedger) Path(file string) string {
	return filepath.Join(l.dir, file)
}

func (l *CSVLedger) Files() CSVFiles {
	return l.files
}

func (l *CSVLedger) SaveResult(_ context.Context, result *domain.QueryResult) error {
	rows := make([][]string, len(result.Points))
	batch := strconv.Itoa(result.Batch.Index)
	for i, p := range result.Points {
		rows[i] = []string{result.RunID, batch, p.Date, p.Keyword, strconv.Itoa(p.SearchInterest)}
	}
	return l.appendRows(l.files.Results, resultsHeader, rows)
}

func (l *CSVLedger) SaveFailure(_ context.Context, failure *domain.FailedQuery) error {
	rows := make([][]string, len(failure.Batch.Keywords))
	batch := strconv.Itoa(failure.Batch.Index)
	attempts := strconv.Itoa(failure.Attempts)
	for i, kw := range failure.Batch.Keywords {
		rows[i] = []string{failure.RunID, batch, kw, attempts, failure.Error}
	}
	if err := l.appendRows(l.files.Unsuccessful, unsuccessfulHeader, rows); err != nil {
		return err
	}
	log.Infof("%v appended to %s", failure.Batch.Keywords, l.files.Unsuccessful)
	return nil
}

func (l *CSVLedger) SaveArticles(_ context.Context, runID string, articles []domain.NewsArticle) error {
	rows := make([][]string, len(articles))
	for i, a := range articles {
		rows[i] = []string{runID, a.Keyword, strconv.Itoa(a.Page), a.Title, a.URL, a.Source, a.Published}
	}
	return l.appendRows(l.files.News, newsHeader, rows)
}

// SaveMetadata writes the input keywords of a run.
func (l *CSVLedger) SaveMetadata(records []domain.KeywordRecord) error {
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = []string{r.Keyword, r.QueryDate}
	}
	if err := l.appendRows(l.files.Metadata, metadataHeader, rows); err != nil {
		return err
	}
	log.Infof("Path created: %s", l.Path(l.files.Metadata))
	return nil
}

func (l *CSVLedger) appendRows(file string, header []string, rows [][]string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.OpenFile(l.Path(file), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", file, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", file, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write header to %s: %w", file, err)
		}
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write rows to %s: %w", file, err)
	}
	return f.Close()
}
