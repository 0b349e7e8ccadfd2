package repository

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"trends/scraper/internal/domain"
)

const memory = ":memory:"

// SQLiteLedger records outcomes in an embedded SQLite database.
type SQLiteLedger struct {
	db *sql.DB
}

var _ Ledger = (*SQLiteLedger)(nil)

// NewSQLiteLedger opens the database at path, or a private in-memory database when path is
// ":memory:" or empty, and creates the tables.
func NewSQLiteLedger(path string) (*SQLiteLedger, error) {
	db, err := openSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	if err := setupSQLite(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setup: %w", err)
	}

	return &SQLiteLedger{db: db}, nil
}

func (l *SQLiteLedger) SaveResult(ctx context.Context, result *domain.QueryResult) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		insert into interest_points (run_id, batch_index, date, keyword, search_interest, queried_at)
		values (?, ?, ?, ?, ?, ?)
		`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	queriedAt := result.QueriedAt.UnixMilli()
	for _, p := range result.Points {
		if _, err := stmt.ExecContext(ctx,
			result.RunID, result.Batch.Index, p.Date, p.Keyword, p.SearchInterest, queriedAt,
		); err != nil {
			return fmt.Errorf("insert point: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (l *SQLiteLedger) SaveFailure(ctx context.Context, failure *domain.FailedQuery) error {
	_, err := l.db.ExecContext(ctx, `
		insert into unsuccessful_queries (run_id, batch_index, keywords, attempts, error, failed_at)
		values (?, ?, ?, ?, ?, ?)
		`,
		failure.RunID,
		failure.Batch.Index,
		strings.Join(failure.Batch.Keywords, ","),
		failure.Attempts,
		failure.Error,
		failure.FailedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert failure: %w", err)
	}
	return nil
}

func (l *SQLiteLedger) SaveArticles(ctx context.Context, runID string, articles []domain.NewsArticle) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, a := range articles {
		if _, err := tx.ExecContext(ctx, `
			insert into news_articles (run_id, keyword, page, title, url, source, published)
			values (?, ?, ?, ?, ?, ?, ?)
			on conflict (run_id, keyword, url) do nothing
			`,
			runID, a.Keyword, a.Page, a.Title, a.URL, a.Source, a.Published,
		); err != nil {
			return fmt.Errorf("insert article: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CountPoints returns the number of interest points stored for a run.
func (l *SQLiteLedger) CountPoints(ctx context.Context, runID string) (int, error) {
	var n int
	err := l.db.QueryRowContext(ctx,
		`select count(*) from interest_points where run_id = ?`, runID,
	).Scan(&n)
	return n, err
}

// FailedBatches returns the indexes of the batches of a run that exhausted their retries.
func (l *SQLiteLedger) FailedBatches(ctx context.Context, runID string) ([]int, error) {
	rows, err := l.db.QueryContext(ctx,
		`select batch_index from unsuccessful_queries where run_id = ? order by batch_index`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []int
	for rows.Next() {
		var i int
		if err := rows.Scan(&i); err != nil {
			return nil, err
		}
		indexes = append(indexes, i)
	}
	return indexes, rows.Err()
}

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

func openSQLite(path string) (*sql.DB, error) {
	params := url.Values{}
	params.Add("_txlock", "immediate")
	params.Add("_timeout", "5000") // 5s
	inMemory := path == "" || path == memory
	if inMemory {
		path = uuid.NewString()
		params.Add("mode", "memory")
		params.Add("cache", "shared")
	} else {
		params.Add("_journal", "wal")
		params.Add("_sync", "normal")
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	db.SetConnMaxIdleTime(0)
	db.SetConnMaxLifetime(0)
	if inMemory {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	return db, nil
}

func setupSQLite(db *sql.DB) error {
	if _, err := db.Exec(
		`
		create table if not exists interest_points (
			run_id          text not null,
			batch_index     int not null,
			date            text not null,
			keyword         text not null,
			search_interest int not null,
			queried_at      int not null
		)
		`,
	); err != nil {
		return fmt.Errorf("create interest_points: %w", err)
	}

	if _, err := db.Exec(
		`create index if not exists interest_points_run on interest_points (run_id, batch_index)`,
	); err != nil {
		return fmt.Errorf("create index: %w", err)
	}

	if _, err := db.Exec(
		`
		create table if not exists unsuccessful_queries (
			run_id      text not null,
			batch_index int not null,
			keywords    text not null,
			attempts    int not null,
			error       text not null,
			failed_at   int not null
		)
		`,
	); err != nil {
		return fmt.Errorf("create unsuccessful_queries: %w", err)
	}

	if _, err := db.Exec(
		`
		create table if not exists news_articles (
			run_id    text not null,
			keyword   text not null,
			page      int not null,
			title     text not null,
			url       text not null,
			source    text not null,
			published text not null,
			primary key (run_id, keyword, url)
		)
		`,
	); err != nil {
		return fmt.Errorf("create news_articles: %w", err)
	}

	return nil
}
