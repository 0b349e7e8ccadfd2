package repository

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	log "github.com/sirupsen/logrus"

	"trends/scraper/internal/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DB is the part of *pgxpool.Pool the ledger writes through.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type postgresLedger struct {
	db DB
}

// NewPostgresLedger returns a ledger writing to db. Migrate must have been run once.
func NewPostgresLedger(db DB) Ledger {
	return &postgresLedger{
		db: db,
	}
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	sqlDB := stdlib.OpenDBFromPool(db)
	defer sqlDB.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		return fmt.Errorf("failed to migrate db: %w", err)
	}

	log.Info("✅ Database migrations applied")
	return nil
}

func (r *postgresLedger) SaveResult(ctx context.Context, result *domain.QueryResult) error {
	rows := make([][]any, len(result.Points))
	for i, p := range result.Points {
		rows[i] = []any{result.RunID, result.Batch.Index, p.Date, p.Keyword, p.SearchInterest, result.QueriedAt}
	}

	_, err := r.db.CopyFrom(ctx,
		pgx.Identifier{"interest_points"},
		[]string{"run_id", "batch_index", "date", "keyword", "search_interest", "queried_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to save interest points: %w", err)
	}

	return nil
}

func (r *postgresLedger) SaveFailure(ctx context.Context, failure *domain.FailedQuery) error {
	query := `
	INSERT INTO unsuccessful_queries (run_id, batch_index, keywords, attempts, error, failed_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (run_id, batch_index)
	DO UPDATE SET attempts = $4, error = $5, failed_at = $6`
	_, err := r.db.Exec(ctx, query,
		failure.RunID, failure.Batch.Index, failure.Batch.Keywords, failure.Attempts, failure.Error, failure.FailedAt)
	if err != nil {
		return fmt.Errorf("failed to save unsuccessful query: %w", err)
	}

	return nil
}

func (r *postgresLedger) SaveArticles(ctx context.Context, runID string, articles []domain.NewsArticle) error {
	batch := &pgx.Batch{}
	query := `
	INSERT INTO news_articles (run_id, keyword, page, title, url, source, published)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (run_id, keyword, url) DO NOTHING`
	for _, a := range articles {
		batch.Queue(query, runID, a.Keyword, a.Page, a.Title, a.URL, a.Source, a.Published)
	}

	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save news articles: %w", err)
	}

	return nil
}
