package repository

import (
	"context"
	"errors"

	"trends/scraper/internal/domain"
)

// OutcomeRepository persists the terminal outcome of batch queries.
type OutcomeRepository interface {
	SaveResult(ctx context.Context, result *domain.QueryResult) error
	SaveFailure(ctx context.Context, failure *domain.FailedQuery) error
}

// ArticleRepository persists news search results.
type ArticleRepository interface {
	SaveArticles(ctx context.Context, runID string, articles []domain.NewsArticle) error
}

// Ledger records both query outcomes and news articles.
type Ledger interface {
	OutcomeRepository
	ArticleRepository
}

// Ledgers fans every call out to all ledgers. All ledgers are called even when one fails.
type Ledgers []Ledger

func (ls Ledgers) SaveResult(ctx context.Context, result *domain.QueryResult) error {
	var errs []error
	for _, l := range ls {
		errs = append(errs, l.SaveResult(ctx, result))
	}
	return errors.Join(errs...)
}

func (ls Ledgers) SaveFailure(ctx context.Context, failure *domain.FailedQuery) error {
	var errs []error
	for _, l := range ls {
		errs = append(errs, l.SaveFailure(ctx, failure))
	}
	return errors.Join(errs...)
}

func (ls Ledgers) SaveArticles(ctx context.Context, runID string, articles []domain.NewsArticle) error {
	var errs []error
	for _, l := range ls {
		errs = append(errs, l.SaveArticles(ctx, runID, articles))
	}
	return errors.Join(errs...)
}
