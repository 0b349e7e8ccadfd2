package service

import (
	"context"
	"fmt"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"trends/scraper/internal/domain"
	"trends/scraper/internal/fetcher"
	"trends/scraper/internal/repository"
)

// CollectNews fetches up to NewsPages result pages for every keyword and saves the articles.
// Keywords whose pages keep failing are logged and skipped.
func (s *Service) CollectNews(ctx context.Context) (Summary, error) {
	var summary Summary

	keywords, err := repository.ReadKeywordsFile(s.settings.KeywordsFile, s.settings.SampleSize)
	if err != nil {
		return summary, err
	}

	items := make([]fetcher.Item[string], len(keywords))
	for i, kw := range keywords {
		items[i] = fetcher.Item[string]{ID: kw, Payload: kw}
	}

	var completed, exhausted, cancelled atomic.Int64
	sink := fetcher.SinkFunc[[]domain.NewsArticle](func(ctx context.Context, out fetcher.Outcome[[]domain.NewsArticle]) error {
		switch out.Status {
		case fetcher.StatusCompleted:
			completed.Add(1)
			if err := s.deps.Ledger.SaveArticles(ctx, s.runID, out.Value); err != nil {
				return fmt.Errorf("failed to save articles for %q: %w", out.ItemID, err)
			}
			log.Infof("📰 Saved %d articles for %q", len(out.Value), out.ItemID)
		case fetcher.StatusExhausted:
			exhausted.Add(1)
			log.Warnf("⚠️ Skipping news for %q: %v", out.ItemID, out.Err)
		default:
			cancelled.Add(1)
		}
		return nil
	})

	op := func(ctx context.Context, item fetcher.Item[string]) ([]domain.NewsArticle, error) {
		return s.deps.News.SearchUntil(ctx, item.Payload, s.settings.NewsPages)
	}

	err = s.news.ProcessAll(ctx, items, op, s.settings.Policy, sink, s.settings.Workers)

	summary.Completed = completed.Load()
	summary.Exhausted = exhausted.Load()
	summary.Cancelled = cancelled.Load()
	if err != nil {
		return summary, err
	}
	return summary, ctx.Err()
}
