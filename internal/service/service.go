package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"trends/scraper/internal/client"
	"trends/scraper/internal/domain"
	"trends/scraper/internal/domain/task"
	"trends/scraper/internal/fetcher"
	"trends/scraper/internal/queue"
	"trends/scraper/internal/repository"
	"trends/scraper/internal/state"
)

// MetadataWriter records the input keywords of a run.
type MetadataWriter interface {
	SaveMetadata(records []domain.KeywordRecord) error
}

// Settings holds the run parameters of the service.
type Settings struct {
	RunName      string
	KeywordsFile string
	SampleSize   int
	BatchSize    int
	Workers      int
	NewsPages    int
	MaxRequeues  int
	Policy       fetcher.Policy
	GroupName    string
	MinIdleTime  time.Duration
}

// Deps holds the collaborators of the service. Queue and Metadata are optional.
type Deps struct {
	Trends   client.TrendsClient
	News     client.NewsClient
	Ledger   repository.Ledger
	Metadata MetadataWriter
	Queue    queue.Queue
	State    state.StateManager
	Options  []fetcher.Option
}

type Service struct {
	settings Settings
	deps     Deps
	runID    string
	now      func() time.Time

	trends *fetcher.Fetcher[domain.Batch, []domain.InterestPoint]
	news   *fetcher.Fetcher[string, []domain.NewsArticle]
}

func NewService(settings Settings, deps Deps) *Service {
	if deps.State == nil {
		deps.State = state.NewMemoryStateManager()
	}
	return &Service{
		settings: settings,
		deps:     deps,
		runID:    uuid.NewString(),
		now:      time.Now,
		trends:   fetcher.New[domain.Batch, []domain.InterestPoint](deps.Options...),
		news:     fetcher.New[string, []domain.NewsArticle](deps.Options...),
	}
}

// RunID identifies the rows written by this service instance.
func (s *Service) RunID() string {
	return s.runID
}

// Summary counts the outcomes of a run.
type Summary struct {
	Completed int64
	Exhausted int64
	Cancelled int64
	Skipped   int
}

// ParseAll queries search interest for every batch of keywords that a previous run with the same
// name did not finish. Completed batches go to the ledger, exhausted ones to the ledger and,
// when a queue is configured, to the retry stream.
func (s *Service) ParseAll(ctx context.Context) (Summary, error) {
	var summary Summary

	keywords, err := repository.ReadKeywordsFile(s.settings.KeywordsFile, s.settings.SampleSize)
	if err != nil {
		return summary, err
	}
	log.Infof("📄 Loaded %d keywords from %s", len(keywords), s.settings.KeywordsFile)

	if err := s.saveMetadata(keywords); err != nil {
		return summary, err
	}

	batches := domain.SplitBatches(keywords, s.settings.BatchSize)

	last, err := s.deps.State.GetLastProcessedBatch(ctx, s.settings.RunName)
	if err != nil {
		log.Errorf("Failed to get last processed batch: %v", err)
		return summary, err
	}
	if last >= 0 {
		log.Infof("🔄 Continue from batch %d for run %s", last+1, s.settings.RunName)
	}

	items := make([]fetcher.Item[domain.Batch], 0, len(batches))
	byID := make(map[string]domain.Batch, len(batches))
	for _, b := range batches {
		if b.Index <= last {
			summary.Skipped++
			continue
		}
		items = append(items, fetcher.Item[domain.Batch]{ID: b.ID(), Payload: b})
		byID[b.ID()] = b
	}

	log.Infof("🔄 Processing %d batches (%d skipped) as run %s", len(items), summary.Skipped, s.runID)

	tracker := newProgress(last)
	var completed, exhausted, cancelled atomic.Int64

	sink := fetcher.SinkFunc[[]domain.InterestPoint](func(ctx context.Context, out fetcher.Outcome[[]domain.InterestPoint]) error {
		batch := byID[out.ItemID]

		switch out.Status {
		case fetcher.StatusCompleted:
			completed.Add(1)
			if err := s.saveResult(ctx, s.runID, batch, out.Value); err != nil {
				return err
			}
		case fetcher.StatusExhausted:
			exhausted.Add(1)
			if err := s.saveFailure(ctx, batch, out); err != nil {
				return err
			}
		default:
			// Cancelled batches stay unfinished and are picked up by the next run.
			cancelled.Add(1)
			return nil
		}

		if idx, moved := tracker.finish(batch.Index); moved {
			if err := s.deps.State.SetLastProcessedBatch(ctx, s.settings.RunName, idx); err != nil {
				log.Warnf("⚠️ Failed to save progress: %v", err)
			}
		}
		return nil
	})

	err = s.trends.ProcessAll(ctx, items, s.queryBatch, s.settings.Policy, sink, s.settings.Workers)

	summary.Completed = completed.Load()
	summary.Exhausted = exhausted.Load()
	summary.Cancelled = cancelled.Load()

	if err != nil {
		return summary, err
	}
	if ctx.Err() != nil {
		return summary, ctx.Err()
	}

	log.Infof("✅ Completed run %s: %d completed, %d exhausted, %d skipped",
		s.settings.RunName, summary.Completed, summary.Exhausted, summary.Skipped)
	return summary, nil
}

func (s *Service) queryBatch(ctx context.Context, item fetcher.Item[domain.Batch]) ([]domain.InterestPoint, error) {
	return s.deps.Trends.InterestOverTime(ctx, item.Payload.Keywords)
}

func (s *Service) saveMetadata(keywords []string) error {
	if s.deps.Metadata == nil {
		return nil
	}
	date := s.now().Format(time.DateOnly)
	records := make([]domain.KeywordRecord, len(keywords))
	for i, kw := range keywords {
		records[i] = domain.KeywordRecord{Keyword: kw, QueryDate: date}
	}
	if err := s.deps.Metadata.SaveMetadata(records); err != nil {
		return fmt.Errorf("failed to save metadata: %w", err)
	}
	return nil
}

func (s *Service) saveResult(ctx context.Context, runID string, batch domain.Batch, points []domain.InterestPoint) error {
	err := s.deps.Ledger.SaveResult(ctx, &domain.QueryResult{
		RunID:     runID,
		Batch:     batch,
		Points:    points,
		QueriedAt: s.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to save result of %s: %w", batch.ID(), err)
	}
	return nil
}

// saveFailure records an exhausted batch and hands it to the retry stream.
func (s *Service) saveFailure(ctx context.Context, batch domain.Batch, out fetcher.Outcome[[]domain.InterestPoint]) error {
	msg := ""
	if out.Err != nil {
		msg = out.Err.Error()
	}

	err := s.deps.Ledger.SaveFailure(ctx, &domain.FailedQuery{
		RunID:    s.runID,
		Batch:    batch,
		Attempts: out.Attempts,
		Error:    msg,
		FailedAt: s.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to save failure of %s: %w", batch.ID(), err)
	}

	if s.deps.Queue == nil {
		return nil
	}
	retry := &task.BatchRetryTask{RunID: s.runID, Batch: batch, Error: msg}
	if _, err := s.deps.Queue.AddTask(ctx, retry); err != nil {
		log.Errorf("❌ Failed to add retry task for %s: %v", batch.ID(), err)
		return err
	}
	log.Warnf("🔄 Added %s to retry queue due to error: %v", batch.ID(), out.Err)
	return nil
}
