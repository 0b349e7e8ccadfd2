package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"trends/scraper/internal/domain"
	"trends/scraper/internal/domain/task"
	"trends/scraper/internal/fetcher"
	"trends/scraper/internal/queue"
)

var ErrNoQueue = errors.New("retry queue is not configured")

// RunRetryWorkers consumes the retry stream until ctx is done. Each batch runs through the fetcher
// again; batches that exhaust their retries once more are re-enqueued until they have been
// requeued MaxRequeues times.
func (s *Service) RunRetryWorkers(ctx context.Context, numWorkers int) error {
	if s.deps.Queue == nil {
		return ErrNoQueue
	}

	var wg sync.WaitGroup
	s.runWorkersForStream(ctx, &wg, max(1, numWorkers), queue.StreamName(task.BatchRetryTaskType), "retry")
	wg.Wait()
	return nil
}

func (s *Service) runWorkersForStream(ctx context.Context, wg *sync.WaitGroup, numWorkers int, streamName, workerType string) {
	// Auto-claimer for messages left pending by dead consumers
	if s.settings.MinIdleTime > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(s.settings.MinIdleTime)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					consumer := fmt.Sprintf("autoclaimer-%s-%d", workerType, time.Now().UnixNano())
					claimed, err := s.deps.Queue.AutoClaim(ctx, s.settings.GroupName, consumer, streamName, s.settings.MinIdleTime)
					if err != nil {
						log.Errorf("❌ Failed to auto-claim messages for %s: %v", streamName, err)
						continue
					}
					if len(claimed) > 0 {
						log.Infof("🔄 Auto-claimed %d messages from %s stream", len(claimed), workerType)
					}
					for _, msg := range claimed {
						if err := s.processMessage(ctx, streamName, &msg); err != nil {
							log.Errorf("❌ Failed to process auto-claimed message %s: %v", msg.ID, err)
						}
					}
				}
			}
		}()
	}

	for i := range numWorkers {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			consumer := fmt.Sprintf("%s-worker-%d", workerType, workerID)
			log.Infof("🚀 Starting %s worker %d as consumer %s", workerType, workerID, consumer)
			for {
				select {
				case <-ctx.Done():
					log.Infof("🛑 %s worker %d stopping", workerType, workerID)
					return
				default:
				}

				msg, err := s.deps.Queue.GetTask(ctx, s.settings.GroupName, consumer, streamName)
				if err != nil {
					if ctx.Err() == nil {
						log.Errorf("❌ Failed to get task from %s: %v", streamName, err)
					}
					continue
				}
				if msg == nil {
					continue
				}
				if err := s.processMessage(ctx, streamName, msg); err != nil {
					log.Errorf("❌ Failed to process message %s: %v", msg.ID, err)
				}
			}
		}(i + 1)
	}
}

// processMessage handles one retry task. The message is acknowledged unless the retry was
// cancelled, so an interrupted retry is claimed again later.
func (s *Service) processMessage(ctx context.Context, streamName string, msg *redis.XMessage) error {
	taskType, ok := msg.Values["task_type"].(string)
	if !ok {
		return fmt.Errorf("invalid task type in message %s", msg.ID)
	}
	taskData, ok := msg.Values["task_data"].(string)
	if !ok {
		return fmt.Errorf("invalid task data in message %s", msg.ID)
	}
	if taskType != task.BatchRetryTaskType {
		return fmt.Errorf("unknown task type: %s", taskType)
	}

	retryTask, err := task.UnmarshalTask[task.BatchRetryTask]([]byte(taskData))
	if err != nil {
		return fmt.Errorf("failed to unmarshal retry task data: %w", err)
	}

	if err := s.retryBatch(ctx, retryTask); err != nil {
		return err
	}

	if err := s.deps.Queue.AckTask(ctx, streamName, s.settings.GroupName, msg.ID); err != nil {
		return fmt.Errorf("failed to ack message %s: %w", msg.ID, err)
	}
	return nil
}

func (s *Service) retryBatch(ctx context.Context, retryTask *task.BatchRetryTask) error {
	retryTask.RetryCount++
	batch := retryTask.Batch

	log.Infof("🔄 Retrying %s from run %s (requeue %d)", batch, retryTask.RunID, retryTask.RetryCount)

	item := fetcher.Item[domain.Batch]{ID: batch.ID(), Payload: batch}
	out := s.trends.Run(ctx, item, s.queryBatch, s.settings.Policy)

	switch out.Status {
	case fetcher.StatusCompleted:
		if err := s.saveResult(context.WithoutCancel(ctx), retryTask.RunID, batch, out.Value); err != nil {
			return err
		}
		log.Infof("✅ Successfully recovered %s after %d requeues", batch.ID(), retryTask.RetryCount)
		return nil

	case fetcher.StatusCancelled:
		return out.Failure()
	}

	if retryTask.RetryCount >= s.settings.MaxRequeues {
		log.Errorf("❌ Giving up on %s after %d requeues: %v", batch.ID(), retryTask.RetryCount, out.Err)
		return nil
	}

	next := &task.BatchRetryTask{
		RunID:      retryTask.RunID,
		Batch:      batch,
		RetryCount: retryTask.RetryCount,
		Error:      out.Err.Error(),
	}
	if _, err := s.deps.Queue.AddTask(ctx, next); err != nil {
		log.Errorf("❌ Failed to re-add retry task for %s: %v", batch.ID(), err)
		return err
	}

	log.Warnf("🔄 %s failed again, will retry (requeue %d): %v", batch.ID(), retryTask.RetryCount, out.Err)
	return nil
}
