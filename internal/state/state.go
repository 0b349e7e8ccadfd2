package state

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// StateManager remembers how far a named run got, so a restarted run skips finished batches.
type StateManager interface {
	GetLastProcessedBatch(ctx context.Context, runName string) (int, error)
	SetLastProcessedBatch(ctx context.Context, runName string, batchIndex int) error
}

type redisStateManager struct {
	redisClient *redis.Client
	keyPrefix   string
}

func NewRedisStateManager(redisClient *redis.Client) StateManager {
	return &redisStateManager{
		redisClient: redisClient,
		keyPrefix:   "trends:progress:batch:",
	}
}

// GetLastProcessedBatch returns -1 when no progress was saved for the run.
func (s *redisStateManager) GetLastProcessedBatch(ctx context.Context, runName string) (int, error) {
	val, err := s.redisClient.Get(ctx, s.keyPrefix+runName).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return -1, nil
		}
		return 0, fmt.Errorf("failed to get last processed batch for run %s: %w", runName, err)
	}

	idx, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("failed to parse batch index for run %s: %w", runName, err)
	}

	return idx, nil
}

func (s *redisStateManager) SetLastProcessedBatch(ctx context.Context, runName string, batchIndex int) error {
	err := s.redisClient.Set(ctx, s.keyPrefix+runName, batchIndex, 0).Err() // No expiration
	if err != nil {
		return fmt.Errorf("failed to set last processed batch for run %s: %w", runName, err)
	}
	return nil
}

// MemoryStateManager keeps progress in process memory. It is used when Redis is not configured.
type MemoryStateManager struct {
	mu       sync.Mutex
	progress map[string]int
}

func NewMemoryStateManager() *MemoryStateManager {
	return &MemoryStateManager{progress: make(map[string]int)}
}

func (s *MemoryStateManager) GetLastProcessedBatch(_ context.Context, runName string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.progress[runName]
	if !ok {
		return -1, nil
	}
	return idx, nil
}

func (s *MemoryStateManager) SetLastProcessedBatch(_ context.Context, runName string, batchIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress[runName] = batchIndex
	return nil
}
