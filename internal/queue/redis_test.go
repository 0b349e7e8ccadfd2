package queue

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"trends/scraper/internal/config"
	"trends/scraper/internal/domain"
	"trends/scraper/internal/domain/task"
	"trends/scraper/internal/testing/require"
)

const group = "test_group"

var stream = StreamName(task.BatchRetryTaskType)

func newTestQueue(t *testing.T) (*RedisQueue, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	q, err := NewRedisQueue(t.Context(), rdb, config.RedisConfig{ConsumerGroup: group})
	require.NoError(t, err)
	q.block = 50 * time.Millisecond
	return q, rdb
}

func retryTask(index int) *task.BatchRetryTask {
	return &task.BatchRetryTask{
		RunID: "run",
		Batch: domain.Batch{Index: index, Keywords: []string{"go"}},
		Error: "quota exceeded",
	}
}

func TestEnsureStreamsExist_Idempotent(t *testing.T) {
	q, _ := newTestQueue(t)

	// The group already exists; BUSYGROUP is not an error.
	require.NoError(t, q.EnsureStreamsExist(t.Context()))
	require.NoError(t, q.CreateGroup(t.Context(), stream, group))
}

func TestGetTask_Empty(t *testing.T) {
	q, _ := newTestQueue(t)

	msg, err := q.GetTask(t.Context(), group, "c1", stream)
	require.NoError(t, err)
	require.Nil(t, msg)
}

func TestAddGetAck(t *testing.T) {
	q, rdb := newTestQueue(t)
	ctx := t.Context()

	id, err := q.AddTask(ctx, retryTask(3))
	require.NoError(t, err)

	msg, err := q.GetTask(ctx, group, "c1", stream)
	require.NoError(t, err)
	require.NotNil(t, msg)
	require.Equal(t, msg.ID, id)
	require.Equal(t, msg.Values["task_type"], task.BatchRetryTaskType)

	got, err := task.UnmarshalTask[task.BatchRetryTask]([]byte(msg.Values["task_data"].(string)))
	require.NoError(t, err)
	require.Equal(t, got, retryTask(3))

	pending, err := rdb.XPending(ctx, stream, group).Result()
	require.NoError(t, err)
	require.Equal(t, pending.Count, int64(1))

	require.NoError(t, q.AckTask(ctx, stream, group, msg.ID))

	pending, err = rdb.XPending(ctx, stream, group).Result()
	require.NoError(t, err)
	require.Equal(t, pending.Count, int64(0))

	// Delivered messages are not handed out again.
	msg, err = q.GetTask(ctx, group, "c2", stream)
	require.NoError(t, err)
	require.Nil(t, msg)
}

func TestAutoClaim(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := t.Context()

	id, err := q.AddTask(ctx, retryTask(1))
	require.NoError(t, err)

	// c1 reads and never acknowledges.
	msg, err := q.GetTask(ctx, group, "c1", stream)
	require.NoError(t, err)
	require.NotNil(t, msg)

	claimed, err := q.AutoClaim(ctx, group, "c2", stream, 0)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.Equal(t, claimed[0].ID, id)

	require.NoError(t, q.AckTask(ctx, stream, group, id))

	claimed, err = q.AutoClaim(ctx, group, "c3", stream, 0)
	require.NoError(t, err)
	require.Len(t, claimed, 0)
}
