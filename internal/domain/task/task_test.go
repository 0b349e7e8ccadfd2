package task

import (
	"testing"

	"trends/scraper/internal/domain"
	"trends/scraper/internal/testing/require"
)

func TestBatchRetryTaskValue(t *testing.T) {
	in := &BatchRetryTask{
		RunID:      "run",
		Batch:      domain.Batch{Index: 3, Keywords: []string{"go", "rust"}},
		RetryCount: 2,
		Error:      "429",
	}
	require.Equal(t, in.TaskType(), BatchRetryTaskType)

	data, err := in.TaskValue()
	require.NoError(t, err)

	out, err := UnmarshalTask[BatchRetryTask](data)
	require.NoError(t, err)
	require.Equal(t, out, in)

	_, err = UnmarshalTask[BatchRetryTask]([]byte("{"))
	require.NotNil(t, err)
}
