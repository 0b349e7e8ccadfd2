package task

import "trends/scraper/internal/domain"

const BatchRetryTaskType = "BatchRetryTask"

type BatchRetryTask struct {
	RunID      string       `json:"run_id"`      // Run that first failed the batch
	Batch      domain.Batch `json:"batch"`       // Keywords to query again
	RetryCount int          `json:"retry_count"` // Number of times the batch went through the retry stream
	Error      string       `json:"error"`       // Last error message
}

func (t *BatchRetryTask) TaskType() string {
	return BatchRetryTaskType
}

func (t *BatchRetryTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}
