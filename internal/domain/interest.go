package domain

import "time"

// InterestPoint is one row of a long-format search interest series.
type InterestPoint struct {
	Date           string `json:"date"`            // YYYY-MM-DD, blank for zero-filled rows
	Keyword        string `json:"keyword"`         // Keyword the value belongs to
	SearchInterest int    `json:"search_interest"` // 0..100 relative interest
}

// QueryResult is the successful result of a batch query.
type QueryResult struct {
	RunID     string          `json:"run_id"`
	Batch     Batch           `json:"batch"`
	Points    []InterestPoint `json:"points"`
	QueriedAt time.Time       `json:"queried_at"`
}

// FailedQuery is a batch that exhausted its retries.
type FailedQuery struct {
	RunID    string    `json:"run_id"`
	Batch    Batch     `json:"batch"`
	Attempts int       `json:"attempts"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}
