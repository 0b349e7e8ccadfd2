package domain

import (
	"fmt"
	"strings"
)

// DefaultBatchSize is the number of keywords a single trends query can compare.
const DefaultBatchSize = 5

type KeywordRecord struct {
	Keyword   string `json:"keyword"`
	QueryDate string `json:"date_query_googletrends"` // YYYY-MM-DD
}

// Batch is a group of keywords queried together.
type Batch struct {
	Index    int      `json:"index"`    // Position of the batch in the input
	Keywords []string `json:"keywords"` // At most DefaultBatchSize keywords
}

func (b Batch) ID() string {
	return fmt.Sprintf("batch-%05d", b.Index)
}

func (b Batch) String() string {
	return fmt.Sprintf("%d:[%s]", b.Index, strings.Join(b.Keywords, ", "))
}

// SplitBatches groups keywords into consecutive batches of size. A trailing group smaller than
// size is kept as its own batch.
func SplitBatches(keywords []string, size int) []Batch {
	if size <= 0 {
		size = DefaultBatchSize
	}

	batches := make([]Batch, 0, (len(keywords)+size-1)/size)
	for i := 0; i < len(keywords); i += size {
		end := min(i+size, len(keywords))
		kws := make([]string, end-i)
		copy(kws, keywords[i:end])
		batches = append(batches, Batch{Index: len(batches), Keywords: kws})
	}
	return batches
}
