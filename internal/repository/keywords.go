package repository

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

const keywordColumn = "keyword"

// ReadKeywordsFile reads the keyword column of a CSV file. A positive sampleSize keeps only the
// first sampleSize keywords.
func ReadKeywordsFile(path string, sampleSize int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open keywords file: %w", err)
	}
	defer f.Close()

	return ReadKeywords(f, sampleSize)
}

func ReadKeywords(r io.Reader, sampleSize int) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := -1
	for i, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), keywordColumn) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("missing required column %q", keywordColumn)
	}

	var keywords []string
	for sampleSize <= 0 || len(keywords) < sampleSize {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if idx >= len(rec) {
			return nil, fmt.Errorf("row has %d columns, want at least %d", len(rec), idx+1)
		}
		if kw := strings.TrimSpace(rec[idx]); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords, nil
}
