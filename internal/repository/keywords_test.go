package repository

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"trends/scraper/internal/testing/require"
)

func TestReadKeywords(t *testing.T) {
	input := "id,Keyword,category\n1,golang,lang\n2, rust ,lang\n3,,lang\n4,zig,lang\n"

	kws, err := ReadKeywords(strings.NewReader(input), 0)
	require.NoError(t, err)
	require.Equal(t, kws, []string{"golang", "rust", "zig"})

	kws, err = ReadKeywords(strings.NewReader(input), 2)
	require.NoError(t, err)
	require.Equal(t, kws, []string{"golang", "rust"})
}

func TestReadKeywords_Errors(t *testing.T) {
	_, err := ReadKeywords(strings.NewReader("id,term\n1,go\n"), 0)
	require.NotNil(t, err)

	_, err = ReadKeywords(strings.NewReader(""), 0)
	require.NotNil(t, err)

	_, err = ReadKeywordsFile(filepath.Join(t.TempDir(), "missing.csv"), 0)
	require.NotNil(t, err)
}

func TestReadKeywordsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.csv")
	require.NoError(t, os.WriteFile(path, []byte("keyword\nalpha\nbeta\n"), 0o644))

	kws, err := ReadKeywordsFile(path, 0)
	require.NoError(t, err)
	require.Equal(t, kws, []string{"alpha", "beta"})
}
