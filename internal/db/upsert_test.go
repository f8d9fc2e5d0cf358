package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	res, err := BulkUpsert(nil, nil, UpsertConfig{
		Table:        "articles",
		Columns:      []string{"id", "fingerprint"},
		ConflictKeys: []string{"fingerprint"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, UpsertResult{}, res)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(nil, nil, UpsertConfig{
		Table:        "articles",
		ConflictKeys: []string{"fingerprint"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(nil, nil, UpsertConfig{
		Table:   "articles",
		Columns: []string{"id", "fingerprint"},
	}, [][]any{{1, "a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestQuoteAndJoin(t *testing.T) {
	result := quoteAndJoin([]string{"id", "title", "ave"})
	assert.Equal(t, `"id", "title", "ave"`, result)
}
