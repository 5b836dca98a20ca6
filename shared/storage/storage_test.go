package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Queue []string       `json:"queue"`
	Score map[string]int `json:"score"`
}

func TestFileStoreMissingDocument(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	d := doc{Queue: []string{"keep"}}
	require.NoError(t, s.Load(context.Background(), NumbersDocument, &d))
	assert.Equal(t, []string{"keep"}, d.Queue)
}

func TestFileStoreOverwrite(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, UsersDocument, doc{Queue: []string{"a", "b"}, Score: map[string]int{"1": 10}}))
	require.NoError(t, s.Save(ctx, UsersDocument, doc{Queue: []string{"c"}}))

	var got doc
	require.NoError(t, s.Load(ctx, UsersDocument, &got))
	assert.Equal(t, []string{"c"}, got.Queue)
	assert.Nil(t, got.Score)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "users.json", entries[0].Name())
}

func TestFileStoreCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "numbers.json"), []byte("{"), 0o644))

	s, err := NewFileStore(dir)
	require.NoError(t, err)

	var got doc
	assert.Error(t, s.Load(context.Background(), NumbersDocument, &got))
}
