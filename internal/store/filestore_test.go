package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreLoadMissingReturnsNil(t *testing.T) {
	dir := t.TempDir()
	fs := NewFileStore(filepath.Join(dir, "missing.mnemo"))
	state, err := fs.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestFileStoreSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.mnemo")
	fs := NewFileStore(path)

	s := sampleState()
	text := Marshal(s)
	require.NoError(t, fs.Save(context.Background(), s, text))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, text, string(data))

	loaded, err := fs.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, s.WorkspaceID, loaded.WorkspaceID)
}

func TestFileStoreSaveLeavesNoTempFilesBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.mnemo")
	fs := NewFileStore(path)

	require.NoError(t, fs.Save(context.Background(), sampleState(), "(memory (id \"x\") (born 0) (energy 1) (threshold 0.2) (policy) (items (list)) (edges (list)) (history (list)))"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
