package store

import (
	"context"
	"os"
	"path/filepath"

	mnemoerrors "mnemo/internal/errors"
	"mnemo/internal/graph"
)

// FileStore persists the canonical snapshot text to a single file,
// written atomically via a temp-file-then-rename so a crash mid-write
// never leaves a truncated snapshot on disk.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Load(ctx context.Context) (*graph.State, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, mnemoerrors.Storage("read snapshot file", err)
	}
	state, err := Unmarshal(string(data))
	if err != nil {
		return nil, mnemoerrors.Storage("parse snapshot file", err)
	}
	return state, nil
}

func (f *FileStore) Save(ctx context.Context, state *graph.State, snapshotText string) error {
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return mnemoerrors.Storage("create temp snapshot file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.WriteString(snapshotText); err != nil {
		tmp.Close()
		return mnemoerrors.Storage("write temp snapshot file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return mnemoerrors.Storage("sync temp snapshot file", err)
	}
	if err := tmp.Close(); err != nil {
		return mnemoerrors.Storage("close temp snapshot file", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return mnemoerrors.Storage("rename snapshot file into place", err)
	}
	return nil
}

func (f *FileStore) Close() error { return nil }
