package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteStoreSaveLoadAndSearch(t *testing.T) {
	s, err := NewSQLiteStore(context.Background(), "file::memory:?cache=shared")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()

	empty, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, empty)

	state := sampleState()
	text := Marshal(state)
	require.NoError(t, s.Save(ctx, state, text))

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, state.WorkspaceID, loaded.WorkspaceID)

	ids, err := s.Search(ctx, "second", 10, "")
	require.NoError(t, err)
	assert.Contains(t, ids, "m_abc124_deadbeef")
}
