package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSQLiteStoreAppendLoadClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Append(ctx, "conv-1", Message{Role: "user", Content: "hi"}))
	require.NoError(t, s.Append(ctx, "conv-1", Message{Role: "assistant", Content: "hello"}))
	require.NoError(t, s.Append(ctx, "conv-2", Message{Role: "user", Content: "separate"}))

	msgs, err := s.Load(ctx, "conv-1")
	require.NoError(t, err)
	require.Equal(t, []Message{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}}, msgs)

	require.NoError(t, s.Clear(ctx, "conv-1"))
	msgs, err = s.Load(ctx, "conv-1")
	require.NoError(t, err)
	require.Empty(t, msgs)

	other, err := s.Load(ctx, "conv-2")
	require.NoError(t, err)
	require.Len(t, other, 1)
}

func TestSQLiteStoreLoadUnknownConversationReturnsEmptyNotNilError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	msgs, err := s.Load(context.Background(), "never-seen")
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestSQLiteStoreMigratesOnSecondOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s1, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s1.Append(context.Background(), "c", Message{Role: "user", Content: "persisted"}))
	require.NoError(t, s1.Close())

	s2, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer s2.Close()

	msgs, err := s2.Load(context.Background(), "c")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "persisted", msgs[0].Content)
}
