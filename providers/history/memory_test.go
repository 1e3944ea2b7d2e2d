package history

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemStoreAppendLoadClear(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	require.NoError(t, s.Append(ctx, "conv-1", Message{Role: "user", Content: "hi"}))
	require.NoError(t, s.Append(ctx, "conv-1", Message{Role: "assistant", Content: "hello"}))
	require.NoError(t, s.Append(ctx, "conv-2", Message{Role: "user", Content: "other conversation"}))

	msgs, err := s.Load(ctx, "conv-1")
	require.NoError(t, err)
	require.Equal(t, []Message{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}}, msgs)

	other, err := s.Load(ctx, "conv-2")
	require.NoError(t, err)
	require.Len(t, other, 1)

	require.NoError(t, s.Clear(ctx, "conv-1"))
	msgs, err = s.Load(ctx, "conv-1")
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestMemStoreLoadUnknownConversationReturnsEmpty(t *testing.T) {
	s := NewMemStore()
	msgs, err := s.Load(context.Background(), "never-seen")
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestMemStoreLoadReturnsACopyNotTheBackingSlice(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.Append(ctx, "c", Message{Role: "user", Content: "a"}))

	first, err := s.Load(ctx, "c")
	require.NoError(t, err)
	first[0].Content = "mutated"

	second, err := s.Load(ctx, "c")
	require.NoError(t, err)
	require.Equal(t, "a", second[0].Content)
}
