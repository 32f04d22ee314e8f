package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sandevgo/spyglass/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *TranscriptRepo {
	t.Helper()

	db, err := NewDB(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewTranscriptRepo(db)
}

func TestTranscriptRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	msgs := []core.Message{
		{Role: core.RoleUser, Content: "what is in a.go?"},
		{Role: core.RoleAssistant, Content: "checking", ToolCalls: []core.ToolCall{
			{ID: "call_1", Type: "function", Function: core.FunctionCall{Name: "read_file", Arguments: `{"path":"a.go"}`}},
		}},
		{Role: core.RoleTool, Content: "package main", ToolCallID: "call_1"},
		{Role: core.RoleAssistant, Content: "it declares package main"},
	}
	for _, m := range msgs {
		require.NoError(t, repo.AddMessage(ctx, "sess-1", m))
	}

	got, err := repo.GetMessages(ctx, "sess-1", 0)
	require.NoError(t, err)

	require.Len(t, got, 4)
	assert.Equal(t, core.RoleUser, got[0].Role)
	require.Len(t, got[1].ToolCalls, 1)
	assert.Equal(t, "read_file", got[1].ToolCalls[0].Function.Name)
	assert.Equal(t, "call_1", got[2].ToolCallID)
	assert.Equal(t, "it declares package main", got[3].Content)

	// No tool calls round-trips as none, not an empty slice.
	assert.Nil(t, got[0].ToolCalls)
}

func TestTranscriptPartsRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// The agent rebuilds every provider request from this repo, so image
	// attachments have to survive persistence, not just the first turn.
	require.NoError(t, repo.AddMessage(ctx, "sess-1", core.Message{
		Role: core.RoleUser,
		Parts: []core.ContentPart{
			{Type: "text", Text: "what is in this screenshot?"},
			{Type: "image_url", ImageURL: "data:image/png;base64,iVBORw0KGgo="},
		},
	}))

	got, err := repo.GetMessages(ctx, "sess-1", 0)
	require.NoError(t, err)

	require.Len(t, got, 1)
	require.Len(t, got[0].Parts, 2)
	assert.Equal(t, "text", got[0].Parts[0].Type)
	assert.Equal(t, "what is in this screenshot?", got[0].Parts[0].Text)
	assert.Equal(t, "image_url", got[0].Parts[1].Type)
	assert.Equal(t, "data:image/png;base64,iVBORw0KGgo=", got[0].Parts[1].ImageURL)
	assert.Equal(t, "what is in this screenshot?", got[0].FlatText())

	// Plain messages still come back without parts.
	require.NoError(t, repo.AddMessage(ctx, "sess-1", core.Message{Role: core.RoleUser, Content: "plain"}))
	got, err = repo.GetMessages(ctx, "sess-1", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Nil(t, got[1].Parts)
	assert.Equal(t, "plain", got[1].Content)
}

func TestTranscriptLimitReturnsNewest(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, content := range []string{"first", "second", "third"} {
		require.NoError(t, repo.AddMessage(ctx, "sess-1", core.Message{Role: core.RoleUser, Content: content}))
	}

	got, err := repo.GetMessages(ctx, "sess-1", 2)
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "second", got[0].Content)
	assert.Equal(t, "third", got[1].Content)
}

func TestTranscriptSessionsIsolated(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.AddMessage(ctx, "sess-1", core.Message{Role: core.RoleUser, Content: "a"}))
	require.NoError(t, repo.AddMessage(ctx, "sess-2", core.Message{Role: core.RoleUser, Content: "b"}))

	got, err := repo.GetMessages(ctx, "sess-1", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Content)
}

func TestTranscriptDeleteSession(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.AddMessage(ctx, "sess-1", core.Message{Role: core.RoleUser, Content: "a"}))
	require.NoError(t, repo.DeleteSession(ctx, "sess-1"))

	got, err := repo.GetMessages(ctx, "sess-1", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}
