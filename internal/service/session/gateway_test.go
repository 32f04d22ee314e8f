package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sandevgo/spyglass/internal/core"
	"github.com/sandevgo/spyglass/internal/service/agent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedAgent emits a fixed message sequence per turn and counts runs so
// tests can observe session reuse.
type scriptedAgent struct {
	params     agent.Params
	emit       []core.Message
	runErr     error
	runs       int
	terminated bool
}

func (a *scriptedAgent) Run(ctx context.Context, input []core.Message) error {
	a.runs++
	for _, m := range a.emit {
		a.params.OnItem(m)
	}
	return a.runErr
}

func (a *scriptedAgent) Terminate() {
	a.terminated = true
}

type agentRecorder struct {
	created []*scriptedAgent
	emit    []core.Message
	runErr  error
}

func (r *agentRecorder) factory(sessionID string, params agent.Params) Agent {
	a := &scriptedAgent{params: params, emit: r.emit, runErr: r.runErr}
	r.created = append(r.created, a)
	return a
}

func TestHandleChatNewSession(t *testing.T) {
	rec := &agentRecorder{emit: []core.Message{
		{Role: core.RoleAssistant, Content: "hello"},
	}}
	g := NewGateway(rec.factory, nil)

	result := g.HandleChat(context.Background(), ChatParams{Prompt: "hi"})

	assert.Equal(t, StatusCompleted, result.Status)
	assert.NotEmpty(t, result.SessionID)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, "hello", result.Messages[0].Content)
	require.Len(t, rec.created, 1)
}

func TestHandleChatSessionReuse(t *testing.T) {
	rec := &agentRecorder{}
	g := NewGateway(rec.factory, nil)

	first := g.HandleChat(context.Background(), ChatParams{Prompt: "one"})
	second := g.HandleChat(context.Background(), ChatParams{Prompt: "two", SessionID: first.SessionID})

	assert.Equal(t, first.SessionID, second.SessionID)
	require.Len(t, rec.created, 1, "same id must reuse the agent")
	assert.Equal(t, 2, rec.created[0].runs)
}

func TestHandleChatUnknownIDMintsFresh(t *testing.T) {
	rec := &agentRecorder{}
	g := NewGateway(rec.factory, nil)

	result := g.HandleChat(context.Background(), ChatParams{Prompt: "hi", SessionID: "never-seen"})

	assert.NotEqual(t, "never-seen", result.SessionID)
	require.Len(t, rec.created, 1)
}

func TestHandleChatAppliesCapabilityFilter(t *testing.T) {
	rec := &agentRecorder{emit: []core.Message{
		{
			Role:    core.RoleAssistant,
			Content: "editing now",
			ToolCalls: []core.ToolCall{
				{ID: "call_1", Type: "function", Function: core.FunctionCall{Name: "write_file", Arguments: "{}"}},
			},
		},
	}}
	g := NewGateway(rec.factory, nil)

	result := g.HandleChat(context.Background(), ChatParams{Prompt: "edit the file"})

	require.Len(t, result.Messages, 1)
	assert.Nil(t, result.Messages[0].ToolCalls)
	assert.Contains(t, result.Messages[0].Content, "write_file")
	assert.Contains(t, result.Messages[0].Content, "read-only")
}

func TestHandleChatTurnFailureKeepsSession(t *testing.T) {
	rec := &agentRecorder{
		emit:   []core.Message{{Role: core.RoleAssistant, Content: "partial"}},
		runErr: errors.New("provider exploded"),
	}
	g := NewGateway(rec.factory, nil)

	result := g.HandleChat(context.Background(), ChatParams{Prompt: "hi"})

	assert.Equal(t, StatusError, result.Status)
	assert.Contains(t, result.Error, "provider exploded")
	// Partial messages before the failure still come back.
	require.Len(t, result.Messages, 1)

	// The session survives and stays reusable.
	rec.runErr = nil
	second := g.HandleChat(context.Background(), ChatParams{Prompt: "again", SessionID: result.SessionID})
	assert.Equal(t, result.SessionID, second.SessionID)
	require.Len(t, rec.created, 1)
}

func TestTerminate(t *testing.T) {
	rec := &agentRecorder{}
	g := NewGateway(rec.factory, nil)

	result := g.HandleChat(context.Background(), ChatParams{Prompt: "hi"})

	assert.True(t, g.Terminate(context.Background(), result.SessionID))
	assert.True(t, rec.created[0].terminated)

	// Repeat terminate is a not-found no-op.
	assert.False(t, g.Terminate(context.Background(), result.SessionID))

	// A chat with the released id creates a brand-new agent.
	g.HandleChat(context.Background(), ChatParams{Prompt: "hi", SessionID: result.SessionID})
	require.Len(t, rec.created, 2)
}

func TestTerminateUnknownID(t *testing.T) {
	g := NewGateway((&agentRecorder{}).factory, nil)
	assert.False(t, g.Terminate(context.Background(), "no-such-session"))
}

func TestGatewayDeniesCommandConfirmation(t *testing.T) {
	rec := &agentRecorder{}
	g := NewGateway(rec.factory, nil)

	g.HandleChat(context.Background(), ChatParams{Prompt: "hi", ApprovalMode: "full-auto"})

	require.Len(t, rec.created, 1)
	params := rec.created[0].params
	// approvalMode is accepted but ignored; the effective policy is always
	// read-only with an unconditional deny.
	assert.Equal(t, "read-only", params.ApprovalPolicy)
	require.NotNil(t, params.GetCommandConfirmation)
	assert.False(t, params.GetCommandConfirmation("rm -rf /"))
}

func TestBuildInputFlattensImagePaths(t *testing.T) {
	g := NewGateway((&agentRecorder{}).factory, nil)

	input := g.buildInput(context.Background(), ChatParams{
		Prompt:     "look at this",
		ImagePaths: []string{"/does/not/exist.png"},
	})

	require.Len(t, input, 1)
	assert.Equal(t, core.RoleUser, input[0].Role)
	// The unreadable image is skipped; the text part survives.
	require.Len(t, input[0].Parts, 1)
	assert.Equal(t, "text", input[0].Parts[0].Type)
	assert.True(t, strings.HasPrefix(input[0].Parts[0].Text, "look at this"))
}
