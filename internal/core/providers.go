package core

import (
	"context"
	"errors"
)

// ErrToolNotFound lets layered tool sources distinguish "not mine" from a
// real execution failure.
var ErrToolNotFound = errors.New("tool not found")

// ChunkReceiver is the consumer side of a normalized streaming completion.
// Recv blocks for the next chunk; ok is false once the stream has ended or
// been aborted. Abort stops further chunk delivery; no chunk is observable
// after it returns, even if more were buffered upstream.
type ChunkReceiver interface {
	Recv() (StreamChunk, bool)
	Abort()
	Err() error
}

type AIProvider interface {
	Chat(ctx context.Context, history []Message, tools []Tool) (Message, error)
}

// StreamProvider produces a normalized streaming completion for a uniform
// chat request.
type StreamProvider interface {
	Stream(ctx context.Context, req ChatRequest) (ChunkReceiver, error)
}

type ModelLister interface {
	Models(ctx context.Context) ([]Model, error)
}

type ToolSource interface {
	GetTools(ctx context.Context) ([]Tool, error)
	CallTool(ctx context.Context, name string, args string) (string, error)
}
