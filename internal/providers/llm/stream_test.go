package llm

import (
	"errors"
	"testing"
	"time"

	"github.com/sandevgo/spyglass/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunkWithContent(text string) core.StreamChunk {
	return core.StreamChunk{
		Choices: []core.Choice{{Delta: core.Delta{Content: text}}},
	}
}

func TestChunkStreamDeliversInOrder(t *testing.T) {
	stream := newChunkStream(nil)

	go func() {
		stream.send(chunkWithContent("a"))
		stream.send(chunkWithContent("b"))
		stream.finish()
	}()

	chunk, ok := stream.Recv()
	require.True(t, ok)
	assert.Equal(t, "a", chunk.Choices[0].Delta.Content)

	chunk, ok = stream.Recv()
	require.True(t, ok)
	assert.Equal(t, "b", chunk.Choices[0].Delta.Content)

	_, ok = stream.Recv()
	assert.False(t, ok)
	assert.NoError(t, stream.Err())
}

func TestChunkStreamAbortStopsDelivery(t *testing.T) {
	cancelled := false
	stream := newChunkStream(func() { cancelled = true })

	producerDone := make(chan struct{})
	go func() {
		defer close(producerDone)
		defer stream.finish()
		for i := 0; i < 100; i++ {
			if !stream.send(chunkWithContent("x")) {
				return
			}
		}
	}()

	// Consume two chunks, then abort.
	_, ok := stream.Recv()
	require.True(t, ok)
	_, ok = stream.Recv()
	require.True(t, ok)

	stream.Abort()

	// No chunk is observable after abort, however many the producer had left.
	for i := 0; i < 10; i++ {
		_, ok := stream.Recv()
		assert.False(t, ok)
	}

	assert.True(t, cancelled, "abort must invoke the cancel handle")
	assert.NoError(t, stream.Err())

	select {
	case <-producerDone:
	case <-time.After(time.Second):
		t.Fatal("producer did not stop after abort")
	}
}

func TestChunkStreamAbortIsIdempotent(t *testing.T) {
	stream := newChunkStream(nil)
	stream.Abort()
	stream.Abort()

	_, ok := stream.Recv()
	assert.False(t, ok)
}

func TestChunkStreamFailSurfacesError(t *testing.T) {
	stream := newChunkStream(nil)
	boom := errors.New("boom")

	go func() {
		stream.send(chunkWithContent("partial"))
		stream.fail(boom)
		stream.finish()
	}()

	_, ok := stream.Recv()
	require.True(t, ok)

	_, ok = stream.Recv()
	require.False(t, ok)
	assert.ErrorIs(t, stream.Err(), boom)
}
