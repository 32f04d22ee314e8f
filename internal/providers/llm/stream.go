package llm

import (
	"context"
	"sync"

	"github.com/sandevgo/spyglass/internal/core"
)

// ChunkStream is a push-style stream of uniform chunks with a cooperative
// cancellation handle. The producer goroutine feeds ch; done gates delivery
// so that nothing is observable after Abort, even chunks already in flight.
type ChunkStream struct {
	ch     chan core.StreamChunk
	done   chan struct{}
	cancel context.CancelFunc

	abortOnce sync.Once

	mu  sync.Mutex
	err error
}

func newChunkStream(cancel context.CancelFunc) *ChunkStream {
	return &ChunkStream{
		ch:     make(chan core.StreamChunk),
		done:   make(chan struct{}),
		cancel: cancel,
	}
}

// Recv returns the next chunk. ok is false once the stream has completed,
// failed, or been aborted; check Err afterwards to distinguish failure.
func (s *ChunkStream) Recv() (core.StreamChunk, bool) {
	select {
	case <-s.done:
		return core.StreamChunk{}, false
	default:
	}

	select {
	case <-s.done:
		return core.StreamChunk{}, false
	case chunk, ok := <-s.ch:
		if !ok {
			return core.StreamChunk{}, false
		}
		return chunk, true
	}
}

// Abort stops further chunk delivery and cleanly ends the stream. It is safe
// to call more than once and after the stream has already ended.
func (s *ChunkStream) Abort() {
	s.abortOnce.Do(func() {
		close(s.done)
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Err reports a terminal backend failure, nil on clean completion or abort.
func (s *ChunkStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// send delivers one chunk unless the stream was aborted. Returns false when
// the producer should stop.
func (s *ChunkStream) send(chunk core.StreamChunk) bool {
	select {
	case <-s.done:
		return false
	case s.ch <- chunk:
		return true
	}
}

func (s *ChunkStream) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// finish closes the producer side. Consumers blocked in Recv observe the end
// of the stream.
func (s *ChunkStream) finish() {
	close(s.ch)
}
