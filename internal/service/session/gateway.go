package session

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/spyglass/internal/core"
	"github.com/sandevgo/spyglass/internal/service/agent"
	"github.com/sandevgo/spyglass/internal/service/policy"
	"github.com/sandevgo/spyglass/pkg/log"
)

// Agent is the collaborator a session owns for its lifetime.
type Agent interface {
	Run(ctx context.Context, input []core.Message) error
	Terminate()
}

// AgentFactory builds a session's agent. The gateway supplies the callbacks
// in params; the factory fills in model, instructions and wiring.
type AgentFactory func(sessionID string, params agent.Params) Agent

// TranscriptStore is the slice of storage the gateway needs to release a
// session's history. May be nil when persistence is not wired.
type TranscriptStore interface {
	DeleteSession(ctx context.Context, sessionID string) error
}

type ChatParams struct {
	Prompt       string
	SessionID    string
	ImagePaths   []string
	ApprovalMode string // accepted syntactically, always ignored
}

type ChatResult struct {
	SessionID string         `json:"sessionId"`
	Messages  []core.Message `json:"messages"`
	Status    string         `json:"status"`
	Error     string         `json:"error,omitempty"`
}

const (
	StatusCompleted = "completed"
	StatusError     = "error"
)

type session struct {
	id        string
	agent     Agent
	createdAt time.Time

	mu   sync.Mutex
	sink func(core.Message)
}

func (s *session) setSink(sink func(core.Message)) {
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
}

func (s *session) deliver(msg core.Message) {
	s.mu.Lock()
	sink := s.sink
	s.mu.Unlock()
	if sink != nil {
		sink(msg)
	}
}

// Gateway maps opaque session ids to agent instances. Every session runs
// under the fixed read-only policy: write-capability confirmations are
// denied, and the capability filter rewrites emitted messages before they
// reach the caller.
type Gateway struct {
	mu          sync.Mutex
	sessions    map[string]*session
	factory     AgentFactory
	transcripts TranscriptStore
}

func NewGateway(factory AgentFactory, transcripts TranscriptStore) *Gateway {
	return &Gateway{
		sessions:    make(map[string]*session),
		factory:     factory,
		transcripts: transcripts,
	}
}

// HandleChat runs one turn. An absent or unknown session id mints a fresh
// session; a known id reuses its agent, history included. Turn failures are
// reported in the result, never by tearing the session down.
func (g *Gateway) HandleChat(ctx context.Context, params ChatParams) ChatResult {
	sess := g.resolve(params.SessionID)

	var cmu sync.Mutex
	var collected []core.Message
	sess.setSink(func(msg core.Message) {
		filtered := policy.Filter(msg)
		cmu.Lock()
		collected = append(collected, filtered)
		cmu.Unlock()
	})
	defer sess.setSink(nil)

	input := g.buildInput(ctx, params)

	err := sess.agent.Run(ctx, input)

	cmu.Lock()
	messages := collected
	cmu.Unlock()

	result := ChatResult{
		SessionID: sess.id,
		Messages:  messages,
		Status:    StatusCompleted,
	}
	if err != nil {
		log.FromCtx(ctx).Error().Err(err).Str("session", sess.id).Msg("turn failed")
		result.Status = StatusError
		result.Error = err.Error()
	}
	return result
}

// Terminate releases a session's agent and forgets the id. Reports false
// when the id was never created or already terminated.
func (g *Gateway) Terminate(ctx context.Context, sessionID string) bool {
	g.mu.Lock()
	sess, ok := g.sessions[sessionID]
	if ok {
		delete(g.sessions, sessionID)
	}
	g.mu.Unlock()

	if !ok {
		return false
	}

	sess.agent.Terminate()
	if g.transcripts != nil {
		if err := g.transcripts.DeleteSession(ctx, sessionID); err != nil {
			log.FromCtx(ctx).Error().Err(err).Str("session", sessionID).Msg("failed to delete transcript")
		}
	}
	log.FromCtx(ctx).Info().Str("session", sessionID).Msg("session terminated")
	return true
}

// Close terminates every live session, used at process shutdown.
func (g *Gateway) Close(ctx context.Context) {
	g.mu.Lock()
	sessions := g.sessions
	g.sessions = make(map[string]*session)
	g.mu.Unlock()

	for id, sess := range sessions {
		sess.agent.Terminate()
		log.FromCtx(ctx).Debug().Str("session", id).Msg("session released")
	}
}

func (g *Gateway) resolve(sessionID string) *session {
	g.mu.Lock()
	defer g.mu.Unlock()

	if sess, ok := g.sessions[sessionID]; ok {
		return sess
	}

	// Unknown ids are not adopted, a fresh one is minted instead.
	sess := &session{
		id:        uuid.NewString(),
		createdAt: time.Now(),
	}
	sess.agent = g.factory(sess.id, agent.Params{
		ApprovalPolicy: "read-only",
		OnItem:         sess.deliver,
		GetCommandConfirmation: func(string) bool {
			return false
		},
	})
	g.sessions[sess.id] = sess
	return sess
}

func (g *Gateway) buildInput(ctx context.Context, params ChatParams) []core.Message {
	if len(params.ImagePaths) == 0 {
		return []core.Message{{Role: core.RoleUser, Content: params.Prompt}}
	}

	parts := []core.ContentPart{{Type: "text", Text: params.Prompt}}
	for _, path := range params.ImagePaths {
		url, err := loadImageDataURL(path)
		if err != nil {
			log.FromCtx(ctx).Warn().Err(err).Str("path", path).Msg("skipping image attachment")
			continue
		}
		parts = append(parts, core.ContentPart{Type: "image_url", ImageURL: url})
	}
	return []core.Message{{Role: core.RoleUser, Parts: parts}}
}

func loadImageDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}

	mime := "image/png"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		mime = "image/jpeg"
	case ".gif":
		mime = "image/gif"
	case ".webp":
		mime = "image/webp"
	}
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)), nil
}
