package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sandevgo/spyglass/internal/core"
	"github.com/sandevgo/spyglass/pkg/log"
)

type HistoryRepository interface {
	AddMessage(ctx context.Context, sessionID string, msg core.Message) error
	GetMessages(ctx context.Context, sessionID string, limit int) ([]core.Message, error)
}

// Params carries the collaborator contract the gateway constructs an agent
// with. OnItem receives every structured message the agent emits, in order.
// GetCommandConfirmation gates write-capability tool dispatch.
type Params struct {
	Model                  string
	Instructions           string
	ApprovalPolicy         string
	OnItem                 func(core.Message)
	OnLoading              func()
	GetCommandConfirmation func(command string) bool
	OnReset                func()
}

type Agent struct {
	params    Params
	provider  core.StreamProvider
	repo      HistoryRepository
	exec      *Executor
	tools     core.ToolSource
	sessionID string
	budget    int

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewAgent(
	sessionID string,
	params Params,
	provider core.StreamProvider,
	tools core.ToolSource,
	repo HistoryRepository,
	contextWindowTokens int,
) *Agent {
	return &Agent{
		params:    params,
		provider:  provider,
		repo:      repo,
		exec:      NewExecutor(tools, params.GetCommandConfirmation),
		tools:     tools,
		sessionID: sessionID,
		budget:    contextWindowTokens,
	}
}

// Run executes one turn: persist the input, stream a completion, dispatch any
// tool calls, and repeat until the model answers without calling tools.
// Blocks until the turn completes or fails.
func (a *Agent) Run(ctx context.Context, input []core.Message) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.cancel = nil
		a.mu.Unlock()
	}()

	logger := log.FromCtx(ctx)

	for _, msg := range input {
		if err := a.repo.AddMessage(ctx, a.sessionID, msg); err != nil {
			return fmt.Errorf("failed to save input message: %w", err)
		}
	}

	for {
		if a.params.OnLoading != nil {
			a.params.OnLoading()
		}

		tools, err := a.tools.GetTools(ctx)
		if err != nil {
			return fmt.Errorf("failed to get tools: %w", err)
		}

		messages, err := a.buildMessages(ctx)
		if err != nil {
			return err
		}

		stream, err := a.provider.Stream(ctx, core.ChatRequest{
			Model:    a.params.Model,
			Messages: messages,
			Stream:   true,
			Tools:    tools,
		})
		if err != nil {
			return fmt.Errorf("provider stream error: %w", err)
		}

		responseMsg, err := assemble(stream)
		if err != nil {
			return fmt.Errorf("provider stream error: %w", err)
		}

		if err := a.repo.AddMessage(ctx, a.sessionID, responseMsg); err != nil {
			logger.Error().Err(err).Msg("failed to save assistant message")
		}
		if a.params.OnItem != nil {
			a.params.OnItem(responseMsg)
		}

		if len(responseMsg.ToolCalls) == 0 {
			return nil
		}

		for _, result := range a.exec.Execute(ctx, responseMsg.ToolCalls) {
			if err := a.repo.AddMessage(ctx, a.sessionID, result); err != nil {
				logger.Error().Err(err).Msg("failed to save tool message")
			}
			if a.params.OnItem != nil {
				a.params.OnItem(result)
			}
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Terminate cancels any in-progress turn. The agent stays usable for future
// turns.
func (a *Agent) Terminate() {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if a.params.OnReset != nil {
		a.params.OnReset()
	}
}

func (a *Agent) buildMessages(ctx context.Context) ([]core.Message, error) {
	history, err := a.repo.GetMessages(ctx, a.sessionID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}
	history = trimToBudget(history, a.budget)

	var messages []core.Message
	if a.params.Instructions != "" {
		messages = append(messages, core.Message{
			Role:    core.RoleSystem,
			Content: a.params.Instructions,
		})
	}
	return append(messages, history...), nil
}

// assemble drains a chunk stream into one assistant message. Tool-call deltas
// carrying an id start a new call; id-less fragments extend the latest one,
// which covers both complete-per-chunk calls and argument streaming.
func assemble(stream core.ChunkReceiver) (core.Message, error) {
	var content strings.Builder
	var toolCalls []core.ToolCall

	for {
		chunk, ok := stream.Recv()
		if !ok {
			break
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta
		content.WriteString(delta.Content)

		for _, dtc := range delta.ToolCalls {
			if dtc.ID != "" {
				toolCalls = append(toolCalls, core.ToolCall{
					ID:   dtc.ID,
					Type: "function",
					Function: core.FunctionCall{
						Name:      dtc.Function.Name,
						Arguments: dtc.Function.Arguments,
					},
				})
				continue
			}
			if len(toolCalls) == 0 {
				continue
			}
			last := &toolCalls[len(toolCalls)-1]
			last.Function.Name += dtc.Function.Name
			last.Function.Arguments += dtc.Function.Arguments
		}
	}

	if err := stream.Err(); err != nil {
		return core.Message{}, err
	}

	return core.Message{
		Role:      core.RoleAssistant,
		Content:   content.String(),
		ToolCalls: toolCalls,
	}, nil
}
