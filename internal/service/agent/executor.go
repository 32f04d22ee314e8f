package agent

import (
	"context"
	"fmt"

	"github.com/sandevgo/spyglass/internal/core"
	"github.com/sandevgo/spyglass/internal/service/policy"
)

// Executor dispatches a batch of tool calls and turns each outcome into a
// tool-role message. Write-capability calls require an explicit confirmation
// before dispatch; under the read-only policy the confirmation callback
// always denies, so a write call that slips past the output filter is still
// never executed.
type Executor struct {
	tools   core.ToolSource
	confirm func(command string) bool
}

func NewExecutor(tools core.ToolSource, confirm func(command string) bool) *Executor {
	return &Executor{
		tools:   tools,
		confirm: confirm,
	}
}

func (e *Executor) Execute(ctx context.Context, toolCalls []core.ToolCall) []core.Message {
	var results []core.Message
	for _, tc := range toolCalls {
		var res string
		if policy.IsWriteTool(tc.Function.Name) && !e.confirmed(tc) {
			res = fmt.Sprintf("Error: %s was not executed, write capabilities are disabled for this session", tc.Function.Name)
		} else {
			var err error
			res, err = e.tools.CallTool(ctx, tc.Function.Name, tc.Function.Arguments)
			if err != nil {
				res = fmt.Sprintf("Error: %v", err)
			}
		}

		results = append(results, core.Message{
			Role:       core.RoleTool,
			Content:    e.truncate(res),
			ToolCallID: tc.ID,
		})
	}
	return results
}

func (e *Executor) confirmed(tc core.ToolCall) bool {
	if e.confirm == nil {
		return false
	}
	return e.confirm(fmt.Sprintf("%s %s", tc.Function.Name, tc.Function.Arguments))
}

func (e *Executor) truncate(input string) string {
	const maxLen = 2000
	if len(input) <= maxLen {
		return input
	}

	head := input[:500]
	tail := input[len(input)-(maxLen-500):]
	return fmt.Sprintf("%s\n\n... [TRUNCATED %d bytes] ...\n\n%s", head, len(input)-maxLen, tail)
}
