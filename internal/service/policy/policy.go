// Package policy decides which tool invocations a session may surface.
// Every known tool name belongs to exactly one of two disjoint capability
// sets: read (inspection only) or write (anything that can mutate state).
package policy

import (
	"strings"

	"github.com/sandevgo/spyglass/internal/core"
)

var readTools = map[string]struct{}{
	"read_file":      {},
	"search_files":   {},
	"list_directory": {},
	"get_file_info":  {},
	"web_fetch":      {},
}

var writeTools = map[string]struct{}{
	"write_file": {},
	"edit_file":  {},
	"shell_exec": {},
	"manage_mcp": {},
}

func IsReadTool(name string) bool {
	_, ok := readTools[name]
	return ok
}

func IsWriteTool(name string) bool {
	_, ok := writeTools[name]
	return ok
}

const blockedNotePrefix = "\n\nNote: this session is read-only. The following tool calls were blocked: "

const blockedNoteSuffix = ". I can analyze the request and describe the changes instead of applying them."

// Filter rewrites one emitted message under the read-only policy. It is pure
// and stateless across messages. Tool-result messages pass through
// unfiltered; the enforcement point is the call, not the result.
func Filter(msg core.Message) core.Message {
	if msg.Role == core.RoleTool || len(msg.ToolCalls) == 0 {
		return msg
	}

	var kept []core.ToolCall
	var blocked []string
	for _, tc := range msg.ToolCalls {
		if IsWriteTool(tc.Function.Name) {
			blocked = append(blocked, tc.Function.Name)
			continue
		}
		kept = append(kept, tc)
	}

	if len(blocked) == 0 {
		return msg
	}

	out := msg
	out.ToolCalls = kept
	out.Content = msg.Content + blockedNotePrefix + strings.Join(blocked, ", ") + blockedNoteSuffix
	return out
}
