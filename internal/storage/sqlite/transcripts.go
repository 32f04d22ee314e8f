package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/sandevgo/spyglass/internal/core"
	"github.com/sandevgo/spyglass/pkg/log"
)

// TranscriptRepo persists per-session conversation history.
type TranscriptRepo struct {
	db *sql.DB
}

func NewTranscriptRepo(db *sql.DB) *TranscriptRepo {
	return &TranscriptRepo{db: db}
}

func (r *TranscriptRepo) AddMessage(ctx context.Context, sessionID string, msg core.Message) error {
	tcStr, err := marshalColumn(msg.ToolCalls)
	if err != nil {
		return fmt.Errorf("failed to marshal tool calls: %w", err)
	}
	partsStr, err := marshalColumn(msg.Parts)
	if err != nil {
		return fmt.Errorf("failed to marshal content parts: %w", err)
	}

	query := `INSERT INTO transcripts (session_id, role, content, tool_calls, tool_call_id, parts) VALUES (?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query, sessionID, msg.Role, msg.Content, tcStr, msg.ToolCallID, partsStr)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// marshalColumn stores an empty slice as nothing instead of "null".
func marshalColumn(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	s := string(b)
	if s == "null" {
		s = ""
	}
	return s, nil
}

// GetMessages returns up to limit most recent messages in chronological
// order. A non-positive limit returns the whole transcript.
func (r *TranscriptRepo) GetMessages(ctx context.Context, sessionID string, limit int) ([]core.Message, error) {
	if limit <= 0 {
		limit = -1 // sqlite treats negative LIMIT as unlimited
	}

	query := `SELECT role, content, tool_calls, tool_call_id, parts FROM transcripts WHERE session_id = ? ORDER BY id DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []core.Message
	for rows.Next() {
		var msg core.Message
		var content, toolCallsStr, toolCallID, partsStr sql.NullString

		if err := rows.Scan(&msg.Role, &content, &toolCallsStr, &toolCallID, &partsStr); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		msg.Content = content.String
		msg.ToolCallID = toolCallID.String

		if err := unmarshalColumn(toolCallsStr, &msg.ToolCalls); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tool calls: %w", err)
		}
		if err := unmarshalColumn(partsStr, &msg.Parts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal content parts: %w", err)
		}

		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Rows arrived newest first, flip back to chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	log.FromCtx(ctx).Debug().Int("count", len(messages)).Msg("loaded transcript messages")
	return messages, nil
}

func unmarshalColumn(col sql.NullString, dst any) error {
	if !col.Valid || col.String == "" || col.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(col.String), dst)
}

// DeleteSession removes every transcript row for a session.
func (r *TranscriptRepo) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM transcripts WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session transcript: %w", err)
	}
	return nil
}
