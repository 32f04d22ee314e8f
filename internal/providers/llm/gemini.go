package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sandevgo/spyglass/internal/config"
	"github.com/sandevgo/spyglass/internal/core"
	"github.com/sandevgo/spyglass/pkg/log"
)

// Gemini adapts the generate-content API to the uniform chat-completion
// contract. Only the streaming path is normalized; Generate returns the
// backend's raw response object as-is.
type Gemini struct {
	baseProvider
}

func NewGemini(cfg *config.GeminiConfig) *Gemini {
	return &Gemini{
		baseProvider: newBaseProvider(cfg.BaseURL, cfg.APIKey, cfg.Model),
	}
}

// buildRequest partitions one optional leading system message into the
// dedicated system-instruction slot and maps the remaining turns onto the
// backend's role labels. Structured content is flattened to a single text
// blob; image parts are not forwarded by this adapter.
func buildRequest(req core.ChatRequest) geminiRequest {
	native := geminiRequest{}

	history := req.Messages
	if len(history) > 0 && history[0].Role == core.RoleSystem {
		native.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: history[0].FlatText()}},
		}
		history = history[1:]
	}

	for _, m := range history {
		role := "user"
		if m.Role == core.RoleAssistant {
			role = "model"
		}
		native.Contents = append(native.Contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: m.FlatText()}},
		})
	}

	if decls := buildDeclarations(req.Tools); len(decls) > 0 {
		native.Tools = []geminiTool{{FunctionDeclarations: decls}}
	}

	return native
}

func buildDeclarations(tools []core.Tool) []geminiFunctionDeclaration {
	var decls []geminiFunctionDeclaration
	for _, t := range tools {
		if t.Function.Name == "" {
			continue
		}
		decls = append(decls, geminiFunctionDeclaration{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Parameters:  t.Function.Parameters,
		})
	}
	return decls
}

// Generate performs a non-streaming call and returns the raw backend
// response without normalization.
func (g *Gemini) Generate(ctx context.Context, req core.ChatRequest) (*GenerateResponse, error) {
	path := fmt.Sprintf("/models/%s:generateContent?key=%s", g.model, g.apiKey)

	resp, err := g.doRequest(ctx, http.MethodPost, path, buildRequest(req), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}

	var result GenerateResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &result, nil
}

// Stream performs a streaming call and normalizes every native chunk into
// exactly one uniform StreamChunk. The returned stream's Abort handle stops
// chunk delivery regardless of how much of the upstream body was consumed.
func (g *Gemini) Stream(ctx context.Context, req core.ChatRequest) (core.ChunkReceiver, error) {
	path := fmt.Sprintf("/models/%s:streamGenerateContent?alt=sse&key=%s", g.model, g.apiKey)

	streamCtx, cancel := context.WithCancel(ctx)

	resp, err := g.doStreamRequest(streamCtx, http.MethodPost, path, buildRequest(req), nil)
	if err != nil {
		cancel()
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}

	stream := newChunkStream(cancel)
	go g.pump(streamCtx, resp.Body, stream)
	return stream, nil
}

// pump reads SSE events off the body and feeds the stream until EOF, error,
// or abort.
func (g *Gemini) pump(ctx context.Context, body io.ReadCloser, stream *ChunkStream) {
	defer body.Close()
	defer stream.finish()

	completionID := "chatcmpl-" + uuid.NewString()
	created := time.Now().Unix()
	first := true

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		var native GenerateResponse
		if err := json.Unmarshal([]byte(payload), &native); err != nil {
			log.FromCtx(ctx).Error().Err(err).Msg("failed to decode stream chunk")
			stream.fail(fmt.Errorf("decode chunk: %w", err))
			return
		}

		chunk := g.transformChunk(native, completionID, created, first)
		first = false
		if !stream.send(chunk) {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("stream read failed")
		stream.fail(fmt.Errorf("read stream: %w", err))
	}
}

// transformChunk maps one native chunk onto the uniform delta shape. A
// function-call part takes precedence; content is omitted for that chunk.
func (g *Gemini) transformChunk(native GenerateResponse, completionID string, created int64, first bool) core.StreamChunk {
	delta := core.Delta{}
	if first {
		delta.Role = core.RoleAssistant
	}

	var finish *string
	if len(native.Candidates) > 0 {
		cand := native.Candidates[0]
		if cand.FinishReason != "" {
			reason := cand.FinishReason
			finish = &reason
		}

		if fc := firstFunctionCall(cand.Content.Parts); fc != nil {
			args, _ := json.Marshal(fc.Args)
			delta.ToolCalls = []core.DeltaToolCall{{
				Index: 0,
				ID:    "call_" + uuid.NewString(),
				Type:  "function",
				Function: core.FunctionCall{
					Name:      fc.Name,
					Arguments: string(args),
				},
			}}
		} else {
			delta.Content = collectText(cand.Content.Parts)
		}
	}

	return core.StreamChunk{
		ID:      completionID,
		Object:  "chat.completion.chunk",
		Created: created,
		Model:   g.model,
		Choices: []core.Choice{{
			Index:        0,
			Delta:        delta,
			FinishReason: finish,
		}},
	}
}

func firstFunctionCall(parts []geminiPart) *geminiFunctionCall {
	for _, p := range parts {
		if p.kind() == partFunctionCall {
			return p.FunctionCall
		}
	}
	return nil
}

func collectText(parts []geminiPart) string {
	var out string
	for _, p := range parts {
		if p.kind() == partText {
			out += p.Text
		}
	}
	return out
}

// Models lists the backend's available model identifiers. A missing
// credential short-circuits to ErrMissingCredential instead of a generic
// transport failure.
func (g *Gemini) Models(ctx context.Context) ([]core.Model, error) {
	if !g.Credentialed() {
		return nil, ErrMissingCredential
	}

	path := fmt.Sprintf("/models?key=%s", g.apiKey)
	resp, err := g.doRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch models: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}

	var apiResp struct {
		Models []struct {
			Name        string `json:"name"`
			DisplayName string `json:"displayName"`
		} `json:"models"`
	}
	if err := json.Unmarshal(data, &apiResp); err != nil {
		return nil, fmt.Errorf("decode models response: %w", err)
	}

	models := make([]core.Model, 0, len(apiResp.Models))
	for _, m := range apiResp.Models {
		// Names come back as "models/<id>"
		id := strings.TrimPrefix(m.Name, "models/")
		models = append(models, core.Model{
			ID:   id,
			Name: m.DisplayName,
		})
	}
	return models, nil
}
