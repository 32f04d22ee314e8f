package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sandevgo/spyglass/internal/core"
	"github.com/sandevgo/spyglass/pkg/log"
)

// OpenAICompatible talks to any backend speaking the chat-completions wire
// format. Its chunks are already in the uniform shape, so streaming is a
// decode passthrough rather than a translation.
type OpenAICompatible struct {
	baseProvider
	authHeader   string
	authPrefix   string
	extraHeaders map[string]string
}

type OpenAICompatibleConfig struct {
	BaseURL      string
	APIKey       string
	Model        string
	AuthHeader   string // e.g., "Authorization"
	AuthPrefix   string // e.g., "Bearer "
	ExtraHeaders map[string]string
}

func NewOpenAICompatible(cfg OpenAICompatibleConfig) *OpenAICompatible {
	return &OpenAICompatible{
		baseProvider: newBaseProvider(cfg.BaseURL, cfg.APIKey, cfg.Model),
		authHeader:   cfg.AuthHeader,
		authPrefix:   cfg.AuthPrefix,
		extraHeaders: cfg.ExtraHeaders,
	}
}

func (o *OpenAICompatible) headers() map[string]string {
	headers := make(map[string]string)
	if o.authHeader != "" && o.apiKey != "" {
		headers[o.authHeader] = o.authPrefix + o.apiKey
	}
	for k, v := range o.extraHeaders {
		headers[k] = v
	}
	return headers
}

// Chat issues a single blocking completion. The gateway's turn loop only
// streams; this entry point serves callers that embed the provider directly
// and want one response message.
func (o *OpenAICompatible) Chat(ctx context.Context, history []core.Message, tools []core.Tool) (core.Message, error) {
	payload := map[string]any{
		"model":    o.model,
		"messages": history,
	}
	if len(tools) > 0 {
		payload["tools"] = tools
	}

	resp, err := o.doRequest(ctx, http.MethodPost, "/v1/chat/completions", payload, o.headers())
	if err != nil {
		return core.Message{}, err
	}
	defer resp.Body.Close()

	return parseChatResponse(resp)
}

func parseChatResponse(resp *http.Response) (core.Message, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.Message{}, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return core.Message{}, fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}

	var result struct {
		Choices []struct {
			Message core.Message `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return core.Message{}, fmt.Errorf("decode: %w", err)
	}
	if len(result.Choices) == 0 {
		return core.Message{}, fmt.Errorf("empty choices: %s", string(data))
	}
	return result.Choices[0].Message, nil
}

func (o *OpenAICompatible) Stream(ctx context.Context, req core.ChatRequest) (core.ChunkReceiver, error) {
	payload := map[string]any{
		"model":    o.model,
		"messages": req.Messages,
		"stream":   true,
	}
	if len(req.Tools) > 0 {
		payload["tools"] = req.Tools
	}

	streamCtx, cancel := context.WithCancel(ctx)

	resp, err := o.doStreamRequest(streamCtx, http.MethodPost, "/v1/chat/completions", payload, o.headers())
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
	go o.pump(streamCtx, resp.Body, stream)
	return stream, nil
}

func (o *OpenAICompatible) pump(ctx context.Context, body io.ReadCloser, stream *ChunkStream) {
	defer body.Close()
	defer stream.finish()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var chunk core.StreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			log.FromCtx(ctx).Error().Err(err).Msg("failed to decode stream chunk")
			stream.fail(fmt.Errorf("decode chunk: %w", err))
			return
		}

		if !stream.send(chunk) {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("stream read failed")
		stream.fail(fmt.Errorf("read stream: %w", err))
	}
}

func (o *OpenAICompatible) Models(ctx context.Context) ([]core.Model, error) {
	if !o.Credentialed() {
		return nil, ErrMissingCredential
	}

	resp, err := o.doRequest(ctx, http.MethodGet, "/v1/models", nil, o.headers())
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
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &apiResp); err != nil {
		return nil, fmt.Errorf("decode models response: %w", err)
	}

	models := make([]core.Model, 0, len(apiResp.Data))
	for _, m := range apiResp.Data {
		models = append(models, core.Model{
			ID:   m.ID,
			Name: m.ID,
		})
	}
	return models, nil
}
