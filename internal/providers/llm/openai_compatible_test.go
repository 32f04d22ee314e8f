package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sandevgo/spyglass/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOpenAI(baseURL string) *OpenAICompatible {
	return NewOpenAICompatible(OpenAICompatibleConfig{
		BaseURL:    baseURL,
		APIKey:     "test-key",
		Model:      "o4-mini",
		AuthHeader: "Authorization",
		AuthPrefix: "Bearer ",
	})
}

func TestChatParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "o4-mini", payload["model"])

		_, _ = w.Write([]byte(`{"choices":[{"message":{
			"role":"assistant",
			"content":"",
			"tool_calls":[{"id":"call_1","type":"function","function":{"name":"read_file","arguments":"{\"path\":\"a.go\"}"}}]
		}}]}`))
	}))
	defer srv.Close()

	msg, err := newTestOpenAI(srv.URL).Chat(context.Background(), []core.Message{
		{Role: core.RoleUser, Content: "read a.go"},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, core.RoleAssistant, msg.Role)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "read_file", msg.ToolCalls[0].Function.Name)
}

func TestChatImagePartsPassThrough(t *testing.T) {
	// Unlike the generate-content adapter, this path forwards structured
	// user content untouched.
	var gotParts []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Messages []struct {
				Parts []map[string]any `json:"parts"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		gotParts = payload.Messages[0].Parts
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"I see an image"}}]}`))
	}))
	defer srv.Close()

	_, err := newTestOpenAI(srv.URL).Chat(context.Background(), []core.Message{
		{Role: core.RoleUser, Parts: []core.ContentPart{
			{Type: "text", Text: "what is this?"},
			{Type: "image_url", ImageURL: "data:image/png;base64,xxx"},
		}},
	}, nil)
	require.NoError(t, err)

	require.Len(t, gotParts, 2)
	assert.Equal(t, "image_url", gotParts[1]["type"])
}

func TestOpenAIStreamPassthrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		lines := []string{
			`{"id":"chatcmpl-1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"role":"assistant","content":"Hel"},"finish_reason":null}]}`,
			`{"id":"chatcmpl-1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"lo"},"finish_reason":"stop"}]}`,
			`[DONE]`,
		}
		for _, l := range lines {
			_, _ = w.Write([]byte("data: " + l + "\n\n"))
		}
	}))
	defer srv.Close()

	stream, err := newTestOpenAI(srv.URL).Stream(context.Background(), core.ChatRequest{
		Messages: []core.Message{{Role: core.RoleUser, Content: "say hello"}},
	})
	require.NoError(t, err)

	var text strings.Builder
	var last core.StreamChunk
	for {
		chunk, ok := stream.Recv()
		if !ok {
			break
		}
		last = chunk
		text.WriteString(chunk.Choices[0].Delta.Content)
	}
	require.NoError(t, stream.Err())

	assert.Equal(t, "Hello", text.String())
	require.NotNil(t, last.Choices[0].FinishReason)
	assert.Equal(t, "stop", *last.Choices[0].FinishReason)
}

func TestOpenAIModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[{"id":"o3"},{"id":"o4-mini"}]}`))
	}))
	defer srv.Close()

	models, err := newTestOpenAI(srv.URL).Models(context.Background())
	require.NoError(t, err)

	require.Len(t, models, 2)
	assert.Equal(t, "o3", models[0].ID)
}

func TestOpenAIModelsMissingCredential(t *testing.T) {
	p := NewOpenAICompatible(OpenAICompatibleConfig{BaseURL: "http://unused", Model: "o4-mini"})

	_, err := p.Models(context.Background())
	assert.ErrorIs(t, err, ErrMissingCredential)
}
