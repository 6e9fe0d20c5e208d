package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProviderComplete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		data, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(data, &body))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1715000000,
			"model": "llama3-8b-8192",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Nice take on generics."}, "finish_reason": "stop"}]
		}`)
	}))
	defer srv.Close()

	temp := 1.0
	p := NewOpenAIProvider("test-key", srv.URL+"/")
	got, err := p.Complete(context.Background(), Request{
		Model:       "llama3-8b-8192",
		System:      "be brief",
		Prompt:      "article",
		MaxTokens:   506,
		Temperature: &temp,
	})
	require.NoError(t, err)
	assert.Equal(t, "Nice take on generics.", got)

	assert.Equal(t, "llama3-8b-8192", body["model"])
	assert.EqualValues(t, 506, body["max_tokens"])
	assert.EqualValues(t, 1, body["temperature"])
	msgs := body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "article", msgs[1].(map[string]any)["content"])
}

func TestOpenAIProviderNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id": "x", "object": "chat.completion", "choices": []}`)
	}))
	defer srv.Close()

	_, err := NewOpenAIProvider("k", srv.URL).Complete(context.Background(), Request{Model: "m"})
	assert.Error(t, err)
}

func TestAnthropicProviderComplete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		data, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(data, &body))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-haiku-latest",
			"content": [{"type": "text", "text": "Thoughtful piece."}],
			"stop_reason": "end_turn",
			"stop_sequence": null,
			"usage": {"input_tokens": 10, "output_tokens": 4}
		}`)
	}))
	defer srv.Close()

	p := NewAnthropicProvider("test-key", srv.URL)
	got, err := p.Complete(context.Background(), Request{
		Model:     "claude-3-5-haiku-latest",
		System:    "be brief",
		Prompt:    "article",
		MaxTokens: 300,
	})
	require.NoError(t, err)
	assert.Equal(t, "Thoughtful piece.", got)

	assert.EqualValues(t, 300, body["max_tokens"])
	assert.NotContains(t, body, "temperature")
	system := body["system"].([]any)
	assert.Equal(t, "be brief", system[0].(map[string]any)["text"])
}
