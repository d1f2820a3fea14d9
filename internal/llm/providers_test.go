package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/photopoet/internal/config"
	"github.com/nikhilbhutani/photopoet/pkg/datauri"
)

var testImage = datauri.Encode("image/png", []byte("fake-png-bytes"))

func visionRequest() ChatRequest {
	return ChatRequest{
		Model: "test-model",
		Messages: []Message{
			{Role: "system", Content: "You are a poet."},
			{Role: "user", Content: "Write a poem.", Images: []string{testImage}},
		},
		ResponseSchema: testSchema,
	}
}

func TestOllamaChatCompletion(t *testing.T) {
	var got ollamaChatReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model":             "llava",
			"message":           map[string]string{"role": "assistant", "content": `{"poem":"light"}`},
			"done":              true,
			"done_reason":       "stop",
			"prompt_eval_count": 12,
			"eval_count":        5,
		})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL)
	resp, err := p.ChatCompletion(context.Background(), visionRequest())
	require.NoError(t, err)

	assert.Equal(t, `{"poem":"light"}`, resp.Content)
	assert.Equal(t, 17, resp.TotalTokens)
	assert.Equal(t, "stop", resp.FinishReason)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, "ONLY a valid JSON object")
	_, encoded, err := datauri.Split(testImage)
	require.NoError(t, err)
	assert.Equal(t, []string{encoded}, got.Messages[1].Images)
	assert.NotEmpty(t, got.Format)
}

func TestOllamaChatCompletionStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL).ChatCompletion(context.Background(), visionRequest())
	assert.ErrorContains(t, err, "status 404")
}

func TestOpenAIChatCompletionSendsImagesAndSchema(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":    "chatcmpl-1",
			"model": "gpt-4o",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": `{"poem":"dawn"}`},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 4, "total_tokens": 14},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProviderWithBaseURL("sk-test", srv.URL)
	resp, err := p.ChatCompletion(context.Background(), visionRequest())
	require.NoError(t, err)
	assert.Equal(t, `{"poem":"dawn"}`, resp.Content)
	assert.Equal(t, "openai", resp.Provider)
	assert.Equal(t, 14, resp.TotalTokens)

	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	userContent := msgs[1].(map[string]any)["content"].([]any)
	require.Len(t, userContent, 2)
	assert.Equal(t, "text", userContent[0].(map[string]any)["type"])
	imagePart := userContent[1].(map[string]any)
	assert.Equal(t, "image_url", imagePart["type"])
	assert.Equal(t, testImage, imagePart["image_url"].(map[string]any)["url"])

	format := got["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
	assert.Equal(t, true, format["json_schema"].(map[string]any)["strict"])
}

func TestNewGatewayUsesOpenAIBaseURL(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "Bearer sk-local", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-2",
			"model":   "llava",
			"choices": []map[string]any{{"index": 0, "message": map[string]string{"role": "assistant", "content": "ok"}, "finish_reason": "stop"}},
		})
	}))
	defer srv.Close()

	gw := NewGateway(config.LLMConfig{
		OpenAIKey:       "sk-local",
		OpenAIBaseURL:   srv.URL,
		DefaultProvider: "openai",
		DefaultModel:    "llava",
	})
	resp, err := gw.Chat(context.Background(), visionRequest())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 1, hits)
}

func TestToGeminiContentsSkipsSystemAndDecodesImages(t *testing.T) {
	contents, err := toGeminiContents(visionRequest().Messages)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	require.Len(t, contents[0].Parts, 2)
	assert.Equal(t, "Write a poem.", contents[0].Parts[0].Text)
	require.NotNil(t, contents[0].Parts[1].InlineData)
	assert.Equal(t, "image/png", contents[0].Parts[1].InlineData.MIMEType)
	assert.Equal(t, []byte("fake-png-bytes"), contents[0].Parts[1].InlineData.Data)

	schema := toGeminiSchema(testSchema)
	assert.Equal(t, []string{"poem"}, schema.Required)
	assert.Contains(t, schema.Properties, "poem")
}

func TestToAnthropicMessagesRejectsBadImage(t *testing.T) {
	_, err := toAnthropicMessages([]Message{{Role: "user", Content: "x", Images: []string{"blob:abc"}}})
	assert.ErrorContains(t, err, "anthropic image block")

	msgs, err := toAnthropicMessages(visionRequest().Messages)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Len(t, msgs[0].Content, 2)
}
