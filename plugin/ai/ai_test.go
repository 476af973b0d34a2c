package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/murmurchat/murmur/internal/profile"
)

type recordingGenerator struct {
	mu      sync.Mutex
	prompts []string
}

func (g *recordingGenerator) Generate(_ context.Context, prompt string, _ []Message) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	return "summary", nil
}

func TestSummarizeShortText(t *testing.T) {
	gen := &recordingGenerator{}
	summary, err := Summarize(context.Background(), gen, "Page 1: a short document\n\n")
	require.NoError(t, err)
	assert.Equal(t, "summary", summary)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "a short document")
}

func TestSummarizeLongTextMapsThenReduces(t *testing.T) {
	gen := &recordingGenerator{}
	text := strings.Repeat("lorem ipsum dolor sit amet ", 1500)
	_, err := Summarize(context.Background(), gen, text)
	require.NoError(t, err)

	// One call per chunk plus the final merge.
	require.GreaterOrEqual(t, len(gen.prompts), 3)
	last := gen.prompts[len(gen.prompts)-1]
	assert.True(t, strings.HasPrefix(last, summaryPrompt))
	assert.Contains(t, last, "partial summaries")
	assert.Contains(t, last, "Part 1: summary")
}

func TestSummarizeEmptyText(t *testing.T) {
	gen := &recordingGenerator{}
	_, err := Summarize(context.Background(), gen, "  \n ")
	require.Error(t, err)
	assert.Empty(t, gen.prompts)
}

func TestNewGeneratorRequiresAPIKey(t *testing.T) {
	_, err := NewGenerator(context.Background(), &profile.Profile{AIProvider: "gemini"})
	require.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewGenerator(context.Background(), &profile.Profile{AIProvider: "unknown", AIAPIKey: "k"})
	require.Error(t, err)
}

func TestOpenAIGenerator(t *testing.T) {
	var received struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","created":1,"model":"test-model",` +
			`"choices":[{"index":0,"message":{"role":"assistant","content":"Hi there"},"finish_reason":"stop"}],` +
			`"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`))
	}))
	defer server.Close()

	gen, err := NewOpenAIGenerator("test-key", server.URL, "test-model")
	require.NoError(t, err)

	reply, err := gen.Generate(context.Background(), "Hello", []Message{
		{Role: RoleUser, Content: "earlier question"},
		{Role: RoleAssistant, Content: "earlier answer"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi there", reply)

	assert.Equal(t, "test-model", received.Model)
	require.Len(t, received.Messages, 4)
	assert.Equal(t, "system", received.Messages[0].Role)
	assert.Equal(t, "assistant", received.Messages[2].Role)
	// Text content may be sent as a plain string or as a single text part.
	assert.Contains(t, string(received.Messages[3].Content), "Hello")
}

func TestOpenAIGeneratorServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	gen, err := NewOpenAIGenerator("test-key", server.URL, "test-model")
	require.NoError(t, err)
	_, err = gen.Generate(context.Background(), "Hello", nil)
	require.Error(t, err)
}
