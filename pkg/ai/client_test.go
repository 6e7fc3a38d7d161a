package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	content string
	err     error
	prompts []Prompt
}

func (s *stubCompleter) Complete(_ context.Context, prompt Prompt) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.content, s.err
}

func (s *stubCompleter) Provider() string {
	return "stub"
}

func TestClientEvaluateReturnsCoercedResult(t *testing.T) {
	completer := &stubCompleter{content: `{"score":5,"feedback":"ok","highlights":["test"]}`}
	client, err := NewClient(completer, PromptConfig{}, zerolog.Nop())
	require.NoError(t, err)

	clock := time.Unix(0, 0)
	client.now = func() time.Time {
		clock = clock.Add(120 * time.Millisecond)
		return clock
	}

	result, err := client.Evaluate(context.Background(), "this is a test essay")
	require.NoError(t, err)
	require.Equal(t, 5, result.Score)
	require.Equal(t, "ok", result.Feedback)
	require.Equal(t, []string{"test"}, result.Highlights)
	require.Equal(t, "this is a <b>test</b> essay", result.AnnotatedText)
	require.Equal(t, int64(120), result.LatencyMs)

	require.Len(t, completer.prompts, 1)
	require.Equal(t, "this is a test essay", completer.prompts[0].User)
	require.Equal(t, float32(0.2), completer.prompts[0].Temperature)
	require.Equal(t, 600, completer.prompts[0].MaxTokens)
	require.Contains(t, completer.prompts[0].System, "VERBATIM")
}

func TestClientEvaluateToleratesEmptyCompletion(t *testing.T) {
	client, err := NewClient(&stubCompleter{}, PromptConfig{}, zerolog.Nop())
	require.NoError(t, err)

	result, err := client.Evaluate(context.Background(), "Hello")
	require.NoError(t, err)
	require.Equal(t, 0, result.Score)
	require.Equal(t, FallbackFeedback, result.Feedback)
}

func TestClientEvaluateWrapsUpstreamFailure(t *testing.T) {
	cause := errors.New("boom")
	client, err := NewClient(&stubCompleter{err: cause}, PromptConfig{}, zerolog.Nop())
	require.NoError(t, err)

	_, err = client.Evaluate(context.Background(), "Hello")
	require.Error(t, err)

	var evalErr *EvaluationError
	require.True(t, errors.As(err, &evalErr))
	require.Equal(t, "boom", evalErr.Message)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "ai evaluation failed")
	require.True(t, IsEvaluationError(err))
}

func TestNewClientRequiresCompleter(t *testing.T) {
	_, err := NewClient(nil, PromptConfig{}, zerolog.Nop())
	require.Error(t, err)
}

func TestOpenAICompleterSendsJSONModeRequest(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": " {\"score\": 9} "}, "finish_reason": "stop"}]
		}`))
	}))
	defer server.Close()

	completer, err := NewOpenAICompleter(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL + "/v1"})
	require.NoError(t, err)
	require.Equal(t, "openai", completer.Provider())

	content, err := completer.Complete(context.Background(), Prompt{System: "sys", User: "essay", Temperature: 0.2, MaxTokens: 600})
	require.NoError(t, err)
	require.Equal(t, `{"score": 9}`, content)

	require.Equal(t, "gpt-4o-mini", captured["model"])
	format, ok := captured["response_format"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "json_object", format["type"])
}

func TestOpenAICompleterReturnsErrorOnUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "quota exceeded", "type": "insufficient_quota"}}`))
	}))
	defer server.Close()

	completer, err := NewOpenAICompleter(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL + "/v1"})
	require.NoError(t, err)

	_, err = completer.Complete(context.Background(), Prompt{System: "sys", User: "essay"})
	require.Error(t, err)
}

func TestNewOpenAICompleterUsesAzureDeployment(t *testing.T) {
	completer, err := NewOpenAICompleter(OpenAIConfig{
		APIKey:          "key",
		AzureEndpoint:   "https://example.openai.azure.com",
		AzureAPIVersion: "2024-06-01",
		AzureDeployment: "essay-eval",
	})
	require.NoError(t, err)
	require.Equal(t, "azure-openai", completer.Provider())
	require.Equal(t, "essay-eval", completer.model)
}

func TestLoadPromptConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.yaml")
	require.NoError(t, os.WriteFile(path, []byte("system: |\n  Grade strictly.\nmax_tokens: 300\n"), 0o600))

	cfg, err := LoadPromptConfig(path)
	require.NoError(t, err)
	require.Equal(t, "Grade strictly.", cfg.System)
	require.Equal(t, 300, cfg.MaxTokens)
	require.Equal(t, float32(0.2), cfg.Temperature)

	defaults, err := LoadPromptConfig("")
	require.NoError(t, err)
	require.Equal(t, DefaultPromptConfig(), defaults)

	_, err = LoadPromptConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

type slowCompleter struct{}

func (slowCompleter) Complete(ctx context.Context, _ Prompt) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (slowCompleter) Provider() string { return "slow" }

func TestClientEvaluateAppliesTimeout(t *testing.T) {
	client, err := NewClient(slowCompleter{}, PromptConfig{}, zerolog.Nop())
	require.NoError(t, err)

	_, err = client.WithTimeout(20*time.Millisecond).Evaluate(context.Background(), "Hello")
	require.True(t, IsEvaluationError(err))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
