package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestOllamaClient(t *testing.T, handler http.HandlerFunc) *OllamaClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv("OLLAMA_BASE_URL", srv.URL)
	t.Setenv("OLLAMA_MODEL", "test-model")
	client, err := NewOllamaClient()
	if err != nil {
		t.Fatalf("NewOllamaClient failed: %v", err)
	}
	return client
}

func TestNewOllamaClient_RequiresBaseURL(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "")
	if _, err := NewOllamaClient(); err == nil {
		t.Fatal("expected error when OLLAMA_BASE_URL is unset")
	}
}

func TestOllamaClient_Generate(t *testing.T) {
	client := newTestOllamaClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaGenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("model = %q, want test-model", req.Model)
		}
		if req.Stream {
			t.Error("stream should be false")
		}
		if _, ok := req.Options["temperature"]; !ok {
			t.Error("expected default temperature option")
		}
		json.NewEncoder(w).Encode(ollamaGenerateResponse{
			Model:    req.Model,
			Response: "generated text",
			Done:     true,
		})
	})

	got, err := client.Generate(context.Background(), "hello", GenerationParams{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got != "generated text" {
		t.Errorf("Generate = %q, want %q", got, "generated text")
	}
}

func TestOllamaClient_GenerateModelNotFound(t *testing.T) {
	client := newTestOllamaClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "model 'test-model' not found"})
	})

	_, err := client.Generate(context.Background(), "hello", GenerationParams{})
	if err == nil {
		t.Fatal("expected error for missing model")
	}
	if !strings.Contains(err.Error(), "ollama pull") {
		t.Errorf("error should suggest pulling the model, got %v", err)
	}
}

func TestOllamaClient_Chat(t *testing.T) {
	client := newTestOllamaClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if len(req.Messages) != 2 {
			t.Errorf("got %d messages, want 2", len(req.Messages))
		}
		json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: Message{Role: "assistant", Content: "chat reply"},
			Done:    true,
		})
	})

	messages := []Message{
		{Role: "system", Content: "You are a helpful assistant."},
		{Role: "user", Content: "hi"},
	}
	got, err := client.Chat(context.Background(), messages, GenerationParams{})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if got != "chat reply" {
		t.Errorf("Chat = %q, want %q", got, "chat reply")
	}
}

func TestOllamaClient_BuildOptionsOverrides(t *testing.T) {
	o := &OllamaClient{}
	temp := float32(0.7)
	maxTokens := 256
	opts := o.buildOptions(GenerationParams{Temperature: &temp, MaxTokens: &maxTokens, Stop: []string{"END"}})
	if opts["temperature"] != temp {
		t.Errorf("temperature = %v, want %v", opts["temperature"], temp)
	}
	if opts["num_predict"] != maxTokens {
		t.Errorf("num_predict = %v, want %v", opts["num_predict"], maxTokens)
	}
	if _, ok := opts["stop"]; !ok {
		t.Error("expected stop option to be set")
	}
}
