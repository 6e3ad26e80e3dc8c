package ai

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	ollama "github.com/ollama/ollama/api"

	scerrors "thoreinstein.com/scommit/pkg/errors"
)

func TestNewOllamaProvider(t *testing.T) {
	tests := []struct {
		name         string
		endpoint     string
		model        string
		wantEndpoint string
		wantModel    string
	}{
		{
			name:         "empty endpoint uses default",
			model:        "custom-model",
			wantEndpoint: ollamaDefaultEndpoint,
			wantModel:    "custom-model",
		},
		{
			name:         "empty model uses default",
			endpoint:     "http://custom:1234",
			wantEndpoint: "http://custom:1234",
			wantModel:    ollamaDefaultModel,
		},
		{
			name:         "custom values preserved",
			endpoint:     "http://custom:1234",
			model:        "custom-model",
			wantEndpoint: "http://custom:1234",
			wantModel:    "custom-model",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewOllamaProvider(tt.endpoint, tt.model, nil)
			if err != nil {
				t.Fatalf("NewOllamaProvider() error = %v", err)
			}
			if p.endpoint != tt.wantEndpoint {
				t.Errorf("endpoint = %q, want %q", p.endpoint, tt.wantEndpoint)
			}
			if p.model != tt.wantModel {
				t.Errorf("model = %q, want %q", p.model, tt.wantModel)
			}
			if !p.IsAvailable() {
				t.Error("provider should be available")
			}
			if p.Name() != ProviderOllama {
				t.Errorf("Name() = %q", p.Name())
			}
		})
	}
}

func TestNewOllamaProvider_InvalidEndpoint(t *testing.T) {
	_, err := NewOllamaProvider("localhost-without-scheme", "", nil)
	if err == nil {
		t.Fatal("expected error for endpoint without scheme")
	}
	if !scerrors.IsConfigError(err) {
		t.Errorf("expected ConfigError, got %T", err)
	}
}

func writeOllamaResponse(t *testing.T, w http.ResponseWriter, resp ollama.ChatResponse) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestOllamaProvider_Chat_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST request, got %s", r.Method)
		}
		if r.URL.Path != ollamaChatPath {
			t.Errorf("Expected path %s, got %s", ollamaChatPath, r.URL.Path)
		}

		var reqBody ollama.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
			t.Errorf("Failed to decode request body: %v", err)
		}
		if reqBody.Model != "llama3.2" {
			t.Errorf("Model = %q, want %q", reqBody.Model, "llama3.2")
		}
		if reqBody.Stream == nil || *reqBody.Stream {
			t.Error("Stream should be explicitly false")
		}
		if string(reqBody.Format) != `"json"` {
			t.Errorf("Format = %s, want \"json\"", reqBody.Format)
		}
		if got, ok := reqBody.Options["num_predict"].(float64); !ok || got != 480 {
			t.Errorf("num_predict = %v, want 480", reqBody.Options["num_predict"])
		}
		if len(reqBody.Messages) != 2 || reqBody.Messages[0].Role != "system" {
			t.Errorf("Messages = %+v, want system then user", reqBody.Messages)
		}

		resp := ollama.ChatResponse{
			Model:   "llama3.2",
			Message: ollama.Message{Role: "assistant", Content: `{"subject":"Add x","body":"- y"}`},
			Done:    true,
		}
		resp.PromptEvalCount = 10
		resp.EvalCount = 20
		writeOllamaResponse(t, w, resp)
	}))
	defer server.Close()

	p, err := NewOllamaProvider(server.URL, "llama3.2", nil)
	if err != nil {
		t.Fatal(err)
	}

	resp, err := p.Chat(t.Context(), []Message{
		{Role: "system", Content: "be terse"},
		{Role: "user", Content: "Hello"},
	}, ChatOptions{JSON: true, Temperature: Temperature(0.25), MaxTokens: 480})
	if err != nil {
		t.Fatalf("Chat() error = %v, want nil", err)
	}

	if resp.Content != `{"subject":"Add x","body":"- y"}` {
		t.Errorf("Content = %q", resp.Content)
	}
	if resp.StopReason != "stop" {
		t.Errorf("StopReason = %q, want %q", resp.StopReason, "stop")
	}
	if resp.InputTokens != 10 {
		t.Errorf("InputTokens = %d, want %d", resp.InputTokens, 10)
	}
	if resp.OutputTokens != 20 {
		t.Errorf("OutputTokens = %d, want %d", resp.OutputTokens, 20)
	}
}

func TestOllamaProvider_Chat_EmptyMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeOllamaResponse(t, w, ollama.ChatResponse{Model: "llama3.2", Done: true})
	}))
	defer server.Close()

	p, err := NewOllamaProvider(server.URL, "", nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.Chat(t.Context(), []Message{{Role: "user", Content: "Hello"}}, ChatOptions{})
	if !scerrors.Is(err, ErrNoContent) {
		t.Errorf("Chat() error = %v, want ErrNoContent", err)
	}
}

func TestOllamaProvider_Chat_HTTPErrors(t *testing.T) {
	tests := []struct {
		name           string
		statusCode     int
		responseBody   string
		wantErrContain string
	}{
		{
			name:           "400 bad request with error message",
			statusCode:     http.StatusBadRequest,
			responseBody:   `{"error": "model not found"}`,
			wantErrContain: "model not found",
		},
		{
			name:           "503 service unavailable",
			statusCode:     http.StatusServiceUnavailable,
			responseBody:   `{}`,
			wantErrContain: "503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.responseBody))
			}))
			defer server.Close()

			p, err := NewOllamaProvider(server.URL, "llama3.2", nil)
			if err != nil {
				t.Fatal(err)
			}

			_, err = p.Chat(t.Context(), []Message{{Role: "user", Content: "Hello"}}, ChatOptions{})
			if err == nil {
				t.Fatal("Chat() should return error")
			}

			if !strings.Contains(err.Error(), tt.wantErrContain) {
				t.Errorf("error = %q, should contain %q", err.Error(), tt.wantErrContain)
			}

			var aiErr *scerrors.AIError
			if !scerrors.As(err, &aiErr) {
				t.Errorf("error should be an AIError, got %T", err)
			}
		})
	}
}

func TestOllamaProvider_Chat_NotConfigured(t *testing.T) {
	p := &OllamaProvider{model: "test"}

	_, err := p.Chat(t.Context(), []Message{{Role: "user", Content: "Hello"}}, ChatOptions{})
	if err == nil {
		t.Fatal("Chat() should return error when not configured")
	}

	if !strings.Contains(err.Error(), "not configured") {
		t.Errorf("error = %q, should contain 'not configured'", err.Error())
	}
}
