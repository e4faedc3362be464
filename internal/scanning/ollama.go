package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Ollama implements the Scanner interface using a local Ollama vision model.
// Models with decent OCR work best: qwen2.5vl reads small receipt print well,
// llava:1.6 and minicpm-v are usable.
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
	timeout time.Duration
}

// NewOllama creates a new Ollama Scanner instance
func NewOllama(baseURL string, modelName string) (*Ollama, error) {
	return NewOllamaWithClient(baseURL, modelName, &http.Client{})
}

// NewOllamaWithClient creates an Ollama scanner that sends requests through client
func NewOllamaWithClient(baseURL string, modelName string, client *http.Client) (*Ollama, error) {
	if client == nil {
		return nil, fmt.Errorf("http client is required")
	}
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llava"
	}

	return &Ollama{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   modelName,
		client:  client,
		// vision models on local hardware are slow
		timeout: 120 * time.Second,
	}, nil
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// ScanLines transcribes the receipt's text lines
func (o *Ollama) ScanLines(imageData []byte, contentType string) ([]string, error) {
	return transcribe(o.timeout, imageData, contentType, o.ask)
}

func (o *Ollama) ask(ctx context.Context, pngData []byte) (string, error) {
	resp, err := o.chat(ctx, ollamaChatRequest{
		Model:   o.model,
		Format:  "json",
		Options: map[string]any{"temperature": 0},
		Messages: []ollamaMessage{
			{Role: "system", Content: transcribeSystemPrompt},
			{
				Role:    "user",
				Content: transcribePrompt,
				Images:  []string{base64.StdEncoding.EncodeToString(pngData)},
			},
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}

// chat posts one non-streaming request to /api/chat
func (o *Ollama) chat(ctx context.Context, chatReq ollamaChatRequest) (*ollamaChatResponse, error) {
	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &chatResp, nil
}

// Close is a no-op for the HTTP client
func (o *Ollama) Close() error {
	return nil
}
