package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"

	"dronewatch-server-go/internal/domain/detection"
	"dronewatch-server-go/internal/platform/config"
	"dronewatch-server-go/internal/platform/logging"
)

const (
	defaultOllamaURL = "http://localhost:11434"
	maxReplyBytes    = 1 << 20
)

// Ollama calls a local Ollama server's /api/chat endpoint.
type Ollama struct {
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *logging.Logger
}

type ollamaRequest struct {
	Model    string                 `json:"model"`
	Messages []ollamaMessage        `json:"messages"`
	Stream   bool                   `json:"stream"`
	Format   string                 `json:"format,omitempty"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaResponse struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

// NewOllama builds the backend. A nil client gets one bounded by cfg.Timeout.
func NewOllama(cfg config.BackendConfig, logger *logging.Logger, client *http.Client) (*Ollama, error) {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	if client == nil {
		client = httpClient(cfg.Timeout)
	}
	if logger == nil {
		logger = logging.NewDiscard()
	}
	logger.DebugTag("BACKEND", "ollama backend ready: base_url=%s model=%s", baseURL, cfg.ModelName)
	return &Ollama{
		baseURL:    baseURL,
		model:      cfg.ModelName,
		httpClient: client,
		logger:     logger,
	}, nil
}

func (o *Ollama) Name() string { return "ollama" }

// Complete posts a single non-streaming chat turn. Ollama wants raw base64
// images, not data URIs.
func (o *Ollama) Complete(ctx context.Context, req detection.Request) (string, error) {
	message := ollamaMessage{Role: "user", Content: req.Instruction}
	if !req.Frame.Empty() {
		message.Images = []string{req.Frame.Base64()}
	}

	options := map[string]interface{}{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	payload := ollamaRequest{
		Model:    o.model,
		Messages: []ollamaMessage{message},
		Stream:   false,
		Options:  options,
	}
	if req.JSON {
		payload.Format = "json"
	}

	body, err := sonic.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode ollama request: %w", err)
	}

	url := o.baseURL + "/api/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)

	o.logger.DebugTag("BACKEND", "ollama request: url=%s model=%s image_bytes=%d", url, o.model, len(req.Frame.Data))
	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return "", fmt.Errorf("read ollama reply: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("ollama returned %s: %s", resp.Status, snippet(raw))
	}

	var decoded ollamaResponse
	if err := sonic.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode ollama reply: %w", err)
	}
	if decoded.Error != "" {
		return "", fmt.Errorf("ollama error: %s", decoded.Error)
	}
	return strings.TrimSpace(decoded.Message.Content), nil
}

func snippet(raw []byte) string {
	const limit = 200
	text := strings.TrimSpace(string(raw))
	if len(text) > limit {
		return text[:limit] + "..."
	}
	return text
}
