package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dshills/critic/internal/review"
)

const defaultOllamaURL = "http://localhost:11434"

// ollamaCompleter talks to Ollama or LM Studio through the OpenAI-compatible
// chat completions endpoint. No API key is required by default.
type ollamaCompleter struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	Stream      bool          `json:"stream"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
}

// ollamaEndpoint normalizes a base URL: strips trailing /, /v1, and
// /v1/chat/completions before appending the completions path.
func ollamaEndpoint(baseURL string) string {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	baseURL = strings.TrimSuffix(baseURL, "/v1/chat/completions")
	baseURL = strings.TrimSuffix(baseURL, "/v1")
	return baseURL + "/v1/chat/completions"
}

func (o *ollamaCompleter) complete(ctx context.Context, c completion) (string, error) {
	messages := make([]chatMessage, 0, len(c.Turns)+1)
	if c.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: c.System})
	}
	for _, t := range c.Turns {
		role := "user"
		if t.Role == review.RoleModel {
			role = "assistant"
		}
		messages = append(messages, chatMessage{Role: role, Content: t.Text})
	}

	temp := c.Temperature
	payload, err := json.Marshal(chatRequest{
		Model:       o.model,
		Messages:    messages,
		MaxTokens:   maxOutputTokens,
		Temperature: &temp,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	httpResp, err := o.client.Do(httpReq)
	if err != nil {
		kind := KindTransient
		if errors.Is(err, context.Canceled) {
			kind = KindUnknown
		}
		return "", newError(ModelOllama, kind, fmt.Errorf("sending request: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", newError(ModelOllama, KindTransient, fmt.Errorf("reading response: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return "", newError(ModelOllama, kindForStatus(httpResp.StatusCode),
			fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, strings.TrimSpace(string(respBody))))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", newError(ModelOllama, KindMalformed, fmt.Errorf("parsing response: %w", err))
	}
	if len(result.Choices) == 0 {
		return "", newError(ModelOllama, KindMalformed, errors.New("no choices in response"))
	}
	return result.Choices[0].Message.Content, nil
}
