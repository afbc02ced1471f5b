package backend

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dshills/critic/internal/review"
)

// claudeCompleter talks to the Anthropic Messages API.
type claudeCompleter struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client

	once   sync.Once
	client *anthropic.Client
}

func (a *claudeCompleter) connect() *anthropic.Client {
	a.once.Do(func() {
		opts := []option.RequestOption{
			option.WithAPIKey(a.apiKey),
			option.WithMaxRetries(0),
		}
		if a.baseURL != "" {
			opts = append(opts, option.WithBaseURL(a.baseURL))
		}
		if a.httpClient != nil {
			opts = append(opts, option.WithHTTPClient(a.httpClient))
		}
		client := anthropic.NewClient(opts...)
		a.client = &client
	})
	return a.client
}

func (a *claudeCompleter) complete(ctx context.Context, c completion) (string, error) {
	messages := make([]anthropic.MessageParam, 0, len(c.Turns))
	for _, t := range c.Turns {
		if t.Role == review.RoleModel {
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(t.Text)))
			continue
		}
		messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(t.Text)))
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   maxOutputTokens,
		Messages:    messages,
		Temperature: anthropic.Float(c.Temperature),
	}
	if c.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: c.System}}
	}

	msg, err := a.connect().Messages.New(ctx, params)
	if err != nil {
		return "", classifyClaude(err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}

func classifyClaude(err error) error {
	kind := KindUnknown
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		kind = kindForStatus(apiErr.StatusCode)
	} else if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTransient
	}
	return newError(ModelClaude, kind, err)
}
