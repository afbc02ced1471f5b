package backend

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/dshills/critic/internal/review"
)

// chatgptCompleter talks to the OpenAI Chat Completions API.
type chatgptCompleter struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client

	once   sync.Once
	client *openai.Client
}

func (o *chatgptCompleter) connect() *openai.Client {
	o.once.Do(func() {
		opts := []option.RequestOption{
			option.WithAPIKey(o.apiKey),
			option.WithMaxRetries(0),
		}
		if o.baseURL != "" {
			opts = append(opts, option.WithBaseURL(o.baseURL))
		}
		if o.httpClient != nil {
			opts = append(opts, option.WithHTTPClient(o.httpClient))
		}
		client := openai.NewClient(opts...)
		o.client = &client
	})
	return o.client
}

func (o *chatgptCompleter) complete(ctx context.Context, c completion) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(c.Turns)+1)
	if c.System != "" {
		messages = append(messages, openai.SystemMessage(c.System))
	}
	for _, t := range c.Turns {
		if t.Role == review.RoleModel {
			messages = append(messages, openai.AssistantMessage(t.Text))
			continue
		}
		messages = append(messages, openai.UserMessage(t.Text))
	}

	resp, err := o.connect().Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Messages:    messages,
		Temperature: openai.Float(c.Temperature),
		MaxTokens:   openai.Int(maxOutputTokens),
	})
	if err != nil {
		return "", classifyChatGPT(err)
	}
	if len(resp.Choices) == 0 {
		return "", newError(ModelChatGPT, KindMalformed, errors.New("no choices in response"))
	}
	return resp.Choices[0].Message.Content, nil
}

func classifyChatGPT(err error) error {
	kind := KindUnknown
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		kind = kindForStatus(apiErr.StatusCode)
	} else if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTransient
	}
	return newError(ModelChatGPT, kind, err)
}
