package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/dshills/critic/internal/review"
)

const bedrockAnthropicVersion = "bedrock-2023-05-31"

// invoker is the subset of the Bedrock runtime client in use.
type invoker interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// bedrockCompleter invokes Anthropic models hosted on AWS Bedrock.
// Credentials come from the default AWS chain.
type bedrockCompleter struct {
	region   string
	model    string
	endpoint string
	creds    aws.CredentialsProvider

	once   sync.Once
	client invoker
	err    error
}

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
	Temperature      float64          `json:"temperature"`
}

type bedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (b *bedrockCompleter) connect(ctx context.Context) (invoker, error) {
	b.once.Do(func() {
		if b.client != nil {
			return
		}
		opts := []func(*config.LoadOptions) error{config.WithRegion(b.region)}
		if b.creds != nil {
			opts = append(opts, config.WithCredentialsProvider(aws.NewCredentialsCache(b.creds)))
		}
		cfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			b.err = newError(ModelBedrock, KindConfig, fmt.Errorf("loading AWS config: %w", err))
			return
		}
		b.client = bedrockruntime.NewFromConfig(cfg, func(o *bedrockruntime.Options) {
			if b.endpoint != "" {
				o.BaseEndpoint = aws.String(b.endpoint)
			}
		})
	})
	return b.client, b.err
}

func (b *bedrockCompleter) complete(ctx context.Context, c completion) (string, error) {
	client, err := b.connect(ctx)
	if err != nil {
		return "", err
	}

	req := bedrockRequest{
		AnthropicVersion: bedrockAnthropicVersion,
		MaxTokens:        maxOutputTokens,
		System:           c.System,
		Temperature:      c.Temperature,
	}
	for _, t := range c.Turns {
		role := "user"
		if t.Role == review.RoleModel {
			role = "assistant"
		}
		req.Messages = append(req.Messages, bedrockMessage{Role: role, Content: t.Text})
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	out, err := client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.model),
		Body:        body,
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
	})
	if err != nil {
		return "", classifyBedrock(err)
	}

	var resp bedrockResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", newError(ModelBedrock, KindMalformed, fmt.Errorf("parsing response: %w", err))
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

func classifyBedrock(err error) error {
	var (
		throttled *types.ThrottlingException
		server    *types.InternalServerException
		timeout   *types.ModelTimeoutException
		denied    *types.AccessDeniedException
		invalid   *types.ValidationException
	)
	kind := KindUnknown
	switch {
	case errors.As(err, &throttled), errors.As(err, &server), errors.As(err, &timeout):
		kind = KindTransient
	case errors.As(err, &denied):
		kind = KindAuth
	case errors.As(err, &invalid):
		kind = KindConfig
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTransient
	}
	return newError(ModelBedrock, kind, err)
}
