package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/dshills/critic/internal/review"
)

// geminiCompleter talks to the Gemini API through the genai SDK. The client
// is created on first use.
type geminiCompleter struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client

	once   sync.Once
	client *genai.Client
	err    error
}

func (g *geminiCompleter) connect(ctx context.Context) (*genai.Client, error) {
	g.once.Do(func() {
		cfg := &genai.ClientConfig{
			APIKey:     g.apiKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: g.httpClient,
		}
		if g.baseURL != "" {
			cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL}
		}
		g.client, g.err = genai.NewClient(ctx, cfg)
		if g.err != nil {
			g.err = newError(ModelGemini, KindConfig, fmt.Errorf("creating client: %w", g.err))
		}
	})
	return g.client, g.err
}

func (g *geminiCompleter) complete(ctx context.Context, c completion) (string, error) {
	client, err := g.connect(ctx)
	if err != nil {
		return "", err
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(c.Temperature)),
		MaxOutputTokens: maxOutputTokens,
	}
	if c.System != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: c.System}},
		}
	}
	if c.Format == formatReview {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = reviewSchema()
	}

	contents := make([]*genai.Content, 0, len(c.Turns))
	for _, t := range c.Turns {
		role := "user"
		if t.Role == review.RoleModel {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: t.Text}},
		})
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", classifyGemini(err)
	}

	var b strings.Builder
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			b.WriteString(part.Text)
		}
	}
	return b.String(), nil
}

func classifyGemini(err error) error {
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	}
	kind := kindForStatus(code)
	if kind == KindUnknown && errors.Is(err, context.DeadlineExceeded) {
		kind = KindTransient
	}
	return newError(ModelGemini, kind, err)
}

// reviewSchema constrains Gemini review output to the CodeReview shape.
func reviewSchema() *genai.Schema {
	categories := make([]string, 0, len(review.Categories))
	for _, c := range review.Categories {
		categories = append(categories, string(c))
	}
	severities := make([]string, 0, len(review.Severities))
	for _, s := range review.Severities {
		severities = append(severities, string(s))
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"overallSummary": {Type: genai.TypeString},
			"feedback": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"category":    {Type: genai.TypeString, Enum: categories},
						"severity":    {Type: genai.TypeString, Enum: severities},
						"line":        {Type: genai.TypeInteger},
						"description": {Type: genai.TypeString},
						"suggestion":  {Type: genai.TypeString},
					},
					Required: []string{"category", "severity", "line", "description"},
				},
			},
		},
		Required: []string{"overallSummary", "feedback"},
	}
}
