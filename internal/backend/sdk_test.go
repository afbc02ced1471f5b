package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/dshills/critic/internal/review"
)

var userTurn = []turn{{Role: review.RoleUser, Text: "hello"}}

func jsonServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClaude_Complete(t *testing.T) {
	server := jsonServer(t, http.StatusOK, `{
		"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-test",
		"content": [{"type": "text", "text": "reviewed"}],
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 5, "output_tokens": 2}
	}`)

	a := &claudeCompleter{apiKey: "k", model: "claude-test", baseURL: server.URL, httpClient: server.Client()}
	text, err := a.complete(context.Background(), completion{System: "sys", Turns: userTurn})
	if err != nil {
		t.Fatalf("complete error: %v", err)
	}
	if text != "reviewed" {
		t.Errorf("text = %q", text)
	}
}

func TestClaude_AuthError(t *testing.T) {
	server := jsonServer(t, http.StatusUnauthorized,
		`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)

	a := &claudeCompleter{apiKey: "bad", model: "claude-test", baseURL: server.URL, httpClient: server.Client()}
	_, err := a.complete(context.Background(), completion{Turns: userTurn})
	if !IsAuthError(err) {
		t.Errorf("expected auth error, got %v", err)
	}
}

func TestChatGPT_Complete(t *testing.T) {
	server := jsonServer(t, http.StatusOK, `{
		"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-test",
		"choices": [{"index": 0, "message": {"role": "assistant", "content": "reviewed"}, "finish_reason": "stop"}]
	}`)

	o := &chatgptCompleter{apiKey: "k", model: "gpt-test", baseURL: server.URL, httpClient: server.Client()}
	text, err := o.complete(context.Background(), completion{System: "sys", Turns: userTurn})
	if err != nil {
		t.Fatalf("complete error: %v", err)
	}
	if text != "reviewed" {
		t.Errorf("text = %q", text)
	}
}

func TestChatGPT_RateLimited(t *testing.T) {
	server := jsonServer(t, http.StatusTooManyRequests,
		`{"error":{"message":"slow down","type":"rate_limit","code":"rate_limit_exceeded"}}`)

	o := &chatgptCompleter{apiKey: "k", model: "gpt-test", baseURL: server.URL, httpClient: server.Client()}
	_, err := o.complete(context.Background(), completion{Turns: userTurn})
	if !IsRetryable(err) {
		t.Errorf("expected transient error, got %v", err)
	}
}

func TestGemini_Complete(t *testing.T) {
	server := jsonServer(t, http.StatusOK,
		`{"candidates":[{"content":{"role":"model","parts":[{"text":"re"},{"text":"viewed"}]}}]}`)

	g := &geminiCompleter{apiKey: "k", model: "gemini-test", baseURL: server.URL, httpClient: server.Client()}
	text, err := g.complete(context.Background(), completion{System: "sys", Turns: userTurn, Format: formatReview})
	if err != nil {
		t.Fatalf("complete error: %v", err)
	}
	if text != "reviewed" {
		t.Errorf("text = %q", text)
	}
}

func TestGemini_AuthError(t *testing.T) {
	server := jsonServer(t, http.StatusForbidden,
		`{"error":{"code":403,"message":"denied","status":"PERMISSION_DENIED"}}`)

	g := &geminiCompleter{apiKey: "bad", model: "gemini-test", baseURL: server.URL, httpClient: server.Client()}
	_, err := g.complete(context.Background(), completion{Turns: userTurn})
	if !IsAuthError(err) {
		t.Errorf("expected auth error, got %v", err)
	}
}

func TestReviewSchema(t *testing.T) {
	s := reviewSchema()
	items := s.Properties["feedback"].Items
	if len(items.Properties["category"].Enum) != len(review.Categories) {
		t.Error("category enum should list every category")
	}
	if len(items.Properties["severity"].Enum) != len(review.Severities) {
		t.Error("severity enum should list every severity")
	}
}

type fakeInvoker struct {
	body []byte
	in   *bedrockruntime.InvokeModelInput
	err  error
}

func (f *fakeInvoker) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: f.body}, nil
}

func TestBedrock_Complete(t *testing.T) {
	inv := &fakeInvoker{body: []byte(`{"content":[{"type":"text","text":"reviewed"}]}`)}
	b := &bedrockCompleter{region: "us-east-1", model: "anthropic.test", client: inv}

	text, err := b.complete(context.Background(), completion{
		System: "sys",
		Turns:  []turn{{Role: review.RoleUser, Text: "q"}, {Role: review.RoleModel, Text: "a"}, {Role: review.RoleUser, Text: "q2"}},
	})
	if err != nil {
		t.Fatalf("complete error: %v", err)
	}
	if text != "reviewed" {
		t.Errorf("text = %q", text)
	}
	if *inv.in.ModelId != "anthropic.test" {
		t.Errorf("ModelId = %q", *inv.in.ModelId)
	}
	var req bedrockRequest
	if err := json.Unmarshal(inv.in.Body, &req); err != nil {
		t.Fatalf("request body: %v", err)
	}
	if req.AnthropicVersion != bedrockAnthropicVersion || req.System != "sys" || len(req.Messages) != 3 {
		t.Errorf("request = %+v", req)
	}
	if req.Messages[1].Role != "assistant" {
		t.Errorf("model turn role = %q", req.Messages[1].Role)
	}
}

func TestBedrock_Errors(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{&types.ThrottlingException{Message: strPtr("slow")}, KindTransient},
		{&types.AccessDeniedException{Message: strPtr("no")}, KindAuth},
		{&types.ValidationException{Message: strPtr("bad model")}, KindConfig},
		{errors.New("boom"), KindUnknown},
	}
	for _, tt := range tests {
		b := &bedrockCompleter{client: &fakeInvoker{err: tt.err}}
		_, err := b.complete(context.Background(), completion{Turns: userTurn})
		if KindOf(err) != tt.want {
			t.Errorf("%T: kind = %v, want %v", tt.err, KindOf(err), tt.want)
		}
		if !strings.HasPrefix(err.Error(), "bedrock") {
			t.Errorf("error should name the backend: %v", err)
		}
	}
}

func strPtr(s string) *string { return &s }
