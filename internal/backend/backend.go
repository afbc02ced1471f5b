package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/dshills/critic/internal/review"
)

// Model identifies a backend.
type Model string

const (
	ModelGemini  Model = "gemini"
	ModelClaude  Model = "claude"
	ModelChatGPT Model = "chatgpt"
	ModelOllama  Model = "ollama"
	ModelBedrock Model = "bedrock"
	ModelVertex  Model = "vertex"
)

// DefaultModel is the backend selected when none is requested.
const DefaultModel = ModelGemini

// ParseModel validates a backend identifier.
func ParseModel(s string) (Model, error) {
	m := Model(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case ModelGemini, ModelClaude, ModelChatGPT, ModelOllama, ModelBedrock, ModelVertex:
		return m, nil
	}
	return "", &UnknownBackendError{Model: Model(s)}
}

// Capability names an optional backend feature.
type Capability int

const (
	// CapLanguageDetection means DetectLanguage may return a result.
	CapLanguageDetection Capability = iota + 1
	// CapChat means StartChat may establish a session.
	CapChat
)

func (c Capability) String() string {
	switch c {
	case CapLanguageDetection:
		return "language-detection"
	case CapChat:
		return "chat"
	default:
		return fmt.Sprintf("capability(%d)", int(c))
	}
}

// Backend is the capability contract every AI provider satisfies.
type Backend interface {
	// Name returns the backend identifier.
	Name() Model
	// Supports reports whether an optional capability is available.
	Supports(Capability) bool
	// GetCodeReview reviews a single file.
	GetCodeReview(ctx context.Context, code, language string) (review.CodeReview, error)
	// GetBatchSummary writes one overall summary for several file reviews.
	GetBatchSummary(ctx context.Context, reviews map[string]review.CodeReview) (string, error)
	// DetectLanguage guesses the language of a snippet. ok is false when the
	// backend cannot tell.
	DetectLanguage(ctx context.Context, code string) (lang string, ok bool, err error)
	// StartChat opens a conversation seeded with the files and their review.
	// It returns a nil session and nil error when no session can be
	// established.
	StartChat(ctx context.Context, files []review.CodeFile, batch review.BatchCodeReview) (ChatSession, error)
}

// ChatSession is an established conversation with a backend.
type ChatSession interface {
	// ID returns the opaque session token.
	ID() string
	// Send delivers one user message and returns the model's reply.
	Send(ctx context.Context, message string) (string, error)
}

// DetectLanguage asks b for the language of code when b supports detection.
// It returns current when the capability is absent, detection fails, or the
// backend cannot tell. A backend that is not implemented is an error.
func DetectLanguage(ctx context.Context, b Backend, code, current string, logger *log.Logger) (string, error) {
	if b == nil || !b.Supports(CapLanguageDetection) || strings.TrimSpace(code) == "" {
		return current, nil
	}
	lang, ok, err := b.DetectLanguage(ctx, code)
	if err != nil {
		if IsNotImplemented(err) {
			return current, err
		}
		if logger != nil {
			logger.Debug("language detection failed", "backend", b.Name(), "err", err)
		}
		return current, nil
	}
	if !ok || !review.IsSupportedLanguage(lang) {
		return current, nil
	}
	return lang, nil
}
