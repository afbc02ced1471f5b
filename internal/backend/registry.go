package backend

import (
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/dshills/critic/internal/config"
	"github.com/dshills/critic/internal/review"
)

// Info describes a registered backend for listings.
type Info struct {
	Model      Model  `json:"id"`
	Label      string `json:"label"`
	Configured bool   `json:"configured"`
	Detail     string `json:"detail,omitempty"`
}

var labels = map[Model]string{
	ModelGemini:  "Gemini",
	ModelClaude:  "Claude",
	ModelChatGPT: "ChatGPT",
	ModelOllama:  "Ollama",
	ModelBedrock: "Bedrock",
	ModelVertex:  "Vertex AI",
}

// Label returns the display name for m.
func Label(m Model) string {
	if l, ok := labels[m]; ok {
		return l
	}
	return string(m)
}

// Option configures backends built by NewRegistry.
type Option func(*options)

type options struct {
	logger     *log.Logger
	httpClient *http.Client
	guidelines *review.Guidelines
	getenv     func(string) string
	retryBase  time.Duration
	awsCreds   aws.CredentialsProvider
}

// WithLogger sets the logger used by every backend.
func WithLogger(l *log.Logger) Option { return func(o *options) { o.logger = l } }

// WithHTTPClient overrides the HTTP client used by the HTTP based backends.
func WithHTTPClient(c *http.Client) Option { return func(o *options) { o.httpClient = c } }

// WithGuidelines appends a guidelines pack to every review prompt.
func WithGuidelines(g *review.Guidelines) Option { return func(o *options) { o.guidelines = g } }

// WithEnv replaces the environment lookup used for API keys.
func WithEnv(getenv func(string) string) Option { return func(o *options) { o.getenv = getenv } }

// WithRetryBackoff sets the first retry wait. Later waits double.
func WithRetryBackoff(d time.Duration) Option { return func(o *options) { o.retryBase = d } }

// WithAWSCredentials overrides the AWS credential chain for Bedrock.
func WithAWSCredentials(p aws.CredentialsProvider) Option {
	return func(o *options) { o.awsCreds = p }
}

// Registry maps backend identifiers to implementations. Lookups of
// unregistered identifiers fail.
type Registry struct {
	mu       sync.RWMutex
	backends map[Model]Backend
}

// NewRegistry builds every known backend from cfg. Missing credentials do
// not fail construction; the affected backend reports a configuration
// error on each call instead.
func NewRegistry(cfg config.BackendsConfig, opts ...Option) *Registry {
	o := options{
		logger:    log.Default(),
		getenv:    os.Getenv,
		retryBase: time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	}

	r := &Registry{}
	r.Register(newService(ModelGemini, cfg, o, func(key string) completer {
		if key == "" {
			key = o.getenv("GOOGLE_API_KEY")
		}
		return &geminiCompleter{apiKey: key, model: cfg.Gemini.Model, baseURL: cfg.Gemini.BaseURL, httpClient: o.httpClient}
	}, cfg.Gemini, true))
	r.Register(newService(ModelClaude, cfg, o, func(key string) completer {
		return &claudeCompleter{apiKey: key, model: cfg.Claude.Model, baseURL: cfg.Claude.BaseURL, httpClient: o.httpClient}
	}, cfg.Claude, true))
	r.Register(newService(ModelChatGPT, cfg, o, func(key string) completer {
		return &chatgptCompleter{apiKey: key, model: cfg.ChatGPT.Model, baseURL: cfg.ChatGPT.BaseURL, httpClient: o.httpClient}
	}, cfg.ChatGPT, true))
	r.Register(newService(ModelOllama, cfg, o, func(key string) completer {
		return &ollamaCompleter{apiKey: key, model: cfg.Ollama.Model, endpoint: ollamaEndpoint(cfg.Ollama.BaseURL), client: httpClient}
	}, cfg.Ollama, false))
	r.Register(newService(ModelBedrock, cfg, o, func(string) completer {
		return &bedrockCompleter{region: cfg.Bedrock.Region, model: cfg.Bedrock.Model, endpoint: cfg.Bedrock.BaseURL, creds: o.awsCreds}
	}, cfg.Bedrock, false))
	r.Register(NewUnimplemented(ModelVertex))

	if s, ok := r.backends[ModelOllama].(*Service); ok {
		s.detection = true
		s.detect = detectWithLexer
	}
	if s, ok := r.backends[ModelBedrock].(*Service); ok {
		s.detection = false
		if cfg.Bedrock.Region == "" && s.configErr == nil {
			s.configErr = configError(ModelBedrock, "no AWS region configured")
		}
	}
	return r
}

func newService(m Model, cfg config.BackendsConfig, o options, build func(apiKey string) completer, bc config.BackendConfig, keyRequired bool) *Service {
	s := &Service{
		model:      m,
		guidelines: o.guidelines,
		logger:     o.logger,
		timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
		maxRetries: cfg.MaxRetries,
		retryBase:  o.retryBase,
		chatBudget: cfg.ChatContextBytes,
		detection:  true,
	}
	if s.chatBudget == 0 {
		s.chatBudget = defaultChatSeedSize
	}
	if cfg.RequestsPerMinute > 0 {
		s.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	if bc.Model == "" {
		s.configErr = configError(m, "no model configured")
	}

	var key string
	if bc.APIKeyEnv != "" {
		key = o.getenv(bc.APIKeyEnv)
	}
	s.completer = build(key)
	if keyRequired && s.configErr == nil && apiKey(s.completer) == "" {
		if bc.APIKeyEnv == "" {
			s.configErr = configError(m, "no API key environment variable configured")
		} else {
			s.configErr = configError(m, "%s environment variable is not set", bc.APIKeyEnv)
		}
	}
	return s
}

func apiKey(c completer) string {
	switch c := c.(type) {
	case *geminiCompleter:
		return c.apiKey
	case *claudeCompleter:
		return c.apiKey
	case *chatgptCompleter:
		return c.apiKey
	case *ollamaCompleter:
		return c.apiKey
	}
	return ""
}

// Register adds or replaces a backend.
func (r *Registry) Register(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.backends == nil {
		r.backends = make(map[Model]Backend)
	}
	r.backends[b.Name()] = b
}

// Get returns the backend registered for m.
func (r *Registry) Get(m Model) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[m]
	if !ok {
		return nil, &UnknownBackendError{Model: m}
	}
	return b, nil
}

// Models returns the registered identifiers in a stable order.
func (r *Registry) Models() []Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Model, 0, len(r.backends))
	for m := range r.backends {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return order(out[i]) < order(out[j]) })
	return out
}

var modelOrder = []Model{ModelGemini, ModelClaude, ModelChatGPT, ModelOllama, ModelBedrock, ModelVertex}

func order(m Model) string {
	for i, o := range modelOrder {
		if o == m {
			return fmt.Sprintf("%02d", i)
		}
	}
	return "99" + string(m)
}

type readier interface{ Ready() error }

// Describe reports every registered backend and whether it can be used.
func (r *Registry) Describe() []Info {
	models := r.Models()
	out := make([]Info, 0, len(models))
	for _, m := range models {
		b, _ := r.Get(m)
		info := Info{Model: m, Label: Label(m), Configured: true}
		if rd, ok := b.(readier); ok {
			if err := rd.Ready(); err != nil {
				info.Configured = false
				info.Detail = err.Error()
			}
		}
		out = append(out, info)
	}
	return out
}
