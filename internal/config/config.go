package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the critic configuration.
type Config struct {
	Format         string         `json:"format" mapstructure:"format"`
	FailOn         string         `json:"failOn" mapstructure:"failOn"`
	MaxFileBytes   int            `json:"maxFileBytes" mapstructure:"maxFileBytes"`
	MaxChatInput   int            `json:"maxChatInput" mapstructure:"maxChatInput"`
	Include        []string       `json:"include" mapstructure:"include"`
	Exclude        []string       `json:"exclude" mapstructure:"exclude"`
	GuidelinesFile string         `json:"guidelinesFile" mapstructure:"guidelinesFile"`
	Privacy        PrivacyConfig  `json:"privacy" mapstructure:"privacy"`
	History        HistoryConfig  `json:"history" mapstructure:"history"`
	Backends       BackendsConfig `json:"backends" mapstructure:"backends"`
	Server         ServerConfig   `json:"server" mapstructure:"server"`
}

// PrivacyConfig controls redaction of file contents before review.
type PrivacyConfig struct {
	RedactSecrets bool     `json:"redactSecrets" mapstructure:"redactSecrets"`
	RedactPaths   []string `json:"redactPaths" mapstructure:"redactPaths"`
}

// HistoryConfig controls the encrypted review history.
type HistoryConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Storage string `json:"storage" mapstructure:"storage"`
	Dir     string `json:"dir" mapstructure:"dir"`
	KeyMode string `json:"keyMode" mapstructure:"keyMode"`
}

// BackendsConfig holds adapter policy shared by all backends plus the
// per-backend settings.
type BackendsConfig struct {
	TimeoutSeconds    int           `json:"timeoutSeconds" mapstructure:"timeoutSeconds"`
	MaxRetries        int           `json:"maxRetries" mapstructure:"maxRetries"`
	RequestsPerMinute int           `json:"requestsPerMinute" mapstructure:"requestsPerMinute"`
	ChatContextBytes  int           `json:"chatContextBytes" mapstructure:"chatContextBytes"`
	Gemini            BackendConfig `json:"gemini" mapstructure:"gemini"`
	Claude            BackendConfig `json:"claude" mapstructure:"claude"`
	ChatGPT           BackendConfig `json:"chatgpt" mapstructure:"chatgpt"`
	Ollama            BackendConfig `json:"ollama" mapstructure:"ollama"`
	Bedrock           BackendConfig `json:"bedrock" mapstructure:"bedrock"`
}

// BackendConfig configures one backend.
type BackendConfig struct {
	Model     string `json:"model" mapstructure:"model"`
	BaseURL   string `json:"baseURL" mapstructure:"baseURL"`
	Region    string `json:"region" mapstructure:"region"`
	APIKeyEnv string `json:"apiKeyEnv" mapstructure:"apiKeyEnv"`
}

// ServerConfig configures the local HTTP API.
type ServerConfig struct {
	Addr string `json:"addr" mapstructure:"addr"`
}

// Valid option values.
var (
	Formats      = []string{"text", "json", "markdown", "sarif"}
	StorageKinds = []string{"file", "sqlite"}
	KeyModes     = []string{"session", "passphrase"}
	FailOnLevels = []string{"none", "info", "low", "medium", "high", "critical"}
)

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Format:       "text",
		FailOn:       "none",
		MaxFileBytes: 1 << 20,
		MaxChatInput: 10000,
		Include:      []string{"**/*"},
		Exclude:      []string{"vendor/**", "**/node_modules/**", "**/dist/**", "**/.git/**"},
		Privacy: PrivacyConfig{
			RedactSecrets: true,
			RedactPaths:   []string{"**/.env", "**/*secrets*"},
		},
		History: HistoryConfig{
			Enabled: true,
			Storage: "file",
			KeyMode: "session",
		},
		Backends: BackendsConfig{
			TimeoutSeconds:    120,
			MaxRetries:        2,
			RequestsPerMinute: 0,
			ChatContextBytes:  2 << 20,
			Gemini:            BackendConfig{Model: "gemini-2.5-flash", APIKeyEnv: "GEMINI_API_KEY"},
			Claude:            BackendConfig{Model: "claude-sonnet-4-20250514", APIKeyEnv: "ANTHROPIC_API_KEY"},
			ChatGPT:           BackendConfig{Model: "gpt-4o", APIKeyEnv: "OPENAI_API_KEY"},
			Ollama:            BackendConfig{Model: "llama3", BaseURL: "http://localhost:11434", APIKeyEnv: "CRITIC_OLLAMA_API_KEY"},
			Bedrock:           BackendConfig{Model: "anthropic.claude-3-5-sonnet-20240620-v1:0", Region: "us-east-1"},
		},
		Server: ServerConfig{Addr: "127.0.0.1:7420"},
	}
}

// envBindings maps config keys onto their environment variables.
var envBindings = map[string]string{
	"format":                     "CRITIC_FORMAT",
	"failOn":                     "CRITIC_FAIL_ON",
	"maxFileBytes":               "CRITIC_MAX_FILE_BYTES",
	"maxChatInput":               "CRITIC_MAX_CHAT_INPUT",
	"guidelinesFile":             "CRITIC_GUIDELINES_FILE",
	"history.enabled":            "CRITIC_HISTORY_ENABLED",
	"history.storage":            "CRITIC_HISTORY_STORAGE",
	"history.dir":                "CRITIC_HISTORY_DIR",
	"history.keyMode":            "CRITIC_HISTORY_KEY_MODE",
	"backends.timeoutSeconds":    "CRITIC_TIMEOUT_SECONDS",
	"backends.maxRetries":        "CRITIC_MAX_RETRIES",
	"backends.requestsPerMinute": "CRITIC_REQUESTS_PER_MINUTE",
	"backends.gemini.model":      "CRITIC_GEMINI_MODEL",
	"backends.claude.model":      "CRITIC_CLAUDE_MODEL",
	"backends.chatgpt.model":     "CRITIC_CHATGPT_MODEL",
	"backends.chatgpt.baseURL":   "CRITIC_CHATGPT_BASE_URL",
	"backends.ollama.model":      "CRITIC_OLLAMA_MODEL",
	"backends.ollama.baseURL":    "OLLAMA_HOST",
	"backends.bedrock.model":     "CRITIC_BEDROCK_MODEL",
	"backends.bedrock.region":    "AWS_REGION",
	"server.addr":                "CRITIC_SERVER_ADDR",
}

// ConfigDir returns the platform-appropriate config directory for critic.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "critic"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "critic"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "critic"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "critic"), nil
	default:
		return filepath.Join(home, ".config", "critic"), nil
	}
}

// ConfigPath returns the full path to the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// DataDir returns the directory holding persisted history, honouring
// history.dir when set.
func DataDir(cfg Config) (string, error) {
	if cfg.History.Dir != "" {
		return cfg.History.Dir, nil
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "critic"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "critic", "data"), nil
	case "windows":
		if local := os.Getenv("LOCALAPPDATA"); local != "" {
			return filepath.Join(local, "critic"), nil
		}
		return filepath.Join(home, "AppData", "Local", "critic"), nil
	default:
		return filepath.Join(home, ".local", "share", "critic"), nil
	}
}

// RuntimeDir returns the per-login-session directory used for the session
// key. It is cleared by the OS when the user logs out.
func RuntimeDir() string {
	if xdg := os.Getenv("XDG_RUNTIME_DIR"); xdg != "" {
		return filepath.Join(xdg, "critic")
	}
	return filepath.Join(os.TempDir(), "critic-"+strconv.Itoa(os.Getuid()))
}

// LoadFile loads config from the config file. Returns Default() and nil
// error if the file doesn't exist.
func LoadFile() (Config, error) {
	v, err := newViper()
	if err != nil {
		return Config{}, err
	}
	return decode(v)
}

// Save writes the config to the config file.
func Save(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Load builds the effective config by merging: defaults <- file <- env <- overrides.
// The overrides map comes from CLI flags (only non-zero values should be set).
func Load(overrides map[string]string) (Config, error) {
	v, err := newViper()
	if err != nil {
		return Config{}, err
	}
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("binding %s: %w", env, err)
		}
	}
	for key, value := range overrides {
		if value != "" {
			v.Set(key, value)
		}
	}
	cfg, err := decode(v)
	if err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func newViper() (*viper.Viper, error) {
	v := viper.New()
	if err := setDefaults(v, Default()); err != nil {
		return nil, err
	}

	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return v, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return v, nil
}

// setDefaults registers every leaf of cfg as a viper default so that env
// bindings and overrides apply to nested keys.
func setDefaults(v *viper.Viper, cfg Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling defaults: %w", err)
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("decoding defaults: %w", err)
	}
	walkDefaults(v, "", tree)
	return nil
}

func walkDefaults(v *viper.Viper, prefix string, tree map[string]any) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			walkDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// Validate reports the first invalid value in cfg.
func Validate(cfg Config) error {
	if !oneOf(cfg.Format, Formats) {
		return fmt.Errorf("invalid format %q (valid: %s)", cfg.Format, strings.Join(Formats, ", "))
	}
	if !oneOf(strings.ToLower(cfg.FailOn), FailOnLevels) {
		return fmt.Errorf("invalid failOn %q (valid: %s)", cfg.FailOn, strings.Join(FailOnLevels, ", "))
	}
	if !oneOf(cfg.History.Storage, StorageKinds) {
		return fmt.Errorf("invalid history.storage %q (valid: %s)", cfg.History.Storage, strings.Join(StorageKinds, ", "))
	}
	if !oneOf(cfg.History.KeyMode, KeyModes) {
		return fmt.Errorf("invalid history.keyMode %q (valid: %s)", cfg.History.KeyMode, strings.Join(KeyModes, ", "))
	}
	if cfg.MaxFileBytes <= 0 {
		return fmt.Errorf("maxFileBytes must be positive")
	}
	if cfg.Backends.TimeoutSeconds <= 0 {
		return fmt.Errorf("backends.timeoutSeconds must be positive")
	}
	return nil
}

func oneOf(v string, valid []string) bool {
	for _, s := range valid {
		if v == s {
			return true
		}
	}
	return false
}

// SetField sets a single config field by key name. Returns error if key is unknown.
func SetField(cfg *Config, key, value string) error {
	if strings.HasPrefix(key, "backends.") {
		return setBackendField(&cfg.Backends, strings.TrimPrefix(key, "backends."), value)
	}
	switch key {
	case "format":
		cfg.Format = value
	case "failOn":
		cfg.FailOn = value
	case "maxFileBytes":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("maxFileBytes must be an integer: %w", err)
		}
		cfg.MaxFileBytes = n
	case "maxChatInput":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("maxChatInput must be an integer: %w", err)
		}
		cfg.MaxChatInput = n
	case "guidelinesFile":
		cfg.GuidelinesFile = value
	case "privacy.redactSecrets":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("privacy.redactSecrets must be a boolean: %w", err)
		}
		cfg.Privacy.RedactSecrets = b
	case "history.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("history.enabled must be a boolean: %w", err)
		}
		cfg.History.Enabled = b
	case "history.storage":
		cfg.History.Storage = value
	case "history.dir":
		cfg.History.Dir = value
	case "history.keyMode":
		cfg.History.KeyMode = value
	case "server.addr":
		cfg.Server.Addr = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func setBackendField(b *BackendsConfig, key, value string) error {
	intField := func(dst *int) error {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("backends.%s must be an integer: %w", key, err)
		}
		*dst = n
		return nil
	}
	switch key {
	case "timeoutSeconds":
		return intField(&b.TimeoutSeconds)
	case "maxRetries":
		return intField(&b.MaxRetries)
	case "requestsPerMinute":
		return intField(&b.RequestsPerMinute)
	case "chatContextBytes":
		return intField(&b.ChatContextBytes)
	}

	name, field, ok := strings.Cut(key, ".")
	if !ok {
		return fmt.Errorf("unknown config key: backends.%s", key)
	}
	var bc *BackendConfig
	switch name {
	case "gemini":
		bc = &b.Gemini
	case "claude":
		bc = &b.Claude
	case "chatgpt":
		bc = &b.ChatGPT
	case "ollama":
		bc = &b.Ollama
	case "bedrock":
		bc = &b.Bedrock
	default:
		return fmt.Errorf("unknown backend in config key: backends.%s", key)
	}
	switch field {
	case "model":
		bc.Model = value
	case "baseURL":
		bc.BaseURL = value
	case "region":
		bc.Region = value
	case "apiKeyEnv":
		bc.APIKeyEnv = value
	default:
		return fmt.Errorf("unknown config key: backends.%s", key)
	}
	return nil
}
