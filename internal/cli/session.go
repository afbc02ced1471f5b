package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dshills/critic/internal/app"
	"github.com/dshills/critic/internal/backend"
	"github.com/dshills/critic/internal/config"
	"github.com/dshills/critic/internal/history"
	"github.com/dshills/critic/internal/ingest"
	"github.com/dshills/critic/internal/review"
	"github.com/dshills/critic/internal/storage"
)

// session is everything a command needs to review, chat, and browse
// history.
type session struct {
	cfg    config.Config
	logger *log.Logger
	app    *app.App
	loader *ingest.Loader
	blobs  storage.Store
}

func (s *session) Close() {
	if err := s.blobs.Close(); err != nil {
		s.logger.Warn("closing storage failed", "err", err)
	}
}

// newRegistry builds the backend registry. Tests replace it to avoid
// network calls.
var newRegistry = func(cfg config.Config, logger *log.Logger, g *review.Guidelines) *backend.Registry {
	return backend.NewRegistry(cfg.Backends,
		backend.WithLogger(logger),
		backend.WithGuidelines(g),
	)
}

// passphraseEnv supplies the history passphrase non-interactively.
const passphraseEnv = "CRITIC_PASSPHRASE"

// selectedModel resolves the backend from --model, then CRITIC_MODEL, then
// the default. The choice is never persisted.
func selectedModel() (backend.Model, error) {
	name := flagModel
	if name == "" {
		name = os.Getenv("CRITIC_MODEL")
	}
	if name == "" {
		return backend.DefaultModel, nil
	}
	return backend.ParseModel(name)
}

// openRegistry loads guidelines and builds the registry for cfg.
func openRegistry(cfg config.Config, logger *log.Logger) (*backend.Registry, error) {
	g, err := review.LoadGuidelines(cfg.GuidelinesFile)
	if err != nil {
		return nil, usageError("%v", err)
	}
	return newRegistry(cfg, logger, g), nil
}

// openSession builds the App for a command from cfg.
func openSession(cmd *cobra.Command, cfg config.Config) (*session, error) {
	logger := newLogger(cmd.ErrOrStderr())

	model, err := selectedModel()
	if err != nil {
		return nil, err
	}
	reg, err := openRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}

	blobs, err := storage.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening history storage: %w", err)
	}
	keys, err := keySource(cmd, cfg, blobs)
	if err != nil {
		blobs.Close()
		return nil, err
	}
	store := history.NewStore(blobs, keys, history.WithLogger(logger))

	a, err := app.New(reg, store,
		app.WithLogger(logger),
		app.WithModel(model),
		app.WithMaxChatInput(cfg.MaxChatInput),
	)
	if err != nil {
		blobs.Close()
		return nil, err
	}

	return &session{
		cfg:    cfg,
		logger: logger,
		app:    a,
		loader: newLoader(cfg, logger),
		blobs:  blobs,
	}, nil
}

func newLoader(cfg config.Config, logger *log.Logger) *ingest.Loader {
	return ingest.NewLoader(ingest.Options{
		MaxFileBytes:  int64(cfg.MaxFileBytes),
		Include:       cfg.Include,
		Exclude:       cfg.Exclude,
		RedactSecrets: cfg.Privacy.RedactSecrets,
		RedactPaths:   cfg.Privacy.RedactPaths,
		Logger:        logger,
	})
}

// keySource returns the history key source selected by history.keyMode.
func keySource(cmd *cobra.Command, cfg config.Config, blobs storage.Store) (history.KeySource, error) {
	if !cfg.History.Enabled {
		return history.NewSessionKeys(&history.MemoryKeyCache{}), nil
	}
	switch cfg.History.KeyMode {
	case "passphrase":
		pass, err := readPassphrase(cmd)
		if err != nil {
			return nil, err
		}
		return history.NewPassphraseKeys(blobs, pass), nil
	default:
		return history.NewSessionKeys(history.NewRuntimeKeyCache(config.RuntimeDir())), nil
	}
}

// readPassphrase takes the passphrase from the environment, or prompts for
// it when stdin is a terminal.
func readPassphrase(cmd *cobra.Command) (string, error) {
	if p := os.Getenv(passphraseEnv); p != "" {
		return p, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", usageError("history.keyMode is passphrase: set %s or run interactively", passphraseEnv)
	}
	fmt.Fprint(cmd.ErrOrStderr(), "History passphrase: ")
	data, err := term.ReadPassword(fd)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	if len(data) == 0 {
		return "", history.ErrEmptyPassphrase
	}
	return string(data), nil
}

// signalContext is cancelled on interrupt or termination.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// readSource reads a file, or stdin when path is "-" or empty.
func readSource(cmd *cobra.Command, path string) (name, content string, err error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(bufio.NewReader(cmd.InOrStdin()))
		if err != nil {
			return "", "", fmt.Errorf("reading stdin: %w", err)
		}
		return "", string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", "", usageError("%v", err)
		}
		return "", "", err
	}
	return path, string(data), nil
}

func splitComma(s string) []string {
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
