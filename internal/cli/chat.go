package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dshills/critic/internal/app"
	"github.com/dshills/critic/internal/chat"
	"github.com/dshills/critic/internal/config"
)

const chatPrompt = "critic> "

var chatCmd = &cobra.Command{
	Use:   "chat [history-id]",
	Short: "Chat about a review",
	Long: "Start an interactive chat about the most recent review, or the review with " +
		"the given history id. Type /exit or press Ctrl-D to leave.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(nil)
		if err != nil {
			return err
		}
		s, err := openSession(cmd, cfg)
		if err != nil {
			fail(cmd, err)
			return nil
		}
		defer s.Close()

		ctx, cancel := signalContext()
		defer cancel()

		id := ""
		if len(args) == 1 {
			id = args[0]
		} else {
			items := s.app.History(ctx)
			if len(items) == 0 {
				fail(cmd, usageError("no reviews in history; run 'critic review' first"))
				return nil
			}
			id = items[0].ID
		}

		res, err := s.app.LoadHistory(ctx, id)
		if err != nil {
			if errors.Is(err, app.ErrNotFound) {
				err = usageError("%v", err)
			}
			fail(cmd, err)
			return nil
		}
		if res.ChatErr != nil {
			fail(cmd, res.ChatErr)
			return nil
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "Chatting about review %s (%d files) with %s. Type /exit to leave.\n",
			res.Item.ID, len(res.Item.Files), s.app.Model())
		runChat(cmd, s.app)
		return nil
	},
}

// lineReader reads one line of chat input.
type lineReader interface {
	Prompt(prompt string) (string, error)
	Close() error
}

// linerReader adds line editing and input history on a terminal.
type linerReader struct {
	state       *liner.State
	historyFile string
}

func newLinerReader() *linerReader {
	st := liner.NewLiner()
	st.SetCtrlCAborts(true)
	r := &linerReader{state: st}
	if dir, err := config.ConfigDir(); err == nil {
		r.historyFile = filepath.Join(dir, "chat_history")
		if f, err := os.Open(r.historyFile); err == nil {
			_, _ = st.ReadHistory(f)
			f.Close()
		}
	}
	return r
}

func (r *linerReader) Prompt(prompt string) (string, error) {
	line, err := r.state.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(line) != "" {
		r.state.AppendHistory(line)
	}
	return line, nil
}

func (r *linerReader) Close() error {
	if r.historyFile != "" {
		if err := os.MkdirAll(filepath.Dir(r.historyFile), 0o700); err == nil {
			if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
				_, _ = r.state.WriteHistory(f)
				f.Close()
			}
		}
	}
	return r.state.Close()
}

// scanReader reads lines from a non-interactive input.
type scanReader struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func (r *scanReader) Prompt(prompt string) (string, error) {
	fmt.Fprint(r.out, prompt)
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

func (r *scanReader) Close() error { return nil }

func newLineReader(cmd *cobra.Command) lineReader {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) && isTerminal(cmd.OutOrStdout()) {
		return newLinerReader()
	}
	return &scanReader{scanner: bufio.NewScanner(in), out: cmd.OutOrStdout()}
}

// replyRenderer formats model replies for the terminal.
type replyRenderer func(string) string

func newReplyRenderer(w io.Writer) replyRenderer {
	if !isTerminal(w) {
		return func(s string) string { return s + "\n" }
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return func(s string) string { return s + "\n" }
	}
	return func(s string) string {
		out, err := r.Render(s)
		if err != nil {
			return s + "\n"
		}
		return out
	}
}

// runChat reads messages until EOF or /exit and prints each reply.
func runChat(cmd *cobra.Command, a *app.App) {
	out := cmd.OutOrStdout()
	render := newReplyRenderer(out)
	input := newLineReader(cmd)
	defer input.Close()

	ctx, cancel := signalContext()
	defer cancel()

	for {
		line, err := input.Prompt(chatPrompt)
		if err != nil {
			fmt.Fprintln(out)
			return
		}
		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return
		}

		msg, err := a.Send(ctx, line)
		switch {
		case err == nil:
			fmt.Fprint(out, render(msg.Content))
		case errors.Is(err, chat.ErrEmptyMessage):
			continue
		case msg.Content != "":
			fmt.Fprintln(cmd.ErrOrStderr(), msg.Content)
		default:
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			if ctx.Err() != nil {
				return
			}
		}
	}
}
