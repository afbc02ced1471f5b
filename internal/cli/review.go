package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dshills/critic/internal/app"
	"github.com/dshills/critic/internal/config"
	"github.com/dshills/critic/internal/ingest"
	"github.com/dshills/critic/internal/output"
	"github.com/dshills/critic/internal/review"
)

// Review flags
var (
	flagFormat     string
	flagOut        string
	flagFailOn     string
	flagInclude    string
	flagExclude    string
	flagGuidelines string
	flagMaxBytes   int
	flagStdin      bool
	flagName       string
	flagLang       string
	flagStaged     bool
	flagUnstaged   bool
	flagChat       bool
	flagNoHistory  bool
	flagNoRedact   bool
)

func buildOverrides() map[string]string {
	m := make(map[string]string)
	if flagFormat != "" {
		m["format"] = flagFormat
	}
	if flagFailOn != "" {
		m["failOn"] = flagFailOn
	}
	if flagGuidelines != "" {
		m["guidelinesFile"] = flagGuidelines
	}
	if flagMaxBytes > 0 {
		m["maxFileBytes"] = strconv.Itoa(flagMaxBytes)
	}
	if flagNoHistory {
		m["history.enabled"] = "false"
	}
	return m
}

// applyFilters layers --include/--exclude over the configured patterns.
func applyFilters(cfg *config.Config) {
	if flagInclude != "" {
		cfg.Include = splitComma(flagInclude)
	}
	if flagExclude != "" {
		cfg.Exclude = append(cfg.Exclude, splitComma(flagExclude)...)
	}
	if flagNoRedact {
		cfg.Privacy.RedactSecrets = false
	}
}

var reviewCmd = &cobra.Command{
	Use:   "review [paths...]",
	Short: "Review source files",
	Long: "Review files and directories with the selected backend. Directories are " +
		"expanded recursively. Use --stdin to review piped content, or --staged/--unstaged " +
		"to review the files git reports as changed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagStdin && (flagStaged || flagUnstaged || len(args) > 0) {
			return fmt.Errorf("--stdin cannot be combined with paths or git modes")
		}
		if (flagStaged || flagUnstaged) && len(args) > 0 {
			return fmt.Errorf("--staged and --unstaged do not take paths")
		}

		cfg, err := config.Load(buildOverrides())
		if err != nil {
			return err
		}
		applyFilters(&cfg)
		if flagNoRedact {
			fmt.Fprintln(cmd.ErrOrStderr(), "WARNING: secret redaction is disabled")
		}

		s, err := openSession(cmd, cfg)
		if err != nil {
			fail(cmd, err)
			return nil
		}
		defer s.Close()

		runReview(cmd, s, args)
		return nil
	},
}

func runReview(cmd *cobra.Command, s *session, args []string) {
	ctx, cancel := signalContext()
	defer cancel()

	files, err := collectFiles(cmd, s, args)
	if err != nil {
		fail(cmd, err)
		return
	}
	if len(files) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), "No changed files to review.")
		return
	}

	unsubscribe := s.app.Subscribe(progressPrinter(cmd.ErrOrStderr()))
	res, err := s.app.Review(ctx, files)
	unsubscribe()
	if err != nil {
		fail(cmd, err)
		return
	}

	if err := writeReport(cmd, res.Item, s.cfg.Format); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error writing output: %v\n", err)
		exitCode = ExitRuntimeError
		return
	}

	if exceedsThreshold(res.Item.Review, s.cfg.FailOn) {
		exitCode = ExitFindings
	}

	if flagChat {
		if res.ChatErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Chat unavailable: %v\n", res.ChatErr)
			return
		}
		runChat(cmd, s.app)
	}
}

// collectFiles gathers the review input from stdin, git, or paths.
func collectFiles(cmd *cobra.Command, s *session, args []string) ([]review.CodeFile, error) {
	switch {
	case flagStdin:
		_, content, err := readSource(cmd, "-")
		if err != nil {
			return nil, err
		}
		f, err := s.loader.Paste(flagName, content, flagLang)
		if err != nil {
			return nil, usageError("%v", err)
		}
		if flagLang == "" && f.Language == "plaintext" {
			ctx, cancel := signalContext()
			defer cancel()
			if f.Language, err = s.app.DetectLanguage(ctx, f.Content, f.Language); err != nil {
				return nil, err
			}
		}
		return []review.CodeFile{f}, nil

	case flagStaged, flagUnstaged:
		mode := ingest.ModeUnstaged
		if flagStaged {
			mode = ingest.ModeStaged
		}
		paths, err := s.loader.Changed(".", mode)
		if err != nil {
			return nil, err
		}
		if len(paths) == 0 {
			return nil, nil
		}
		return s.loader.Load(paths)

	default:
		if len(args) == 0 {
			args = []string{"."}
		}
		return s.loader.Load(args)
	}
}

// progressPrinter reports batch progress on w.
func progressPrinter(w io.Writer) func(app.Event) {
	last := ""
	return func(e app.Event) {
		if e.Type != app.EventProgress || e.Progress == nil {
			return
		}
		p := *e.Progress
		switch {
		case p.Idle():
			return
		case p.CurrentFile != "" && p.CurrentFile != last:
			last = p.CurrentFile
			fmt.Fprintf(w, "[%d/%d] Reviewing %s...\n", p.Completed+1, p.Total, p.CurrentFile)
		case p.CurrentFile == "" && p.Completed == p.Total:
			fmt.Fprintf(w, "Summarizing %d reviews...\n", p.Total)
		}
	}
}

// writeReport writes item to --out, or to the command's stdout.
func writeReport(cmd *cobra.Command, item review.HistoryItem, format string) error {
	if flagOut != "" {
		return output.WriteReport(item, format, flagOut)
	}
	w, err := output.GetWriter(format)
	if err != nil {
		return err
	}
	return w.Write(cmd.OutOrStdout(), item)
}

// exceedsThreshold reports whether any feedback is at or above failOn.
func exceedsThreshold(b review.BatchCodeReview, failOn string) bool {
	if failOn == "none" || failOn == "" {
		return false
	}
	for _, r := range b.FileReviews {
		for _, f := range r.Feedback {
			if review.MeetsThreshold(f.Severity, failOn) {
				return true
			}
		}
	}
	return false
}

func init() {
	f := reviewCmd.Flags()
	f.StringVar(&flagFormat, "format", "", "Output format (text, json, markdown, sarif)")
	f.StringVar(&flagOut, "out", "", "Output file path (default: stdout)")
	f.StringVar(&flagFailOn, "fail-on", "", "Exit 1 when feedback meets this severity (none, info, low, medium, high, critical)")
	f.StringVar(&flagInclude, "include", "", "Include file path globs (comma-separated)")
	f.StringVar(&flagExclude, "exclude", "", "Exclude file path globs (comma-separated)")
	f.StringVar(&flagGuidelines, "guidelines", "", "Guidelines file path")
	f.IntVar(&flagMaxBytes, "max-file-bytes", 0, "Maximum size of a single file")
	f.BoolVar(&flagStdin, "stdin", false, "Review content read from stdin")
	f.StringVar(&flagName, "name", "", "File name for --stdin content")
	f.StringVar(&flagLang, "lang", "", "Language for --stdin content (detected when omitted)")
	f.BoolVar(&flagStaged, "staged", false, "Review files changed in the index")
	f.BoolVar(&flagUnstaged, "unstaged", false, "Review files changed in the working tree")
	f.BoolVar(&flagChat, "chat", false, "Start a chat about the review when it completes")
	f.BoolVar(&flagNoHistory, "no-history", false, "Do not record this review in history")
	f.BoolVar(&flagNoRedact, "no-redact", false, "Disable secret redaction (use with caution)")
	reviewCmd.MarkFlagsMutuallyExclusive("staged", "unstaged")
}
