package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/critic/internal/backend"
	"github.com/dshills/critic/internal/config"
	"github.com/dshills/critic/internal/ingest"
)

// critic owns one marked block of .git/hooks/pre-commit. Anything outside
// the markers belongs to the user and is never rewritten.
const (
	hookBegin   = "# >>> critic pre-commit hook >>>"
	hookEnd     = "# <<< critic pre-commit hook <<<"
	hookShebang = "#!/bin/sh\n"
)

var (
	hookFailOn string
	hookFormat string
	hookModel  string
)

// hookBlock is the review command embedded in the pre-commit hook.
type hookBlock struct {
	failOn string
	format string
	model  string
}

func (h hookBlock) validate() error {
	cfg := config.Default()
	cfg.FailOn = h.failOn
	cfg.Format = h.format
	if err := config.Validate(cfg); err != nil {
		return usageError("%v", err)
	}
	if h.model != "" {
		if _, err := backend.ParseModel(h.model); err != nil {
			return err
		}
	}
	return nil
}

// script renders the block. Exit 1 from critic blocks the commit; an
// error exit lets it through with a warning so a missing key never
// wedges the repository.
func (h hookBlock) script() string {
	args := fmt.Sprintf("--staged --fail-on %s --format %s", h.failOn, h.format)
	if h.model != "" {
		args += " --model " + h.model
	}
	lines := []string{
		hookBegin,
		"critic review " + args,
		"CRITIC_EXIT=$?",
		"if [ $CRITIC_EXIT -eq 1 ]; then",
		fmt.Sprintf("  echo \"critic: feedback at or above %s severity, commit blocked\"", h.failOn),
		"  exit 1",
		"elif [ $CRITIC_EXIT -ge 2 ]; then",
		"  echo \"critic: review could not run (exit $CRITIC_EXIT), allowing commit\"",
		"fi",
		hookEnd,
	}
	return strings.Join(lines, "\n") + "\n"
}

// blockBounds locates the critic block, including its trailing newline.
func blockBounds(script string) (start, end int, ok bool) {
	start = strings.Index(script, hookBegin)
	if start < 0 {
		return 0, 0, false
	}
	rel := strings.Index(script[start:], hookEnd)
	if rel < 0 {
		return 0, 0, false
	}
	end = start + rel + len(hookEnd)
	if end < len(script) && script[end] == '\n' {
		end++
	}
	return start, end, true
}

// spliceHook puts block in place of the existing critic block, or appends
// it on its own line.
func spliceHook(script, block string) string {
	if start, end, ok := blockBounds(script); ok {
		return script[:start] + block + script[end:]
	}
	if script != "" && !strings.HasSuffix(script, "\n") {
		script += "\n"
	}
	return script + block
}

// cutHook removes the critic block and reports whether there was one.
func cutHook(script string) (string, bool) {
	start, end, ok := blockBounds(script)
	if !ok {
		return script, false
	}
	return script[:start] + script[end:], true
}

// onlyShebang reports whether nothing but an interpreter line is left.
func onlyShebang(script string) bool {
	rest := strings.TrimSpace(script)
	return rest == "" || (strings.HasPrefix(rest, "#!") && !strings.Contains(rest, "\n"))
}

func preCommitPath() (string, error) {
	gitDir, err := ingest.GitDir(".")
	if err != nil {
		return "", err
	}
	return filepath.Join(gitDir, "hooks", "pre-commit"), nil
}

func readHook(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

func writeHook(path, script string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating hooks directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Review staged files from a git pre-commit hook",
}

var hookInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Add or update the critic block in .git/hooks/pre-commit",
	RunE: func(cmd *cobra.Command, args []string) error {
		block := hookBlock{failOn: hookFailOn, format: hookFormat, model: hookModel}
		if err := block.validate(); err != nil {
			fail(cmd, err)
			return nil
		}
		path, err := preCommitPath()
		if err != nil {
			fail(cmd, err)
			return nil
		}
		script, err := readHook(path)
		if err != nil {
			fail(cmd, err)
			return nil
		}
		if strings.TrimSpace(script) == "" {
			script = hookShebang
		}
		if err := writeHook(path, spliceHook(script, block.script())); err != nil {
			fail(cmd, err)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Commits now run critic on staged files; %s or worse blocks them.\nHook: %s\n",
			block.failOn, path)
		return nil
	},
}

var hookUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the critic block from .git/hooks/pre-commit",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := preCommitPath()
		if err != nil {
			fail(cmd, err)
			return nil
		}
		script, err := readHook(path)
		if err != nil {
			fail(cmd, err)
			return nil
		}
		rest, found := cutHook(script)
		out := cmd.OutOrStdout()
		switch {
		case !found:
			fmt.Fprintf(out, "No critic block in %s; nothing to do.\n", path)
		case onlyShebang(rest):
			if err := os.Remove(path); err != nil {
				fail(cmd, fmt.Errorf("removing %s: %w", path, err))
				return nil
			}
			fmt.Fprintf(out, "Deleted %s (it held only the critic block).\n", path)
		default:
			if err := writeHook(path, rest); err != nil {
				fail(cmd, err)
				return nil
			}
			fmt.Fprintf(out, "Removed the critic block; the rest of %s is unchanged.\n", path)
		}
		return nil
	},
}

func init() {
	hookCmd.AddCommand(hookInstallCmd)
	hookCmd.AddCommand(hookUninstallCmd)
	f := hookInstallCmd.Flags()
	f.StringVar(&hookFailOn, "fail-on", "high", "Block the commit on feedback at or above this severity")
	f.StringVar(&hookFormat, "format", "text", "Report format printed by the hook (text, json, markdown, sarif)")
	f.StringVar(&hookModel, "model", "", "Backend the hook reviews with (default: CRITIC_MODEL or gemini)")
}
