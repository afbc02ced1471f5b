package ingest

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// Mode selects which git changes to review.
type Mode string

const (
	ModeUnstaged Mode = "unstaged"
	ModeStaged   Mode = "staged"
)

// GitChanged returns the supported files changed in the working tree
// (unstaged) or the index (staged), relative to dir. Deleted files are
// omitted.
func GitChanged(dir string, mode Mode) ([]string, error) {
	args := []string{"diff", "--name-only", "--relative", "--diff-filter=ACMR"}
	switch mode {
	case ModeStaged:
		args = append(args, "--cached")
	case ModeUnstaged:
	default:
		return nil, fmt.Errorf("unknown git mode: %s", mode)
	}
	out, err := gitOutput(dir, args...)
	if err != nil {
		return nil, fmt.Errorf("git diff: %w", err)
	}

	var files []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !IsSupported(line) {
			continue
		}
		if dir != "" {
			line = filepath.Join(dir, line)
		}
		files = append(files, line)
	}
	return files, nil
}

// Changed loads the files reported by GitChanged, filtered by the include
// and exclude patterns.
func (l *Loader) Changed(dir string, mode Mode) ([]string, error) {
	names, err := GitChanged(dir, mode)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, n := range names {
		if l.selected(displayName(n)) {
			out = append(out, n)
		}
	}
	return out, nil
}

// RepoRoot returns the top-level directory of the repository containing dir.
func RepoRoot(dir string) (string, error) {
	out, err := gitOutput(dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("not a git repository: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// GitDir returns the repository's git directory, resolving worktrees.
func GitDir(dir string) (string, error) {
	out, err := gitOutput(dir, "rev-parse", "--git-common-dir")
	if err != nil {
		return "", fmt.Errorf("not a git repository: %w", err)
	}
	gitDir := strings.TrimSpace(out)
	if !filepath.IsAbs(gitDir) && dir != "" {
		gitDir = filepath.Join(dir, gitDir)
	}
	return gitDir, nil
}

func gitOutput(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return string(out), fmt.Errorf("%s: %s", err, string(exitErr.Stderr))
		}
		return "", err
	}
	return string(out), nil
}
