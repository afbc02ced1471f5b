package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/dshills/critic/internal/app"
	"github.com/dshills/critic/internal/backend"
	"github.com/dshills/critic/internal/backend/backendtest"
	"github.com/dshills/critic/internal/batch"
	"github.com/dshills/critic/internal/chat"
	"github.com/dshills/critic/internal/config"
	"github.com/dshills/critic/internal/ingest"
	"github.com/dshills/critic/internal/review"
)

// resetFlags resets all package-level flag variables to their defaults.
func resetFlags() {
	flagVerbose = false
	flagModel = ""
	flagFormat = ""
	flagOut = ""
	flagFailOn = ""
	flagInclude = ""
	flagExclude = ""
	flagGuidelines = ""
	flagMaxBytes = 0
	flagStdin = false
	flagName = ""
	flagLang = ""
	flagStaged = false
	flagUnstaged = false
	flagChat = false
	flagNoHistory = false
	flagNoRedact = false
	flagHistoryFormat = ""
	flagDetectCurrent = ""
	flagDoctorAll = false
	flagAddr = ""
	hookFailOn = "high"
	hookFormat = "text"
	hookModel = ""
	exitCode = ExitSuccess
}

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	return executeWithInput(t, "", args...)
}

func executeWithInput(t *testing.T, input string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(input))
	exitCode = ExitSuccess
	err = rootCmd.Execute()
	return out.String(), errOut.String(), err
}

type fakes struct {
	gemini *backendtest.Fake
	claude *backendtest.Fake
}

// useFakes isolates config and history in temp dirs and replaces the
// backend registry with scripted backends.
func useFakes(t *testing.T) *fakes {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("XDG_RUNTIME_DIR", filepath.Join(dir, "run"))
	t.Setenv("CRITIC_MODEL", "")
	t.Setenv("CRITIC_FORMAT", "")
	t.Setenv("CRITIC_FAIL_ON", "")
	t.Setenv(passphraseEnv, "")

	f := &fakes{
		gemini: backendtest.New(backend.ModelGemini),
		claude: backendtest.New(backend.ModelClaude),
	}
	prev := newRegistry
	newRegistry = func(config.Config, *log.Logger, *review.Guidelines) *backend.Registry {
		reg := &backend.Registry{}
		reg.Register(f.gemini)
		reg.Register(f.claude)
		reg.Register(backend.NewUnimplemented(backend.ModelVertex))
		return reg
	}
	t.Cleanup(func() { newRegistry = prev })
	resetFlags()
	return f
}

// sourceDir creates a directory of reviewable files and makes it the
// working directory.
func sourceDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"main.go":         "package main\n\nfunc main() {}\n",
		"lib/util.py":     "def add(a, b):\n    return a + b\n",
		"notes.bin":       "\x00\x01",
		".hidden/skip.go": "package skip\n",
	}
	for name, content := range files {
		p := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	t.Chdir(dir)
	return dir
}

// --- helpers ---

func TestSplitComma(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty string", "", nil},
		{"single value", "foo", []string{"foo"}},
		{"multiple values", "a,b,c", []string{"a", "b", "c"}},
		{"whitespace trimmed", " a , b , c ", []string{"a", "b", "c"}},
		{"empty parts skipped", "a,,b", []string{"a", "b"}},
		{"all empty", ",,,", nil},
		{"glob patterns", "*.go,src/**/*.ts", []string{"*.go", "src/**/*.ts"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitComma(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("splitComma(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("splitComma(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestBuildOverrides_NoFlags(t *testing.T) {
	resetFlags()
	if m := buildOverrides(); len(m) != 0 {
		t.Errorf("buildOverrides() with no flags = %v, want empty map", m)
	}
}

func TestBuildOverrides_AllFlags(t *testing.T) {
	resetFlags()
	flagFormat = "json"
	flagFailOn = "high"
	flagGuidelines = "g.json"
	flagMaxBytes = 2048
	flagNoHistory = true

	m := buildOverrides()
	expected := map[string]string{
		"format":          "json",
		"failOn":          "high",
		"guidelinesFile":  "g.json",
		"maxFileBytes":    "2048",
		"history.enabled": "false",
	}
	if len(m) != len(expected) {
		t.Fatalf("buildOverrides() returned %d entries, want %d", len(m), len(expected))
	}
	for k, v := range expected {
		if m[k] != v {
			t.Errorf("buildOverrides()[%q] = %q, want %q", k, m[k], v)
		}
	}
}

func TestApplyFilters(t *testing.T) {
	resetFlags()
	cfg := config.Default()
	flagInclude = "src/**"
	flagExclude = "*_test.go"
	flagNoRedact = true
	applyFilters(&cfg)

	if len(cfg.Include) != 1 || cfg.Include[0] != "src/**" {
		t.Errorf("Include = %v", cfg.Include)
	}
	if cfg.Exclude[len(cfg.Exclude)-1] != "*_test.go" {
		t.Errorf("Exclude should append, got %v", cfg.Exclude)
	}
	if cfg.Privacy.RedactSecrets {
		t.Error("--no-redact should disable redaction")
	}
}

func TestSelectedModel(t *testing.T) {
	resetFlags()
	t.Setenv("CRITIC_MODEL", "")
	if m, err := selectedModel(); err != nil || m != backend.ModelGemini {
		t.Errorf("default = %v, %v", m, err)
	}

	t.Setenv("CRITIC_MODEL", "claude")
	if m, _ := selectedModel(); m != backend.ModelClaude {
		t.Errorf("env = %v, want claude", m)
	}

	flagModel = "ChatGPT"
	if m, _ := selectedModel(); m != backend.ModelChatGPT {
		t.Errorf("flag should beat env, got %v", m)
	}

	flagModel = "grok"
	if _, err := selectedModel(); err == nil {
		t.Error("expected error for unknown model")
	}
}

func TestExitFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"auth", &backend.Error{Kind: backend.KindAuth, Err: errors.New("401")}, ExitAuthError},
		{"config", &backend.Error{Kind: backend.KindConfig, Err: errors.New("no key")}, ExitAuthError},
		{"wrapped auth", &batch.FileError{Index: 1, Name: "a.go", Err: &backend.Error{Kind: backend.KindAuth, Err: errors.New("x")}}, ExitAuthError},
		{"unknown backend", &backend.UnknownBackendError{Model: "grok"}, ExitUsageError},
		{"unimplemented", &backend.NotImplementedError{Backend: backend.ModelVertex}, ExitUsageError},
		{"unsupported file", &ingest.UnsupportedFileError{Name: "a.bin"}, ExitUsageError},
		{"no files", review.ErrNoFiles, ExitUsageError},
		{"usage", usageError("bad"), ExitUsageError},
		{"transient", &backend.Error{Kind: backend.KindTransient, Err: errors.New("503")}, ExitRuntimeError},
		{"other", errors.New("disk full"), ExitRuntimeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitFor(tt.err); got != tt.want {
				t.Errorf("exitFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestExceedsThreshold(t *testing.T) {
	b := review.BatchCodeReview{FileReviews: map[string]review.CodeReview{
		"a.go": {Feedback: []review.ReviewFeedback{{Severity: review.SeverityMedium}}},
	}}
	if exceedsThreshold(b, "none") {
		t.Error("none never fails")
	}
	if !exceedsThreshold(b, "medium") || !exceedsThreshold(b, "Low") {
		t.Error("medium feedback should meet medium and low thresholds")
	}
	if exceedsThreshold(b, "high") {
		t.Error("medium feedback should not meet high")
	}
}

func TestProgressPrinter(t *testing.T) {
	var buf bytes.Buffer
	p := progressPrinter(&buf)
	for _, pr := range []batch.Progress{
		{Total: 2, Completed: 0, CurrentFile: "a.go"},
		{Total: 2, Completed: 0, CurrentFile: "a.go"},
		{Total: 2, Completed: 1, CurrentFile: "b.go"},
		{Total: 2, Completed: 2},
		{},
	} {
		pr := pr
		p(app.Event{Type: app.EventProgress, Progress: &pr})
	}
	want := "[1/2] Reviewing a.go...\n[2/2] Reviewing b.go...\nSummarizing 2 reviews...\n"
	if buf.String() != want {
		t.Errorf("progress output = %q, want %q", buf.String(), want)
	}
}

// --- version ---

func TestVersionCmd_Execute(t *testing.T) {
	resetFlags()
	out, _, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version command returned error: %v", err)
	}
	if out != "critic version "+version+"\n" {
		t.Errorf("version output = %q", out)
	}
}

// --- review ---

func TestReview_Directory(t *testing.T) {
	f := useFakes(t)
	sourceDir(t)

	out, stderr, err := execute(t, "review")
	if err != nil {
		t.Fatalf("review returned error: %v", err)
	}
	if exitCode != ExitSuccess {
		t.Fatalf("exitCode = %d, stderr:\n%s", exitCode, stderr)
	}
	if !strings.Contains(out, "Critic Code Review (gemini)") {
		t.Errorf("missing report header:\n%s", out)
	}
	if !strings.Contains(out, "Summary of 2 files.") {
		t.Errorf("missing batch summary:\n%s", out)
	}
	if strings.Contains(out, "skip.go") || strings.Contains(out, "notes.bin") {
		t.Error("hidden and unsupported files should be skipped")
	}
	if !strings.Contains(stderr, "[1/2] Reviewing lib/util.py...") {
		t.Errorf("missing progress on stderr:\n%s", stderr)
	}
	if n := len(f.gemini.ReviewCalls()); n != 2 {
		t.Errorf("ReviewCalls = %d, want 2", n)
	}

	out, _, _ = execute(t, "history", "list")
	if !strings.Contains(out, "main.go") || !strings.Contains(out, "gemini") {
		t.Errorf("history list should show the review:\n%s", out)
	}
}

func TestReview_FailOn(t *testing.T) {
	useFakes(t)
	sourceDir(t)

	if _, _, err := execute(t, "review", "main.go", "--fail-on", "low"); err != nil {
		t.Fatal(err)
	}
	if exitCode != ExitFindings {
		t.Errorf("exitCode = %d, want %d", exitCode, ExitFindings)
	}

	resetFlags()
	if _, _, err := execute(t, "review", "main.go", "--fail-on", "high"); err != nil {
		t.Fatal(err)
	}
	if exitCode != ExitSuccess {
		t.Errorf("exitCode = %d, want %d", exitCode, ExitSuccess)
	}
}

func TestReview_JSONToFile(t *testing.T) {
	useFakes(t)
	dir := sourceDir(t)
	outPath := filepath.Join(dir, "report.json")

	if _, _, err := execute(t, "review", "main.go", "--format", "json", "--out", outPath); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	var parsed struct {
		Model  string                 `json:"model"`
		Review review.BatchCodeReview `json:"review"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed.Model != "gemini" {
		t.Errorf("model = %q", parsed.Model)
	}
	if _, ok := parsed.Review.FileReviews["main.go"]; !ok {
		t.Errorf("missing main.go review: %v", parsed.Review.FileReviews)
	}
}

func TestReview_Stdin(t *testing.T) {
	f := useFakes(t)
	f.gemini.DetectFn = func(context.Context, string) (string, bool, error) {
		return "python", true, nil
	}

	out, _, err := executeWithInput(t, "print('hi')\n", "review", "--stdin", "--format", "json")
	if err != nil {
		t.Fatal(err)
	}
	if exitCode != ExitSuccess {
		t.Fatalf("exitCode = %d", exitCode)
	}
	if !strings.Contains(out, `"name": "snippet"`) || !strings.Contains(out, `"language": "python"`) {
		t.Errorf("stdin content should be named snippet and detected as python:\n%s", out)
	}

	resetFlags()
	out, _, _ = executeWithInput(t, "x := 1\n", "review", "--stdin", "--name", "x.go", "--format", "json")
	if !strings.Contains(out, `"language": "go"`) {
		t.Errorf("language should come from --name:\n%s", out)
	}
}

func TestReview_UsageErrors(t *testing.T) {
	useFakes(t)
	sourceDir(t)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"unsupported file", []string{"review", "notes.bin"}, ExitUsageError},
		{"missing file", []string{"review", "nope.go"}, ExitRuntimeError},
		{"unknown model", []string{"review", "main.go", "--model", "grok"}, ExitUsageError},
		{"unimplemented model", []string{"review", "main.go", "--model", "vertex"}, ExitUsageError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			_, stderr, err := execute(t, tt.args...)
			if err != nil {
				t.Fatal(err)
			}
			if exitCode != tt.want {
				t.Errorf("exitCode = %d, want %d; stderr:\n%s", exitCode, tt.want, stderr)
			}
			if !strings.Contains(stderr, "Error:") {
				t.Errorf("stderr should report the error:\n%s", stderr)
			}
		})
	}
}

func TestReview_InvalidFlagCombination(t *testing.T) {
	useFakes(t)
	if _, _, err := execute(t, "review", "--stdin", "main.go"); err == nil {
		t.Error("--stdin with paths should be rejected")
	}
}

func TestReview_AuthError(t *testing.T) {
	f := useFakes(t)
	sourceDir(t)
	f.gemini.ReviewFn = func(context.Context, string, string) (review.CodeReview, error) {
		return review.CodeReview{}, &backend.Error{Backend: backend.ModelGemini, Op: "review", Kind: backend.KindAuth, Err: errors.New("401")}
	}

	_, stderr, _ := execute(t, "review", "main.go")
	if exitCode != ExitAuthError {
		t.Errorf("exitCode = %d, want %d", exitCode, ExitAuthError)
	}
	if !strings.Contains(stderr, "Hint:") {
		t.Errorf("stderr should include a hint:\n%s", stderr)
	}
}

func TestReview_SelectsModel(t *testing.T) {
	f := useFakes(t)
	sourceDir(t)

	out, _, _ := execute(t, "review", "main.go", "--model", "claude")
	if !strings.Contains(out, "(claude)") {
		t.Errorf("report should name claude:\n%s", out)
	}
	if len(f.gemini.ReviewCalls()) != 0 || len(f.claude.ReviewCalls()) != 1 {
		t.Error("review should go to the selected backend only")
	}
}

func TestReview_NoHistory(t *testing.T) {
	useFakes(t)
	sourceDir(t)

	if _, _, err := execute(t, "review", "main.go", "--no-history"); err != nil {
		t.Fatal(err)
	}
	resetFlags()
	out, _, _ := execute(t, "history", "list")
	if !strings.Contains(out, "No reviews in history.") {
		t.Errorf("history should be empty:\n%s", out)
	}
}

func TestReview_WithChat(t *testing.T) {
	useFakes(t)
	sourceDir(t)

	out, _, err := executeWithInput(t, "why?\n/exit\n", "review", "main.go", "--chat")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "echo: why?") {
		t.Errorf("chat reply missing:\n%s", out)
	}
}

func TestReview_Staged(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	f := useFakes(t)
	dir := sourceDir(t)
	git := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, out)
		}
	}
	git("init")

	_, stderr, _ := execute(t, "review", "--staged")
	if !strings.Contains(stderr, "No changed files to review.") {
		t.Errorf("expected no-op message:\n%s", stderr)
	}

	git("add", "main.go")
	resetFlags()
	out, _, err := execute(t, "review", "--staged")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "main.go") || strings.Contains(out, "util.py") {
		t.Errorf("only the staged file should be reviewed:\n%s", out)
	}
	if len(f.gemini.ReviewCalls()) != 1 {
		t.Errorf("ReviewCalls = %d, want 1", len(f.gemini.ReviewCalls()))
	}
}

// --- chat ---

func TestChat_NoHistory(t *testing.T) {
	useFakes(t)
	_, stderr, _ := execute(t, "chat")
	if exitCode != ExitUsageError {
		t.Errorf("exitCode = %d, want %d", exitCode, ExitUsageError)
	}
	if !strings.Contains(stderr, "no reviews in history") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestChat_LatestReview(t *testing.T) {
	f := useFakes(t)
	sourceDir(t)
	if _, _, err := execute(t, "review", "main.go"); err != nil {
		t.Fatal(err)
	}

	resetFlags()
	out, stderr, err := executeWithInput(t, "first\n\nsecond\n", "chat")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stderr, "Chatting about review") {
		t.Errorf("missing banner:\n%s", stderr)
	}
	if !strings.Contains(out, "echo: first") || !strings.Contains(out, "echo: second") {
		t.Errorf("replies missing:\n%s", out)
	}
	if f.gemini.ChatStarts() != 2 {
		t.Errorf("ChatStarts = %d, want 2 (review and reload)", f.gemini.ChatStarts())
	}
}

func TestChat_SendFailure(t *testing.T) {
	f := useFakes(t)
	sourceDir(t)
	f.gemini.SendFn = func(context.Context, string) (string, error) {
		return "", errors.New("boom")
	}
	if _, _, err := execute(t, "review", "main.go"); err != nil {
		t.Fatal(err)
	}

	resetFlags()
	_, stderr, _ := executeWithInput(t, "hello\n", "chat")
	if !strings.Contains(stderr, chat.ErrorText(errors.New("boom"))) {
		t.Errorf("failure should be shown:\n%s", stderr)
	}
}

func TestChat_UnknownID(t *testing.T) {
	useFakes(t)
	_, _, _ = execute(t, "chat", "12345")
	if exitCode != ExitUsageError {
		t.Errorf("exitCode = %d, want %d", exitCode, ExitUsageError)
	}
}

// --- history ---

func TestHistoryShowAndClear(t *testing.T) {
	useFakes(t)
	sourceDir(t)
	if _, _, err := execute(t, "review", "main.go", "--format", "json"); err != nil {
		t.Fatal(err)
	}

	resetFlags()
	out, _, _ := execute(t, "history", "list")
	id := strings.Fields(out)[0]

	resetFlags()
	out, _, err := execute(t, "history", "show", id, "--format", "markdown")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "## Critic Code Review") {
		t.Errorf("show should render markdown:\n%s", out)
	}

	resetFlags()
	_, _, _ = execute(t, "history", "show", "missing")
	if exitCode != ExitUsageError {
		t.Errorf("exitCode = %d, want %d", exitCode, ExitUsageError)
	}

	resetFlags()
	out, _, _ = execute(t, "history", "clear")
	if !strings.Contains(out, "History cleared.") {
		t.Errorf("clear output = %q", out)
	}
	resetFlags()
	out, _, _ = execute(t, "history", "list")
	if !strings.Contains(out, "No reviews in history.") {
		t.Errorf("history should be empty after clear:\n%s", out)
	}
}

func TestHistory_Passphrase(t *testing.T) {
	useFakes(t)
	sourceDir(t)
	t.Setenv("CRITIC_HISTORY_KEY_MODE", "passphrase")

	_, stderr, _ := execute(t, "history", "list")
	if exitCode != ExitUsageError {
		t.Errorf("missing passphrase should be a usage error, got %d: %s", exitCode, stderr)
	}

	t.Setenv(passphraseEnv, "correct horse")
	resetFlags()
	if _, _, err := execute(t, "review", "main.go"); err != nil {
		t.Fatal(err)
	}
	resetFlags()
	out, _, _ := execute(t, "history", "list")
	if !strings.Contains(out, "main.go") {
		t.Errorf("history should decrypt with the same passphrase:\n%s", out)
	}
}

func TestHistoryLine(t *testing.T) {
	item := review.HistoryItem{
		ID:        "1700000000000",
		Timestamp: "2023-11-14T22:13:20.000Z",
		Model:     "claude",
		Files:     []review.CodeFile{{Name: "a.go"}, {Name: "b.go"}},
		Review: review.BatchCodeReview{FileReviews: map[string]review.CodeReview{
			"a.go": {Feedback: []review.ReviewFeedback{{Severity: review.SeverityHigh}}},
		}},
	}
	line := historyLine(item)
	for _, want := range []string{"1700000000000", "claude", "1 findings", "a.go, b.go"} {
		if !strings.Contains(line, want) {
			t.Errorf("historyLine missing %q: %q", want, line)
		}
	}
}

// --- detect ---

func TestDetect(t *testing.T) {
	f := useFakes(t)
	f.gemini.DetectFn = func(context.Context, string) (string, bool, error) {
		return "rust", true, nil
	}
	out, _, err := executeWithInput(t, "fn main() {}\n", "detect")
	if err != nil {
		t.Fatal(err)
	}
	if out != "rust\n" {
		t.Errorf("detect output = %q, want rust", out)
	}
}

func TestDetect_Inconclusive(t *testing.T) {
	f := useFakes(t)
	dir := sourceDir(t)
	f.gemini.DetectFn = func(context.Context, string) (string, bool, error) {
		return "", false, nil
	}
	out, _, _ := execute(t, "detect", filepath.Join(dir, "main.go"))
	if out != "go\n" {
		t.Errorf("inconclusive detection should keep the extension language, got %q", out)
	}
}

func TestDetect_Unsupported(t *testing.T) {
	f := useFakes(t)
	f.gemini.Detection = false
	out, stderr, _ := executeWithInput(t, "SELECT 1;\n", "detect", "--current", "sql")
	if out != "sql\n" {
		t.Errorf("output = %q, want sql", out)
	}
	if !strings.Contains(stderr, "does not support language detection") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestDetect_UnimplementedBackend(t *testing.T) {
	useFakes(t)
	out, stderr, err := executeWithInput(t, "package main\n", "detect", "--model", "vertex", "--current", "go")
	if err != nil {
		t.Fatal(err)
	}
	if exitCode != ExitUsageError {
		t.Errorf("exitCode = %d, want %d", exitCode, ExitUsageError)
	}
	if out != "" {
		t.Errorf("nothing should be printed on stdout, got %q", out)
	}
	if !strings.Contains(stderr, "not yet implemented") {
		t.Errorf("stderr = %q", stderr)
	}
}

// --- models ---

func TestModelsList(t *testing.T) {
	useFakes(t)
	out, _, err := execute(t, "models", "list")
	if err != nil {
		t.Fatalf("models list returned error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 backends:\n%s", out)
	}
	if !strings.HasPrefix(lines[0], "* gemini") {
		t.Errorf("gemini should be selected: %q", lines[0])
	}
}

func TestModelsDoctor(t *testing.T) {
	f := useFakes(t)
	out, _, _ := execute(t, "models", "doctor")
	if exitCode != ExitSuccess || !strings.Contains(out, "OK   gemini") {
		t.Errorf("doctor = %d, %q", exitCode, out)
	}

	f.claude.ReviewFn = func(context.Context, string, string) (review.CodeReview, error) {
		return review.CodeReview{}, &backend.Error{Backend: backend.ModelClaude, Kind: backend.KindAuth, Err: errors.New("401")}
	}
	resetFlags()
	out, stderr, _ := execute(t, "models", "doctor", "--all")
	if exitCode != ExitAuthError {
		t.Errorf("exitCode = %d, want %d", exitCode, ExitAuthError)
	}
	if !strings.Contains(stderr, "FAIL claude") || !strings.Contains(stderr, "FAIL vertex") {
		t.Errorf("stderr = %q", stderr)
	}
	if !strings.Contains(out, "OK   gemini") {
		t.Errorf("stdout = %q", out)
	}
}

// --- config ---

func TestConfigInit_CreatesFile(t *testing.T) {
	resetFlags()
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	if _, _, err := execute(t, "config", "init"); err != nil {
		t.Fatalf("config init returned error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, "critic", "config.json"))
	if err != nil {
		t.Fatalf("config init did not create config.json: %v", err)
	}
	var cfg config.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("config file is not valid JSON: %v", err)
	}
	if cfg.Format != "text" {
		t.Errorf("format = %q, want text", cfg.Format)
	}
}

func TestConfigInit_AlreadyExists(t *testing.T) {
	resetFlags()
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	cfgDir := filepath.Join(tmpDir, "critic")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "config.json"), []byte(`{"format":"json"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := execute(t, "config", "init"); err != nil {
		t.Fatalf("config init with existing file returned error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(cfgDir, "config.json"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"format":"json"}` {
		t.Errorf("config init overwrote existing file: %s", data)
	}
}

func TestConfigSet_UpdatesFile(t *testing.T) {
	resetFlags()
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	if _, _, err := execute(t, "config", "set", "backends.ollama.model", "qwen2.5-coder"); err != nil {
		t.Fatalf("config set returned error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, "critic", "config.json"))
	if err != nil {
		t.Fatalf("cannot read config file: %v", err)
	}
	var cfg config.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("config file is not valid JSON: %v", err)
	}
	if cfg.Backends.Ollama.Model != "qwen2.5-coder" {
		t.Errorf("ollama model = %q", cfg.Backends.Ollama.Model)
	}
}

func TestConfigSet_Invalid(t *testing.T) {
	resetFlags()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if _, _, err := execute(t, "config", "set", "unknownKey", "value"); err == nil {
		t.Error("config set with invalid key should return error")
	}
	if _, _, err := execute(t, "config", "set", "format", "yaml"); err == nil {
		t.Error("config set with invalid value should return error")
	}
	if _, _, err := execute(t, "config", "set", "format"); err == nil {
		t.Error("config set with 1 arg should return error")
	}
}

func TestConfigShow_Execute(t *testing.T) {
	resetFlags()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	out, _, err := execute(t, "config", "show")
	if err != nil {
		t.Fatalf("config show returned error: %v", err)
	}
	if !strings.Contains(out, `"addr": "127.0.0.1:7420"`) {
		t.Errorf("config show output:\n%s", out)
	}
}

// --- exit codes ---

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name string
		code int
		want int
	}{
		{"ExitSuccess", ExitSuccess, 0},
		{"ExitFindings", ExitFindings, 1},
		{"ExitUsageError", ExitUsageError, 2},
		{"ExitAuthError", ExitAuthError, 3},
		{"ExitRuntimeError", ExitRuntimeError, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.code != tt.want {
				t.Errorf("%s = %d, want %d", tt.name, tt.code, tt.want)
			}
		})
	}
}
