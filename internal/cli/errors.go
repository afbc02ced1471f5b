package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/critic/internal/backend"
	"github.com/dshills/critic/internal/ingest"
	"github.com/dshills/critic/internal/review"
)

// errUsage marks an error caused by how the command was invoked.
var errUsage = errors.New("usage error")

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// exitFor maps an error onto a process exit code.
func exitFor(err error) int {
	var unknown *backend.UnknownBackendError
	var unsupported *ingest.UnsupportedFileError
	var tooLarge *ingest.FileTooLargeError
	var dup *review.DuplicateFileError

	switch {
	case err == nil:
		return ExitSuccess
	case backend.IsAuthError(err), backend.IsConfigError(err):
		return ExitAuthError
	case errors.Is(err, errUsage),
		backend.IsNotImplemented(err),
		errors.As(err, &unknown),
		errors.As(err, &unsupported),
		errors.As(err, &tooLarge),
		errors.As(err, &dup),
		errors.Is(err, review.ErrNoFiles):
		return ExitUsageError
	default:
		return ExitRuntimeError
	}
}

// fail reports err on stderr with any available hint and records the exit
// code for it.
func fail(cmd *cobra.Command, err error) {
	w := cmd.ErrOrStderr()
	fmt.Fprintf(w, "Error: %v\n", err)
	if h := backend.Hint(err); h != "" {
		fmt.Fprintf(w, "Hint: %s\n", h)
	}
	exitCode = exitFor(err)
}
