package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/critic/internal/app"
	"github.com/dshills/critic/internal/config"
	"github.com/dshills/critic/internal/review"
)

var flagHistoryFormat string

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse and clear the encrypted review history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored reviews, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s *session) {
			ctx, cancel := signalContext()
			defer cancel()

			items := s.app.History(ctx)
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No reviews in history.")
				return
			}
			for _, item := range items {
				fmt.Fprintln(out, historyLine(item))
			}
		})
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a stored review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s *session) {
			ctx, cancel := signalContext()
			defer cancel()

			item, err := s.app.HistoryItem(ctx, args[0])
			if err != nil {
				if errors.Is(err, app.ErrNotFound) {
					err = usageError("%v", err)
				}
				fail(cmd, err)
				return
			}
			format := flagHistoryFormat
			if format == "" {
				format = s.cfg.Format
			}
			if err := writeReport(cmd, item, format); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error writing output: %v\n", err)
				exitCode = ExitRuntimeError
			}
		})
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored review and its key",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(s *session) {
			ctx, cancel := signalContext()
			defer cancel()
			s.app.ClearHistory(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
		})
	},
}

// withSession loads config and opens a session for fn. Config errors are
// usage errors; session errors are reported through fail.
func withSession(cmd *cobra.Command, fn func(s *session)) error {
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
	fn(s)
	return nil
}

// historyLine formats one item for history list.
func historyLine(item review.HistoryItem) string {
	names := make([]string, 0, len(item.Files))
	for _, f := range item.Files {
		names = append(names, f.Name)
	}
	files := strings.Join(names, ", ")
	if len(files) > 60 {
		files = files[:57] + "..."
	}
	model := item.Model
	if model == "" {
		model = "-"
	}
	s := review.ComputeSummary(item.Review)
	return fmt.Sprintf("%-15s %-24s %-8s %3d findings  %s",
		item.ID, item.Timestamp, model, s.Counts.Total(), files)
}

func init() {
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyClearCmd)
	historyShowCmd.Flags().StringVar(&flagHistoryFormat, "format", "", "Output format (text, json, markdown, sarif)")
}
