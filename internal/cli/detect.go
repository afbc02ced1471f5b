package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/critic/internal/backend"
	"github.com/dshills/critic/internal/config"
	"github.com/dshills/critic/internal/ingest"
)

var flagDetectCurrent string

var detectCmd = &cobra.Command{
	Use:   "detect [file|-]",
	Short: "Detect the language of a file with the selected backend",
	Long: "Ask the selected backend which language a file or stdin is written in. " +
		"When the backend cannot detect languages, the language implied by the file " +
		"extension (or --current) is printed unchanged.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(nil)
		if err != nil {
			return err
		}
		logger := newLogger(cmd.ErrOrStderr())

		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		name, content, err := readSource(cmd, path)
		if err != nil {
			fail(cmd, err)
			return nil
		}
		if strings.TrimSpace(content) == "" {
			fail(cmd, usageError("no content to detect"))
			return nil
		}

		current := flagDetectCurrent
		if current == "" {
			current = "plaintext"
			if lang, ok := ingest.LanguageFor(name); ok {
				current = lang
			}
		}

		model, err := selectedModel()
		if err != nil {
			fail(cmd, err)
			return nil
		}
		reg, err := openRegistry(cfg, logger)
		if err != nil {
			fail(cmd, err)
			return nil
		}
		b, err := reg.Get(model)
		if err != nil {
			fail(cmd, err)
			return nil
		}
		if !b.Supports(backend.CapLanguageDetection) {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s does not support language detection\n", backend.Label(model))
		}

		ctx, cancel := signalContext()
		defer cancel()
		lang, err := backend.DetectLanguage(ctx, b, content, current, logger)
		if err != nil {
			fail(cmd, err)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), lang)
		return nil
	},
}

func init() {
	detectCmd.Flags().StringVar(&flagDetectCurrent, "current", "", "Language to keep when detection is inconclusive")
}
