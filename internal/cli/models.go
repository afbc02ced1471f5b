package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/critic/internal/backend"
	"github.com/dshills/critic/internal/config"
)

var flagDoctorAll bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Backend listing and diagnostics",
}

// backendModel returns the provider model configured for m.
func backendModel(cfg config.BackendsConfig, m backend.Model) string {
	switch m {
	case backend.ModelGemini:
		return cfg.Gemini.Model
	case backend.ModelClaude:
		return cfg.Claude.Model
	case backend.ModelChatGPT:
		return cfg.ChatGPT.Model
	case backend.ModelOllama:
		return cfg.Ollama.Model
	case backend.ModelBedrock:
		return cfg.Bedrock.Model
	default:
		return ""
	}
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backends and whether they are configured",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(nil)
		if err != nil {
			return err
		}
		reg, err := openRegistry(cfg, newLogger(cmd.ErrOrStderr()))
		if err != nil {
			fail(cmd, err)
			return nil
		}
		selected, err := selectedModel()
		if err != nil {
			fail(cmd, err)
			return nil
		}

		out := cmd.OutOrStdout()
		for _, info := range reg.Describe() {
			marker := " "
			if info.Model == selected {
				marker = "*"
			}
			status := "ready"
			if !info.Configured {
				status = "not configured: " + info.Detail
			}
			model := backendModel(cfg.Backends, info.Model)
			if model == "" {
				model = "-"
			}
			fmt.Fprintf(out, "%s %-8s %-10s %-42s %s\n", marker, info.Model, info.Label, model, status)
		}
		return nil
	},
}

var modelsDoctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the selected backend responds",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(nil)
		if err != nil {
			return err
		}
		reg, err := openRegistry(cfg, newLogger(cmd.ErrOrStderr()))
		if err != nil {
			fail(cmd, err)
			return nil
		}

		var models []backend.Model
		if flagDoctorAll {
			models = reg.Models()
		} else {
			m, err := selectedModel()
			if err != nil {
				fail(cmd, err)
				return nil
			}
			models = []backend.Model{m}
		}

		ctx, cancel := signalContext()
		defer cancel()

		worst := ExitSuccess
		for _, m := range models {
			b, err := reg.Get(m)
			if err == nil {
				err = ping(ctx, b)
			}
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "FAIL %s: %v\n", m, err)
				if code := exitFor(err); code > worst {
					worst = code
				}
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK   %s is configured and responding\n", m)
		}
		exitCode = worst
		return nil
	},
}

// ping runs a minimal review against b.
func ping(ctx context.Context, b backend.Backend) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()
	_, err := b.GetCodeReview(ctx, "x = 1\n", "python")
	return err
}

func init() {
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsDoctorCmd)
	modelsDoctorCmd.Flags().BoolVar(&flagDoctorAll, "all", false, "Check every backend")
}
