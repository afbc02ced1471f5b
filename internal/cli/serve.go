package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/critic/internal/config"
	"github.com/dshills/critic/internal/server"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the review session over a local HTTP API",
	Long: "Start a loopback HTTP API with a websocket event stream for a browser front end. " +
		"The API has no authentication; keep it bound to a loopback address.",
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides := map[string]string{}
		if flagAddr != "" {
			overrides["server.addr"] = flagAddr
		}
		cfg, err := config.Load(overrides)
		if err != nil {
			return err
		}
		s, err := openSession(cmd, cfg)
		if err != nil {
			fail(cmd, err)
			return nil
		}
		defer s.Close()

		srv := server.New(s.app, cfg.Server.Addr,
			server.WithLogger(s.logger),
			server.WithLoader(s.loader),
		)
		ctx, cancel := signalContext()
		defer cancel()
		fmt.Fprintf(cmd.ErrOrStderr(), "Serving critic API on http://%s (Ctrl-C to stop)\n", cfg.Server.Addr)
		if err := srv.Run(ctx); err != nil {
			fail(cmd, err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "Listen address (default 127.0.0.1:7420)")
}
