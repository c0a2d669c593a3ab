package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"roadnerd/internal/httpapi"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the troubleshooting pipeline over HTTP",
	Long: `Start the HTTP API used by the browser client and by helpers on other
machines on the same link.

Endpoints:
  GET  /api/status            server, backend and host status
  POST /api/classify          classify an issue
  POST /api/diagnose          run the whole pipeline
  POST /api/ideas/brainstorm  candidate causes only
  POST /api/ideas/probe       gather evidence for candidates
  POST /api/ideas/judge       rank candidates

The listener defaults to loopback. Bind a wider address only on a link you
trust: there is no authentication.`,
	Example: `  roadnerd serve
  roadnerd serve --listen 0.0.0.0:8080

  curl -s localhost:8080/api/status`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		addr := a.cfg.Server.Listen
		if serveListen != "" {
			addr = serveListen
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		h := httpapi.NewHandler(a.service, a.gateway, a.system, Version, a.log)
		srv := httpapi.NewServer(addr, httpapi.NewRouter(h, a.log), a.log)

		id := a.gateway.Identity()
		a.log.Info("serving",
			zap.String("addr", addr),
			zap.String("backend", id.Kind),
			zap.String("model", id.Model))
		return srv.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (default from config, 127.0.0.1:8080)")
}
