package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/tariff/internal/certs"
	"github.com/Veraticus/tariff/internal/server"
)

func serveCmd() *cobra.Command {
	var (
		port   int
		dryRun bool
		useTLS bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the classification HTTP API",
		Long: `Serve the classification HTTP API.

Routes:
  POST /api/classify              JSON {"product_name": "..."}
  POST /process                   form field product_name
  GET  /api/classifications       recent classifications
  GET  /api/classifications/{id}  one classification
  GET  /health`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			defer a.Close()

			if port == 0 {
				port = a.config.Server.Port
			}

			cfg := server.Config{
				RateLimit:      a.config.Server.RateLimit,
				Burst:          a.config.Server.Burst,
				RequestTimeout: a.config.Server.RequestTimeout,
			}
			if useTLS || a.config.Server.TLS {
				manager := certs.NewFileManager(a.config.Server.TLSDir, a.config.Server.TLSHosts...)
				if cfg.TLS, err = manager.TLSConfig(); err != nil {
					return fmt.Errorf("failed to prepare TLS certificate: %w", err)
				}
				slog.Info("serving HTTPS with self-signed certificate", "cert", manager.CertFile())
			}

			srv := server.New(a.pipeline, a.store, cfg, slog.Default())

			return srv.Run(cmd.Context(), fmt.Sprintf(":%d", port))
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from server.port)")
	cmd.Flags().BoolVar(&useTLS, "tls", false, "Serve HTTPS with a self-signed certificate from server.tls_dir")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Use offline mock backends instead of calling any model")

	return cmd
}
