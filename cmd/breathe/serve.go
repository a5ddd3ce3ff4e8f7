package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/hperssn/breathe/internal/engine"
	"github.com/hperssn/breathe/internal/httpapi"
	"github.com/hperssn/breathe/internal/timer"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session API for an external UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Listen = addr
			}

			eng, err := engine.New(cfg.Settings(), timer.NewSystem(), buildSink(cfg, logger), logger)
			if err != nil {
				return err
			}
			defer eng.Stop()

			r := chi.NewRouter()
			r.Use(middleware.Logger)
			r.Mount("/", httpapi.New(eng, logger).Routes())

			logger.Info("listening", "addr", cfg.Listen)
			return http.ListenAndServe(cfg.Listen, r)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")

	return cmd
}
