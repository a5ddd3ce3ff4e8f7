package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hperssn/breathe/internal/config"
	"github.com/hperssn/breathe/internal/cue"
)

var Version = "dev"

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:     "breathe",
		Short:   "Guided breathing-exercise session controller",
		Version: Version,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.breathe/config.yaml)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(runCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	return cfg, logger, nil
}

// buildSink opens the configured MIDI port, falling back to logged cues.
// Cue output is best-effort; a missing port is not fatal.
func buildSink(cfg *config.Config, logger *slog.Logger) cue.Sink {
	if cfg.MIDI.Enabled {
		sink, err := cue.NewMIDISink(cfg.MIDI.Port)
		if err == nil {
			return sink
		}
		logger.Warn("midi unavailable, using log cues", "error", err)
	}
	return cue.NewLogSink(logger)
}
