package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hperssn/breathe/internal/domain"
	"github.com/hperssn/breathe/internal/engine"
	"github.com/hperssn/breathe/internal/timer"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run a session in the terminal",
		Long: `Run a guided session interactively.

Press Enter to end a breath hold; type q to stop the session.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			eng, err := engine.New(cfg.Settings(), timer.NewSystem(), buildSink(cfg, logger), logger)
			if err != nil {
				return err
			}
			defer eng.Stop()

			if err := eng.Start(); err != nil {
				return err
			}

			lines := make(chan string)
			go func() {
				scanner := bufio.NewScanner(os.Stdin)
				for scanner.Scan() {
					lines <- strings.TrimSpace(scanner.Text())
				}
				close(lines)
			}()

			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

			events := eng.Events()
			lastPhase := domain.PhaseIdle

			for {
				select {
				case snap := <-events:
					if snap.Phase != lastPhase {
						printPhase(snap)
						lastPhase = snap.Phase
					}
					if snap.Phase == domain.PhaseCompleted {
						printSummary(eng)
						return nil
					}

				case line, ok := <-lines:
					if !ok || line == "q" {
						eng.Stop()
						return nil
					}
					eng.EndRetention()

				case <-sigs:
					eng.Stop()
					return nil
				}
			}
		},
	}
}

func printPhase(snap engine.Snapshot) {
	switch snap.Phase {
	case domain.PhaseBreathing:
		fmt.Printf("round %d: breathe\n", snap.Round)
	case domain.PhaseRetention:
		fmt.Printf("round %d: hold, press Enter when done\n", snap.Round)
	case domain.PhaseRecovery:
		fmt.Printf("round %d: recovery inhale, hold 15s\n", snap.Round)
	case domain.PhaseCompleted:
		fmt.Println("session complete")
	}
}

func printSummary(eng *engine.Engine) {
	sum, ok := eng.Summary()
	if !ok {
		return
	}
	fmt.Printf("rounds: %d  total hold: %.1fs  average: %.1fs  best: %.1fs\n",
		sum.Rounds, sum.TotalRetention, sum.AverageRetention, sum.BestRetention)
}
