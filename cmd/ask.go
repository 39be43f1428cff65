package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CodeHalwell/digital-cv/internal/app"
	"github.com/CodeHalwell/digital-cv/internal/config"
)

var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Ask the assistant a single question from the terminal",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd, strings.Join(args, " "))
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, message string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx := cmd.Context()
	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			a.Logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	// Each emission is the cumulative response; print only the new suffix
	// so the terminal shows a live stream.
	printed := 0
	for text := range a.Orchestrator.Chat(ctx, message, nil) {
		if len(text) < printed {
			// A fresh message (e.g. rejection) replaces the stream.
			fmt.Fprintln(os.Stdout)
			printed = 0
		}
		fmt.Fprint(os.Stdout, text[printed:])
		printed = len(text)
	}
	fmt.Fprintln(os.Stdout)
	return nil
}
