// Package cmd implements the digital-cv command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "digital-cv",
	Short: "digital-cv - a persona-grounded assistant for your personal website",
	Long: `digital-cv answers visitor questions on behalf of a named individual,
grounding its responses in a curated personal knowledge base and recording
follow-up actions (contact details, unanswered questions) via tools.

Run "digital-cv serve" to start the HTTP API, "digital-cv ingest" to load
knowledge documents, or "digital-cv ask" to chat from the terminal.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
