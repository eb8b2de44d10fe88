// Package cmd implements the fisco CLI: thin cobra commands over the
// internal/app wiring.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fisco",
	Short: "fisco - assistente fiscale e legale per professionisti italiani",
	Long: `fisco answers Italian tax, legal, labor and accounting questions.

Queries run through a decision pipeline: recognized FAQ queries are served
instantly from curated golden answers; everything else is classified, routed
to the most cost-effective language model, and may invoke builtin tools
(VAT calculation, CCNL lookup, compliance deadlines).`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
