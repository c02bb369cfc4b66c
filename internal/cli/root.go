package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root osler command.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "osler",
		Short: "USMLE-style MCQ generation behind a rate-limited LLM proxy",
		Long: `Osler turns pasted learning objectives into USMLE-style multiple-choice
questions through a two-stage generate-then-review LLM pipeline. The serve
command runs the credential-shielding proxy; generate, quiz, export and bank
work with question sets directly.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newGenerateCmd(),
		newQuizCmd(),
		newExportCmd(),
		newBankCmd(),
	)

	return root
}
