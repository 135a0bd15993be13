// Package ragbotcmder
package ragbotcmder

import (
	"github.com/spf13/cobra"

	servecmder "github.com/kolzchut/ragbot/cmd/ragbot/serve"
)

const ragbotLongDesc string = `Ragbot answers questions about legal rights from a curated document corpus.

Run the service using:
  ragbot serve    Run the API server`

const ragbotShortDesc string = "Ragbot - Rights Q&A Service"

func NewRagbotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ragbot",
		Short: ragbotShortDesc,
		Long:  ragbotLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())

	return cmd
}
