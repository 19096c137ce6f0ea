package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "messaging-webhooks",
	Short: "Messaging webhooks microservice",
	Long:  "A messaging microservice that receives WhatsApp provider webhooks (Z-API, Baileys) and reconciles message delivery status.",
}

// Execute runs the root Cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
