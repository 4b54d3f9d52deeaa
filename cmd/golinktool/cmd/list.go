package cmd

import (
	"log"

	"github.com/fpgabridge/golink/adapter"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "list available adapters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, a := range adapter.ListAdapters() {
			log.Printf("%s (aliases: %v)", a.Name, a.Alias)
		}
		return nil
	},
}
