package cmd

import (
	"log"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(scratchCmd)
}

var scratchCmd = &cobra.Command{
	Use:   "scratch",
	Short: "run the scratch register pattern test",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, dev, err := initLink(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := dev.TestScratch(); err != nil {
			return err
		}
		log.Println("scratch register test: PASS")
		return nil
	},
}
