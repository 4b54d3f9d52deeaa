package cmd

import (
	"log"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(infoCmd)
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "print device identity, version, capabilities and status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, dev, err := initLink(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		start := time.Now()
		log.Println(dev.Info().String())
		st, err := dev.SystemStatus()
		if err != nil {
			return err
		}
		log.Println("status:", st.String())
		log.Println("took", time.Since(start).String())
		return nil
	},
}
