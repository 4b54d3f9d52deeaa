package cmd

import (
	"log"
	"time"

	"github.com/fpgabridge/golink/pkg/bridge"
	"github.com/spf13/cobra"
)

const (
	flagMode  = "mode"
	flagBurst = "burst"
)

func init() {
	monitorCmd.Flags().StringP(flagMode, "m", "normal", "run mode: normal, control, stream or stress")
	monitorCmd.Flags().Int(flagBurst, 64, "stream burst size in bytes")
	rootCmd.AddCommand(monitorCmd)
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "run both plane owners until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		modeName, err := cmd.Flags().GetString(flagMode)
		if err != nil {
			return err
		}
		mode, err := bridge.ParseMode(modeName)
		if err != nil {
			return err
		}
		burst, err := cmd.Flags().GetInt(flagBurst)
		if err != nil {
			return err
		}

		a, err := openAdapter(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		b, err := bridge.New(bridge.Options{
			Control:   a.Control(),
			Stream:    a.Stream(),
			Framing:   a.Framing(),
			Device:    deviceConfig(cmd),
			Mode:      mode,
			BurstSize: burst,
		})
		if err != nil {
			return err
		}

		start := time.Now()
		err = b.Run(ctx)
		log.Println("ran for", time.Since(start).Round(time.Second).String())
		log.Println("control plane:", b.ControlStats().String())
		log.Println("stream plane:", b.StreamStats().String())
		if err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}
