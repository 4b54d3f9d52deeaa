package cmd

import (
	"fmt"
	"log"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(ledsCmd)
	rootCmd.AddCommand(displayCmd)
}

var ledsCmd = &cobra.Command{
	Use:   "leds <pattern>",
	Short: "set the LED output register, e.g. leds 0xAA",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pattern, err := strconv.ParseUint(args[0], 0, 16)
		if err != nil {
			return fmt.Errorf("invalid pattern %q: %w", args[0], err)
		}
		ctx := cmd.Context()
		a, dev, err := initLink(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if pattern > 0xFF {
			err = dev.SetLEDs16(uint16(pattern))
		} else {
			err = dev.SetLEDs(uint8(pattern))
		}
		if err != nil {
			return err
		}

		sw, err := dev.Switches16()
		if err != nil {
			return err
		}
		log.Printf("switches: %016b", sw)
		return nil
	},
}

var displayCmd = &cobra.Command{
	Use:   "display <value>",
	Short: "show a value 0-99 on the seven segment display",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		val, err := strconv.ParseUint(args[0], 10, 8)
		if err != nil || val > 99 {
			return fmt.Errorf("value must be 0-99")
		}
		ctx := cmd.Context()
		a, dev, err := initLink(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return dev.SetDisplay(uint8(val))
	},
}
