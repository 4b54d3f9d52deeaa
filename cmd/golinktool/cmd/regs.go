package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/fpgabridge/golink"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(regsCmd)
}

var regsCmd = &cobra.Command{
	Use:   "regs",
	Short: "dump the mapped register space",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, dev, err := initLink(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		yellow := color.New(color.FgHiYellow).SprintfFunc()
		red := color.New(color.FgRed).SprintfFunc()

		for reg := golink.Reg(0x00); reg <= golink.RegFifoCtrl; reg++ {
			mode, ok := golink.Access(reg)
			if !ok {
				continue
			}
			val, err := dev.ReadReg(reg)
			if err != nil {
				fmt.Printf("0x%02X %s %s\n", uint8(reg), mode, red("read failed: %v", err))
				continue
			}
			fmt.Printf("0x%02X %s %s\n", uint8(reg), mode, yellow("0x%02X", val))
		}
		return nil
	},
}
