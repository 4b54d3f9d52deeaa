package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "golinktool",
	Short:        "FPGA link bridge tool",
	Long:         `Control, monitor and characterize the dual-plane FPGA link`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) {
	rootCmd.ExecuteContext(ctx)
}

const (
	flagPort       = "port"
	flagBaudrate   = "baudrate"
	flagDebug      = "debug"
	flagAdapter    = "adapter"
	flagExpectedID = "expected-id"
	flagSoftID     = "soft-identity"
)

func init() {
	log.SetFlags(log.Lshortfile | log.LstdFlags)

	pf := rootCmd.PersistentFlags()
	pf.StringP(flagPort, "p", "", "com-port of the serial bridge")
	pf.IntP(flagBaudrate, "b", 921600, "baudrate")
	pf.BoolP(flagDebug, "d", false, "debug mode")
	pf.StringP(flagAdapter, "a", "", "what adapter to use, empty = prompt")
	pf.Uint8(flagExpectedID, 0xA7, "expected device identity register value")
	pf.Bool(flagSoftID, false, "warn instead of fail on identity mismatch")
}
