package cmd

import (
	"context"
	"log"
	"time"

	"github.com/fpgabridge/golink"
	"github.com/fpgabridge/golink/adapter"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

// openAdapter resolves the adapter flag, prompting when unset, and opens it.
func openAdapter(ctx context.Context, cmd *cobra.Command) (adapter.Adapter, error) {
	name, err := cmd.Flags().GetString(flagAdapter)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = selectAdapter()
	}
	port, err := cmd.Flags().GetString(flagPort)
	if err != nil {
		return nil, err
	}
	baudrate, err := cmd.Flags().GetInt(flagBaudrate)
	if err != nil {
		return nil, err
	}
	debug, err := cmd.Flags().GetBool(flagDebug)
	if err != nil {
		return nil, err
	}

	dev, err := adapter.New(name, &adapter.Config{
		Port:     port,
		Baudrate: baudrate,
		Debug:    debug,
	})
	if err != nil {
		return nil, err
	}
	if err := dev.Open(ctx); err != nil {
		return nil, err
	}
	return dev, nil
}

func selectAdapter() string {
	prompt := promptui.Select{
		Label:    "Select adapter",
		HideHelp: true,
		Items:    adapter.ListAdapterStrings(),
	}
	_, result, err := prompt.Run()
	if err != nil {
		log.Fatalf("Prompt failed %v\n", err)
	}
	return result
}

func deviceConfig(cmd *cobra.Command) *golink.DeviceConfig {
	cfg := golink.DefaultDeviceConfig()
	if id, err := cmd.Flags().GetUint8(flagExpectedID); err == nil {
		cfg.ExpectedID = id
	}
	if soft, err := cmd.Flags().GetBool(flagSoftID); err == nil {
		cfg.SoftIdentity = soft
	}
	if debug, err := cmd.Flags().GetBool(flagDebug); err == nil {
		cfg.Debug = debug
	}
	return cfg
}

// initLink opens the configured adapter and initializes the device on its
// control plane.
func initLink(ctx context.Context, cmd *cobra.Command) (adapter.Adapter, *golink.Device, error) {
	a, err := openAdapter(ctx, cmd)
	if err != nil {
		return nil, nil, err
	}
	dev, err := golink.InitWithRetry(ctx, a.Control(), deviceConfig(cmd), 3, 100*time.Millisecond)
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, dev, nil
}
