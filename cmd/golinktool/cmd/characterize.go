package cmd

import (
	"os"

	"github.com/fpgabridge/golink"
	"github.com/fpgabridge/golink/pkg/linkchar"
	"github.com/spf13/cobra"
)

const (
	flagQuick      = "quick"
	flagCSV        = "csv"
	flagIterations = "iterations"
	flagBERBytes   = "ber-bytes"
	flagDuration   = "duration"
	flagSkip       = "skip"
)

func init() {
	f := characterizeCmd.Flags()
	f.BoolP(flagQuick, "q", false, "quick profile, roughly ten seconds")
	f.Bool(flagCSV, false, "emit machine readable CSV instead of the summary")
	f.Int(flagIterations, 0, "override control-plane iteration count")
	f.Int(flagBERBytes, 0, "override bit error rate byte budget")
	f.Duration(flagDuration, 0, "override concurrent phase duration")
	f.StringSlice(flagSkip, nil, "tests to skip: latency, throughput, ber, concurrent")
	rootCmd.AddCommand(characterizeCmd)
}

var characterizeCmd = &cobra.Command{
	Use:   "characterize",
	Short: "run the link characterization battery",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, dev, err := initLink(ctx, cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		cfg, tests, err := characterizeConfig(cmd)
		if err != nil {
			return err
		}

		stream, err := golink.NewStream(a.Stream(), a.Framing())
		if err != nil {
			return err
		}
		engine, err := linkchar.New(cfg, linkchar.Harness{
			Device:  dev,
			Stream:  stream,
			Bus:     a.Stream(),
			Framing: a.Framing(),
		})
		if err != nil {
			return err
		}

		res := engine.Run(tests)

		if csv, _ := cmd.Flags().GetBool(flagCSV); csv {
			res.RenderCSV(os.Stdout)
		} else {
			res.Render(os.Stdout)
		}
		if !res.Pass {
			return golink.ErrVerify
		}
		return nil
	},
}

func characterizeConfig(cmd *cobra.Command) (linkchar.Config, linkchar.Test, error) {
	f := cmd.Flags()
	quick, err := f.GetBool(flagQuick)
	if err != nil {
		return linkchar.Config{}, 0, err
	}

	cfg := linkchar.DefaultConfig()
	tests := linkchar.TestAll
	if quick {
		cfg = linkchar.QuickConfig()
		tests = linkchar.TestQuick
	}

	if n, _ := f.GetInt(flagIterations); n > 0 {
		cfg.Iterations = n
	}
	if n, _ := f.GetInt(flagBERBytes); n > 0 {
		cfg.BERBytes = n
	}
	if d, _ := f.GetDuration(flagDuration); d > 0 {
		cfg.ConcurrentDuration = d
	}
	if csv, _ := f.GetBool(flagCSV); csv {
		cfg.Verbose = false
	}

	skips, _ := f.GetStringSlice(flagSkip)
	for _, s := range skips {
		switch s {
		case "latency":
			tests &^= linkchar.TestLatency
		case "throughput":
			tests &^= linkchar.TestThroughput
		case "ber":
			tests &^= linkchar.TestBER
		case "concurrent":
			tests &^= linkchar.TestConcurrent
		}
	}
	return cfg, tests, nil
}
