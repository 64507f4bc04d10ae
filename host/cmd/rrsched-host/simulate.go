package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"rrsched/host/config"
	"rrsched/host/sim"
)

func newSimulateCmd() *cobra.Command {
	var (
		configPath   string
		duration     time.Duration
		telemetryOut string
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the scheduler with a simulated timer interrupt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if configPath != "" {
				loaded, err := config.Load(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if duration > 0 {
				cfg.RunFor = duration
			}

			var opts []sim.Option
			if telemetryOut != "" {
				f, err := os.Create(telemetryOut)
				if err != nil {
					return fmt.Errorf("create telemetry file: %w", err)
				}
				defer f.Close()
				opts = append(opts, sim.WithTelemetry(f))
			}

			runner, err := sim.New(cfg, logger, opts...)
			if err != nil {
				return err
			}
			report, err := runner.Run(cmd.Context())
			if err != nil {
				return err
			}

			printReport(report)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Simulator YAML config (built-in demo if empty)")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (overrides config)")
	cmd.Flags().StringVar(&telemetryOut, "telemetry-out", "", "Write telemetry frames to this file")
	return cmd
}

func printReport(r sim.Report) {
	fmt.Printf("Elapsed:  %s (%d scheduler seconds)\n", r.Elapsed.Round(time.Millisecond), r.Stats.Seconds)
	fmt.Printf("Runs:     %d\n", r.Stats.Runs)
	if r.Stats.Faults > 0 {
		fmt.Printf("Faults:   %d\n", r.Stats.Faults)
	}
	if r.Stats.TraceDropped > 0 {
		fmt.Printf("Dropped:  %d trace events\n", r.Stats.TraceDropped)
	}
	fmt.Println("Tasks:")
	for _, t := range r.Tasks {
		fmt.Printf("  %3d %-16s runs=%-6d %s\n", t.ID, t.Name, t.Runs, t.Status)
	}
}
