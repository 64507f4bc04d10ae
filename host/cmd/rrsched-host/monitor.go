package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"rrsched/host/monitor"
	"rrsched/host/serial"
)

func newMonitorCmd() *cobra.Command {
	var (
		device string
		baud   int
		file   string
	)

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Decode scheduler telemetry from a serial port or a capture file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				src  io.ReadCloser
				opts []monitor.Option
			)
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("open capture: %w", err)
				}
				src = f
			} else {
				cfg := serial.DefaultConfig(device)
				cfg.Baud = baud
				port, err := serial.Open(cfg)
				if err != nil {
					return err
				}
				src = port
				opts = append(opts, monitor.WithFollow(0))
				logger.Info().Str("device", device).Int("baud", baud).Msg("listening")
			}
			defer src.Close()

			m := monitor.New(logger, opts...)
			if err := m.Run(cmd.Context(), src); err != nil {
				return err
			}

			printSummary(m.Summary())
			return nil
		},
	}

	cmd.Flags().StringVarP(&device, "device", "d", "/dev/ttyACM0", "Serial device path")
	cmd.Flags().IntVar(&baud, "baud", serial.DefaultBaud, "Baud rate (ignored for USB CDC)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read a capture written by simulate --telemetry-out instead of a device")
	return cmd
}

func printSummary(s monitor.Summary) {
	fmt.Printf("Events:   %d in %d frames\n", s.Events, s.Decoder.Frames)
	if s.Decoder.Resyncs > 0 || s.Decoder.SeqGaps > 0 {
		fmt.Printf("Link:     %d resyncs, %d lost frames\n", s.Decoder.Resyncs, s.Decoder.SeqGaps)
	}
	fmt.Println("Tasks:")
	for _, t := range s.Tasks {
		state := "active"
		if t.Deleted {
			state = "deleted"
		}
		fmt.Printf("  %3d runs=%-6d faults=%-3d last=%ds %s\n", t.ID, t.Runs, t.Faults, t.LastSecond, state)
	}
}
