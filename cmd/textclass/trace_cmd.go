package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/themobileprof/textclass/internal/trace"
)

func traceCmd() *cobra.Command {
	var last int
	cmd := &cobra.Command{
		Use:   "trace [file]",
		Short: "Show per-stage timings from a trace file",
		Long:  "Show recorded calls from a trace file (default: trace_path from the config).",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := app.cfg.TracePath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no trace file: pass one or set trace_path")
			}

			journeys, err := trace.Read(path)
			if err != nil {
				return err
			}
			if last > 0 && len(journeys) > last {
				journeys = journeys[len(journeys)-last:]
			}

			out := cmd.OutOrStdout()
			for _, j := range journeys {
				fmt.Fprintf(out, "%s %s %s\n",
					subtle(j.Timestamp.Local().Format(time.DateTime)),
					header(j.Outcome),
					fmt.Sprintf("%q", j.Query))
				for _, s := range j.Steps {
					fmt.Fprintf(out, "    %-10s %8dµs\n", s.Stage, s.DurationUs)
				}
				fmt.Fprintf(out, "    %-10s %8dµs  (%d tokens)\n", "total", j.DurationUs, j.Tokens)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&last, "last", "n", 10, "show only the last n calls (0 = all)")
	return cmd
}
