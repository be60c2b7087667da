package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/23skdu/longbow-gauge/internal/backend"
	"github.com/23skdu/longbow-gauge/internal/bench"
)

func newRunCmd() *cobra.Command {
	var (
		seqLen     int
		framework  string
		batchSize  int
		iterations int
		numThreads int
		doProfile  bool
	)

	cmd := &cobra.Command{
		Use:   "run MODEL",
		Short: "Run one benchmark and print the result record",
		Long: fmt.Sprintf(`Run a single benchmark: setup, one untimed warm-up forward pass, then
the timed loop. Exactly one JSON result record is written to stdout on
success; any failure aborts the run with no output record.

Supported frameworks: %s.`, strings.Join(backend.Names(), ", ")),
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg := bench.Config{
				Model:      args[0],
				SeqLen:     seqLen,
				BatchSize:  batchSize,
				Iterations: iterations,
				NumThreads: numThreads,
				Framework:  framework,
				Profile:    doProfile,
			}

			runner := bench.NewRunner(backend.Registry())
			res, err := runner.Run(cfg)
			if err != nil {
				return err
			}
			return bench.NewReporter(os.Stdout).Emit(res)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&seqLen, "seq-len", 0,
		"Sequence length (required)")
	flags.StringVar(&framework, "framework", backend.DefaultFramework,
		"Backend to benchmark")
	flags.IntVar(&batchSize, "batch-size", 1,
		"Batch size")
	flags.IntVarP(&iterations, "iterations", "n", 10000,
		"Timed iteration count")
	flags.IntVar(&numThreads, "num-threads", 1,
		"Backend thread count")
	flags.BoolVar(&doProfile, "profile", false,
		"Write profiling artifacts (native engine only)")

	cobra.CheckErr(cmd.MarkFlagRequired("seq-len"))

	return cmd
}
