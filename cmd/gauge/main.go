// Package main provides the CLI entry point for gauge, a cross-framework
// inference-latency benchmark harness for BERT-style encoders.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/23skdu/longbow-gauge/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		logLevel  string
		logFormat string
	)

	root := &cobra.Command{
		Use:   "gauge",
		Short: "Cross-framework inference latency benchmark",
		Long: `Gauge measures steady-state throughput (QPS) of a single BERT-style
encoder forward pass under interchangeable inference backends and emits
one structured JSON record per run on stdout.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logger.Setup(logLevel, logFormat)
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "console",
		"Log format (console or json)")

	root.AddCommand(newRunCmd())
	root.AddCommand(newExportWorkerCmd())

	return root
}
