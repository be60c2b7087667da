package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/23skdu/longbow-gauge/internal/export"
)

// newExportWorkerCmd is the subordinate export process entry point. The
// exporter re-execs this binary with this hidden subcommand so artifact
// serialization runs in a disposable process; the vocab size comes back as
// one JSON line on stdout.
func newExportWorkerCmd() *cobra.Command {
	var (
		modelID   string
		seqLen    int
		batchSize int
		outPath   string
	)

	cmd := &cobra.Command{
		Use:    export.WorkerCommand,
		Hidden: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return export.RunWorker(os.Stdout, modelID, seqLen, batchSize, outPath)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&modelID, "model", "", "Model identifier")
	flags.IntVar(&seqLen, "seq-len", 0, "Export sequence length")
	flags.IntVar(&batchSize, "batch-size", 0, "Export batch size")
	flags.StringVar(&outPath, "out", "", "Artifact output path")

	cobra.CheckErr(cmd.MarkFlagRequired("model"))
	cobra.CheckErr(cmd.MarkFlagRequired("seq-len"))
	cobra.CheckErr(cmd.MarkFlagRequired("batch-size"))
	cobra.CheckErr(cmd.MarkFlagRequired("out"))

	return cmd
}
