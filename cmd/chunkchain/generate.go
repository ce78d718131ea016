package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"chunkchain/internal/corpus"
)

func generateCmd(opts *rootOptions) *cobra.Command {
	var (
		chunkSize    string
		outputLength int
		seed         uint64
		outputJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "generate <id>",
		Short: "Generate text from a sample's chunks",
		Long: `Generate text from an analysed sample. Without --chunk-size the stored
chunk_size setting applies, then the configured default; "all" produces one
text per chunk size.

Examples:
  chunkchain generate 0b6f3c2e-...
  chunkchain generate 0b6f3c2e-... --chunk-size 4 --output-length 80 --seed 42
  chunkchain generate 0b6f3c2e-... --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				svc, err := a.service(seed)
				if err != nil {
					return err
				}

				result, err := svc.Generate(ctx, corpus.Request{
					SampleID:     args[0],
					ChunkSize:    chunkSize,
					OutputLength: outputLength,
				})
				if err != nil {
					return err
				}

				if outputJSON {
					return writeJSON(cmd.OutOrStdout(), result)
				}
				printResult(cmd.OutOrStdout(), a.styles, result)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&chunkSize, "chunk-size", "k", "", `chunk size, or "all"`)
	cmd.Flags().IntVarP(&outputLength, "output-length", "n", 0, "atoms to generate per chunk size")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed for repeatable output (0 uses the configured seed)")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	return cmd
}

func printResult(w io.Writer, st styles, r *corpus.Result) {
	if r.Message != "" {
		fmt.Fprintln(w, st.Warning.Render(r.Message))
		return
	}
	if len(r.Output) == 0 {
		fmt.Fprintln(w, st.Muted.Render("No output: no chunks of the requested size."))
		return
	}
	for i, e := range r.Output {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, st.Size.Render(fmt.Sprintf("chunk size %d", e.ChunkSize)))
		fmt.Fprintln(w, st.Text.Render(e.Text))
	}
}
