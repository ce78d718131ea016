package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"chunkchain/internal/corpus"
	"chunkchain/internal/samples"
)

func analyseCmd(opts *rootOptions) *cobra.Command {
	var (
		all        bool
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:     "analyse <id>... | --all",
		Aliases: []string{"analyze"},
		Short:   "Build chunks for samples",
		Long: `Build the chunk tables of each sample for the selected strategy, one table
per configured chunk size. Chunks built earlier for the same strategy are
replaced.

Examples:
  chunkchain analyse 0b6f3c2e-...
  chunkchain analyse --all --strategy sentence_chunk`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return fmt.Errorf("pass sample ids or --all, not both")
			}

			return opts.run(cmd, func(ctx context.Context, a *app) error {
				var targets []*samples.Sample
				if all {
					list, err := a.samples.List(ctx)
					if err != nil {
						return err
					}
					for i := range list {
						targets = append(targets, &list[i])
					}
				} else {
					for _, id := range args {
						s, err := a.samples.Get(ctx, id)
						if err != nil {
							return err
						}
						targets = append(targets, s)
					}
				}

				results, err := analyseSamples(ctx, a, targets)
				if err != nil {
					return err
				}

				if outputJSON {
					if results == nil {
						results = []*corpus.Analysis{}
					}
					return writeJSON(cmd.OutOrStdout(), results)
				}
				if len(results) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), a.styles.Muted.Render("No samples."))
				}
				for i, r := range results {
					printAnalysis(cmd.OutOrStdout(), a.styles, targets[i], r)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "analyse every sample")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	return cmd
}

// analyseSamples analyses each sample in order with one service.
func analyseSamples(ctx context.Context, a *app, targets []*samples.Sample) ([]*corpus.Analysis, error) {
	svc, err := a.service(0)
	if err != nil {
		return nil, err
	}

	var results []*corpus.Analysis
	for _, s := range targets {
		analysis, err := svc.Analyse(ctx, s)
		if err != nil {
			return nil, err
		}
		results = append(results, analysis)
	}
	return results, nil
}

func printAnalysis(w io.Writer, st styles, s *samples.Sample, r *corpus.Analysis) {
	fmt.Fprintf(w, "%s %s %s\n", st.Title.Render(s.Description),
		st.Muted.Render(string(r.Strategy)), st.Muted.Render(r.Duration.Round(time.Millisecond).String()))

	if len(r.Sizes) == 0 {
		fmt.Fprintf(w, "  %s\n", st.Warning.Render(fmt.Sprintf("sample has %d atoms, shorter than every chunk size", r.Atoms)))
		return
	}
	parts := make([]string, len(r.Sizes))
	for i, sz := range r.Sizes {
		parts[i] = fmt.Sprintf("%d:%d", sz.Size, sz.Unique)
	}
	fmt.Fprintf(w, "  %s %d  %s %s\n", st.Label.Render("atoms"), r.Atoms,
		st.Label.Render("unique chunks"), strings.Join(parts, " "))
}
