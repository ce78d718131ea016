package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"chunkchain/internal/registry"
	"chunkchain/internal/tokenizer"
)

func tokensCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Inspect the token table",
		Long: `Inspect the token table used by the sentence_chunk strategy. Tokens are
registered when a sample is analysed with that strategy; looking them up
never registers anything.`,
	}

	cmd.AddCommand(tokensLookupCmd(opts), tokensResolveCmd(opts), tokensCountCmd(opts))
	return cmd
}

// tokenRow is one line of tokens lookup output.
type tokenRow struct {
	Token string `json:"token"`
	ID    int64  `json:"id,omitempty"`
	Known bool   `json:"known"`
}

func tokensLookupCmd(opts *rootOptions) *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "lookup <text>...",
		Short: "Split text into tokens and show their ids",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				tokens := tokenizer.Tokenize(strings.Join(args, " "))
				rows := make([]tokenRow, 0, len(tokens))
				for _, tok := range tokens {
					row := tokenRow{Token: tok}
					ids, err := a.registry.Lookup(ctx, []string{tok})
					switch {
					case err == nil:
						row.ID, row.Known = ids[0], true
					case errors.Is(err, registry.ErrUnknownToken):
					default:
						return err
					}
					rows = append(rows, row)
				}

				if outputJSON {
					return writeJSON(cmd.OutOrStdout(), rows)
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "TOKEN\tID")
				for _, row := range rows {
					id := a.styles.Muted.Render("unknown")
					if row.Known {
						id = strconv.FormatInt(row.ID, 10)
					}
					fmt.Fprintf(w, "%s\t%s\n", strconv.Quote(row.Token), id)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	return cmd
}

func tokensResolveCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <id>...",
		Short: "Print the text of token ids",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, len(args))
			for i, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid token id %q", arg)
				}
				ids[i] = id
			}

			return opts.run(cmd, func(ctx context.Context, a *app) error {
				texts, err := a.registry.Resolve(ctx, ids)
				if err != nil {
					return err
				}
				for i, text := range texts {
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", ids[i], strconv.Quote(text))
				}
				return nil
			})
		},
	}
	return cmd
}

func tokensCountCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of registered tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				n, err := registry.NewSQLiteStore(a.db).Count(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
}
