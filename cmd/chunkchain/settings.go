package main

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"chunkchain/internal/settings"
)

func settingsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change stored generation settings",
		Long: `Stored settings replace the configured generation defaults for every
request that does not set them itself.

Keys:
  chunk_size   "all" or a positive chunk size
  output_size  atoms generated per chunk size`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				stored, err := a.settings.All(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "KEY\tVALUE\tSOURCE")
				for _, key := range settings.Keys() {
					value, source := stored[key], "stored"
					if _, ok := stored[key]; !ok {
						value, source = a.configDefault(key), "config"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\n", key, value, source)
				}
				return w.Flush()
			})
		},
	}

	cmd.AddCommand(settingsGetCmd(opts), settingsSetCmd(opts), settingsUnsetCmd(opts))
	return cmd
}

// configDefault is the value used for key when nothing is stored.
func (a *app) configDefault(key string) string {
	switch key {
	case settings.KeyChunkSize:
		return a.cfg.Generation.DefaultChunkSize
	case settings.KeyOutputSize:
		return strconv.Itoa(a.cfg.Generation.DefaultOutputLength)
	}
	return ""
}

func settingsGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print the effective value of a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(settings.Keys(), args[0]) {
				return fmt.Errorf("%w: %s", settings.ErrUnknownSetting, args[0])
			}
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				value, ok, err := a.settings.Get(ctx, args[0])
				if err != nil {
					return err
				}
				if !ok {
					value = a.configDefault(args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), value)
				return nil
			})
		},
	}
}

func settingsSetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				if err := a.settings.Set(ctx, args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", a.styles.Success.Render("Set"), args[0])
				return nil
			})
		},
	}
}

func settingsUnsetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unset <key>",
		Short: "Remove a stored setting so the config default applies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				if err := a.settings.Unset(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", a.styles.Success.Render("Unset"), args[0])
				return nil
			})
		},
	}
}
