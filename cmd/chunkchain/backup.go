package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"chunkchain/internal/backup"
)

func backupCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up and restore the corpus",
		Long: `Create, inspect and restore .tar.gz snapshots of the corpus database and
config file.`,
	}
	cmd.AddCommand(
		backupCreateCmd(opts),
		backupListCmd(opts),
		backupRestoreCmd(opts),
	)
	return cmd
}

func backupCreateCmd(opts *rootOptions) *cobra.Command {
	var (
		output     string
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a backup archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
				defer cancel()

				result, err := backup.Create(ctx, a.db, backup.Options{
					ConfigPath:   a.configPath,
					DatabasePath: a.dbPath,
					OutputPath:   output,
				})
				if err != nil {
					return fmt.Errorf("backup failed: %w", err)
				}
				a.log.Info("backup created", "path", result.ArchivePath, "size", result.TotalSize)

				if outputJSON {
					return writeJSON(cmd.OutOrStdout(), result)
				}

				out := cmd.OutOrStdout()
				st := a.styles
				fmt.Fprintf(out, "%s %s\n", st.Success.Render("Backup created:"), result.ArchivePath)
				fmt.Fprintf(out, "%s %d\n", st.Label.Render("Files:"), result.FileCount)
				fmt.Fprintf(out, "%s %s\n", st.Label.Render("Size:"), backup.FormatBytes(result.TotalSize))
				fmt.Fprintf(out, "%s %s\n", st.Label.Render("Components:"), result.Components)
				fmt.Fprintf(out, "%s %v\n", st.Label.Render("Duration:"), result.Duration.Round(time.Millisecond))
				printWarnings(cmd, st, result.Warnings)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file path (default chunkchain-backup-YYYYMMDD-HHMMSS.tar.gz)")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output results in JSON format")
	return cmd
}

func backupListCmd(opts *rootOptions) *cobra.Command {
	var (
		outputJSON bool
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "list <archive>",
		Short: "Inspect a backup archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := backup.List(args[0])
			if err != nil {
				return fmt.Errorf("list failed: %w", err)
			}
			if outputJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}

			out := cmd.OutOrStdout()
			st := newStyles(out)
			m := result.Manifest
			fmt.Fprintln(out, st.Title.Render(args[0]))
			fmt.Fprintf(out, "%s %s\n", st.Label.Render("Created:"), m.Timestamp.Local().Format(time.RFC3339))
			fmt.Fprintf(out, "%s %s\n", st.Label.Render("Version:"), m.AppVersion)
			fmt.Fprintf(out, "%s %s\n", st.Label.Render("Components:"), m.Components)
			fmt.Fprintf(out, "%s %d samples, %d tokens, %s\n", st.Label.Render("Database:"),
				m.Database.Samples, m.Database.Tokens, backup.FormatBytes(m.Database.Size))
			if m.OriginalPaths.Database != "" {
				fmt.Fprintf(out, "%s %s\n", st.Label.Render("Source:"), st.Muted.Render(m.OriginalPaths.Database))
			}

			if verbose {
				fmt.Fprintln(out)
				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "MODE\tSIZE\tPATH")
				for _, f := range result.Files {
					fmt.Fprintf(w, "%s\t%s\t%s\n", f.Mode, backup.FormatBytes(f.Size), f.Path)
				}
				w.Flush()
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show all files in archive")
	return cmd
}

func backupRestoreCmd(opts *rootOptions) *cobra.Command {
	var (
		dryRun     bool
		force      bool
		skipConfig bool
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "restore <archive>",
		Short: "Restore the corpus from a backup archive",
		Long: `Overwrite the database, and the config file unless --skip-config is given,
with the contents of a backup archive. Files go to the locations the current
--data-dir and --config resolve to. Stop any running serve first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !dryRun && !force {
				return fmt.Errorf("restore overwrites the database; pass --force to continue or --dry-run to preview")
			}

			env, err := opts.resolve(cmd)
			if err != nil {
				return err
			}

			result, err := backup.Restore(backup.RestoreOptions{
				BackupPath:   args[0],
				DryRun:       dryRun,
				SkipConfig:   skipConfig,
				ConfigPath:   env.configPath,
				DatabasePath: env.dbPath,
			})
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}
			if !dryRun {
				env.log.Info("backup restored", "archive", args[0], "files", result.FilesRestored)
			}

			if outputJSON {
				return writeJSON(cmd.OutOrStdout(), result)
			}

			out := cmd.OutOrStdout()
			st := newStyles(out)
			if dryRun {
				fmt.Fprintln(out, st.Title.Render("Dry run, nothing written"))
				for _, p := range result.Planned {
					fmt.Fprintf(out, "  %s -> %s\n", p.Entry, p.Destination)
				}
			} else {
				fmt.Fprintln(out, st.Success.Render("Restore complete."))
				fmt.Fprintf(out, "%s %d\n", st.Label.Render("Files restored:"), result.FilesRestored)
			}
			if result.FilesSkipped > 0 {
				fmt.Fprintf(out, "%s %d\n", st.Label.Render("Files skipped:"), result.FilesSkipped)
			}
			printWarnings(cmd, st, result.Warnings)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview restore without writing files")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	cmd.Flags().BoolVar(&skipConfig, "skip-config", false, "Don't restore the config file")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output results in JSON format")
	return cmd
}

func printWarnings(cmd *cobra.Command, st styles, warnings []string) {
	for _, w := range warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", st.Warning.Render("WARNING:"), w)
	}
}
