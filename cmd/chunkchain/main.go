package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"chunkchain/internal/version"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	dataDir    string
	logLevel   string
	logJSON    bool
	strategy   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "chunkchain",
		Short: "Variable-order Markov text generator",
		Long: `chunkchain stores text samples, breaks them into overlapping chunks of
characters or tokens, and generates new text by walking the chunk tables.

Samples are analysed once per strategy; generation then picks a random seed
chunk and extends it one atom at a time, weighted by how often each
continuation appeared in the sample.`,
		Version:       version.Full(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file path (default {data-dir}/config/chunkchain.json)")
	flags.StringVar(&opts.dataDir, "data-dir", "", "data directory (default $CHUNKCHAIN_DATA_DIR or ~/.chunkchain)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")
	flags.BoolVar(&opts.logJSON, "log-json", false, "emit logs as JSON")
	flags.StringVar(&opts.strategy, "strategy", "", "chunk strategy: word_chunk or sentence_chunk (overrides config)")

	cmd.AddCommand(
		samplesCmd(opts),
		analyseCmd(opts),
		generateCmd(opts),
		tokensCmd(opts),
		settingsCmd(opts),
		serveCmd(opts),
		maintenanceCmd(opts),
		backupCmd(opts),
		versionCmd(),
	)

	return cmd
}

func versionCmd() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			buildInfo := version.GetBuildInfo()
			if outputJSON {
				return writeJSON(cmd.OutOrStdout(), buildInfo)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "chunkchain %s\n", version.Full())
			if buildInfo.GitCommit != "unknown" {
				fmt.Fprintf(out, "Git commit: %s\n", buildInfo.GitCommit)
			}
			if buildInfo.GitTag != "" {
				fmt.Fprintf(out, "Git tag: %s\n", buildInfo.GitTag)
			}
			if buildInfo.GitDirty {
				fmt.Fprintln(out, "Git status: dirty (uncommitted changes)")
			}
			if buildInfo.BuildDate != "unknown" {
				fmt.Fprintf(out, "Build date: %s\n", buildInfo.BuildDate)
			}
			fmt.Fprintf(out, "Go version: %s\n", buildInfo.GoVersion)
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
