package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"chunkchain/internal/chunkstore"
	"chunkchain/internal/corpus"
	"chunkchain/internal/ingest"
	"chunkchain/internal/samples"
	"chunkchain/internal/strategy"
	"chunkchain/internal/tokenizer"
)

// run opens the app, calls fn, and closes the app again.
func (o *rootOptions) run(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := o.open(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}

func samplesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "samples",
		Aliases: []string{"sample"},
		Short:   "Manage text samples",
		Long: `Add, list, show, update and delete the text samples that chunks are
built from. Deleting a sample also deletes its chunks for every strategy.`,
	}

	cmd.AddCommand(
		samplesAddCmd(opts),
		samplesListCmd(opts),
		samplesShowCmd(opts),
		samplesUpdateCmd(opts),
		samplesDeleteCmd(opts),
	)
	return cmd
}

// sourceFlags selects where sample text comes from.
type sourceFlags struct {
	file string
	url  string
	html bool
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "read text from a file (- for stdin)")
	cmd.Flags().StringVar(&f.url, "url", "", "fetch text from a web page")
	cmd.Flags().BoolVar(&f.html, "html", false, "treat --file as HTML and extract its readable text")
	cmd.MarkFlagsMutuallyExclusive("file", "url")
}

func (f *sourceFlags) set() bool {
	return f.file != "" || f.url != ""
}

// read returns the document named by the flags, or built from args, along
// with a fallback description.
func (f *sourceFlags) read(ctx context.Context, stdin io.Reader, args []string) (*ingest.Document, string, error) {
	switch {
	case f.url != "":
		doc, err := ingest.NewFetcher(nil).Fetch(ctx, f.url)
		return doc, f.url, err

	case f.file != "":
		var r io.Reader = stdin
		fallback := "stdin"
		if f.file != "-" {
			file, err := os.Open(f.file)
			if err != nil {
				return nil, "", err
			}
			defer file.Close()
			r = file
			fallback = filepath.Base(f.file)
		}

		ext := strings.ToLower(filepath.Ext(f.file))
		if f.html || ext == ".html" || ext == ".htm" {
			doc, err := ingest.FromHTML(r)
			return doc, fallback, err
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s: %w", f.file, err)
		}
		return &ingest.Document{Text: string(data)}, fallback, nil

	case len(args) > 0:
		text := strings.Join(args, " ")
		return &ingest.Document{Text: text}, excerpt(text, 40), nil

	default:
		return nil, "", fmt.Errorf("no text given: pass it as arguments or use --file or --url")
	}
}

// excerpt returns the first n runes of text on one line.
func excerpt(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n]) + "..."
}

// addedSample is the JSON shape of samples add.
type addedSample struct {
	*samples.Sample
	Analysis *corpus.Analysis `json:"analysis,omitempty"`
}

func samplesAddCmd(opts *rootOptions) *cobra.Command {
	var (
		src         sourceFlags
		description string
		analyse     bool
		outputJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "add [text...]",
		Short: "Add a text sample",
		Long: `Add a text sample from arguments, a file, or a web page.

Examples:
  chunkchain samples add -d "limerick" "There once was a man from Peru"
  chunkchain samples add --file raven.txt --analyse
  chunkchain samples add --file page.html --html
  chunkchain samples add --url https://example.com/story`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				doc, fallback, err := src.read(ctx, cmd.InOrStdin(), args)
				if err != nil {
					return err
				}
				if description == "" {
					description = doc.Description(fallback)
				}

				sample, err := a.samples.Create(ctx, description, doc.Text)
				if err != nil {
					return err
				}

				added := addedSample{Sample: sample}
				if analyse {
					results, err := analyseSamples(ctx, a, []*samples.Sample{sample})
					if err != nil {
						return err
					}
					added.Analysis = results[0]
				}

				if outputJSON {
					return writeJSON(cmd.OutOrStdout(), added)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n",
					a.styles.Success.Render("Created sample"), sample.ID, sample.Description)
				if added.Analysis != nil {
					printAnalysis(cmd.OutOrStdout(), a.styles, sample, added.Analysis)
				}
				return nil
			})
		},
	}

	src.register(cmd)
	cmd.Flags().StringVarP(&description, "description", "d", "", "sample description (default: page title, file name or text excerpt)")
	cmd.Flags().BoolVar(&analyse, "analyse", false, "build chunks right after adding")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	return cmd
}

func samplesListCmd(opts *rootOptions) *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List text samples",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				list, err := a.samples.List(ctx)
				if err != nil {
					return err
				}
				if outputJSON {
					if list == nil {
						list = []samples.Sample{}
					}
					return writeJSON(cmd.OutOrStdout(), list)
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), a.styles.Muted.Render("No samples."))
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tDESCRIPTION\tCHARS\tTOKENS\tCREATED")
				for _, s := range list {
					fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", s.ID, excerpt(s.Description, 40),
						tokenizer.CharCount(s.Text), tokenizer.TokenCount(s.Text),
						s.CreatedAt.Local().Format("2006-01-02 15:04"))
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	return cmd
}

// sampleDetail is the JSON shape of samples show.
type sampleDetail struct {
	*samples.Sample
	Chunks map[strategy.Name]map[int]int `json:"chunks"`
}

func samplesShowCmd(opts *rootOptions) *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a text sample and the chunks built for it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				sample, err := a.samples.Get(ctx, args[0])
				if err != nil {
					return err
				}

				detail := sampleDetail{Sample: sample, Chunks: map[strategy.Name]map[int]int{}}
				for _, name := range []strategy.Name{strategy.CharacterChunks, strategy.TokenChunks} {
					strat, err := strategy.New(name, a.registry)
					if err != nil {
						return err
					}
					store, err := chunkstore.NewSQLite(a.db, strat.Table())
					if err != nil {
						return err
					}
					sizes, err := store.SizesForSample(ctx, sample.ID)
					if err != nil {
						return err
					}
					detail.Chunks[name] = sizes
				}

				if outputJSON {
					return writeJSON(cmd.OutOrStdout(), detail)
				}
				printSample(cmd.OutOrStdout(), a.styles, detail)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	return cmd
}

func printSample(w io.Writer, st styles, d sampleDetail) {
	fmt.Fprintln(w, st.Title.Render(d.Description))
	fmt.Fprintf(w, "%s %s\n", st.Label.Render("ID:"), d.ID)
	fmt.Fprintf(w, "%s %s\n", st.Label.Render("Created:"), d.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "%s %s\n", st.Label.Render("Updated:"), d.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "%s %d characters, %d tokens\n", st.Label.Render("Length:"),
		tokenizer.CharCount(d.Text), tokenizer.TokenCount(d.Text))

	for _, name := range []strategy.Name{strategy.CharacterChunks, strategy.TokenChunks} {
		sizes := d.Chunks[name]
		if len(sizes) == 0 {
			fmt.Fprintf(w, "%s %s\n", st.Label.Render(string(name)+":"), st.Muted.Render("not built"))
			continue
		}
		keys := make([]int, 0, len(sizes))
		for k := range sizes {
			keys = append(keys, k)
		}
		sort.Ints(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%d:%d", k, sizes[k])
		}
		fmt.Fprintf(w, "%s %s\n", st.Label.Render(string(name)+":"), strings.Join(parts, " "))
	}

	fmt.Fprintln(w, st.Divider.Render(strings.Repeat("─", 40)))
	fmt.Fprintln(w, d.Text)
}

func samplesUpdateCmd(opts *rootOptions) *cobra.Command {
	var (
		src         sourceFlags
		description string
		analyse     bool
	)

	cmd := &cobra.Command{
		Use:   "update <id> [text...]",
		Short: "Change a sample's description or text",
		Long: `Change a sample's description or text. Replacing the text deletes the
chunks built from the old text; pass --analyse to rebuild them.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				sample, err := a.samples.Get(ctx, args[0])
				if err != nil {
					return err
				}

				textChanged := false
				if src.set() || len(args) > 1 {
					doc, _, err := src.read(ctx, cmd.InOrStdin(), args[1:])
					if err != nil {
						return err
					}
					textChanged = doc.Text != sample.Text
					sample.Text = doc.Text
				}
				if description != "" {
					sample.Description = description
				}

				if err := a.samples.Update(ctx, sample); err != nil {
					return err
				}
				if textChanged {
					if err := a.forgetAll(ctx, sample.ID); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", a.styles.Success.Render("Updated sample"), sample.ID)

				if textChanged && analyse {
					results, err := analyseSamples(ctx, a, []*samples.Sample{sample})
					if err != nil {
						return err
					}
					printAnalysis(cmd.OutOrStdout(), a.styles, sample, results[0])
				}
				return nil
			})
		},
	}

	src.register(cmd)
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description")
	cmd.Flags().BoolVar(&analyse, "analyse", false, "rebuild chunks when the text changed")
	return cmd
}

func samplesDeleteCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete samples and their chunks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(ctx context.Context, a *app) error {
				for _, id := range args {
					if err := a.samples.Delete(ctx, id); err != nil {
						return err
					}
					if err := a.forgetAll(ctx, id); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", a.styles.Success.Render("Deleted sample"), id)
				}
				return nil
			})
		},
	}
	return cmd
}

// forgetAll removes a sample's chunks from every chunk table.
func (a *app) forgetAll(ctx context.Context, sampleID string) error {
	for _, table := range []chunkstore.Table{chunkstore.WordChunks, chunkstore.SentenceChunks} {
		store, err := chunkstore.NewSQLite(a.db, table)
		if err != nil {
			return err
		}
		if err := store.DeleteAllForSample(ctx, sampleID); err != nil {
			return fmt.Errorf("failed to delete %s: %w", table, err)
		}
	}
	return nil
}
