// simdex is the CLI driver for the document similarity index. It is
// a thin wrapper around the orchestrator library: the exit-code
// contract (0 success, 1 user error, 2 store error), flag parsing,
// and output formatting live here; every invariant lives in
// internal/orchestrator.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/simdex/simdex/internal/config"
	"github.com/simdex/simdex/internal/orchestrator"
	"github.com/simdex/simdex/internal/ui"
	"github.com/simdex/simdex/internal/web"
)

var (
	version = "0.1.0-dev"

	storePath  string
	configFile string
	author     string
	category   string
	topK       int
	webPort    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "simdex",
		Short: "simdex - near-duplicate document similarity index",
		Long: `simdex turns raw text into a MinHash signature, indexes it with
Locality-Sensitive Hashing for sub-linear candidate retrieval, and
reports a per-query uniqueness score against a growing corpus.`,
	}

	rootCmd.PersistentFlags().StringVar(&storePath, "store", "data/simdex.db", "path to the SQLite store")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a YAML config file overlaying defaults")

	rootCmd.AddCommand(versionCmd(), addCmd(), checkCmd(), listCmd(), deleteCmd(), batchAddCmd(), watchCmd(), webCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an orchestrator error to the CLI's exit contract:
// 0 success, 1 user error, 2 store error.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, orchestrator.ErrStore) {
		return 2
	}
	return 1
}

func openIndex() (*orchestrator.Index, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if storePath != "" {
		cfg.StorePath = storePath
	}
	return orchestrator.New(cfg, slog.Default())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("simdex version %s\n", version)
		},
	}
}

func addCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <file>",
		Short: "add a document to the corpus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := openIndex()
			if err != nil {
				return err
			}
			defer idx.Close()

			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			title, _ := cmd.Flags().GetString("title")
			if title == "" {
				title = args[0]
			}

			id, err := idx.Add(orchestrator.AddInput{
				Title:    title,
				Content:  string(content),
				Author:   author,
				Filename: args[0],
				Category: category,
			})
			if err != nil {
				return err
			}

			fmt.Printf("added document %d\n", id)
			return nil
		},
	}
	cmd.Flags().String("title", "", "document title (defaults to the file path)")
	cmd.Flags().StringVar(&author, "author", "", "document author")
	cmd.Flags().StringVar(&category, "category", "", "document category (default uncategorized)")
	return cmd
}

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <file>",
		Short: "check a document against the corpus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := openIndex()
			if err != nil {
				return err
			}
			defer idx.Close()

			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			rep, err := idx.Check(string(content), topK)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		},
	}
	cmd.Flags().IntVar(&topK, "top-k", 5, "number of similar documents to report")
	return cmd
}

func listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "list corpus documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := openIndex()
			if err != nil {
				return err
			}
			defer idx.Close()

			var filter *orchestrator.ListFilter
			if category != "" {
				filter = &orchestrator.ListFilter{Category: category}
			}

			docs, err := idx.List(filter)
			if err != nil {
				return err
			}

			for _, d := range docs {
				fmt.Printf("%d\t%s\t%s\t%s\n", d.ID, d.Title, d.Category, d.UploadDate.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	return cmd
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "delete a document and cascade its fingerprint and bucket rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := openIndex()
			if err != nil {
				return err
			}
			defer idx.Close()

			var id uint64
			if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
				return fmt.Errorf("invalid document id %q: %w", args[0], err)
			}

			ok, err := idx.Delete(id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no document with id %d", id)
			}

			fmt.Printf("deleted document %d\n", id)
			return nil
		},
	}
}

// batchAddCmd ingests a JSON manifest of documents in one run, each
// entry shaped like {"title":..., "path":..., "author":..., "category":...}.
// It reads the manifest with gjson rather than unmarshaling into a
// struct, since the manifest is a loosely-typed, externally-authored
// file and individual malformed entries should be skipped with a
// warning rather than aborting the whole batch.
func batchAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch-add <manifest.json>",
		Short: "add every document listed in a JSON manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := openIndex()
			if err != nil {
				return err
			}
			defer idx.Close()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			if !gjson.ValidBytes(data) {
				return fmt.Errorf("%s is not valid JSON", args[0])
			}

			entries := gjson.ParseBytes(data).Array()
			added, skipped := 0, 0
			for _, e := range entries {
				path := e.Get("path").String()
				if path == "" {
					fmt.Fprintln(os.Stderr, "skipping manifest entry with no path")
					skipped++
					continue
				}

				content, err := os.ReadFile(path)
				if err != nil {
					fmt.Fprintf(os.Stderr, "skipping %s: %v\n", path, err)
					skipped++
					continue
				}

				title := e.Get("title").String()
				if title == "" {
					title = path
				}

				id, err := idx.Add(orchestrator.AddInput{
					Title:    title,
					Content:  string(content),
					Author:   e.Get("author").String(),
					Filename: path,
					Category: e.Get("category").String(),
				})
				if err != nil {
					fmt.Fprintf(os.Stderr, "failed to add %s: %v\n", path, err)
					skipped++
					continue
				}
				fmt.Printf("added document %d (%s)\n", id, path)
				added++
			}

			fmt.Printf("batch complete: %d added, %d skipped\n", added, skipped)
			return nil
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "live TUI view of corpus size and per-band bucket occupancy",
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := openIndex()
			if err != nil {
				return err
			}
			defer idx.Close()

			return ui.Run(idx)
		},
	}
}

func webCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "web",
		Short: "start the REST + websocket driver",
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := openIndex()
			if err != nil {
				return err
			}
			defer idx.Close()

			srv := web.NewServer(idx)
			return srv.Start(webPort)
		},
	}
	cmd.Flags().StringVarP(&webPort, "port", "p", ":9090", "listen address")
	return cmd
}
