package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var ingestPattern string

var ingestCmd = &cobra.Command{
	Use:   "ingest [directory]",
	Short: "Ingest a directory of documents into the vector index",
	Long: `Walks a directory, parses every supported document and indexes the
chunks. Unsupported files are skipped; parse failures are reported and do
not stop the run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) == 1 {
			root = args[0]
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger := slog.Default()
		ctx := cmd.Context()

		pipe, err := buildPipeline(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer pipe.cleanup()

		matches, err := doublestar.FilepathGlob(filepath.Join(root, ingestPattern))
		if err != nil {
			return fmt.Errorf("bad pattern %q: %w", ingestPattern, err)
		}

		var files []string
		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil || info.IsDir() {
				continue
			}
			if supportedForIngest(match) {
				files = append(files, match)
			}
		}
		if len(files) == 0 {
			fmt.Fprintf(os.Stderr, "No supported documents found under %s\n", root)
			return nil
		}

		bar := progressbar.Default(int64(len(files)), "ingesting")
		var totalChunks, failed int
		for _, path := range files {
			chunks, err := pipe.rag.IngestFile(ctx, path)
			if err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "\nfailed to ingest %s: %v\n", path, err)
			} else {
				totalChunks += chunks
			}
			bar.Add(1)
		}

		fmt.Fprintf(os.Stderr, "Ingested %d files (%d chunks, %d failed)\n", len(files)-failed, totalChunks, failed)
		return nil
	},
}

// supportedForIngest filters the walk down to extensions Load can parse.
func supportedForIngest(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".docx", ".xlsx", ".xls", ".csv", ".txt", ".md":
		return true
	default:
		return false
	}
}

func init() {
	ingestCmd.Flags().StringVar(&ingestPattern, "pattern", "**/*", "glob pattern for files to ingest")
	rootCmd.AddCommand(ingestCmd)
}
