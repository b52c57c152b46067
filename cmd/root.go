package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ragserve",
	Short: "Retrieval-augmented question answering over your documents",
	Long: `ragserve ingests documents (PDF, DOCX, XLSX, CSV, text, markdown) into a
vector index and answers questions over them with an LLM, keeping
per-user conversation memory and producing closing reports on demand.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// .env is optional; real environments set variables directly.
		_ = godotenv.Load()
		setupLogging()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".ragserve.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// setupLogging routes structured logs to stderr so stdout stays clean for
// command output and the MCP protocol.
func setupLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}
