package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/castellanodev/ragserve/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing the document index to AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		pipe, err := buildPipeline(cmd.Context(), cfg, slog.Default())
		if err != nil {
			return err
		}
		defer pipe.cleanup()

		mcpserver.Version = Version
		fmt.Fprintln(os.Stderr, "ragserve MCP server started on stdio")

		srv := mcpserver.NewServer(pipe.rag)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
