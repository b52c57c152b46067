package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/castellanodev/ragserve/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file interactively",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(cfgFile); err == nil {
			return fmt.Errorf("%s already exists; remove it first to reconfigure", cfgFile)
		}

		cfg, err := config.RunWizard()
		if err != nil {
			return err
		}
		if err := cfg.Save(cfgFile); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}

		fmt.Printf("Wrote %s\n", cfgFile)
		fmt.Println("Set the API key for your provider (e.g. GEMINI_API_KEY) and run `ragserve server`.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
