// Package cli provides the command-line interface for sercha-chat.
package cli

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-chat/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "sercha-chat",
	Short: "Retrieval-grounded chat over your documents",
	Long: `sercha-chat serves a conversational API over ingested documents.
Questions are routed between casual chat and retrieval-grounded answering;
grounded answers fuse Postgres full-text and pgvector similarity search.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		// A missing .env file is fine, explicit env wins anyway.
		_ = godotenv.Load()
		logger.SetVerbose(verbose)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (TOML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
