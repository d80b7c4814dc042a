package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/birchwood/mnemo/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "mnemo",
	Short: "Memory evolution engine for long-running AI assistants",
	Long:  "mnemo scores, consolidates, and prunes an assistant's growing memory collection. Single Go binary.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(accessCmd)
	rootCmd.AddCommand(suggestCmd)
	rootCmd.AddCommand(consolidateCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(decayCmd)
	rootCmd.AddCommand(statsCmd)
}

// openDB is a helper that opens the database for CLI commands.
func openDB() (*store.DB, error) {
	dbPath := os.Getenv("MNEMO_DB")
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
	}
	return store.Open(dbPath)
}
