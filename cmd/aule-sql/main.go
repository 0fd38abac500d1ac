package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// globalFlags override settings and environment for a single invocation
type globalFlags struct {
	driver      string
	dbPath      string
	historyPath string
	verbose     bool
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "aule-sql",
		Short:         "Ask questions about a SQL database in plain language",
		Long:          "aule-sql answers natural-language questions by letting a model explore and query a SQLite or DuckDB database.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&flags.driver, "driver", "", "database driver: sqlite or duckdb")
	rootCmd.PersistentFlags().StringVar(&flags.dbPath, "db", "", "database file to query (\":memory:\" for a scratch database)")
	rootCmd.PersistentFlags().StringVar(&flags.historyPath, "history", "", "DuckDB file holding run history and settings")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log at debug level")

	rootCmd.AddCommand(newAskCommand(flags))
	rootCmd.AddCommand(newBatchCommand(flags))
	rootCmd.AddCommand(newExploreCommand(flags))
	rootCmd.AddCommand(newSeedCommand(flags))
	rootCmd.AddCommand(newServeCommand(flags))
	rootCmd.AddCommand(newHistoryCommand(flags))

	return rootCmd
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
