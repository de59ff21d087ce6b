// Package clienv carries the environment shared by the command line utilities.
package clienv

import (
	"log/slog"
	"os"

	"github.com/myrjola/surveycall/internal/errors"
	"github.com/myrjola/surveycall/internal/logging"
	"github.com/myrjola/surveycall/internal/sqlite"
	"github.com/spf13/cobra"
)

const defaultSqliteURL = "./surveycall.sqlite3"

// Logger writes to stderr so that stdout stays readable. Debug output needs --verbose.
func Logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(logging.NewContextHandler(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		AddSource:   false,
		Level:       level,
		ReplaceAttr: nil,
	})))
}

func SqliteURL(cmd *cobra.Command) string {
	if url, _ := cmd.Flags().GetString("sqlite-url"); url != "" {
		return url
	}
	if url, ok := os.LookupEnv("SURVEYCALL_SQLITE_URL"); ok && url != "" {
		return url
	}
	return defaultSqliteURL
}

// OpenDatabase opens and migrates the database selected by the flags.
func OpenDatabase(cmd *cobra.Command, logger *slog.Logger) (*sqlite.Database, error) {
	url := SqliteURL(cmd)
	db, err := sqlite.NewDatabase(cmd.Context(), url, logger)
	if err != nil {
		return nil, errors.Wrap(err, "open database", slog.String("url", url))
	}
	return db, nil
}
