// Command migratetest migrates a copy of the production database to the current schema and checks that the data
// survived.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/myrjola/surveycall/internal/errors"
	"github.com/myrjola/surveycall/internal/sqlite"
	"github.com/myrjola/surveycall/internal/testhelpers"
)

func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	var (
		err       error
		start     = time.Now()
		ctx       context.Context
		sqliteURL string
		ok        bool
		cancel    context.CancelFunc
	)
	ctx = context.Background()
	ctx, cancel = context.WithTimeout(ctx, 5*time.Second) //nolint:mnd // 5 seconds

	if sqliteURL, ok = os.LookupEnv("SURVEYCALL_SQLITE_URL"); !ok {
		logger.LogAttrs(ctx, slog.LevelError, "SURVEYCALL_SQLITE_URL not set")
		cancel()
		os.Exit(1)
	}

	var db *sqlite.Database
	if db, err = sqlite.NewDatabase(ctx, sqliteURL, logger); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating database",
			slog.String("url", sqliteURL), errors.SlogError(err))
		cancel()
		os.Exit(1)
	}

	// Count the surveys and calls as a simple smoke test. A production copy always has surveys.
	var surveys, calls int
	if err = db.ReadOnly.GetContext(ctx, &surveys, `SELECT COUNT(*) FROM surveys`); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error fetching survey count", errors.SlogError(err))
		cancel()
		os.Exit(1)
	}
	if err = db.ReadOnly.GetContext(ctx, &calls, `SELECT COUNT(*) FROM calls`); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error fetching call count", errors.SlogError(err))
		cancel()
		os.Exit(1)
	}
	if surveys == 0 {
		logger.LogAttrs(ctx, slog.LevelError, "no surveys found, something is likely wrong")
		cancel()
		os.Exit(1)
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "row counts", slog.Int("surveys", surveys), slog.Int("calls", calls))

	if err = db.Close(); err != nil {
		logger.LogAttrs(ctx, slog.LevelWarn, "error closing database", errors.SlogError(err))
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "Migration test successful 🙌", slog.Duration("duration", time.Since(start)))
	cancel()
	os.Exit(0)
}
