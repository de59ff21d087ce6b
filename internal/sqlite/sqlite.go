package sqlite

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // Enable sqlite3 driver
	"github.com/myrjola/surveycall/internal/errors"
)

//go:embed schema.sql
var schemaDefinition string

type Database struct {
	ReadWrite *sqlx.DB
	ReadOnly  *sqlx.DB
	logger    *slog.Logger
}

// NewDatabase connects to database and synchronizes the schema.
//
// It establishes two connection pools, one for read/write operations and one for read-only operations.
// Writes go through a single connection and reads through a pool, see https://github.com/mattn/go-sqlite3/issues/1179#issuecomment-1638083995
//
// The url parameter is the path to the SQLite database file or ":memory:" for an in-memory database.
func NewDatabase(ctx context.Context, url string, logger *slog.Logger) (*Database, error) {
	db, err := connect(url, logger)
	if err != nil {
		return nil, errors.Wrap(err, "connect")
	}
	if err = db.migrateTo(ctx, schemaDefinition); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "synchronize schema")
	}
	go db.StartDatabaseOptimizer(ctx)
	return db, nil
}

func connect(url string, logger *slog.Logger) (*Database, error) {
	var (
		err         error
		readWriteDB *sqlx.DB
		readDB      *sqlx.DB
	)

	// The options prefixed with underscore '_' are SQLite pragmas documented at https://www.sqlite.org/pragma.html.
	// The options without leading underscore are SQLite URI parameters documented at https://www.sqlite.org/uri.html.
	common := []string{
		// Avoids SQLITE_BUSY errors when database is under load.
		"_busy_timeout=5000",
		// Enables foreign key constraints.
		"_foreign_keys=on",
	}
	var readConfig, readWriteConfig string
	if strings.Contains(url, ":memory:") {
		// For in-memory databases, we need shared cache mode so that both pools access the same data. Every
		// database gets a unique name so that parallel tests don't share data.
		// See https://www.sqlite.org/inmemorydb.html.
		name := uuid.NewString()
		common = append(common, "mode=memory", "cache=shared")
		readWriteConfig = fmt.Sprintf("file:%s?_txlock=immediate&%s", name, strings.Join(common, "&"))
		readConfig = fmt.Sprintf("file:%s?_txlock=deferred&_query_only=true&%s", name, strings.Join(common, "&"))
	} else {
		common = append(common,
			// Write-ahead logging enables higher performance and concurrent readers.
			"_journal_mode=wal",
			// Increases performance at the cost of durability https://www.sqlite.org/pragma.html#pragma_synchronous.
			"_synchronous=normal",
		)
		readWriteConfig = fmt.Sprintf("file:%s?mode=rwc&_txlock=immediate&%s", url, strings.Join(common, "&"))
		readConfig = fmt.Sprintf("file:%s?mode=ro&_txlock=deferred&_query_only=true&%s", url, strings.Join(common, "&"))
	}

	if readWriteDB, err = sqlx.Open("sqlite3", readWriteConfig); err != nil {
		return nil, errors.Wrap(err, "open read-write database")
	}

	// SQLite allows a single writer, funnel the writes through one connection.
	readWriteDB.SetMaxOpenConns(1)
	readWriteDB.SetMaxIdleConns(1)
	readWriteDB.SetConnMaxLifetime(time.Hour)
	readWriteDB.SetConnMaxIdleTime(time.Hour)

	if readDB, err = sqlx.Open("sqlite3", readConfig); err != nil {
		_ = readWriteDB.Close()
		return nil, errors.Wrap(err, "open read database")
	}

	maxReadConns := 10
	readDB.SetMaxOpenConns(maxReadConns)
	readDB.SetMaxIdleConns(maxReadConns)
	readDB.SetConnMaxLifetime(time.Hour)
	readDB.SetConnMaxIdleTime(time.Hour)

	// Open the writer right away so that the in-memory database exists before any reader connects.
	if err = readWriteDB.Ping(); err != nil {
		_ = readWriteDB.Close()
		_ = readDB.Close()
		return nil, errors.Wrap(err, "ping read-write database")
	}

	return &Database{
		ReadWrite: readWriteDB,
		ReadOnly:  readDB,
		logger:    logger.With(slog.String("source", "sqlite")),
	}, nil
}

func (db *Database) Close() error {
	return errors.Join(
		errors.Wrap(db.ReadOnly.Close(), "close read database"),
		errors.Wrap(db.ReadWrite.Close(), "close read-write database"),
	)
}
