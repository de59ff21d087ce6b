package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/myrjola/surveycall/internal/ai"
	"github.com/myrjola/surveycall/internal/call"
	"github.com/myrjola/surveycall/internal/envstruct"
	"github.com/myrjola/surveycall/internal/errors"
	"github.com/myrjola/surveycall/internal/logging"
	"github.com/myrjola/surveycall/internal/metrics"
	"github.com/myrjola/surveycall/internal/notify"
	"github.com/myrjola/surveycall/internal/pprofserver"
	"github.com/myrjola/surveycall/internal/repositories"
	"github.com/myrjola/surveycall/internal/scheduler"
	"github.com/myrjola/surveycall/internal/sqlite"
	"github.com/myrjola/surveycall/internal/telephony"
)

type config struct {
	// Addr is the address to listen on. It's possible to choose the address dynamically with localhost:0.
	Addr string `env:"SURVEYCALL_ADDR" envDefault:"localhost:4000"`
	// SqliteURL is the URL to the SQLite database. You can use ":memory:" for an ethereal in-memory database.
	SqliteURL string `env:"SURVEYCALL_SQLITE_URL" envDefault:"./surveycall.sqlite3"`
	// PprofAddr is the address the pprof server listens on. Empty disables it.
	PprofAddr string `env:"SURVEYCALL_PPROF_ADDR" envDefault:""`
	// ToolSecret protects the tool webhook. Empty disables the check.
	ToolSecret          string        `env:"SURVEYCALL_TOOL_SECRET" envDefault:""`
	VoiceServiceURL     string        `env:"VOICE_SERVICE_URL" envDefault:"http://localhost:8017"`
	SchedulerServiceURL string        `env:"SCHEDULER_SERVICE_URL" envDefault:"http://localhost:8070"`
	TelephonyURL        string        `env:"TELEPHONY_URL" envDefault:"http://localhost:8090"`
	NotifyTimeout       time.Duration `env:"SURVEYCALL_NOTIFY_TIMEOUT" envDefault:"8s"`
	FarewellBuffer      time.Duration `env:"SURVEYCALL_FAREWELL_BUFFER" envDefault:"2s"`
	AutoEndGrace        time.Duration `env:"SURVEYCALL_AUTO_END_GRACE" envDefault:"20s"`
	MaxCallDuration     time.Duration `env:"SURVEYCALL_MAX_CALL_DURATION" envDefault:"8m"`
	// CallRetention keeps finalized calls reachable for late tool invocations.
	CallRetention time.Duration `env:"SURVEYCALL_CALL_RETENTION" envDefault:"5m"`
	// LogDir receives one log file per call. Empty disables per-call files.
	LogDir        string `env:"SURVEYCALL_LOG_DIR" envDefault:""`
	FarewellsFile string `env:"SURVEYCALL_FAREWELLS_FILE" envDefault:""`
	Organization  string `env:"SURVEYCALL_ORGANIZATION" envDefault:""`
}

type application struct {
	logger     *slog.Logger
	cfg        config
	callConfig call.Config
	calls      *call.Registry
	surveys    *repositories.SurveyRepository
	callStore  *repositories.CallRepository
	voice      *notify.VoiceService
	scheduler  *scheduler.Client
	telephony  *telephony.Client
	prompt     ai.PromptOptions
	metrics    *metrics.Metrics
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	var cfg config
	if err := envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}
	// Live calls are only released once finalized, so every call needs a time limit.
	if cfg.MaxCallDuration <= 0 {
		return errors.New("SURVEYCALL_MAX_CALL_DURATION must be positive",
			slog.Duration("max_call_duration", cfg.MaxCallDuration))
	}

	if cfg.PprofAddr != "" {
		pprofserver.Launch(cfg.PprofAddr, logger)
	}

	db, err := sqlite.NewDatabase(ctx, cfg.SqliteURL, logger)
	if err != nil {
		return errors.Wrap(err, "open database", slog.String("url", cfg.SqliteURL))
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "close database", errors.SlogError(closeErr))
		}
	}()

	callConfig := call.DefaultConfig()
	callConfig.FarewellBuffer = cfg.FarewellBuffer
	callConfig.AutoEndGrace = cfg.AutoEndGrace
	callConfig.MaxDuration = cfg.MaxCallDuration
	if cfg.FarewellsFile != "" {
		if callConfig.Farewells, err = loadFarewells(cfg.FarewellsFile); err != nil {
			return err
		}
	}

	dispatcher := notify.NewDispatcher(256, 4, cfg.NotifyTimeout, logger) //nolint:mnd // plenty for a single node
	go dispatcher.Start()
	defer dispatcher.Stop()

	calls := call.NewRegistry(cfg.CallRetention)
	app := application{
		logger:     logger,
		cfg:        cfg,
		callConfig: callConfig,
		calls:      calls,
		surveys:    repositories.NewSurveyRepository(db, logger),
		callStore:  repositories.NewCallRepository(db, logger),
		voice:      notify.NewVoiceService(cfg.VoiceServiceURL, cfg.NotifyTimeout, dispatcher, logger),
		scheduler:  scheduler.NewClient(cfg.SchedulerServiceURL, cfg.NotifyTimeout, logger),
		telephony:  telephony.NewClient(cfg.TelephonyURL, cfg.NotifyTimeout, logger),
		prompt: ai.PromptOptions{
			AgentName:        "",
			Organization:     cfg.Organization,
			RestrictedTopics: nil,
			Template:         nil,
		},
		metrics: metrics.New(calls.Live),
	}

	return app.configureAndStartServer(ctx, cfg.Addr)
}

func loadFarewells(path string) (*call.Farewells, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open farewells file", slog.String("path", path))
	}
	defer f.Close()
	farewells, err := call.DecodeFarewells(f)
	if err != nil {
		return nil, errors.Wrap(err, "decode farewells file", slog.String("path", path))
	}
	return farewells, nil
}

func main() {
	ctx := context.Background()
	loggerHandler := logging.NewContextHandler(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.LogAttrs(ctx, slog.LevelError, "failure loading .env", errors.SlogError(err))
		os.Exit(1)
	}

	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		os.Exit(1)
	}
}
