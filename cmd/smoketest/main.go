package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/myrjola/surveycall/internal/e2etest"
	"github.com/myrjola/surveycall/internal/errors"
	"github.com/myrjola/surveycall/internal/logging"
)

// TestAPI checks that the deployment is healthy and routes tool invocations.
func TestAPI(client *e2etest.Client) error {
	ctx := context.Background()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second) //nolint:mnd // 10 seconds
	defer cancel()

	if err := client.Healthy(ctx); err != nil {
		return errors.Wrap(err, "healthy")
	}
	status, err := client.Do(ctx, http.MethodPost, "/api/calls/smoketest/tools/record_answer", "{}", nil)
	if err != nil {
		return errors.Wrap(err, "invoke tool of unknown call")
	}
	if status != http.StatusNotFound && status != http.StatusUnauthorized {
		return errors.Wrap(e2etest.ErrUnexpectedStatus, "invoke tool of unknown call", slog.Int("status", status))
	}
	return nil
}

func main() {
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)
	ctx := context.Background()

	if len(os.Args) != 2 { //nolint:mnd // we expect only hostname to be passed as argument.
		logger.LogAttrs(ctx, slog.LevelError, "usage: smoketest <hostname>")
		os.Exit(1)
	}

	var (
		hostname = os.Args[1]
		url      = "https://" + hostname
	)
	ctx = logging.WithAttrs(ctx, slog.String("hostname", url))

	if err := TestAPI(e2etest.NewClient(url, "")); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error testing api", errors.SlogError(err))
		os.Exit(1)
	}

	logger.LogAttrs(ctx, slog.LevelInfo, "Smoke test successful 🙌")
	os.Exit(0)
}
