package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/myrjola/surveycall/internal/errors"
)

// CallLog is the log handle of a single call. When a log directory is configured every record is also written to a
// dedicated file so that a call can be reviewed in isolation afterwards.
type CallLog struct {
	Logger *slog.Logger
	Path   string

	file      *os.File
	closeOnce sync.Once
}

// OpenCallLog creates the call log. With an empty dir the returned handle only forwards to base.
func OpenCallLog(dir, callID, caller string, base *slog.Logger) (*CallLog, error) {
	if dir == "" {
		return &CallLog{Logger: base}, nil //nolint:exhaustruct // no file sink
	}
	if err := os.MkdirAll(dir, 0o750); err != nil { //nolint:mnd // rwxr-x---
		return nil, errors.Wrap(err, "create call log directory", slog.String("dir", dir))
	}

	name := fmt.Sprintf("survey_%s_%s_%s.log", time.Now().Format("20060102_150405"), cleanNumber(caller), callID)
	path := filepath.Join(dir, name)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640) //nolint:mnd // rw-r-----
	if err != nil {
		return nil, errors.Wrap(err, "open call log", slog.String("path", path))
	}

	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	})
	logger := slog.New(teeHandler{handlers: []slog.Handler{base.Handler(), NewContextHandler(fileHandler)}})
	logger.Info("call log created", slog.String("path", path))

	return &CallLog{Logger: logger, Path: path, file: file}, nil //nolint:exhaustruct // closeOnce zero value
}

// Close releases the file sink. It is safe to call more than once.
func (l *CallLog) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if l.file != nil {
			err = l.file.Close()
		}
	})
	if err != nil {
		return errors.Wrap(err, "close call log", slog.String("path", l.Path))
	}
	return nil
}

func cleanNumber(number string) string {
	return strings.NewReplacer("+", "", "-", "", " ", "").Replace(number)
}

// teeHandler fans records out to several handlers.
type teeHandler struct {
	handlers []slog.Handler
}

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return teeHandler{handlers: handlers}
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return teeHandler{handlers: handlers}
}
