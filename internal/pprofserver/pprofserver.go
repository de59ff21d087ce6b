package pprofserver

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/myrjola/surveycall/internal/errors"
)

func Handle(mux *http.ServeMux) {
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
}

func newServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	Handle(mux)
	return mux
}

func newServer(addr string) *http.Server {
	return &http.Server{ //nolint:exhaustruct // profiling requests may take long, no timeouts
		Addr:              addr,
		Handler:           newServeMux(),
		ReadHeaderTimeout: time.Second,
	}
}

// Launch a standard pprof server at addr. Keep addr on a loopback interface so that it's not open to the world.
func Launch(addr string, logger *slog.Logger) {
	go func() {
		logger.Info("starting pprof server", slog.String("pprof_addr", addr))
		if err := newServer(addr).ListenAndServe(); err != nil {
			err = errors.Wrap(err, "pprof listen", slog.String("addr", addr))
			logger.LogAttrs(context.Background(), slog.LevelError, "pprof server stopped", errors.SlogError(err))
		}
	}()
}
