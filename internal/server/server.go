package server

// server.go wires the TCP listener and the optional admin HTTP endpoint
// together with golang.org/x/sync/errgroup, the same "independent
// goroutines joined at shutdown" shape the teacher used for per-shard
// Close() calls — here retargeted from a single in-process cache shutdown
// to coordinating the listener goroutine, the admin-HTTP goroutine, and a
// signal-triggered graceful stop.
//
// © 2025 hinotetsu authors. MIT License.

import (
    "context"
    "net/http"

    "github.com/prometheus/client_golang/prometheus"
    "go.uber.org/zap"
    "golang.org/x/sync/errgroup"

    "github.com/arena-kv/hinotetsu/internal/engine"
)

// Server owns a Listener plus an optional admin HTTP mux.
type Server struct {
    listener *Listener
    admin    *http.Server
    log      *zap.Logger
}

// New constructs a Server for eng listening for clients on addr. If
// adminAddr is non-empty, an admin HTTP server (metrics, pprof, debug
// snapshot) is also started on it.
func New(addr string, adminAddr string, eng *engine.Engine, reg *prometheus.Registry, log *zap.Logger) *Server {
    if log == nil {
        log = zap.NewNop()
    }
    s := &Server{
        listener: NewListener(addr, eng, log),
        log:      log,
    }
    if adminAddr != "" {
        s.admin = &http.Server{
            Addr:    adminAddr,
            Handler: newAdminMux(eng, reg),
        }
    }
    return s
}

// Run blocks serving both the client listener and (if configured) the
// admin HTTP server until ctx is cancelled, then shuts both down
// gracefully. The first unexpected error from either subsystem cancels the
// group and is returned.
func (s *Server) Run(ctx context.Context) error {
    g, gctx := errgroup.WithContext(ctx)

    g.Go(func() error {
        return s.listener.Serve(gctx)
    })

    if s.admin != nil {
        g.Go(func() error {
            errCh := make(chan error, 1)
            go func() { errCh <- s.admin.ListenAndServe() }()

            select {
            case <-gctx.Done():
                return s.admin.Close()
            case err := <-errCh:
                if err == http.ErrServerClosed {
                    return nil
                }
                return err
            }
        })
    }

    return g.Wait()
}
