// Command hinotetsud is the TCP server binary: flag parsing, banner,
// signal wiring, and daemonize live here and only here (spec.md §1's
// Non-goals keep them out of internal/).
//
// Grounded on hinotetsud.c's main()/print_banner()/daemonize() and the
// teacher's examples/basic for the admin HTTP wiring; flags use
// github.com/spf13/pflag in the style of the pack's calvinalkan-agent-task.
//
// © 2025 hinotetsu authors. MIT License.
package main

import (
    "context"
    "fmt"
    "os"
    "os/signal"
    "syscall"

    "github.com/prometheus/client_golang/prometheus"
    flag "github.com/spf13/pflag"
    "go.uber.org/zap"

    "github.com/arena-kv/hinotetsu/internal/engine"
    "github.com/arena-kv/hinotetsu/internal/server"
)

const banner = `
  ╦ ╦╦╔╗╔╔═╗╔╦╗╔═╗╔╦╗╔═╗╦ ╦
  ╠═╣║║║║║ ║ ║ ║╣  ║ ╚═╗║ ║
  ╩ ╩╩╝╚═╚═╝ ╩ ╚═╝ ╩ ╚═╝╚═╝
  Key-Value Cache (memcached text protocol subset)
  Port: %d | Memory: %d MB%s

`

func main() {
    os.Exit(run())
}

func run() int {
    var (
        port      = flag.IntP("port", "p", 11211, "TCP port to listen on")
        memoryMB  = flag.IntP("memory", "m", 64, "memory budget in megabytes")
        daemonize = flag.BoolP("daemon", "d", false, "detach from the controlling terminal")
        adminAddr = flag.String("admin-addr", "", "optional admin HTTP address (metrics, pprof, snapshot), e.g. :6060")
    )
    flag.Parse()

    // hinotetsud.c ignores SIGPIPE explicitly; Go's net package already
    // never delivers it for socket writes (write failures surface as
    // EPIPE errors instead), so this is parity-for-the-reader, not a
    // functional requirement.
    signal.Ignore(syscall.SIGPIPE)

    if *daemonize {
        if os.Getenv("HINOTETSUD_DAEMONIZED") == "" {
            if err := reexecDetached(); err != nil {
                fmt.Fprintf(os.Stderr, "daemonize: %v\n", err)
                return 1
            }
            return 0
        }
    }

    adminSuffix := ""
    if *adminAddr != "" {
        adminSuffix = fmt.Sprintf(" | Admin: %s", *adminAddr)
    }
    fmt.Fprintf(os.Stderr, banner, *port, *memoryMB, adminSuffix)

    logger, err := zap.NewProduction()
    if err != nil {
        fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
        return 1
    }
    defer logger.Sync()

    reg := prometheus.NewRegistry()
    eng, err := engine.Open(
        engine.WithPoolBytes(int64(*memoryMB)<<20),
        engine.WithLogger(logger),
        engine.WithMetrics(reg),
    )
    if err != nil {
        logger.Error("engine open failed", zap.Error(err))
        return 1
    }

    addr := fmt.Sprintf(":%d", *port)
    srv := server.New(addr, *adminAddr, eng, reg, logger)

    ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer cancel()

    logger.Info("hinotetsud starting", zap.Int("port", *port), zap.Int("memory_mb", *memoryMB))
    if err := srv.Run(ctx); err != nil {
        logger.Error("server exited with error", zap.Error(err))
        return 1
    }
    logger.Info("hinotetsud shut down cleanly")
    return 0
}

// reexecDetached implements -d. Go cannot safely fork() a multi-threaded
// runtime the way hinotetsud.c's daemonize() does, so instead it re-execs
// itself with stdio redirected to /dev/null and Setsid set, then the
// parent exits immediately — externally equivalent (detached from the
// controlling terminal, parent exits 0) even though the mechanism differs.
func reexecDetached() error {
    devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
    if err != nil {
        return err
    }
    defer devNull.Close()

    exe, err := os.Executable()
    if err != nil {
        return err
    }

    attr := &os.ProcAttr{
        Env:   append(os.Environ(), "HINOTETSUD_DAEMONIZED=1"),
        Files: []*os.File{devNull, devNull, devNull},
        Sys:   &syscall.SysProcAttr{Setsid: true},
    }

    proc, err := os.StartProcess(exe, os.Args, attr)
    if err != nil {
        return err
    }
    return proc.Release()
}
