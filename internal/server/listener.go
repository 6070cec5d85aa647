package server

import (
    "context"
    "net"
    "syscall"

    "go.uber.org/zap"

    "github.com/arena-kv/hinotetsu/internal/engine"
    "github.com/arena-kv/hinotetsu/internal/protocol"
)

// ListenBacklog documents the listen backlog floor spec.md §4.7 requires.
// Go's net package doesn't expose the backlog argument to listen(2)
// directly — it always passes the kernel's SOMAXCONN — which already
// exceeds this floor on every platform hinotetsu targets, so there is
// nothing to configure here; this constant exists for the reader checking
// against the spec.
const ListenBacklog = 128

// SendBufferBytes is the send-buffer size set on every accepted socket
// (spec.md §4.7; hinotetsu2d_uv.c's uv_send_buffer_size call).
const SendBufferBytes = 1 << 20

// Listener binds an IPv4 TCP port and hands every accepted connection to a
// fresh Conn running against eng (component C7).
type Listener struct {
    addr string
    eng  *engine.Engine
    log  *zap.Logger
}

// NewListener constructs a Listener for addr (host:port, or :port for all
// interfaces) dispatching into eng.
func NewListener(addr string, eng *engine.Engine, log *zap.Logger) *Listener {
    if log == nil {
        log = zap.NewNop()
    }
    return &Listener{addr: addr, eng: eng, log: log}
}

// Serve binds the listener and accepts connections until ctx is cancelled
// or a fatal accept error occurs. Each connection is served on its own
// goroutine (spec.md §5's Mode B: thread-per-connection).
func (l *Listener) Serve(ctx context.Context) error {
    lc := net.ListenConfig{
        Control: func(_, _ string, c syscall.RawConn) error {
            var ctrlErr error
            err := c.Control(func(fd uintptr) {
                ctrlErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
            })
            if err != nil {
                return err
            }
            return ctrlErr
        },
    }

    ln, err := lc.Listen(ctx, "tcp4", l.addr)
    if err != nil {
        return err
    }

    go func() {
        <-ctx.Done()
        ln.Close()
    }()

    l.log.Info("listener bound", zap.String("addr", l.addr))

    for {
        nc, err := ln.Accept()
        if err != nil {
            select {
            case <-ctx.Done():
                return nil
            default:
                return err
            }
        }
        l.configureSocket(nc)
        go l.serveConn(nc)
    }
}

func (l *Listener) configureSocket(nc net.Conn) {
    tc, ok := nc.(*net.TCPConn)
    if !ok {
        return
    }
    if err := tc.SetNoDelay(true); err != nil {
        l.log.Debug("SetNoDelay failed", zap.Error(err))
    }
    if err := tc.SetWriteBuffer(SendBufferBytes); err != nil {
        l.log.Debug("SetWriteBuffer failed", zap.Error(err))
    }
}

func (l *Listener) serveConn(nc net.Conn) {
    parser := protocol.New(l.eng)
    conn := NewConn(nc, parser, l.log)
    conn.Serve()
}
