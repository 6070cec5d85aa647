// Package server implements the per-connection buffering, double-buffered
// output, and TCP listener (components C6, C7) that sit between raw
// sockets and internal/protocol's parser.
//
// Grounded directly on hinotetsu2d_uv.c's Conn struct and
// conn_append_output/conn_flush_output/read_cb: the growable input buffer,
// the double-buffered (swap-on-flush) output discipline, the
// FLUSH_THRESHOLD high-water mark, and the pending-set bridging across
// reads all carry over. libuv's callback-driven I/O is replaced with one
// goroutine per connection doing blocking reads, which is the idiomatic Go
// shape for the same thread-per-connection deployment spec.md §5 calls
// "Mode B".
//
// © 2025 hinotetsu authors. MIT License.
package server

import (
    "io"
    "net"

    "go.uber.org/zap"

    "github.com/arena-kv/hinotetsu/internal/protocol"
)

const (
    // InBufInitCap is the connection input buffer's initial capacity.
    InBufInitCap = 64 * 1024

    // WriteBufInitCap is each output buffer's initial capacity
    // (hinotetsu2d_uv.c's WRITE_BUF_INIT_CAP).
    WriteBufInitCap = 512 * 1024

    // FlushThreshold is hinotetsu2d_uv.c's FLUSH_THRESHOLD high-water mark.
    // Conn does not consult it: output is flushed once per Feed call (see
    // drain), with no flush in the middle of a pipeline.
    FlushThreshold = 256 * 1024
)

// Conn owns one accepted socket: it reads into a growable input buffer,
// feeds complete commands to a protocol.Parser, and writes responses back.
// Go's net.Conn is already full-duplex and blocking-capable, so there is no
// separate writer goroutine: the two output buffers alternate between
// flushes, and each Feed call's responses go out in one synchronous Write,
// however large a pipeline they cover.
type Conn struct {
    nc     net.Conn
    parser *protocol.Parser
    log    *zap.Logger

    in    []byte
    inLen int

    out [2][]byte
    cur int // which out buffer is being appended to
}

// NewConn wraps an accepted socket. parser must be freshly constructed for
// this connection (internal/protocol.Parser carries per-connection state).
func NewConn(nc net.Conn, parser *protocol.Parser, log *zap.Logger) *Conn {
    if log == nil {
        log = zap.NewNop()
    }
    c := &Conn{
        nc:     nc,
        parser: parser,
        log:    log,
        in:     make([]byte, InBufInitCap),
    }
    c.out[0] = make([]byte, 0, WriteBufInitCap)
    c.out[1] = make([]byte, 0, WriteBufInitCap)
    return c
}

// Serve runs the connection's read/parse/dispatch/write loop until quit,
// EOF, or an I/O error (spec.md §4.6's lifecycle). It always closes nc
// before returning; a panic while serving is recovered and logged, and only
// this connection is closed.
func (c *Conn) Serve() {
    defer c.nc.Close()
    defer func() {
        if r := recover(); r != nil {
            c.log.Error("connection panic", zap.Any("panic", r))
        }
    }()

    readBuf := make([]byte, 32*1024)
    for {
        n, err := c.nc.Read(readBuf)
        if n > 0 {
            c.appendIn(readBuf[:n])
            if !c.drain() {
                return
            }
        }
        if err != nil {
            if err != io.EOF {
                c.log.Debug("connection read error", zap.Error(err))
            }
            return
        }
        if c.parser.Quit() {
            c.flush()
            return
        }
    }
}

func (c *Conn) appendIn(b []byte) {
    need := c.inLen + len(b)
    if need > len(c.in) {
        nc := len(c.in)
        if nc == 0 {
            nc = InBufInitCap
        }
        for nc < need {
            nc <<= 1
        }
        grown := make([]byte, nc)
        copy(grown, c.in[:c.inLen])
        c.in = grown
    }
    copy(c.in[c.inLen:], b)
    c.inLen += len(b)
}

// drain feeds the accumulated input to the parser, appending responses to
// the active output buffer, then flushes — the parser has returned control
// to the loop, which per spec.md §4.6 is exactly when a flush is due.
// There is no flush in the middle of a Feed call: a pipeline consumed by one
// Feed is written in a single Write, whatever its size. Returns false on a
// write error (connection should close).
func (c *Conn) drain() bool {
    consumed, out := c.parser.Feed(c.in[:c.inLen], c.out[c.cur][:0])
    c.out[c.cur] = out

    if consumed > 0 {
        remaining := c.inLen - consumed
        copy(c.in, c.in[consumed:c.inLen])
        c.inLen = remaining
    }

    return c.flush()
}

// flush writes the active output buffer and swaps to the other one, per
// hinotetsu2d_uv.c's double-buffering discipline (here collapsed into a
// single synchronous write since Conn has no separate writer goroutine).
func (c *Conn) flush() bool {
    buf := c.out[c.cur]
    c.cur = 1 - c.cur
    c.out[c.cur] = c.out[c.cur][:0]

    if len(buf) == 0 {
        return true
    }
    if _, err := c.nc.Write(buf); err != nil {
        c.log.Debug("connection write error", zap.Error(err))
        return false
    }
    return true
}
