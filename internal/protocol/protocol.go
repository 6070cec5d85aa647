// Package protocol implements the line-oriented command parser and
// dispatcher (component C5): finding `\r\n`-terminated command lines,
// tokenizing them, running the `set` data-block handshake, and turning the
// result into calls against internal/engine plus wire-format responses.
//
// Grounded directly on hinotetsu2d_uv.c's parse_and_dispatch/parse_token/
// parse_set_cmd/parse_single_key_cmd state machine: the two-state
// ReadingCommand/ReadingData loop, the "pending set" fields, and the exact
// command set and response strings are carried over unchanged; the pointer-
// and-length manual parsing is replaced with Go's bytes.Index and
// bytes.Fields, which make the same scan idiomatic here.
//
// © 2025 hinotetsu authors. MIT License.
package protocol

import (
    "bytes"
    "strconv"

    "github.com/arena-kv/hinotetsu/internal/engine"
)

const (
    // MaxLine bounds a command line's length before the trailing \r\n
    // (spec.md §4.5/§6; hinotetsu2d_uv.c's MAX_LINE).
    MaxLine = 4096

    // MaxKey bounds a key's length (spec.md §6).
    MaxKey = 250
)

var crlf = []byte("\r\n")

// Wire response fragments, verbatim from spec.md §4.5.
var (
    respStored          = []byte("STORED\r\n")
    respDeleted         = []byte("DELETED\r\n")
    respNotFound        = []byte("NOT_FOUND\r\n")
    respEnd             = []byte("END\r\n")
    respOK              = []byte("OK\r\n")
    respError           = []byte("ERROR\r\n")
    respOutOfMemory     = []byte("SERVER_ERROR out of memory\r\n")
    respBadDataChunk    = []byte("CLIENT_ERROR bad data chunk\r\n")
    respBadCommandLine  = []byte("CLIENT_ERROR bad command line format\r\n")
    respBadCommand      = []byte("CLIENT_ERROR bad command\r\n")
)

// state tags which half of the two-state parser a connection is in.
type state int

const (
    readingCommand state = iota
    readingData
)

// pendingSet captures a set command's header while its data block is still
// arriving (spec.md §4.5's ReadingData(key, flags, expire, bytes)).
type pendingSet struct {
    key     []byte
    exptime int64
    bytes   int
}

// Parser holds one connection's parse state. It does not own an I/O
// buffer — the caller (internal/server's Conn) feeds it a byte slice and
// receives back how many bytes were consumed and what to write out. scratch
// is a reusable per-connection buffer for the fill-into-buffer Get variant
// (spec.md §4.4), grown on ErrTooSmall and otherwise reused across gets.
type Parser struct {
    eng     *engine.Engine
    st      state
    pend    pendingSet
    quit    bool
    scratch []byte
}

// scratchInitCap is the initial size of a connection's get scratch buffer.
const scratchInitCap = 256

// New constructs a Parser dispatching into eng.
func New(eng *engine.Engine) *Parser {
    return &Parser{eng: eng, st: readingCommand, scratch: make([]byte, scratchInitCap)}
}

// Quit reports whether the connection should be closed because a quit
// command was processed.
func (p *Parser) Quit() bool { return p.quit }

// Feed consumes as many complete commands as buf holds, appending their
// responses to out, and returns the number of leading bytes of buf that
// were consumed. The caller must retain the unconsumed remainder (spec.md
// §4.5's pipelining contract: "consume as many full commands as the input
// buffer contains before returning control to the I/O layer").
func (p *Parser) Feed(buf []byte, out []byte) (consumed int, result []byte) {
    pos := 0
    for {
        if p.quit {
            break
        }
        if p.st == readingData {
            need := p.pend.bytes + 2
            if len(buf)-pos < need {
                break
            }
            data := buf[pos : pos+p.pend.bytes]
            trailer := buf[pos+p.pend.bytes : pos+need]
            out = p.dispatchSetData(out, data, trailer)
            pos += need
            p.st = readingCommand
            continue
        }

        idx := bytes.Index(buf[pos:], crlf)
        if idx < 0 {
            break
        }
        line := buf[pos : pos+idx]
        pos += idx + len(crlf)

        if len(line) > MaxLine {
            out = append(out, respBadCommandLine...)
            continue
        }
        out = p.dispatchLine(line, out)
    }
    return pos, out
}

func (p *Parser) dispatchLine(line []byte, out []byte) []byte {
    fields := bytes.Fields(line)
    if len(fields) == 0 {
        return append(out, respError...)
    }

    switch string(fields[0]) {
    case "set":
        return p.beginSet(fields, out)
    case "get":
        return p.handleGet(fields, out)
    case "delete":
        return p.handleDelete(fields, out)
    case "stats":
        if len(fields) != 1 {
            return append(out, respBadCommand...)
        }
        return p.handleStats(out)
    case "flush_all":
        if len(fields) != 1 {
            return append(out, respBadCommand...)
        }
        p.eng.Flush()
        return append(out, respOK...)
    case "quit":
        p.quit = true
        return out
    default:
        return append(out, respError...)
    }
}

func (p *Parser) beginSet(fields [][]byte, out []byte) []byte {
    if len(fields) != 5 {
        return append(out, respBadCommandLine...)
    }
    key := fields[1]
    if len(key) == 0 || len(key) > MaxKey {
        return append(out, respBadCommandLine...)
    }
    // flags (fields[2]) is parsed for validation only — it is discarded
    // and re-emitted as 0 in VALUE responses (spec.md §9).
    if _, err := strconv.ParseInt(string(fields[2]), 10, 64); err != nil {
        return append(out, respBadCommandLine...)
    }
    exptime, err := strconv.ParseInt(string(fields[3]), 10, 64)
    if err != nil {
        return append(out, respBadCommandLine...)
    }
    nbytes, err := strconv.Atoi(string(fields[4]))
    if err != nil || nbytes < 0 || nbytes > p.eng.MaxValueBytes() {
        return append(out, respBadDataChunk...)
    }

    keyCopy := make([]byte, len(key))
    copy(keyCopy, key)
    if exptime < 0 {
        exptime = 0
    }
    p.pend = pendingSet{key: keyCopy, exptime: exptime, bytes: nbytes}
    p.st = readingData
    return out
}

func (p *Parser) dispatchSetData(out []byte, data, trailer []byte) []byte {
    // The C reference doesn't validate the trailer bytes exactly match
    // "\r\n"; spec.md §4.5 says implementations SHOULD. We do.
    if !bytes.Equal(trailer, crlf) {
        return append(out, respBadDataChunk...)
    }
    if err := p.eng.Set(p.pend.key, data, p.pend.exptime); err != nil {
        return append(out, responseFor(err, respOutOfMemory)...)
    }
    return append(out, respStored...)
}

func (p *Parser) handleGet(fields [][]byte, out []byte) []byte {
    if len(fields) != 2 {
        return append(out, respBadCommand...)
    }
    key := fields[1]
    n, err := p.eng.GetInto(key, p.scratch)
    if err == engine.ErrTooSmall {
        p.scratch = make([]byte, n)
        n, err = p.eng.GetInto(key, p.scratch)
    }
    if err != nil {
        return append(out, respEnd...)
    }
    value := p.scratch[:n]
    out = append(out, "VALUE "...)
    out = append(out, key...)
    out = append(out, " 0 "...)
    out = strconv.AppendInt(out, int64(len(value)), 10)
    out = append(out, crlf...)
    out = append(out, value...)
    out = append(out, crlf...)
    out = append(out, respEnd...)
    return out
}

func (p *Parser) handleDelete(fields [][]byte, out []byte) []byte {
    if len(fields) != 2 {
        return append(out, respBadCommand...)
    }
    if err := p.eng.Delete(fields[1]); err != nil {
        return append(out, respNotFound...)
    }
    return append(out, respDeleted...)
}

// responseFor maps an engine error to a wire response, falling back to
// fallback for anything not explicitly enumerated here.
func responseFor(err error, fallback []byte) []byte {
    switch {
    case err == engine.ErrOutOfMemory:
        return respOutOfMemory
    case err == engine.ErrBadArg:
        return respBadCommandLine
    default:
        return fallback
    }
}
