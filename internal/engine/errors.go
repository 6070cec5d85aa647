// Package engine implements the shard-selecting cache façade (component
// C4): TTL policy, stats aggregation, and the public Set/Get/Delete/Flush
// operations that internal/protocol dispatches into.
//
// © 2025 hinotetsu authors. MIT License.
package engine

import "errors"

// Error taxonomy, per spec.md §7. internal/protocol maps each to its wire
// response via errors.Is; callers outside this package never see anything
// but these sentinels (wrapped with fmt.Errorf("%w: ...") where extra
// context helps a log line, never in a way that breaks errors.Is).
var (
    // ErrNotFound: key absent, deleted, or expired.
    ErrNotFound = errors.New("engine: not found")

    // ErrOutOfMemory: the shard's arena or slab could not satisfy an
    // allocation. The command fails with prior state unchanged.
    ErrOutOfMemory = errors.New("engine: out of memory")

    // ErrBadArg: empty key, over-length key, or an over-length value.
    ErrBadArg = errors.New("engine: bad argument")

    // ErrTooSmall signals the fill-into-buffer Get variant's caller that its
    // scratch buffer is undersized. internal/protocol's Parser grows its
    // per-connection scratch buffer to the reported length and retries
    // rather than ever returning this past its own boundary.
    ErrTooSmall = errors.New("engine: buffer too small")

    // ErrProtocol: reserved for protocol-level argument validation that
    // internal/protocol performs itself before calling into the engine;
    // kept here so the full taxonomy from §7 lives in one place.
    ErrProtocol = errors.New("engine: protocol error")

    // ErrIO: an internal inconsistency the probing code could not
    // reconcile (e.g. a corrupt slot state). Fatal to the operation, not
    // to the process; stored data is unmodified.
    ErrIO = errors.New("engine: internal I/O error")
)
