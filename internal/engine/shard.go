package engine

import (
    "sync"
    "time"

    "github.com/arena-kv/hinotetsu/internal/arena"
    "github.com/arena-kv/hinotetsu/internal/shardmap"
    "github.com/arena-kv/hinotetsu/internal/slab"
)

// shard owns one partition of the key space: its own arena, slab
// allocator, and open-addressing table (spec.md §3, "Shard"). The
// sync.RWMutex realises Mode B (§5): set/get/delete/flush take it
// exclusively (a get can drive incremental rehash), and only stats takes it
// for read. A caller running a single-threaded event loop
// (Mode A) simply never contends it — an uncontended sync.RWMutex costs a
// few nanoseconds, well within the no-locking spirit of §5 without forking
// the implementation in two; see DESIGN.md's open-question ledger.
type shard struct {
    mu sync.RWMutex

    idx    int
    ar     *arena.Arena
    alloc  *slab.Allocator
    table  *shardmap.Map
    arSize int

    hits, misses uint64

    metrics metricsSink
}

func newShard(idx int, arenaBytes int, slabPageSize int, initialCapacity uint32, migrateBatch int, metrics metricsSink) *shard {
    ar := arena.New(arenaBytes)
    s := &shard{
        idx:     idx,
        ar:      ar,
        alloc:   slab.New(ar, slabPageSize),
        table:   shardmap.New(initialCapacity, migrateBatch),
        arSize:  arenaBytes,
        metrics: metrics,
    }
    s.alloc.Prewarm()
    return s
}

// now returns the current wall-clock second, the resolution expire_at is
// tracked at (spec.md §3).
func now() uint32 {
    return uint32(time.Now().Unix())
}

// stepTable advances the shard's incremental rehash (if any) or checks the
// load factor to start one, emitting start/finish metrics on the
// transition edges.
func (s *shard) stepTable(n uint32) {
    wasResizing := s.table.Resizing()
    s.table.Step(n)
    isResizing := s.table.Resizing()
    if isResizing && !wasResizing {
        s.metrics.incRehashStarted(s.idx)
    } else if wasResizing && !isResizing {
        s.metrics.incRehashCompleted(s.idx)
    }
}

// set installs key/value with the given absolute expiry (0 = never) into
// this shard. Caller holds mu for writing.
func (s *shard) set(key, value []byte, expireAt uint32) error {
    n := now()
    s.stepTable(n)

    h := shardmap.FNV1a64(key)
    existing, insertTable, insertSlot := s.table.PrepareSet(h, key, n)

    if existing != nil {
        newVal, class, err := s.allocValue(value)
        if err != nil {
            return err
        }
        oldVal, oldClass := existing.Value, existing.ValueClass
        // Install the new buffer before releasing the old one (spec.md
        // §4.2's safety constraint) — both happen here under the caller's
        // exclusive lock, so there is no window where a reader can
        // observe a freed buffer.
        existing.Value = newVal
        existing.ValueClass = class
        existing.ExpireAt = expireAt
        s.alloc.Free(oldVal, oldClass)
        return nil
    }

    keyCopy, err := s.ar.AllocBytes(key)
    if err != nil {
        return ErrOutOfMemory
    }
    valCopy, class, err := s.allocValue(value)
    if err != nil {
        return err
    }
    entryIdx := s.table.AppendEntry(shardmap.Entry{
        Hash:       h,
        Key:        keyCopy,
        Value:      valCopy,
        ExpireAt:   expireAt,
        ValueClass: class,
    })
    s.table.CommitInsert(insertTable, insertSlot, entryIdx)
    return nil
}

func (s *shard) allocValue(value []byte) ([]byte, uint8, error) {
    if len(value) == 0 {
        return nil, slab.ClassBump, nil
    }
    buf, class, err := s.alloc.Alloc(len(value))
    if err != nil {
        return nil, 0, ErrOutOfMemory
    }
    copy(buf, value)
    return buf, class, nil
}

// getCopy returns a fresh copy of the value for key, or ErrNotFound. Caller
// holds mu for writing. This is the copy-out variant of §4.4's get (used by
// tests and benchmarks); internal/protocol's hot path uses getInto instead.
func (s *shard) getCopy(key []byte) ([]byte, error) {
    n := now()
    s.stepTable(n)
    h := shardmap.FNV1a64(key)
    e, ok := s.table.Lookup(h, key, n)
    if !ok {
        s.misses++
        s.metrics.incMiss(s.idx)
        return nil, ErrNotFound
    }
    s.hits++
    s.metrics.incHit(s.idx)
    out := make([]byte, len(e.Value))
    copy(out, e.Value)
    return out, nil
}

// getInto fills dst with key's value if it fits, avoiding an allocation on
// the hot path (spec.md §4.4's fill-into-caller-buffer variant). Returns
// the value's length and ErrTooSmall if dst is undersized; the caller
// (internal/protocol) grows its scratch buffer and retries.
func (s *shard) getInto(key []byte, dst []byte) (n int, err error) {
    t := now()
    s.stepTable(t)
    h := shardmap.FNV1a64(key)
    e, ok := s.table.Lookup(h, key, t)
    if !ok {
        s.misses++
        s.metrics.incMiss(s.idx)
        return 0, ErrNotFound
    }
    s.hits++
    s.metrics.incHit(s.idx)
    if len(dst) < len(e.Value) {
        return len(e.Value), ErrTooSmall
    }
    copy(dst, e.Value)
    return len(e.Value), nil
}

// del removes key, returning ErrNotFound if absent, deleted, or expired.
// Caller holds mu for writing.
func (s *shard) del(key []byte) error {
    n := now()
    s.stepTable(n)
    h := shardmap.FNV1a64(key)
    e, ok := s.table.Delete(h, key, n)
    if !ok {
        return ErrNotFound
    }
    s.alloc.Free(e.Value, e.ValueClass)
    return nil
}

// flush resets this shard to its just-constructed state (spec.md §3).
// Caller holds mu for writing.
func (s *shard) flush() {
    s.ar.Reset()
    s.alloc.Reset()
    s.table.Reset()
    s.alloc.Prewarm()
    s.hits, s.misses = 0, 0
}

// shardStats is a point-in-time snapshot of one shard, taken under its
// read lock.
type shardStats struct {
    count        uint32
    arenaUsed    int
    resizing     bool
    hits, misses uint64
}

func (s *shard) snapshot() shardStats {
    count, resizing := s.table.Stats()
    st := shardStats{
        count:     count,
        arenaUsed: s.ar.Used(),
        resizing:  resizing,
        hits:      s.hits,
        misses:    s.misses,
    }
    s.metrics.setArenaBytes(s.idx, int64(st.arenaUsed))
    s.metrics.setResizing(s.idx, resizing)
    return st
}
