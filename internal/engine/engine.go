package engine

// engine.go is the C4 façade: shard selection, TTL policy, stats
// aggregation, and flush. Engine.Set/Get/Delete/Stats each take the
// affected shard's lock internally, so the same Engine value serves both
// execution modes from §5 — a single-threaded event loop (Mode A) simply
// never contends the locks it acquires, while a thread-per-connection
// server (Mode B) relies on them for real. See DESIGN.md for why Get also
// takes the shard's lock exclusively rather than the shared lock §5
// describes: incremental rehash can mutate the table on a read path, which
// a shared lock cannot safely allow.
//
// © 2025 hinotetsu authors. MIT License.

import (
    "time"

    "go.uber.org/zap"

    "github.com/arena-kv/hinotetsu/internal/shardmap"
)

// Engine is the sharded cache façade. The zero value is not usable; build
// one with Open.
type Engine struct {
    shards []*shard
    cfg    *config
    log    *zap.Logger
}

// Open constructs an Engine per the given options, allocating every
// shard's arena and slab allocator up front (spec.md §3, "Engine").
func Open(opts ...Option) (*Engine, error) {
    cfg := defaultConfig()
    if err := applyOptions(cfg, opts); err != nil {
        return nil, err
    }

    metrics := newMetricsSink(cfg.registry)
    shardBytes := cfg.shardBytes()

    e := &Engine{
        shards: make([]*shard, cfg.shardCount),
        cfg:    cfg,
        log:    cfg.logger,
    }
    for i := range e.shards {
        e.shards[i] = newShard(i, shardBytes, cfg.slabPageSize, cfg.initialCapacity, cfg.migrateBatch, metrics)
    }
    e.log.Info("engine opened",
        zap.Int("shards", cfg.shardCount),
        zap.Int("shard_bytes", shardBytes),
        zap.Uint32("initial_capacity", cfg.initialCapacity),
    )
    return e, nil
}

// ShardCount returns the number of shards this engine was opened with.
func (e *Engine) ShardCount() int { return len(e.shards) }

// MaxValueBytes returns the configured MAX_SET_BYTES ceiling.
func (e *Engine) MaxValueBytes() int { return e.cfg.maxValueBytes }

func (e *Engine) shardFor(key []byte) (*shard, uint64) {
    h := shardmap.FNV1a64(key)
    mask := uint64(len(e.shards) - 1)
    return e.shards[h&mask], h
}

func validateKey(key []byte) error {
    if len(key) == 0 || len(key) > MaxKeyBytes {
        return ErrBadArg
    }
    return nil
}

// Set stores value under key with the given TTL in seconds (0 disables
// expiration). Empty or over-length keys yield ErrBadArg; over-length
// values yield ErrBadArg; arena/slab exhaustion yields ErrOutOfMemory.
func (e *Engine) Set(key, value []byte, ttlSeconds int64) error {
    if err := validateKey(key); err != nil {
        return err
    }
    if len(value) > e.cfg.maxValueBytes {
        return ErrBadArg
    }
    var expireAt uint32
    if ttlSeconds > 0 {
        expireAt = uint32(time.Now().Unix() + ttlSeconds)
    }

    sh, _ := e.shardFor(key)
    sh.mu.Lock()
    defer sh.mu.Unlock()
    return sh.set(key, value, expireAt)
}

// Get returns a copy of the value stored under key, or ErrNotFound.
func (e *Engine) Get(key []byte) ([]byte, error) {
    if err := validateKey(key); err != nil {
        return nil, err
    }
    sh, _ := e.shardFor(key)
    sh.mu.Lock()
    defer sh.mu.Unlock()
    return sh.getCopy(key)
}

// GetInto fills dst with key's value, avoiding an allocation when dst is
// large enough. Returns the value's length and ErrTooSmall if dst is too
// small; ErrNotFound if the key is absent, deleted, or expired.
func (e *Engine) GetInto(key []byte, dst []byte) (int, error) {
    if err := validateKey(key); err != nil {
        return 0, err
    }
    sh, _ := e.shardFor(key)
    sh.mu.Lock()
    defer sh.mu.Unlock()
    return sh.getInto(key, dst)
}

// Delete removes key. Returns ErrNotFound if the key was absent, already
// deleted, or expired.
func (e *Engine) Delete(key []byte) error {
    if err := validateKey(key); err != nil {
        return err
    }
    sh, _ := e.shardFor(key)
    sh.mu.Lock()
    defer sh.mu.Unlock()
    return sh.del(key)
}

// Flush resets every shard to its post-init state (spec.md §3, §4.4).
func (e *Engine) Flush() {
    for _, sh := range e.shards {
        sh.mu.Lock()
        sh.flush()
        sh.mu.Unlock()
    }
    e.log.Info("engine flushed")
}

// Stats is the aggregate snapshot returned by spec.md §4.4's stats().
type Stats struct {
    Count             uint64
    MemoryUsed        int64
    PoolSize          int64
    Hits              uint64
    Misses            uint64
    ResizeInProgress  int
}

// Stats takes a shared pass over every shard (each under its own lock in
// turn, never all at once) and aggregates the results.
func (e *Engine) Stats() Stats {
    var st Stats
    st.PoolSize = e.cfg.poolBytes
    for _, sh := range e.shards {
        sh.mu.RLock()
        snap := sh.snapshot()
        sh.mu.RUnlock()

        st.Count += uint64(snap.count)
        st.MemoryUsed += int64(snap.arenaUsed)
        st.Hits += snap.hits
        st.Misses += snap.misses
        if snap.resizing {
            st.ResizeInProgress++
        }
    }
    return st
}
