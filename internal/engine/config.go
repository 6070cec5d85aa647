package engine

// config.go defines the internal configuration object and the set of
// functional options passed to Open. Mirrors the teacher's pkg/config.go
// shape (unexported config struct, defaultConfig, Option closures,
// validated once in applyOptions) but drops the generic K/V parameters —
// this engine only ever stores []byte keys/values — and the CLOCK-Pro-only
// knobs (WeightFn, EjectCallback), which have no counterpart once eviction
// is out of scope.
//
// © 2025 hinotetsu authors. MIT License.

import (
    "errors"

    "github.com/prometheus/client_golang/prometheus"
    "go.uber.org/zap"

    "github.com/arena-kv/hinotetsu/internal/unsafehelpers"
)

const (
    // DefaultShardCount is HINOTETSU_SHARDS from the C reference.
    DefaultShardCount = 64

    // DefaultInitialCapacity is HINOTETSU_INIT_CAP: the per-shard slot
    // count a table starts at (and the floor a growth step can't go
    // below).
    DefaultInitialCapacity = 1 << 14

    // DefaultMigrateBatch is the number of entries migrated per operation
    // while a shard is rehashing (spec.md §4.3).
    DefaultMigrateBatch = 16

    // DefaultSlabPageSize is the slab allocator's page size (spec.md §4.2).
    DefaultSlabPageSize = 64 * 1024

    // MinShardBytes is the per-shard arena floor: the pool budget is split
    // evenly across shards but never below this (spec.md §3, "Engine").
    MinShardBytes = 1 << 20 // 1 MiB

    // DefaultPoolBytes is the whole-engine memory budget when no
    // WithPoolBytes option is given (64 MiB, matching the CLI's -m default
    // of 64).
    DefaultPoolBytes = 64 << 20

    // MaxValueBytes is MAX_SET_BYTES: the largest value a set() will
    // accept.
    MaxValueBytes = 1 << 20 // 1 MiB

    // MaxKeyBytes bounds a key per spec.md §6.
    MaxKeyBytes = 250
)

// config bundles every knob that influences engine behaviour. Immutable
// once Open has returned.
type config struct {
    poolBytes       int64
    shardCount      int
    initialCapacity uint32
    migrateBatch    int
    slabPageSize    int
    maxValueBytes   int

    registry *prometheus.Registry
    logger   *zap.Logger
}

// Option mutates a config during Open.
type Option func(*config)

func defaultConfig() *config {
    return &config{
        poolBytes:       DefaultPoolBytes,
        shardCount:      DefaultShardCount,
        initialCapacity: DefaultInitialCapacity,
        migrateBatch:    DefaultMigrateBatch,
        slabPageSize:    DefaultSlabPageSize,
        maxValueBytes:   MaxValueBytes,
        logger:          zap.NewNop(),
    }
}

// WithPoolBytes sets the whole-engine memory budget, split evenly across
// shards (each clamped to >= MinShardBytes).
func WithPoolBytes(n int64) Option {
    return func(c *config) { c.poolBytes = n }
}

// WithShardCount overrides the shard count. Must be a power of two;
// validated in applyOptions.
func WithShardCount(n int) Option {
    return func(c *config) { c.shardCount = n }
}

// WithInitialCapacity overrides each shard's starting (and growth-floor)
// slot capacity. Must be a power of two.
func WithInitialCapacity(n uint32) Option {
    return func(c *config) { c.initialCapacity = n }
}

// WithMigrateBatch overrides the number of entries migrated per operation
// during an incremental rehash.
func WithMigrateBatch(n int) Option {
    return func(c *config) { c.migrateBatch = n }
}

// WithSlabPageSize overrides the slab allocator's refill page size.
func WithSlabPageSize(n int) Option {
    return func(c *config) { c.slabPageSize = n }
}

// WithMaxValueBytes overrides MAX_SET_BYTES.
func WithMaxValueBytes(n int) Option {
    return func(c *config) { c.maxValueBytes = n }
}

// WithMetrics enables Prometheus metrics collection. Passing nil disables
// metrics (the default).
func WithMetrics(reg *prometheus.Registry) Option {
    return func(c *config) { c.registry = reg }
}

// WithLogger plugs an external zap.Logger. The engine never logs on the
// hot path; only Open and Flush are logged (rehash start/finish is counted
// in metrics, not logged).
func WithLogger(l *zap.Logger) Option {
    return func(c *config) {
        if l != nil {
            c.logger = l
        }
    }
}

var (
    errInvalidPoolBytes  = errors.New("engine: pool bytes must be > 0")
    errInvalidShardCount = errors.New("engine: shard count must be a power of two and > 0")
    errInvalidInitialCap = errors.New("engine: initial capacity must be a power of two and > 0")
    errInvalidMigrate    = errors.New("engine: migrate batch must be > 0")
    errInvalidSlabPage   = errors.New("engine: slab page size must be > 0")
    errInvalidMaxValue   = errors.New("engine: max value bytes must be > 0")
)

func applyOptions(cfg *config, opts []Option) error {
    for _, opt := range opts {
        opt(cfg)
    }

    if cfg.poolBytes <= 0 {
        return errInvalidPoolBytes
    }
    if !unsafehelpers.IsPowerOfTwo(uintptr(cfg.shardCount)) {
        return errInvalidShardCount
    }
    if !unsafehelpers.IsPowerOfTwo(uintptr(cfg.initialCapacity)) {
        return errInvalidInitialCap
    }
    if cfg.migrateBatch <= 0 {
        return errInvalidMigrate
    }
    if cfg.slabPageSize <= 0 {
        return errInvalidSlabPage
    }
    if cfg.maxValueBytes <= 0 {
        return errInvalidMaxValue
    }
    return nil
}

// shardBytes computes the per-shard arena size: the pool budget split
// evenly, clamped to MinShardBytes.
func (c *config) shardBytes() int {
    per := c.poolBytes / int64(c.shardCount)
    if per < MinShardBytes {
        per = MinShardBytes
    }
    return int(per)
}
