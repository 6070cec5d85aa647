// Package bench provides reproducible micro-benchmarks for hinotetsu.
// Run via: go test ./bench -bench=. -benchmem -cpu 1,4,16
//
// Adapted from the teacher's bench/bench_test.go: same shape (a shared
// dataset built once, Put/Get/GetParallel benchmarks reported with
// -benchmem), retargeted from a uint64 key / 64-byte-struct value onto
// this engine's []byte keys and values, and with GetOrLoad dropped (no
// loader-on-miss concept exists here) in favor of a pipelined-parse
// benchmark exercising internal/protocol instead.
//
// © 2025 hinotetsu authors. MIT License.
package bench

import (
    "math/rand"
    "testing"

    "github.com/arena-kv/hinotetsu/internal/engine"
    "github.com/arena-kv/hinotetsu/internal/protocol"
)

const (
    poolBytes = 64 << 20
    shards    = 16
    keys      = 1 << 16
)

func newTestEngine(b *testing.B) *engine.Engine {
    b.Helper()
    e, err := engine.Open(
        engine.WithPoolBytes(poolBytes),
        engine.WithShardCount(shards),
    )
    if err != nil {
        b.Fatal(err)
    }
    return e
}

var value64 = make([]byte, 64)

var ds = func() [][]byte {
    r := rand.New(rand.NewSource(42))
    arr := make([][]byte, keys)
    for i := range arr {
        k := make([]byte, 8)
        r.Read(k)
        arr[i] = k
    }
    return arr
}()

func BenchmarkSet(b *testing.B) {
    e := newTestEngine(b)
    b.ReportAllocs()
    b.ResetTimer()
    for i := 0; i < b.N; i++ {
        key := ds[i&(keys-1)]
        e.Set(key, value64, 0)
    }
}

func BenchmarkGet(b *testing.B) {
    e := newTestEngine(b)
    for _, k := range ds {
        e.Set(k, value64, 0)
    }
    b.ReportAllocs()
    b.ResetTimer()
    for i := 0; i < b.N; i++ {
        k := ds[i&(keys-1)]
        e.Get(k)
    }
}

func BenchmarkGetInto(b *testing.B) {
    e := newTestEngine(b)
    for _, k := range ds {
        e.Set(k, value64, 0)
    }
    dst := make([]byte, 64)
    b.ReportAllocs()
    b.ResetTimer()
    for i := 0; i < b.N; i++ {
        k := ds[i&(keys-1)]
        e.GetInto(k, dst)
    }
}

func BenchmarkGetParallel(b *testing.B) {
    e := newTestEngine(b)
    for _, k := range ds {
        e.Set(k, value64, 0)
    }
    b.ReportAllocs()
    b.ResetTimer()
    b.RunParallel(func(pb *testing.PB) {
        idx := rand.Intn(keys)
        for pb.Next() {
            idx = (idx + 1) & (keys - 1)
            e.Get(ds[idx])
        }
    })
}

// BenchmarkPipelineParse measures the protocol parser's throughput on a
// batch of pipelined set/get commands, the workload shape spec.md §8 calls
// out ("pipelining-friendly writes").
func BenchmarkPipelineParse(b *testing.B) {
    e := newTestEngine(b)
    var batch []byte
    for i := 0; i < 32; i++ {
        batch = append(batch, []byte("set k 0 0 5\r\nhello\r\n")...)
        batch = append(batch, []byte("get k\r\n")...)
    }

    b.ReportAllocs()
    b.ResetTimer()
    for i := 0; i < b.N; i++ {
        p := protocol.New(e)
        in := batch
        var out []byte
        for len(in) > 0 {
            n, o := p.Feed(in, out[:0])
            out = o
            if n == 0 {
                break
            }
            in = in[n:]
        }
    }
}
