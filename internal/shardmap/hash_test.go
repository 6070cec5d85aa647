package shardmap

import "testing"

func TestFNV1a64KnownVector(t *testing.T) {
    // FNV-1a 64-bit of the empty string is the offset basis itself.
    if got := FNV1a64(nil); got != fnvOffset64 {
        t.Fatalf("FNV1a64(nil) = %d, want %d", got, fnvOffset64)
    }
}

func TestFNV1a64Deterministic(t *testing.T) {
    a := FNV1a64([]byte("hello world"))
    b := FNV1a64([]byte("hello world"))
    if a != b {
        t.Fatal("FNV1a64 is not deterministic for the same input")
    }
    if a == FNV1a64([]byte("hello worlD")) {
        t.Fatal("FNV1a64 collided on a single-byte change (suspiciously)")
    }
}
