package slab

import (
    "testing"

    "github.com/arena-kv/hinotetsu/internal/arena"
)

func TestAllocPicksSmallestClass(t *testing.T) {
    ar := arena.New(1 << 20)
    a := New(ar, DefaultPageSize)

    buf, class, err := a.Alloc(10)
    if err != nil {
        t.Fatalf("Alloc: %v", err)
    }
    if len(buf) != 10 {
        t.Fatalf("len(buf) = %d, want 10", len(buf))
    }
    if class != MinShift {
        t.Fatalf("class = %d, want %d (smallest class for 10 bytes)", class, MinShift)
    }
}

func TestAllocBypassesToArenaAboveTopClass(t *testing.T) {
    ar := arena.New(1 << 20)
    a := New(ar, DefaultPageSize)

    n := 1<<MaxShift + 1
    buf, class, err := a.Alloc(n)
    if err != nil {
        t.Fatalf("Alloc: %v", err)
    }
    if class != ClassBump {
        t.Fatalf("class = %d, want ClassBump", class)
    }
    if len(buf) != n {
        t.Fatalf("len(buf) = %d, want %d", len(buf), n)
    }
}

func TestFreeThenAllocReusesBlock(t *testing.T) {
    ar := arena.New(1 << 20)
    a := New(ar, DefaultPageSize)

    before := ar.Used()
    buf1, class1, err := a.Alloc(100)
    if err != nil {
        t.Fatalf("Alloc: %v", err)
    }
    usedAfterFirst := ar.Used()

    a.Free(buf1, class1)
    buf2, class2, err := a.Alloc(100)
    if err != nil {
        t.Fatalf("Alloc: %v", err)
    }
    if class1 != class2 {
        t.Fatalf("class changed across free/alloc: %d vs %d", class1, class2)
    }
    if ar.Used() != usedAfterFirst {
        t.Fatalf("second Alloc grew the arena (Used=%d, want %d); free-list reuse failed", ar.Used(), usedAfterFirst)
    }
    _ = before
    _ = buf2
}

func TestBumpFreeIsNoop(t *testing.T) {
    ar := arena.New(1 << 20)
    a := New(ar, DefaultPageSize)

    n := 1<<MaxShift + 1
    buf, class, err := a.Alloc(n)
    if err != nil {
        t.Fatalf("Alloc: %v", err)
    }
    used := ar.Used()
    a.Free(buf, class)
    if ar.Used() != used {
        t.Fatal("Free on a ClassBump buffer should not touch the arena")
    }
}

func TestPrewarmAvoidsFirstRefillCost(t *testing.T) {
    ar := arena.New(8 << 20)
    a := New(ar, DefaultPageSize)
    a.Prewarm()

    used := ar.Used()
    if used == 0 {
        t.Fatal("Prewarm should have refilled at least one page")
    }
    if _, _, err := a.Alloc(64); err != nil {
        t.Fatalf("Alloc after Prewarm: %v", err)
    }
    if ar.Used() != used {
        t.Fatal("Alloc after Prewarm should be served from the prewarmed free-list, not a fresh page")
    }
}

func TestResetClearsFreeLists(t *testing.T) {
    ar := arena.New(1 << 20)
    a := New(ar, DefaultPageSize)

    buf, class, _ := a.Alloc(100)
    a.Free(buf, class)
    ar.Reset()
    a.Reset()

    if _, _, err := a.Alloc(100); err != nil {
        t.Fatalf("Alloc after Reset: %v", err)
    }
}
