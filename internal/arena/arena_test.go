package arena

import "testing"

func TestAllocAdvancesOffsetAligned(t *testing.T) {
    a := New(4096)
    buf, err := a.Alloc(10)
    if err != nil {
        t.Fatalf("Alloc: %v", err)
    }
    if len(buf) != 10 {
        t.Fatalf("len(buf) = %d, want 10", len(buf))
    }
    if a.Used() != 16 { // 10 rounded up to an 8-byte multiple
        t.Fatalf("Used() = %d, want 16", a.Used())
    }
}

func TestAllocOutOfMemory(t *testing.T) {
    a := New(16)
    if _, err := a.Alloc(17); err == nil {
        t.Fatal("expected out-of-memory error")
    }
    var oom *ErrOutOfMemory
    if _, err := a.Alloc(17); err != nil {
        if e, ok := err.(*ErrOutOfMemory); !ok {
            t.Fatalf("error type = %T, want *ErrOutOfMemory", err)
        } else {
            oom = e
        }
    }
    if oom != nil && oom.Requested != 17 {
        t.Fatalf("Requested = %d, want 17", oom.Requested)
    }
}

func TestAllocBytesCopies(t *testing.T) {
    a := New(64)
    src := []byte("hello")
    dst, err := a.AllocBytes(src)
    if err != nil {
        t.Fatalf("AllocBytes: %v", err)
    }
    if string(dst) != "hello" {
        t.Fatalf("dst = %q, want %q", dst, "hello")
    }
    src[0] = 'H'
    if dst[0] == 'H' {
        t.Fatal("AllocBytes did not copy; mutation of src leaked into dst")
    }
}

func TestOffsetOfRoundTrips(t *testing.T) {
    a := New(256)
    b1, _ := a.Alloc(8)
    b2, _ := a.Alloc(8)
    if got := a.OffsetOf(b1); got != 0 {
        t.Fatalf("OffsetOf(b1) = %d, want 0", got)
    }
    if got := a.OffsetOf(b2); got != 8 {
        t.Fatalf("OffsetOf(b2) = %d, want 8", got)
    }
}

func TestResetRewindsOffset(t *testing.T) {
    a := New(64)
    a.Alloc(32)
    if a.Used() == 0 {
        t.Fatal("expected nonzero usage before Reset")
    }
    a.Reset()
    if a.Used() != 0 {
        t.Fatalf("Used() after Reset = %d, want 0", a.Used())
    }
    if a.Remaining() != a.Size() {
        t.Fatal("Remaining() should equal Size() after Reset")
    }
}

func TestBlockAtViewsBackingBuffer(t *testing.T) {
    a := New(64)
    buf, off, err := a.AllocPage(16)
    if err != nil {
        t.Fatalf("AllocPage: %v", err)
    }
    buf[0] = 42
    view := a.BlockAt(off, 16)
    if view[0] != 42 {
        t.Fatalf("BlockAt did not alias AllocPage's buffer: got %d", view[0])
    }
}
