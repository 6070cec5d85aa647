package unsafehelpers

import "testing"

func TestBytesToStringMatchesStringConversion(t *testing.T) {
    b := []byte("hello world")
    if got := BytesToString(b); got != "hello world" {
        t.Fatalf("BytesToString(%q) = %q", b, got)
    }
}

func TestBytesToStringEmpty(t *testing.T) {
    if got := BytesToString(nil); got != "" {
        t.Fatalf("BytesToString(nil) = %q, want empty", got)
    }
}

func TestAlignUpInt(t *testing.T) {
    cases := []struct{ x, align, want int }{
        {0, 8, 0},
        {1, 8, 8},
        {8, 8, 8},
        {9, 8, 16},
        {100, 64, 128},
    }
    for _, c := range cases {
        if got := AlignUpInt(c.x, c.align); got != c.want {
            t.Fatalf("AlignUpInt(%d, %d) = %d, want %d", c.x, c.align, got, c.want)
        }
    }
}

func TestIsPowerOfTwo(t *testing.T) {
    for _, x := range []uintptr{1, 2, 4, 64, 1 << 14} {
        if !IsPowerOfTwo(x) {
            t.Fatalf("IsPowerOfTwo(%d) = false, want true", x)
        }
    }
    for _, x := range []uintptr{0, 3, 5, 6, 100} {
        if IsPowerOfTwo(x) {
            t.Fatalf("IsPowerOfTwo(%d) = true, want false", x)
        }
    }
}

func TestNextPowerOfTwo(t *testing.T) {
    cases := []struct{ x, want int }{
        {1, 1},
        {2, 2},
        {3, 4},
        {5, 8},
        {64, 64},
        {65, 128},
    }
    for _, c := range cases {
        if got := NextPowerOfTwo(c.x); got != c.want {
            t.Fatalf("NextPowerOfTwo(%d) = %d, want %d", c.x, got, c.want)
        }
    }
}
