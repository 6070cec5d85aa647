// Package slab implements the size-classed free-list allocator (§4.2) that
// owns value buffers on top of a shard's arena. Classes are power-of-two
// byte sizes; a request larger than the top class bypasses the slab and is
// served directly from the arena, tagged with the reserved ClassBump class.
//
// Grounded on hinotetsu3.c's slab_push/slab_refill/value_alloc/value_free
// and, for the free-list block shape, the pack's ortuman-nuke slab arena
// (internal/slab's blockRef plays the role of that file's unsafe.Pointer
// bump cursor, but addresses blocks by (offset, class) instead of a raw
// pointer — see DESIGN.md's tombstone/pointer note).
//
// Concurrency: like internal/arena, this package assumes external
// synchronisation from the owning shard.
//
// © 2025 hinotetsu authors. MIT License.
package slab

import (
    "fmt"
    "math/bits"

    "github.com/arena-kv/hinotetsu/internal/arena"
    "github.com/arena-kv/hinotetsu/internal/unsafehelpers"
)

const (
    // MinShift/MaxShift bound the size classes: 1<<MinShift .. 1<<MaxShift.
    MinShift = 6  // 64 B
    MaxShift = 12 // 4 KiB

    numClasses = MaxShift - MinShift + 1

    // ClassBump tags a value allocated directly from the arena because it
    // exceeded the largest slab class. Mirrors hinotetsu3.c's
    // VALUE_CLASS_BUMP sentinel (255 there; same value here for parity).
    ClassBump uint8 = 255

    // DefaultPageSize is the size of one slab page fetched from the arena
    // when a class's free-list runs dry.
    DefaultPageSize = 64 * 1024

    // prewarmPages is how many pages are eagerly refilled per in-range class
    // at shard initialisation and after a flush (§4.2).
    prewarmPages = 4
)

// classForSize maps a byte request to the smallest size class that can hold
// it, or ClassBump if it exceeds every class.
func classForSize(n int) uint8 {
    if n <= 0 {
        n = 1
    }
    p := unsafehelpers.NextPowerOfTwo(n)
    shift := bits.Len(uint(p)) - 1
    if shift < MinShift {
        shift = MinShift
    }
    if shift > MaxShift {
        return ClassBump
    }
    return uint8(shift)
}

func classSize(shift uint8) int { return 1 << uint(shift) }

func classIndex(shift uint8) int { return int(shift) - MinShift }

// blockRef is a free-list node. It is written in-place at the *start* of a
// free block, the same trick hinotetsu3.c's SlabNode uses — the block's own
// bytes double as the list link while it is unused, and are overwritten by
// the caller's value once handed out. We store it as an arena byte offset
// (int) rather than a pointer so a block reference survives independent of
// any live Go pointer, matching the "arena + indices instead of raw
// pointers" design note.
type blockRef struct {
    nextOffset int // valid only when hasNext
    hasNext    bool // false => end of list
}

const blockRefSize = 16 // generous fixed header; all classes are >= 64B anyway

// Allocator owns one size-classed free-list set over a single shard's arena.
type Allocator struct {
    ar        *arena.Arena
    pageSize  int
    freelist  [numClasses]int // head byte-offset into ar; valid only when hasHead
    hasHead   [numClasses]bool // false => the class's free-list is empty
}

// New constructs an Allocator over ar using pageSize-sized refill pages
// (DefaultPageSize if pageSize <= 0).
func New(ar *arena.Arena, pageSize int) *Allocator {
    if pageSize <= 0 {
        pageSize = DefaultPageSize
    }
    a := &Allocator{ar: ar, pageSize: pageSize}
    for i := range a.freelist {
        a.freelist[i] = -1
    }
    return a
}

// Prewarm eagerly refills every in-range class with prewarmPages pages so
// early Alloc calls do not pay first-refill cost. Called at shard
// construction and again after a flush resets the arena.
func (a *Allocator) Prewarm() {
    for shift := uint8(MinShift); shift <= MaxShift; shift++ {
        for i := 0; i < prewarmPages; i++ {
            if err := a.refill(shift); err != nil {
                // Arena exhausted during warm-up is not fatal: later Alloc
                // calls will simply refill on demand (and fail there if the
                // arena really is too small for even one page).
                return
            }
        }
    }
}

// Reset clears every free-list head. Called by the shard after it resets
// the underlying arena (flush); the arena's own bump offset going to zero
// makes the old block offsets meaningless, so the lists must be dropped
// rather than reused.
func (a *Allocator) Reset() {
    for i := range a.freelist {
        a.freelist[i] = -1
        a.hasHead[i] = false
    }
}

func (a *Allocator) refill(shift uint8) error {
    bsz := classSize(shift)
    page := a.pageSize
    if min := bsz * 8; page < min {
        page = min
    }
    _, pageOffset, err := a.ar.AllocPage(page)
    if err != nil {
        return err
    }
    blocks := page / bsz
    idx := classIndex(shift)
    for i := 0; i < blocks; i++ {
        off := pageOffset + i*bsz
        a.push(idx, off)
    }
    return nil
}

func (a *Allocator) push(idx, off int) {
    link := blockRef{hasNext: a.hasHead[idx], nextOffset: a.freelist[idx]}
    a.writeLink(off, link)
    a.freelist[idx] = off
    a.hasHead[idx] = true
}

func (a *Allocator) writeLink(off int, link blockRef) {
    b := a.ar.BlockAt(off, blockRefSize)
    if link.hasNext {
        b[0] = 1
        putInt(b[1:], link.nextOffset)
    } else {
        b[0] = 0
    }
}

func (a *Allocator) readLink(off int) blockRef {
    b := a.ar.BlockAt(off, blockRefSize)
    if b[0] == 0 {
        return blockRef{hasNext: false}
    }
    return blockRef{hasNext: true, nextOffset: getInt(b[1:])}
}

func putInt(b []byte, v int) {
    for i := 0; i < 8; i++ {
        b[i] = byte(v >> (8 * i))
    }
}

func getInt(b []byte) int {
    var v int
    for i := 0; i < 8; i++ {
        v |= int(b[i]) << (8 * i)
    }
    return v
}

// ErrOutOfMemory mirrors arena.ErrOutOfMemory for callers that only import
// internal/slab.
type ErrOutOfMemory struct {
    Requested int
}

func (e *ErrOutOfMemory) Error() string {
    return fmt.Sprintf("slab: out of memory (requested %d)", e.Requested)
}

// Alloc reserves n bytes and returns a []byte view plus the size class it
// was carved from. Values that exceed the top class bypass the slab
// entirely and are served straight from the arena with class ClassBump.
func (a *Allocator) Alloc(n int) ([]byte, uint8, error) {
    shift := classForSize(n)
    if shift == ClassBump {
        buf, err := a.ar.Alloc(n)
        if err != nil {
            return nil, ClassBump, &ErrOutOfMemory{Requested: n}
        }
        return buf, ClassBump, nil
    }

    idx := classIndex(shift)
    if !a.hasHead[idx] {
        if err := a.refill(shift); err != nil {
            return nil, shift, &ErrOutOfMemory{Requested: n}
        }
    }
    off := a.freelist[idx]
    link := a.readLink(off)
    a.freelist[idx] = link.nextOffset
    a.hasHead[idx] = link.hasNext
    return a.ar.BlockAt(off, n), shift, nil
}

// Free returns a value buffer to its size class's free-list. Class
// ClassBump frees are no-ops: the arena only reclaims bump-class memory on a
// full shard flush.
//
// Safety: callers MUST NOT invoke Free until no reader can still observe the
// old buffer pointer — in Mode B that means "after installing the new
// buffer and releasing the writer's exclusive lock is never safe; the free
// must happen while still holding it" (§4.2's safety constraint). This
// function does not itself synchronise; internal/engine's shard enforces
// the ordering.
func (a *Allocator) Free(buf []byte, class uint8) {
    if class == ClassBump || len(buf) == 0 {
        return
    }
    off := a.offsetOf(buf)
    idx := classIndex(class)
    a.push(idx, off)
}

// offsetOf recovers a block's arena-relative offset from its slice header.
// Valid only for slices previously returned by Alloc/BlockAt over the same
// arena, which is the only thing that ever calls Free.
func (a *Allocator) offsetOf(buf []byte) int {
    return a.ar.OffsetOf(buf)
}
