// Package shardmap implements the open-addressing shard table with
// tombstones and incremental, amortized rehash described in spec.md §4.3
// (component C3).
//
// Grounded directly on hinotetsu3.c's Shard: the same tab/new_tab,
// migrate_pos, linear-probe-with-remembered-tombstone discipline, and the
// "incoming is consulted first, then current" lookup order during a
// rehash. The C version addresses entries by raw pointer and uses a
// sentinel pointer value for tombstones (TOMBSTONE_PTR); this port follows
// spec.md's design notes instead and represents slot state as an explicit
// three-variant tag (entry.go's SlotState) addressing entries by index into
// a shared, append-only entry table (Map.entries) rather than by pointer.
//
// Concurrency: like internal/arena and internal/slab, this package assumes
// external synchronisation from the owning shard (internal/engine).
//
// © 2025 hinotetsu authors. MIT License.
package shardmap

import "github.com/arena-kv/hinotetsu/internal/unsafehelpers"

const (
    loadFactorNum = 7
    loadFactorDen = 10

    // DefaultMigrateBatch is the number of live entries migrated per
    // subsequent operation while a rehash is in progress (§4.3).
    DefaultMigrateBatch = 16
)

// Map owns one shard's two-generation table pair plus the shared entry
// store they index into.
type Map struct {
    entries []Entry

    current  *Table
    incoming *Table

    migrateCursor   uint32
    initialCapacity uint32
    migrateBatch    int
}

// New constructs a Map with the given initial per-shard slot capacity
// (must be a power of two: it is not rounded, and newTable panics
// otherwise; internal/engine rejects other values in applyOptions) and
// migration batch size.
func New(initialCapacity uint32, migrateBatch int) *Map {
    if migrateBatch <= 0 {
        migrateBatch = DefaultMigrateBatch
    }
    return &Map{
        current:         newTable(initialCapacity),
        initialCapacity: initialCapacity,
        migrateBatch:    migrateBatch,
    }
}

// Reset discards every table and entry, returning the Map to its
// just-constructed state. Called by a shard flush after its arena and slab
// allocator have also been reset.
func (m *Map) Reset() {
    m.entries = m.entries[:0]
    m.current = newTable(m.initialCapacity)
    m.incoming = nil
    m.migrateCursor = 0
}

// Resizing reports whether an incremental rehash is in progress.
func (m *Map) Resizing() bool { return m.incoming != nil }

// Stats returns the sum of live counts across both generations and whether
// a rehash is in progress — directly feeding engine.Stats (§4.4).
func (m *Map) Stats() (count uint32, resizing bool) {
    count = m.current.Count
    if m.incoming != nil {
        count += m.incoming.Count
        resizing = true
    }
    return count, resizing
}

/* -------------------------------------------------------------------------
   Probing
   ------------------------------------------------------------------------- */

// probeOutcome is the result of scanning one table's probe sequence for key.
type probeOutcome struct {
    slot       uint32
    entryIdx   uint32
    found      bool
    insertSlot uint32 // valid when !found: first tombstone seen, else terminal empty
}

func probeTable(t *Table, hash uint64, key []byte, entries []Entry) probeOutcome {
    mask := t.Capacity - 1
    idx := uint32(hash) & mask
    var firstTomb uint32
    hasTomb := false

    for i := uint32(0); i < t.Capacity; i++ {
        s := t.Slots[idx]
        switch s.State {
        case Empty:
            insertSlot := idx
            if hasTomb {
                insertSlot = firstTomb
            }
            return probeOutcome{insertSlot: insertSlot}
        case Tombstone:
            if !hasTomb {
                firstTomb = idx
                hasTomb = true
            }
        case Live:
            e := &entries[s.EntryIdx]
            // A Deleted entry behind a Live slot is the copy left in current
            // after the entry migrated to incoming and was deleted there.
            if !e.Deleted && len(e.Key) == len(key) && unsafehelpers.BytesToString(e.Key) == unsafehelpers.BytesToString(key) {
                return probeOutcome{slot: idx, entryIdx: s.EntryIdx, found: true}
            }
        }
        idx = (idx + 1) & mask
    }
    // Table exhausted without an empty slot (shouldn't happen under the 0.7
    // load factor, but linear probing must terminate regardless).
    insertSlot := idx
    if hasTomb {
        insertSlot = firstTomb
    }
    return probeOutcome{insertSlot: insertSlot}
}

// findResult is the outcome of a full (incoming-then-current) lookup.
type findResult struct {
    table    *Table
    slot     uint32
    entryIdx uint32
    entry    *Entry
    found    bool

    insertTable *Table
    insertSlot  uint32
}

// find locates key's live slot, consulting incoming before current while a
// rehash is active (§4.3's "lookups during rehash consult incoming first").
// On a miss it also reports where a new key should be inserted: always
// incoming while resizing (new inserts never target current mid-rehash),
// else current.
func (m *Map) find(hash uint64, key []byte) findResult {
    if m.incoming != nil {
        out := probeTable(m.incoming, hash, key, m.entries)
        if out.found {
            return findResult{table: m.incoming, slot: out.slot, entryIdx: out.entryIdx, entry: &m.entries[out.entryIdx], found: true}
        }
        curOut := probeTable(m.current, hash, key, m.entries)
        if curOut.found {
            return findResult{table: m.current, slot: curOut.slot, entryIdx: curOut.entryIdx, entry: &m.entries[curOut.entryIdx], found: true}
        }
        return findResult{insertTable: m.incoming, insertSlot: out.insertSlot}
    }

    out := probeTable(m.current, hash, key, m.entries)
    if out.found {
        return findResult{table: m.current, slot: out.slot, entryIdx: out.entryIdx, entry: &m.entries[out.entryIdx], found: true}
    }
    return findResult{insertTable: m.current, insertSlot: out.insertSlot}
}

func (m *Map) tombstone(t *Table, slot uint32, entryIdx uint32) {
    t.Slots[slot] = Slot{State: Tombstone}
    m.entries[entryIdx].Deleted = true
    if t.Count > 0 {
        t.Count--
    }
}

/* -------------------------------------------------------------------------
   Public read/write operations
   ------------------------------------------------------------------------- */

// Lookup returns the live, unexpired entry for key, or (nil, false). An
// expired match is treated as a miss and the slot is opportunistically
// tombstoned (§4.3, §9 — optional, implemented here since it's free given
// we already hold the slot index).
func (m *Map) Lookup(hash uint64, key []byte, now uint32) (*Entry, bool) {
    r := m.find(hash, key)
    if !r.found {
        return nil, false
    }
    if r.entry.IsExpired(now) {
        m.tombstone(r.table, r.slot, r.entryIdx)
        return nil, false
    }
    return r.entry, true
}

// Delete removes key, returning the deleted entry (so the caller can
// release its value buffer back to the slab) and true, or (nil, false) if
// the key was absent or already expired (an expired key tombstones as a
// side effect but is reported as NotFound, matching §4.3/§7).
func (m *Map) Delete(hash uint64, key []byte, now uint32) (*Entry, bool) {
    r := m.find(hash, key)
    if !r.found {
        return nil, false
    }
    if r.entry.IsExpired(now) {
        m.tombstone(r.table, r.slot, r.entryIdx)
        return nil, false
    }
    e := r.entry
    m.tombstone(r.table, r.slot, r.entryIdx)
    return e, true
}

// PrepareSet resolves the insert-or-update decision for Set (§4.3's
// tie-breaking rules). If existing is non-nil the caller must update its
// Value/ExpireAt/ValueClass in place — the slot is reused untouched. If
// existing is nil, the caller must allocate key/value storage, build a new
// Entry, register it via AppendEntry, and finish with CommitInsert(table,
// slot, entryIdx).
func (m *Map) PrepareSet(hash uint64, key []byte, now uint32) (existing *Entry, table *Table, slot uint32) {
    r := m.find(hash, key)
    if r.found {
        if r.entry.IsExpired(now) {
            m.tombstone(r.table, r.slot, r.entryIdx)
            r = m.find(hash, key) // re-probe: the tombstone we just wrote may now be the insertion slot
            return nil, r.insertTable, r.insertSlot
        }
        return r.entry, nil, 0
    }
    return nil, r.insertTable, r.insertSlot
}

// AppendEntry registers a freshly built entry and returns its index.
func (m *Map) AppendEntry(e Entry) uint32 {
    m.entries = append(m.entries, e)
    return uint32(len(m.entries) - 1)
}

// CommitInsert places entryIdx into table at slot, per PrepareSet's
// contract.
func (m *Map) CommitInsert(table *Table, slot uint32, entryIdx uint32) {
    wasEmpty := table.Slots[slot].State == Empty
    table.Slots[slot] = Slot{State: Live, EntryIdx: entryIdx}
    if wasEmpty {
        table.Occupied++
    }
    table.Count++
}

/* -------------------------------------------------------------------------
   Incremental rehash
   ------------------------------------------------------------------------- */

// Step must be called once before every Set/Get/Delete serviced by the
// shard (§4.3 point 3). While a rehash is in progress it migrates up to
// migrateBatch entries; otherwise it checks the load factor and starts a
// new rehash if needed.
func (m *Map) Step(now uint32) {
    if m.incoming != nil {
        m.migrateBatchStep(now)
        return
    }
    if m.current.Occupied+1 > m.current.Capacity*loadFactorNum/loadFactorDen {
        m.startResize()
        if m.incoming != nil {
            m.migrateBatchStep(now)
        }
    }
}

func (m *Map) startResize() {
    newCap := m.current.Capacity * 2
    if newCap < m.initialCapacity {
        newCap = m.initialCapacity
    }
    m.incoming = newTable(newCap)
    m.migrateCursor = 0
}

func (m *Map) migrateBatchStep(now uint32) {
    migrated := 0
    for m.migrateCursor < m.current.Capacity && migrated < m.migrateBatch {
        idx := m.migrateCursor
        m.migrateCursor++

        s := m.current.Slots[idx]
        if s.State != Live {
            continue
        }
        e := &m.entries[s.EntryIdx]
        if e.Deleted || e.IsExpired(now) {
            continue
        }

        out := probeTable(m.incoming, e.Hash, e.Key, m.entries)
        m.CommitInsert(m.incoming, out.insertSlot, s.EntryIdx)
        m.current.Count--
        migrated++
    }

    if m.migrateCursor >= m.current.Capacity {
        m.finishMigration()
    }
}

func (m *Map) finishMigration() {
    m.current = m.incoming
    m.incoming = nil
    m.migrateCursor = 0

    // Defensive recount, mirroring hinotetsu3.c's shard_migrate_batch: cheap
    // (one full scan of the new table) and guards against any bookkeeping
    // drift in the incremental counters above.
    var live uint32
    for _, s := range m.current.Slots {
        if s.State == Live && !m.entries[s.EntryIdx].Deleted {
            live++
        }
    }
    m.current.Count = live
}
