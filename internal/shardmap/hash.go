package shardmap

// FNV-1a 64-bit, per spec.md §4.3. The low log2(shardCount) bits of the
// result select the shard; inside a shard, the full 64 bits (masked to the
// table's capacity) select the probe start index.
const (
    fnvOffset64 uint64 = 14695981039346656037
    fnvPrime64  uint64 = 1099511628211
)

// FNV1a64 hashes key using the FNV-1a algorithm. Grounded directly on
// hinotetsu3.c's fnv1a64().
func FNV1a64(key []byte) uint64 {
    h := fnvOffset64
    for _, b := range key {
        h ^= uint64(b)
        h *= fnvPrime64
    }
    return h
}
