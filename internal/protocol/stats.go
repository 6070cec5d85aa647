package protocol

import "strconv"

// Version is reported in the stats response. hinotetsu2d_uv.c prints
// hinotetsu_version(); this reimplementation isn't versioned against that
// C library, so it carries its own string instead of fabricating parity
// with a numbering scheme that no longer applies.
const Version = "1.0.0"

// handleStats renders spec.md §4.4/§6's stats() snapshot as one
// "STAT <name> <value>\r\n" line per field, terminated by END\r\n.
// bloom_bits/bloom_fill_pct/storage_mode are emitted as the dormant
// zero/constant values spec.md §9 calls out — the bloom pre-check and
// rbtree fallback never ran in the reference this was distilled from.
func (p *Parser) handleStats(out []byte) []byte {
    st := p.eng.Stats()

    out = append(out, "STAT version "...)
    out = append(out, Version...)
    out = append(out, crlf...)

    out = appendStatUint(out, "curr_items", st.Count)
    out = appendStatInt(out, "bytes", st.MemoryUsed)
    out = appendStatInt(out, "limit_maxbytes", st.PoolSize)
    out = appendStatUint(out, "get_hits", st.Hits)
    out = appendStatUint(out, "get_misses", st.Misses)
    out = appendStatInt(out, "bloom_bits", 0)

    out = append(out, "STAT bloom_fill_pct 0.00\r\n"...)
    out = append(out, "STAT storage_mode hash\r\n"...)
    out = appendStatInt(out, "resize_in_progress", int64(st.ResizeInProgress))

    out = append(out, respEnd...)
    return out
}

func appendStatUint(out []byte, name string, v uint64) []byte {
    out = append(out, "STAT "...)
    out = append(out, name...)
    out = append(out, ' ')
    out = strconv.AppendUint(out, v, 10)
    return append(out, crlf...)
}

func appendStatInt(out []byte, name string, v int64) []byte {
    out = append(out, "STAT "...)
    out = append(out, name...)
    out = append(out, ' ')
    out = strconv.AppendInt(out, v, 10)
    return append(out, crlf...)
}
