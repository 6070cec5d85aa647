package protocol

import (
    "strconv"
    "testing"

    "github.com/stretchr/testify/require"

    "github.com/arena-kv/hinotetsu/internal/engine"
)

func testEngine(t *testing.T) *engine.Engine {
    t.Helper()
    e, err := engine.Open(
        engine.WithPoolBytes(engine.MinShardBytes*4),
        engine.WithShardCount(4),
        engine.WithInitialCapacity(16),
    )
    require.NoError(t, err)
    return e
}

// feedAll drives Feed until the input is fully consumed (every test command
// set here fits in one buffer with no partial reads).
func feedAll(p *Parser, in []byte) []byte {
    var out []byte
    for len(in) > 0 {
        n, o := p.Feed(in, out)
        out = o
        if n == 0 {
            break
        }
        in = in[n:]
    }
    return out
}

func TestScenarioSetThenGet(t *testing.T) {
    p := New(testEngine(t))
    out := feedAll(p, []byte("set foo 0 0 5\r\nhello\r\n"))
    require.Equal(t, "STORED\r\n", string(out))

    out = feedAll(p, []byte("get foo\r\n"))
    require.Equal(t, "VALUE foo 0 5\r\nhello\r\nEND\r\n", string(out))
}

func TestScenarioGetMiss(t *testing.T) {
    p := New(testEngine(t))
    out := feedAll(p, []byte("get nope\r\n"))
    require.Equal(t, "END\r\n", string(out))
}

func TestScenarioDeleteTwice(t *testing.T) {
    p := New(testEngine(t))
    feedAll(p, []byte("set foo 0 0 5\r\nhello\r\n"))

    out := feedAll(p, []byte("delete foo\r\n"))
    require.Equal(t, "DELETED\r\n", string(out))

    out = feedAll(p, []byte("delete foo\r\n"))
    require.Equal(t, "NOT_FOUND\r\n", string(out))
}

func TestScenarioPipeline(t *testing.T) {
    p := New(testEngine(t))
    in := []byte("set k1 0 0 2\r\nv1\r\nset k2 0 0 2\r\nv2\r\nget k1\r\nget k2\r\n")
    out := feedAll(p, in)
    want := "STORED\r\nSTORED\r\nVALUE k1 0 2\r\nv1\r\nEND\r\nVALUE k2 0 2\r\nv2\r\nEND\r\n"
    require.Equal(t, want, string(out))
}

func TestScenarioBadDataChunkKeepsConnectionOpen(t *testing.T) {
    p := New(testEngine(t))
    out := feedAll(p, []byte("set big 0 0 99999999\r\n"))
    require.Equal(t, "CLIENT_ERROR bad data chunk\r\n", string(out))

    // Connection stays open: the next command is parsed normally.
    out = feedAll(p, []byte("set ok 0 0 2\r\nhi\r\n"))
    require.Equal(t, "STORED\r\n", string(out))
}

func TestPartialFeedDoesNotConsumeIncompleteCommand(t *testing.T) {
    p := New(testEngine(t))
    in := []byte("set k 0 0 5\r\nhel") // header complete, data block incomplete

    n, out := p.Feed(in, nil)
    require.Empty(t, out, "no response expected until the full data block arrives")
    require.Less(t, n, len(in))

    rest := append(in[n:], []byte("lo\r\n")...)
    out2 := feedAll(p, rest)
    require.Equal(t, "STORED\r\n", string(out2))
}

func TestUnknownCommandYieldsError(t *testing.T) {
    p := New(testEngine(t))
    out := feedAll(p, []byte("frobnicate\r\n"))
    require.Equal(t, "ERROR\r\n", string(out))
}

func TestFlushAll(t *testing.T) {
    p := New(testEngine(t))
    feedAll(p, []byte("set k 0 0 1\r\nv\r\n"))
    out := feedAll(p, []byte("flush_all\r\n"))
    require.Equal(t, "OK\r\n", string(out))

    out = feedAll(p, []byte("get k\r\n"))
    require.Equal(t, "END\r\n", string(out))
}

func TestQuitSetsFlag(t *testing.T) {
    p := New(testEngine(t))
    require.False(t, p.Quit())
    feedAll(p, []byte("quit\r\n"))
    require.True(t, p.Quit())
}

func TestStatsIncludesRequiredFields(t *testing.T) {
    p := New(testEngine(t))
    out := feedAll(p, []byte("stats\r\n"))
    s := string(out)
    for _, field := range []string{"STAT version", "STAT curr_items", "STAT bytes", "STAT limit_maxbytes", "STAT get_hits", "STAT get_misses", "STAT storage_mode"} {
        require.Contains(t, s, field)
    }
    require.Contains(t, s, "END\r\n")
}

func TestGetGrowsScratchBufferForLargeValues(t *testing.T) {
    p := New(testEngine(t))
    big := make([]byte, scratchInitCap*3)
    for i := range big {
        big[i] = byte('a' + i%26)
    }
    in := append([]byte("set big 0 0 "+strconv.Itoa(len(big))+"\r\n"), append(append([]byte{}, big...), '\r', '\n')...)
    out := feedAll(p, in)
    require.Equal(t, "STORED\r\n", string(out))

    out = feedAll(p, []byte("get big\r\n"))
    want := append([]byte("VALUE big 0 "+strconv.Itoa(len(big))+"\r\n"), append(append([]byte{}, big...), []byte("\r\nEND\r\n")...)...)
    require.Equal(t, want, out)

    // A second get still works once the scratch buffer has grown.
    out = feedAll(p, []byte("get big\r\n"))
    require.Equal(t, want, out)
}

func TestBinarySafety(t *testing.T) {
    p := New(testEngine(t))
    value := []byte{0x00, 0xff, '\t', 'x'}
    in := append([]byte("set bin 0 0 4\r\n"), append(append([]byte{}, value...), '\r', '\n')...)
    out := feedAll(p, in)
    require.Equal(t, "STORED\r\n", string(out))

    out = feedAll(p, []byte("get bin\r\n"))
    want := append([]byte("VALUE bin 0 4\r\n"), append(append([]byte{}, value...), []byte("\r\nEND\r\n")...)...)
    require.Equal(t, want, out)
}
