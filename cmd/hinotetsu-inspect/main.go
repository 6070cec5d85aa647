// Command hinotetsu-inspect polls a running hinotetsud's admin HTTP
// endpoint and prints its stats snapshot, optionally repeating on an
// interval or downloading a pprof profile.
//
// Adapted from the teacher's cmd/arena-cache-inspect: same one-shot/watch/
// pprof-download shape, retargeted from /debug/arena-cache/snapshot's
// hits_total/misses_total/evictions_total/arena_bytes fields to this
// spec's /debug/hinotetsu/snapshot shape (count/memory_used/pool_size/
// hits/misses/resize_in_progress/shard_count).
//
// © 2025 hinotetsu authors. MIT License.
package main

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    flag "github.com/spf13/pflag"
)

type snapshot struct {
    Count            uint64 `json:"count"`
    MemoryUsed       int64  `json:"memory_used"`
    PoolSize         int64  `json:"pool_size"`
    Hits             uint64 `json:"hits"`
    Misses           uint64 `json:"misses"`
    ResizeInProgress int    `json:"resize_in_progress"`
    ShardCount       int    `json:"shard_count"`
}

type options struct {
    target           string
    jsonOut          bool
    watch            bool
    interval         time.Duration
    heapProfile      string
    goroutineProfile string
}

func parseFlags() *options {
    opts := &options{}
    flag.StringVarP(&opts.target, "target", "t", "http://localhost:6060", "base URL of the target hinotetsud admin endpoint")
    flag.BoolVar(&opts.jsonOut, "json", false, "print the raw JSON snapshot instead of a formatted summary")
    flag.BoolVarP(&opts.watch, "watch", "w", false, "repeat the snapshot on --interval until interrupted")
    flag.DurationVar(&opts.interval, "interval", 2*time.Second, "polling interval in watch mode")
    flag.StringVar(&opts.heapProfile, "heap-profile", "", "download a heap profile to this path instead of printing a snapshot")
    flag.StringVar(&opts.goroutineProfile, "goroutine-profile", "", "download a goroutine profile to this path instead of printing a snapshot")
    flag.Parse()
    return opts
}

func main() {
    os.Exit(run())
}

func run() int {
    opts := parseFlags()

    ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer cancel()

    if opts.heapProfile != "" {
        if err := downloadProfile(ctx, opts.target, "heap", opts.heapProfile); err != nil {
            return fatal(err)
        }
        return 0
    }
    if opts.goroutineProfile != "" {
        if err := downloadProfile(ctx, opts.target, "goroutine", opts.goroutineProfile); err != nil {
            return fatal(err)
        }
        return 0
    }

    if opts.watch {
        ticker := time.NewTicker(opts.interval)
        defer ticker.Stop()
        for {
            if err := dumpOnce(ctx, opts); err != nil {
                fmt.Fprintln(os.Stderr, "error:", err)
            }
            select {
            case <-ticker.C:
                continue
            case <-ctx.Done():
                return 0
            }
        }
    }

    if err := dumpOnce(ctx, opts); err != nil {
        return fatal(err)
    }
    return 0
}

func dumpOnce(ctx context.Context, opts *options) error {
    snap, err := fetchSnapshot(ctx, opts.target)
    if err != nil {
        return err
    }
    if opts.jsonOut {
        enc := json.NewEncoder(os.Stdout)
        enc.SetIndent("", "  ")
        return enc.Encode(snap)
    }
    return prettyPrint(snap)
}

func fetchSnapshot(ctx context.Context, base string) (*snapshot, error) {
    url := base + "/debug/hinotetsu/snapshot"
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
    if err != nil {
        return nil, err
    }
    res, err := http.DefaultClient.Do(req)
    if err != nil {
        return nil, err
    }
    defer res.Body.Close()
    if res.StatusCode != http.StatusOK {
        return nil, fmt.Errorf("unexpected status %s", res.Status)
    }
    var snap snapshot
    if err := json.NewDecoder(res.Body).Decode(&snap); err != nil {
        return nil, err
    }
    return &snap, nil
}

func prettyPrint(s *snapshot) error {
    fmt.Printf("Shards:             %d\n", s.ShardCount)
    fmt.Printf("Items:              %d\n", s.Count)
    fmt.Printf("Memory used:        %.2f MiB\n", float64(s.MemoryUsed)/(1<<20))
    fmt.Printf("Pool size:          %.2f MiB\n", float64(s.PoolSize)/(1<<20))
    fmt.Printf("Hits / Misses:      %d / %d\n", s.Hits, s.Misses)
    fmt.Printf("Shards resizing:    %d\n", s.ResizeInProgress)
    return nil
}

func downloadProfile(ctx context.Context, base, name, path string) error {
    url := fmt.Sprintf("%s/debug/pprof/%s", base, name)
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
    if err != nil {
        return err
    }
    res, err := http.DefaultClient.Do(req)
    if err != nil {
        return err
    }
    defer res.Body.Close()
    if res.StatusCode != http.StatusOK {
        return fmt.Errorf("unexpected status %s", res.Status)
    }

    f, err := os.Create(path)
    if err != nil {
        return err
    }
    defer f.Close()

    if _, err := io.Copy(f, res.Body); err != nil {
        return err
    }
    fmt.Printf("%s profile saved to %s\n", name, path)
    return nil
}

func fatal(err error) int {
    fmt.Fprintln(os.Stderr, "hinotetsu-inspect:", err)
    return 1
}
