// Command bcbench runs a synthetic block workload against the buffer cache and
// exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/IvanBrykalov/bcache/bcache"
	"github.com/IvanBrykalov/bcache/device"
	pmet "github.com/IvanBrykalov/bcache/metrics/prom"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const benchDev = 1

func main() {
	os.Exit(run())
}

// run executes the benchmark and returns the process exit code. Deferred
// cleanup, including the final image sync, runs before main exits.
func run() int {
	// ---- Flags ----
	var (
		buffers = flag.Int("buffers", bcache.DefaultBuffers, "number of buffers in the pool")
		shards  = flag.Int("shards", bcache.DefaultShards, "number of shards")
		wait    = flag.Bool("wait", false, "wait for a free buffer instead of panicking on exhaustion")

		workers  = flag.Int("workers", runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		writePct = flag.Int("writes", 20, "write percentage [0..100]")
		pinPct   = flag.Int("pins", 0, "pin/unpin percentage [0..100]")

		blocks = flag.Uint("blocks", 4096, "device size in blocks; an existing image keeps its own size")
		zipfS  = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV  = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed   = flag.Int64("seed", time.Now().UnixNano(), "random seed")

		image    = flag.String("image", "", "back the device with a disk image at this path; empty = in memory")
		bps      = flag.Int("bps", 0, "device bandwidth limit in bytes/sec (0 = unlimited)")
		inflight = flag.Int64("inflight", 0, "max concurrent device transfers (0 = unlimited)")

		logLevel  = flag.String("log-level", "info", "log level: debug | info | warn | error")
		logFormat = flag.String("log-format", "text", "log format: text | json")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr; empty = disabled")
	)
	flag.Parse()

	logger, err := newLogger(*logLevel, *logFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if *blocks == 0 || *blocks > math.MaxUint32 {
		logger.Error("bad -blocks", "blocks", *blocks, "max", uint64(math.MaxUint32))
		return 2
	}

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			logger.Info("pprof: serving", "addr", *pprofAddr)
			logger.Error("pprof", "err", http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	metrics := pmet.New(nil, "bcache", "bench", nil)
	if *metricsAddr != "" {
		http.Handle("/metrics", promhttp.Handler())
		go func() {
			logger.Info("metrics: serving", "addr", *metricsAddr)
			logger.Error("metrics", "err", http.ListenAndServe(*metricsAddr, nil))
		}()
	}

	// ---- Device ----
	disk, err := openDisk(*image, uint32(*blocks))
	if err != nil {
		logger.Error("open device", "err", err)
		return 1
	}
	nblocks := disk.Size()
	if nblocks == 0 {
		logger.Error("device has no blocks", "image", *image)
		return 1
	}
	if uint64(nblocks) != uint64(*blocks) {
		logger.Info("using image size", "image", *image, "blocks", nblocks)
	}
	if *bps > 0 || *inflight > 0 {
		disk = device.Throttle(disk, device.ThrottleConfig{BytesPerSec: *bps, MaxInFlight: *inflight})
	}
	disks := device.NewTable()
	disks.Register(benchDev, disk)
	defer func() {
		if err := disks.Close(); err != nil {
			logger.Error("close device", "err", err)
		}
	}()

	// ---- Build cache ----
	c := bcache.New(bcache.Options{
		Buffers:        *buffers,
		Shards:         *shards,
		Device:         disks,
		WaitForBuffers: *wait,
		Metrics:        metrics,
		Logger:         logger,
	})

	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}
	// Each worker holds at most one buffer and one pin at a time.
	if !*wait && 2*workersN > *buffers {
		logger.Warn("buffers may run out; consider -wait", "workers", workersN, "buffers", *buffers)
	}

	// ---- Load generation ----
	var reads, writes, pins, total atomic.Uint64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workersN; w++ {
		id := w
		g.Go(func() error {
			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			r := rand.New(rand.NewSource(*seed + int64(id)*9973))
			zipf := rand.NewZipf(r, *zipfS, *zipfV, uint64(nblocks-1))

			for ctx.Err() == nil {
				total.Add(1)
				blockno := uint32(zipf.Uint64())

				pin := int(r.Int31n(100)) < *pinPct
				write := int(r.Int31n(100)) < *writePct
				if err := access(ctx, c, blockno, pin, write, uint64(r.Int63())); err != nil {
					return err
				}
				reads.Add(1)
				if pin {
					pins.Add(1)
				}
				if write {
					writes.Add(1)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		logger.Error("workload", "err", err)
		return 1
	}
	elapsed := time.Since(start)

	// ---- Report ----
	st := c.Stats()
	ops := total.Load()
	hitRate := 0.0
	if n := st.Hits + st.Misses; n > 0 {
		hitRate = float64(st.Hits) / float64(n) * 100
	}

	fmt.Printf("buffers=%d shards=%d workers=%d blocks=%d dur=%v seed=%d\n",
		*buffers, *shards, workersN, nblocks, elapsed, *seed)
	fmt.Printf("ops=%d (%.0f ops/s)  reads=%d  writes=%d  pins=%d\n",
		ops, float64(ops)/elapsed.Seconds(), reads.Load(), writes.Load(), pins.Load())
	fmt.Printf("hits=%d  misses=%d  hit-rate=%.2f%%  recycles=%d  steals=%d\n",
		st.Hits, st.Misses, hitRate, st.Recycles, st.Steals)
	for i, s := range st.Shards {
		fmt.Printf("  shard %2d: buffers=%d free=%d hits=%d misses=%d steals=%d\n",
			i, s.Buffers, s.Free, s.Hits, s.Misses, s.Steals)
	}
	return 0
}

// access reads blockno, optionally pins it across the hold and stamps and
// writes it. Every reference it takes is dropped before it returns, on
// error too.
func access(ctx context.Context, c bcache.BlockCache, blockno uint32, pin, write bool, v uint64) error {
	b, err := c.ReadContext(ctx, benchDev, blockno)
	if err != nil {
		return err
	}
	if pin {
		c.Pin(b)
		defer c.Unpin(b)
	}
	defer c.Release(b)

	if write {
		stamp(b.Data(), v)
		return c.Write(b)
	}
	return nil
}

// openDisk returns an in-memory disk when path is empty. Otherwise it opens
// the disk image at path, creating one of nblocks blocks only if no file
// exists there. Any other file is left untouched and reported.
func openDisk(path string, nblocks uint32) (device.Disk, error) {
	if path == "" {
		return device.NewMem(nblocks), nil
	}
	im, err := device.OpenImage(path)
	switch {
	case err == nil:
		return im, nil
	case errors.Is(err, fs.ErrNotExist):
		return device.CreateImage(path, nblocks)
	default:
		return nil, err
	}
}

// newLogger builds a slog handler from flag values.
func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("bad -log-level %q: %w", level, err)
	}
	hopts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, hopts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, hopts)), nil
	default:
		return nil, fmt.Errorf("unknown -log-format %q (use text or json)", format)
	}
}

// stamp writes v into the first 8 bytes of p.
func stamp(p []byte, v uint64) {
	for i := 0; i < 8; i++ {
		p[i] = byte(v >> (8 * i))
	}
}
