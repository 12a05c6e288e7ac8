package bcache

import (
	"log/slog"

	"github.com/IvanBrykalov/bcache/policy"
)

const (
	// DefaultBuffers is the pool size used when Options.Buffers is 0.
	DefaultBuffers = 30
	// DefaultShards is the shard count used when Options.Shards is 0.
	// It is prime so sequential block numbers spread over all shards.
	DefaultShards = 13
)

// Device performs synchronous block transfers for the cache.
// Transfer fills data from (write == false) or flushes data to
// (write == true) block blockno of device dev. It may block; the cache only
// calls it while the buffer's exclusive lock is held and no cache-wide lock is.
type Device interface {
	Transfer(dev, blockno uint32, data []byte, write bool) error
}

// RecycleReason tells where a buffer for a missed block came from.
type RecycleReason int

const (
	// RecycleLocal: a free buffer already in the block's own shard was rebound.
	RecycleLocal RecycleReason = iota
	// RecycleSteal: a free buffer was moved in from another shard (slow path).
	RecycleSteal
)

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
// Hooks may run under a shard or the global lock; keep them lightweight.
type Metrics interface {
	Hit()
	Miss()
	Recycle(reason RecycleReason)
	Transfer(write bool, err error)
	// Wait is called each time a slow-path caller sleeps for a free buffer.
	Wait()
}

// Options configures the cache. Zero values are safe except Device;
// sane defaults are applied in New():
//   - Buffers == 0 => DefaultBuffers
//   - Shards == 0  => DefaultShards
//   - nil Policy   => LRU
//   - nil Metrics  => NoopMetrics
//   - nil Logger   => discard
type Options struct {
	// Buffers is the fixed number of buffer slots in the pool.
	Buffers int

	// Shards is the number of hash buckets; block b lives in shard b % Shards.
	Shards int

	// Device performs block transfers. Required.
	Device Device

	// Policy chooses placement and recycling victims; nil => LRU.
	Policy policy.Policy

	// WaitForBuffers makes an exhausted pool block the caller until some
	// buffer is released or unpinned. When false, exhaustion is fatal
	// (panic with ErrNoBuffers).
	WaitForBuffers bool

	// Observability
	Metrics Metrics
	Logger  *slog.Logger
}
