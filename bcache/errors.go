package bcache

import "errors"

// Fatal conditions. The cache panics with one of these values; they indicate
// a reference-counting leak, an undersized pool, or a caller bug, and the
// cache index cannot be trusted afterwards.
var (
	// ErrNoBuffers: no reclaimable buffer in any shard.
	ErrNoBuffers = errors.New("bcache: no buffers")
	// ErrNotHeld: Write or Release by a caller that does not hold the buffer.
	ErrNotHeld = errors.New("bcache: buffer not held by caller")
	// ErrRefcount: Unpin of a buffer with no references.
	ErrRefcount = errors.New("bcache: refcount underflow")
)

// fatal logs err with context and panics with err as the panic value.
func (c *Cache) fatal(err error, args ...any) {
	c.log.Error(err.Error(), args...)
	panic(err)
}
