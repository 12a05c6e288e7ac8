package device

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// countingDisk records the peak number of concurrent transfers.
type countingDisk struct {
	*Mem
	cur, peak atomic.Int32
}

func (c *countingDisk) ReadBlock(b uint32, p []byte) error {
	n := c.cur.Add(1)
	for {
		old := c.peak.Load()
		if n <= old || c.peak.CompareAndSwap(old, n) {
			break
		}
	}
	defer c.cur.Add(-1)
	return c.Mem.ReadBlock(b, p)
}

func TestThrottle_MaxInFlight(t *testing.T) {
	t.Parallel()

	m := NewMem(64)
	m.SetLatency(2 * time.Millisecond)
	cd := &countingDisk{Mem: m}
	d := Throttle(cd, ThrottleConfig{MaxInFlight: 2})

	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			return d.ReadBlock(uint32(i), make([]byte, BlockSize))
		})
	}
	require.NoError(t, g.Wait())
	require.LessOrEqual(t, cd.peak.Load(), int32(2))
	require.EqualValues(t, 16, m.Stats().Reads)
}

func TestThrottle_Bandwidth(t *testing.T) {
	t.Parallel()

	m := NewMem(16)
	// The bucket starts full with one second of budget (10 blocks);
	// each block after that waits ~100ms.
	d := Throttle(m, ThrottleConfig{BytesPerSec: 10 * BlockSize})

	start := time.Now()
	for i := 0; i < 15; i++ {
		require.NoError(t, d.WriteBlock(uint32(i), block(byte(i))))
	}
	require.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond)
	require.EqualValues(t, 16, d.Size())
}

func TestThrottle_Unlimited(t *testing.T) {
	t.Parallel()

	m := NewMem(2)
	d := Throttle(m, ThrottleConfig{})
	require.NoError(t, d.WriteBlock(1, block(1)))
	p := make([]byte, BlockSize)
	require.NoError(t, d.ReadBlock(1, p))
	require.Equal(t, block(1), p)
}
