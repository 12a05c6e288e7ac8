package device

import (
	"context"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ThrottleConfig limits a disk's transfers.
type ThrottleConfig struct {
	// BytesPerSec caps transfer bandwidth. If 0, unlimited.
	BytesPerSec int
	// MaxInFlight caps concurrent transfers. If 0, unlimited.
	MaxInFlight int64
}

// Throttled wraps a Disk with a bandwidth limiter and an in-flight cap,
// emulating a slow device so callers really suspend inside transfers.
type Throttled struct {
	d       Disk
	limiter *rate.Limiter       // nil if unlimited
	sem     *semaphore.Weighted // nil if unlimited
}

// Throttle wraps d according to cfg.
func Throttle(d Disk, cfg ThrottleConfig) *Throttled {
	t := &Throttled{d: d}
	if cfg.BytesPerSec > 0 {
		burst := cfg.BytesPerSec
		if burst < BlockSize {
			burst = BlockSize // WaitN fails for n > burst
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.BytesPerSec), burst)
	}
	if cfg.MaxInFlight > 0 {
		t.sem = semaphore.NewWeighted(cfg.MaxInFlight)
	}
	return t
}

// Size returns the size of the wrapped disk.
func (t *Throttled) Size() uint32 { return t.d.Size() }

// ReadBlock waits for budget, then reads from the wrapped disk.
func (t *Throttled) ReadBlock(blockno uint32, p []byte) error {
	release, err := t.wait(len(p))
	if err != nil {
		return err
	}
	defer release()
	return t.d.ReadBlock(blockno, p)
}

// WriteBlock waits for budget, then writes to the wrapped disk.
func (t *Throttled) WriteBlock(blockno uint32, p []byte) error {
	release, err := t.wait(len(p))
	if err != nil {
		return err
	}
	defer release()
	return t.d.WriteBlock(blockno, p)
}

func (t *Throttled) wait(n int) (func(), error) {
	ctx := context.Background()
	if t.sem != nil {
		if err := t.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}
	release := func() {
		if t.sem != nil {
			t.sem.Release(1)
		}
	}
	if t.limiter != nil {
		if err := t.limiter.WaitN(ctx, n); err != nil {
			release()
			return nil, err
		}
	}
	return release, nil
}

var _ Disk = (*Throttled)(nil)
