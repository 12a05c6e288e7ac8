package device

import (
	"sync"
	"sync/atomic"
	"time"
)

// Mem is an in-memory disk. Blocks are allocated lazily and read as zeros
// until first written.
type Mem struct {
	size uint32

	mu     sync.RWMutex
	blocks map[uint32][]byte

	// fault injection and simulated latency
	readErr  atomic.Pointer[error]
	writeErr atomic.Pointer[error]
	latency  atomic.Int64

	reads  atomic.Uint64
	writes atomic.Uint64
}

// NewMem returns an empty in-memory disk of size blocks.
func NewMem(size uint32) *Mem {
	return &Mem{size: size, blocks: make(map[uint32][]byte)}
}

// Size returns the number of blocks.
func (m *Mem) Size() uint32 { return m.size }

// ReadBlock copies blockno into p.
func (m *Mem) ReadBlock(blockno uint32, p []byte) error {
	if err := checkArgs(blockno, m.size, p); err != nil {
		return err
	}
	m.sleep()
	if e := m.readErr.Load(); e != nil {
		return *e
	}
	m.mu.RLock()
	b, ok := m.blocks[blockno]
	if ok {
		copy(p, b)
	} else {
		clear(p)
	}
	m.mu.RUnlock()
	m.reads.Add(1)
	return nil
}

// WriteBlock copies p into blockno.
func (m *Mem) WriteBlock(blockno uint32, p []byte) error {
	if err := checkArgs(blockno, m.size, p); err != nil {
		return err
	}
	m.sleep()
	if e := m.writeErr.Load(); e != nil {
		return *e
	}
	m.mu.Lock()
	b, ok := m.blocks[blockno]
	if !ok {
		b = make([]byte, BlockSize)
		m.blocks[blockno] = b
	}
	copy(b, p)
	m.mu.Unlock()
	m.writes.Add(1)
	return nil
}

// FailReads makes every following read return err. A nil err clears it.
func (m *Mem) FailReads(err error) { storeErr(&m.readErr, err) }

// FailWrites makes every following write return err. A nil err clears it.
func (m *Mem) FailWrites(err error) { storeErr(&m.writeErr, err) }

// SetLatency makes each transfer sleep for d before completing.
func (m *Mem) SetLatency(d time.Duration) { m.latency.Store(int64(d)) }

// Stats returns the number of successful transfers so far.
func (m *Mem) Stats() Stats {
	return Stats{Reads: m.reads.Load(), Writes: m.writes.Load()}
}

func (m *Mem) sleep() {
	if d := time.Duration(m.latency.Load()); d > 0 {
		time.Sleep(d)
	}
}

func storeErr(p *atomic.Pointer[error], err error) {
	if err == nil {
		p.Store(nil)
		return
	}
	p.Store(&err)
}

var _ Disk = (*Mem)(nil)
