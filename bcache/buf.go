package bcache

import "github.com/IvanBrykalov/bcache/internal/sleeplock"

// none terminates slot lists.
const none int32 = -1

// blockKey is the identity of a cached block.
type blockKey struct {
	dev     uint32
	blockno uint32
}

// slot is one statically allocated buffer. It is never freed, only rebound.
//
// Identity (dev, blockno, bound), refcnt and the list links are guarded by
// the lock of the shard the slot is linked into. valid and data are guarded
// by the slot's sleep lock.
type slot struct {
	idx int32

	dev     uint32
	blockno uint32
	bound   bool // false until the slot first caches a block
	refcnt  int32

	// Intrusive list links (arena indices): head is MRU, tail is LRU.
	prev int32
	next int32

	lock  sleeplock.Lock[Buf]
	valid bool   // data reflects the device contents
	data  []byte // device.BlockSize bytes of the shared arena
}

func (s *slot) key() blockKey { return blockKey{dev: s.dev, blockno: s.blockno} }

// Free reports whether nobody references the slot (part of policy.Node).
func (s *slot) Free() bool { return s.refcnt == 0 }

// Buf is an exclusive-access token for one buffer, returned by Get and Read.
// The token is live until passed to Release; every later Write or Release
// with it is fatal. Data may only be touched while the token is live.
type Buf struct {
	s   *slot
	key blockKey // identity the token was issued for
}

// Dev returns the device id of the cached block.
func (b *Buf) Dev() uint32 { return b.key.dev }

// Blockno returns the block number of the cached block.
func (b *Buf) Blockno() uint32 { return b.key.blockno }

// referencedLocked reports whether b's slot still caches the block b was
// issued for and has a reference (a hold or a pin). A referenced slot cannot
// be rebound. Shard lock held.
func (b *Buf) referencedLocked() bool {
	s := b.s
	return s.bound && s.key() == b.key && s.refcnt > 0
}

// Valid reports whether Data holds the device contents.
func (b *Buf) Valid() bool { return b.s.valid }

// Data returns the block payload. Modifications reach the device on Write.
func (b *Buf) Data() []byte { return b.s.data }

// Held reports whether this token still holds the buffer.
func (b *Buf) Held() bool { return b.s.lock.HeldBy(b) }
