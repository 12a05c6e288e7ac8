package device

import "golang.org/x/xerrors"

// BlockSize is the payload size of every block, shared with the cache.
const BlockSize = 1024

var (
	// ErrNoDevice is returned by Table for an unregistered device id.
	ErrNoDevice = xerrors.New("device: no such device")
	// ErrOutOfRange is returned for a block number past the end of a disk.
	ErrOutOfRange = xerrors.New("device: block out of range")
	// ErrShortBuffer is returned when the payload is not exactly BlockSize bytes.
	ErrShortBuffer = xerrors.New("device: payload must be BlockSize bytes")
	// ErrBadImage is returned by OpenImage for a file without a valid header.
	ErrBadImage = xerrors.New("device: not a block image")
)

// Disk is a single block device.
type Disk interface {
	// ReadBlock fills p (BlockSize bytes) with the contents of blockno.
	ReadBlock(blockno uint32, p []byte) error
	// WriteBlock stores p (BlockSize bytes) as the contents of blockno.
	WriteBlock(blockno uint32, p []byte) error
	// Size returns the number of blocks on the disk.
	Size() uint32
}

// Stats counts completed transfers.
type Stats struct {
	Reads  uint64
	Writes uint64
	Syncs  uint64
}

func checkArgs(blockno, size uint32, p []byte) error {
	if len(p) != BlockSize {
		return xerrors.Errorf("block %d: %w", blockno, ErrShortBuffer)
	}
	if blockno >= size {
		return xerrors.Errorf("block %d of %d: %w", blockno, size, ErrOutOfRange)
	}
	return nil
}
