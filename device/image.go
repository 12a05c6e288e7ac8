package device

import (
	"bytes"
	"io"
	"os"
	"sync/atomic"

	"github.com/lunixbochs/struc"
	"golang.org/x/xerrors"
)

const (
	imageMagic   = 0x62636163 // "bcac"
	imageVersion = 1
)

/*
Image layout
+--------------------+---------+---------+-----+-------------+
| header (1 block)   | block 0 | block 1 | ... | block n-1   |
+--------------------+---------+---------+-----+-------------+
*/
type imageHeader struct {
	Magic     uint32 `struc:"uint32,little"`
	Version   uint16 `struc:"uint16,little"`
	Flags     uint16 `struc:"uint16,little"`
	BlockSize uint32 `struc:"uint32,little"`
	NBlocks   uint32 `struc:"uint32,little"`
}

// Image is a disk backed by a regular file.
type Image struct {
	f   *os.File
	hdr imageHeader

	reads  atomic.Uint64
	writes atomic.Uint64
	syncs  atomic.Uint64
}

// CreateImage creates (or truncates) path as an image of nblocks zeroed blocks.
func CreateImage(path string, nblocks uint32) (*Image, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, xerrors.Errorf("failed to create image: %w", err)
	}
	hdr := imageHeader{
		Magic:     imageMagic,
		Version:   imageVersion,
		BlockSize: BlockSize,
		NBlocks:   nblocks,
	}
	var buf bytes.Buffer
	if err := struc.Pack(&buf, &hdr); err != nil {
		_ = f.Close()
		return nil, xerrors.Errorf("failed to pack image header: %w", err)
	}
	blk := make([]byte, BlockSize)
	copy(blk, buf.Bytes())
	if _, err := f.WriteAt(blk, 0); err != nil {
		_ = f.Close()
		return nil, xerrors.Errorf("failed to write image header: %w", err)
	}
	if err := f.Truncate(blockOffset(nblocks)); err != nil {
		_ = f.Close()
		return nil, xerrors.Errorf("failed to size image: %w", err)
	}
	return &Image{f: f, hdr: hdr}, nil
}

// OpenImage opens an existing image created by CreateImage.
func OpenImage(path string) (*Image, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, xerrors.Errorf("failed to open image: %w", err)
	}
	var hdr imageHeader
	if err := struc.Unpack(io.NewSectionReader(f, 0, BlockSize), &hdr); err != nil {
		_ = f.Close()
		return nil, xerrors.Errorf("failed to parse image header (%v): %w", err, ErrBadImage)
	}
	if hdr.Magic != imageMagic || hdr.Version != imageVersion {
		_ = f.Close()
		return nil, xerrors.Errorf("magic %#x version %d: %w", hdr.Magic, hdr.Version, ErrBadImage)
	}
	if hdr.BlockSize != BlockSize {
		_ = f.Close()
		return nil, xerrors.Errorf("block size %d: %w", hdr.BlockSize, ErrBadImage)
	}
	return &Image{f: f, hdr: hdr}, nil
}

// Size returns the number of data blocks.
func (im *Image) Size() uint32 { return im.hdr.NBlocks }

// ReadBlock reads blockno into p.
func (im *Image) ReadBlock(blockno uint32, p []byte) error {
	if err := checkArgs(blockno, im.hdr.NBlocks, p); err != nil {
		return err
	}
	if _, err := im.f.ReadAt(p, blockOffset(blockno)); err != nil {
		return xerrors.Errorf("failed to read block %d: %w", blockno, err)
	}
	im.reads.Add(1)
	return nil
}

// WriteBlock writes p to blockno.
func (im *Image) WriteBlock(blockno uint32, p []byte) error {
	if err := checkArgs(blockno, im.hdr.NBlocks, p); err != nil {
		return err
	}
	if _, err := im.f.WriteAt(p, blockOffset(blockno)); err != nil {
		return xerrors.Errorf("failed to write block %d: %w", blockno, err)
	}
	im.writes.Add(1)
	return nil
}

// Sync flushes written blocks to stable storage.
func (im *Image) Sync() error {
	if err := datasync(im.f); err != nil {
		return xerrors.Errorf("failed to sync image: %w", err)
	}
	im.syncs.Add(1)
	return nil
}

// Close syncs and closes the underlying file.
func (im *Image) Close() error {
	if err := im.Sync(); err != nil {
		_ = im.f.Close()
		return err
	}
	return im.f.Close()
}

// Stats returns transfer counters.
func (im *Image) Stats() Stats {
	return Stats{Reads: im.reads.Load(), Writes: im.writes.Load(), Syncs: im.syncs.Load()}
}

// blockOffset is the file offset of data block blockno; blockOffset(n) is
// also the size of an image of n blocks.
func blockOffset(blockno uint32) int64 { return (int64(blockno) + 1) * BlockSize }

var _ Disk = (*Image)(nil)
