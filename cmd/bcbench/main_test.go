package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/IvanBrykalov/bcache/bcache"
	"github.com/IvanBrykalov/bcache/device"
	"github.com/stretchr/testify/require"
)

func TestOpenDisk_Mem(t *testing.T) {
	t.Parallel()

	d, err := openDisk("", 32)
	require.NoError(t, err)
	require.IsType(t, &device.Mem{}, d)
	require.EqualValues(t, 32, d.Size())
}

func TestOpenDisk_CreatesMissingImage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "disk.img")
	d, err := openDisk(path, 8)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.(io.Closer).Close() })
	require.EqualValues(t, 8, d.Size())
}

// An existing image is reopened with its own size, whatever -blocks says.
func TestOpenDisk_ReopenKeepsImageSize(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "disk.img")
	im, err := device.CreateImage(path, 16)
	require.NoError(t, err)
	require.NoError(t, im.Close())

	d, err := openDisk(path, 4096)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.(io.Closer).Close() })
	require.EqualValues(t, 16, d.Size())
}

// A file that is not an image is reported and left byte-for-byte intact.
func TestOpenDisk_KeepsForeignFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "notes.bin")
	orig := bytes.Repeat([]byte{0xab}, 8*device.BlockSize)
	require.NoError(t, os.WriteFile(path, orig, 0o644))

	d, err := openDisk(path, 4)
	require.ErrorIs(t, err, device.ErrBadImage)
	require.Nil(t, d)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, orig, got)
}

// A failed write still drops both the hold and the pin.
func TestAccess_WriteErrorDropsReferences(t *testing.T) {
	t.Parallel()

	mem := device.NewMem(16)
	disks := device.NewTable()
	disks.Register(benchDev, mem)
	c := bcache.New(bcache.Options{Buffers: 2, Shards: 1, Device: disks})

	eio := errors.New("eio")
	mem.FailWrites(eio)
	err := access(context.Background(), c, 3, true, true, 42)
	require.ErrorIs(t, err, eio)

	st := c.Stats()
	require.Equal(t, 2, st.Free)
	require.Zero(t, st.Pinned)

	mem.FailWrites(nil)
	require.NoError(t, access(context.Background(), c, 3, true, true, 42))
	require.Equal(t, 2, c.Stats().Free)
}
