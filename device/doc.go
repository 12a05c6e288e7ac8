// Package device provides block devices for the buffer cache: the
// collaborator that performs synchronous transfers of one fixed-size block.
//
//   - Mem is an in-memory disk with transfer counters and fault injection.
//   - Image is a file-backed disk image with a small packed header.
//   - Throttled caps bandwidth and in-flight transfers of another disk.
//   - Table routes Transfer(dev, ...) calls to the disk registered for dev,
//     which is the shape the cache consumes.
//
// All disks are safe for concurrent use. Callers must not issue two transfers
// for the same block concurrently; the buffer cache guarantees this through
// its per-buffer lock.
package device
