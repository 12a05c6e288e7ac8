// Package util contains internal helpers (shard selection, padding).
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

// ShardIndex maps a block number to a shard index.
// Power-of-two shard counts take the mask path; any other count
// (the default is prime) falls back to modulo. Both agree with blockno % shards.
func ShardIndex(blockno uint64, shards int) int {
	if shards <= 1 {
		return 0
	}
	if IsPowerOfTwo(uint64(shards)) {
		return int(blockno & uint64(shards-1))
	}
	return int(blockno % uint64(shards))
}
