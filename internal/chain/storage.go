package chain

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Twox128 is Substrate's twox_128: two seeded xxhash64 digests, little
// endian, concatenated.
func Twox128(data []byte) []byte {
	out := make([]byte, 0, 16)
	for seed := uint64(0); seed < 2; seed++ {
		out = binary.LittleEndian.AppendUint64(out, twox64(seed, data))
	}
	return out
}

// Twox64Concat is the storage map hasher that appends the raw key to its
// twox_64 digest.
func Twox64Concat(data []byte) []byte {
	out := make([]byte, 0, 8+len(data))
	out = binary.LittleEndian.AppendUint64(out, twox64(0, data))
	return append(out, data...)
}

func twox64(seed uint64, data []byte) uint64 {
	d := xxhash.NewWithSeed(seed)
	_, _ = d.Write(data)
	return d.Sum64()
}

// StorageMapKey builds the key of a single-hasher storage map entry keyed
// with Twox64Concat.
func StorageMapKey(pallet, item string, key []byte) []byte {
	out := make([]byte, 0, 32+8+len(key))
	out = append(out, Twox128([]byte(pallet))...)
	out = append(out, Twox128([]byte(item))...)
	return append(out, Twox64Concat(key)...)
}
