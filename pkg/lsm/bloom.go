package lsm

import (
	"encoding/binary"

	"github.com/bits-and-blooms/bitset"
)

// fnvOffset and fnvPrime seed the per-hash-index FNV-1a variant: hash i
// starts from 2166136261 XOR i so that the k hash functions are distinct
// while remaining deterministic and re-derivable on deserialize.
const (
	fnvOffset uint32 = 2166136261
	fnvPrime  uint32 = 16777619
)

// BloomFilter is a fixed-size bit array with k independent hash functions.
// It never produces a false negative: mightContain returns false only if
// the key was never added.
type BloomFilter struct {
	size      uint32
	hashCount uint8
	bits      *bitset.BitSet
}

// NewBloomFilter allocates an empty filter of the given size and hash count.
func NewBloomFilter(size uint32, hashCount uint8) *BloomFilter {
	if size == 0 {
		size = DefaultBloomFilterSize
	}
	if hashCount == 0 {
		hashCount = DefaultBloomHashCount
	}
	return &BloomFilter{size: size, hashCount: hashCount, bits: bitset.New(uint(size))}
}

// hashAt reproduces the reference hash family: for index i, start with
// h = 2166136261 XOR i, then for each byte of the key fold it in with
// h = (h XOR byte) * 16777619, all within uint32. The bit position is
// h mod size.
func (b *BloomFilter) hashAt(key string, i uint8) uint32 {
	h := fnvOffset ^ uint32(i)
	for _, c := range []byte(key) {
		h = (h ^ uint32(c)) * fnvPrime
	}
	return h % b.size
}

// Add sets the k bits derived from key.
func (b *BloomFilter) Add(key string) {
	for i := uint8(0); i < b.hashCount; i++ {
		b.bits.Set(uint(b.hashAt(key, i)))
	}
}

// MightContain returns false only if key was never added (no false
// negatives); it may return true for a key that was never added (a false
// positive).
func (b *BloomFilter) MightContain(key string) bool {
	for i := uint8(0); i < b.hashCount; i++ {
		if !b.bits.Test(uint(b.hashAt(key, i))) {
			return false
		}
	}
	return true
}

// Serialize encodes the filter as size(4B LE) | hashCount(1B) | bits.
func (b *BloomFilter) Serialize() []byte {
	nBytes := (b.size + 7) / 8
	buf := make([]byte, 5+nBytes)
	binary.LittleEndian.PutUint32(buf[0:4], b.size)
	buf[4] = b.hashCount
	for i := uint32(0); i < b.size; i++ {
		if b.bits.Test(uint(i)) {
			buf[5+i/8] |= 1 << (i % 8)
		}
	}
	return buf
}

// DeserializeBloomFilter reconstructs a filter from Serialize's output.
// Every key that returned true via MightContain before serialization still
// returns true afterward.
func DeserializeBloomFilter(data []byte) (*BloomFilter, error) {
	if len(data) < 5 {
		return nil, ErrCorruptFilter
	}
	size := binary.LittleEndian.Uint32(data[0:4])
	hashCount := data[4]
	nBytes := (size + 7) / 8
	if uint32(len(data)) < 5+nBytes {
		return nil, ErrCorruptFilter
	}
	bits := bitset.New(uint(size))
	for i := uint32(0); i < size; i++ {
		if data[5+i/8]&(1<<(i%8)) != 0 {
			bits.Set(uint(i))
		}
	}
	return &BloomFilter{size: size, hashCount: hashCount, bits: bits}, nil
}
