package checker

import "math/bits"

// bitset tracks which operations the search has linearized so far.
type bitset []uint64

func newBitset(n uint) bitset {
	chunks := n / 64
	if n%64 != 0 {
		chunks++
	}
	return make(bitset, chunks)
}

func (b bitset) clone() bitset {
	out := make(bitset, len(b))
	copy(out, b)
	return out
}

func (b bitset) set(pos uint) bitset {
	b[pos/64] |= 1 << (pos % 64)
	return b
}

func (b bitset) clear(pos uint) bitset {
	b[pos/64] &^= 1 << (pos % 64)
	return b
}

func (b bitset) popcnt() uint {
	total := 0
	for _, v := range b {
		total += bits.OnesCount64(v)
	}
	return uint(total)
}

func (b bitset) hash() uint64 {
	h := uint64(b.popcnt())
	for _, v := range b {
		h ^= v
	}
	return h
}

func (b bitset) equals(other bitset) bool {
	if len(b) != len(other) {
		return false
	}
	for i := range b {
		if b[i] != other[i] {
			return false
		}
	}
	return true
}
