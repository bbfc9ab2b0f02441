package collections

import "math/bits"

// Bitset is a growable set of non-negative integers, one bit per member.
// The unpacker uses it to track slot states by slot index.
type Bitset struct {
	bits []uint64
	size int
}

// NewBitset creates a bitset sized for indices below size.
func NewBitset(size int) *Bitset {
	if size <= 0 {
		size = 64
	}
	return &Bitset{
		bits: make([]uint64, (size+63)/64),
		size: size,
	}
}

// Set adds i. Negative indices are ignored.
func (b *Bitset) Set(i int) {
	if i < 0 {
		return
	}
	wordIdx := i / 64
	if wordIdx >= len(b.bits) {
		b.grow(i + 1)
	}
	b.bits[wordIdx] |= 1 << (i % 64)
	if i >= b.size {
		b.size = i + 1
	}
}

// Clear removes i.
func (b *Bitset) Clear(i int) {
	if i < 0 || i/64 >= len(b.bits) {
		return
	}
	b.bits[i/64] &^= 1 << (i % 64)
}

// Test reports whether i is a member.
func (b *Bitset) Test(i int) bool {
	if i < 0 || i/64 >= len(b.bits) {
		return false
	}
	return b.bits[i/64]&(1<<(i%64)) != 0
}

// Count returns the number of members.
func (b *Bitset) Count() int {
	count := 0
	for _, word := range b.bits {
		count += bits.OnesCount64(word)
	}
	return count
}

// Size returns the index bound the bitset currently covers.
func (b *Bitset) Size() int {
	return b.size
}

func (b *Bitset) grow(newSize int) {
	numWords := (newSize + 63) / 64
	if numWords <= len(b.bits) {
		return
	}
	newCap := len(b.bits) * 2
	if newCap < numWords {
		newCap = numWords
	}
	newBits := make([]uint64, newCap)
	copy(newBits, b.bits)
	b.bits = newBits
}

// Iterate calls fn for each member in ascending order until fn returns false.
func (b *Bitset) Iterate(fn func(i int) bool) {
	for wordIdx, word := range b.bits {
		base := wordIdx * 64
		for word != 0 {
			tz := bits.TrailingZeros64(word)
			if !fn(base + tz) {
				return
			}
			word &= word - 1
		}
	}
}

// ToSlice returns the members in ascending order.
func (b *Bitset) ToSlice() []int {
	result := make([]int, 0, b.Count())
	b.Iterate(func(i int) bool {
		result = append(result, i)
		return true
	})
	return result
}
