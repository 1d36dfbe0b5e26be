package mecs

import (
	"math/bits"
)

// Bitmask tracks component presence on a machine, one bit per ComponentID.
type Bitmask [4]uint64

// Set sets the bit for id.
func (m *Bitmask) Set(id ComponentID) {
	m[id>>6] |= 1 << (id & 63)
}

// Clear clears the bit for id.
func (m *Bitmask) Clear(id ComponentID) {
	m[id>>6] &^= 1 << (id & 63)
}

// Has reports whether the bit for id is set.
func (m *Bitmask) Has(id ComponentID) bool {
	return m[id>>6]&(1<<(id&63)) != 0
}

// ContainsAll reports whether every bit of other is set in m.
func (m *Bitmask) ContainsAll(other Bitmask) bool {
	for i := range m {
		if m[i]&other[i] != other[i] {
			return false
		}
	}
	return true
}

// ContainsAny reports whether m and other share at least one bit.
func (m *Bitmask) ContainsAny(other Bitmask) bool {
	for i := range m {
		if m[i]&other[i] != 0 {
			return true
		}
	}
	return false
}

// IsZero reports whether no bit is set.
func (m *Bitmask) IsZero() bool {
	return *m == Bitmask{}
}

// Count returns the number of set bits.
func (m *Bitmask) Count() int {
	n := 0
	for _, w := range m {
		n += bits.OnesCount64(w)
	}
	return n
}

// IDs returns the set component IDs in ascending order.
func (m *Bitmask) IDs() []ComponentID {
	ids := make([]ComponentID, 0, m.Count())
	for i, w := range m {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			ids = append(ids, ComponentID(i*64+b))
			w &= w - 1
		}
	}
	return ids
}
