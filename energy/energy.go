// Package energy implements energy ports and the aggregation of several
// ports into one input, as used by multiblock controllers drawing power
// from their energy hatches.
package energy

import (
	"github.com/oriumgames/mecs"
	"github.com/oriumgames/mecs/internal/nbtconv"
)

// Port is an energy source a consumer can draw from. ConsumeEnergy returns
// the amount drawn, at most max. With simulate set, nothing is drawn and the
// return value is what would have been drawn.
type Port interface {
	ConsumeEnergy(max int64, simulate bool) int64
}

// Buffer is a component storing energy, owned by an energy hatch.
type Buffer struct {
	Stored   int64
	Capacity int64

	detached bool
}

// NewBuffer returns an empty buffer with the given capacity.
func NewBuffer(capacity int64) *Buffer {
	return &Buffer{Capacity: capacity}
}

// ConsumeEnergy implements Port.
func (b *Buffer) ConsumeEnergy(max int64, simulate bool) int64 {
	if max <= 0 || b.Stored <= 0 || b.detached {
		return 0
	}
	n := min(max, b.Stored)
	if !simulate {
		b.Stored -= n
	}
	return n
}

// Insert adds up to amount and returns what was accepted.
func (b *Buffer) Insert(amount int64, simulate bool) int64 {
	if amount <= 0 || b.detached {
		return 0
	}
	n := min(amount, b.Capacity-b.Stored)
	if n <= 0 {
		return 0
	}
	if !simulate {
		b.Stored += n
	}
	return n
}

// RemainingSpace returns how much energy the buffer still accepts.
func (b *Buffer) RemainingSpace() int64 {
	return max(b.Capacity-b.Stored, 0)
}

// Detach disconnects the buffer of a removed machine. Consumers still
// holding it as a port draw nothing from it.
func (b *Buffer) Detach(*mecs.Machine) {
	b.detached = true
}

func (b *Buffer) EncodeNBT(tag map[string]any) {
	tag["stored"] = b.Stored
}

// DecodeNBT restores the stored amount, clamped to the capacity.
func (b *Buffer) DecodeNBT(tag map[string]any) {
	b.Stored = min(max(nbtconv.Int64(tag, "stored"), 0), b.Capacity)
}

// Source is a component that feeds a fixed amount of energy per tick into
// the Buffer of its machine.
type Source struct {
	Rate int64
}

// SourceLoop inserts Source.Rate into the machine's buffer each tick.
type SourceLoop struct {
	Machine *mecs.Machine
	Source  *Source
	Buffer  *Buffer `mecs:"mut"`
}

func (l *SourceLoop) Run() {
	if l.Buffer.Insert(l.Source.Rate, false) > 0 {
		l.Machine.MarkDirty()
	}
}
