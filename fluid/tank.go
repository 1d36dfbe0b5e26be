// Package fluid implements fluid tanks attached to machines and the
// transfer of fluid between adjacent machines.
package fluid

// Fluid identifies a fluid. The zero value is no fluid.
type Fluid string

const (
	Empty Fluid = ""
	Water Fluid = "minecraft:water"
	Steam Fluid = "mecs:steam"
)

// Droplets per bucket.
const Bucket int64 = 81000

// Tank is a single fluid slot. A locked tank only ever holds its Fluid.
// Input tanks accept fluid from neighbours, output tanks hand it out.
type Tank struct {
	Fluid    Fluid
	Amount   int64
	Capacity int64
	Locked   bool
	Input    bool
	Output   bool
}

// LockedInput returns an input tank that only accepts f.
func LockedInput(capacity int64, f Fluid) *Tank {
	return &Tank{Fluid: f, Capacity: capacity, Locked: true, Input: true}
}

// LockedOutput returns an output tank that only holds f.
func LockedOutput(capacity int64, f Fluid) *Tank {
	return &Tank{Fluid: f, Capacity: capacity, Locked: true, Output: true}
}

// RemainingSpace returns the free capacity of the tank.
func (t *Tank) RemainingSpace() int64 {
	return max(t.Capacity-t.Amount, 0)
}

// Increment adds n without any checks beyond the capacity.
func (t *Tank) Increment(n int64) {
	t.Amount = min(t.Amount+n, t.Capacity)
}

// Decrement removes n, flooring the amount at zero. Unlocked tanks forget
// their fluid once empty.
func (t *Tank) Decrement(n int64) {
	t.Amount = max(t.Amount-n, 0)
	if t.Amount == 0 && !t.Locked {
		t.Fluid = Empty
	}
}

// Accepts reports whether the tank can take fluid f from outside.
func (t *Tank) Accepts(f Fluid) bool {
	if !t.Input || f == Empty {
		return false
	}
	if t.Fluid == f {
		return true
	}
	return !t.Locked && t.Amount == 0
}

// Insert adds up to amount of f and returns how much was accepted.
func (t *Tank) Insert(f Fluid, amount int64, simulate bool) int64 {
	if amount <= 0 || !t.Accepts(f) {
		return 0
	}
	n := min(amount, t.RemainingSpace())
	if n > 0 && !simulate {
		t.Fluid = f
		t.Amount += n
	}
	return n
}

// Extract removes up to amount and returns how much was removed. Only
// output tanks can be extracted from.
func (t *Tank) Extract(amount int64, simulate bool) int64 {
	if !t.Output || amount <= 0 {
		return 0
	}
	n := min(amount, t.Amount)
	if n > 0 && !simulate {
		t.Decrement(n)
	}
	return n
}
