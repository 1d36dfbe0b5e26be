package fluid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockedInputOnlyAcceptsItsFluid(t *testing.T) {
	tank := LockedInput(1000, Water)

	assert.Equal(t, int64(0), tank.Insert(Steam, 100, false))
	assert.Equal(t, int64(100), tank.Insert(Water, 100, false))
	assert.Equal(t, int64(900), tank.RemainingSpace())
	assert.Equal(t, int64(900), tank.Insert(Water, 5000, false))
	assert.Equal(t, int64(0), tank.Insert(Water, 1, false))
}

func TestInsertSimulate(t *testing.T) {
	tank := LockedInput(1000, Water)
	assert.Equal(t, int64(500), tank.Insert(Water, 500, true))
	assert.Equal(t, int64(0), tank.Amount)
}

func TestExtractOnlyFromOutputs(t *testing.T) {
	in := LockedInput(1000, Water)
	in.Increment(500)
	assert.Equal(t, int64(0), in.Extract(100, false))

	out := LockedOutput(1000, Steam)
	out.Increment(300)
	assert.Equal(t, int64(300), out.Extract(500, true))
	assert.Equal(t, int64(300), out.Amount)
	assert.Equal(t, int64(300), out.Extract(500, false))
	assert.Equal(t, int64(0), out.Amount)
	assert.Equal(t, Steam, out.Fluid)
}

func TestUnlockedTankForgetsFluidWhenEmpty(t *testing.T) {
	tank := &Tank{Capacity: 100, Input: true, Output: true}
	require.Equal(t, int64(40), tank.Insert(Steam, 40, false))
	assert.False(t, tank.Accepts(Water))

	tank.Decrement(40)
	assert.Equal(t, Empty, tank.Fluid)
	assert.True(t, tank.Accepts(Water))
}

func TestIncrementDecrementClamp(t *testing.T) {
	tank := LockedOutput(100, Steam)
	tank.Increment(150)
	assert.Equal(t, int64(100), tank.Amount)
	tank.Decrement(150)
	assert.Equal(t, int64(0), tank.Amount)
}

func TestAutoExtract(t *testing.T) {
	from := NewTanks(LockedInput(1000, Water), LockedOutput(1000, Steam))
	from.Slots[1].Increment(700)

	to := NewTanks(LockedInput(500, Steam))
	assert.Equal(t, int64(500), AutoExtract(from, to))
	assert.Equal(t, int64(200), from.Slots[1].Amount)
	assert.Equal(t, int64(500), to.Slots[0].Amount)

	// Full target, nothing moves.
	assert.Equal(t, int64(0), AutoExtract(from, to))
	assert.Equal(t, int64(0), AutoExtract(from, nil))
	assert.Equal(t, int64(0), AutoExtract(from, from))
}

func TestAutoExtractSkipsMismatchedFluid(t *testing.T) {
	from := NewTanks(LockedOutput(1000, Steam))
	from.Slots[0].Increment(100)
	to := NewTanks(LockedInput(1000, Water))

	assert.Equal(t, int64(0), AutoExtract(from, to))
	assert.Equal(t, int64(100), from.Slots[0].Amount)
}

func TestTanksTag(t *testing.T) {
	tanks := NewTanks(LockedInput(1000, Water), LockedOutput(1000, Steam))
	tanks.Slots[0].Increment(400)
	tanks.Slots[1].Increment(250)

	tag := map[string]any{}
	tanks.EncodeNBT(tag)

	restored := NewTanks(LockedInput(1000, Water), LockedOutput(1000, Steam))
	restored.DecodeNBT(tag)
	assert.Equal(t, int64(400), restored.Slots[0].Amount)
	assert.Equal(t, int64(250), restored.Slots[1].Amount)

	// Decoded list form as produced by the NBT decoder.
	decoded := map[string]any{"tanks": []any{
		map[string]any{"fluid": string(Steam), "amount": int64(10)},
		map[string]any{"fluid": string(Steam), "amount": int64(5000)},
	}}
	other := NewTanks(LockedInput(1000, Water), LockedOutput(1000, Steam))
	other.DecodeNBT(decoded)
	assert.Equal(t, int64(0), other.Slots[0].Amount, "locked water slot ignores steam")
	assert.Equal(t, int64(1000), other.Slots[1].Amount, "clamped to capacity")
}

func TestTanksInsertFillsInOrder(t *testing.T) {
	tanks := NewTanks(LockedInput(100, Water), LockedInput(100, Water))
	assert.Equal(t, int64(150), tanks.Insert(Water, 150, false))
	assert.Equal(t, int64(100), tanks.Slot(0).Amount)
	assert.Equal(t, int64(50), tanks.Slot(1).Amount)
	assert.Nil(t, tanks.Slot(2))
}
