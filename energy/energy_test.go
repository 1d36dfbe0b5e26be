package energy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buffers(amounts ...int64) ([]*Buffer, []Port) {
	bufs := make([]*Buffer, len(amounts))
	ports := make([]Port, len(amounts))
	for i, a := range amounts {
		bufs[i] = &Buffer{Stored: a, Capacity: 1000}
		ports[i] = bufs[i]
	}
	return bufs, ports
}

func TestConsumeTakesInOrder(t *testing.T) {
	bufs, ports := buffers(5, 7, 3)
	var in Inputs
	in.Rebuild(ports)

	got := in.Consume(10, false)
	assert.Equal(t, int64(10), got)
	assert.Equal(t, int64(0), bufs[0].Stored)
	assert.Equal(t, int64(2), bufs[1].Stored)
	assert.Equal(t, int64(3), bufs[2].Stored)
}

func TestConsumeSimulateLeavesPortsUntouched(t *testing.T) {
	bufs, ports := buffers(5, 7, 3)
	var in Inputs
	in.Rebuild(ports)

	assert.Equal(t, int64(10), in.Consume(10, true))
	assert.Equal(t, int64(5), bufs[0].Stored)
	assert.Equal(t, int64(7), bufs[1].Stored)
	assert.Equal(t, int64(3), bufs[2].Stored)

	// Simulation and execution agree.
	assert.Equal(t, in.Consume(10, true), in.Consume(10, false))
}

func TestConsumeNeverExceedsMax(t *testing.T) {
	_, ports := buffers(100, 100)
	var in Inputs
	in.Rebuild(append(ports, greedyPort{}))

	for _, max := range []int64{0, 1, 50, 150, 200, 500} {
		got := in.Consume(max, true)
		assert.LessOrEqual(t, got, max)
	}
	assert.Equal(t, int64(0), in.Consume(-5, false))
}

func TestConsumeShortfall(t *testing.T) {
	_, ports := buffers(5, 7, 3)
	var in Inputs
	in.Rebuild(ports)

	assert.Equal(t, int64(15), in.Consume(100, false))
	assert.Equal(t, int64(0), in.Consume(100, false))
}

func TestInvalidateEmptiesCache(t *testing.T) {
	_, ports := buffers(5)
	var in Inputs
	in.Rebuild(ports)
	require.True(t, in.Valid())

	in.Invalidate()
	assert.False(t, in.Valid())
	assert.Equal(t, 0, in.Len())
	assert.Equal(t, int64(0), in.Consume(10, false))
}

func TestRebuildReplaces(t *testing.T) {
	_, first := buffers(1, 1)
	_, second := buffers(4)
	var in Inputs
	in.Rebuild(first)
	in.Rebuild(second)

	assert.Equal(t, 1, in.Len())
	assert.Equal(t, int64(4), in.Consume(10, true))
}

func TestBufferInsert(t *testing.T) {
	b := NewBuffer(10)
	assert.Equal(t, int64(8), b.Insert(8, false))
	assert.Equal(t, int64(2), b.Insert(8, true))
	assert.Equal(t, int64(8), b.Stored)
	assert.Equal(t, int64(2), b.Insert(8, false))
	assert.Equal(t, int64(0), b.RemainingSpace())
	assert.Equal(t, int64(0), b.Insert(1, false))
}

func TestBufferTag(t *testing.T) {
	b := &Buffer{Stored: 42, Capacity: 100}
	tag := map[string]any{}
	b.EncodeNBT(tag)
	assert.Equal(t, int64(42), tag["stored"])

	restored := NewBuffer(100)
	restored.DecodeNBT(tag)
	assert.Equal(t, int64(42), restored.Stored)

	small := NewBuffer(10)
	small.DecodeNBT(tag)
	assert.Equal(t, int64(10), small.Stored)
}

// greedyPort reports more than it was asked for.
type greedyPort struct{}

func (greedyPort) ConsumeEnergy(max int64, _ bool) int64 { return max * 2 }
