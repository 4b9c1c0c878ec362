package sim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vecsim/vecsim/internal/isa"
)

func TestResourceAppendCapsAtTargetSize(t *testing.T) {
	r := Resource{TargetSize: 8}
	require.Equal(t, uint32(6), r.append(6))
	require.Equal(t, uint32(6), r.CurrentSize)
	require.Equal(t, uint32(2), r.append(10))
	require.Equal(t, uint32(8), r.CurrentSize)
	require.True(t, r.IsFull())
}

func TestBufferPairProducerIndexOutOfRange(t *testing.T) {
	b := NewBufferPair(FuncUnitKey(isa.VectorALU))
	b.SetInput([]Resource{{TargetSize: 8}})
	_, err := b.HandleEvent("test", 0, BufferEvent{Producer: &ProducerEvent{ResourceIndex: 1, AppendLength: 4}})
	require.Error(t, err)
	var simErr *SimError
	require.ErrorAs(t, err, &simErr)
	require.Equal(t, IndexOutOfRange, simErr.Code)
}

func TestBufferPairConsumerNoDestination(t *testing.T) {
	b := NewBufferPair(FuncUnitKey(isa.VectorALU))
	_, err := b.HandleEvent("test", 0, BufferEvent{Consumer: &ConsumerEvent{MaxConsumeLength: 4}})
	require.Error(t, err)
	var simErr *SimError
	require.ErrorAs(t, err, &simErr)
	require.Equal(t, NoDestination, simErr.Code)
}

func TestBufferPairProducerConsumerRoundTrip(t *testing.T) {
	b := NewBufferPair(FuncUnitKey(isa.VectorALU))
	b.SetInput([]Resource{{TargetSize: 16}})
	result, err := b.HandleEvent("test", 0, BufferEvent{Producer: &ProducerEvent{ResourceIndex: 0, AppendLength: 10}})
	require.NoError(t, err)
	require.Equal(t, uint32(10), result.Producer.AcceptedLength)
	require.Equal(t, uint32(0), result.Producer.RemainingBytes)

	b.SetOutput(EnhancedResource{TargetSize: 16})
	require.NoError(t, b.IncreaseResult("test", 0, 16))

	cr, err := b.HandleEvent("test", 0, BufferEvent{Consumer: &ConsumerEvent{MaxConsumeLength: 16}})
	require.NoError(t, err)
	require.Equal(t, uint32(16), cr.Consumer.ConsumedBytes)
	require.True(t, b.IsResultCompleted())
}

func TestMemoryInputCurrentBytesGatesOnAddressResolution(t *testing.T) {
	b := NewBufferPair(MemReadKey(0))
	b.SetInput([]Resource{
		{Kind: ResourceRegister, TargetSize: 8},
		{Kind: ResourceMemory, TargetSize: 32},
	})
	b.Input[1].append(32)

	n, err := b.MemoryInputCurrentBytes("test", 0)
	require.NoError(t, err)
	require.Equal(t, uint32(0), n, "memory bytes must not be visible until the address register is full")

	b.Input[0].append(8)
	n, err = b.MemoryInputCurrentBytes("test", 0)
	require.NoError(t, err)
	require.Equal(t, uint32(32), n)
}

func TestMemoryInputCurrentBytesRejectsMalformedMix(t *testing.T) {
	b := NewBufferPair(MemReadKey(0))
	b.SetInput([]Resource{
		{Kind: ResourceMemory, TargetSize: 8},
		{Kind: ResourceMemory, TargetSize: 8},
	})
	b.Input[0].append(8)
	b.Input[1].append(8)
	_, err := b.MemoryInputCurrentBytes("test", 0)
	require.Error(t, err)
	var simErr *SimError
	require.ErrorAs(t, err, &simErr)
	require.Equal(t, BufferStateViolation, simErr.Code)
}
