package sim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vecsim/vecsim/internal/isa"
)

func TestCommonUnitRetiresExactlyAfterLatency(t *testing.T) {
	u := NewCommonUnit(FuncUnitKey(isa.IntegerALU), 3)
	inst := isa.FuncInst{Dest: reg(isa.Scalar, 10), Sources: []isa.Register{reg(isa.Scalar, 1)}, FuncKind: isa.IntegerALU}
	u.Issue(inst)
	require.True(t, u.Occupied)

	for i := 0; i < 3; i++ {
		_, retired := u.Tick()
		if i < 2 {
			require.False(t, retired, "cycle %d must not retire yet", i)
		}
	}
	_, retired := u.Tick()
	require.True(t, retired)
}

func TestVectorUnitAvailableBytesBoundedBySlowestInput(t *testing.T) {
	u := NewVectorUnit(FuncUnitKey(isa.VectorALU), 1, 8)
	inst := isa.FuncInst{
		Dest:     reg(isa.Vector, 3),
		Sources:  []isa.Register{reg(isa.Vector, 1), reg(isa.Vector, 2)},
		FuncKind: isa.VectorALU,
	}
	u.Issue(inst, 32)
	u.Buffer.Input[0].append(16)
	u.Buffer.Input[1].append(8)
	require.Equal(t, uint32(8), u.availableBytes())
}

func TestVectorUnitNeverExceedsBytesPerEventPerCycle(t *testing.T) {
	u := NewVectorUnit(FuncUnitKey(isa.VectorALU), 1, 8)
	inst := isa.FuncInst{
		Dest:     reg(isa.Vector, 3),
		Sources:  []isa.Register{reg(isa.Vector, 1), reg(isa.Vector, 2)},
		FuncKind: isa.VectorALU,
	}
	u.Issue(inst, 32)
	u.Buffer.Input[0].append(32)
	u.Buffer.Input[1].append(32)

	ev, ok := u.gen.next(u.availableBytes())
	require.True(t, ok)
	require.LessOrEqual(t, ev.ResultBytes, uint32(8))
}

func TestVectorUnitTotalBytesDepositedEqualsDeclaredWidth(t *testing.T) {
	u := NewVectorUnit(FuncUnitKey(isa.VectorALU), 1, 8)
	inst := isa.FuncInst{
		Dest:     reg(isa.Vector, 3),
		Sources:  []isa.Register{reg(isa.Vector, 1), reg(isa.Vector, 2)},
		FuncKind: isa.VectorALU,
	}
	u.Issue(inst, 32)
	u.Buffer.Input[0].append(32)
	u.Buffer.Input[1].append(32)

	for cycle := uint64(0); cycle < 20 && (!u.gen.isComplete() || len(u.queue) > 0); cycle++ {
		require.NoError(t, u.Tick("test", cycle))
	}
	deposited := u.Buffer.Result.ConsumedBytes + u.Buffer.Result.CurrentSize
	require.Equal(t, uint32(32), deposited)
}
