package sim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vecsim/vecsim/internal/config"
	"github.com/vecsim/vecsim/internal/isa"
)

// These cover spec.md §8's testable properties end to end, through the
// real six-phase scheduler rather than individual component state.

func TestConfigInvalidRejectsBeforeAnyCycle(t *testing.T) {
	cfg := config.Default()
	cfg.VectorConfig.Software.VL = 100 // vl*sew(6400) > vlen(4096)

	w := NewWorld(cfg)
	w.LoadInstructions(nil)
	cycles, err := w.Run()

	require.Error(t, err)
	var simErr *SimError
	require.ErrorAs(t, err, &simErr)
	require.Equal(t, ConfigInvalid, simErr.Code)
	require.Equal(t, uint64(0), cycles, "no cycle may execute once config validation fails")
}

func TestUnsupportedInstructionAbortsRun(t *testing.T) {
	// An Instruction with neither Func nor Mem set maps to no
	// functional-unit key the issue logic knows (spec.md §7).
	w := NewWorld(config.Default())
	w.LoadInstructions([]isa.Instruction{{}})
	cycles, err := w.Run()

	require.Error(t, err)
	var simErr *SimError
	require.ErrorAs(t, err, &simErr)
	require.Equal(t, UnsupportedInstruction, simErr.Code)
	require.Equal(t, uint64(0), cycles, "the run aborts on the same cycle the malformed instruction is reached")
}

func TestCommonHazardStallsDependentInstruction(t *testing.T) {
	// add a0,a5,t6 ; add a5,a0,a0 — the second reads a0, which the
	// first writes, so it cannot be issued until the first retires
	// (spec.md §8 property 4, scenario S2).
	a0, a5, t6 := reg(isa.Scalar, 10), reg(isa.Scalar, 15), reg(isa.Scalar, 31)
	prog := []isa.Instruction{
		isa.FromFunc(isa.FuncInst{Dest: a0, Sources: []isa.Register{a5, t6}, FuncKind: isa.IntegerALU, Mnemonic: "add"}),
		isa.FromFunc(isa.FuncInst{Dest: a5, Sources: []isa.Register{a0, a0}, FuncKind: isa.IntegerALU, Mnemonic: "add"}),
	}

	w := NewWorld(config.Default())
	w.LoadInstructions(prog)
	cycles, err := w.Run()
	require.NoError(t, err)
	require.Greater(t, cycles, uint64(0))

	// Both instructions must have retired: neither a0 nor a5 carries a
	// dangling write marker once the program drains.
	require.False(t, w.regs.common(a0).hasUnfinishedWrite())
	require.False(t, w.regs.common(a5).hasUnfinishedWrite())
}

func TestMemoryHazardStallsDependentAdd(t *testing.T) {
	// ld a5,0(s0) ; add a0,a5,a5 — add depends on the load's destination.
	a5, s0, a0 := reg(isa.Scalar, 15), reg(isa.Scalar, 8), reg(isa.Scalar, 10)
	prog := []isa.Instruction{
		isa.FromMem(isa.MemInst{Dir: isa.Read, AddrDep: s0, Data: a5, Mnemonic: "ld"}),
		isa.FromFunc(isa.FuncInst{Dest: a0, Sources: []isa.Register{a5, a5}, FuncKind: isa.IntegerALU, Mnemonic: "add"}),
	}

	w := NewWorld(config.Default())
	w.LoadInstructions(prog)

	// Tick once: the load must issue, the add must not (its source a5
	// isn't resolved yet).
	require.NoError(t, w.tick(0))
	require.Equal(t, 1, w.pc, "only the load should have issued in cycle 0")

	cycles, err := w.Run()
	require.NoError(t, err)
	require.Greater(t, cycles, uint64(1))
	require.Less(t, cycles, uint64(maxCyclesSafetyCap), "the load's result must drain via AutoConsumeReads so the port retires well short of the safety cap")
	require.False(t, w.regs.common(a5).hasUnfinishedWrite())
}

func TestVectorWritePortLimitSerializesSecondAdd(t *testing.T) {
	cfg := config.Default()
	cfg.VectorRegister.Ports.WritePortsLimit = 1
	v1, v2, v3 := reg(isa.Vector, 1), reg(isa.Vector, 2), reg(isa.Vector, 3)
	mk := func() isa.Instruction {
		return isa.FromFunc(isa.FuncInst{Dest: v3, Sources: []isa.Register{v1, v2}, FuncKind: isa.VectorALU, Mnemonic: "vfadd.vv"})
	}
	prog := []isa.Instruction{mk(), mk(), mk()}

	w := NewWorld(cfg)
	w.LoadInstructions(prog)
	require.NoError(t, w.tick(0))
	require.Equal(t, 1, w.pc, "write_ports_limit=1 must block the second vadd from issuing alongside the first")
	require.Equal(t, uint32(1), w.regs.Vector[3].WriteCount)

	// Drain the first instruction's write task directly (bypassing the
	// unit's own byte-at-a-time production, which is exercised
	// elsewhere) to free the port, then confirm the second may issue.
	w.regs.ApplyTaskResult(3, 0, BufferEventResult{Consumer: &ConsumerResult{ConsumedBytes: cfg.VectorRegisterBytes()}})
	require.Equal(t, uint32(0), w.regs.Vector[3].WriteCount, "retiring the first writer must release the port")

	require.NoError(t, w.tick(1))
	require.Equal(t, 2, w.pc, "the port is free again, so the second vadd may now issue")
}

func TestVectorAddByteConservationAcrossCompletion(t *testing.T) {
	cfg := config.Default() // vl=4, sew=64 -> 32 bytes per vector register
	v1, v2, v3 := reg(isa.Vector, 1), reg(isa.Vector, 2), reg(isa.Vector, 3)
	prog := []isa.Instruction{
		isa.FromFunc(isa.FuncInst{Dest: v3, Sources: []isa.Register{v1, v2}, FuncKind: isa.VectorALU, Mnemonic: "vfadd.vv"}),
	}

	w := NewWorld(cfg)
	w.LoadInstructions(prog)

	// v1/v2 have no producing tasks in this program, so model them as
	// already-resident operands by filling the unit's input directly
	// once issued.
	require.NoError(t, w.tick(0))
	u := w.vector[isa.VectorALU]
	require.True(t, u.Occupied)
	for i := range u.Buffer.Input {
		u.Buffer.Input[i].append(cfg.VectorRegisterBytes())
	}
	// Drop the now-satisfied source tasks so the drain phase doesn't
	// re-feed already-full input resources.
	w.regs.Vector[1].Tasks = nil
	w.regs.Vector[2].Tasks = nil

	cycles, err := w.Run()
	require.NoError(t, err)
	require.Greater(t, cycles, uint64(0))
	require.Less(t, cycles, uint64(maxCyclesSafetyCap), "the destination's drain must stop offering zero-progress events once its result buffer is empty, not spin until the safety cap")

	deposited := u.Buffer.Result.ConsumedBytes + u.Buffer.Result.CurrentSize
	require.Equal(t, cfg.VectorRegisterBytes(), deposited, "total bytes deposited must equal the instruction's declared width")
}

func TestDrainRegisterTasksStopsOnZeroProgressInsteadOfSpinning(t *testing.T) {
	// Right after issue, the destination's Consumer task targets a
	// result buffer the unit has not deposited into yet (deposits only
	// happen in tickEventQueues, phase 5, which runs after phase 1). A
	// second, direct drain call before anything matures must observe
	// zero consumed bytes on that task and stop rather than re-offer it
	// forever.
	cfg := config.Default()
	v1, v2, v3 := reg(isa.Vector, 1), reg(isa.Vector, 2), reg(isa.Vector, 3)
	prog := []isa.Instruction{
		isa.FromFunc(isa.FuncInst{Dest: v3, Sources: []isa.Register{v1, v2}, FuncKind: isa.VectorALU, Mnemonic: "vfadd.vv"}),
	}

	w := NewWorld(cfg)
	w.LoadInstructions(prog)
	require.NoError(t, w.tick(0))
	require.Equal(t, 1, w.pc, "the instruction must have issued")

	// Source tasks still have full capacity to drain into the unit's
	// input, so this call makes progress on v1/v2 and retires them, but
	// must stop cleanly on v3's still-empty result rather than hang.
	require.NoError(t, w.drainRegisterTasks(1))

	require.Empty(t, w.regs.Vector[1].Tasks, "the source task must have fully forwarded into the unit's input")
	require.Empty(t, w.regs.Vector[2].Tasks, "the source task must have fully forwarded into the unit's input")
	require.Len(t, w.regs.Vector[3].Tasks, 1, "the destination task must still be outstanding, not spuriously completed")
	require.Equal(t, uint32(0), w.regs.Vector[3].Tasks[0].CurrentPlace, "nothing has been deposited into the result buffer yet")
}

func TestRunIsDeterministicAcrossRepeatedExecution(t *testing.T) {
	a0, a5, t6 := reg(isa.Scalar, 10), reg(isa.Scalar, 15), reg(isa.Scalar, 31)
	prog := func() []isa.Instruction {
		return []isa.Instruction{
			isa.FromFunc(isa.FuncInst{Dest: a0, Sources: []isa.Register{a5, t6}, FuncKind: isa.IntegerALU, Mnemonic: "add"}),
			isa.FromFunc(isa.FuncInst{Dest: a5, Sources: []isa.Register{a0, a0}, FuncKind: isa.IntegerALU, Mnemonic: "add"}),
		}
	}

	w1 := NewWorld(config.Default())
	w1.LoadInstructions(prog())
	w1.EnableSnapshots()
	c1, err1 := w1.Run()
	require.NoError(t, err1)

	w2 := NewWorld(config.Default())
	w2.LoadInstructions(prog())
	w2.EnableSnapshots()
	c2, err2 := w2.Run()
	require.NoError(t, err2)

	require.Equal(t, c1, c2)
	require.Equal(t, w1.Snapshots(), w2.Snapshots())
}
