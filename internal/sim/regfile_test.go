package sim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vecsim/vecsim/internal/config"
	"github.com/vecsim/vecsim/internal/isa"
)

func reg(kind isa.RegisterKind, id uint8) isa.Register { return isa.Register{Kind: kind, ID: id} }

func TestCanIssueCommonStallsOnUnfinishedWrite(t *testing.T) {
	rf := NewRegisterFile(config.Default())
	a5 := reg(isa.Scalar, 15)
	add := isa.FuncInst{Dest: a5, Sources: []isa.Register{reg(isa.Scalar, 1), reg(isa.Scalar, 2)}, FuncKind: isa.IntegerALU}
	require.True(t, rf.CanIssueCommon(add))

	rf.IssueCommon(add, isa.FromFunc(add))
	second := isa.FuncInst{Dest: reg(isa.Scalar, 10), Sources: []isa.Register{a5, a5}, FuncKind: isa.IntegerALU}
	require.False(t, rf.CanIssueCommon(second), "a read of a5 must stall while its write marker is set")

	rf.ClearWrite(a5)
	require.True(t, rf.CanIssueCommon(second))
}

func TestCanIssueVectorRespectsWritePortLimit(t *testing.T) {
	cfg := config.Default()
	cfg.VectorRegister.Ports.WritePortsLimit = 1
	rf := NewRegisterFile(cfg)

	v3 := reg(isa.Vector, 3)
	add := isa.FuncInst{Dest: v3, Sources: []isa.Register{reg(isa.Vector, 1), reg(isa.Vector, 2)}, FuncKind: isa.VectorALU}
	require.True(t, rf.CanIssueVector(add, cfg))
	rf.IssueVector(add, FuncUnitKey(isa.VectorALU), isa.FromFunc(add))

	require.Equal(t, uint32(1), rf.Vector[3].WriteCount)
	require.False(t, rf.CanIssueVector(add, cfg), "write_ports_limit=1 must deny a second outstanding writer")
}

func TestVectorRegisterForwardingBoundedByForwardWidth(t *testing.T) {
	cfg := config.Default() // maximum_forward_bytes = 32, vl=4 sew=64 -> 32 bytes/register
	rf := NewRegisterFile(cfg)
	v1 := 1
	key := FuncUnitKey(isa.VectorALU)
	rf.Vector[v1].Tasks = append(rf.Vector[v1].Tasks, newTask(0, TaskWrite, key))

	target, ok := rf.NextEvent(v1, cfg.Register.MaximumForwardBytes)
	require.True(t, ok)
	require.NotNil(t, target.Event.Producer)
	require.Equal(t, cfg.Register.MaximumForwardBytes, target.Event.Producer.AppendLength)
}

func TestVectorRegisterTaskRetiresAndReleasesPortOnCompletion(t *testing.T) {
	cfg := config.Default()
	rf := NewRegisterFile(cfg)
	v1 := 1
	key := FuncUnitKey(isa.VectorALU)
	// A source register task carries Behavior=TaskWrite (it produces
	// bytes into the unit) but architecturally holds a read port.
	rf.Vector[v1].Tasks = append(rf.Vector[v1].Tasks, newTask(0, TaskWrite, key))
	rf.Vector[v1].ReadCount = 1

	total := rf.Vector[v1].TotalBytes
	result := BufferEventResult{Producer: &ProducerResult{AcceptedLength: total}}
	rf.ApplyTaskResult(v1, 0, result)

	require.Empty(t, rf.Vector[v1].Tasks)
	require.Equal(t, uint32(0), rf.Vector[v1].ReadCount)
}

func TestVectorRegisterDestinationTaskReleasesWritePortOnCompletion(t *testing.T) {
	cfg := config.Default()
	rf := NewRegisterFile(cfg)
	v1 := 1
	key := FuncUnitKey(isa.VectorALU)
	// A destination register task carries Behavior=TaskRead (it
	// consumes bytes out of the unit's result) but architecturally
	// holds a write port.
	rf.Vector[v1].Tasks = append(rf.Vector[v1].Tasks, newTask(0, TaskRead, key))
	rf.Vector[v1].WriteCount = 1

	total := rf.Vector[v1].TotalBytes
	result := BufferEventResult{Consumer: &ConsumerResult{ConsumedBytes: total}}
	rf.ApplyTaskResult(v1, 0, result)

	require.Empty(t, rf.Vector[v1].Tasks)
	require.Equal(t, uint32(0), rf.Vector[v1].WriteCount)
}

func TestNextEventGapBoundsNewerTaskByOlderProgress(t *testing.T) {
	cfg := config.Default()
	rf := NewRegisterFile(cfg)
	v1 := 1
	key := FuncUnitKey(isa.VectorALU)
	// oldest (index 0, a writer) has already produced 16 bytes;
	// newest (index 1, a reader) starts at 0 and must not outrun it.
	rf.Vector[v1].Tasks = []RegisterTask{
		{ResourceIndex: 0, Behavior: TaskWrite, UnitKey: key, CurrentPlace: 16},
		{ResourceIndex: 0, Behavior: TaskRead, UnitKey: key, CurrentPlace: 0},
	}
	target, ok := rf.NextEvent(v1, cfg.Register.MaximumForwardBytes)
	require.True(t, ok)
	require.Equal(t, 1, target.TaskIndex)
	require.NotNil(t, target.Event.Consumer)
	require.Equal(t, uint32(16), target.Event.Consumer.MaxConsumeLength, "a newer reader may not consume past the older writer's progress")
}
