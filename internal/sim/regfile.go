package sim

import (
	"github.com/vecsim/vecsim/internal/config"
	"github.com/vecsim/vecsim/internal/isa"
)

// ═══════════════════════════════════════════════════════════════════
// REGISTER FILE — hazard oracle and forwarding network (spec.md §4.4)
// ═══════════════════════════════════════════════════════════════════
//
// Three namespaces of 32 registers each. Scalar and float registers
// carry only a write marker: the in-flight instruction that will write
// the register, cleared when its unit retires. Vector registers instead
// own a FIFO of register tasks that model byte-by-byte forwarding
// between a producing unit and every subsequent reader or writer,
// bounded by the configured forwarding width per register per cycle.
//
// Task queue convention: new tasks are appended, so index len-1 is the
// newest (just issued) and index 0 is the oldest (closest to
// retirement, "tail"). The per-cycle drain walks from newest to oldest
// and pops index 0 on completion.

// TaskBehavior is the role a register task plays against its owning
// unit: Read means the unit drains bytes out of its result buffer into
// this register (a destination), Write means the register supplies
// bytes into one of the unit's input resources (a source).
type TaskBehavior uint8

const (
	TaskRead TaskBehavior = iota
	TaskWrite
)

// RegisterTask is one outstanding read or write a specific unit is
// performing against a specific vector register (spec.md §3).
type RegisterTask struct {
	ResourceIndex int
	Behavior      TaskBehavior
	UnitKey       UnitKey
	CurrentPlace  uint32
}

func newTask(resourceIndex int, behavior TaskBehavior, key UnitKey) RegisterTask {
	return RegisterTask{ResourceIndex: resourceIndex, Behavior: behavior, UnitKey: key}
}

// generateEvent builds the buffer event this task would emit if granted
// updateBytes of forwarding this cycle.
func (t RegisterTask) generateEvent(updateBytes uint32) BufferEvent {
	if t.Behavior == TaskRead {
		return BufferEvent{Consumer: &ConsumerEvent{MaxConsumeLength: updateBytes}}
	}
	return BufferEvent{Producer: &ProducerEvent{ResourceIndex: t.ResourceIndex, AppendLength: updateBytes}}
}

// applyResult advances CurrentPlace by whatever the routed buffer
// accepted or consumed.
func (t *RegisterTask) applyResult(result BufferEventResult) {
	switch {
	case result.Producer != nil:
		t.CurrentPlace += result.Producer.AcceptedLength
	case result.Consumer != nil:
		t.CurrentPlace += result.Consumer.ConsumedBytes
	}
}

// VectorRegister is one of the 32 vector registers: a byte width fixed
// by the active software vector shape, and a task FIFO.
type VectorRegister struct {
	ID         uint8
	TotalBytes uint32
	ReadCount  uint32
	WriteCount uint32
	Tasks      []RegisterTask
}

// CommonRegister is a scalar or float register: just a write marker.
type CommonRegister struct {
	ID             uint8
	WriteMarker    *isa.Instruction
}

func (r *CommonRegister) hasUnfinishedWrite() bool { return r.WriteMarker != nil }

// RegisterFile holds all 96 architectural registers.
type RegisterFile struct {
	Scalar [isa.NumRegisters]CommonRegister
	Float  [isa.NumRegisters]CommonRegister
	Vector [isa.NumRegisters]VectorRegister

	cfg config.Config
}

// NewRegisterFile builds a register file sized by cfg's active vector
// shape (spec.md §3: vl·sew/8 bytes per vector register).
func NewRegisterFile(cfg config.Config) *RegisterFile {
	rf := &RegisterFile{cfg: cfg}
	vecBytes := cfg.VectorRegisterBytes()
	for i := 0; i < isa.NumRegisters; i++ {
		rf.Scalar[i] = CommonRegister{ID: uint8(i)}
		rf.Float[i] = CommonRegister{ID: uint8(i)}
		rf.Vector[i] = VectorRegister{ID: uint8(i), TotalBytes: vecBytes}
	}
	return rf
}

func (rf *RegisterFile) common(reg isa.Register) *CommonRegister {
	switch reg.Kind {
	case isa.Scalar:
		return &rf.Scalar[reg.ID]
	case isa.Float:
		return &rf.Float[reg.ID]
	default:
		panic("sim: common() called on a vector register")
	}
}

func (rf *RegisterFile) vector(reg isa.Register) *VectorRegister {
	return &rf.Vector[reg.ID]
}

// ─── Drain (phase 1 of the cycle, spec.md §4.4) ──────────────────────

// DrainTarget is one register-task event offered by NextEvent, handed
// to the scheduler so it can route the event to the owning unit and
// feed the result back via ApplyTaskResult.
type DrainTarget struct {
	RegisterID int
	TaskIndex  int
	Event      BufferEvent
	UnitKey    UnitKey
}

// NextEvent returns the next buffer event the vector register at id
// would emit this cycle, walking from the newest task toward the
// oldest, or ok=false if no task can currently produce one (either the
// queue is empty or every task is blocked on its older neighbor's
// progress).
func (rf *RegisterFile) NextEvent(id int, maxForward uint32) (DrainTarget, bool) {
	v := &rf.Vector[id]
	for i := len(v.Tasks) - 1; i >= 0; i-- {
		task := v.Tasks[i]
		forward := minu32(maxForward, v.TotalBytes-task.CurrentPlace)
		var update uint32
		if i == 0 {
			update = forward
		} else {
			older := v.Tasks[i-1]
			gap := older.CurrentPlace - task.CurrentPlace
			update = minu32(gap, forward)
		}
		if update == 0 {
			continue
		}
		return DrainTarget{RegisterID: id, TaskIndex: i, Event: task.generateEvent(update), UnitKey: task.UnitKey}, true
	}
	return DrainTarget{}, false
}

// ApplyTaskResult applies a routed buffer-event result back to the task
// NextEvent targeted (identified by index) and pops the oldest task
// once it has forwarded all of its bytes, releasing the corresponding
// port counter.
func (rf *RegisterFile) ApplyTaskResult(id, idx int, result BufferEventResult) {
	v := &rf.Vector[id]
	if idx < 0 || idx >= len(v.Tasks) {
		return
	}
	v.Tasks[idx].applyResult(result)
	if idx == 0 && v.Tasks[0].CurrentPlace == v.TotalBytes {
		retired := v.Tasks[0]
		v.Tasks = v.Tasks[1:]
		// The architectural hazard role is the inverse of the buffer
		// event's Behavior: a source register feeds the unit (Behavior
		// TaskWrite, a Producer event) but architecturally holds a read
		// port; a destination register drains the unit (Behavior
		// TaskRead, a Consumer event) but architecturally holds a write
		// port (spec.md §4.4's task-insertion rules).
		if retired.Behavior == TaskRead {
			if v.WriteCount > 0 {
				v.WriteCount--
			}
		} else if v.ReadCount > 0 {
			v.ReadCount--
		}
	}
}

// HasTasks reports whether the vector register at id has an
// outstanding task queue (used by the scheduler to skip idle
// registers).
func (rf *RegisterFile) HasTasks(id int) bool {
	return len(rf.Vector[id].Tasks) > 0
}

// ─── Hazard checks (at issue, spec.md §4.4) ──────────────────────────

// CanIssueCommon reports whether a common (scalar/float destination)
// functional instruction may issue: no source or the destination may
// have an unfinished write (WAW also stalls).
func (rf *RegisterFile) CanIssueCommon(inst isa.FuncInst) bool {
	for _, src := range inst.Sources {
		if src.IsCommon() && rf.common(src).hasUnfinishedWrite() {
			return false
		}
	}
	return !rf.common(inst.Dest).hasUnfinishedWrite()
}

// CanIssueVector reports whether a vector functional instruction may
// issue: common sources/destination must be clean, vector sources and
// destination must still have spare read/write ports.
func (rf *RegisterFile) CanIssueVector(inst isa.FuncInst, cfg config.Config) bool {
	for _, src := range inst.Sources {
		if src.IsCommon() {
			if rf.common(src).hasUnfinishedWrite() {
				return false
			}
			continue
		}
		if rf.vector(src).ReadCount+1 > cfg.VectorRegister.Ports.ReadPortsLimit {
			return false
		}
	}
	if inst.Dest.IsCommon() {
		return !rf.common(inst.Dest).hasUnfinishedWrite()
	}
	return rf.vector(inst.Dest).WriteCount+1 <= cfg.VectorRegister.Ports.WritePortsLimit
}

// CanIssueMemory reports whether a memory instruction may issue: the
// address-dependency register must be clean, and for a read whose data
// register is scalar/float, that register must be clean too.
func (rf *RegisterFile) CanIssueMemory(inst isa.MemInst) bool {
	if rf.common(inst.AddrDep).hasUnfinishedWrite() {
		return false
	}
	if inst.Dir == isa.Read && inst.Data.IsCommon() {
		return !rf.common(inst.Data).hasUnfinishedWrite()
	}
	return true
}

// ─── Task insertion (at issue, spec.md §4.4) ─────────────────────────

// IssueCommon sets the write marker on a common functional
// instruction's destination. Common units never write vector registers.
func (rf *RegisterFile) IssueCommon(inst isa.FuncInst, marker isa.Instruction) {
	rf.common(inst.Dest).WriteMarker = &marker
}

// IssueVector pushes a task for every vector source and for the
// destination. A source register feeds bytes into the unit's input
// resource at its own position, a Producer event (TaskWrite); the
// destination drains the unit's result buffer, a Consumer event
// (TaskRead). ReadCount/WriteCount instead track the architectural
// hazard role (a source is being read, the destination is being
// written), the inverse of the buffer-event direction.
func (rf *RegisterFile) IssueVector(inst isa.FuncInst, key UnitKey, marker isa.Instruction) {
	for i, src := range inst.Sources {
		if !src.IsCommon() {
			v := rf.vector(src)
			v.Tasks = append(v.Tasks, newTask(i, TaskWrite, key))
			v.ReadCount++
		}
	}
	if inst.Dest.IsCommon() {
		rf.common(inst.Dest).WriteMarker = &marker
	} else {
		v := rf.vector(inst.Dest)
		v.Tasks = append(v.Tasks, newTask(0, TaskRead, key))
		v.WriteCount++
	}
}

// IssueMemory sets the write marker for a scalar/float read destination,
// or pushes a vector-register task for a vector data operand. For a
// write, the data register feeds the write port's data input resource
// (index 1 of its Input), a Producer event (TaskWrite); for a read, the
// data register drains the read port's result, a Consumer event
// (TaskRead).
func (rf *RegisterFile) IssueMemory(inst isa.MemInst, key UnitKey) {
	if !inst.Data.IsCommon() {
		v := rf.vector(inst.Data)
		if inst.Dir == isa.Write {
			v.Tasks = append(v.Tasks, newTask(1, TaskWrite, key))
			v.ReadCount++
		} else {
			v.Tasks = append(v.Tasks, newTask(0, TaskRead, key))
			v.WriteCount++
		}
		return
	}
	if inst.Dir == isa.Read {
		m := isa.FromMem(inst)
		rf.common(inst.Data).WriteMarker = &m
	}
}

// ClearWrite clears a common register's write marker (called on
// retirement of the producing unit/port).
func (rf *RegisterFile) ClearWrite(reg isa.Register) {
	rf.common(reg).WriteMarker = nil
}

func minu32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
