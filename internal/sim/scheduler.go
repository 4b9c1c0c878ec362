package sim

import (
	"github.com/vecsim/vecsim/internal/config"
	"github.com/vecsim/vecsim/internal/isa"
	"github.com/vecsim/vecsim/internal/obslog"
)

// ═══════════════════════════════════════════════════════════════════
// CYCLE SCHEDULER — the fixed six-phase per-tick order (spec.md §4.5)
// ═══════════════════════════════════════════════════════════════════
//
// World is the central value the scheduler owns, replacing the
// original's shared-ownership/interior-mutability register file and
// units (spec.md §9): every unit and the register file are plain
// fields here, and the scheduler reaches into them directly in the
// fixed phase order, with no back-pointers.

// maxCyclesSafetyCap bounds runaway simulations in tests; it is not a
// modeled hardware limit (spec.md §4.5).
const maxCyclesSafetyCap = 100000

// World owns every piece of simulator state for one run.
type World struct {
	cfg config.Config
	log *obslog.Logger

	regs *RegisterFile
	lsu  *LoadStoreUnit

	common map[isa.FuncKind]*CommonUnit
	vector map[isa.FuncKind]*VectorUnit

	program []isa.Instruction
	pc      int

	snapshots []CycleSnapshot
	collect   bool
}

// NewWorld builds a ready-to-run World from a validated configuration.
func NewWorld(cfg config.Config) *World {
	w := &World{
		cfg:    cfg,
		log:    obslog.Default(),
		regs:   NewRegisterFile(cfg),
		lsu:    NewLoadStoreUnit(cfg.MemoryUnits.LoadStoreUnit),
		common: make(map[isa.FuncKind]*CommonUnit),
		vector: make(map[isa.FuncKind]*VectorUnit),
	}
	latency := func(k isa.FuncKind) uint32 {
		fu := cfg.FunctionUnits
		switch k {
		case isa.IntegerALU:
			return fu.IntegerALU.Latency
		case isa.IntegerDiv:
			return fu.IntegerDivider.Latency
		case isa.FloatALU:
			return fu.FloatALU.Latency
		case isa.FloatMul:
			return fu.FloatMultiplier.Latency
		case isa.FloatDiv:
			return fu.FloatDivider.Latency
		default:
			return 0
		}
	}
	for _, k := range []isa.FuncKind{isa.IntegerALU, isa.IntegerDiv, isa.FloatALU, isa.FloatMul, isa.FloatDiv} {
		w.common[k] = NewCommonUnit(FuncUnitKey(k), latency(k))
	}
	bytesPerEvent := cfg.BytesPerEvent()
	for _, k := range []isa.FuncKind{isa.VectorALU, isa.VectorMul, isa.VectorDiv, isa.VectorSlide, isa.VectorMacc} {
		w.vector[k] = NewVectorUnit(FuncUnitKey(k), latency(k), bytesPerEvent)
	}
	return w
}

// EnableSnapshots turns on per-cycle observability recording (spec.md
// §6: "optional observability hooks for per-cycle state snapshots").
func (w *World) EnableSnapshots() { w.collect = true }

// Snapshots returns every recorded per-cycle snapshot, if enabled.
func (w *World) Snapshots() []CycleSnapshot { return w.snapshots }

// LoadInstructions installs the ordered instruction sequence the front
// end decoded and resets the program counter.
func (w *World) LoadInstructions(seq []isa.Instruction) {
	w.program = seq
	w.pc = 0
}

func (w *World) fetchEmpty() bool { return w.pc >= len(w.program) }

// Run drives the simulator to completion, returning the total cycle
// count or the first error raised by an invariant violation (spec.md
// §6, §7).
func (w *World) Run() (uint64, error) {
	if err := w.cfg.Validate(); err != nil {
		return 0, &SimError{Code: ConfigInvalid, Op: "validate_config", Inner: err}
	}
	var cycle uint64
	for !w.allIdle() {
		if cycle >= maxCyclesSafetyCap {
			return cycle, newErr(BufferStateViolation, "run:safety_cap", cycle)
		}
		if err := w.tick(cycle); err != nil {
			return cycle, err
		}
		cycle++
	}
	return cycle, nil
}

func (w *World) allIdle() bool {
	if !w.fetchEmpty() {
		return false
	}
	for _, u := range w.common {
		if u.Occupied {
			return false
		}
	}
	for _, u := range w.vector {
		if u.Occupied {
			return false
		}
	}
	return w.lsu.IsEmpty()
}

// tick runs the six fixed phases of §4.5 for one cycle.
func (w *World) tick(cycle uint64) error {
	if err := w.drainRegisterTasks(cycle); err != nil {
		return err
	}
	w.lsu.AutoFillReads()
	w.lsu.AutoConsumeWrites()
	w.lsu.AutoConsumeReads()
	if err := w.retireReadPorts(cycle); err != nil {
		return err
	}
	if err := w.tickEventQueues(cycle); err != nil {
		return err
	}
	if err := w.issue(cycle); err != nil {
		return err
	}

	snap := w.snapshot(cycle)
	w.log.LogCycle(snap)
	if w.collect {
		w.snapshots = append(w.snapshots, snap)
	}
	return nil
}

// drainRegisterTasks is phase 1: for each vector register (iteration
// order 0..31, per spec.md §4.5's determinism clause), generate and
// route buffer events until none can be produced this cycle. The bytes
// a register moves across all of its events in one cycle are capped at
// maximum_forward_bytes: each event is offered only the part of that
// budget not yet used this cycle. NextEvent
// offers an event whenever a task's position still has room to advance,
// but the routed unit may be unable to accept or supply any bytes right
// now (e.g. a destination task draining a result buffer the unit has
// not deposited into yet this tick) — that event moves zero bytes, so
// the loop must stop rather than re-offer the same stalled task forever.
func (w *World) drainRegisterTasks(cycle uint64) error {
	forward := w.cfg.Register.MaximumForwardBytes
	for id := 0; id < isa.NumRegisters; id++ {
		budget := forward
		for w.regs.HasTasks(id) {
			target, ok := w.regs.NextEvent(id, budget)
			if !ok {
				break
			}
			result, err := w.routeEvent(cycle, target.UnitKey, target.Event)
			if err != nil {
				return err
			}
			w.regs.ApplyTaskResult(id, target.TaskIndex, result)
			if !eventMadeProgress(result) {
				break
			}
			if result.Producer != nil {
				budget -= result.Producer.AcceptedLength
			} else {
				budget -= result.Consumer.ConsumedBytes
			}
		}
	}
	return nil
}

// routeEvent dispatches a buffer event to the unit identified by key,
// the table lookup spec.md §9 calls for.
func (w *World) routeEvent(cycle uint64, key UnitKey, event BufferEvent) (BufferEventResult, error) {
	switch {
	case key.IsFunc && key.Func.IsVector():
		return w.vector[key.Func].HandleBufferEvent("route_vector_event", cycle, event)
	case key.IsFunc:
		return BufferEventResult{}, newErr(BufferStateViolation, "route_common_event", cycle)
	default:
		return w.lsu.Buffer(key).HandleEvent("route_mem_event", cycle, event)
	}
}

// eventMadeProgress reports whether a routed buffer event actually
// moved a byte. A Producer into an already-full resource or a Consumer
// against an empty result both apply cleanly and report zero, which
// must end the per-register drain loop for this cycle rather than spin.
func eventMadeProgress(result BufferEventResult) bool {
	switch {
	case result.Producer != nil:
		return result.Producer.AcceptedLength > 0
	case result.Consumer != nil:
		return result.Consumer.ConsumedBytes > 0
	default:
		return false
	}
}

// retireReadPorts is phase 4: clear the write marker of any scalar or
// float register whose read port just completed this cycle's memory
// auto-fill.
func (w *World) retireReadPorts(cycle uint64) error {
	for i := range w.lsu.Read {
		reg, retired, err := w.lsu.TickReadPort("retire_read_port", cycle, i)
		if err != nil {
			return err
		}
		if retired && reg.IsCommon() {
			w.regs.ClearWrite(reg)
		}
	}
	for i := range w.lsu.Write {
		if _, err := w.lsu.TickWritePort("retire_write_port", cycle, i); err != nil {
			return err
		}
	}
	return nil
}

// tickEventQueues is phase 5: advance every unit's event queue by one
// cycle, retiring matured events.
func (w *World) tickEventQueues(cycle uint64) error {
	for _, k := range []isa.FuncKind{isa.IntegerALU, isa.IntegerDiv, isa.FloatALU, isa.FloatMul, isa.FloatDiv} {
		if reg, retired := w.common[k].Tick(); retired {
			w.regs.ClearWrite(reg)
		}
	}
	for _, k := range []isa.FuncKind{isa.VectorALU, isa.VectorMul, isa.VectorDiv, isa.VectorSlide, isa.VectorMacc} {
		if err := w.vector[k].Tick("tick_vector_unit", cycle); err != nil {
			return err
		}
	}
	return nil
}

// issue is phase 6: attempt to issue the next instruction if the
// target unit and register file both accept it. A decoded instruction
// that is neither a FuncInst nor a MemInst maps to no functional-unit
// key the core's issue logic knows (spec.md §7: UnsupportedInstruction)
// and aborts the run rather than silently stalling forever.
func (w *World) issue(cycle uint64) error {
	if w.fetchEmpty() {
		return nil
	}
	inst := w.program[w.pc]
	switch {
	case inst.Mem != nil:
		w.issueMem(*inst.Mem)
	case inst.Func != nil:
		w.issueFunc(*inst.Func)
	default:
		return newErr(UnsupportedInstruction, "issue", cycle)
	}
	return nil
}

func (w *World) issueFunc(inst isa.FuncInst) {
	if inst.FuncKind.IsVector() {
		if !w.regs.CanIssueVector(inst, w.cfg) {
			return
		}
		u := w.vector[inst.FuncKind]
		if u.Occupied {
			return
		}
		totalBytes := w.cfg.VectorRegisterBytes()
		u.Issue(inst, totalBytes)
		w.regs.IssueVector(inst, FuncUnitKey(inst.FuncKind), isa.FromFunc(inst))
		w.pc++
		return
	}
	if !w.regs.CanIssueCommon(inst) {
		return
	}
	u := w.common[inst.FuncKind]
	if u.Occupied {
		return
	}
	u.Issue(inst)
	w.regs.IssueCommon(inst, isa.FromFunc(inst))
	w.pc++
}

func (w *World) issueMem(inst isa.MemInst) {
	if !w.regs.CanIssueMemory(inst) {
		return
	}
	port := w.lsu.FindFreePort(inst.Dir)
	if port < 0 {
		return
	}
	totalBytes := inst.Data.Bytes(w.cfg.VectorRegisterBytes())
	key := MemReadKey(port)
	if inst.Dir == isa.Write {
		key = MemWriteKey(port)
	}
	w.lsu.Issue(port, inst, totalBytes)
	w.regs.IssueMemory(inst, key)
	w.pc++
}
