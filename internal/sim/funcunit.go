package sim

import (
	"github.com/vecsim/vecsim/internal/isa"
)

// ═══════════════════════════════════════════════════════════════════
// FUNCTIONAL UNITS — common (scalar/float) and vector flavors
// (spec.md §4.2)
// ═══════════════════════════════════════════════════════════════════

// FuncEvent is a pending, bandwidth-delayed deposit of bytes into a
// unit's result buffer (spec.md §3).
type FuncEvent struct {
	RemainingCycles uint32
	TargetRegister  isa.Register
	ResultBytes     uint32
}

// ─── Common unit (scalar/float, spec.md §4.2.1) ──────────────────────

// CommonUnit models an integer or float functional unit. It has no
// input buffer: operand readiness is entirely expressed by the absence
// of a write marker on its sources, checked at issue. Each instruction
// is modeled as a single atomic 8-byte event.
type CommonUnit struct {
	Key       UnitKey
	Latency   uint32
	Occupied  bool
	current   *isa.FuncInst
	event     *FuncEvent // at most one in flight, spec.md §9
}

// NewCommonUnit returns an idle common unit for the given key at the
// given latency.
func NewCommonUnit(key UnitKey, latency uint32) *CommonUnit {
	return &CommonUnit{Key: key, Latency: latency}
}

// Issue stores inst as the unit's current instruction and marks the
// unit busy. The caller must have already checked CanIssueCommon.
func (u *CommonUnit) Issue(inst isa.FuncInst) {
	u.Occupied = true
	i := inst
	u.current = &i
}

// Tick advances the unit by one cycle (spec.md §4.2.1):
//  1. decrement the in-flight event's remaining cycles,
//  2. if it just matured, dequeue it and report the write-back target,
//  3. if an instruction was just issued this cycle, push its one event.
//
// The unit stays occupied from Issue until its event retires (spec.md
// §3's lifecycle: "a functional unit holds at most one in-flight
// instruction from issue until its event generator reports completion
// ... at which point it clears"), so the issue slot is not freed merely
// because the event was pushed.
//
// It returns the register to clear the write marker of, if any event
// retired this cycle.
func (u *CommonUnit) Tick() (writeback isa.Register, retired bool) {
	if u.event != nil {
		if u.event.RemainingCycles > 0 {
			u.event.RemainingCycles--
		}
		if u.event.RemainingCycles == 0 {
			writeback = u.event.TargetRegister
			retired = true
			u.event = nil
			u.Occupied = false
		}
	}
	if u.current != nil {
		u.event = &FuncEvent{
			RemainingCycles: u.Latency,
			TargetRegister:  u.current.Dest,
			ResultBytes:     8,
		}
		u.current = nil
	}
	return writeback, retired
}

// ─── Vector unit (spec.md §4.2.2) ────────────────────────────────────

// eventGenerator produces one event per cycle for a vector instruction,
// bounded by the slowest vector-register source's current fill level.
type eventGenerator struct {
	destination   isa.Register
	cyclePerEvent uint32
	bytesPerEvent uint32
	totalBytes    uint32
	processed     uint32
}

func (g *eventGenerator) isComplete() bool { return g.processed >= g.totalBytes }

// next builds the next event given the current per-cycle-available
// byte count over this instruction's source resources, or false if no
// event can be produced this cycle.
func (g *eventGenerator) next(available uint32) (FuncEvent, bool) {
	if g.isComplete() {
		return FuncEvent{}, false
	}
	remaining := g.totalBytes - g.processed
	bytesThisEvent := minu32(g.bytesPerEvent, remaining)
	bytesThisEvent = minu32(bytesThisEvent, available-g.processed)
	if bytesThisEvent == 0 || available <= g.processed {
		return FuncEvent{}, false
	}
	g.processed += bytesThisEvent
	return FuncEvent{RemainingCycles: g.cyclePerEvent, TargetRegister: g.destination, ResultBytes: bytesThisEvent}, true
}

// VectorUnit models a vector ALU/multiplier/divider/slide/macc unit. It
// owns an input/result buffer pair and streams bytes through it at
// bytes_per_event per cycle, one pending event generator at a time.
type VectorUnit struct {
	Key           UnitKey
	Latency       uint32
	BytesPerEvent uint32
	Occupied      bool
	Buffer        *BufferPair

	gen    *eventGenerator
	queue  []FuncEvent // ordered, oldest at index 0
	sources []isa.Register
}

// NewVectorUnit returns an idle vector unit for the given key.
func NewVectorUnit(key UnitKey, latency, bytesPerEvent uint32) *VectorUnit {
	return &VectorUnit{Key: key, Latency: latency, BytesPerEvent: bytesPerEvent, Buffer: NewBufferPair(key)}
}

// Issue constructs the event generator and populates the buffer pair
// per spec.md §4.2.2: one input resource per source register, output
// set to the destination register.
func (u *VectorUnit) Issue(inst isa.FuncInst, totalBytes uint32) {
	u.Occupied = true
	u.sources = append([]isa.Register(nil), inst.Sources...)
	resources := make([]Resource, len(inst.Sources))
	for i, src := range inst.Sources {
		size := regBytes(src, totalBytes)
		r := Resource{Kind: ResourceRegister, Register: src, TargetSize: size}
		if src.IsCommon() {
			// A common-register source carries no task queue to fill it
			// byte by byte; CanIssueVector already required it clean, so
			// treat it as immediately resolved (availableBytes also skips
			// it whenever a vector source is present).
			r.CurrentSize = size
		}
		resources[i] = r
	}
	u.Buffer.SetInput(resources)
	u.Buffer.SetOutput(EnhancedResource{Kind: ResourceRegister, Register: inst.Dest, TargetSize: totalBytes})
	u.gen = &eventGenerator{
		destination:   inst.Dest,
		cyclePerEvent: u.Latency,
		bytesPerEvent: u.BytesPerEvent,
		totalBytes:    totalBytes,
	}
}

// regBytes returns the byte width of src, using vectorBytes for vector
// registers (source operands always share the instruction's own vector
// width in this model).
func regBytes(src isa.Register, vectorBytes uint32) uint32 {
	return src.Bytes(vectorBytes)
}

// availableBytes computes the §4.2.2 "available" quantity: the minimum
// current_size across vector-register inputs, or across all inputs if
// none is a vector register.
func (u *VectorUnit) availableBytes() uint32 {
	if len(u.Buffer.Input) == 0 {
		return 0
	}
	hasVector := false
	for _, src := range u.sources {
		if !src.IsCommon() {
			hasVector = true
			break
		}
	}
	available := ^uint32(0)
	for i, res := range u.Buffer.Input {
		if hasVector && u.sources[i].IsCommon() {
			continue
		}
		available = minu32(available, res.CurrentSize)
	}
	return available
}

// HandleBufferEvent routes a register-task event to this unit's buffer
// pair.
func (u *VectorUnit) HandleBufferEvent(op string, cycle uint64, event BufferEvent) (BufferEventResult, error) {
	return u.Buffer.HandleEvent(op, cycle, event)
}

// Tick advances the unit by one cycle (spec.md §4.2.2):
//  1. decrement every queued event,
//  2. drain matured events in FIFO order into the result buffer,
//  3. if the generator is not complete, attempt to enqueue one new
//     event bounded by available(),
//  4. if the generator is complete and the result is fully consumed,
//     free the unit.
func (u *VectorUnit) Tick(op string, cycle uint64) error {
	for i := range u.queue {
		if u.queue[i].RemainingCycles > 0 {
			u.queue[i].RemainingCycles--
		}
	}
	for len(u.queue) > 0 && u.queue[0].RemainingCycles == 0 {
		ev := u.queue[0]
		u.queue = u.queue[1:]
		if err := u.Buffer.IncreaseResult(op, cycle, ev.ResultBytes); err != nil {
			return err
		}
	}
	if u.gen != nil && !u.gen.isComplete() {
		if ev, ok := u.gen.next(u.availableBytes()); ok {
			u.queue = append(u.queue, ev)
		}
	}
	if u.gen != nil && u.gen.isComplete() && u.Buffer.IsResultCompleted() {
		u.free()
	}
	return nil
}

func (u *VectorUnit) free() {
	u.Occupied = false
	u.gen = nil
	u.queue = nil
	u.sources = nil
	u.Buffer.Clear()
}

// IsIdle reports whether the unit holds no in-flight instruction.
func (u *VectorUnit) IsIdle() bool { return !u.Occupied }
