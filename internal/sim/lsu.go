package sim

import (
	"github.com/vecsim/vecsim/internal/config"
	"github.com/vecsim/vecsim/internal/isa"
)

// ═══════════════════════════════════════════════════════════════════
// LOAD/STORE UNIT — fixed read/write ports with memory auto-fill
// (spec.md §4.3)
// ═══════════════════════════════════════════════════════════════════

// memPortGen tracks one port's progress against raw memory bandwidth.
type memPortGen struct {
	dir           isa.Direction
	bytesPerCycle uint32
	totalBytes    uint32
	currentPos    uint32
	dataReg       isa.Register
}

// memPort is one read or one write port: a buffer pair plus an
// optional in-flight generator.
type memPort struct {
	buffer *BufferPair
	gen    *memPortGen
}

// LoadStoreUnit holds a fixed set of read and write ports, each a
// miniature unit with its own buffer pair and bandwidth counter.
type LoadStoreUnit struct {
	Latency        uint32
	MaxAccessWidth uint32
	Read           []memPort
	Write          []memPort
}

// NewLoadStoreUnit sizes the read/write port arrays from cfg.
func NewLoadStoreUnit(cfg config.LoadStoreUnit) *LoadStoreUnit {
	lsu := &LoadStoreUnit{Latency: cfg.Latency, MaxAccessWidth: cfg.MaxAccessWidth}
	lsu.Read = make([]memPort, cfg.ReadPortsLimit)
	for i := range lsu.Read {
		lsu.Read[i].buffer = NewBufferPair(MemReadKey(i))
	}
	lsu.Write = make([]memPort, cfg.WritePortsLimit)
	for i := range lsu.Write {
		lsu.Write[i].buffer = NewBufferPair(MemWriteKey(i))
	}
	return lsu
}

// portFree reports whether a port is unoccupied and its result buffer
// has no undrained bytes left over from a previous instruction.
func portFree(p *memPort) bool {
	if p.gen != nil {
		return false
	}
	return p.buffer.Result == nil || p.buffer.Result.CurrentSize == 0
}

// FindFreePort returns the lowest-indexed free port for dir, or -1 if
// none (spec.md §4.3: "selects the lowest-indexed free port matching
// the instruction's direction").
func (l *LoadStoreUnit) FindFreePort(dir isa.Direction) int {
	ports := l.portsFor(dir)
	for i := range ports {
		if portFree(&ports[i]) {
			return i
		}
	}
	return -1
}

func (l *LoadStoreUnit) portsFor(dir isa.Direction) []memPort {
	if dir == isa.Read {
		return l.Read
	}
	return l.Write
}

// Issue installs inst onto the port at index, wiring its buffer pair
// resources per spec.md §4.3. The address-dependency register (and, for
// a write, a scalar/float data register) is a common register: common
// registers carry no byte-granular task queue, only the all-or-nothing
// write marker already checked by CanIssueMemory at issue time, so its
// resource is seeded as immediately full rather than waiting on a
// register task that will never arrive.
func (l *LoadStoreUnit) Issue(index int, inst isa.MemInst, totalBytes uint32) {
	ports := l.portsFor(inst.Dir)
	p := &ports[index]
	addr := Resource{Kind: ResourceRegister, Register: inst.AddrDep, TargetSize: 8, CurrentSize: 8}
	if inst.Dir == isa.Read {
		p.buffer.SetInput([]Resource{
			addr,
			{Kind: ResourceMemory, TargetSize: totalBytes},
		})
		p.buffer.SetOutput(EnhancedResource{Kind: ResourceRegister, Register: inst.Data, TargetSize: totalBytes})
	} else {
		data := Resource{Kind: ResourceRegister, Register: inst.Data, TargetSize: totalBytes}
		if inst.Data.IsCommon() {
			data.CurrentSize = totalBytes
		}
		p.buffer.SetInput([]Resource{addr, data})
		p.buffer.SetOutput(EnhancedResource{Kind: ResourceMemory, TargetSize: totalBytes})
	}
	p.gen = &memPortGen{dir: inst.Dir, bytesPerCycle: l.MaxAccessWidth, totalBytes: totalBytes, dataReg: inst.Data}
}

// Buffer returns the buffer pair for the given unit key, used by the
// register file to route its task events.
func (l *LoadStoreUnit) Buffer(key UnitKey) *BufferPair {
	if key.MemRead {
		return l.Read[key.Port].buffer
	}
	return l.Write[key.Port].buffer
}

// AutoFillReads increments every busy read port's memory input by one
// bandwidth chunk, once its non-memory inputs (the address) are fully
// resolved (spec.md §4.3 "Memory auto-refill").
func (l *LoadStoreUnit) AutoFillReads() {
	for i := range l.Read {
		p := &l.Read[i]
		if p.gen == nil {
			continue
		}
		addr := &p.buffer.Input[0]
		mem := &p.buffer.Input[1]
		if !addr.IsFull() {
			continue
		}
		mem.append(l.MaxAccessWidth)
	}
}

// AutoConsumeWrites increments every busy write port's memory-typed
// result "consumed" counter by one bandwidth chunk, symmetric with
// read-side auto-fill (spec.md §9's resolved Open Question).
func (l *LoadStoreUnit) AutoConsumeWrites() {
	for i := range l.Write {
		p := &l.Write[i]
		if p.gen == nil || p.buffer.Result == nil {
			continue
		}
		p.buffer.Result.consume(l.MaxAccessWidth)
	}
}

// AutoConsumeReads drains a read port's result by one bandwidth chunk
// whenever its destination is a scalar or float register. A vector
// destination is drained by its own register task (a Consumer event
// routed through phase 1), but common registers carry no per-byte
// consuming task queue — only the write marker — so nothing would ever
// touch the result resource on the register-file side. Mirroring
// AutoConsumeWrites onto the read side's common destinations is what
// lets such a port ever satisfy IsResultCompleted and retire.
func (l *LoadStoreUnit) AutoConsumeReads() {
	for i := range l.Read {
		p := &l.Read[i]
		if p.gen == nil || p.buffer.Result == nil {
			continue
		}
		if !p.gen.dataReg.IsCommon() {
			continue
		}
		p.buffer.Result.consume(l.MaxAccessWidth)
	}
}

// TickReadPort advances read port i's position against the now-filled
// memory input and deposits into the result buffer. It reports the
// data register to clear the write marker of, if the port retired.
func (l *LoadStoreUnit) TickReadPort(op string, cycle uint64, i int) (isa.Register, bool, error) {
	p := &l.Read[i]
	if p.gen == nil {
		return isa.Register{}, false, nil
	}
	memCurrent, err := p.buffer.MemoryInputCurrentBytes(op, cycle)
	if err != nil {
		return isa.Register{}, false, err
	}
	if memCurrent > p.gen.currentPos {
		delta := minu32(memCurrent-p.gen.currentPos, p.gen.bytesPerCycle)
		if delta > 0 {
			p.gen.currentPos += delta
			if err := p.buffer.IncreaseResult(op, cycle, delta); err != nil {
				return isa.Register{}, false, err
			}
		}
	}
	if p.gen.currentPos == p.gen.totalBytes && p.buffer.IsResultCompleted() {
		reg := p.gen.dataReg
		p.gen = nil
		p.buffer.Clear()
		p.buffer.Result = nil
		return reg, true, nil
	}
	return isa.Register{}, false, nil
}

// TickWritePort advances write port i's position against the
// data-register input, symmetric with TickReadPort.
func (l *LoadStoreUnit) TickWritePort(op string, cycle uint64, i int) (bool, error) {
	p := &l.Write[i]
	if p.gen == nil {
		return false, nil
	}
	dataCurrent, err := p.buffer.RegisterDataInputCurrentBytes(op, cycle)
	if err != nil {
		return false, err
	}
	if dataCurrent > p.gen.currentPos {
		delta := minu32(dataCurrent-p.gen.currentPos, p.gen.bytesPerCycle)
		if delta > 0 {
			p.gen.currentPos += delta
			if err := p.buffer.IncreaseResult(op, cycle, delta); err != nil {
				return false, err
			}
		}
	}
	if p.gen.currentPos == p.gen.totalBytes && p.buffer.IsResultCompleted() {
		p.gen = nil
		p.buffer.Clear()
		p.buffer.Result = nil
		return true, nil
	}
	return false, nil
}

// IsEmpty reports whether every port is idle.
func (l *LoadStoreUnit) IsEmpty() bool {
	for i := range l.Read {
		if l.Read[i].gen != nil {
			return false
		}
	}
	for i := range l.Write {
		if l.Write[i].gen != nil {
			return false
		}
	}
	return true
}
