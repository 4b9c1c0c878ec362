package sim

import (
	"github.com/vecsim/vecsim/internal/isa"
)

// ═══════════════════════════════════════════════════════════════════
// BUFFER PAIR — the sole medium of byte transport (spec.md §4.1)
// ═══════════════════════════════════════════════════════════════════
//
// Every unit/port owns one BufferPair: an input buffer of ordered
// resources being filled by the register file or by memory auto-fill,
// and a result buffer holding the single resource the unit's event
// queue deposits bytes into. Two event kinds cross the boundary:
// Producer (into the input buffer) and Consumer (out of the result
// buffer). Both are driven entirely by byte counts — never by values —
// matching the simulator's "timing and dependencies only" charter.

// ResourceKind distinguishes a "real" memory resource from a register
// resource. Register additionally names which register it stands for,
// used only for diagnostics and for UnitKey routing upstream.
type ResourceKind uint8

const (
	ResourceMemory ResourceKind = iota
	ResourceRegister
)

// Resource is one slot of an input buffer: a byte counter bounded by
// target_size, per spec.md §3.
type Resource struct {
	Kind        ResourceKind
	Register    isa.Register // valid iff Kind == ResourceRegister
	TargetSize  uint32
	CurrentSize uint32
}

// IsFull reports whether the resource has reached its target size.
func (r *Resource) IsFull() bool { return r.CurrentSize >= r.TargetSize }

func (r *Resource) remaining() uint32 {
	if r.TargetSize > r.CurrentSize {
		return r.TargetSize - r.CurrentSize
	}
	return 0
}

// append adds up to length bytes, bounded by remaining capacity, and
// returns the number actually accepted.
func (r *Resource) append(length uint32) uint32 {
	accepted := min32(r.remaining(), length)
	r.CurrentSize += accepted
	return accepted
}

// EnhancedResource is the result buffer's single destination resource:
// a Resource plus a running consumed_bytes counter (spec.md §3).
type EnhancedResource struct {
	Kind         ResourceKind
	Register     isa.Register
	TargetSize   uint32
	CurrentSize  uint32
	ConsumedBytes uint32
}

func (r *EnhancedResource) remaining() uint32 {
	if r.TargetSize > r.CurrentSize {
		return r.TargetSize - r.CurrentSize
	}
	return 0
}

func (r *EnhancedResource) append(length uint32) uint32 {
	accepted := min32(r.remaining(), length)
	r.CurrentSize += accepted
	return accepted
}

func (r *EnhancedResource) consume(length uint32) uint32 {
	consumed := min32(r.CurrentSize, length)
	r.CurrentSize -= consumed
	r.ConsumedBytes += consumed
	return consumed
}

// IsComplete reports whether every byte of the resource has been
// consumed out the far side (spec.md §3: consumed_bytes == target_size).
func (r *EnhancedResource) IsComplete() bool {
	return r.ConsumedBytes == r.TargetSize
}

// BufferEvent is the small sum type spec.md §9 calls for: a Producer
// event targets the input buffer by resource index, a Consumer event
// drains the result buffer by a maximum length. Exactly one of the two
// pointer fields is set.
type BufferEvent struct {
	Producer *ProducerEvent
	Consumer *ConsumerEvent
}

type ProducerEvent struct {
	ResourceIndex int
	AppendLength  uint32
}

type ConsumerEvent struct {
	MaxConsumeLength uint32
}

// ProducerResult reports how a Producer event was applied.
type ProducerResult struct {
	ResourceIndex  int
	AcceptedLength uint32
	RemainingBytes uint32
}

// ConsumerResult reports how a Consumer event was applied.
type ConsumerResult struct {
	ConsumedBytes  uint32
	RemainingBytes uint32
}

// BufferEventResult is the symmetric result sum type.
type BufferEventResult struct {
	Producer *ProducerResult
	Consumer *ConsumerResult
}

// UnitKey identifies the unit a BufferPair belongs to, for diagnostics
// and for routing register-task events back to their owning unit
// (spec.md §9: "unit identity as an enum key, not a string").
type UnitKey struct {
	Func     isa.FuncKind
	IsFunc   bool
	MemRead  bool
	MemWrite bool
	Port     int
}

func FuncUnitKey(k isa.FuncKind) UnitKey { return UnitKey{Func: k, IsFunc: true} }
func MemReadKey(port int) UnitKey        { return UnitKey{MemRead: true, Port: port} }
func MemWriteKey(port int) UnitKey       { return UnitKey{MemWrite: true, Port: port} }

func (k UnitKey) String() string {
	switch {
	case k.IsFunc:
		return k.Func.String()
	case k.MemRead:
		return "mem_read_port"
	case k.MemWrite:
		return "mem_write_port"
	default:
		return "unassigned"
	}
}

// BufferPair is the input/result buffer pair attached to every unit and
// every load/store port (spec.md §4.1).
type BufferPair struct {
	Owner  UnitKey
	Input  []Resource
	Result *EnhancedResource // nil until SetOutput is called
}

// NewBufferPair returns an empty pair tagged with owner.
func NewBufferPair(owner UnitKey) *BufferPair {
	return &BufferPair{Owner: owner}
}

// SetInput installs the ordered input resources for a freshly issued
// instruction.
func (b *BufferPair) SetInput(resources []Resource) {
	b.Input = resources
}

// SetOutput installs the single result destination.
func (b *BufferPair) SetOutput(dest EnhancedResource) {
	b.Result = &dest
}

// HandleEvent applies a BufferEvent and returns its result, per spec.md
// §4.1's Producer/Consumer rules. op and cycle are used only to stamp
// the error that is raised on misuse.
func (b *BufferPair) HandleEvent(op string, cycle uint64, event BufferEvent) (BufferEventResult, error) {
	switch {
	case event.Producer != nil:
		idx := event.Producer.ResourceIndex
		if idx < 0 || idx >= len(b.Input) {
			return BufferEventResult{}, newErr(IndexOutOfRange, op, cycle)
		}
		res := &b.Input[idx]
		accepted := res.append(event.Producer.AppendLength)
		remaining := event.Producer.AppendLength - accepted
		return BufferEventResult{Producer: &ProducerResult{
			ResourceIndex:  idx,
			AcceptedLength: accepted,
			RemainingBytes: remaining,
		}}, nil
	case event.Consumer != nil:
		if b.Result == nil {
			return BufferEventResult{}, newErr(NoDestination, op, cycle)
		}
		consumed := b.Result.consume(event.Consumer.MaxConsumeLength)
		return BufferEventResult{Consumer: &ConsumerResult{
			ConsumedBytes:  consumed,
			RemainingBytes: b.Result.CurrentSize,
		}}, nil
	default:
		return BufferEventResult{}, newErr(BufferStateViolation, op, cycle)
	}
}

// IncreaseResult appends n bytes to the result destination — invoked
// when a unit's event queue matures an event.
func (b *BufferPair) IncreaseResult(op string, cycle uint64, n uint32) error {
	if b.Result == nil {
		return newErr(NoDestination, op, cycle)
	}
	b.Result.append(n)
	return nil
}

// IsResultCompleted reports whether the result destination has been
// fully drained (spec.md §4.1).
func (b *BufferPair) IsResultCompleted() bool {
	return b.Result != nil && b.Result.IsComplete()
}

// Clear resets the input resources but preserves the result buffer, so
// late consumers can still drain it (spec.md §4.1).
func (b *BufferPair) Clear() {
	b.Input = nil
}

// MemoryInputCurrentBytes returns the current_size of the single Memory
// resource in the input buffer, but only once every non-memory resource
// is full — the address must resolve before bytes start flowing
// (spec.md §4.3). It returns 0 (not an error) while still gated.
func (b *BufferPair) MemoryInputCurrentBytes(op string, cycle uint64) (uint32, error) {
	for i := range b.Input {
		if b.Input[i].Kind != ResourceMemory && !b.Input[i].IsFull() {
			return 0, nil
		}
	}
	var found *Resource
	for i := range b.Input {
		if b.Input[i].Kind == ResourceMemory {
			if found != nil {
				return 0, newErr(BufferStateViolation, op, cycle)
			}
			found = &b.Input[i]
		}
	}
	if found == nil {
		return 0, newErr(BufferStateViolation, op, cycle)
	}
	return found.CurrentSize, nil
}

// RegisterDataInputCurrentBytes returns the current_size of the second
// register resource in a write port's input buffer — the data register,
// as opposed to the address-dependency register at index 0 (spec.md
// §4.3).
func (b *BufferPair) RegisterDataInputCurrentBytes(op string, cycle uint64) (uint32, error) {
	var regs []*Resource
	for i := range b.Input {
		if b.Input[i].Kind == ResourceRegister {
			regs = append(regs, &b.Input[i])
		}
	}
	if len(regs) != 2 {
		return 0, newErr(BufferStateViolation, op, cycle)
	}
	return regs[1].CurrentSize, nil
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}
