package isa

import "fmt"

// FuncKind enumerates the functional-unit keys spec.md §3 names: one
// per (domain x operation) pair the core's issue logic knows how to
// route. The scalar and float keys each map to a configured latency
// (internal/config); the configuration carries no latency for the
// vector keys, and the simulator runs vector units at latency 0.
type FuncKind uint8

const (
	IntegerALU FuncKind = iota
	IntegerDiv
	FloatALU
	FloatMul
	FloatDiv
	VectorALU
	VectorMul
	VectorDiv
	VectorSlide
	VectorMacc
)

func (k FuncKind) String() string {
	switch k {
	case IntegerALU:
		return "integer_alu"
	case IntegerDiv:
		return "integer_divider"
	case FloatALU:
		return "float_alu"
	case FloatMul:
		return "float_multiplier"
	case FloatDiv:
		return "float_divider"
	case VectorALU:
		return "vector_alu"
	case VectorMul:
		return "vector_multiplier"
	case VectorDiv:
		return "vector_divider"
	case VectorSlide:
		return "vector_slide"
	case VectorMacc:
		return "vector_macc"
	default:
		return fmt.Sprintf("FuncKind(%d)", uint8(k))
	}
}

// IsVector reports whether k is executed by a vector functional unit
// (internal/sim.VectorUnit) rather than a common one
// (internal/sim.CommonUnit).
func (k FuncKind) IsVector() bool {
	switch k {
	case VectorALU, VectorMul, VectorDiv, VectorSlide, VectorMacc:
		return true
	default:
		return false
	}
}

// Direction is the address direction of a memory instruction.
type Direction uint8

const (
	Read Direction = iota
	Write
)

func (d Direction) String() string {
	if d == Write {
		return "write"
	}
	return "read"
}

// FuncInst is a functional instruction: a destination register, an
// ordered list of source registers, and the functional-unit key that
// executes it (spec.md §3).
type FuncInst struct {
	Dest     Register
	Sources  []Register
	FuncKind FuncKind
	// Mnemonic is retained only for diagnostics (snapshots, error
	// messages); the core never inspects it for semantics.
	Mnemonic string
}

// MemInst is a memory instruction: a direction, an address-dependency
// scalar register, and a data register of any kind (spec.md §3).
type MemInst struct {
	Dir        Direction
	AddrDep    Register
	Data       Register
	Mnemonic   string
}

// Instruction is the tagged variant the core consumes. Exactly one of
// Func or Mem is non-nil.
type Instruction struct {
	Func *FuncInst
	Mem  *MemInst
}

func (i Instruction) String() string {
	switch {
	case i.Func != nil:
		return i.Func.Mnemonic
	case i.Mem != nil:
		return i.Mem.Mnemonic
	default:
		return "<empty instruction>"
	}
}

// IsMem reports whether the instruction is a memory instruction.
func (i Instruction) IsMem() bool { return i.Mem != nil }

// FromFunc wraps a FuncInst in the tagged Instruction variant.
func FromFunc(f FuncInst) Instruction { return Instruction{Func: &f} }

// FromMem wraps a MemInst in the tagged Instruction variant.
func FromMem(m MemInst) Instruction { return Instruction{Mem: &m} }
