// Package trace decodes a line-oriented RISC-V instruction trace into
// the core's Instruction sum type. It is a front-end convenience, not
// part of the core: one mnemonic per line, the small subset of scalar,
// float, memory, and vector instructions the simulator models.
package trace

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/vecsim/vecsim/internal/isa"
)

// DecodeError reports a line the decoder could not parse or map to a
// functional-unit key.
type DecodeError struct {
	Line int
	Text string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("trace: line %d: %q: %v", e.Line, e.Text, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var (
	lineRe = regexp.MustCompile(`^\s*([a-zA-Z0-9_.]+)\s+(.*)$`)
	opRe   = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9]*)$`)
	memRe  = regexp.MustCompile(`^(-?\d*)\(\s*([A-Za-z][A-Za-z0-9]*)\s*\)$`)
)

// Decode reads r line by line, skipping blank lines and lines beginning
// with "#", and returns the decoded instruction sequence in order.
func Decode(r io.Reader) ([]isa.Instruction, error) {
	scanner := bufio.NewScanner(r)
	var out []isa.Instruction
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		inst, err := decodeLine(text)
		if err != nil {
			return nil, &DecodeError{Line: lineNo, Text: text, Err: err}
		}
		out = append(out, inst)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("trace: scan: %w", err)
	}
	return out, nil
}

func decodeLine(text string) (isa.Instruction, error) {
	m := lineRe.FindStringSubmatch(text)
	if m == nil {
		return isa.Instruction{}, fmt.Errorf("not a recognizable mnemonic line")
	}
	mnemonic, operands := strings.ToLower(m[1]), m[2]
	fields := splitOperands(operands)

	switch mnemonic {
	case "add", "sub", "addw", "subw":
		return decodeBinaryALU(mnemonic, fields, isa.IntegerALU)
	case "addi", "addiw", "xori", "slli", "srli":
		return decodeUnaryALU(mnemonic, fields, isa.IntegerALU)
	case "div", "divw", "rem":
		return decodeBinaryALU(mnemonic, fields, isa.IntegerDiv)
	case "fadd", "fsub":
		return decodeBinaryALU(mnemonic, fields, isa.FloatALU)
	case "fmul":
		return decodeBinaryALU(mnemonic, fields, isa.FloatMul)
	case "fdiv":
		return decodeBinaryALU(mnemonic, fields, isa.FloatDiv)
	case "vfadd.vv", "vadd.vv":
		return decodeVectorBinary(mnemonic, fields, isa.VectorALU)
	case "vfmul.vv", "vmul.vv":
		return decodeVectorBinary(mnemonic, fields, isa.VectorMul)
	case "vdiv.vv", "vfdiv.vv":
		return decodeVectorBinary(mnemonic, fields, isa.VectorDiv)
	case "vmacc.vv":
		return decodeVectorMacc(mnemonic, fields)
	case "vfslide1down.vf", "vfslide1up.vf":
		return decodeVectorSlide(mnemonic, fields)
	case "ld":
		return decodeMemScalar(mnemonic, fields, isa.Scalar, isa.Read)
	case "fld":
		return decodeMemScalar(mnemonic, fields, isa.Float, isa.Read)
	case "vle":
		return decodeMemVector(mnemonic, fields, isa.Read)
	case "vse":
		return decodeMemVector(mnemonic, fields, isa.Write)
	default:
		return isa.Instruction{}, fmt.Errorf("unsupported mnemonic %q", mnemonic)
	}
}

func splitOperands(s string) []string {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseReg(kind isa.RegisterKind, tok string) (isa.Register, error) {
	tok = strings.TrimSpace(tok)
	if !opRe.MatchString(tok) {
		return isa.Register{}, fmt.Errorf("malformed register operand %q", tok)
	}
	id, err := abiRegisterID(kind, tok)
	if err != nil {
		return isa.Register{}, err
	}
	return isa.Register{Kind: kind, ID: id}, nil
}

// abiRegisterID maps the RISC-V ABI scalar names (zero, ra, sp, gp, tp,
// a0-a7, t0-t6, s0-s11), the float ABI names (ft0-ft11, fs0-fs11,
// fa0-fa7) and the raw "xN", "fN" and "vN" forms to a 0-31 register id.
// It supports exactly the operand forms used by the core's worked
// scenarios; anything else is rejected rather than guessed at.
func abiRegisterID(kind isa.RegisterKind, tok string) (uint8, error) {
	lower := strings.ToLower(tok)
	var prefix string
	switch kind {
	case isa.Scalar:
		prefix = "x"
	case isa.Float:
		prefix = "f"
	case isa.Vector:
		prefix = "v"
	}
	if strings.HasPrefix(lower, prefix) {
		if n, err := strconv.Atoi(lower[len(prefix):]); err == nil && n >= 0 && n < isa.NumRegisters {
			return uint8(n), nil
		}
	}
	if kind == isa.Float {
		// Float ABI names in f0-f31 order.
		for i, name := range strings.Fields("ft0 ft1 ft2 ft3 ft4 ft5 ft6 ft7 fs0 fs1 fa0 fa1 fa2 fa3 fa4 fa5 fa6 fa7 fs2 fs3 fs4 fs5 fs6 fs7 fs8 fs9 fs10 fs11 ft8 ft9 ft10 ft11") {
			if lower == name {
				return uint8(i), nil
			}
		}
	}
	if kind != isa.Scalar {
		return 0, fmt.Errorf("unrecognized %s register %q", kind, tok)
	}
	if id, ok := scalarABINames[lower]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("unrecognized scalar register %q", tok)
}

var scalarABINames = buildScalarABINames()

func buildScalarABINames() map[string]uint8 {
	names := map[string]uint8{"zero": 0, "ra": 1, "sp": 2, "gp": 3, "tp": 4}
	// t0-t6, s0-s11 and a0-a7 follow the standard RISC-V calling
	// convention register windows.
	t := []int{5, 6, 7, 28, 29, 30, 31}
	for i, reg := range t {
		names[fmt.Sprintf("t%d", i)] = uint8(reg)
	}
	s := []int{8, 9, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27}
	for i, reg := range s {
		names[fmt.Sprintf("s%d", i)] = uint8(reg)
	}
	a := []int{10, 11, 12, 13, 14, 15, 16, 17}
	for i, reg := range a {
		names[fmt.Sprintf("a%d", i)] = uint8(reg)
	}
	return names
}

func decodeBinaryALU(mnemonic string, fields []string, kind isa.FuncKind) (isa.Instruction, error) {
	regKind := isa.Scalar
	if strings.HasPrefix(mnemonic, "f") {
		regKind = isa.Float
	}
	if len(fields) != 3 {
		return isa.Instruction{}, fmt.Errorf("%s expects 3 operands, got %d", mnemonic, len(fields))
	}
	dest, err := parseReg(regKind, fields[0])
	if err != nil {
		return isa.Instruction{}, err
	}
	src1, err := parseReg(regKind, fields[1])
	if err != nil {
		return isa.Instruction{}, err
	}
	src2, err := parseReg(regKind, fields[2])
	if err != nil {
		return isa.Instruction{}, err
	}
	return isa.FromFunc(isa.FuncInst{Dest: dest, Sources: []isa.Register{src1, src2}, FuncKind: kind, Mnemonic: mnemonic}), nil
}

func decodeUnaryALU(mnemonic string, fields []string, kind isa.FuncKind) (isa.Instruction, error) {
	if len(fields) < 2 {
		return isa.Instruction{}, fmt.Errorf("%s expects at least 2 operands, got %d", mnemonic, len(fields))
	}
	dest, err := parseReg(isa.Scalar, fields[0])
	if err != nil {
		return isa.Instruction{}, err
	}
	src, err := parseReg(isa.Scalar, fields[1])
	if err != nil {
		return isa.Instruction{}, err
	}
	return isa.FromFunc(isa.FuncInst{Dest: dest, Sources: []isa.Register{src}, FuncKind: kind, Mnemonic: mnemonic}), nil
}

func decodeVectorBinary(mnemonic string, fields []string, kind isa.FuncKind) (isa.Instruction, error) {
	if len(fields) != 3 {
		return isa.Instruction{}, fmt.Errorf("%s expects 3 operands, got %d", mnemonic, len(fields))
	}
	dest, err := parseReg(isa.Vector, fields[0])
	if err != nil {
		return isa.Instruction{}, err
	}
	src1, err := parseReg(isa.Vector, fields[1])
	if err != nil {
		return isa.Instruction{}, err
	}
	src2, err := parseReg(isa.Vector, fields[2])
	if err != nil {
		return isa.Instruction{}, err
	}
	return isa.FromFunc(isa.FuncInst{Dest: dest, Sources: []isa.Register{src1, src2}, FuncKind: kind, Mnemonic: mnemonic}), nil
}

// decodeVectorMacc decodes vmacc.vv vd,vs1,vs2 as vd += vs1*vs2: the
// destination also appears as a source, per the original's treatment of
// multiply-accumulate as read-modify-write on the accumulator.
func decodeVectorMacc(mnemonic string, fields []string) (isa.Instruction, error) {
	if len(fields) != 3 {
		return isa.Instruction{}, fmt.Errorf("%s expects 3 operands, got %d", mnemonic, len(fields))
	}
	dest, err := parseReg(isa.Vector, fields[0])
	if err != nil {
		return isa.Instruction{}, err
	}
	src1, err := parseReg(isa.Vector, fields[1])
	if err != nil {
		return isa.Instruction{}, err
	}
	src2, err := parseReg(isa.Vector, fields[2])
	if err != nil {
		return isa.Instruction{}, err
	}
	return isa.FromFunc(isa.FuncInst{Dest: dest, Sources: []isa.Register{dest, src1, src2}, FuncKind: isa.VectorMacc, Mnemonic: mnemonic}), nil
}

// decodeVectorSlide decodes vfslide1{down,up}.vf vd,fs1,vs2: a float
// scalar source, the destination (read for its initial lane contents),
// and a vector source.
func decodeVectorSlide(mnemonic string, fields []string) (isa.Instruction, error) {
	if len(fields) != 3 {
		return isa.Instruction{}, fmt.Errorf("%s expects 3 operands, got %d", mnemonic, len(fields))
	}
	dest, err := parseReg(isa.Vector, fields[0])
	if err != nil {
		return isa.Instruction{}, err
	}
	fs1, err := parseReg(isa.Float, fields[1])
	if err != nil {
		return isa.Instruction{}, err
	}
	vs2, err := parseReg(isa.Vector, fields[2])
	if err != nil {
		return isa.Instruction{}, err
	}
	return isa.FromFunc(isa.FuncInst{Dest: dest, Sources: []isa.Register{fs1, dest, vs2}, FuncKind: isa.VectorSlide, Mnemonic: mnemonic}), nil
}

func decodeMemScalar(mnemonic string, fields []string, dataKind isa.RegisterKind, dir isa.Direction) (isa.Instruction, error) {
	if len(fields) != 2 {
		return isa.Instruction{}, fmt.Errorf("%s expects 2 operands, got %d", mnemonic, len(fields))
	}
	data, err := parseReg(dataKind, fields[0])
	if err != nil {
		return isa.Instruction{}, err
	}
	addr, err := parseMemAddr(fields[1])
	if err != nil {
		return isa.Instruction{}, err
	}
	return isa.FromMem(isa.MemInst{Dir: dir, AddrDep: addr, Data: data, Mnemonic: mnemonic}), nil
}

func decodeMemVector(mnemonic string, fields []string, dir isa.Direction) (isa.Instruction, error) {
	if len(fields) != 2 {
		return isa.Instruction{}, fmt.Errorf("%s expects 2 operands, got %d", mnemonic, len(fields))
	}
	data, err := parseReg(isa.Vector, fields[0])
	if err != nil {
		return isa.Instruction{}, err
	}
	addr, err := parseMemAddr(fields[1])
	if err != nil {
		return isa.Instruction{}, err
	}
	return isa.FromMem(isa.MemInst{Dir: dir, AddrDep: addr, Data: data, Mnemonic: mnemonic}), nil
}

// parseMemAddr accepts either "offset(rs1)" or the bare "(rs1)" form
// used by the vector load/store scenarios, where the offset is elided.
func parseMemAddr(tok string) (isa.Register, error) {
	m := memRe.FindStringSubmatch(tok)
	if m == nil {
		return isa.Register{}, fmt.Errorf("malformed memory address operand %q", tok)
	}
	return parseReg(isa.Scalar, m[2])
}
