// Package config loads and validates the simulator's configuration
// record (spec.md §6). It is one of the core's external collaborators:
// the core consumes a validated Config value and never reads a file
// itself.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Unit holds the per-event latency, in cycles, of one functional-unit
// kind.
type Unit struct {
	Latency uint32 `toml:"latency"`
}

// FunctionUnits mirrors spec.md §6's function_units group.
type FunctionUnits struct {
	IntegerALU        Unit `toml:"integer_alu"`
	IntegerMultiplier Unit `toml:"integer_multiplier"`
	IntegerDivider    Unit `toml:"integer_divider"`
	FloatALU          Unit `toml:"float_alu"`
	FloatMultiplier   Unit `toml:"float_multiplier"`
	FloatDivider      Unit `toml:"float_divider"`
	BranchUnit        Unit `toml:"branch_unit"`
}

// LoadStoreUnit mirrors spec.md §6's memory_units.load_store_unit group.
type LoadStoreUnit struct {
	Latency        uint32 `toml:"latency"`
	MaxAccessWidth uint32 `toml:"max_access_width"`
	ReadPortsLimit uint32 `toml:"read_ports_limit"`
	WritePortsLimit uint32 `toml:"write_ports_limit"`
}

// MemoryUnits mirrors spec.md §6's memory_units group.
type MemoryUnits struct {
	LoadStoreUnit LoadStoreUnit `toml:"load_store_unit"`
}

// SoftwareConfig mirrors spec.md §6's vector_config.software group: the
// active vector shape (vl, sew, lmul).
type SoftwareConfig struct {
	VL   uint32 `toml:"vl"`
	SEW  uint32 `toml:"sew"`
	LMUL uint32 `toml:"lmul"`
}

// HardwareConfig mirrors spec.md §6's vector_config.hardware group: the
// physical vector width and lane count.
type HardwareConfig struct {
	VLEN       uint32 `toml:"vlen"`
	LaneNumber uint32 `toml:"lane_number"`
}

// VectorConfig mirrors spec.md §6's vector_config group.
type VectorConfig struct {
	Software SoftwareConfig `toml:"software"`
	Hardware HardwareConfig `toml:"hardware"`
}

// VectorRegisterPorts mirrors spec.md §6's vector_register.ports group.
type VectorRegisterPorts struct {
	ReadPortsLimit  uint32 `toml:"read_ports_limit"`
	WritePortsLimit uint32 `toml:"write_ports_limit"`
}

// VectorRegister mirrors spec.md §6's vector_register group.
type VectorRegister struct {
	Ports VectorRegisterPorts `toml:"ports"`
}

// BufferConfig mirrors spec.md §6's buffer group: per-resource byte
// caps.
type BufferConfig struct {
	InputMaximumSize  uint32 `toml:"input_maximum_size"`
	ResultMaximumSize uint32 `toml:"result_maximum_size"`
}

// RegisterConfig mirrors spec.md §6's register group: the per-cycle
// per-register forwarding width.
type RegisterConfig struct {
	MaximumForwardBytes uint32 `toml:"maximum_forward_bytes"`
}

// Config is the full configuration record spec.md §6 names. It is
// decoded from TOML (BurntSushi/toml, following the pack's
// lookbusy1344-arm_emulator) and must be passed through Validate
// before the core will accept it.
type Config struct {
	FunctionUnits   FunctionUnits   `toml:"function_units"`
	MemoryUnits     MemoryUnits     `toml:"memory_units"`
	VectorConfig    VectorConfig    `toml:"vector_config"`
	VectorRegister  VectorRegister  `toml:"vector_register"`
	Buffer          BufferConfig    `toml:"buffer"`
	Register        RegisterConfig  `toml:"register"`
}

// Default returns the configuration used across spec.md §8's worked
// scenarios (S1-S6): vl=4, sew=64, vlen=4096, lane_number=4,
// maximum_forward_bytes=32, integer_alu.latency=1, float_alu.latency=3,
// max_access_width=8, ports_limits=2/2.
func Default() Config {
	return Config{
		FunctionUnits: FunctionUnits{
			IntegerALU:        Unit{Latency: 1},
			IntegerMultiplier: Unit{Latency: 1},
			IntegerDivider:    Unit{Latency: 1},
			FloatALU:          Unit{Latency: 3},
			FloatMultiplier:   Unit{Latency: 3},
			FloatDivider:      Unit{Latency: 3},
			BranchUnit:        Unit{Latency: 1},
		},
		MemoryUnits: MemoryUnits{
			LoadStoreUnit: LoadStoreUnit{
				Latency:         1,
				MaxAccessWidth:  8,
				ReadPortsLimit:  2,
				WritePortsLimit: 2,
			},
		},
		VectorConfig: VectorConfig{
			Software: SoftwareConfig{VL: 4, SEW: 64, LMUL: 1},
			Hardware: HardwareConfig{VLEN: 4096, LaneNumber: 4},
		},
		VectorRegister: VectorRegister{
			Ports: VectorRegisterPorts{ReadPortsLimit: 2, WritePortsLimit: 2},
		},
		Buffer: BufferConfig{
			InputMaximumSize:  64,
			ResultMaximumSize: 64,
		},
		Register: RegisterConfig{MaximumForwardBytes: 32},
	}
}

// Load reads and decodes a TOML configuration file, then validates it.
func Load(path string) (Config, error) {
	var c Config
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// VectorRegisterBytes returns vl*sew/8, the number of bytes a vector
// register actually uses given the active software shape (as opposed
// to vlen/8, its full physical width).
func (c Config) VectorRegisterBytes() uint32 {
	return (c.VectorConfig.Software.SEW / 8) * c.VectorConfig.Software.VL
}

// BytesPerEvent returns lane_number * sew/8, the maximum bytes a vector
// functional unit can move into its result buffer in a single cycle
// (spec.md §4.2.2).
func (c Config) BytesPerEvent() uint32 {
	return c.VectorConfig.Hardware.LaneNumber * (c.VectorConfig.Software.SEW / 8)
}

// Validate checks the invariants spec.md §7 assigns to ConfigInvalid:
// vl*sew must not exceed vlen, and any configured port limit must be
// nonzero.
func (c Config) Validate() error {
	vl := uint64(c.VectorConfig.Software.VL)
	sew := uint64(c.VectorConfig.Software.SEW)
	vlen := uint64(c.VectorConfig.Hardware.VLEN)
	if vl*sew > vlen {
		return &ValidationError{
			Reason: fmt.Sprintf("vl*sew > vlen (%d*%d=%d > %d)", vl, sew, vl*sew, vlen),
		}
	}
	if c.MemoryUnits.LoadStoreUnit.ReadPortsLimit == 0 {
		return &ValidationError{Reason: "memory_units.load_store_unit.read_ports_limit must be > 0"}
	}
	if c.MemoryUnits.LoadStoreUnit.WritePortsLimit == 0 {
		return &ValidationError{Reason: "memory_units.load_store_unit.write_ports_limit must be > 0"}
	}
	if c.VectorRegister.Ports.ReadPortsLimit == 0 {
		return &ValidationError{Reason: "vector_register.ports.read_ports_limit must be > 0"}
	}
	if c.VectorRegister.Ports.WritePortsLimit == 0 {
		return &ValidationError{Reason: "vector_register.ports.write_ports_limit must be > 0"}
	}
	return nil
}

// ValidationError reports a ConfigInvalid condition discovered before
// the core ever runs a cycle (spec.md §7, §8 scenario S6).
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: invalid: %s", e.Reason)
}
