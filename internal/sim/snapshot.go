package sim

import "github.com/vecsim/vecsim/internal/isa"

// ═══════════════════════════════════════════════════════════════════
// OBSERVABILITY SNAPSHOTS (spec.md §6)
// ═══════════════════════════════════════════════════════════════════
//
// CycleSnapshot is the per-cycle state dump the core's observability
// hooks expose: which units are busy, how many events are in flight,
// and the shape of every vector register's task queue. The core never
// interprets these itself — they exist purely for callers (the CLI's
// trace dump, or a test asserting determinism across two runs).

// UnitSnapshot reports one functional or memory-port unit's occupancy.
type UnitSnapshot struct {
	Key        string
	Busy       bool
	InFlight   int
}

// RegisterTaskSnapshot mirrors one outstanding RegisterTask.
type RegisterTaskSnapshot struct {
	RegisterID    uint8
	ResourceIndex int
	Behavior      TaskBehavior
	UnitKey       string
	CurrentPlace  uint32
}

// CycleSnapshot is the full observable state at the end of one tick.
type CycleSnapshot struct {
	Cycle          uint64
	Units          []UnitSnapshot
	RegisterTasks  []RegisterTaskSnapshot
}

// Summary satisfies obslog.CycleSnapshot so the scheduler can feed ticks
// to the logger without internal/obslog importing internal/sim.
func (s CycleSnapshot) Summary() (cycle uint64, busyUnits int, inFlightEvents int) {
	for _, u := range s.Units {
		if u.Busy {
			busyUnits++
		}
		inFlightEvents += u.InFlight
	}
	return s.Cycle, busyUnits, inFlightEvents
}

func (w *World) snapshot(cycle uint64) CycleSnapshot {
	s := CycleSnapshot{Cycle: cycle}
	for _, k := range []isa.FuncKind{isa.IntegerALU, isa.IntegerDiv, isa.FloatALU, isa.FloatMul, isa.FloatDiv} {
		u := w.common[k]
		inFlight := 0
		if u.event != nil {
			inFlight = 1
		}
		s.Units = append(s.Units, UnitSnapshot{Key: k.String(), Busy: u.Occupied, InFlight: inFlight})
	}
	for _, k := range []isa.FuncKind{isa.VectorALU, isa.VectorMul, isa.VectorDiv, isa.VectorSlide, isa.VectorMacc} {
		u := w.vector[k]
		s.Units = append(s.Units, UnitSnapshot{Key: k.String(), Busy: u.Occupied, InFlight: len(u.queue)})
	}
	for i := range w.lsu.Read {
		busy := w.lsu.Read[i].gen != nil
		s.Units = append(s.Units, UnitSnapshot{Key: MemReadKey(i).String(), Busy: busy})
	}
	for i := range w.lsu.Write {
		busy := w.lsu.Write[i].gen != nil
		s.Units = append(s.Units, UnitSnapshot{Key: MemWriteKey(i).String(), Busy: busy})
	}
	for id := 0; id < isa.NumRegisters; id++ {
		v := &w.regs.Vector[id]
		for _, t := range v.Tasks {
			s.RegisterTasks = append(s.RegisterTasks, RegisterTaskSnapshot{
				RegisterID:    uint8(id),
				ResourceIndex: t.ResourceIndex,
				Behavior:      t.Behavior,
				UnitKey:       t.UnitKey.String(),
				CurrentPlace:  t.CurrentPlace,
			})
		}
	}
	return s
}
