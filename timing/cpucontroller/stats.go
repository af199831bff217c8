package cpucontroller

import (
	"github.com/sarchlab/akita/v4/sim"
)

// Stats counts controller events. A controller updates its own Stats and,
// when configured, a second Stats shared by all controllers.
type Stats struct {
	Accesses    uint64
	FastPathHit uint64
	Admitted    uint64
	Dispatched  uint64
	Completed   uint64
	Annulled    uint64

	// BufferHits and BufferMisses count instruction line buffer lookups.
	BufferHits      uint64
	BufferMisses    uint64
	BufferEvictions uint64

	ReadDependencyStalls  uint64
	WriteDependencyStalls uint64

	// QueueFull and QueueCleared count backpressure transitions.
	QueueFull    uint64
	QueueCleared uint64

	InstructionWakeups uint64
	DataWakeups        uint64
	IgnoredEvictions   uint64
	StrayMessages      uint64
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Accesses += other.Accesses
	s.FastPathHit += other.FastPathHit
	s.Admitted += other.Admitted
	s.Dispatched += other.Dispatched
	s.Completed += other.Completed
	s.Annulled += other.Annulled
	s.BufferHits += other.BufferHits
	s.BufferMisses += other.BufferMisses
	s.BufferEvictions += other.BufferEvictions
	s.ReadDependencyStalls += other.ReadDependencyStalls
	s.WriteDependencyStalls += other.WriteDependencyStalls
	s.QueueFull += other.QueueFull
	s.QueueCleared += other.QueueCleared
	s.InstructionWakeups += other.InstructionWakeups
	s.DataWakeups += other.DataWakeups
	s.IgnoredEvictions += other.IgnoredEvictions
	s.StrayMessages += other.StrayMessages
}

// Hook positions invoked by the controller. The hook item is the
// *request.Request involved (nil for HookPosBackpressure) and the detail is
// an EventDetail.
var (
	HookPosAdmit        = &sim.HookPos{Name: "CPUControllerAdmit"}
	HookPosFinalize     = &sim.HookPos{Name: "CPUControllerFinalize"}
	HookPosAnnul        = &sim.HookPos{Name: "CPUControllerAnnul"}
	HookPosBackpressure = &sim.HookPos{Name: "CPUControllerBackpressure"}
)

// EventDetail is attached to every hook invocation.
type EventDetail struct {
	Controller string
	Cycle      uint64

	// Latency is the number of cycles between admission and finalization.
	Latency uint64

	// Full is the new backpressure state for HookPosBackpressure.
	Full bool
}
