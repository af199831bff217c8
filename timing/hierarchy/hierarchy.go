// Package hierarchy wires CPU controllers, their interconnects and their
// first-level caches into one simulated memory system and drives it with an
// akita engine.
package hierarchy

import (
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/memsim/timing/cache"
	"github.com/sarchlab/memsim/timing/config"
	"github.com/sarchlab/memsim/timing/cpucontroller"
	"github.com/sarchlab/memsim/timing/interconnect"
	"github.com/sarchlab/memsim/timing/request"
)

// Pipeline is the owner of one core's accesses.
type Pipeline interface {
	// Tick issues the accesses of one cycle.
	Tick()

	// Done reports whether the pipeline has nothing left to issue or wait
	// for.
	Done() bool

	InstructionWakeup(addr uint64)
	DataWakeup(threadID uint8, robID int, ownerTimestamp, addr uint64)
}

// Component is a part of the hierarchy that can describe itself.
type Component interface {
	Name() string
	PrintState(w io.Writer)
	PrintTopology(w io.Writer)
}

type clockable interface {
	Clock()
}

// Core groups the components built for one core.
type Core struct {
	ID         uint8
	Controller *cpucontroller.Controller
	L1I        *cache.Controller
	L1D        *cache.Controller
	ILink      *interconnect.P2P
	DLink      *interconnect.P2P

	pipeline Pipeline
}

// Hierarchy owns the shared pools and every per-core component.
type Hierarchy struct {
	*sim.TickingComponent

	mu sync.Mutex

	config   *config.Config
	engine   sim.Engine
	arena    *request.Arena
	messages *interconnect.MessagePool

	cores  []*Core
	clocks []clockable
	full   map[string]bool

	perCore    []cpucontroller.Stats
	totalStats cpucontroller.Stats

	cycle     uint64
	maxCycles uint64
	gcRuns    uint64
	reclaimed uint64

	// gcReserve is the number of free requests the next cycle may need.
	gcReserve int
}

// Option configures a Hierarchy.
type Option func(*Hierarchy)

// WithMaxCycles stops the simulation after n cycles. Zero means no limit.
func WithMaxCycles(n uint64) Option {
	return func(h *Hierarchy) {
		h.maxCycles = n
	}
}

// Build creates a hierarchy with numCores cores. Pipelines are attached
// afterwards with RegisterPipeline.
func Build(
	cfg *config.Config,
	engine sim.Engine,
	numCores int,
	opts ...Option,
) (*Hierarchy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if numCores <= 0 || numCores > 256 {
		return nil, fmt.Errorf("core count %d out of range [1, 256]", numCores)
	}

	if need := cfg.MinRequestPoolSize(numCores); cfg.RequestPoolSize < need {
		return nil, fmt.Errorf(
			"request_pool_size %d cannot serve %d cores, need at least %d",
			cfg.RequestPoolSize, numCores, need)
	}

	h := &Hierarchy{
		config:   cfg.Clone(),
		engine:   engine,
		arena:    request.NewArena(cfg.RequestPoolSize),
		messages: interconnect.NewMessagePool(cfg.MessagePoolSize),
		full:     make(map[string]bool),
		perCore:  make([]cpucontroller.Stats, numCores),

		gcReserve: numCores*cfg.IssueWidth + 1,
	}

	for _, opt := range opts {
		opt(h)
	}

	h.TickingComponent = sim.NewTickingComponent(
		"MemoryHierarchy", engine, sim.Freq(cfg.FreqGHz)*sim.GHz, h)

	for i := 0; i < numCores; i++ {
		h.buildCore(uint8(i))
	}

	return h, nil
}

func (h *Hierarchy) buildCore(id uint8) {
	prefix := fmt.Sprintf("Core[%d]", id)

	ctrl := cpucontroller.New(id, prefix+".CPUController", h,
		cpucontroller.WithQueueCapacity(h.config.PendingQueueSize),
		cpucontroller.WithLineBufferCapacity(h.config.ICacheBufferSize),
		cpucontroller.WithLineBits(h.config.ICacheLineBits(), h.config.DCacheLineBits()),
		cpucontroller.WithStats(&h.perCore[id], &h.totalStats),
	)

	l1i := cache.New(prefix+".L1I", h.config.L1I, h.messages,
		cache.WithRequestSource(h.arena))
	l1d := cache.New(prefix+".L1D", h.config.L1D, h.messages,
		cache.WithRequestSource(h.arena))

	iLink := h.connect(prefix+".L1ILink", ctrl, l1i)
	dLink := h.connect(prefix+".L1DLink", ctrl, l1d)

	ctrl.RegisterInstructionInterconnect(iLink)
	ctrl.RegisterDataInterconnect(dLink)

	h.cores = append(h.cores, &Core{
		ID:         id,
		Controller: ctrl,
		L1I:        l1i,
		L1D:        l1d,
		ILink:      iLink,
		DLink:      dLink,
	})

	h.clocks = append(h.clocks, ctrl, l1i, l1d)
}

func (h *Hierarchy) connect(
	name string,
	ctrl *cpucontroller.Controller,
	c *cache.Controller,
) *interconnect.P2P {
	link := interconnect.NewP2P(name, h.messages)
	link.RegisterController(ctrl)
	link.RegisterController(c)
	c.RegisterInterconnect(link)

	return link
}

// RegisterPipeline attaches the pipeline that owns the accesses of a core.
func (h *Hierarchy) RegisterPipeline(coreID uint8, p Pipeline) {
	h.core(coreID).pipeline = p
}

func (h *Hierarchy) core(coreID uint8) *Core {
	if int(coreID) >= len(h.cores) {
		log.Panicf("core %d does not exist", coreID)
	}

	return h.cores[coreID]
}

// Cores returns the per-core components.
func (h *Hierarchy) Cores() []*Core {
	return h.cores
}

// Arena returns the shared request arena.
func (h *Hierarchy) Arena() *request.Arena {
	return h.arena
}

// Config returns the configuration the hierarchy was built with.
func (h *Hierarchy) Config() *config.Config {
	return h.config
}

// AcquireMessage leases a message from the shared pool.
func (h *Hierarchy) AcquireMessage() (*interconnect.Message, error) {
	return h.messages.AcquireMessage()
}

// ReleaseMessage returns a message to the shared pool.
func (h *Hierarchy) ReleaseMessage(msg *interconnect.Message) {
	h.messages.ReleaseMessage(msg)
}

// SetControllerFull records the backpressure flag of a controller.
func (h *Hierarchy) SetControllerFull(name string, full bool) {
	h.full[name] = full
}

// IsControllerFull reports the last backpressure flag set by a controller.
func (h *Hierarchy) IsControllerFull(name string) bool {
	return h.full[name]
}

// InstructionWakeup forwards a fetch completion to the owning pipeline.
func (h *Hierarchy) InstructionWakeup(coreID uint8, addr uint64) {
	if p := h.core(coreID).pipeline; p != nil {
		p.InstructionWakeup(addr)
	}
}

// DataWakeup forwards a data completion to the owning pipeline.
func (h *Hierarchy) DataWakeup(
	coreID, threadID uint8,
	robID int,
	ownerTimestamp, addr uint64,
) {
	if p := h.core(coreID).pipeline; p != nil {
		p.DataWakeup(threadID, robID, ownerTimestamp, addr)
	}
}

// AcceptControllerHook registers a hook with every CPU controller.
func (h *Hierarchy) AcceptControllerHook(hook sim.Hook) {
	for _, c := range h.cores {
		c.Controller.AcceptHook(hook)
	}
}

// Tick advances every pipeline, then every controller and cache, by one
// cycle. It returns false once the simulation is over.
func (h *Hierarchy) Tick() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.cycle++

	for _, c := range h.cores {
		if c.pipeline != nil {
			c.pipeline.Tick()
		}
	}

	for _, c := range h.clocks {
		c.Clock()
	}

	h.collectGarbage()

	if h.maxCycles > 0 && h.cycle >= h.maxCycles {
		log.Printf("stopping at cycle %d: cycle limit reached", h.cycle)
		return false
	}

	return !h.drained()
}

func (h *Hierarchy) collectGarbage() {
	interval := h.config.GCInterval
	due := interval > 0 && h.cycle%interval == 0

	if !due && !h.arena.IsLow() && h.arena.Free() >= h.gcReserve {
		return
	}

	h.gcRuns++
	h.reclaimed += uint64(h.arena.GarbageCollect())
}

func (h *Hierarchy) drained() bool {
	for _, c := range h.cores {
		if c.pipeline != nil && !c.pipeline.Done() {
			return false
		}

		if c.Controller.PendingCount() > 0 ||
			c.L1I.Outstanding() > 0 ||
			c.L1D.Outstanding() > 0 {
			return false
		}
	}

	return true
}

// Run simulates until every pipeline is done and no access is pending, or
// until the cycle limit is reached.
func (h *Hierarchy) Run() error {
	h.TickLater()

	if err := h.engine.Run(); err != nil {
		return fmt.Errorf("failed to run simulation: %w", err)
	}

	return nil
}

// Cycle returns the number of cycles simulated.
func (h *Hierarchy) Cycle() uint64 {
	return h.cycle
}

// Stats returns the controller statistics summed over all cores.
func (h *Hierarchy) Stats() cpucontroller.Stats {
	return h.totalStats
}

// CoreStats returns the controller statistics of one core.
func (h *Hierarchy) CoreStats(coreID uint8) cpucontroller.Stats {
	h.core(coreID)
	return h.perCore[coreID]
}

// GCStats returns the number of arena collections and the requests they
// reclaimed.
func (h *Hierarchy) GCStats() (runs, reclaimed uint64) {
	return h.gcRuns, h.reclaimed
}

// Components lists every controller and cache.
func (h *Hierarchy) Components() []Component {
	var out []Component

	for _, c := range h.cores {
		out = append(out, c.Controller, c.L1I, c.L1D)
	}

	return out
}

// Component returns the controller or cache with the given name.
func (h *Hierarchy) Component(name string) (Component, bool) {
	for _, c := range h.Components() {
		if c.Name() == name {
			return c, true
		}
	}

	return nil, false
}

// Inspect runs fn while no cycle is being simulated.
func (h *Hierarchy) Inspect(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	fn()
}

// Flush writes back every cache.
func (h *Hierarchy) Flush() {
	for _, c := range h.cores {
		c.L1I.Flush()
		c.L1D.Flush()
	}
}

// PrintState dumps every component and the shared pools.
func (h *Hierarchy) PrintState(w io.Writer) {
	fmt.Fprintf(w, "Memory hierarchy at cycle %d\n", h.cycle)

	for _, c := range h.Components() {
		c.PrintState(w)
	}

	h.arena.Print(w)
	fmt.Fprintf(w, "Message pool: size[%d] free[%d]\n",
		h.messages.Size(), h.messages.Free())
}

// PrintTopology describes how the components are connected.
func (h *Hierarchy) PrintTopology(w io.Writer) {
	for _, c := range h.cores {
		c.Controller.PrintTopology(w)
		c.ILink.PrintTopology(w)
		c.DLink.PrintTopology(w)
		c.L1I.PrintTopology(w)
		c.L1D.PrintTopology(w)
	}
}
