// Package cpucontroller models the cache controller that sits between a core
// pipeline and its first-level caches.
//
// The controller owns the pending-access queue of one core. Accesses that
// fall on the same cache line are chained so that only the head of a chain
// is ever sent to the next level; the rest follow one cycle apart once the
// head completes.
package cpucontroller

import (
	"fmt"
	"io"
	"log"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/memsim/timing/interconnect"
	"github.com/sarchlab/memsim/timing/request"
)

// Default sizes used when no option overrides them.
const (
	DefaultQueueCapacity      = 16
	DefaultLineBufferCapacity = 4
	DefaultLineBits           = 6
)

// Hierarchy is the part of the memory hierarchy a controller talks to.
type Hierarchy interface {
	interconnect.MessageSource

	// SetControllerFull raises or clears the backpressure flag of the
	// named controller.
	SetControllerFull(name string, full bool)

	// InstructionWakeup tells the owning pipeline that a fetch completed.
	InstructionWakeup(coreID uint8, addr uint64)

	// DataWakeup tells the owning pipeline that a data access completed.
	DataWakeup(coreID, threadID uint8, robID int, ownerTimestamp uint64, addr uint64)
}

// Controller is the per-core cache controller.
type Controller struct {
	*sim.HookableBase

	name      string
	coreID    uint8
	hierarchy Hierarchy

	icacheLink interconnect.Interconnect
	dcacheLink interconnect.Interconnect

	icacheLineBits uint
	dcacheLineBits uint

	queueCapacity  int
	bufferCapacity int

	pending      *pendingQueue
	icacheBuffer *lineBuffer
	full         bool
	cycle        uint64

	stats      *Stats
	totalStats *Stats
}

// Option configures a Controller.
type Option func(*Controller)

// WithQueueCapacity sets the number of pending-access entries.
func WithQueueCapacity(n int) Option {
	return func(c *Controller) {
		c.queueCapacity = n
	}
}

// WithLineBufferCapacity sets the number of instruction lines remembered.
func WithLineBufferCapacity(n int) Option {
	return func(c *Controller) {
		c.bufferCapacity = n
	}
}

// WithLineBits sets the log2 of the instruction and data line sizes.
func WithLineBits(icache, dcache uint) Option {
	return func(c *Controller) {
		c.icacheLineBits = icache
		c.dcacheLineBits = dcache
	}
}

// WithStats makes the controller count into the given per-core and total
// statistics. total may be nil.
func WithStats(perCore, total *Stats) Option {
	return func(c *Controller) {
		c.stats = perCore
		c.totalStats = total
	}
}

// New creates a controller for the given core.
func New(coreID uint8, name string, h Hierarchy, opts ...Option) *Controller {
	c := &Controller{
		HookableBase:   sim.NewHookableBase(),
		name:           name,
		coreID:         coreID,
		hierarchy:      h,
		icacheLineBits: DefaultLineBits,
		dcacheLineBits: DefaultLineBits,
		queueCapacity:  DefaultQueueCapacity,
		bufferCapacity: DefaultLineBufferCapacity,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.stats == nil {
		c.stats = &Stats{}
	}

	c.pending = newPendingQueue(c.queueCapacity)
	c.icacheBuffer = newLineBuffer(c.bufferCapacity)

	return c
}

// Name returns the name of the controller.
func (c *Controller) Name() string {
	return c.name
}

// CoreID returns the core the controller serves.
func (c *Controller) CoreID() uint8 {
	return c.coreID
}

// RegisterInstructionInterconnect attaches the link to the instruction cache.
func (c *Controller) RegisterInstructionInterconnect(ic interconnect.Interconnect) {
	c.icacheLink = ic
}

// RegisterDataInterconnect attaches the link to the data cache.
func (c *Controller) RegisterDataInterconnect(ic interconnect.Interconnect) {
	c.dcacheLink = ic
}

// Stats returns a copy of the per-core statistics.
func (c *Controller) Stats() Stats {
	return *c.stats
}

// PendingCount returns the number of live pending entries.
func (c *Controller) PendingCount() int {
	return c.pending.size()
}

// LineBufferCount returns the number of buffered instruction lines.
func (c *Controller) LineBufferCount() int {
	return c.icacheBuffer.size()
}

// IsFull reports whether the backpressure flag is raised.
func (c *Controller) IsFull() bool {
	return c.full
}

// Cycle returns the number of clock calls so far.
func (c *Controller) Cycle() uint64 {
	return c.cycle
}

func (c *Controller) count(update func(s *Stats)) {
	update(c.stats)
	if c.totalStats != nil {
		update(c.totalStats)
	}
}

func (c *Controller) invokeHook(pos *sim.HookPos, req *request.Request, detail EventDetail) {
	detail.Controller = c.name
	detail.Cycle = c.cycle

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    pos,
		Item:   req,
		Detail: detail,
	})
}

func (c *Controller) lineAddress(req *request.Request) uint64 {
	if req.IsInstruction() {
		return req.LineAddress(c.icacheLineBits)
	}

	return req.LineAddress(c.dcacheLineBits)
}

func (c *Controller) linkFor(req *request.Request) interconnect.Interconnect {
	link := c.dcacheLink
	if req.IsInstruction() {
		link = c.icacheLink
	}

	if link == nil {
		log.Panicf("%s: no interconnect registered for %v", c.name, req)
	}

	return link
}

func (c *Controller) isLineBufferHit(req *request.Request) bool {
	if c.icacheBuffer.contains(c.lineAddress(req)) {
		c.count(func(s *Stats) { s.BufferHits++ })
		return true
	}

	c.count(func(s *Stats) { s.BufferMisses++ })

	return false
}

// AccessFastPath admits a request. It returns 0 when the access resolved in
// this call and interconnect.AccessPending when the pipeline has to wait for
// a wakeup.
func (c *Controller) AccessFastPath(
	source interconnect.Interconnect,
	req *request.Request,
) int {
	c.count(func(s *Stats) { s.Accesses++ })

	fastPathLat := interconnect.AccessPending

	if source == nil {
		if req.IsInstruction() && c.isLineBufferHit(req) {
			return 0
		}

		fastPathLat = c.linkFor(req).AccessFastPath(c, req)
		if fastPathLat == 0 {
			c.count(func(s *Stats) { s.FastPathHit++ })
			return 0
		}
	}

	c.admit(req, fastPathLat)

	return interconnect.AccessPending
}

func (c *Controller) admit(req *request.Request, fastPathLat int) {
	e := c.pending.alloc()
	if e == nil {
		log.Panicf("%s: pending queue overflow; admission must respect backpressure",
			c.name)
	}

	e.req = req
	e.awaiting = req
	e.admitCycle = c.cycle
	req.IncRef()

	c.count(func(s *Stats) { s.Admitted++ })
	c.updateBackpressure()
	c.invokeHook(HookPosAdmit, req, EventDetail{})

	if tail := c.findDependency(e); tail != nil {
		tail.depends = linkTo(e.idx)
		e.state = stateBlocked
		e.cycles = -1

		if req.Op() == request.OpRead || req.IsInstruction() {
			c.count(func(s *Stats) { s.ReadDependencyStalls++ })
		} else {
			c.count(func(s *Stats) { s.WriteDependencyStalls++ })
		}

		return
	}

	if fastPathLat > 0 {
		e.state = stateTimed
		e.cycles = fastPathLat

		return
	}

	c.dispatch(e)
}

// findDependency returns the tail of the chain on the same line as e, or nil
// if no other entry uses that line.
func (c *Controller) findDependency(e *queueEntry) *queueEntry {
	line := c.lineAddress(e.req)

	other := c.pending.find(func(o *queueEntry) bool {
		return o != e && o.req != e.req && c.lineAddress(o.req) == line
	})
	if other == nil {
		return nil
	}

	return c.pending.chainTail(other)
}

func (c *Controller) dispatch(e *queueEntry) {
	e.state = stateDispatched
	e.cycles = 0

	link := c.linkFor(e.req)

	msg, err := c.hierarchy.AcquireMessage()
	if err != nil {
		log.Panicf("%s: %v", c.name, err)
	}

	msg.Sender = c
	msg.Request = e.req

	c.count(func(s *Stats) { s.Dispatched++ })

	// The receiver may complete the entry before this call returns.
	accepted := link.ForwardRequest(msg)

	c.hierarchy.ReleaseMessage(msg)

	if !accepted {
		log.Panicf("%s: %s rejected a request", c.name, link.Name())
	}
}

// HandleInterconnectCallback receives completion messages from the next
// level.
func (c *Controller) HandleInterconnectCallback(msg *interconnect.Message) bool {
	if msg.Request.Op() == request.OpEvict {
		c.count(func(s *Stats) { s.IgnoredEvictions++ })
		return true
	}

	e := c.pending.find(func(e *queueEntry) bool {
		return e.state != stateBlocked && e.awaiting == msg.Request
	})
	if e == nil {
		log.Printf("%s: message received that is not for this queue: %s",
			c.name, msg)
		c.count(func(s *Stats) { s.StrayMessages++ })

		return true
	}

	c.complete(e)

	return true
}

// Clock advances every timed entry by one cycle and completes the entries
// that reach zero.
func (c *Controller) Clock() {
	c.cycle++

	var expired []handle

	for _, h := range c.pending.handles() {
		e := c.pending.resolve(h)
		if e.state != stateTimed {
			continue
		}

		e.cycles--
		if e.cycles == 0 {
			expired = append(expired, h)
		}
	}

	for _, h := range expired {
		e := c.pending.resolve(h)
		if e == nil || e.state != stateTimed || e.cycles != 0 {
			continue
		}

		c.complete(e)
	}
}

// complete arms the next entry of the chain and finalizes e. Dependents are
// armed first so that a pipeline reacting to the wakeup sees a consistent
// queue.
func (c *Controller) complete(e *queueEntry) {
	c.wakeupDependents(e)
	c.finalizeRequest(e)
}

func (c *Controller) wakeupDependents(e *queueEntry) {
	next, ok := e.depends.get()
	if !ok {
		return
	}

	d := c.pending.at(next)
	d.state = stateTimed
	d.cycles = 1
}

func (c *Controller) finalizeRequest(e *queueEntry) {
	req := e.req
	latency := c.cycle - e.admitCycle

	if req.IsInstruction() {
		if c.icacheBuffer.push(c.lineAddress(req)) {
			c.count(func(s *Stats) { s.BufferEvictions++ })
		}
	}

	c.releaseBorrows(e)

	if !e.annulled {
		c.pending.free(e)
	}

	c.count(func(s *Stats) { s.Completed++ })
	c.updateBackpressure()
	c.invokeHook(HookPosFinalize, req, EventDetail{Latency: latency})

	if req.IsInstruction() {
		c.count(func(s *Stats) { s.InstructionWakeups++ })
		c.hierarchy.InstructionWakeup(req.CoreID(), req.PhysicalAddress())

		return
	}

	c.count(func(s *Stats) { s.DataWakeups++ })
	c.hierarchy.DataWakeup(req.CoreID(), req.ThreadID(), req.RobID(),
		req.OwnerTimestamp(), req.PhysicalAddress())
}

func (c *Controller) releaseBorrows(e *queueEntry) {
	e.req.DecRef()
	if e.awaiting != e.req {
		e.awaiting.DecRef()
	}
}

func (c *Controller) updateBackpressure() {
	full := c.pending.isFull()
	if full == c.full {
		return
	}

	c.full = full
	c.hierarchy.SetControllerFull(c.name, full)

	if full {
		c.count(func(s *Stats) { s.QueueFull++ })
	} else {
		c.count(func(s *Stats) { s.QueueCleared++ })
	}

	c.invokeHook(HookPosBackpressure, nil, EventDetail{Full: full})
}

// AnnulRequest cancels the pending access of req. It returns false if the
// controller holds no entry for req.
func (c *Controller) AnnulRequest(req *request.Request) bool {
	e := c.pending.find(func(e *queueEntry) bool {
		return e.req == req
	})
	if e == nil {
		return false
	}

	e.annulled = true
	c.repairChain(e)
	c.releaseBorrows(e)
	c.pending.free(e)

	c.count(func(s *Stats) { s.Annulled++ })
	c.updateBackpressure()
	c.invokeHook(HookPosAnnul, req, EventDetail{Latency: c.cycle - e.admitCycle})

	return true
}

// repairChain removes e from its dependency chain. When e heads the chain,
// its successor inherits the remaining latency or the in-flight request.
func (c *Controller) repairChain(e *queueEntry) {
	if pred := c.pending.predecessor(e); pred != nil {
		pred.depends = e.depends
		return
	}

	next, ok := e.depends.get()
	if !ok {
		return
	}

	succ := c.pending.at(next)

	switch e.state {
	case stateTimed:
		succ.state = stateTimed
		succ.cycles = max(e.cycles, 1)
	case stateDispatched:
		succ.state = stateDispatched
		succ.cycles = 0
		succ.awaiting = e.awaiting
		succ.awaiting.IncRef()
	default:
		succ.state = stateTimed
		succ.cycles = 1
	}
}

// PrintState dumps the pending queue and the instruction line buffer.
func (c *Controller) PrintState(w io.Writer) {
	fmt.Fprintf(w, "---CPU-Controller: %s\n", c.name)
	fmt.Fprintf(w, "cycle[%d] full[%t]\n", c.cycle, c.full)
	c.pending.print(w)
	c.icacheBuffer.print(w)
	fmt.Fprintf(w, "---End CPU-Controller: %s\n", c.name)
}

// PrintTopology lists the interconnects the controller is attached to.
func (c *Controller) PrintTopology(w io.Writer) {
	fmt.Fprintf(w, "CPU-Controller: %s\n", c.name)
	fmt.Fprintf(w, "\tconnected to:\n")
	fmt.Fprintf(w, "\t\tL1-i: %s\n", endpointName(c.icacheLink))
	fmt.Fprintf(w, "\t\tL1-d: %s\n", endpointName(c.dcacheLink))
}

func endpointName(ic interconnect.Interconnect) string {
	if ic == nil {
		return "None"
	}

	return ic.Name()
}
