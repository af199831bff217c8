// Package core provides a trace-driven core that feeds a CPU controller.
// It stands in for a full pipeline: it issues the accesses of a trace, honors
// backpressure and a reorder window, and squashes speculative accesses.
package core

import (
	"log"

	"github.com/sarchlab/memsim/loader"
	"github.com/sarchlab/memsim/timing/interconnect"
	"github.com/sarchlab/memsim/timing/request"
)

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Issued is the number of accesses handed to the controller.
	Issued uint64
	// Completed is the number of accesses that finished.
	Completed uint64
	// FastPath is the number of accesses that finished at issue.
	FastPath uint64
	// Stalls is the number of cycles issue stopped on backpressure or on an
	// empty request arena.
	Stalls uint64
	// ROBStalls is the number of cycles issue stopped on a full window.
	ROBStalls uint64
	// Squashed is the number of accesses cancelled by squash records.
	Squashed uint64
}

// Controller is the part of a CPU controller the core uses.
type Controller interface {
	Name() string
	AccessFastPath(source interconnect.Interconnect, req *request.Request) int
	AnnulRequest(req *request.Request) bool
}

// Backpressure reports the flag a controller raises while its pending queue
// is full. *hierarchy.Hierarchy satisfies it.
type Backpressure interface {
	IsControllerFull(name string) bool
}

// RequestSource hands out requests. *request.Arena satisfies it.
type RequestSource interface {
	Acquire() (*request.Request, error)
	Release(r *request.Request) error
	Free() int
}

type inflight struct {
	req       *request.Request
	robID     int
	timestamp uint64
}

// Core replays a trace against one CPU controller.
type Core struct {
	id       uint8
	ctrl     Controller
	requests RequestSource
	flags    Backpressure
	trace    *loader.Trace

	issueWidth int
	robSize    int

	next      int
	nextRobID int
	window    []inflight
	fetches   int

	stats Stats
}

// Option configures a Core.
type Option func(*Core)

// WithIssueWidth sets the number of records processed per cycle.
func WithIssueWidth(n int) Option {
	return func(c *Core) {
		c.issueWidth = n
	}
}

// WithROBSize bounds the outstanding data accesses.
func WithROBSize(n int) Option {
	return func(c *Core) {
		c.robSize = n
	}
}

// NewCore creates a core that replays trace through ctrl. Issue stops while
// flags reports ctrl as full.
func NewCore(
	id uint8,
	ctrl Controller,
	requests RequestSource,
	flags Backpressure,
	trace *loader.Trace,
	opts ...Option,
) *Core {
	c := &Core{
		id:         id,
		ctrl:       ctrl,
		requests:   requests,
		flags:      flags,
		trace:      trace,
		issueWidth: 1,
		robSize:    32,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ID returns the core ID.
func (c *Core) ID() uint8 {
	return c.id
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	return c.stats
}

// Outstanding returns the number of data accesses waiting for a wakeup.
func (c *Core) Outstanding() int {
	return len(c.window)
}

// Done returns true once the whole trace is issued and nothing is pending.
func (c *Core) Done() bool {
	return c.next >= len(c.trace.Records) && len(c.window) == 0 && c.fetches == 0
}

// Tick processes up to issue-width records.
func (c *Core) Tick() {
	c.stats.Cycles++

	for slot := 0; slot < c.issueWidth && c.next < len(c.trace.Records); slot++ {
		rec := c.trace.Records[c.next]

		if rec.Kind == loader.KindSquash {
			c.squash(rec.Count)
			c.next++

			continue
		}

		if c.flags.IsControllerFull(c.ctrl.Name()) {
			c.stats.Stalls++
			return
		}

		// Annulled accesses may still be held by a cache fill.
		if c.requests.Free() == 0 {
			c.stats.Stalls++
			return
		}

		if rec.Kind != loader.KindFetch && len(c.window) >= c.robSize {
			c.stats.ROBStalls++
			return
		}

		c.issue(rec)
		c.next++
	}
}

func opFor(kind loader.Kind) request.OpType {
	switch kind {
	case loader.KindWrite:
		return request.OpWrite
	case loader.KindUpdate:
		return request.OpUpdate
	default:
		return request.OpRead
	}
}

func (c *Core) issue(rec loader.Record) {
	req, err := c.requests.Acquire()
	if err != nil {
		log.Panicf("core %d: %v", c.id, err)
	}

	isFetch := rec.Kind == loader.KindFetch
	robID := -1

	if !isFetch {
		robID = c.nextRobID
		c.nextRobID++
	}

	req.Init(request.Params{
		CoreID:          c.id,
		ThreadID:        rec.Thread,
		PhysicalAddress: rec.Addr,
		RobID:           robID,
		IsInstruction:   isFetch,
		OwnerTimestamp:  c.stats.Cycles,
		Op:              opFor(rec.Kind),
	})

	c.stats.Issued++

	if c.ctrl.AccessFastPath(nil, req) == 0 {
		c.stats.FastPath++
		c.stats.Completed++

		if err := c.requests.Release(req); err != nil {
			log.Panicf("core %d: %v", c.id, err)
		}

		return
	}

	if isFetch {
		c.fetches++
		return
	}

	c.window = append(c.window, inflight{
		req:       req,
		robID:     robID,
		timestamp: c.stats.Cycles,
	})
}

// squash cancels the n youngest outstanding data accesses. Their requests
// are left to the arena's garbage collection since the controller may have
// handed them to another access.
func (c *Core) squash(n int) {
	for n > 0 && len(c.window) > 0 {
		last := c.window[len(c.window)-1]
		c.window = c.window[:len(c.window)-1]
		n--

		if c.ctrl.AnnulRequest(last.req) {
			c.stats.Squashed++
		}
	}
}

// InstructionWakeup records a completed fetch.
func (c *Core) InstructionWakeup(addr uint64) {
	if c.fetches == 0 {
		log.Printf("core %d: unexpected fetch wakeup for 0x%x", c.id, addr)
		return
	}

	c.fetches--
	c.stats.Completed++
}

// DataWakeup retires the access identified by robID and ownerTimestamp.
func (c *Core) DataWakeup(threadID uint8, robID int, ownerTimestamp, addr uint64) {
	for i, f := range c.window {
		if f.robID != robID || f.timestamp != ownerTimestamp {
			continue
		}

		c.window = append(c.window[:i], c.window[i+1:]...)
		c.stats.Completed++

		return
	}

	log.Printf("core %d: wakeup for unknown access rob[%d] thread[%d] addr[0x%x]",
		c.id, robID, threadID, addr)
}

// Reset rewinds the trace and clears all core state. Outstanding accesses
// are forgotten, not annulled.
func (c *Core) Reset() {
	c.next = 0
	c.nextRobID = 0
	c.window = nil
	c.fetches = 0
	c.stats = Stats{}
}
