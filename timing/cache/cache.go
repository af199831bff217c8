// Package cache models the first-level caches that sit on the far side of a
// CPU controller's interconnects.
//
// Only tags are tracked. The akita directory decides hits, misses and victims;
// no data is stored.
package cache

import (
	"fmt"
	"io"
	"log"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/memsim/timing/interconnect"
	"github.com/sarchlab/memsim/timing/request"
)

// Config holds cache configuration parameters.
type Config struct {
	// Size in bytes
	Size int `json:"size"`
	// Associativity (number of ways)
	Associativity int `json:"associativity"`
	// BlockSize in bytes (cache line size)
	BlockSize int `json:"block_size"`
	// HitLatency in cycles
	HitLatency uint64 `json:"hit_latency"`
	// MissLatency in cycles (includes the next level's access time)
	MissLatency uint64 `json:"miss_latency"`
}

// NumSets returns the number of sets the configuration describes.
func (c Config) NumSets() int {
	return c.Size / (c.Associativity * c.BlockSize)
}

// DefaultL1IConfig returns default configuration for L1 instruction cache.
// Based on Apple M2 specifications:
// - 192KB per performance core (6-way, 64B line)
func DefaultL1IConfig() Config {
	return Config{
		Size:          192 * 1024, // 192KB
		Associativity: 6,          // 6-way
		BlockSize:     64,         // 64B cache line
		HitLatency:    1,          // 1 cycle
		MissLatency:   12,         // ~12 cycles to L2
	}
}

// DefaultL1DConfig returns default configuration for L1 data cache.
// Based on Apple M2 specifications:
// - 128KB per performance core (8-way, 64B line)
// - 3-cycle load-to-use latency
func DefaultL1DConfig() Config {
	return Config{
		Size:          128 * 1024, // 128KB
		Associativity: 8,          // 8-way
		BlockSize:     64,         // 64B cache line
		HitLatency:    3,          // 3-cycle load-to-use latency (M2)
		MissLatency:   12,         // ~12 cycles to L2
	}
}

// Statistics holds cache performance statistics.
type Statistics struct {
	Reads        uint64
	Writes       uint64
	Hits         uint64
	Misses       uint64
	Fills        uint64
	Evictions    uint64
	Writebacks   uint64
	EvictNotices uint64
	Stray        uint64
}

// RequestSource lends the requests a cache needs for the notices it
// originates. *request.Arena satisfies it.
type RequestSource interface {
	Acquire() (*request.Request, error)
	Release(r *request.Request) error
}

type fill struct {
	req    *request.Request
	cycles uint64
}

// Controller is a tag-only cache attached to one interconnect.
type Controller struct {
	name   string
	config Config

	// Akita cache directory for tag/state management
	directory *akitacache.DirectoryImpl

	link     interconnect.Interconnect
	messages interconnect.MessageSource
	requests RequestSource

	inflight []fill
	stats    Statistics
}

// Option configures a Controller.
type Option func(*Controller)

// WithRequestSource lets the cache announce dirty evictions upward. Without
// one, evictions are only counted.
func WithRequestSource(rs RequestSource) Option {
	return func(c *Controller) {
		c.requests = rs
	}
}

// New creates a new cache with the given configuration. Messages for the
// completions it sends are leased from messages.
func New(
	name string,
	config Config,
	messages interconnect.MessageSource,
	opts ...Option,
) *Controller {
	c := &Controller{
		name:   name,
		config: config,
		directory: akitacache.NewDirectory(
			config.NumSets(),
			config.Associativity,
			config.BlockSize,
			akitacache.NewLRUVictimFinder(),
		),
		messages: messages,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name returns the name of the cache.
func (c *Controller) Name() string {
	return c.name
}

// Config returns the cache configuration.
func (c *Controller) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *Controller) Stats() Statistics {
	return c.stats
}

// Outstanding returns the number of fills that have not completed yet.
func (c *Controller) Outstanding() int {
	return len(c.inflight)
}

// RegisterInterconnect attaches the link that completions travel back on.
func (c *Controller) RegisterInterconnect(ic interconnect.Interconnect) {
	c.link = ic
}

func (c *Controller) blockAddr(addr uint64) uint64 {
	bs := uint64(c.config.BlockSize)
	return addr / bs * bs
}

func (c *Controller) lookup(addr uint64) *akitacache.Block {
	block := c.directory.Lookup(0, c.blockAddr(addr))
	if block == nil || !block.IsValid {
		return nil
	}

	return block
}

func isWrite(op request.OpType) bool {
	return op == request.OpWrite || op == request.OpUpdate
}

// AccessFastPath probes the tags. A hit returns the hit latency; a miss
// returns interconnect.AccessPending and leaves the tags untouched.
func (c *Controller) AccessFastPath(
	_ interconnect.Interconnect,
	req *request.Request,
) int {
	if isWrite(req.Op()) {
		c.stats.Writes++
	} else {
		c.stats.Reads++
	}

	block := c.lookup(req.PhysicalAddress())
	if block == nil {
		c.stats.Misses++
		return interconnect.AccessPending
	}

	c.stats.Hits++
	c.directory.Visit(block) // Update LRU

	if isWrite(req.Op()) {
		block.IsDirty = true
	}

	return int(c.config.HitLatency)
}

// HandleInterconnectCallback accepts a forwarded request, installs its line
// and schedules the completion after the miss latency.
func (c *Controller) HandleInterconnectCallback(msg *interconnect.Message) bool {
	req := msg.Request

	if req.Op() == request.OpEvict || req.Op() == request.OpNone {
		log.Printf("%s: unexpected %s request from %s", c.name, req.Op(), msg.Sender.Name())
		c.stats.Stray++

		return true
	}

	req.IncRef()

	block := c.lookup(req.PhysicalAddress())
	if block == nil {
		block = c.install(req)
	}

	if isWrite(req.Op()) {
		block.IsDirty = true
	}

	c.directory.Visit(block)
	c.stats.Fills++

	c.inflight = append(c.inflight, fill{
		req:    req,
		cycles: max(c.config.MissLatency, 1),
	})

	return true
}

func (c *Controller) install(req *request.Request) *akitacache.Block {
	blockAddr := c.blockAddr(req.PhysicalAddress())

	victim := c.directory.FindVictim(blockAddr)
	if victim == nil {
		log.Panicf("%s: no victim for address 0x%x", c.name, blockAddr)
	}

	if victim.IsValid {
		c.stats.Evictions++

		if victim.IsDirty {
			c.stats.Writebacks++
			c.notifyEviction(req.CoreID(), victim.Tag)
		}
	}

	// Tag stores the block-aligned address.
	victim.Tag = blockAddr
	victim.IsValid = true
	victim.IsDirty = false

	return victim
}

func (c *Controller) notifyEviction(coreID uint8, addr uint64) {
	if c.requests == nil || c.link == nil {
		return
	}

	notice, err := c.requests.Acquire()
	if err != nil {
		log.Printf("%s: dropping eviction notice for 0x%x: %v", c.name, addr, err)
		return
	}

	notice.Init(request.Params{
		CoreID:          coreID,
		PhysicalAddress: addr,
		Op:              request.OpEvict,
	})

	c.send(notice, false)
	c.stats.EvictNotices++

	if err := c.requests.Release(notice); err != nil {
		log.Panicf("%s: %v", c.name, err)
	}
}

func (c *Controller) send(req *request.Request, hasData bool) {
	msg, err := c.messages.AcquireMessage()
	if err != nil {
		log.Panicf("%s: %v", c.name, err)
	}

	msg.Sender = c
	msg.Request = req
	msg.HasData = hasData

	accepted := c.link.ForwardRequest(msg)

	c.messages.ReleaseMessage(msg)

	if !accepted {
		log.Panicf("%s: %s rejected a message", c.name, c.link.Name())
	}
}

// Clock advances every outstanding fill and sends the completions that are
// due, oldest first.
func (c *Controller) Clock() {
	var due []*request.Request

	kept := c.inflight[:0]
	for _, f := range c.inflight {
		f.cycles--
		if f.cycles == 0 {
			due = append(due, f.req)
			continue
		}

		kept = append(kept, f)
	}
	c.inflight = kept

	// Completions may cause new requests to arrive; they wait for the next
	// clock.
	for _, req := range due {
		c.send(req, true)
		req.DecRef()
	}
}

// Invalidate marks a cache line as invalid.
func (c *Controller) Invalidate(addr uint64) {
	block := c.lookup(addr)
	if block != nil {
		block.IsValid = false
		block.IsDirty = false
	}
}

// Flush counts a writeback for every dirty block and invalidates all blocks.
func (c *Controller) Flush() {
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid && block.IsDirty {
				c.stats.Writebacks++
			}
			block.IsValid = false
			block.IsDirty = false
		}
	}
}

// Reset invalidates all cache lines, drops outstanding fills and clears the
// statistics.
func (c *Controller) Reset() {
	c.directory.Reset()

	for _, f := range c.inflight {
		f.req.DecRef()
	}

	c.inflight = nil
	c.stats = Statistics{}
}

// PrintState dumps the outstanding fills.
func (c *Controller) PrintState(w io.Writer) {
	fmt.Fprintf(w, "---Cache: %s\n", c.name)
	fmt.Fprintf(w, "Fills: count[%d]\n", len(c.inflight))

	for _, f := range c.inflight {
		fmt.Fprintf(w, "\tcycles:%d %s\n", f.cycles, f.req)
	}

	fmt.Fprintf(w, "---End Cache: %s\n", c.name)
}

// PrintTopology prints the cache geometry and its link.
func (c *Controller) PrintTopology(w io.Writer) {
	link := "None"
	if c.link != nil {
		link = c.link.Name()
	}

	fmt.Fprintf(w, "Cache: %s sets[%d] ways[%d] block[%d]\n",
		c.name, c.config.NumSets(), c.config.Associativity, c.config.BlockSize)
	fmt.Fprintf(w, "\tconnected to: %s\n", link)
}
