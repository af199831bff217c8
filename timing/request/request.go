// Package request models in-flight memory accesses and the arena that owns
// them.
package request

import (
	"fmt"
	"io"
	"log"

	"github.com/rs/xid"
)

// OpType is the kind of memory operation a Request performs.
type OpType int

const (
	// OpRead reads a cache line.
	OpRead OpType = iota
	// OpWrite writes a cache line.
	OpWrite
	// OpUpdate updates a line that is already owned.
	OpUpdate
	// OpEvict notifies the other side of a line eviction.
	OpEvict
	// OpNone marks a request that has not been initialized.
	OpNone
)

func (o OpType) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpUpdate:
		return "update"
	case OpEvict:
		return "evict"
	default:
		return "none"
	}
}

// Params carries everything needed to issue a Request.
type Params struct {
	CoreID          uint8
	ThreadID        uint8
	PhysicalAddress uint64
	RobID           int
	IsInstruction   bool
	OwnerTimestamp  uint64
	Op              OpType
}

// Request is one memory access. Its identity fields are fixed between two
// calls to Init; borrowers only touch the reference count.
type Request struct {
	id     string
	params Params

	refCount int

	// Arena bookkeeping.
	slot     int
	inUse    bool
	nextFree int
}

// Init (re)initializes the request for a new access. The reference count is
// reset to zero.
func (r *Request) Init(p Params) {
	r.id = xid.New().String()
	r.params = p
	r.refCount = 0
}

// ID returns a unique identifier assigned at Init.
func (r *Request) ID() string { return r.id }

// CoreID returns the issuing core.
func (r *Request) CoreID() uint8 { return r.params.CoreID }

// ThreadID returns the issuing hardware thread.
func (r *Request) ThreadID() uint8 { return r.params.ThreadID }

// PhysicalAddress returns the accessed physical address.
func (r *Request) PhysicalAddress() uint64 { return r.params.PhysicalAddress }

// RobID returns the reorder-buffer slot of the owning instruction.
func (r *Request) RobID() int { return r.params.RobID }

// IsInstruction is true for instruction fetches.
func (r *Request) IsInstruction() bool { return r.params.IsInstruction }

// OwnerTimestamp returns the timestamp of the owning instruction.
func (r *Request) OwnerTimestamp() uint64 { return r.params.OwnerTimestamp }

// Op returns the operation kind.
func (r *Request) Op() OpType { return r.params.Op }

// LineAddress returns the physical address shifted right by lineBits.
func (r *Request) LineAddress(lineBits uint) uint64 {
	return r.params.PhysicalAddress >> lineBits
}

// IncRef registers a new borrower.
func (r *Request) IncRef() {
	r.refCount++
}

// DecRef drops a borrower.
func (r *Request) DecRef() {
	if r.refCount == 0 {
		log.Panicf("request %s: reference count below zero", r.id)
	}

	r.refCount--
}

// RefCount returns the number of active borrowers.
func (r *Request) RefCount() int {
	return r.refCount
}

func (r *Request) String() string {
	kind := "data"
	if r.params.IsInstruction {
		kind = "inst"
	}

	return fmt.Sprintf(
		"Request{id:%s core:%d thread:%d addr:0x%x rob:%d %s %s ts:%d refs:%d}",
		r.id, r.params.CoreID, r.params.ThreadID, r.params.PhysicalAddress,
		r.params.RobID, kind, r.params.Op, r.params.OwnerTimestamp, r.refCount)
}

// Print writes a one-line description of the request.
func (r *Request) Print(w io.Writer) {
	fmt.Fprintln(w, r.String())
}
