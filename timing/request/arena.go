package request

import (
	"errors"
	"fmt"
	"io"
)

// DefaultLowWatermark is the fraction of free slots under which the arena is
// considered low.
const DefaultLowWatermark = 0.1

var (
	// ErrArenaExhausted is returned by Acquire when every slot is in use.
	ErrArenaExhausted = errors.New("request arena exhausted")
	// ErrRequestReferenced is returned when releasing a borrowed request.
	ErrRequestReferenced = errors.New("request is still referenced")
	// ErrRequestNotInUse is returned when releasing a free or foreign request.
	ErrRequestNotInUse = errors.New("request is not in use")
)

const noSlot = -1

// Arena owns a fixed number of Requests. Requests are handed out from a free
// list and only come back once nothing borrows them.
type Arena struct {
	slots    []Request
	freeHead int
	numFree  int

	lowWatermark float64
}

// NewArena creates an arena with the given number of requests.
func NewArena(capacity int) *Arena {
	a := &Arena{
		slots:        make([]Request, capacity),
		lowWatermark: DefaultLowWatermark,
	}

	a.Reset()

	return a
}

// Reset returns every slot to the free list.
func (a *Arena) Reset() {
	a.freeHead = noSlot
	a.numFree = 0

	for i := len(a.slots) - 1; i >= 0; i-- {
		r := &a.slots[i]
		*r = Request{slot: i, params: Params{Op: OpNone}}
		a.pushFree(r)
	}
}

func (a *Arena) pushFree(r *Request) {
	r.inUse = false
	r.nextFree = a.freeHead
	a.freeHead = r.slot
	a.numFree++
}

// Acquire takes a request from the free list. The returned request must be
// initialized with Init before use.
func (a *Arena) Acquire() (*Request, error) {
	if a.freeHead == noSlot {
		return nil, ErrArenaExhausted
	}

	r := &a.slots[a.freeHead]
	a.freeHead = r.nextFree
	a.numFree--

	r.inUse = true
	r.nextFree = noSlot
	r.refCount = 0

	return r, nil
}

// Release returns a request to the free list.
func (a *Arena) Release(r *Request) error {
	if !a.owns(r) || !r.inUse {
		return fmt.Errorf("release %s: %w", r.id, ErrRequestNotInUse)
	}

	if r.refCount != 0 {
		return fmt.Errorf("release %s with %d refs: %w",
			r.id, r.refCount, ErrRequestReferenced)
	}

	r.params.Op = OpNone
	a.pushFree(r)

	return nil
}

func (a *Arena) owns(r *Request) bool {
	if r == nil || r.slot < 0 || r.slot >= len(a.slots) {
		return false
	}

	return &a.slots[r.slot] == r
}

// GarbageCollect reclaims every in-use request that has no borrower left. It
// returns the number of reclaimed requests.
func (a *Arena) GarbageCollect() int {
	reclaimed := 0

	for i := range a.slots {
		r := &a.slots[i]
		if r.inUse && r.refCount == 0 {
			r.params.Op = OpNone
			a.pushFree(r)
			reclaimed++
		}
	}

	return reclaimed
}

// Capacity returns the total number of slots.
func (a *Arena) Capacity() int {
	return len(a.slots)
}

// Free returns the number of free slots.
func (a *Arena) Free() int {
	return a.numFree
}

// InUse returns the number of acquired slots.
func (a *Arena) InUse() int {
	return len(a.slots) - a.numFree
}

// IsLow reports whether the free slots dropped below the low watermark.
func (a *Arena) IsLow() bool {
	return float64(a.numFree) < float64(len(a.slots))*a.lowWatermark
}

// Print dumps the used requests of the arena.
func (a *Arena) Print(w io.Writer) {
	fmt.Fprintf(w, "Request arena: size[%d]\n", len(a.slots))
	fmt.Fprintf(w, "used requests: count[%d]\n", a.InUse())

	for i := range a.slots {
		if a.slots[i].inUse {
			fmt.Fprintf(w, "\t%s\n", a.slots[i].String())
		}
	}

	fmt.Fprintf(w, "free requests: count[%d]\n", a.numFree)
}
