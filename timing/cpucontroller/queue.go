package cpucontroller

import (
	"fmt"
	"io"
	"log"

	"github.com/sarchlab/memsim/timing/request"
)

// link is an optional entry index.
type link struct {
	index int
	valid bool
}

var noLink = link{}

func linkTo(i int) link {
	return link{index: i, valid: true}
}

func (l link) get() (int, bool) {
	return l.index, l.valid
}

func (l link) String() string {
	if !l.valid {
		return "none"
	}

	return fmt.Sprintf("%d", l.index)
}

// entryState tells how a pending entry makes progress.
type entryState int

const (
	// stateTimed entries count cycles down to completion.
	stateTimed entryState = iota
	// stateDispatched entries wait for a completion message.
	stateDispatched
	// stateBlocked entries wait for the entry ahead of them in the chain.
	stateBlocked
)

func (s entryState) String() string {
	switch s {
	case stateTimed:
		return "timed"
	case stateDispatched:
		return "dispatched"
	case stateBlocked:
		return "blocked"
	}

	return "unknown"
}

type queueEntry struct {
	idx int
	gen uint64

	req *request.Request

	// awaiting is the request whose completion message finishes this entry.
	// It is req unless the entry took over the in-flight request of an
	// annulled chain head.
	awaiting *request.Request

	// cycles is the countdown of a timed entry; -1 while blocked.
	cycles  int
	state   entryState
	depends link

	annulled   bool
	admitCycle uint64

	live       bool
	prev, next link
}

func (e *queueEntry) String() string {
	return fmt.Sprintf(
		"[%d] %s cycles:%d depends:%s annulled:%t %s",
		e.idx, e.state, e.cycles, e.depends, e.annulled, e.req)
}

// handle identifies one allocation of an entry slot.
type handle struct {
	idx int
	gen uint64
}

// pendingQueue is a fixed-capacity set of entries addressed by index. Free
// slots form a singly linked list; live slots form a doubly linked list in
// admission order.
type pendingQueue struct {
	entries []queueEntry

	freeHead           link
	usedHead, usedTail link
	count              int

	nextGen uint64
}

func newPendingQueue(capacity int) *pendingQueue {
	q := &pendingQueue{
		entries: make([]queueEntry, capacity),
	}

	for i := capacity - 1; i >= 0; i-- {
		q.entries[i].idx = i
		q.entries[i].next = q.freeHead
		q.freeHead = linkTo(i)
	}

	return q
}

func (q *pendingQueue) capacity() int {
	return len(q.entries)
}

func (q *pendingQueue) size() int {
	return q.count
}

func (q *pendingQueue) isFull() bool {
	return q.count >= len(q.entries)
}

func (q *pendingQueue) at(i int) *queueEntry {
	return &q.entries[i]
}

// alloc takes a free slot, appends it to the live list and returns it reset.
// It returns nil when the queue is full.
func (q *pendingQueue) alloc() *queueEntry {
	i, ok := q.freeHead.get()
	if !ok {
		return nil
	}

	e := &q.entries[i]
	q.freeHead = e.next

	q.nextGen++
	*e = queueEntry{
		idx:     i,
		gen:     q.nextGen,
		depends: noLink,
		live:    true,
		prev:    q.usedTail,
	}

	if t, ok := q.usedTail.get(); ok {
		q.entries[t].next = linkTo(i)
	} else {
		q.usedHead = linkTo(i)
	}

	q.usedTail = linkTo(i)
	q.count++

	return e
}

// free unlinks a live entry and returns its slot. The payload is left in
// place until the slot is allocated again.
func (q *pendingQueue) free(e *queueEntry) {
	if !e.live {
		return
	}

	if p, ok := e.prev.get(); ok {
		q.entries[p].next = e.next
	} else {
		q.usedHead = e.next
	}

	if n, ok := e.next.get(); ok {
		q.entries[n].prev = e.prev
	} else {
		q.usedTail = e.prev
	}

	e.live = false
	e.prev = noLink
	e.next = q.freeHead
	q.freeHead = linkTo(e.idx)
	q.count--
}

// handles snapshots the live entries in admission order.
func (q *pendingQueue) handles() []handle {
	hs := make([]handle, 0, q.count)

	for l := q.usedHead; l.valid; l = q.entries[l.index].next {
		e := &q.entries[l.index]
		hs = append(hs, handle{idx: e.idx, gen: e.gen})
	}

	return hs
}

// resolve returns the entry behind h, or nil if it has been freed or
// reallocated since the handle was taken.
func (q *pendingQueue) resolve(h handle) *queueEntry {
	e := &q.entries[h.idx]
	if !e.live || e.gen != h.gen {
		return nil
	}

	return e
}

// find returns the first live entry, in admission order, that satisfies fn.
func (q *pendingQueue) find(fn func(e *queueEntry) bool) *queueEntry {
	for l := q.usedHead; l.valid; l = q.entries[l.index].next {
		e := &q.entries[l.index]
		if fn(e) {
			return e
		}
	}

	return nil
}

// chainTail follows the dependency links from e to the last entry of the
// chain.
func (q *pendingQueue) chainTail(e *queueEntry) *queueEntry {
	steps := 0

	for {
		next, ok := e.depends.get()
		if !ok {
			return e
		}

		steps++
		if steps > len(q.entries) {
			log.Panic("dependency chain loops")
		}

		e = &q.entries[next]
	}
}

// predecessor returns the live entry whose dependency link points to e.
func (q *pendingQueue) predecessor(e *queueEntry) *queueEntry {
	return q.find(func(p *queueEntry) bool {
		i, ok := p.depends.get()
		return ok && i == e.idx
	})
}

func (q *pendingQueue) print(w io.Writer) {
	fmt.Fprintf(w, "Queue: count[%d] capacity[%d]\n", q.count, len(q.entries))

	for l := q.usedHead; l.valid; l = q.entries[l.index].next {
		fmt.Fprintf(w, "\t%s\n", q.entries[l.index].String())
	}
}
