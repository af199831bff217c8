package cpucontroller

import (
	"fmt"
	"io"
)

// lineBuffer remembers the most recently fetched instruction lines. It is a
// plain FIFO: hits do not refresh an entry.
type lineBuffer struct {
	lines []uint64
	head  int
	count int
}

func newLineBuffer(capacity int) *lineBuffer {
	return &lineBuffer{lines: make([]uint64, capacity)}
}

func (b *lineBuffer) capacity() int {
	return len(b.lines)
}

func (b *lineBuffer) size() int {
	return b.count
}

func (b *lineBuffer) isFull() bool {
	return b.count == len(b.lines)
}

func (b *lineBuffer) contains(line uint64) bool {
	for i := 0; i < b.count; i++ {
		if b.lines[(b.head+i)%len(b.lines)] == line {
			return true
		}
	}

	return false
}

// push appends a line, dropping the oldest one first when the buffer is
// full. It reports whether a line was dropped.
func (b *lineBuffer) push(line uint64) (evicted bool) {
	if len(b.lines) == 0 {
		return false
	}

	if b.isFull() {
		b.head = (b.head + 1) % len(b.lines)
		b.count--
		evicted = true
	}

	b.lines[(b.head+b.count)%len(b.lines)] = line
	b.count++

	return evicted
}

// entries returns the buffered lines, oldest first.
func (b *lineBuffer) entries() []uint64 {
	out := make([]uint64, 0, b.count)
	for i := 0; i < b.count; i++ {
		out = append(out, b.lines[(b.head+i)%len(b.lines)])
	}

	return out
}

func (b *lineBuffer) print(w io.Writer) {
	fmt.Fprintf(w, "ICache Buffer: count[%d] capacity[%d]\n", b.count, len(b.lines))

	for _, line := range b.entries() {
		fmt.Fprintf(w, "\tline 0x%x\n", line)
	}
}
