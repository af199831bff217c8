// Package loader reads memory access traces.
//
// A trace is a text file with one record per line. Blank lines and anything
// after '#' are ignored.
//
//	I <addr> [thread]   instruction fetch
//	R <addr> [thread]   data read
//	W <addr> [thread]   data write
//	U <addr> [thread]   data update (read-modify-write)
//	X <count>           squash the <count> youngest outstanding data accesses
//
// Addresses are parsed with base prefix rules, so 0x1000 and 4096 are the
// same address.
package loader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Kind identifies a trace record.
type Kind uint8

const (
	// KindFetch is an instruction fetch.
	KindFetch Kind = iota
	// KindRead is a data read.
	KindRead
	// KindWrite is a data write.
	KindWrite
	// KindUpdate is a read-modify-write.
	KindUpdate
	// KindSquash cancels outstanding data accesses.
	KindSquash
)

var kindNames = map[string]Kind{
	"I": KindFetch,
	"R": KindRead,
	"W": KindWrite,
	"U": KindUpdate,
	"X": KindSquash,
}

// String returns the trace mnemonic of the kind.
func (k Kind) String() string {
	for name, kind := range kindNames {
		if kind == k {
			return name
		}
	}

	return "?"
}

// Record is one line of a trace.
type Record struct {
	// Kind is the record type.
	Kind Kind
	// Addr is the physical address of an access.
	Addr uint64
	// Thread is the hardware thread issuing a data access.
	Thread uint8
	// Count is the number of accesses a squash cancels.
	Count int
	// Line is the 1-based line number in the source.
	Line int
}

// Trace is a parsed access trace.
type Trace struct {
	// Name identifies the source of the trace.
	Name string
	// Records holds the records in file order.
	Records []Record
}

// Accesses returns the number of access records.
func (t *Trace) Accesses() int {
	n := 0
	for _, r := range t.Records {
		if r.Kind != KindSquash {
			n++
		}
	}

	return n
}

// Load reads and parses the trace at path.
func Load(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Parse(path, f)
}

// Parse reads a trace from r.
func Parse(name string, r io.Reader) (*Trace, error) {
	trace := &Trace{Name: name}

	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++

		text, _, _ := strings.Cut(scanner.Text(), "#")
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}

		rec, err := parseRecord(fields)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", name, lineNo, err)
		}

		rec.Line = lineNo
		trace.Records = append(trace.Records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}

	return trace, nil
}

func parseRecord(fields []string) (Record, error) {
	kind, ok := kindNames[strings.ToUpper(fields[0])]
	if !ok {
		return Record{}, fmt.Errorf("unknown record type %q", fields[0])
	}

	if kind == KindSquash {
		if len(fields) != 2 {
			return Record{}, fmt.Errorf("squash takes exactly one count")
		}

		count, err := strconv.Atoi(fields[1])
		if err != nil || count <= 0 {
			return Record{}, fmt.Errorf("invalid squash count %q", fields[1])
		}

		return Record{Kind: kind, Count: count}, nil
	}

	if len(fields) < 2 || len(fields) > 3 {
		return Record{}, fmt.Errorf("%s takes an address and an optional thread", fields[0])
	}

	addr, err := strconv.ParseUint(fields[1], 0, 64)
	if err != nil {
		return Record{}, fmt.Errorf("invalid address %q: %w", fields[1], err)
	}

	rec := Record{Kind: kind, Addr: addr}

	if len(fields) == 3 {
		thread, err := strconv.ParseUint(fields[2], 10, 8)
		if err != nil {
			return Record{}, fmt.Errorf("invalid thread %q: %w", fields[2], err)
		}

		rec.Thread = uint8(thread)
	}

	return rec, nil
}
