package datarecording

import (
	"log"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/memsim/timing/cpucontroller"
	"github.com/sarchlab/memsim/timing/request"
)

// Table names used by RequestTracer.
const (
	RequestTable      = "requests"
	BackpressureTable = "backpressure"
)

// RequestEntry is one finished or annulled access.
type RequestEntry struct {
	ID          string
	Controller  string
	Core        uint8
	Thread      uint8
	Op          string
	Instruction bool
	Address     uint64
	FinishCycle uint64
	Latency     uint64
	Annulled    bool
}

// BackpressureEntry is one backpressure transition.
type BackpressureEntry struct {
	Controller string
	Cycle      uint64
	Full       bool
}

// RequestTracer is a hook that records what CPU controllers do with their
// accesses.
type RequestTracer struct {
	recorder DataRecorder
}

// NewRequestTracer creates the tracer tables in recorder.
func NewRequestTracer(recorder DataRecorder) (*RequestTracer, error) {
	if err := recorder.CreateTable(RequestTable, RequestEntry{}); err != nil {
		return nil, err
	}

	if err := recorder.CreateTable(BackpressureTable, BackpressureEntry{}); err != nil {
		return nil, err
	}

	return &RequestTracer{recorder: recorder}, nil
}

// Func records the hook context.
func (t *RequestTracer) Func(ctx sim.HookCtx) {
	detail, ok := ctx.Detail.(cpucontroller.EventDetail)
	if !ok {
		return
	}

	var err error

	switch ctx.Pos {
	case cpucontroller.HookPosFinalize:
		err = t.recordRequest(ctx.Item, detail, false)
	case cpucontroller.HookPosAnnul:
		err = t.recordRequest(ctx.Item, detail, true)
	case cpucontroller.HookPosBackpressure:
		err = t.recorder.InsertData(BackpressureTable, BackpressureEntry{
			Controller: detail.Controller,
			Cycle:      detail.Cycle,
			Full:       detail.Full,
		})
	}

	if err != nil {
		log.Printf("failed to record %s: %v", ctx.Pos.Name, err)
	}
}

func (t *RequestTracer) recordRequest(
	item any,
	detail cpucontroller.EventDetail,
	annulled bool,
) error {
	req, ok := item.(*request.Request)
	if !ok {
		return nil
	}

	return t.recorder.InsertData(RequestTable, RequestEntry{
		ID:          req.ID(),
		Controller:  detail.Controller,
		Core:        req.CoreID(),
		Thread:      req.ThreadID(),
		Op:          req.Op().String(),
		Instruction: req.IsInstruction(),
		Address:     req.PhysicalAddress(),
		FinishCycle: detail.Cycle,
		Latency:     detail.Latency,
		Annulled:    annulled,
	})
}
