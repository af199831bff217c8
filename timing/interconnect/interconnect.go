package interconnect

import (
	"io"

	"github.com/sarchlab/memsim/timing/request"
)

// AccessPending is the latency returned by AccessFastPath when the access was
// accepted and will complete asynchronously.
const AccessPending = -1

// Controller is a cache controller that can sit at either end of an
// interconnect.
type Controller interface {
	Endpoint

	// AccessFastPath probes the controller for a same-cycle answer. The source
	// is nil when the request comes from the owning pipeline. A return value
	// of 0 means the access is already resolved, a positive value is a fixed
	// latency in cycles, and AccessPending means completion is asynchronous.
	AccessFastPath(source Interconnect, req *request.Request) int

	// HandleInterconnectCallback delivers a message from an interconnect.
	HandleInterconnectCallback(msg *Message) bool
}

// Interconnect links controllers.
type Interconnect interface {
	Endpoint

	RegisterController(c Controller)
	AccessFastPath(from Controller, req *request.Request) int
	ForwardRequest(msg *Message) bool
	SendRequest(sender Controller, req *request.Request, hasData bool) bool
	PrintTopology(w io.Writer)
}
