package interconnect

import (
	"fmt"
	"io"
	"log"

	"github.com/sarchlab/memsim/timing/request"
)

// P2P connects exactly two controllers and adds no latency.
type P2P struct {
	name        string
	messages    MessageSource
	controllers [2]Controller
}

// NewP2P creates an unconnected point-to-point interconnect.
func NewP2P(name string, messages MessageSource) *P2P {
	return &P2P{
		name:     name,
		messages: messages,
	}
}

// Name returns the name of the interconnect.
func (p *P2P) Name() string {
	return p.name
}

// RegisterController attaches a controller. Only two can be attached.
func (p *P2P) RegisterController(c Controller) {
	for i := range p.controllers {
		if p.controllers[i] == nil {
			p.controllers[i] = c
			return
		}
	}

	log.Panicf("%s: already has two controllers, cannot register %s",
		p.name, c.Name())
}

// Controllers returns the attached controllers; unset slots are nil.
func (p *P2P) Controllers() [2]Controller {
	return p.controllers
}

func (p *P2P) other(sender Endpoint) Controller {
	switch {
	case p.controllers[0] != nil && Endpoint(p.controllers[0]) == sender:
		return p.controllers[1]
	case p.controllers[1] != nil && Endpoint(p.controllers[1]) == sender:
		return p.controllers[0]
	}

	log.Panicf("%s: sender is not connected", p.name)

	return nil
}

// AccessFastPath forwards the probe to the controller on the other side.
func (p *P2P) AccessFastPath(from Controller, req *request.Request) int {
	receiver := p.other(from)

	return receiver.AccessFastPath(p, req)
}

// ForwardRequest re-wraps the message and delivers it to the other side.
func (p *P2P) ForwardRequest(msg *Message) bool {
	receiver := p.other(msg.Sender)

	fwd, err := p.messages.AcquireMessage()
	if err != nil {
		log.Panicf("%s: %v", p.name, err)
	}

	fwd.Sender = p
	fwd.Request = msg.Request
	fwd.HasData = msg.HasData
	fwd.Arg = msg.Arg

	accepted := receiver.HandleInterconnectCallback(fwd)

	p.messages.ReleaseMessage(fwd)

	return accepted
}

// SendRequest is admission control for contended interconnects. A
// point-to-point link has no contention to model.
func (p *P2P) SendRequest(
	sender Controller,
	req *request.Request,
	hasData bool,
) bool {
	log.Panicf("%s: SendRequest is not supported by point-to-point links", p.name)

	return false
}

// PrintTopology lists the attached controllers.
func (p *P2P) PrintTopology(w io.Writer) {
	fmt.Fprintf(w, "Interconnect: %s\n", p.name)
	fmt.Fprintf(w, "\tconnected to:\n")

	for i, c := range p.controllers {
		if c == nil {
			fmt.Fprintf(w, "\t\tcontroller-%d: None\n", i+1)
			continue
		}

		fmt.Fprintf(w, "\t\tcontroller-%d: %s\n", i+1, c.Name())
	}
}
