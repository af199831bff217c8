// Package interconnect defines the messages and the links that carry
// requests between cache controllers.
package interconnect

import (
	"errors"
	"fmt"
	"log"

	"github.com/sarchlab/memsim/timing/request"
)

// ErrNoFreeMessage is returned when the message pool is exhausted.
var ErrNoFreeMessage = errors.New("no free message in pool")

// Endpoint is anything that can appear as the sender of a message.
type Endpoint interface {
	Name() string
}

// Message carries a request across an interconnect. Messages are leased from
// a pool for the duration of a single synchronous delivery.
type Message struct {
	Sender  Endpoint
	Request *request.Request
	HasData bool
	Arg     any

	leased bool
}

func (m *Message) String() string {
	sender := "none"
	if m.Sender != nil {
		sender = m.Sender.Name()
	}

	return fmt.Sprintf("Message{sender:%s data:%t %v}", sender, m.HasData, m.Request)
}

// MessageSource hands out messages for a single delivery.
type MessageSource interface {
	AcquireMessage() (*Message, error)
	ReleaseMessage(msg *Message)
}

// MessagePool is a fixed-size MessageSource.
type MessagePool struct {
	messages []Message
	free     []*Message
}

// NewMessagePool creates a pool with the given number of messages.
func NewMessagePool(size int) *MessagePool {
	p := &MessagePool{
		messages: make([]Message, size),
		free:     make([]*Message, 0, size),
	}

	for i := size - 1; i >= 0; i-- {
		p.free = append(p.free, &p.messages[i])
	}

	return p
}

// AcquireMessage leases a cleared message.
func (p *MessagePool) AcquireMessage() (*Message, error) {
	if len(p.free) == 0 {
		return nil, ErrNoFreeMessage
	}

	msg := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	msg.leased = true

	return msg, nil
}

// ReleaseMessage returns a message to the pool.
func (p *MessagePool) ReleaseMessage(msg *Message) {
	if !msg.leased {
		log.Panicf("releasing a message that is not leased: %s", msg)
	}

	*msg = Message{}
	p.free = append(p.free, msg)
}

// Free returns the number of messages that can be leased.
func (p *MessagePool) Free() int {
	return len(p.free)
}

// Size returns the total number of messages.
func (p *MessagePool) Size() int {
	return len(p.messages)
}
