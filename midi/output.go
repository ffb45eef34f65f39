package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// Sender delivers events to the synth
type Sender interface {
	Send(e Event) error
}

// Output is a synth output port
type Output struct {
	name string
	send func(msg gomidi.Message) error
}

// OpenOutput opens an output port for sending
func OpenOutput(port drivers.Out) (*Output, error) {
	send, err := gomidi.SendTo(port)
	if err != nil {
		return nil, fmt.Errorf("open synth output %s: %w", port.String(), err)
	}
	return &Output{name: port.String(), send: send}, nil
}

func (o *Output) Name() string { return o.name }

func (o *Output) Send(e Event) error {
	msg := e.Message()
	if msg == nil {
		return nil
	}
	if err := o.send(msg); err != nil {
		return fmt.Errorf("send %s to %s: %w", e, o.name, err)
	}
	return nil
}

// SenderFunc adapts a function to the Sender interface
type SenderFunc func(e Event) error

func (f SenderFunc) Send(e Event) error { return f(e) }
