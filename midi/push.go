package midi

import (
	"fmt"
	"sync/atomic"
	"time"

	"midipush/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

var ledSendCount uint64

// PushController handles a grid controller with the Push style note/CC layout
type PushController struct {
	id       string
	outPort  drivers.Out
	inPort   drivers.In
	send     func(msg gomidi.Message) error
	stopFunc func()

	msgChan chan Message
	dropped uint64
}

// NewPushController opens the ports and switches the device into user mode
func NewPushController(id string, inPort drivers.In, outPort drivers.Out) (*PushController, error) {
	p := &PushController{
		id:      id,
		inPort:  inPort,
		outPort: outPort,
		msgChan: make(chan Message, 256),
	}

	// Open output
	if outPort != nil {
		send, err := gomidi.SendTo(outPort)
		if err != nil {
			return nil, fmt.Errorf("open output: %w", err)
		}
		p.send = send

		// User mode, so pads and buttons are not interpreted by the host software layer
		// F0 47 7F 15 62 00 01 01 F7
		p.send(gomidi.SysEx([]byte{0x47, 0x7F, 0x15, 0x62, 0x00, 0x01, 0x01}))
	}

	// Open input
	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, func(msg gomidi.Message, timestampms int32) {
			p.forward(msg)
		})
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		p.stopFunc = stop
	}

	return p, nil
}

func (p *PushController) forward(msg gomidi.Message) {
	select {
	case p.msgChan <- Message{Source: SourcePads, Msg: msg, Time: time.Now()}:
	default:
		n := atomic.AddUint64(&p.dropped, 1)
		debug.LogEvery(50, "push", "input queue full, dropped=%d", n)
	}
}

func (p *PushController) ID() string {
	return p.id
}

func (p *PushController) Type() ControllerType {
	return ControllerPads
}

func (p *PushController) Messages() <-chan Message {
	return p.msgChan
}

// SetLEDBatch sends LED updates: pads via note-on velocity, selector rows via CC value
func (p *PushController) SetLEDBatch(updates []LEDUpdate) error {
	if p.send == nil || len(updates) == 0 {
		return nil
	}

	for _, u := range updates {
		if err := p.send(ledMessage(u)); err != nil {
			return fmt.Errorf("led %d,%d: %w", u.Row, u.Col, err)
		}
	}

	atomic.AddUint64(&ledSendCount, uint64(len(updates)))

	count := atomic.LoadUint64(&ledSendCount)
	if count%100 < uint64(len(updates)) {
		debug.Log("push-send", "batch count=%d (this batch=%d)", count, len(updates))
	}

	return nil
}

func ledMessage(u LEDUpdate) gomidi.Message {
	color := mapRGBToPalette(u.Color)
	switch u.Row {
	case RowUpper:
		return gomidi.ControlChange(0, uint8(CCUpper+u.Col), color)
	case RowLower:
		return gomidi.ControlChange(0, uint8(CCLower+u.Col), color)
	}
	return gomidi.NoteOn(u.Channel, PadID(u.Row, u.Col), color)
}

// mapRGBToPalette finds the nearest pad palette color for an RGB value
func mapRGBToPalette(rgb [3]uint8) uint8 {
	// Format: {velocity, R, G, B}
	palette := [][4]uint8{
		{0, 0, 0, 0},         // off
		{1, 30, 30, 30},      // dim white
		{3, 255, 255, 255},   // white
		{5, 255, 0, 0},       // red
		{7, 120, 0, 0},       // dim red
		{9, 255, 100, 0},     // orange
		{11, 120, 50, 0},     // dim orange
		{13, 255, 255, 0},    // yellow
		{15, 120, 120, 0},    // dim yellow
		{21, 0, 255, 0},      // green
		{23, 0, 100, 0},      // dim green
		{33, 0, 200, 200},    // cyan
		{45, 0, 80, 255},     // blue
		{47, 0, 30, 100},     // dim blue
		{49, 150, 0, 255},    // purple
		{53, 255, 0, 150},    // pink
		{60, 255, 150, 50},   // light orange
		{65, 150, 255, 100},  // lime
		{78, 100, 100, 255},  // light blue
		{95, 180, 60, 255},   // violet
		{122, 180, 180, 180}, // grey
	}

	bestMatch := uint8(0)
	bestDist := 1 << 30

	r, g, b := int(rgb[0]), int(rgb[1]), int(rgb[2])

	for _, c := range palette {
		pr, pg, pb := int(c[1]), int(c[2]), int(c[3])
		dist := (r-pr)*(r-pr) + (g-pg)*(g-pg) + (b-pb)*(b-pb)
		if dist < bestDist {
			bestDist = dist
			bestMatch = c[0]
		}
	}

	return bestMatch
}

func (p *PushController) Close() error {
	if p.send != nil {
		var updates []LEDUpdate
		for row := 0; row < GridRows; row++ {
			for col := 0; col < GridCols; col++ {
				updates = append(updates, LEDUpdate{Row: row, Col: col})
			}
		}
		for col := 0; col < SelectorN; col++ {
			updates = append(updates, LEDUpdate{Row: RowUpper, Col: col}, LEDUpdate{Row: RowLower, Col: col})
		}
		p.SetLEDBatch(updates)
	}
	if p.stopFunc != nil {
		p.stopFunc()
	}
	close(p.msgChan)
	return nil
}
