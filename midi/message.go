package midi

import (
	"fmt"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// Source identifies which input stream a message arrived on
type Source uint8

const (
	SourcePads Source = iota // grid controller (pads and buttons)
	SourceKeys               // external keyboard
	SourceUI                 // synthetic input from the terminal UI
	NumSources
)

func (s Source) String() string {
	switch s {
	case SourcePads:
		return "pads"
	case SourceKeys:
		return "keys"
	case SourceUI:
		return "ui"
	}
	return fmt.Sprintf("source(%d)", s)
}

// Message is an already-framed message tagged with its source
type Message struct {
	Source Source
	Msg    gomidi.Message
	Time   time.Time
}

// Dump formats a message as "0xSS: d d" (status in hex, data bytes in decimal)
func Dump(msg gomidi.Message) string {
	b := msg.Bytes()
	if len(b) == 0 {
		return ""
	}
	var out strings.Builder
	fmt.Fprintf(&out, "0x%x:", b[0])
	for _, d := range b[1:] {
		fmt.Fprintf(&out, " %d", d)
	}
	return out.String()
}
