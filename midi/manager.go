package midi

import (
	"context"
	"strings"
	"sync"
	"time"

	"midipush/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

// DeviceEvent is emitted when controllers connect/disconnect
type DeviceEvent struct {
	Type       DeviceEventType
	Controller Controller
	ID         string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

// PortMatch names the substrings used to recognise ports
type PortMatch struct {
	Pads     string
	Keyboard string
}

// DeviceManager handles hot-plug detection of MIDI controllers
type DeviceManager struct {
	controllers map[string]Controller
	mu          sync.RWMutex
	events      chan DeviceEvent
	pollRate    time.Duration
	match       PortMatch
}

// NewDeviceManager creates a new device manager
func NewDeviceManager(match PortMatch) *DeviceManager {
	return &DeviceManager{
		controllers: make(map[string]Controller),
		events:      make(chan DeviceEvent, 16),
		pollRate:    time.Second,
		match:       match,
	}
}

// Events returns a channel of device connect/disconnect events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Controllers returns a snapshot of connected controllers
func (dm *DeviceManager) Controllers() map[string]Controller {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	copy := make(map[string]Controller, len(dm.controllers))
	for k, v := range dm.controllers {
		copy[k] = v
	}
	return copy
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	// Initial scan
	dm.scan()

	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			close(dm.events)
			return
		case <-ticker.C:
			dm.scan()
		}
	}
}

// ListPorts returns port names, giving up after a timeout (CoreMIDI can hang)
func ListPorts(timeout time.Duration) (ins []drivers.In, outs []drivers.Out, ok bool) {
	type portsResult struct {
		inPorts  []drivers.In
		outPorts []drivers.Out
	}

	ch := make(chan portsResult, 1)
	go func() {
		ch <- portsResult{inPorts: gomidi.GetInPorts(), outPorts: gomidi.GetOutPorts()}
	}()

	select {
	case result := <-ch:
		return result.inPorts, result.outPorts, true
	case <-time.After(timeout):
		return nil, nil, false
	}
}

// FindOutPort returns the first output port whose name contains match
func FindOutPort(match string) drivers.Out {
	_, outs, ok := ListPorts(3 * time.Second)
	if !ok {
		return nil
	}
	for _, p := range outs {
		if MatchPort(p.String(), match) {
			return p
		}
	}
	return nil
}

// MatchPort reports whether a port name contains match, ignoring case
func MatchPort(name, match string) bool {
	return match != "" && strings.Contains(strings.ToLower(name), strings.ToLower(match))
}

func (dm *DeviceManager) scan() {
	inPorts, outPorts, ok := ListPorts(3 * time.Second)
	if !ok {
		debug.Warn("ports", "port scan timed out")
		return
	}

	seenIDs := make(map[string]bool)

	for _, inPort := range inPorts {
		name := inPort.String()
		var kind ControllerType
		switch {
		case MatchPort(name, dm.match.Pads):
			kind = ControllerPads
		case MatchPort(name, dm.match.Keyboard):
			kind = ControllerKeyboard
		default:
			continue
		}
		id := name
		seenIDs[id] = true

		dm.mu.RLock()
		_, exists := dm.controllers[id]
		dm.mu.RUnlock()
		if exists {
			continue
		}

		var ctrl Controller
		var err error
		if kind == ControllerPads {
			// Find matching output port for LEDs
			var outPort drivers.Out
			for j, op := range outPorts {
				if strings.EqualFold(op.String(), name) {
					outPort = outPorts[j]
					break
				}
			}
			ctrl, err = NewPushController(id, inPort, outPort)
		} else {
			ctrl, err = NewKeyboardController(id, inPort)
		}
		if err != nil {
			debug.Warn("ports", "open %s: %v", id, err)
			continue
		}

		dm.mu.Lock()
		dm.controllers[id] = ctrl
		dm.mu.Unlock()

		debug.Log("ports", "connected %s (%s)", id, kind)
		dm.events <- DeviceEvent{
			Type:       DeviceConnected,
			Controller: ctrl,
			ID:         id,
		}
	}

	// Check for disconnects
	dm.mu.Lock()
	var toRemove []string
	for id := range dm.controllers {
		if !seenIDs[id] {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		c := dm.controllers[id]
		c.Close()
		delete(dm.controllers, id)
		debug.Log("ports", "disconnected %s", id)
		dm.events <- DeviceEvent{
			Type: DeviceDisconnected,
			ID:   id,
		}
	}
	dm.mu.Unlock()
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for _, c := range dm.controllers {
		c.Close()
	}
	dm.controllers = make(map[string]Controller)
}
