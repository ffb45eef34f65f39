package sequencer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"midipush/debug"
	"midipush/midi"
)

// LED and UI refresh rate
const ledFPS = 30

// idleWait caps how long the loop sleeps when no input is pending
const idleWait = 10 * time.Millisecond

const inputQueue = 256

// Snapshot is what the terminal UI sees after each pass
type Snapshot struct {
	Status
	Pads, Keys string // attached controller IDs, empty when absent
	Synth      string
	StatePath  string
	StateSize  int64
	SavedAt    time.Time
	Dropped    uint64
}

type ctrlEvent struct {
	c  midi.Controller
	on bool
}

// ManagerOptions configures a Manager. StatePath empty disables saving.
type ManagerOptions struct {
	StatePath string
}

// Manager owns the engine and runs the event loop around it. Controllers and the
// UI only talk to it through channels.
type Manager struct {
	engine    *Engine
	synth     midi.Sender
	statePath string

	inputs [midi.NumSources]chan midi.Message
	wake   chan struct{}
	ctrl   chan ctrlEvent
	done   chan struct{}
	snaps  chan Snapshot

	// loop state
	pads, keys  midi.Controller
	prevLEDs    map[[2]int][3]uint8
	ledDirty    bool
	ledLimit    *rate.Limiter
	uiLimit     *rate.Limiter
	statusDirty bool
	stateSize   int64
	savedAt     time.Time

	dropped uint64
	now     func() time.Time
}

// NewManager wraps engine. synth receives every outgoing message in order.
func NewManager(engine *Engine, synth midi.Sender, opt ManagerOptions) *Manager {
	m := &Manager{
		engine:    engine,
		synth:     synth,
		statePath: opt.StatePath,
		wake:      make(chan struct{}, 1),
		ctrl:      make(chan ctrlEvent, 16),
		done:      make(chan struct{}),
		snaps:     make(chan Snapshot, 1),
		prevLEDs:  make(map[[2]int][3]uint8),
		ledLimit:  rate.NewLimiter(rate.Every(time.Second/ledFPS), 1),
		uiLimit:   rate.NewLimiter(rate.Every(time.Second/ledFPS), 1),
		now:       time.Now,
	}
	for i := range m.inputs {
		m.inputs[i] = make(chan midi.Message, inputQueue)
	}
	return m
}

// Updates delivers the latest snapshot; older ones are dropped if unread
func (m *Manager) Updates() <-chan Snapshot { return m.snaps }

// Feed queues a message for the loop. It never blocks and reports false when the
// source's queue is full.
func (m *Manager) Feed(msg midi.Message) bool {
	if msg.Source >= midi.NumSources || msg.Msg == nil {
		return false
	}
	if msg.Time.IsZero() {
		msg.Time = m.now()
	}
	select {
	case m.inputs[msg.Source] <- msg:
	default:
		n := atomic.AddUint64(&m.dropped, 1)
		debug.LogEvery(50, "loop", "%s queue full, dropped=%d", msg.Source, n)
		return false
	}
	select {
	case m.wake <- struct{}{}:
	default:
	}
	return true
}

// AttachController forwards c's input into the loop until c is closed. A pad grid
// also becomes the LED target.
func (m *Manager) AttachController(c midi.Controller) {
	select {
	case m.ctrl <- ctrlEvent{c: c, on: true}:
	case <-m.done:
		return
	}
	go func() {
		for msg := range c.Messages() {
			m.Feed(msg)
		}
		select {
		case m.ctrl <- ctrlEvent{c: c}:
		case <-m.done:
		}
	}()
}

// Run is the event loop. It returns when ctx is cancelled, the surface asks for
// poweroff, or the synth port fails. Sounding notes are silenced and the state saved
// on the way out.
func (m *Manager) Run(ctx context.Context) (err error) {
	defer close(m.done)
	defer func() {
		if serr := m.shutdown(); err == nil {
			err = serr
		}
	}()

	timer := time.NewTimer(idleWait)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}
		busy := false
		for src := range m.inputs {
			select {
			case msg := <-m.inputs[src]:
				busy = true
				stop, err := m.apply(m.engine.Handle(msg))
				if err != nil || stop {
					return err
				}
			default:
			}
		}

		if res, ok := m.engine.Tick(m.now()); ok {
			busy = true
			stop, err := m.apply(res)
			if err != nil || stop {
				return err
			}
		}

		m.drainControllers()
		m.flushLEDs()
		m.publish()

		if busy {
			continue
		}
		wait := m.engine.Until(m.now())
		if wait > idleWait {
			wait = idleWait
		}
		if wait <= 0 {
			continue
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return nil
		case <-m.wake:
		case ev := <-m.ctrl:
			m.controller(ev)
		case <-timer.C:
		}
	}
}

// apply delivers one pass's output. stop is the surface's poweroff.
func (m *Manager) apply(res Result) (stop bool, err error) {
	for _, ev := range res.Out {
		if err := m.synth.Send(ev); err != nil {
			debug.Warn("synth", "%v", err)
			return true, fmt.Errorf("synth: %w", err)
		}
	}
	if res.Save {
		m.save()
	}
	if res.Display {
		m.ledDirty = true
	}
	m.statusDirty = true
	return res.Stop, nil
}

func (m *Manager) save() error {
	if m.statePath == "" {
		return nil
	}
	n, err := SaveFile(m.statePath, m.engine)
	if err != nil {
		debug.Warn("state", "save %s: %v", m.statePath, err)
		return err
	}
	m.stateSize = n
	m.savedAt = m.now()
	return nil
}

func (m *Manager) shutdown() error {
	var sendErr error
	for _, ev := range m.engine.Silence() {
		if err := m.synth.Send(ev); err != nil && sendErr == nil {
			sendErr = err
		}
	}
	if sendErr != nil {
		debug.Warn("synth", "silence: %v", sendErr)
	}
	if err := m.save(); err != nil {
		return fmt.Errorf("final save: %w", err)
	}
	debug.Log("loop", "stopped")
	return nil
}

func (m *Manager) drainControllers() {
	for {
		select {
		case ev := <-m.ctrl:
			m.controller(ev)
		default:
			return
		}
	}
}

func (m *Manager) controller(ev ctrlEvent) {
	slot := &m.keys
	if ev.c.Type() == midi.ControllerPads {
		slot = &m.pads
	}
	switch {
	case ev.on:
		*slot = ev.c
		if slot == &m.pads {
			// new device, assume every LED is stale
			m.prevLEDs = make(map[[2]int][3]uint8)
			m.ledDirty = true
		}
		debug.Log("loop", "attached %s (%s)", ev.c.ID(), ev.c.Type())
	case *slot == ev.c:
		*slot = nil
		debug.Log("loop", "detached %s", ev.c.ID())
	}
	m.statusDirty = true
}

// flushLEDs sends only the LEDs that changed since the last frame
func (m *Manager) flushLEDs() {
	if !m.ledDirty || m.pads == nil || !m.ledLimit.Allow() {
		return
	}
	m.ledDirty = false

	frame := m.engine.Frame()
	var updates []midi.LEDUpdate
	for _, led := range frame.LEDs() {
		key := [2]int{led.Row, led.Col}
		if prev, ok := m.prevLEDs[key]; ok && prev == led.Color {
			continue
		}
		m.prevLEDs[key] = led.Color
		updates = append(updates, led)
	}
	if len(updates) == 0 {
		return
	}
	debug.Log("led", "flush batch=%d", len(updates))
	if err := m.pads.SetLEDBatch(updates); err != nil {
		debug.Warn("led", "%s: %v", m.pads.ID(), err)
		m.prevLEDs = make(map[[2]int][3]uint8)
		m.ledDirty = true
	}
}

func (m *Manager) publish() {
	if !m.statusDirty || !m.uiLimit.Allow() {
		return
	}
	m.statusDirty = false
	snap := Snapshot{
		Status:    m.engine.Status(),
		StatePath: m.statePath,
		StateSize: m.stateSize,
		SavedAt:   m.savedAt,
		Dropped:   atomic.LoadUint64(&m.dropped),
	}
	if m.pads != nil {
		snap.Pads = m.pads.ID()
	}
	if m.keys != nil {
		snap.Keys = m.keys.ID()
	}
	if n, ok := m.synth.(interface{ Name() string }); ok {
		snap.Synth = n.Name()
	}
	// only this goroutine sends, so after the drain there is room
	select {
	case <-m.snaps:
	default:
	}
	m.snaps <- snap
}
