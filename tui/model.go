package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	gomidi "gitlab.com/gomidi/midi/v2"

	"midipush/midi"
	"midipush/sequencer"
	"midipush/theme"
	"midipush/widgets"
)

// Feeder accepts synthetic surface input. *sequencer.Manager implements it.
type Feeder interface {
	Feed(msg midi.Message) bool
}

type Model struct {
	Feed         Feeder
	Updates      <-chan sequencer.Snapshot
	Theme        *theme.Theme
	ChannelFirst bool

	snap     sequencer.Snapshot
	pads     widgets.PadStyle
	now      time.Time
	showHelp bool
	quitting bool
}

type snapshotMsg sequencer.Snapshot

type clockMsg time.Time

func NewModel(feed Feeder, updates <-chan sequencer.Snapshot, th *theme.Theme, channelFirst bool) Model {
	return Model{
		Feed:         feed,
		Updates:      updates,
		Theme:        th,
		ChannelFirst: channelFirst,
		pads: widgets.PadStyle{
			Lit:      th.Symbols.Pad,
			Off:      th.Symbols.PadOff,
			OffColor: th.RGB(theme.RoleMuted),
		},
		now: time.Now(),
	}
}

func ListenForUpdates(updates <-chan sequencer.Snapshot) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-updates
		if !ok {
			return tea.Quit()
		}
		return snapshotMsg(s)
	}
}

// everySecond keeps relative times ("saved 3 seconds ago") fresh
func everySecond() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return clockMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(ListenForUpdates(m.Updates), everySecond())
}

// press sends a button press and release on cc
func (m Model) press(cc uint8) {
	m.send(cc, 127)
	m.send(cc, 0)
}

func (m Model) send(cc, val uint8) {
	m.Feed.Feed(midi.Message{Source: midi.SourceUI, Msg: gomidi.ControlChange(0, cc, val)})
}

// arrows returns the down/up CCs for the octave and channel pairs
func (m Model) arrows() (octave, channel uint8) {
	if m.ChannelFirst {
		return sequencer.CCArrowB, sequencer.CCArrowA
	}
	return sequencer.CCArrowA, sequencer.CCArrowB
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		octave, channel := m.arrows()
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			m.press(sequencer.CCPowerOff)
			return m, tea.Quit
		case " ":
			m.press(sequencer.CCPlay)
		case "r":
			m.press(sequencer.CCRecord)
		case "n":
			m.press(sequencer.CCNew)
		case "x":
			m.press(sequencer.CCDelete)
		case "s":
			m.press(sequencer.CCSave)
		case "m":
			m.press(sequencer.CCMute)
		case "k":
			m.press(sequencer.CCScale)
		case "t":
			m.press(sequencer.CCMetronome)
		case "+", "=":
			m.send(sequencer.CCBPM, 1)
		case "-", "_":
			m.send(sequencer.CCBPM, 127)
		case "]":
			m.send(sequencer.CCShuttle, 1)
		case "[":
			m.send(sequencer.CCShuttle, 127)
		case ">", ".":
			m.send(sequencer.CCProgram, 1)
		case "<", ",":
			m.send(sequencer.CCProgram, 127)
		case "up":
			m.press(octave + 1)
		case "down":
			m.press(octave)
		case "right":
			m.press(channel + 1)
		case "left":
			m.press(channel)
		case "1", "2", "3", "4", "5", "6":
			m.press(sequencer.CCPageMask + msg.String()[0] - '1')
		case "?":
			m.showHelp = !m.showHelp
		}

	case snapshotMsg:
		m.snap = sequencer.Snapshot(msg)
		return m, ListenForUpdates(m.Updates)

	case clockMsg:
		m.now = time.Time(msg)
		return m, everySecond()
	}

	return m, nil
}

var keyHelp = []widgets.KeySection{
	{Title: "Transport", Keys: []widgets.KeyBinding{
		{Key: "space", Desc: "play / stop"},
		{Key: "r", Desc: "record"},
		{Key: "x", Desc: "delete mode"},
		{Key: "n", Desc: "new (with x: clear all)"},
		{Key: "+ / -", Desc: "tempo"},
		{Key: "[ / ]", Desc: "shuttle"},
		{Key: "t", Desc: "metronome"},
	}},
	{Title: "Channel", Keys: []widgets.KeyBinding{
		{Key: "← / →", Desc: "channel"},
		{Key: "↑ / ↓", Desc: "octave"},
		{Key: "m", Desc: "mute channel"},
		{Key: "< / >", Desc: "program"},
		{Key: "k", Desc: "scale mode"},
		{Key: "1-6", Desc: "page mask bits"},
	}},
	{Keys: []widgets.KeyBinding{
		{Key: "s", Desc: "save"},
		{Key: "?", Desc: "help"},
		{Key: "q", Desc: "quit"},
	}},
}

func (m Model) transport() string {
	sym := m.Theme.Symbols
	s := m.snap
	var marks []string
	if s.Playing {
		marks = append(marks, string(sym.Play)+" PLAY")
	} else {
		marks = append(marks, string(sym.Stop)+" STOP")
	}
	if s.Recording {
		marks = append(marks, lipgloss.NewStyle().Foreground(m.Theme.Active()).Render(string(sym.Record)+" REC"))
	}
	if s.Deleting {
		marks = append(marks, lipgloss.NewStyle().Foreground(m.Theme.Warning()).Render(string(sym.Delete)+" DEL"))
	}
	if s.CopyArmed {
		marks = append(marks, string(sym.Copy)+" COPY")
	}
	return strings.Join(marks, "  ")
}

func (m Model) channels() string {
	sym := m.Theme.Symbols
	s := m.snap
	var out strings.Builder
	for ch := 0; ch < 16; ch++ {
		r := sym.ChannelEmpty
		switch {
		case s.Mute&(1<<ch) != 0:
			r = sym.ChannelMuted
		case s.Active&(1<<ch) != 0:
			r = sym.ChannelUsed
		}
		cell := fmt.Sprintf("%c", r)
		if ch == s.Channel {
			cell = lipgloss.NewStyle().Foreground(m.Theme.Accent()).Bold(true).Render(cell)
		}
		out.WriteString(cell)
	}
	return out.String()
}

func (m Model) storage() string {
	s := m.snap
	switch {
	case s.StatePath == "":
		return "state not saved"
	case s.SavedAt.IsZero():
		return s.StatePath
	}
	return fmt.Sprintf("%s  %s saved %s", s.StatePath, humanize.Bytes(uint64(s.StateSize)), humanize.RelTime(s.SavedAt, m.now, "ago", "from now"))
}

func (m Model) devices() string {
	s := m.snap
	name := func(id string) string {
		if id == "" {
			return "-"
		}
		return id
	}
	line := fmt.Sprintf("pads %s  keys %s  synth %s", name(s.Pads), name(s.Keys), name(s.Synth))
	if s.Dropped > 0 {
		line += fmt.Sprintf("  dropped %s", humanize.Comma(int64(s.Dropped)))
	}
	return line
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	s := m.snap

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	labelStyle := lipgloss.NewStyle().Foreground(m.Theme.FG())

	header := headerStyle.Render(fmt.Sprintf("midipush  %3dbpm  %s", s.BPM, s.Frame.Text))

	info := []string{
		m.transport(),
		"",
		labelStyle.Render("octave ") + fmt.Sprintf("%+d", s.Octave),
		labelStyle.Render("key    ") + s.Scale.String(),
		labelStyle.Render("mask   ") + fmt.Sprintf("%06b", s.PageMask),
		labelStyle.Render("ch     ") + m.channels(),
		"",
		labelStyle.Render("events ") + fmt.Sprintf("%s (%d erased)", humanize.Comma(int64(s.Events)), s.Tombstones),
	}
	if s.Metronome >= 0 {
		info = append(info, labelStyle.Render("click  ")+fmt.Sprintf("note %d", s.Metronome))
	}

	grid := m.pads.RenderPadGrid(s.Frame.Pads) + "\n\n" + m.pads.RenderSelectors(s.Frame.Upper, s.Frame.Lower)
	body := lipgloss.JoinHorizontal(lipgloss.Top, grid, "    ", strings.Join(info, "\n"))

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(body)
	out.WriteString("\n\n")
	out.WriteString(dimStyle.Render(m.devices()))
	out.WriteString("\n")
	out.WriteString(dimStyle.Render(m.storage()))
	out.WriteString("\n\n")
	if m.showHelp {
		out.WriteString(widgets.RenderKeyHelp(keyHelp))
	} else {
		out.WriteString(dimStyle.Render("space:play  r:rec  x:del  n:new  arrows:ch/oct  s:save  ?:help  q:quit"))
	}
	return out.String()
}
