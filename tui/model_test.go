package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"midipush/midi"
	"midipush/sequencer"
	"midipush/theme"
)

type feedLog struct {
	msgs []midi.Message
}

func (f *feedLog) Feed(msg midi.Message) bool {
	f.msgs = append(f.msgs, msg)
	return true
}

func (f *feedLog) ccs(t *testing.T) [][2]uint8 {
	t.Helper()
	var out [][2]uint8
	for _, m := range f.msgs {
		if m.Source != midi.SourceUI {
			t.Errorf("source %s", m.Source)
		}
		var ch, cc, val uint8
		if !m.Msg.GetControlChange(&ch, &cc, &val) {
			t.Fatalf("not a control change: %v", m.Msg)
		}
		out = append(out, [2]uint8{cc, val})
	}
	return out
}

func key(s string) tea.KeyMsg {
	switch s {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestKeysSendSurfaceControls(t *testing.T) {
	f := &feedLog{}
	m := NewModel(f, nil, theme.New(nil), false)
	for _, k := range []string{"r", "up", "left", "-", "3"} {
		next, _ := m.Update(key(k))
		m = next.(Model)
	}
	want := [][2]uint8{
		{sequencer.CCRecord, 127}, {sequencer.CCRecord, 0},
		{sequencer.CCArrowA + 1, 127}, {sequencer.CCArrowA + 1, 0},
		{sequencer.CCArrowB, 127}, {sequencer.CCArrowB, 0},
		{sequencer.CCBPM, 127},
		{sequencer.CCPageMask + 2, 127}, {sequencer.CCPageMask + 2, 0},
	}
	got := f.ccs(t)
	if len(got) != len(want) {
		t.Fatalf("sent %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("cc %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestChannelFirstSwapsArrows(t *testing.T) {
	f := &feedLog{}
	m := NewModel(f, nil, theme.New(nil), true)
	m.Update(key("up"))
	if got := f.ccs(t); len(got) == 0 || got[0][0] != sequencer.CCArrowB+1 {
		t.Errorf("up sent %v", got)
	}
}

func TestQuitPowersOff(t *testing.T) {
	f := &feedLog{}
	m := NewModel(f, nil, theme.New(nil), false)
	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("no quit command")
	}
	if got := f.ccs(t); len(got) == 0 || got[0] != [2]uint8{sequencer.CCPowerOff, 127} {
		t.Errorf("quit sent %v", got)
	}
}

func TestViewShowsSnapshot(t *testing.T) {
	m := NewModel(&feedLog{}, nil, theme.New(nil), false)
	snap := sequencer.Snapshot{
		Status: sequencer.Status{
			Recording: true,
			BPM:       98,
			Channel:   2,
			Mute:      1 << 4,
			Active:    1<<2 | 1<<4,
			Scale:     sequencer.Scale{Mode: sequencer.ScaleInfer, Root: 7},
			Events:    1234,
		},
		Pads:      "Ableton Push 2",
		StatePath: "/tmp/state.bin",
	}
	snap.Frame.Text = "03.07 ch3"
	next, _ := m.Update(snapshotMsg(snap))
	view := ansi.Strip(next.(Model).View())

	for _, want := range []string{"98bpm", "03.07 ch3", "REC", "G maj", "1,234", "Ableton Push 2", "keys -", "/tmp/state.bin", "··●·-···········"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}
