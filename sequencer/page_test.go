package sequencer

import "testing"

func TestPageLowGroupKeepsBank(t *testing.T) {
	p := NewPageState()
	cur := 2*8 + 5 // bank 2, page 5

	res := p.Press(GroupLow, 3, cur, false, -1)
	if !res.Disarm || res.Arm {
		t.Errorf("press without note: %+v", res)
	}
	if res.Target != 2*8+3 {
		t.Errorf("target %d, want %d", res.Target, 2*8+3)
	}
	if res.Jump {
		t.Error("page changed before release")
	}
	res = p.Release(GroupLow, 3, cur)
	if !res.Jump || res.Target != 19 {
		t.Errorf("release: %+v", res)
	}
	if p.Navigating {
		t.Error("still navigating after release")
	}
}

func TestPageHighGroupResetsLowBits(t *testing.T) {
	p := NewPageState()
	p.Press(GroupHigh, 6, 13, false, -1)
	res := p.Release(GroupHigh, 6, 13)
	if !res.Jump || res.Target != 48 {
		t.Errorf("got %+v, want jump to 48", res)
	}
}

func TestPageBothGroups(t *testing.T) {
	p := NewPageState()
	p.Press(GroupHigh, 1, 0, false, -1)
	p.Press(GroupLow, 7, 0, false, -1)
	if res := p.Release(GroupHigh, 1, 0); res.Jump {
		t.Error("jumped while a selector is still down")
	}
	res := p.Release(GroupLow, 7, 0)
	if !res.Jump || res.Target != 15 {
		t.Errorf("got %+v, want jump to 15", res)
	}
}

func TestPageCopyWaitsForNoteRelease(t *testing.T) {
	p := NewPageState()
	res := p.Press(GroupLow, 4, 0, true, 62)
	if !res.Arm || p.ArmedNote != 62 || res.Target != 4 {
		t.Fatalf("press with note held: %+v armed=%d", res, p.ArmedNote)
	}
	if res := p.Release(GroupLow, 4, 0); res.Jump {
		t.Error("page changed while the note is still held")
	}
	res = p.NotesReleased(0)
	if !res.Jump || !res.Disarm || res.Target != 4 {
		t.Errorf("note release: %+v", res)
	}
	if p.ArmedNote != -1 || p.Navigating {
		t.Error("state not reset")
	}
}

func TestPageArmsOncePerGesture(t *testing.T) {
	p := NewPageState()
	if res := p.Press(GroupLow, 4, 0, true, 62); !res.Arm {
		t.Fatalf("first press did not arm: %+v", res)
	}
	res := p.Press(GroupHigh, 1, 0, true, 65)
	if res.Arm || res.Disarm {
		t.Errorf("second press re-armed: %+v", res)
	}
	if p.ArmedNote != 62 || res.Target != 1<<3|4 {
		t.Errorf("armed=%d target=%d", p.ArmedNote, res.Target)
	}
}

func TestPageNoteReleasedBeforeButtons(t *testing.T) {
	p := NewPageState()
	p.Press(GroupLow, 2, 0, true, 60)
	res := p.NotesReleased(0)
	if res.Jump || !res.Disarm {
		t.Errorf("note up with button down: %+v", res)
	}
	res = p.Release(GroupLow, 2, 0)
	if !res.Jump || res.Target != 2 {
		t.Errorf("button up: %+v", res)
	}
}

func TestNotesReleasedWithoutCopyIsNoop(t *testing.T) {
	p := NewPageState()
	if res := p.NotesReleased(3); res != (PageResult{}) {
		t.Errorf("got %+v", res)
	}
}
