package sequencer

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"

	"midipush/debug"
	"midipush/midi"
	"midipush/timeline"
)

var (
	ErrChecksum = errors.New("state: checksum mismatch")
	ErrFormat   = errors.New("state: not a midipush state file")
)

var stateMagic = [4]byte{'M', 'P', 'S', 'H'}

const stateVersion = 1

// stateHeader is the fixed-size task state at the start of a state file
type stateHeader struct {
	Magic     [4]byte
	Version   uint16
	BPM       uint16
	Beat      uint16
	Channel   uint8
	Octave    int8
	Mute      uint16
	PageMask  uint8
	ScaleMode uint8
	Root      uint8
	Metronome int8
	Bank      [16]uint8
	Program   [16]uint8
	Volume    [16]uint8
}

const (
	gridSize  = timeline.Beats * timeline.Channels * 16
	eventSize = 6 // beat u16, kind, channel, data[2]
)

var headerSize = binary.Size(stateHeader{})

// Save writes the engine state and its timeline:
// header, sustain grid, event count, events sorted by beat, CRC-32 of all of it.
func Save(w io.Writer, e *Engine) error {
	st := e.State()
	h := stateHeader{
		Magic:     stateMagic,
		Version:   stateVersion,
		BPM:       uint16(st.BPM),
		Beat:      uint16(st.Beat),
		Channel:   uint8(st.Channel),
		Octave:    int8(st.Octave),
		Mute:      st.Mute,
		PageMask:  st.PageMask,
		ScaleMode: uint8(st.ScaleMode),
		Root:      uint8(st.Root),
		Metronome: int8(st.Metronome),
		Bank:      st.Bank,
		Program:   st.Program,
		Volume:    st.Volume,
	}

	var buf bytes.Buffer
	buf.Grow(headerSize + gridSize + 4)
	if err := binary.Write(&buf, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	v := e.View()
	grid := make([]byte, 0, gridSize)
	for beat := 0; beat < timeline.Beats; beat++ {
		for c := 0; c < timeline.Channels; c++ {
			s := v.Sustain(beat, c)
			grid = binary.LittleEndian.AppendUint64(grid, s[0])
			grid = binary.LittleEndian.AppendUint64(grid, s[1])
		}
	}
	buf.Write(grid)

	var events []byte
	n := uint32(0)
	for _, beat := range v.Beats() {
		v.EachEvent(beat, func(ev midi.Event) {
			events = binary.LittleEndian.AppendUint16(events, uint16(beat))
			events = append(events, byte(ev.Kind), ev.Channel, ev.Data[0], ev.Data[1])
			n++
		})
	}
	binary.Write(&buf, binary.LittleEndian, n)
	buf.Write(events)

	sum := crc32.ChecksumIEEE(buf.Bytes())
	binary.Write(&buf, binary.LittleEndian, sum)

	_, err := w.Write(buf.Bytes())
	return err
}

// Load replaces the engine state with the one read from r. A file that fails its
// checksum or does not parse resets the engine to an empty timeline and defaults.
func Load(r io.Reader, e *Engine) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}
	if err := load(data, e); err != nil {
		e.Reset()
		return err
	}
	return nil
}

func load(data []byte, e *Engine) error {
	if len(data) < headerSize+gridSize+8 {
		return fmt.Errorf("%w: %d bytes", ErrFormat, len(data))
	}
	body, trailer := data[:len(data)-4], data[len(data)-4:]
	if crc32.ChecksumIEEE(body) != binary.LittleEndian.Uint32(trailer) {
		return ErrChecksum
	}

	var h stateHeader
	if err := binary.Read(bytes.NewReader(body[:headerSize]), binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if h.Magic != stateMagic {
		return ErrFormat
	}
	if h.Version != stateVersion {
		return fmt.Errorf("%w: version %d", ErrFormat, h.Version)
	}

	grid := body[headerSize : headerSize+gridSize]
	rest := body[headerSize+gridSize:]
	n := int(binary.LittleEndian.Uint32(rest))
	rest = rest[4:]
	if len(rest) != n*eventSize {
		return fmt.Errorf("%w: %d events in %d bytes", ErrFormat, n, len(rest))
	}

	store := e.store
	store.Clear()
	for beat := 0; beat < timeline.Beats; beat++ {
		for c := 0; c < timeline.Channels; c++ {
			off := (beat*timeline.Channels + c) * 16
			s := midi.NoteSet{
				binary.LittleEndian.Uint64(grid[off:]),
				binary.LittleEndian.Uint64(grid[off+8:]),
			}
			store.Append(timeline.Range{Start: beat, Stop: beat + 1}, c, s)
		}
	}
	for i := 0; i < n; i++ {
		rec := rest[i*eventSize:]
		beat := int(binary.LittleEndian.Uint16(rec))
		kind := midi.Kind(rec[2])
		if beat >= timeline.Beats || kind == midi.KindNone || kind > midi.KindPitchBend {
			return fmt.Errorf("%w: event %d", ErrFormat, i)
		}
		store.AppendEvent(beat, midi.Event{Kind: kind, Channel: rec[3] & 0x0f, Data: [2]uint8{rec[4], rec[5]}})
	}

	e.Restore(TaskState{
		BPM:       int(h.BPM),
		Beat:      int(h.Beat),
		Channel:   int(h.Channel),
		Octave:    int(h.Octave),
		Mute:      h.Mute,
		PageMask:  h.PageMask,
		ScaleMode: ScaleMode(h.ScaleMode),
		Root:      int(h.Root),
		Metronome: int(h.Metronome),
		Bank:      h.Bank,
		Program:   h.Program,
		Volume:    h.Volume,
	})
	return nil
}

// SaveFile writes the state atomically and returns its size
func SaveFile(path string, e *Engine) (int64, error) {
	var buf bytes.Buffer
	if err := Save(&buf, e); err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("create state dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return 0, fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, fmt.Errorf("write state: %w", err)
	}
	debug.Log("state", "saved %d bytes to %s", buf.Len(), path)
	return int64(buf.Len()), nil
}

// LoadFile loads path into e. A missing file leaves e untouched and is not an error.
func LoadFile(path string, e *Engine) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	defer f.Close()
	if err := Load(f, e); err != nil {
		debug.Warn("state", "%s: %v, starting empty", path, err)
		return err
	}
	debug.Log("state", "loaded %s: %d events", path, e.View().Events())
	return nil
}
