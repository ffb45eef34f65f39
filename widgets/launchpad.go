package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// PadStyle picks the glyphs for lit and dark pads
type PadStyle struct {
	Lit, Off rune
	OffColor [3]uint8
}

var DefaultPadStyle = PadStyle{Lit: '■', Off: '·', OffColor: [3]uint8{80, 80, 80}}

// RenderPad renders a single colored pad. Black pads render as the Off glyph.
func (s PadStyle) RenderPad(color [3]uint8) string {
	if color == ([3]uint8{}) {
		return lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(s.OffColor))).Render(string(s.Off))
	}
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(color)))
	return style.Render(string(s.Lit))
}

// RenderPadRow renders a row of colored pads with spacing
func (s PadStyle) RenderPadRow(colors [][3]uint8) string {
	var out strings.Builder
	for i, c := range colors {
		if i > 0 {
			out.WriteString(" ")
		}
		out.WriteString(s.RenderPad(c))
	}
	return out.String()
}

// RenderPadGrid renders an 8x8 grid of pads (row 0 at bottom, row 7 at top)
func (s PadStyle) RenderPadGrid(grid [8][8][3]uint8) string {
	var lines []string
	for row := 7; row >= 0; row-- {
		lines = append(lines, s.RenderPadRow(grid[row][:]))
	}
	return strings.Join(lines, "\n")
}

// RenderSelectors renders the two selector button rows under the grid, upper first
func (s PadStyle) RenderSelectors(upper, lower [8][3]uint8) string {
	return s.RenderPadRow(upper[:]) + "\n" + s.RenderPadRow(lower[:])
}

// RenderLegendItem renders a single legend item: "■ Name - description"
func (s PadStyle) RenderLegendItem(color [3]uint8, name, desc string) string {
	return fmt.Sprintf("  %s %s - %s", s.RenderPad(color), name, desc)
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}

func rgbToHex(c [3]uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}
