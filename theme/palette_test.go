package theme

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultPalette(t *testing.T) {
	p := Default()
	if p.Name != "plasma" || len(p.Colors) != 17 {
		t.Fatalf("name %q, %d colors", p.Name, len(p.Colors))
	}
	if p.Lookup(0) != (RGB{13, 8, 135}) || p.Lookup(1) != (RGB{240, 249, 33}) {
		t.Errorf("ends %v %v", p.Lookup(0), p.Lookup(1))
	}
	if Default() != p {
		t.Error("default palette parsed twice")
	}
}

func TestParseGPL(t *testing.T) {
	src := `GIMP Palette
Name: test
Columns: 2
# comment
  0   0   0	black
255 128   0
300   0   0	out of range
 1 2
`
	p, err := ParseGPL(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "test" {
		t.Errorf("name %q", p.Name)
	}
	want := []RGB{{0, 0, 0}, {255, 128, 0}}
	if len(p.Colors) != len(want) {
		t.Fatalf("colors %v", p.Colors)
	}
	for i := range want {
		if p.Colors[i] != want[i] {
			t.Errorf("color %d = %v, want %v", i, p.Colors[i], want[i])
		}
	}

	if _, err := ParseGPL(strings.NewReader("GIMP Palette\n")); err == nil {
		t.Error("empty palette accepted")
	}
}

func TestLoadGPL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "two.gpl")
	if err := os.WriteFile(path, []byte("GIMP Palette\n0 0 0\n200 100 50\n"), 0644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadGPL(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Lookup(0.5); got != (RGB{100, 50, 25}) {
		t.Errorf("midpoint %v", got)
	}
	if _, err := LoadGPL(filepath.Join(t.TempDir(), "missing.gpl")); err == nil {
		t.Error("missing file loaded")
	}
}

func TestIndexClamps(t *testing.T) {
	p := &Palette{Colors: []RGB{{1, 1, 1}, {2, 2, 2}}}
	if p.Index(-1) != p.Colors[0] || p.Index(5) != p.Colors[1] || p.Index(1) != p.Colors[1] {
		t.Error("index not clamped")
	}
}

func TestHex(t *testing.T) {
	if got := string(Hex([3]uint8{255, 0, 16})); got != "#ff0010" {
		t.Errorf("hex %q", got)
	}
}
