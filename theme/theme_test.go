package theme

import (
	"os"
	"path/filepath"
	"testing"
)

const testGPL = `GIMP Palette
Name: Test
Columns: 2
# comment
  0   0   0	Black
255 255 255	White
`

func TestLoadGPL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.gpl")
	if err := os.WriteFile(path, []byte(testGPL), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadGPL(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Test" || len(p.Colors) != 2 {
		t.Fatalf("got %+v", p)
	}
	if p.Lookup(0) != (RGB{0, 0, 0}) || p.Lookup(1) != (RGB{255, 255, 255}) {
		t.Errorf("endpoints = %v %v", p.Lookup(0), p.Lookup(1))
	}
	mid := p.Lookup(0.5)
	if mid[0] == 0 || mid[0] == 255 {
		t.Errorf("midpoint not blended: %v", mid)
	}
}

func TestLoadGPL_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.gpl")
	if err := os.WriteFile(path, []byte("GIMP Palette\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadGPL(path); err == nil {
		t.Error("expected error")
	}
}

func TestLoadOrDefault(t *testing.T) {
	p, err := LoadOrDefault("")
	if err != nil || p.Name != "Night" {
		t.Errorf("got %v, %v", p, err)
	}
	if _, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.gpl")); err == nil {
		t.Error("expected error")
	}
}

func TestTrackColor_Distinct(t *testing.T) {
	seen := make(map[RGB]int)
	for id := 0; id < 16; id++ {
		c := TrackColor(id)
		if prev, ok := seen[c]; ok {
			t.Errorf("ids %d and %d share color %v", prev, id, c)
		}
		seen[c] = id
		if TrackColor(id) != c {
			t.Errorf("TrackColor(%d) not deterministic", id)
		}
	}
}

func TestDarken(t *testing.T) {
	c := RGB{200, 100, 50}
	d := c.Darken(0.5)
	if d[0] >= c[0] {
		t.Errorf("Darken(%v) = %v", c, d)
	}
	if got := (RGB{255, 0, 16}).Hex(); got != "#ff0010" {
		t.Errorf("Hex = %s", got)
	}
}
