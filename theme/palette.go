package theme

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

type RGB [3]uint8

type Palette struct {
	Name   string
	Colors []RGB
}

// DefaultPalette is used when no .gpl file is configured.
func DefaultPalette() *Palette {
	return &Palette{
		Name: "Night",
		Colors: []RGB{
			{0x1a, 0x1b, 0x26},
			{0x24, 0x28, 0x3b},
			{0x56, 0x5f, 0x89},
			{0xa9, 0xb1, 0xd6},
			{0x7a, 0xa2, 0xf7},
			{0xbb, 0x9a, 0xf7},
			{0xf7, 0x76, 0x8e},
			{0xff, 0x9e, 0x64},
			{0x9e, 0xce, 0x6a},
		},
	}
}

func LoadGPL(path string) (*Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p := &Palette{}
	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if strings.HasPrefix(line, "Name:") {
			p.Name = strings.TrimSpace(strings.TrimPrefix(line, "Name:"))
			continue
		}

		// Skip headers and comments
		if line == "" || line[0] == '#' || strings.HasPrefix(line, "GIMP") || strings.HasPrefix(line, "Columns") {
			continue
		}

		// Parse RGB values (first 3 fields are R G B)
		fields := strings.Fields(line)
		if len(fields) >= 3 {
			r, err1 := strconv.Atoi(fields[0])
			g, err2 := strconv.Atoi(fields[1])
			b, err3 := strconv.Atoi(fields[2])
			if err1 == nil && err2 == nil && err3 == nil {
				p.Colors = append(p.Colors, RGB{uint8(r), uint8(g), uint8(b)})
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(p.Colors) == 0 {
		return nil, fmt.Errorf("no colors found in palette %s", path)
	}

	return p, nil
}

// LoadOrDefault loads path, falling back to DefaultPalette when path is
// empty.
func LoadOrDefault(path string) (*Palette, error) {
	if path == "" {
		return DefaultPalette(), nil
	}
	return LoadGPL(path)
}

// Lookup returns the color at normalized value 0-1, blended in Lab space
// between neighbouring palette entries.
func (p *Palette) Lookup(norm float64) RGB {
	if norm <= 0 || len(p.Colors) == 1 {
		return p.Colors[0]
	}
	if norm >= 1 {
		return p.Colors[len(p.Colors)-1]
	}

	// Find the two colors to interpolate between
	pos := norm * float64(len(p.Colors)-1)
	i := int(pos)
	frac := pos - float64(i)

	c0 := p.Colors[i].colorful()
	c1 := p.Colors[i+1].colorful()
	return fromColorful(c0.BlendLab(c1, frac))
}

// Index returns color at specific index (no interpolation)
func (p *Palette) Index(i int) RGB {
	if i < 0 {
		return p.Colors[0]
	}
	if i >= len(p.Colors) {
		return p.Colors[len(p.Colors)-1]
	}
	return p.Colors[i]
}

// goldenAngle spreads consecutive hues as far apart as possible.
const goldenAngle = 137.50776405003785

// TrackColor returns a distinct color for a track color id. Even ids are
// brighter than odd ids so neighbours stay apart in lightness too.
func TrackColor(colorID int) RGB {
	hue := math.Mod(210+float64(colorID)*goldenAngle, 360)
	light := 0.62
	if colorID%2 == 1 {
		light = 0.52
	}
	return fromColorful(colorful.Hcl(hue, 0.55, light).Clamped())
}

// Darken returns c with its lightness scaled by factor (0-1).
func (c RGB) Darken(factor float64) RGB {
	h, cc, l := c.colorful().Hcl()
	return fromColorful(colorful.Hcl(h, cc, l*factor).Clamped())
}

// Hex formats c as #rrggbb.
func (c RGB) Hex() string {
	return c.colorful().Hex()
}

func (c RGB) colorful() colorful.Color {
	return colorful.Color{R: float64(c[0]) / 255, G: float64(c[1]) / 255, B: float64(c[2]) / 255}
}

func fromColorful(c colorful.Color) RGB {
	r, g, b := c.RGB255()
	return RGB{r, g, b}
}
