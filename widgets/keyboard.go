package widgets

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// KeyboardColors are the colors the keyboard widgets draw with.
type KeyboardColors struct {
	Idle     [3]uint8
	User     [3]uint8
	Required [3]uint8
	Grid     [3]uint8
}

// KeyboardSymbols are the runes the keyboard widgets draw with.
type KeyboardSymbols struct {
	WhiteKey rune
	BlackKey rune
	Held     rune
	Required rune
}

// Keyboard is one row of keys, one column per MIDI key from Low to High.
type Keyboard struct {
	Low, High uint8

	FileKeys map[uint8][3]uint8 // key -> track color
	UserKeys []uint8
	Required []uint8

	Colors  KeyboardColors
	Symbols KeyboardSymbols
}

// IsBlackKey reports whether key is a sharp/flat.
func IsBlackKey(key uint8) bool {
	switch key % 12 {
	case 1, 3, 6, 8, 10:
		return true
	}
	return false
}

// Width is the number of columns the keyboard needs.
func (k *Keyboard) Width() int {
	if k.High < k.Low {
		return 0
	}
	return int(k.High-k.Low) + 1
}

// View renders the keyboard row. User presses win over file notes, which win
// over required markers.
func (k *Keyboard) View() string {
	user := make(map[uint8]bool, len(k.UserKeys))
	for _, key := range k.UserKeys {
		user[key] = true
	}
	required := make(map[uint8]bool, len(k.Required))
	for _, key := range k.Required {
		required[key] = true
	}

	var out strings.Builder
	for i := 0; i < k.Width(); i++ {
		key := k.Low + uint8(i)
		switch {
		case user[key]:
			out.WriteString(colored(k.Colors.User, k.Symbols.Held))
		case hasKey(k.FileKeys, key):
			out.WriteString(colored(k.FileKeys[key], k.Symbols.Held))
		case required[key]:
			out.WriteString(colored(k.Colors.Required, k.Symbols.Required))
		case IsBlackKey(key):
			out.WriteString(colored(k.Colors.Idle, k.Symbols.BlackKey))
		default:
			out.WriteString(colored(k.Colors.Idle, k.Symbols.WhiteKey))
		}
	}
	return out.String()
}

func hasKey(m map[uint8][3]uint8, key uint8) bool {
	_, ok := m[key]
	return ok
}

// NoteSpan is a note to draw in the falling view.
type NoteSpan struct {
	Key        uint8
	Start, End time.Duration
	Color      [3]uint8
}

// Falling draws upcoming notes as columns sliding down onto the keyboard.
// The bottom row is Now, each row above is Step later.
type Falling struct {
	Low, High uint8
	Rows      int
	Now       time.Duration
	Step      time.Duration
	Notes     []NoteSpan

	Colors KeyboardColors
}

// View renders the grid, top row first.
func (f *Falling) View() string {
	width := int(f.High) - int(f.Low) + 1
	if f.Rows <= 0 || width <= 0 || f.Step <= 0 {
		return ""
	}

	cells := make([][]*[3]uint8, f.Rows)
	for r := range cells {
		cells[r] = make([]*[3]uint8, width)
	}

	horizon := f.Now + time.Duration(f.Rows)*f.Step
	for i := range f.Notes {
		n := &f.Notes[i]
		if n.Key < f.Low || n.Key > f.High || n.End <= f.Now || n.Start >= horizon {
			continue
		}
		first := max(0, int((n.Start-f.Now)/f.Step))
		last := min(f.Rows-1, int((n.End-f.Now-1)/f.Step))
		col := int(n.Key - f.Low)
		for slot := first; slot <= last; slot++ {
			cells[f.Rows-1-slot][col] = &n.Color
		}
	}

	lines := make([]string, f.Rows)
	for r, row := range cells {
		var line strings.Builder
		for c, color := range row {
			switch {
			case color != nil:
				line.WriteString(colored(*color, '█'))
			case (int(f.Low)+c)%12 == 0:
				line.WriteString(colored(f.Colors.Grid, '┊'))
			default:
				line.WriteByte(' ')
			}
		}
		lines[r] = line.String()
	}
	return strings.Join(lines, "\n")
}

// ProgressBar is a one-line position indicator.
type ProgressBar struct {
	Width   int
	Percent float64

	Full, Empty, Head rune
	Color, Dim        [3]uint8
}

// View renders the bar.
func (p *ProgressBar) View() string {
	if p.Width <= 0 {
		return ""
	}
	pct := max(0, min(1, p.Percent))
	head := int(pct * float64(p.Width-1))

	var played, remaining strings.Builder
	for i := 0; i < p.Width; i++ {
		switch {
		case i < head:
			played.WriteRune(p.Full)
		case i == head:
			played.WriteRune(p.Head)
		default:
			remaining.WriteRune(p.Empty)
		}
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(p.Color))).Render(played.String()) +
		lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(p.Dim))).Render(remaining.String())
}

func colored(c [3]uint8, r rune) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(c))).Render(string(r))
}
