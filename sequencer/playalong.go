package sequencer

import (
	"slices"
	"time"

	"gitlab.com/gomidi/midi/v2"
)

// PressWindow is how long a user press stays available to satisfy a note
// that the file has not reached yet.
const PressWindow = 500 * time.Millisecond

// KeyRange is an inclusive range of MIDI keys.
type KeyRange struct {
	Low  uint8 `json:"low"`
	High uint8 `json:"high"`
}

// FullRange covers every MIDI key.
var FullRange = KeyRange{Low: 0, High: 127}

// PianoRange is the 88 keys of a standard piano.
var PianoRange = KeyRange{Low: 21, High: 108}

// Contains reports whether key is inside the range.
func (r KeyRange) Contains(key uint8) bool {
	return key >= r.Low && key <= r.High
}

type userPress struct {
	at  time.Time
	key uint8
}

// PlayAlongStats counts how the user did against the file.
type PlayAlongStats struct {
	Hits   int // required notes the user pressed, early or on time
	Misses int // required notes the file released before the user pressed them
}

// PlayAlong reconciles the notes a file requires with what the user plays.
// It is owned by one session and not safe for concurrent use.
type PlayAlong struct {
	keyboard KeyRange
	now      func() time.Time

	required map[uint8]struct{}
	presses  []userPress // oldest first
	stats    PlayAlongStats
}

// PlayAlongOption configures a PlayAlong.
type PlayAlongOption func(*PlayAlong)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) PlayAlongOption {
	return func(p *PlayAlong) { p.now = now }
}

// NewPlayAlong creates a matcher for a keyboard covering keyboard.
func NewPlayAlong(keyboard KeyRange, opts ...PlayAlongOption) *PlayAlong {
	p := &PlayAlong{
		keyboard: keyboard,
		now:      time.Now,
		required: make(map[uint8]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FileEvent handles a Note-On or Note-Off coming from the file.
func (p *PlayAlong) FileEvent(msg midi.Message) {
	var ch, key, vel uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		p.fileNoteOn(key)
	case msg.GetNoteEnd(&ch, &key):
		p.fileNoteOff(key)
	}
}

// UserEvent handles a Note-On or Note-Off played by the user.
func (p *PlayAlong) UserEvent(msg midi.Message) {
	var ch, key, vel uint8
	if msg.GetNoteStart(&ch, &key, &vel) {
		p.userNoteOn(key)
	}
}

func (p *PlayAlong) fileNoteOn(key uint8) {
	if !p.keyboard.Contains(key) {
		return
	}
	now := p.now()
	for i := len(p.presses) - 1; i >= 0; i-- {
		press := p.presses[i]
		if press.key == key && now.Sub(press.at) < PressWindow {
			p.presses = slices.Delete(p.presses, i, i+1)
			p.stats.Hits++
			return
		}
	}
	p.required[key] = struct{}{}
}

func (p *PlayAlong) fileNoteOff(key uint8) {
	if _, ok := p.required[key]; ok {
		delete(p.required, key)
		p.stats.Misses++
	}
}

func (p *PlayAlong) userNoteOn(key uint8) {
	if _, ok := p.required[key]; ok {
		delete(p.required, key)
		p.stats.Hits++
		return
	}
	p.presses = append(p.presses, userPress{at: p.now(), key: key})
}

// Update drops presses older than PressWindow.
func (p *PlayAlong) Update() {
	now := p.now()
	keep := 0
	for keep < len(p.presses) && now.Sub(p.presses[keep].at) >= PressWindow {
		keep++
	}
	p.presses = slices.Delete(p.presses, 0, keep)
}

// AreRequiredKeysPressed reports whether nothing is waiting on the user.
func (p *PlayAlong) AreRequiredKeysPressed() bool {
	return len(p.required) == 0
}

// RequiredKeys returns the keys waiting on the user, ascending.
func (p *PlayAlong) RequiredKeys() []uint8 {
	keys := make([]uint8, 0, len(p.required))
	for k := range p.required {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Stats returns the hit and miss counters.
func (p *PlayAlong) Stats() PlayAlongStats {
	return p.stats
}

// Reset clears required notes and press history, e.g. after a seek.
// The counters are kept.
func (p *PlayAlong) Reset() {
	clear(p.required)
	p.presses = p.presses[:0]
}
