package sequencer

import (
	"math"
	"sort"
	"time"

	"fallingkeys/debug"
	"fallingkeys/song"
)

// Player advances wall-clock time over a song and hands out the events that
// became due. Each event is returned at most once between seeks.
//
// A Player belongs to one session and is not safe for concurrent use.
type Player struct {
	tracks  []song.Track
	cursors []int

	running time.Duration
	leadIn  time.Duration
	paused  bool

	firstNoteStart time.Duration
	lastNoteEnd    time.Duration
}

// NewPlayer creates a player over tracks. leadIn delays every event so notes
// can scroll into view before they sound.
func NewPlayer(tracks []song.Track, leadIn time.Duration) *Player {
	if leadIn < 0 {
		leadIn = 0
	}
	p := &Player{
		tracks:  tracks,
		cursors: make([]int, len(tracks)),
		leadIn:  leadIn,
	}

	seen := false
	for i := range tracks {
		for _, n := range tracks[i].Notes {
			if !seen || n.Start < p.firstNoteStart {
				p.firstNoteStart = n.Start
			}
			if !seen || n.End > p.lastNoteEnd {
				p.lastNoteEnd = n.End
			}
			seen = true
		}
	}
	return p
}

// Update advances the clock by delta and returns the newly due events. Events
// of one track keep their file order; there is no ordering across tracks.
func (p *Player) Update(delta time.Duration) []song.Event {
	if p.paused {
		return nil
	}
	p.running += delta
	return p.collect()
}

func (p *Player) collect() []song.Event {
	var due []song.Event
	for i := range p.tracks {
		events := p.tracks[i].Events
		c := p.cursors[i]
		for c < len(events) && events[c].Timestamp+p.leadIn <= p.running {
			due = append(due, events[c])
			c++
		}
		p.cursors[i] = c
	}
	return due
}

// Pause stops the clock.
func (p *Player) Pause() {
	p.paused = true
}

// Resume restarts the clock.
func (p *Player) Resume() {
	p.paused = false
}

// IsPaused reports whether the clock is stopped.
func (p *Player) IsPaused() bool {
	return p.paused
}

// SetTime seeks to t, clamped to [0, Length()]. Events up to t are skipped;
// the cursors end up where repeated Update calls from zero would leave them.
func (p *Player) SetTime(t time.Duration) {
	if t < 0 {
		t = 0
	}
	if length := p.Length(); t > length {
		t = length
	}
	p.running = t

	for i := range p.tracks {
		events := p.tracks[i].Events
		p.cursors[i] = sort.Search(len(events), func(j int) bool {
			return events[j].Timestamp+p.leadIn > t
		})
	}
	debug.Log("player", "seek to %s", t)
}

// SetPercentage seeks to a fraction of Length(), clamped to [0, 1].
func (p *Player) SetPercentage(pct float64) {
	if math.IsNaN(pct) || pct < 0 {
		pct = 0
	}
	if pct > 1 {
		pct = 1
	}
	p.SetTime(time.Duration(pct * float64(p.Length())))
}

// Rewind moves the clock back by delta (forward when delta is negative).
func (p *Player) Rewind(delta time.Duration) {
	p.SetTime(p.running - delta)
}

// Time is the running clock, lead-in included.
func (p *Player) Time() time.Duration {
	return p.running
}

// SongTime is the position within the file, zero during the lead-in.
func (p *Player) SongTime() time.Duration {
	if p.running < p.leadIn {
		return 0
	}
	return p.running - p.leadIn
}

// LeadIn returns the pre-roll before the first file event.
func (p *Player) LeadIn() time.Duration {
	return p.leadIn
}

// Length is the last note end plus the lead-in.
func (p *Player) Length() time.Duration {
	return p.lastNoteEnd + p.leadIn
}

// Percentage is the progress through Length(), 1 for an empty song.
func (p *Player) Percentage() float64 {
	length := p.Length()
	if length <= 0 {
		return 1
	}
	return float64(p.running) / float64(length)
}

// IsFinished reports whether the clock reached Length().
func (p *Player) IsFinished() bool {
	return p.running >= p.Length()
}

// FirstNoteStart is the earliest note start in file time.
func (p *Player) FirstNoteStart() time.Duration {
	return p.firstNoteStart
}

// LastNoteEnd is the latest note end in file time.
func (p *Player) LastNoteEnd() time.Duration {
	return p.lastNoteEnd
}

// Tracks returns the tracks being played.
func (p *Player) Tracks() []song.Track {
	return p.tracks
}
