package song

import (
	"time"

	"gitlab.com/gomidi/midi/v2"
)

// Drum channels by convention (GM percussion on 10, and 16 on some files).
const (
	DrumChannel    uint8 = 9
	AltDrumChannel uint8 = 15
)

// Note is a paired Note-On/Note-Off placed on the wall clock.
type Note struct {
	Start    time.Duration
	End      time.Duration
	Duration time.Duration

	Key      uint8
	Velocity uint8
	Channel  uint8

	TrackID      int
	TrackColorID int
	ID           int
}

// Event is a channel voice message placed on the wall clock.
type Event struct {
	Channel   uint8
	Delta     uint32 // pulses since the previous event of the same track
	Timestamp time.Duration
	Message   midi.Message

	TrackID      int
	TrackColorID int
}

// ProgramEvent is a Program Change seen on a track.
type ProgramEvent struct {
	Channel   uint8
	Timestamp time.Duration
	Program   uint8
}

// Track is the fully built timeline of one file track.
type Track struct {
	ID      int
	ColorID int

	Notes    []Note
	Events   []Event
	Programs []ProgramEvent

	HasDrums          bool
	HasOtherThanDrums bool
}

// IsDrumOnly reports whether every note of the track sits on a drum channel.
func (t *Track) IsDrumOnly() bool {
	return t.HasDrums && !t.HasOtherThanDrums
}

// IsDrumChannel reports whether ch carries percussion.
func IsDrumChannel(ch uint8) bool {
	return ch == DrumChannel || ch == AltDrumChannel
}

// setColorID stamps the color slot on the track and everything it owns.
func (t *Track) setColorID(id int) {
	t.ColorID = id
	for i := range t.Notes {
		t.Notes[i].TrackColorID = id
	}
	for i := range t.Events {
		t.Events[i].TrackColorID = id
	}
}
