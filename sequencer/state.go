package sequencer

import (
	"fmt"

	"fallingkeys/song"
)

// TrackMode decides who plays a track.
type TrackMode int

const (
	ModeAuto  TrackMode = iota // sent to the MIDI output
	ModeHuman                  // the user plays it, nothing is sounded
	ModeMute                   // dropped
)

func (m TrackMode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeHuman:
		return "human"
	case ModeMute:
		return "mute"
	}
	return fmt.Sprintf("TrackMode(%d)", int(m))
}

// Next cycles auto -> human -> mute -> auto.
func (m TrackMode) Next() TrackMode {
	return (m + 1) % 3
}

// ParseTrackMode is the inverse of String.
func ParseTrackMode(s string) (TrackMode, error) {
	switch s {
	case "auto":
		return ModeAuto, nil
	case "human":
		return ModeHuman, nil
	case "mute":
		return ModeMute, nil
	}
	return ModeAuto, fmt.Errorf("unknown track mode %q", s)
}

// TrackState holds the per-session settings of one track
type TrackState struct {
	TrackID int
	Mode    TrackMode
	Visible bool
}

// defaultTrackStates makes every track with notes visible and played
// automatically.
func defaultTrackStates(tracks []song.Track) []TrackState {
	states := make([]TrackState, len(tracks))
	for i := range tracks {
		states[i] = TrackState{
			TrackID: tracks[i].ID,
			Mode:    ModeAuto,
			Visible: len(tracks[i].Notes) > 0,
		}
	}
	return states
}
