package song

import (
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Projection is everything EventProjector derives from one track.
type Projection struct {
	Events            []Event
	Programs          []ProgramEvent
	HasDrums          bool
	HasOtherThanDrums bool
}

// BuildEvents places every channel voice message of a track on the wall
// clock. Note-On with velocity 0 comes out as Note-Off.
func BuildEvents(track smf.Track, tempo *TempoMap, trackID int) Projection {
	var (
		p      Projection
		pulses uint64
	)

	for _, ev := range track {
		pulses += uint64(ev.Delta)
		msg := midi.Message(ev.Message)

		var ch uint8
		if !msg.GetChannel(&ch) {
			continue
		}
		ts := tempo.PulsesToDuration(pulses)

		var key, vel, program uint8
		switch {
		case msg.GetNoteStart(&ch, &key, &vel):
			if IsDrumChannel(ch) {
				p.HasDrums = true
			} else {
				p.HasOtherThanDrums = true
			}
		case msg.GetNoteEnd(&ch, &key):
			msg = normalizeNoteOff(msg, ch, key)
		case msg.GetProgramChange(&ch, &program):
			p.Programs = append(p.Programs, ProgramEvent{
				Channel:   ch,
				Timestamp: ts,
				Program:   program,
			})
		}

		p.Events = append(p.Events, Event{
			Channel:   ch,
			Delta:     ev.Delta,
			Timestamp: ts,
			Message:   msg,
			TrackID:   trackID,
		})
	}

	return p
}

// normalizeNoteOff rewrites a zero velocity Note-On as a Note-Off. Real
// Note-Off messages keep their release velocity.
func normalizeNoteOff(msg midi.Message, ch, key uint8) midi.Message {
	if len(msg) > 0 && msg[0]&0xF0 == 0x80 {
		return msg
	}
	return midi.NoteOff(ch, key)
}
