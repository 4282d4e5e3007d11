package song

import (
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

func ev(delta uint32, msg []byte) smf.Event {
	return smf.Event{Delta: delta, Message: smf.Message(msg)}
}

func tempoMsg(micros uint32) []byte {
	return []byte{0xFF, 0x51, 0x03, byte(micros >> 16), byte(micros >> 8), byte(micros)}
}

func noteOn(ch, key, vel uint8) []byte { return midi.NoteOn(ch, key, vel) }

func noteOff(ch, key uint8) []byte { return midi.NoteOff(ch, key) }

func programChange(ch, program uint8) []byte { return midi.ProgramChange(ch, program) }

func endOfTrack() []byte { return []byte{0xFF, 0x2F, 0x00} }

func us(n int64) time.Duration { return time.Duration(n) * time.Microsecond }

// quarterNotes returns a track with n quarter notes on key, one quarter
// apart, each lasting a full quarter.
func quarterNotes(ch, key uint8, n int, ppq uint32) smf.Track {
	var tr smf.Track
	for i := 0; i < n; i++ {
		tr = append(tr, ev(0, noteOn(ch, key, 100)), ev(ppq, noteOff(ch, key)))
	}
	return append(tr, ev(0, endOfTrack()))
}
