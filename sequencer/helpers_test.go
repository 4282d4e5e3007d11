package sequencer

import (
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"fallingkeys/song"
)

func ev(delta uint32, msg []byte) smf.Event {
	return smf.Event{Delta: delta, Message: smf.Message(msg)}
}

func tempoMsg(micros uint32) []byte {
	return []byte{0xFF, 0x51, 0x03, byte(micros >> 16), byte(micros >> 8), byte(micros)}
}

func quarterNotes(ch, key uint8, n int, ppq uint32) smf.Track {
	var tr smf.Track
	for i := 0; i < n; i++ {
		tr = append(tr, ev(0, midi.NoteOn(ch, key, 100)), ev(ppq, midi.NoteOff(ch, key)))
	}
	return tr
}

// scenarioSong is a tempo track at 120000us per quarter plus four quarter
// notes on key 60: 480ms of music, 8 events.
func scenarioSong() *song.Song {
	return song.Build([]smf.Track{
		{ev(0, tempoMsg(120_000))},
		quarterNotes(0, 60, 4, 480),
	}, 480)
}

// busySong mixes tracks of different densities and a program change.
func busySong() *song.Song {
	return song.Build([]smf.Track{
		{ev(0, tempoMsg(500_000)), ev(1920, tempoMsg(400_000))},
		quarterNotes(0, 60, 16, 480),
		append(smf.Track{ev(0, midi.ProgramChange(1, 33))}, quarterNotes(1, 40, 8, 960)...),
		quarterNotes(9, 36, 64, 120),
		{},
	}, 480)
}

type emitted struct {
	track int
	at    time.Duration
	msg   string
}

func record(events []song.Event) []emitted {
	out := make([]emitted, 0, len(events))
	for _, e := range events {
		out = append(out, emitted{track: e.TrackID, at: e.Timestamp, msg: string(e.Message)})
	}
	return out
}

func playAll(p *Player, step time.Duration) []emitted {
	var out []emitted
	for !p.IsFinished() {
		out = append(out, record(p.Update(step))...)
	}
	return out
}
