package song

import (
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

type heldNote struct {
	velocity uint8
	channel  uint8
	pulses   uint64
}

// BuildNotes pairs the Note-On and Note-Off events of one track.
//
// A Note-On on a key that is already held closes the held note first. A
// Note-Off without a held note is ignored, and notes still held when the
// track ends are dropped.
func BuildNotes(track smf.Track, tempo *TempoMap, trackID int) []Note {
	var (
		notes  []Note
		pulses uint64
		held   = make(map[uint8]heldNote)
	)

	closeNote := func(key uint8, end uint64) {
		h, ok := held[key]
		if !ok {
			return
		}
		delete(held, key)

		start := tempo.PulsesToDuration(h.pulses)
		stop := tempo.PulsesToDuration(end)
		notes = append(notes, Note{
			Start:    start,
			End:      stop,
			Duration: stop - start,
			Key:      key,
			Velocity: h.velocity,
			Channel:  h.channel,
			TrackID:  trackID,
			ID:       len(notes),
		})
	}

	for _, ev := range track {
		pulses += uint64(ev.Delta)
		msg := midi.Message(ev.Message)

		var ch, key, vel uint8
		switch {
		case msg.GetNoteStart(&ch, &key, &vel):
			closeNote(key, pulses)
			held[key] = heldNote{velocity: vel, channel: ch, pulses: pulses}
		case msg.GetNoteEnd(&ch, &key):
			closeNote(key, pulses)
		}
	}

	return notes
}
