package midi

import gomidi "gitlab.com/gomidi/midi/v2"

// NoteEvent is a key going down or up on a keyboard.
type NoteEvent struct {
	Note     uint8
	Velocity uint8
	Channel  uint8
	On       bool
}

// Message converts the event back to a wire message.
func (e NoteEvent) Message() gomidi.Message {
	if e.On {
		return gomidi.NoteOn(e.Channel, e.Note, e.Velocity)
	}
	return gomidi.NoteOffVelocity(e.Channel, e.Note, e.Velocity)
}

// noteEventFrom decodes note messages; a Note-On with velocity 0 is a release.
func noteEventFrom(msg gomidi.Message) (NoteEvent, bool) {
	var channel, note, velocity uint8
	switch {
	case msg.GetNoteStart(&channel, &note, &velocity):
		return NoteEvent{Note: note, Velocity: velocity, Channel: channel, On: true}, true
	case msg.GetNoteOff(&channel, &note, &velocity):
		return NoteEvent{Note: note, Velocity: velocity, Channel: channel}, true
	case msg.GetNoteEnd(&channel, &note):
		return NoteEvent{Note: note, Channel: channel}, true
	}
	return NoteEvent{}, false
}
