package midi

import (
	"bytes"
	"testing"

	gomidi "gitlab.com/gomidi/midi/v2"
)

func TestNoteEventFrom(t *testing.T) {
	tests := []struct {
		name string
		msg  gomidi.Message
		want NoteEvent
		ok   bool
	}{
		{"note on", gomidi.NoteOn(2, 60, 90), NoteEvent{Note: 60, Velocity: 90, Channel: 2, On: true}, true},
		{"zero velocity", gomidi.NoteOn(2, 60, 0), NoteEvent{Note: 60, Channel: 2}, true},
		{"note off", gomidi.NoteOffVelocity(1, 61, 40), NoteEvent{Note: 61, Velocity: 40, Channel: 1}, true},
		{"control change", gomidi.ControlChange(0, 64, 127), NoteEvent{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := noteEventFrom(tt.msg)
			if ok != tt.ok || got != tt.want {
				t.Errorf("noteEventFrom = %+v, %v; want %+v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestKeyboardController_DropsNonNotes(t *testing.T) {
	kb, err := NewKeyboardController("test", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer kb.Close()

	kb.handle(gomidi.ProgramChange(0, 3))
	kb.handle(gomidi.NoteOn(0, 60, 100))

	select {
	case evt := <-kb.NoteEvents():
		if evt.Note != 60 || !evt.On {
			t.Errorf("unexpected event %+v", evt)
		}
	default:
		t.Fatal("expected a note event")
	}
	select {
	case evt := <-kb.NoteEvents():
		t.Errorf("unexpected extra event %+v", evt)
	default:
	}
}

func TestWithChannel(t *testing.T) {
	tests := []struct {
		name    string
		msg     gomidi.Message
		channel uint8
		want    gomidi.Message
	}{
		{"same channel", gomidi.NoteOn(3, 60, 100), 3, gomidi.NoteOn(3, 60, 100)},
		{"re-addressed", gomidi.NoteOn(3, 60, 100), 5, gomidi.NoteOn(5, 60, 100)},
		{"program change", gomidi.ProgramChange(0, 7), 9, gomidi.ProgramChange(9, 7)},
		{"sysex untouched", gomidi.Message{0xF0, 0x7E, 0xF7}, 4, gomidi.Message{0xF0, 0x7E, 0xF7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := withChannel(tt.msg, tt.channel); !bytes.Equal(got, tt.want) {
				t.Errorf("withChannel = % X, want % X", []byte(got), []byte(tt.want))
			}
		})
	}
}

func TestWithChannel_DoesNotMutateInput(t *testing.T) {
	msg := gomidi.NoteOn(0, 60, 100)
	withChannel(msg, 7)
	if msg[0] != 0x90 {
		t.Errorf("input modified: % X", []byte(msg))
	}
}

func TestMatchPort(t *testing.T) {
	tests := []struct {
		name, want string
		match      bool
	}{
		{"Midi Through Port-0", "", false},
		{"Digital Piano MIDI 1", "", true},
		{"Digital Piano MIDI 1", "digital piano", true},
		{"Launchpad X", "digital piano", false},
	}
	for _, tt := range tests {
		if got := matchPort(tt.name, tt.want); got != tt.match {
			t.Errorf("matchPort(%q, %q) = %v", tt.name, tt.want, got)
		}
	}
}

func TestNoteEvent_Message(t *testing.T) {
	on := NoteEvent{Note: 60, Velocity: 90, Channel: 1, On: true}.Message()
	if !bytes.Equal(on, gomidi.NoteOn(1, 60, 90)) {
		t.Errorf("on = % X", []byte(on))
	}
	off := NoteEvent{Note: 60, Channel: 1}.Message()
	var ch, key uint8
	if !off.GetNoteEnd(&ch, &key) || key != 60 || ch != 1 {
		t.Errorf("off = % X", []byte(off))
	}
}
