package midi

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// ccAllNotesOff is the channel mode message that releases every held note.
const ccAllNotesOff = 123

// Output receives the messages a playback session sends to a synth.
type Output interface {
	// MidiEvent sends msg on channel. Channel messages are re-addressed to
	// channel; other messages pass through unchanged.
	MidiEvent(channel uint8, msg gomidi.Message) error
	// StopAll releases every sounding note.
	StopAll() error
}

// NopOutput discards everything.
type NopOutput struct{}

func (NopOutput) MidiEvent(uint8, gomidi.Message) error { return nil }
func (NopOutput) StopAll() error                        { return nil }

// PortOutput sends to a MIDI output port.
type PortOutput struct {
	name string
	port drivers.Out
	send func(gomidi.Message) error
	mu   sync.Mutex
}

// OpenOutput opens the output port called name. An exact match is preferred;
// otherwise the first port whose name contains name is used.
func OpenOutput(name string) (*PortOutput, error) {
	ports, err := getPorts(3 * time.Second)
	if err != nil {
		return nil, err
	}

	port := findOutPort(ports.outPorts, name)
	if port == nil {
		return nil, fmt.Errorf("no MIDI output port matching %q", name)
	}

	send, err := gomidi.SendTo(port)
	if err != nil {
		return nil, fmt.Errorf("open output %s: %w", port.String(), err)
	}
	return &PortOutput{name: port.String(), port: port, send: send}, nil
}

func findOutPort(ports []drivers.Out, name string) drivers.Out {
	for _, p := range ports {
		if p.String() == name {
			return p
		}
	}
	for _, p := range ports {
		if strings.Contains(strings.ToLower(p.String()), strings.ToLower(name)) {
			return p
		}
	}
	return nil
}

// Name returns the port name.
func (o *PortOutput) Name() string {
	return o.name
}

func (o *PortOutput) MidiEvent(channel uint8, msg gomidi.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.send(withChannel(msg, channel))
}

func (o *PortOutput) StopAll() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for ch := uint8(0); ch < 16; ch++ {
		if err := o.send(gomidi.ControlChange(ch, ccAllNotesOff, 0)); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the port.
func (o *PortOutput) Close() error {
	return o.port.Close()
}

// withChannel returns msg addressed to channel.
func withChannel(msg gomidi.Message, channel uint8) gomidi.Message {
	if len(msg) == 0 || msg[0] < 0x80 || msg[0] >= 0xF0 || msg[0]&0x0F == channel&0x0F {
		return msg
	}
	out := slices.Clone(msg)
	out[0] = out[0]&0xF0 | channel&0x0F
	return out
}
