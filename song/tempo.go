package song

import (
	"math"
	"slices"
	"sort"
	"time"

	"gitlab.com/gomidi/midi/v2/smf"
)

// DefaultTempo is the tempo in effect before the first tempo event (120 BPM).
const DefaultTempo uint32 = 500_000

// TempoEvent is a tempo change placed on the wall clock.
type TempoEvent struct {
	Pulses    uint64
	Timestamp time.Duration
	Tempo     uint32 // microseconds per quarter note
}

// TempoMap converts pulse positions to wall-clock durations.
// It is immutable once built and safe for concurrent readers.
type TempoMap struct {
	ppq    uint16
	events []TempoEvent
}

// BuildTempoMap merges the tempo events of every track into one sorted map.
//
// Tempo events at the same pulse position collapse into one. Inside a track
// the later event wins; across tracks the lowest track index wins.
func BuildTempoMap(tracks []smf.Track, ppq uint16) *TempoMap {
	byPulse := make(map[uint64]uint32)

	for i := len(tracks) - 1; i >= 0; i-- {
		var pulses uint64
		for _, ev := range tracks[i] {
			pulses += uint64(ev.Delta)
			if tempo, ok := tempoMicros(ev.Message); ok {
				byPulse[pulses] = tempo
			}
		}
	}

	events := make([]TempoEvent, 0, len(byPulse))
	for pulses, tempo := range byPulse {
		events = append(events, TempoEvent{Pulses: pulses, Tempo: tempo})
	}
	sort.Slice(events, func(a, b int) bool { return events[a].Pulses < events[b].Pulses })

	prev := TempoEvent{Tempo: DefaultTempo}
	for i := range events {
		events[i].Timestamp = prev.Timestamp + pulseSpan(events[i].Pulses-prev.Pulses, ppq, prev.Tempo)
		prev = events[i]
	}

	return &TempoMap{ppq: ppq, events: events}
}

// PPQ returns the pulses per quarter note the map was built with.
func (m *TempoMap) PPQ() uint16 {
	return m.ppq
}

// Events returns a copy of the sorted tempo events.
func (m *TempoMap) Events() []TempoEvent {
	return slices.Clone(m.events)
}

// PulsesToDuration returns the wall-clock time of an absolute pulse position.
func (m *TempoMap) PulsesToDuration(pulses uint64) time.Duration {
	seg := m.segmentAt(pulses)
	return seg.Timestamp + pulseSpan(pulses-seg.Pulses, m.ppq, seg.Tempo)
}

// segmentAt finds the greatest event at or before pulses, or the default
// segment when none exists.
func (m *TempoMap) segmentAt(pulses uint64) TempoEvent {
	i, found := slices.BinarySearchFunc(m.events, pulses, func(e TempoEvent, p uint64) int {
		switch {
		case e.Pulses < p:
			return -1
		case e.Pulses > p:
			return 1
		}
		return 0
	})
	if found {
		return m.events[i]
	}
	if i == 0 {
		return TempoEvent{Tempo: DefaultTempo}
	}
	return m.events[i-1]
}

// pulseSpan converts a pulse delta at a fixed tempo. The division happens
// before the multiplication and the floor is taken last; playback scoring
// elsewhere depends on these exact microsecond values.
func pulseSpan(delta uint64, ppq uint16, tempo uint32) time.Duration {
	if delta == 0 || ppq == 0 {
		return 0
	}
	micros := math.Floor(float64(delta) / float64(ppq) * float64(tempo))
	return time.Duration(micros) * time.Microsecond
}

// tempoMicros extracts the microseconds per quarter note of a Set Tempo meta
// event.
func tempoMicros(msg smf.Message) (uint32, bool) {
	b := []byte(msg)
	if len(b) != 6 || b[0] != 0xFF || b[1] != 0x51 || b[2] != 0x03 {
		return 0, false
	}
	return uint32(b[3])<<16 | uint32(b[4])<<8 | uint32(b[5]), true
}
