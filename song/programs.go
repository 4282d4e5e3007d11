package song

import (
	"slices"
	"sort"
	"time"
)

// Programs is the program assigned to each of the 16 MIDI channels.
type Programs [16]uint8

// DefaultPrograms is the state before any Program Change: every channel on
// program 0.
var DefaultPrograms = Programs{}

// ProgramBucket is the full channel assignment from Timestamp onwards.
type ProgramBucket struct {
	Timestamp time.Duration
	Programs  Programs
}

// ProgramMap answers "which instrument is on channel N at time t".
// It is immutable once built.
type ProgramMap struct {
	defaults Programs
	buckets  []ProgramBucket
}

type programKey struct {
	timestamp time.Duration
	channel   uint8
}

// BuildProgramMap merges the program events of all tracks.
//
// Changes for the same channel at the same timestamp collapse into one: the
// later event of a track wins, and across tracks the lowest track index wins.
// Simultaneous changes on different channels all survive.
func BuildProgramMap(tracks []Track, defaults Programs) *ProgramMap {
	merged := make(map[programKey]uint8)
	for i := len(tracks) - 1; i >= 0; i-- {
		for _, p := range tracks[i].Programs {
			merged[programKey{p.Timestamp, p.Channel & 0x0F}] = p.Program
		}
	}

	keys := make([]programKey, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		if keys[a].timestamp != keys[b].timestamp {
			return keys[a].timestamp < keys[b].timestamp
		}
		return keys[a].channel < keys[b].channel
	})

	running := defaults
	var buckets []ProgramBucket
	for _, k := range keys {
		running[k.channel] = merged[k]
		if n := len(buckets); n > 0 && buckets[n-1].Timestamp == k.timestamp {
			buckets[n-1].Programs = running
			continue
		}
		buckets = append(buckets, ProgramBucket{Timestamp: k.timestamp, Programs: running})
	}

	return &ProgramMap{defaults: defaults, buckets: buckets}
}

// ProgramsAt returns the channel assignment in effect at t.
func (m *ProgramMap) ProgramsAt(t time.Duration) Programs {
	i := sort.Search(len(m.buckets), func(i int) bool { return m.buckets[i].Timestamp > t })
	if i == 0 {
		return m.defaults
	}
	return m.buckets[i-1].Programs
}

// Buckets returns a copy of the time-ordered snapshots.
func (m *ProgramMap) Buckets() []ProgramBucket {
	return slices.Clone(m.buckets)
}
